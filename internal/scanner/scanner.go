// Package scanner flags likely-sensitive fields in request and collection
// data — header and query-param keys that look like credentials, collection
// variable keys, plus any value carried by a tagged auth block — and
// produces sanitized copies. Request bodies are not inspected.
package scanner

import (
	"strings"

	"github.com/restbench/core/internal/store"
)

// sensitiveSubstrings is the closed, lowercase set of key substrings that
// mark a header/body field as likely-sensitive. Matching is substring,
// case-insensitive.
var sensitiveSubstrings = []string{
	"token", "api_key", "apikey", "api-key", "secret", "password", "passwd",
	"credential", "auth", "access_key", "accesskey", "private_key", "privatekey",
	"client_secret", "clientsecret", "ssn", "social_security", "credit_card",
	"creditcard", "session_id", "sessionid", "cookie",
}

// SensitiveFinding describes one flagged field.
type SensitiveFinding struct {
	Source      string // "header" | "query_param" | "auth" | "body"
	RequestName string
	RequestID   string
	Field       string
	Key         string
	MaskedValue string
}

// IsSensitiveKey reports whether key contains one of the closed sensitive
// substrings.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// IsPlaceholder reports whether value is exactly a single {{...}} reference
// with nothing else around it — such values are never flagged or blanked.
func IsPlaceholder(value string) bool {
	v := strings.TrimSpace(value)
	return strings.HasPrefix(v, "{{") && strings.HasSuffix(v, "}}") && strings.Count(v, "{{") == 1
}

// maskValue shows only the first 3 and last 3 characters of a value,
// masking the rest; short values collapse to a fixed placeholder.
func maskValue(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:3] + "***" + value[len(value)-3:]
}

// ScanRequest inspects a single request's headers, query params, and auth
// block and returns every flagged field.
func ScanRequest(req store.Request) []SensitiveFinding {
	var out []SensitiveFinding

	scanEntries := func(source string, entries []store.KeyValueEntry) {
		for _, e := range entries {
			if IsSensitiveKey(e.Key) && !IsPlaceholder(e.Value) {
				out = append(out, SensitiveFinding{
					Source: source, RequestName: req.Name, RequestID: req.ID,
					Field: source, Key: e.Key, MaskedValue: maskValue(e.Value),
				})
			}
		}
	}
	scanEntries("header", req.Headers)
	scanEntries("query_param", req.QueryParams)

	// Shape-based: auth credentials always flag, regardless of auth type,
	// since a request's very presence of a populated auth block implies a secret.
	for field, value := range authFields(req.Auth) {
		if value == "" || IsPlaceholder(value) {
			continue
		}
		out = append(out, SensitiveFinding{
			Source: "auth", RequestName: req.Name, RequestID: req.ID,
			Field: field, Key: field, MaskedValue: maskValue(value),
		})
	}

	return out
}

// ScanCollection scans every request owned by a collection (the caller
// supplies the already-loaded request list) plus the collection's own
// variable overlay.
func ScanCollection(col store.Collection, requests []store.Request) []SensitiveFinding {
	var out []SensitiveFinding
	for key, value := range col.Variables {
		if IsSensitiveKey(key) && !IsPlaceholder(value) {
			out = append(out, SensitiveFinding{
				Source: "body", RequestName: "", RequestID: "",
				Field: "variables", Key: key, MaskedValue: maskValue(value),
			})
		}
	}
	for _, req := range requests {
		out = append(out, ScanRequest(req)...)
	}
	return out
}

// SanitizeRequest returns a copy of req with every flagged field blanked.
// {{...}} placeholder references are always preserved untouched.
func SanitizeRequest(req store.Request) store.Request {
	out := req
	out.Headers = sanitizeEntries(req.Headers)
	out.QueryParams = sanitizeEntries(req.QueryParams)
	out.Auth = sanitizeAuth(req.Auth)
	return out
}

// SanitizeCollection returns a copy of col with flagged overlay variables
// blanked.
func SanitizeCollection(col store.Collection) store.Collection {
	out := col
	if col.Variables != nil {
		vars := make(map[string]string, len(col.Variables))
		for k, v := range col.Variables {
			if IsSensitiveKey(k) && !IsPlaceholder(v) {
				vars[k] = ""
			} else {
				vars[k] = v
			}
		}
		out.Variables = vars
	}
	return out
}

func sanitizeEntries(entries []store.KeyValueEntry) []store.KeyValueEntry {
	if entries == nil {
		return nil
	}
	out := make([]store.KeyValueEntry, len(entries))
	for i, e := range entries {
		out[i] = e
		if IsSensitiveKey(e.Key) && !IsPlaceholder(e.Value) {
			out[i].Value = ""
		}
	}
	return out
}

func sanitizeAuth(auth store.AuthConfig) store.AuthConfig {
	out := auth
	if out.BearerToken != "" && !IsPlaceholder(out.BearerToken) {
		out.BearerToken = ""
	}
	if out.BasicPassword != "" && !IsPlaceholder(out.BasicPassword) {
		out.BasicPassword = ""
	}
	if out.APIKeyValue != "" && !IsPlaceholder(out.APIKeyValue) {
		out.APIKeyValue = ""
	}
	return out
}

func authFields(auth store.AuthConfig) map[string]string {
	return map[string]string{
		"bearer_token":   auth.BearerToken,
		"basic_password": auth.BasicPassword,
		"api_key_value":  auth.APIKeyValue,
	}
}
