package serializer

import (
	"regexp"
	"strings"

	"github.com/restbench/core/internal/scanner"
	"github.com/restbench/core/internal/store"
)

var slugDisallowed = regexp.MustCompile(`[^a-z0-9]+`)

// slugify produces a cross-machine-stable identity hint from a name, used
// when an environment has no vault_path set.
func slugify(name string) string {
	s := slugDisallowed.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// environmentHint returns the identity hint written for an associated
// environment: its vault_path if set, else a slug of its name.
func environmentHint(env store.Environment) string {
	if env.VaultPath != "" {
		return env.VaultPath
	}
	return slugify(env.Name)
}

func toKeyValueDocs(entries []store.KeyValueEntry) []KeyValueDocument {
	out := make([]KeyValueDocument, len(entries))
	for i, e := range entries {
		out[i] = KeyValueDocument{Key: e.Key, Value: e.Value, Enabled: e.Enabled}
	}
	return out
}

func fromKeyValueDocs(docs []KeyValueDocument) []store.KeyValueEntry {
	out := make([]store.KeyValueEntry, len(docs))
	for i, d := range docs {
		out[i] = store.KeyValueEntry{Key: d.Key, Value: d.Value, Enabled: d.Enabled}
	}
	return out
}

func toAuthDoc(auth store.AuthConfig) AuthDocument {
	return AuthDocument{
		Type:          string(auth.Type),
		BearerToken:   auth.BearerToken,
		BasicUsername: auth.BasicUsername,
		BasicPassword: auth.BasicPassword,
		APIKeyName:    auth.APIKeyName,
		APIKeyValue:   auth.APIKeyValue,
		APIKeyIn:      auth.APIKeyIn,
	}
}

func fromAuthDoc(doc AuthDocument) store.AuthConfig {
	return store.AuthConfig{
		Type:          store.AuthType(doc.Type),
		BearerToken:   doc.BearerToken,
		BasicUsername: doc.BasicUsername,
		BasicPassword: doc.BasicPassword,
		APIKeyName:    doc.APIKeyName,
		APIKeyValue:   doc.APIKeyValue,
		APIKeyIn:      doc.APIKeyIn,
	}
}

func toScriptsDoc(s store.ScriptsConfig) *ScriptsDocument {
	if s.PreRequest == nil && len(s.PostResponse) == 0 {
		return nil
	}
	doc := &ScriptsDocument{}
	if s.PreRequest != nil {
		doc.PreRequest = &PreRequestScriptDocument{Action: s.PreRequest.Action, RequestID: s.PreRequest.RequestID}
	}
	for _, a := range s.PostResponse {
		doc.PostResponse = append(doc.PostResponse, PostResponseActionDocument{Action: a.Action, Source: a.Source, Target: a.Target})
	}
	return doc
}

func fromScriptsDoc(doc *ScriptsDocument) store.ScriptsConfig {
	if doc == nil {
		return store.ScriptsConfig{}
	}
	out := store.ScriptsConfig{}
	if doc.PreRequest != nil {
		out.PreRequest = &store.PreRequestScript{Action: doc.PreRequest.Action, RequestID: doc.PreRequest.RequestID}
	}
	for _, a := range doc.PostResponse {
		out.PostResponse = append(out.PostResponse, store.PostResponseAction{Action: a.Action, Source: a.Source, Target: a.Target})
	}
	return out
}

// toRequestDocument converts req to its document shape. When sanitize is
// true, flagged fields are blanked first via the scanner package.
func toRequestDocument(req store.Request, sanitize bool) RequestDocument {
	if sanitize {
		req = scanner.SanitizeRequest(req)
	}
	return RequestDocument{
		ID:          req.ID,
		Name:        req.Name,
		Method:      string(req.Method),
		URL:         req.URL,
		Headers:     toKeyValueDocs(req.Headers),
		QueryParams: toKeyValueDocs(req.QueryParams),
		Body:        req.Body,
		BodyType:    string(req.BodyType),
		Auth:        toAuthDoc(req.Auth),
		Scripts:     toScriptsDoc(req.Scripts),
	}
}

func fromRequestDocument(doc RequestDocument, collectionID, folderID string) store.Request {
	return store.Request{
		ID:           doc.ID,
		CollectionID: collectionID,
		FolderID:     folderID,
		Name:         doc.Name,
		Method:       store.Method(doc.Method),
		URL:          doc.URL,
		Headers:      fromKeyValueDocs(doc.Headers),
		QueryParams:  fromKeyValueDocs(doc.QueryParams),
		Body:         doc.Body,
		BodyType:     store.BodyType(doc.BodyType),
		Auth:         fromAuthDoc(doc.Auth),
		Scripts:      fromScriptsDoc(doc.Scripts),
	}
}
