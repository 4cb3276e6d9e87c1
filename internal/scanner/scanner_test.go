package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/restbench/core/internal/store"
)

func TestIsSensitiveKeyMatchesSubstring(t *testing.T) {
	assert.True(t, IsSensitiveKey("X-Api-Key"))
	assert.True(t, IsSensitiveKey("user_password"))
	assert.False(t, IsSensitiveKey("Content-Type"))
}

func TestIsPlaceholderRecognizesSingleReference(t *testing.T) {
	assert.True(t, IsPlaceholder("{{auth_token}}"))
	assert.False(t, IsPlaceholder("Bearer {{auth_token}}"))
	assert.False(t, IsPlaceholder("plain-value"))
}

func TestScanRequestFlagsSensitiveHeaderAndAuth(t *testing.T) {
	req := store.Request{
		Name: "Login",
		Headers: []store.KeyValueEntry{
			{Key: "Authorization", Value: "Bearer sk_live_abcdef123456", Enabled: true},
			{Key: "Content-Type", Value: "application/json", Enabled: true},
		},
		Auth: store.AuthConfig{Type: store.AuthBearer, BearerToken: "sk_live_abcdef123456"},
	}
	findings := ScanRequest(req)
	assert.Len(t, findings, 2)
}

func TestScanRequestIgnoresPlaceholderValues(t *testing.T) {
	req := store.Request{
		Headers: []store.KeyValueEntry{{Key: "X-Api-Key", Value: "{{api_key}}", Enabled: true}},
		Auth:    store.AuthConfig{Type: store.AuthBearer, BearerToken: "{{auth_token}}"},
	}
	assert.Empty(t, ScanRequest(req))
}

func TestSanitizeRequestBlanksFlaggedFieldsOnly(t *testing.T) {
	req := store.Request{
		Headers: []store.KeyValueEntry{
			{Key: "Authorization", Value: "secret-value", Enabled: true},
			{Key: "Accept", Value: "application/json", Enabled: true},
		},
		Auth: store.AuthConfig{Type: store.AuthBasic, BasicUsername: "alice", BasicPassword: "hunter2long"},
	}
	out := SanitizeRequest(req)
	assert.Equal(t, "", out.Headers[0].Value)
	assert.Equal(t, "application/json", out.Headers[1].Value)
	assert.Equal(t, "alice", out.Auth.BasicUsername)
	assert.Equal(t, "", out.Auth.BasicPassword)
}

func TestSanitizeRequestPreservesPlaceholders(t *testing.T) {
	req := store.Request{
		Auth: store.AuthConfig{Type: store.AuthBearer, BearerToken: "{{auth_token}}"},
	}
	out := SanitizeRequest(req)
	assert.Equal(t, "{{auth_token}}", out.Auth.BearerToken)
}

func TestSanitizeCollectionBlanksSensitiveVariables(t *testing.T) {
	col := store.Collection{Variables: map[string]string{
		"client_secret": "abc123456789",
		"base_url":      "https://api.example.com",
	}}
	out := SanitizeCollection(col)
	assert.Equal(t, "", out.Variables["client_secret"])
	assert.Equal(t, "https://api.example.com", out.Variables["base_url"])
}

func TestScanCollectionAggregatesRequestFindings(t *testing.T) {
	col := store.Collection{Variables: map[string]string{"password": "longpassword"}}
	requests := []store.Request{
		{Name: "A", Headers: []store.KeyValueEntry{{Key: "Api-Key", Value: "abcdefghijk", Enabled: true}}},
	}
	findings := ScanCollection(col, requests)
	assert.Len(t, findings, 2)
}
