package vault

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginHandler(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"auth": map[string]interface{}{"client_token": "t-1", "lease_duration": 3600},
	})
}

func TestHTTPClientReadPrefersKV2Shape(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/approle/login", loginHandler)
	mux.HandleFunc("/v1/secret/data/myapp", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"data": map[string]interface{}{"password": "secret123"}},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newHTTPClient(Config{Address: server.URL, RoleID: "r", SecretID: "s"}, nil)

	got, err := c.Read(t.Context(), "secret/myapp")
	require.NoError(t, err)
	assert.Equal(t, "secret123", got["password"])
}

func TestHTTPClientReadFallsBackToKV1Shape(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/approle/login", loginHandler)
	mux.HandleFunc("/v1/secret/data/myapp", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/v1/secret/myapp", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"password": "secret123"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newHTTPClient(Config{Address: server.URL, RoleID: "r", SecretID: "s"}, nil)

	got, err := c.Read(t.Context(), "secret/myapp")
	require.NoError(t, err)
	assert.Equal(t, "secret123", got["password"])
}

func TestHTTPClientRetriesOnceAfter403(t *testing.T) {
	t.Parallel()

	logins := 0
	reads := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/approle/login", func(w http.ResponseWriter, r *http.Request) {
		logins++
		loginHandler(w, r)
	})
	mux.HandleFunc("/v1/secret/data/myapp", func(w http.ResponseWriter, r *http.Request) {
		reads++
		if reads == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"data": map[string]interface{}{"password": "secret123"}},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newHTTPClient(Config{Address: server.URL, RoleID: "r", SecretID: "s"}, nil)

	got, err := c.Read(t.Context(), "secret/myapp")
	require.NoError(t, err)
	assert.Equal(t, "secret123", got["password"])
	assert.Equal(t, 2, logins) // initial + post-403 refresh
}

func TestHTTPClientWriteFallsBackToKV1(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/approle/login", loginHandler)
	mux.HandleFunc("/v1/secret/data/myapp", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	written := false
	mux.HandleFunc("/v1/secret/myapp", func(w http.ResponseWriter, r *http.Request) {
		written = true
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newHTTPClient(Config{Address: server.URL, RoleID: "r", SecretID: "s"}, nil)

	require.NoError(t, c.Write(t.Context(), "secret/myapp", map[string]interface{}{"password": "x"}))
	assert.True(t, written)
}

func TestHTTPClientMountExistsReportsConfiguredMount(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/approle/login", loginHandler)
	mux.HandleFunc("/v1/sys/mounts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"secret/": map[string]interface{}{"type": "kv"},
			"cubbyhole/": map[string]interface{}{"type": "cubbyhole"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newHTTPClient(Config{Address: server.URL, RoleID: "r", SecretID: "s"}, nil)

	exists, err := c.MountExists(t.Context(), "secret")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.MountExists(t.Context(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHTTPClientListFallsBackToV1PathAfterMetadataMisses(t *testing.T) {
	t.Parallel()

	var methodsSeen []string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/approle/login", loginHandler)
	mux.HandleFunc("/v1/secret/metadata/myapp", func(w http.ResponseWriter, r *http.Request) {
		methodsSeen = append(methodsSeen, r.Method)
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/v1/secret/myapp", func(w http.ResponseWriter, r *http.Request) {
		methodsSeen = append(methodsSeen, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"keys": []string{"prod", "staging"}},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newHTTPClient(Config{Address: server.URL, RoleID: "r", SecretID: "s"}, nil)

	keys, err := c.List(t.Context(), "secret/myapp")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"prod", "staging"}, keys)
	assert.GreaterOrEqual(t, len(methodsSeen), 3)
}
