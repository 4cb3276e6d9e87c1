package script_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/restbench/core/internal/crypto"
	"github.com/restbench/core/internal/logging"
	internalerrors "github.com/restbench/core/internal/errors"
	"github.com/restbench/core/internal/resolve"
	"github.com/restbench/core/internal/script"
	"github.com/restbench/core/internal/store"
	"github.com/restbench/core/pkg/secretprovider"
)

type fakeSender struct {
	calls     []string
	responses map[string]script.Response
}

func (f *fakeSender) Send(ctx context.Context, method, url string, headers map[string]string, body []byte) (script.Response, error) {
	f.calls = append(f.calls, url)
	if resp, ok := f.responses[url]; ok {
		return resp, nil
	}
	return script.Response{Status: 200}, nil
}

func newTestExecutor(t *testing.T) (*store.Store, *script.Executor, *fakeSender) {
	t.Helper()
	keyring.MockInit()

	dir := t.TempDir()
	mgr, err := crypto.InitEncryption(filepath.Join(dir, "master.key"))
	require.NoError(t, err)
	t.Cleanup(mgr.Close)

	s, err := store.Open(filepath.Join(dir, "restbench.db"), mgr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cache := secretprovider.NewCache(s, func(ctx context.Context, workspaceID string) (secretprovider.Provider, error) {
		return nil, internalerrors.NotFoundError{Entity: "provider"}
	})
	resolver := resolve.New(s, cache, logging.New(false, true))
	sender := &fakeSender{responses: map[string]script.Response{}}
	executor := script.New(s, resolver, cache, sender, nil)
	return s, executor, sender
}

func TestExecuteRunsRequestAndWritesPostResponseVariable(t *testing.T) {
	s, executor, sender := newTestExecutor(t)
	ctx := context.Background()

	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Payments"})
	require.NoError(t, err)
	col, err := s.Collections.Create(ctx, store.Collection{WorkspaceID: ws.ID, Name: "API"})
	require.NoError(t, err)

	req, err := s.Requests.Create(ctx, store.Request{
		CollectionID: col.ID,
		Name:         "Login",
		Method:       store.MethodPost,
		URL:          "https://api.example.com/login",
		Scripts: store.ScriptsConfig{
			PostResponse: []store.PostResponseAction{
				{Action: "set_variable", Source: "body.token", Target: "auth_token"},
			},
		},
	})
	require.NoError(t, err)

	sender.responses["https://api.example.com/login"] = script.Response{
		Status: 200, Body: []byte(`{"token":"tok_abc123"}`),
	}

	resp, err := executor.Execute(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)

	found, err := s.Collections.FindByID(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok_abc123", found.Variables["auth_token"])
}

func TestExecutePostResponseMissExtractionIsNoOp(t *testing.T) {
	s, executor, sender := newTestExecutor(t)
	ctx := context.Background()

	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Payments"})
	require.NoError(t, err)
	col, err := s.Collections.Create(ctx, store.Collection{WorkspaceID: ws.ID, Name: "API"})
	require.NoError(t, err)

	req, err := s.Requests.Create(ctx, store.Request{
		CollectionID: col.ID,
		Name:         "Login",
		Method:       store.MethodPost,
		URL:          "https://api.example.com/login",
		Scripts: store.ScriptsConfig{
			PostResponse: []store.PostResponseAction{
				{Action: "set_variable", Source: "body.missing_field", Target: "auth_token"},
				{Action: "set_variable", Source: "body.token", Target: "session_id"},
			},
		},
	})
	require.NoError(t, err)

	sender.responses["https://api.example.com/login"] = script.Response{
		Status: 200, Body: []byte(`{"token":"tok_abc123"}`),
	}

	resp, err := executor.Execute(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)

	found, err := s.Collections.FindByID(ctx, col.ID)
	require.NoError(t, err)
	assert.Empty(t, found.Variables["auth_token"])
	assert.Equal(t, "tok_abc123", found.Variables["session_id"])
}

func TestExecutePostResponseWritesNewNameToCollectionNotActiveEnvironment(t *testing.T) {
	s, executor, sender := newTestExecutor(t)
	ctx := context.Background()

	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Payments"})
	require.NoError(t, err)
	col, err := s.Collections.Create(ctx, store.Collection{WorkspaceID: ws.ID, Name: "API"})
	require.NoError(t, err)
	env, err := s.Environments.Create(ctx, store.Environment{
		WorkspaceID: ws.ID, Name: "prod",
		Variables: []store.EnvironmentVariable{{Key: "existing_token", Value: "old", Enabled: true}},
	})
	require.NoError(t, err)
	require.NoError(t, s.Environments.Activate(ctx, ws.ID, env.ID))

	req, err := s.Requests.Create(ctx, store.Request{
		CollectionID: col.ID,
		Name:         "Login",
		Method:       store.MethodPost,
		URL:          "https://api.example.com/login",
		Scripts: store.ScriptsConfig{
			PostResponse: []store.PostResponseAction{
				{Action: "set_variable", Source: "body.existing", Target: "existing_token"},
				{Action: "set_variable", Source: "body.new", Target: "brand_new_var"},
			},
		},
	})
	require.NoError(t, err)

	sender.responses["https://api.example.com/login"] = script.Response{
		Status: 200, Body: []byte(`{"existing":"updated-value","new":"fresh-value"}`),
	}

	_, err = executor.Execute(ctx, req.ID)
	require.NoError(t, err)

	updatedEnv, err := s.Environments.FindByID(ctx, env.ID)
	require.NoError(t, err)
	var got string
	for _, v := range updatedEnv.Variables {
		if v.Key == "existing_token" {
			got = v.Value
		}
	}
	assert.Equal(t, "updated-value", got, "existing environment key should update in place")

	foundCol, err := s.Collections.FindByID(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh-value", foundCol.Variables["brand_new_var"], "new name should land in the collection overlay, not the environment")
}

func TestExecuteFollowsPreRequestChain(t *testing.T) {
	s, executor, sender := newTestExecutor(t)
	ctx := context.Background()

	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Payments"})
	require.NoError(t, err)
	col, err := s.Collections.Create(ctx, store.Collection{WorkspaceID: ws.ID, Name: "API"})
	require.NoError(t, err)

	login, err := s.Requests.Create(ctx, store.Request{
		CollectionID: col.ID, Name: "Login", Method: store.MethodPost, URL: "https://api.example.com/login",
	})
	require.NoError(t, err)

	target, err := s.Requests.Create(ctx, store.Request{
		CollectionID: col.ID, Name: "List", Method: store.MethodGet, URL: "https://api.example.com/list",
		Scripts: store.ScriptsConfig{PreRequest: &store.PreRequestScript{Action: "send_request", RequestID: login.ID}},
	})
	require.NoError(t, err)

	sender.responses["https://api.example.com/login"] = script.Response{Status: 200}
	sender.responses["https://api.example.com/list"] = script.Response{Status: 200}

	_, err = executor.Execute(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://api.example.com/login", "https://api.example.com/list"}, sender.calls)
}

func TestExecuteDetectsCycle(t *testing.T) {
	s, executor, _ := newTestExecutor(t)
	ctx := context.Background()

	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Payments"})
	require.NoError(t, err)
	col, err := s.Collections.Create(ctx, store.Collection{WorkspaceID: ws.ID, Name: "API"})
	require.NoError(t, err)

	a, err := s.Requests.Create(ctx, store.Request{CollectionID: col.ID, Name: "A", Method: store.MethodGet, URL: "https://x/a"})
	require.NoError(t, err)
	b, err := s.Requests.Create(ctx, store.Request{
		CollectionID: col.ID, Name: "B", Method: store.MethodGet, URL: "https://x/b",
		Scripts: store.ScriptsConfig{PreRequest: &store.PreRequestScript{Action: "send_request", RequestID: a.ID}},
	})
	require.NoError(t, err)
	_, err = s.Requests.Update(ctx, a.ID, func(r *store.Request) {
		r.Scripts = store.ScriptsConfig{PreRequest: &store.PreRequestScript{Action: "send_request", RequestID: b.ID}}
	})
	require.NoError(t, err)

	_, err = executor.Execute(ctx, b.ID)
	require.Error(t, err)
	var limitErr internalerrors.ScriptLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "cycle", limitErr.Reason)
}
