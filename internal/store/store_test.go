package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/restbench/core/internal/crypto"
	"github.com/restbench/core/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	keyring.MockInit()

	dir := t.TempDir()
	mgr, err := crypto.InitEncryption(filepath.Join(dir, "master.key"))
	require.NoError(t, err)
	t.Cleanup(mgr.Close)

	s, err := store.Open(filepath.Join(dir, "restbench.db"), mgr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWorkspaceCreateAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Payments"})
	require.NoError(t, err)

	found, err := s.Workspaces.FindByID(ctx, ws.ID)
	require.NoError(t, err)
	require.Equal(t, "Payments", found.Name)
}

func TestWorkspaceRemoveRequiresOneRemaining(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Only"})
	require.NoError(t, err)

	err = s.Workspaces.Remove(ctx, ws.ID)
	require.Error(t, err)
}

func TestEnvironmentActivationIsExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Payments"})
	require.NoError(t, err)

	envA, err := s.Environments.Create(ctx, store.Environment{WorkspaceID: ws.ID, Name: "staging"})
	require.NoError(t, err)
	envB, err := s.Environments.Create(ctx, store.Environment{WorkspaceID: ws.ID, Name: "prod"})
	require.NoError(t, err)

	require.NoError(t, s.Environments.Activate(ctx, ws.ID, envA.ID))
	active, err := s.Environments.ActiveEnvironment(ctx, ws.ID)
	require.NoError(t, err)
	require.Equal(t, envA.ID, active.ID)

	require.NoError(t, s.Environments.Activate(ctx, ws.ID, envB.ID))
	active, err = s.Environments.ActiveEnvironment(ctx, ws.ID)
	require.NoError(t, err)
	require.Equal(t, envB.ID, active.ID)
}

func TestEnvironmentVariableEncryptionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Payments"})
	require.NoError(t, err)

	env, err := s.Environments.Create(ctx, store.Environment{
		WorkspaceID: ws.ID,
		Name:        "prod",
		Variables: []store.EnvironmentVariable{
			{Key: "API_KEY", Value: "sk-live-abc123", Enabled: true},
		},
	})
	require.NoError(t, err)

	found, err := s.Environments.FindByID(ctx, env.ID)
	require.NoError(t, err)
	require.Equal(t, "sk-live-abc123", found.Variables[0].Value)

	// The raw column must never contain the plaintext.
	var raw string
	err = s.DB().QueryRowContext(ctx, `SELECT variables FROM environments WHERE id = ?`, env.ID).Scan(&raw)
	require.NoError(t, err)
	require.NotContains(t, raw, "sk-live-abc123")
	require.Contains(t, raw, "enc:gcm:")
}

func TestRequestAuthEncryptionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Payments"})
	require.NoError(t, err)
	col, err := s.Collections.Create(ctx, store.Collection{WorkspaceID: ws.ID, Name: "API"})
	require.NoError(t, err)

	req, err := s.Requests.Create(ctx, store.Request{
		CollectionID: col.ID,
		Name:         "List users",
		Method:       store.MethodGet,
		URL:          "{{base_url}}/users",
		BodyType:     store.BodyNone,
		Auth: store.AuthConfig{
			Type:        store.AuthBearer,
			BearerToken: "tok_abc123",
		},
	})
	require.NoError(t, err)

	found, err := s.Requests.FindByID(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, "tok_abc123", found.Auth.BearerToken)
}

func TestCollectionCascadeDeletesFoldersAndRequests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Payments"})
	require.NoError(t, err)
	col, err := s.Collections.Create(ctx, store.Collection{WorkspaceID: ws.ID, Name: "API"})
	require.NoError(t, err)
	folder, err := s.Folders.Create(ctx, store.Folder{CollectionID: col.ID, Name: "Users"})
	require.NoError(t, err)
	req, err := s.Requests.Create(ctx, store.Request{CollectionID: col.ID, FolderID: folder.ID, Name: "Get", Method: store.MethodGet})
	require.NoError(t, err)

	require.NoError(t, s.Collections.Remove(ctx, col.ID))

	_, err = s.Folders.FindByID(ctx, folder.ID)
	require.Error(t, err)
	_, err = s.Requests.FindByID(ctx, req.ID)
	require.Error(t, err)
}

func TestSettingReadOnlyKeyRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Settings.Set(ctx, "", "encryption.migrated", "false")
	require.Error(t, err)
}

func TestSettingScopedFallback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Payments"})
	require.NoError(t, err)

	require.NoError(t, s.Settings.Set(ctx, "", "sync.branch", "main"))
	v, err := s.Settings.Get(ctx, ws.ID, "sync.branch")
	require.NoError(t, err)
	require.Equal(t, "main", v)

	require.NoError(t, s.Settings.Set(ctx, ws.ID, "sync.branch", "develop"))
	v, err = s.Settings.Get(ctx, ws.ID, "sync.branch")
	require.NoError(t, err)
	require.Equal(t, "develop", v)
}

func TestSettingSensitiveKeyEncryptedAndFilteredFromGetAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Settings.Set(ctx, "", "vault.token", "s.abc123"))

	v, err := s.Settings.Get(ctx, "", "vault.token")
	require.NoError(t, err)
	require.Equal(t, "s.abc123", v)

	all, err := s.Settings.GetAll(ctx, "")
	require.NoError(t, err)
	_, present := all["vault.token"]
	require.False(t, present)
}

func TestHistoryPruneClampsRetention(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Payments"})
	require.NoError(t, err)
	col, err := s.Collections.Create(ctx, store.Collection{WorkspaceID: ws.ID, Name: "API"})
	require.NoError(t, err)
	req, err := s.Requests.Create(ctx, store.Request{CollectionID: col.ID, Name: "Get", Method: store.MethodGet})
	require.NoError(t, err)

	_, err = s.History.Create(ctx, store.RequestHistory{RequestID: req.ID, Method: store.MethodGet, URL: "https://x", Status: 200})
	require.NoError(t, err)

	n, err := s.History.Prune(ctx, 0) // clamps to 1
	require.NoError(t, err)
	require.Equal(t, int64(0), n) // fresh row isn't older than 1 day
}
