package serializer_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/restbench/core/internal/crypto"
	"github.com/restbench/core/internal/serializer"
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

func seedCollection(t *testing.T, s *store.Store) (store.Workspace, store.Collection) {
	t.Helper()
	ctx := context.Background()
	ws, err := s.Workspaces.Create(ctx, store.Workspace{Name: "Payments"})
	require.NoError(t, err)
	col, err := s.Collections.Create(ctx, store.Collection{
		WorkspaceID: ws.ID, Name: "API", Variables: map[string]string{"base_url": "https://api.example.com"},
	})
	require.NoError(t, err)

	folder, err := s.Folders.Create(ctx, store.Folder{CollectionID: col.ID, Name: "Auth"})
	require.NoError(t, err)

	_, err = s.Requests.Create(ctx, store.Request{
		CollectionID: col.ID, Name: "Root Request", Method: store.MethodGet, URL: "{{base_url}}/health",
	})
	require.NoError(t, err)

	_, err = s.Requests.Create(ctx, store.Request{
		CollectionID: col.ID, FolderID: folder.ID, Name: "Login", Method: store.MethodPost,
		URL: "{{base_url}}/login",
		Auth: store.AuthConfig{Type: store.AuthBearer, BearerToken: "sk_live_abcdef123456"},
	})
	require.NoError(t, err)

	return ws, col
}

func TestExportProducesExpectedPaths(t *testing.T) {
	s := newTestStore(t)
	_, col := seedCollection(t, s)

	docs, err := serializer.Export(context.Background(), s, col.ID, false)
	require.NoError(t, err)

	assert.Contains(t, docs, "_collection.yaml")
	assert.Contains(t, docs, "_manifest.yaml")

	folders, err := s.Folders.FindByParent(context.Background(), col.ID, "")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	folderID := folders[0].ID
	assert.Contains(t, docs, folderID+"/_folder.yaml")
	assert.Contains(t, docs, folderID+"/_manifest.yaml")
}

func TestExportSanitizeBlanksBearerToken(t *testing.T) {
	s := newTestStore(t)
	_, col := seedCollection(t, s)

	docs, err := serializer.Export(context.Background(), s, col.ID, true)
	require.NoError(t, err)

	folders, err := s.Folders.FindByParent(context.Background(), col.ID, "")
	require.NoError(t, err)
	requests, err := s.Requests.FindByParent(context.Background(), col.ID, folders[0].ID)
	require.NoError(t, err)

	loginDoc := docs[folders[0].ID+"/"+requests[0].ID+".yaml"]
	assert.NotContains(t, loginDoc, "sk_live_abcdef123456")
}

func TestImportRoundTripsIntoFreshCollection(t *testing.T) {
	s := newTestStore(t)
	ws, col := seedCollection(t, s)

	docs, err := serializer.Export(context.Background(), s, col.ID, false)
	require.NoError(t, err)

	targetID := "imported-collection"
	imported, err := serializer.Import(context.Background(), s, ws.ID, targetID, docs)
	require.NoError(t, err)
	assert.Equal(t, "API", imported.Name)
	assert.Equal(t, "https://api.example.com", imported.Variables["base_url"])

	folders, err := s.Folders.FindByParent(context.Background(), targetID, "")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "Auth", folders[0].Name)

	rootRequests, err := s.Requests.FindByParent(context.Background(), targetID, "")
	require.NoError(t, err)
	require.Len(t, rootRequests, 1)
	assert.Equal(t, "Root Request", rootRequests[0].Name)

	nested, err := s.Requests.FindByParent(context.Background(), targetID, folders[0].ID)
	require.NoError(t, err)
	require.Len(t, nested, 1)
	assert.Equal(t, "sk_live_abcdef123456", nested[0].Auth.BearerToken)
}

func TestImportPrunesRequestsMissingFromManifest(t *testing.T) {
	s := newTestStore(t)
	ws, col := seedCollection(t, s)

	docs, err := serializer.Export(context.Background(), s, col.ID, false)
	require.NoError(t, err)

	targetID := "imported-collection-2"
	_, err = serializer.Import(context.Background(), s, ws.ID, targetID, docs)
	require.NoError(t, err)

	// Re-import from a manifest with the root request removed.
	delete(docs, "_manifest.yaml")
	docs["_manifest.yaml"] = "entries: []\n"

	_, err = serializer.Import(context.Background(), s, ws.ID, targetID, docs)
	require.NoError(t, err)

	rootRequests, err := s.Requests.FindByParent(context.Background(), targetID, "")
	require.NoError(t, err)
	assert.Empty(t, rootRequests)
}
