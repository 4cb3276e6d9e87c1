package serializer

import (
	"context"
	"path"

	"gopkg.in/yaml.v3"

	internalerrors "github.com/restbench/core/internal/errors"
	"github.com/restbench/core/internal/store"
)

// Import reconstructs collectionID from docs (the same path -> document
// shape Export produces), matching ids by manifest: existing rows are
// updated in place, rows absent from the pull are created, and local
// folders/requests no longer present in the pulled manifest are removed.
func Import(ctx context.Context, s *store.Store, workspaceID, collectionID string, docs map[string]string) (store.Collection, error) {
	var colDoc CollectionDocument
	if err := getYAML(docs, "_collection.yaml", &colDoc); err != nil {
		return store.Collection{}, err
	}

	envIDs, defaultEnvID, err := resolveEnvironmentHints(ctx, s, workspaceID, colDoc.EnvironmentHints, colDoc.DefaultEnvironmentHint)
	if err != nil {
		return store.Collection{}, err
	}

	col, err := upsertCollection(ctx, s, collectionID, workspaceID, colDoc, envIDs, defaultEnvID)
	if err != nil {
		return store.Collection{}, err
	}

	keepFolders := map[string]bool{}
	keepRequests := map[string]bool{}
	if err := importLevel(ctx, s, col, workspaceID, "", "", docs, keepFolders, keepRequests, map[string]bool{}); err != nil {
		return store.Collection{}, err
	}
	if err := pruneMissing(ctx, s, col.ID, keepFolders, keepRequests); err != nil {
		return store.Collection{}, err
	}

	return col, nil
}

func importLevel(ctx context.Context, s *store.Store, col store.Collection, workspaceID, parentFolderID, prefix string, docs map[string]string, keepFolders, keepRequests map[string]bool, visited map[string]bool) error {
	var manifest ManifestDocument
	if err := getYAML(docs, path.Join(prefix, "_manifest.yaml"), &manifest); err != nil {
		return err
	}

	for _, entry := range manifest.Entries {
		switch entry.Type {
		case "request":
			var reqDoc RequestDocument
			if err := getYAML(docs, path.Join(prefix, entry.ID+".yaml"), &reqDoc); err != nil {
				return err
			}
			if err := upsertRequest(ctx, s, col.ID, parentFolderID, reqDoc); err != nil {
				return err
			}
			keepRequests[entry.ID] = true

		case "folder":
			if visited[entry.ID] {
				return internalerrors.ValidationError{Field: "folder_id", Message: "cycle detected while importing folder tree for " + entry.ID}
			}
			visited[entry.ID] = true

			folderPrefix := path.Join(prefix, entry.ID)
			var folderDoc FolderDocument
			if err := getYAML(docs, path.Join(folderPrefix, "_folder.yaml"), &folderDoc); err != nil {
				return err
			}
			envIDs, defaultEnvID, err := resolveEnvironmentHints(ctx, s, workspaceID, folderDoc.EnvironmentHints, folderDoc.DefaultEnvironmentHint)
			if err != nil {
				return err
			}
			if err := upsertFolder(ctx, s, col.ID, parentFolderID, folderDoc, envIDs, defaultEnvID); err != nil {
				return err
			}
			keepFolders[entry.ID] = true

			if err := importLevel(ctx, s, col, workspaceID, entry.ID, folderPrefix, docs, keepFolders, keepRequests, visited); err != nil {
				return err
			}

		default:
			return internalerrors.ValidationError{Field: "manifest entry type", Message: "unknown type " + entry.Type}
		}
	}
	return nil
}

func upsertCollection(ctx context.Context, s *store.Store, collectionID, workspaceID string, doc CollectionDocument, envIDs []string, defaultEnvID string) (store.Collection, error) {
	existing, err := s.Collections.FindByID(ctx, collectionID)
	if _, ok := err.(internalerrors.NotFoundError); ok {
		return s.Collections.Create(ctx, store.Collection{
			ID: collectionID, WorkspaceID: workspaceID, Name: doc.Name,
			Variables: doc.Variables, EnvironmentIDs: envIDs, DefaultEnvID: defaultEnvID,
		})
	}
	if err != nil {
		return store.Collection{}, err
	}
	return s.Collections.Update(ctx, existing.ID, func(c *store.Collection) {
		c.Name = doc.Name
		c.Variables = doc.Variables
		c.EnvironmentIDs = envIDs
		c.DefaultEnvID = defaultEnvID
	})
}

func upsertFolder(ctx context.Context, s *store.Store, collectionID, parentFolderID string, doc FolderDocument, envIDs []string, defaultEnvID string) error {
	existing, err := s.Folders.FindByID(ctx, doc.ID)
	if _, ok := err.(internalerrors.NotFoundError); ok {
		_, createErr := s.Folders.Create(ctx, store.Folder{
			ID: doc.ID, CollectionID: collectionID, ParentFolderID: parentFolderID, Name: doc.Name,
			EnvironmentIDs: envIDs, DefaultEnvID: defaultEnvID,
		})
		return createErr
	}
	if err != nil {
		return err
	}
	_, err = s.Folders.Update(ctx, existing.ID, func(f *store.Folder) {
		f.Name = doc.Name
		f.EnvironmentIDs = envIDs
		f.DefaultEnvID = defaultEnvID
	})
	return err
}

func upsertRequest(ctx context.Context, s *store.Store, collectionID, folderID string, doc RequestDocument) error {
	req := fromRequestDocument(doc, collectionID, folderID)
	existing, err := s.Requests.FindByID(ctx, doc.ID)
	if _, ok := err.(internalerrors.NotFoundError); ok {
		req.ID = doc.ID
		_, createErr := s.Requests.Create(ctx, req)
		return createErr
	}
	if err != nil {
		return err
	}
	_, err = s.Requests.Update(ctx, existing.ID, func(r *store.Request) {
		r.FolderID = folderID
		r.Name = doc.Name
		r.Method = store.Method(doc.Method)
		r.URL = doc.URL
		r.Headers = req.Headers
		r.QueryParams = req.QueryParams
		r.Body = doc.Body
		r.BodyType = store.BodyType(doc.BodyType)
		r.Auth = req.Auth
		r.Scripts = req.Scripts
	})
	return err
}

// pruneMissing removes folders/requests under collectionID absent from
// the just-imported manifest tree.
func pruneMissing(ctx context.Context, s *store.Store, collectionID string, keepFolders, keepRequests map[string]bool) error {
	allRequests, err := collectAllRequests(ctx, s, collectionID)
	if err != nil {
		return err
	}
	for _, r := range allRequests {
		if !keepRequests[r.ID] {
			if err := s.Requests.Remove(ctx, r.ID); err != nil {
				return err
			}
		}
	}

	allFolders, err := collectAllFolders(ctx, s, collectionID)
	if err != nil {
		return err
	}
	// Remove deepest-first isn't required: folders cascade-delete their
	// descendant folders via FK (requests inside them are moved to the
	// collection root, not deleted), so removing a surviving ancestor
	// accidentally would be destructive — only remove folders whose id
	// itself was dropped from the manifest.
	for _, f := range allFolders {
		if !keepFolders[f.ID] {
			if err := s.Folders.Remove(ctx, f.ID); err != nil {
				if _, ok := err.(internalerrors.NotFoundError); ok {
					continue // already removed by an ancestor's cascade
				}
				return err
			}
		}
	}
	return nil
}

func collectAllFolders(ctx context.Context, s *store.Store, collectionID string) ([]store.Folder, error) {
	var out []store.Folder
	var walk func(parentID string) error
	walk = func(parentID string) error {
		children, err := s.Folders.FindByParent(ctx, collectionID, parentID)
		if err != nil {
			return err
		}
		for _, f := range children {
			out = append(out, f)
			if err := walk(f.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(""); err != nil {
		return nil, err
	}
	return out, nil
}

func collectAllRequests(ctx context.Context, s *store.Store, collectionID string) ([]store.Request, error) {
	folders, err := collectAllFolders(ctx, s, collectionID)
	if err != nil {
		return nil, err
	}
	folderIDs := append([]string{""}, func() []string {
		ids := make([]string, len(folders))
		for i, f := range folders {
			ids[i] = f.ID
		}
		return ids
	}()...)

	var out []store.Request
	for _, fid := range folderIDs {
		reqs, err := s.Requests.FindByParent(ctx, collectionID, fid)
		if err != nil {
			return nil, err
		}
		out = append(out, reqs...)
	}
	return out, nil
}

// resolveEnvironmentHints maps each hint (a vault_path or name slug) back
// to a known environment id within workspaceID. Hints that no longer
// resolve to anything are silently dropped, matching the pull-into-a-
// different-machine scenario the hint format exists for.
func resolveEnvironmentHints(ctx context.Context, s *store.Store, workspaceID string, hints []string, defaultHint string) ([]string, string, error) {
	envs, err := s.Environments.FindByParent(ctx, workspaceID)
	if err != nil {
		return nil, "", err
	}

	var ids []string
	var defaultID string
	for _, hint := range hints {
		for _, env := range envs {
			if environmentHint(env) == hint {
				ids = append(ids, env.ID)
				if hint == defaultHint {
					defaultID = env.ID
				}
				break
			}
		}
	}
	return ids, defaultID, nil
}

func getYAML(docs map[string]string, relPath string, out interface{}) error {
	raw, ok := docs[relPath]
	if !ok || raw == "" {
		return internalerrors.SerializationError{Path: relPath, Message: "document missing or empty"}
	}
	if err := yaml.Unmarshal([]byte(raw), out); err != nil {
		return internalerrors.SerializationError{Path: relPath, Message: "invalid document syntax", Err: err}
	}
	return nil
}
