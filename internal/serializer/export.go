package serializer

import (
	"context"
	"path"

	"gopkg.in/yaml.v3"

	internalerrors "github.com/restbench/core/internal/errors"
	"github.com/restbench/core/internal/scanner"
	"github.com/restbench/core/internal/store"
)

// Export converts collectionID (with every folder and request it owns)
// into a map of relative path -> YAML document string, rooted as if at
// "{collection_id}/" (the caller/adapter supplies that prefix). When
// sanitize is true, sensitive request fields are blanked before encoding.
func Export(ctx context.Context, s *store.Store, collectionID string, sanitize bool) (map[string]string, error) {
	col, err := s.Collections.FindByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	out := map[string]string{}

	variables := col.Variables
	if sanitize {
		variables = scanner.SanitizeCollection(col).Variables
	}

	hints, defaultHint, err := environmentHints(ctx, s, col.EnvironmentIDs, col.DefaultEnvID)
	if err != nil {
		return nil, err
	}

	colDoc := CollectionDocument{
		ID: col.ID, Name: col.Name, Variables: variables,
		EnvironmentHints: hints, DefaultEnvironmentHint: defaultHint,
	}
	if err := putYAML(out, "_collection.yaml", colDoc); err != nil {
		return nil, err
	}

	if err := exportLevel(ctx, s, col, "", "", out, sanitize, map[string]bool{}); err != nil {
		return nil, err
	}
	return out, nil
}

// exportLevel writes the manifest + documents for one level of the tree
// (collection root when parentFolderID is "") and recurses into child
// folders, writing each under its own "{folder_id}/" prefix.
func exportLevel(ctx context.Context, s *store.Store, col store.Collection, parentFolderID, prefix string, out map[string]string, sanitize bool, visited map[string]bool) error {
	folders, err := s.Folders.FindByParent(ctx, col.ID, parentFolderID)
	if err != nil {
		return err
	}
	requests, err := s.Requests.FindByParent(ctx, col.ID, parentFolderID)
	if err != nil {
		return err
	}

	manifest := ManifestDocument{}
	for _, f := range folders {
		manifest.Entries = append(manifest.Entries, ManifestEntry{Type: "folder", ID: f.ID, Name: f.Name})
	}
	for _, r := range requests {
		manifest.Entries = append(manifest.Entries, ManifestEntry{Type: "request", ID: r.ID, Name: r.Name})
	}
	if err := putYAML(out, path.Join(prefix, "_manifest.yaml"), manifest); err != nil {
		return err
	}

	for _, r := range requests {
		doc := toRequestDocument(r, sanitize)
		if err := putYAML(out, path.Join(prefix, r.ID+".yaml"), doc); err != nil {
			return err
		}
	}

	for _, f := range folders {
		if visited[f.ID] {
			return internalerrors.ValidationError{Field: "folder_id", Message: "cycle detected while walking folder tree for " + f.ID}
		}
		visited[f.ID] = true

		hints, defaultHint, err := environmentHints(ctx, s, f.EnvironmentIDs, f.DefaultEnvID)
		if err != nil {
			return err
		}
		folderPrefix := path.Join(prefix, f.ID)
		folderDoc := FolderDocument{ID: f.ID, Name: f.Name, EnvironmentHints: hints, DefaultEnvironmentHint: defaultHint}
		if err := putYAML(out, path.Join(folderPrefix, "_folder.yaml"), folderDoc); err != nil {
			return err
		}
		if err := exportLevel(ctx, s, col, f.ID, folderPrefix, out, sanitize, visited); err != nil {
			return err
		}
	}
	return nil
}

func environmentHints(ctx context.Context, s *store.Store, ids []string, defaultID string) ([]string, string, error) {
	var hints []string
	var defaultHint string
	for _, id := range ids {
		env, err := s.Environments.FindByID(ctx, id)
		if err != nil {
			if _, ok := err.(internalerrors.NotFoundError); ok {
				continue
			}
			return nil, "", err
		}
		hint := environmentHint(env)
		hints = append(hints, hint)
		if id == defaultID {
			defaultHint = hint
		}
	}
	return hints, defaultHint, nil
}

// ExportRequestDocument marshals a single request into its document
// shape, for granular single-request pushes that skip a full collection
// export.
func ExportRequestDocument(req store.Request, sanitize bool) (string, error) {
	doc := toRequestDocument(req, sanitize)
	b, err := yaml.Marshal(doc)
	if err != nil {
		return "", internalerrors.SerializationError{Path: req.ID + ".yaml", Message: "failed to encode document", Err: err}
	}
	return string(b), nil
}

func putYAML(out map[string]string, relPath string, doc interface{}) error {
	b, err := yaml.Marshal(doc)
	if err != nil {
		return internalerrors.SerializationError{Path: relPath, Message: "failed to encode document", Err: err}
	}
	out[relPath] = string(b)
	return nil
}
