package serializer

import (
	"context"
	"path"

	internalerrors "github.com/restbench/core/internal/errors"
	"github.com/restbench/core/internal/store"
)

// RequestPath rebuilds the relative path a request would occupy inside its
// collection's exported tree, by walking its folder chain up to the root.
// Used for granular single-request pushes that skip a full export.
func RequestPath(ctx context.Context, s *store.Store, req store.Request) (string, error) {
	var segments []string
	visited := map[string]bool{}
	folderID := req.FolderID
	for folderID != "" {
		if visited[folderID] {
			return "", internalerrors.ValidationError{Field: "folder_id", Message: "cycle detected while building path for request " + req.ID}
		}
		visited[folderID] = true

		f, err := s.Folders.FindByID(ctx, folderID)
		if err != nil {
			return "", err
		}
		segments = append([]string{f.ID}, segments...)
		folderID = f.ParentFolderID
	}
	segments = append(segments, req.ID+".yaml")
	return path.Join(segments...), nil
}
