package sync

import (
	"context"

	"github.com/google/go-github/v66/github"

	internalerrors "github.com/restbench/core/internal/errors"
)

// CommitsAdapter drives the Repositories Contents API directly, exactly
// as the sibling example's CreateFile/UpdateFile pair does. Paths are
// passed raw (no percent-encoding): the Contents API accepts them as-is.
// There is no native atomic multi-file commit in this API, so writes and
// deletes are applied one file per request; each update passes the
// file's prior content SHA as the conflict guard, which the server
// rejects on mismatch.
type CommitsAdapter struct {
	cfg Config
}

func NewCommitsAdapter(cfg Config) *CommitsAdapter {
	return &CommitsAdapter{cfg: cfg}
}

func (a *CommitsAdapter) ListDirectoryRecursive(ctx context.Context, path string) ([]Entry, error) {
	ctx, cancel := withAdapterTimeout(ctx)
	defer cancel()
	return a.listDir(ctx, path)
}

func (a *CommitsAdapter) listDir(ctx context.Context, path string) ([]Entry, error) {
	_, dirContents, _, err := a.cfg.Client.Repositories.GetContents(ctx, a.cfg.Owner, a.cfg.Repo, path,
		&github.RepositoryContentGetOptions{Ref: a.cfg.Branch})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, internalerrors.ProviderError("git", "list directory "+path, err)
	}

	var out []Entry
	for _, item := range dirContents {
		switch item.GetType() {
		case "file":
			out = append(out, Entry{Type: "blob", Path: item.GetPath(), ID: item.GetSHA()})
		case "dir":
			out = append(out, Entry{Type: "tree", Path: item.GetPath(), ID: item.GetSHA()})
			children, err := a.listDir(ctx, item.GetPath())
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
		}
	}
	return out, nil
}

func (a *CommitsAdapter) GetFile(ctx context.Context, path string) (File, error) {
	ctx, cancel := withAdapterTimeout(ctx)
	defer cancel()

	content, _, _, err := a.cfg.Client.Repositories.GetContents(ctx, a.cfg.Owner, a.cfg.Repo, path,
		&github.RepositoryContentGetOptions{Ref: a.cfg.Branch})
	if err != nil {
		return File{}, internalerrors.ProviderError("git", "get file contents", err)
	}
	decoded, err := content.GetContent()
	if err != nil {
		return File{}, internalerrors.ProviderError("git", "decode file contents", err)
	}
	return File{Content: decoded, BlobID: content.GetSHA()}, nil
}

// CommitMultipleFiles has no true multi-file atomicity here: each write
// or delete is its own Contents API call, guarded by the file's last-seen
// SHA. The returned id is the final call's resulting commit SHA.
func (a *CommitsAdapter) CommitMultipleFiles(ctx context.Context, writes map[string]string, deletes []string, message string) (string, error) {
	ctx, cancel := withAdapterTimeout(ctx)
	defer cancel()

	var lastCommitSHA string
	for path, content := range writes {
		sha, err := a.upsertFile(ctx, path, content, message)
		if err != nil {
			return "", err
		}
		lastCommitSHA = sha
	}
	for _, path := range deletes {
		sha, err := a.deleteFile(ctx, path, message)
		if err != nil {
			return "", err
		}
		lastCommitSHA = sha
	}
	return lastCommitSHA, nil
}

func (a *CommitsAdapter) upsertFile(ctx context.Context, path, content, message string) (string, error) {
	var sha *string
	existing, _, resp, err := a.cfg.Client.Repositories.GetContents(ctx, a.cfg.Owner, a.cfg.Repo, path,
		&github.RepositoryContentGetOptions{Ref: a.cfg.Branch})
	if err == nil && existing != nil {
		s := existing.GetSHA()
		sha = &s
	} else if resp != nil && resp.StatusCode != 404 {
		return "", internalerrors.ProviderError("git", "check existing file "+path, err)
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: []byte(content),
		Branch:  github.String(a.cfg.Branch),
		SHA:     sha,
	}
	var result *github.RepositoryContentResponse
	if sha == nil {
		result, _, err = a.cfg.Client.Repositories.CreateFile(ctx, a.cfg.Owner, a.cfg.Repo, path, opts)
	} else {
		result, _, err = a.cfg.Client.Repositories.UpdateFile(ctx, a.cfg.Owner, a.cfg.Repo, path, opts)
	}
	if err != nil {
		return "", internalerrors.ProviderError("git", "write file "+path, err)
	}
	return result.GetCommit().GetSHA(), nil
}

func (a *CommitsAdapter) deleteFile(ctx context.Context, path, message string) (string, error) {
	existing, _, _, err := a.cfg.Client.Repositories.GetContents(ctx, a.cfg.Owner, a.cfg.Repo, path,
		&github.RepositoryContentGetOptions{Ref: a.cfg.Branch})
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", internalerrors.ProviderError("git", "check file before delete "+path, err)
	}
	result, _, err := a.cfg.Client.Repositories.DeleteFile(ctx, a.cfg.Owner, a.cfg.Repo, path, &github.RepositoryContentFileOptions{
		Message: github.String(message),
		SHA:     existing.SHA,
		Branch:  github.String(a.cfg.Branch),
	})
	if err != nil {
		return "", internalerrors.ProviderError("git", "delete file "+path, err)
	}
	return result.GetCommit().GetSHA(), nil
}

func (a *CommitsAdapter) DeleteDirectory(ctx context.Context, path, message string) error {
	entries, err := a.ListDirectoryRecursive(ctx, path)
	if err != nil {
		return err
	}
	var deletes []string
	for _, e := range entries {
		if e.Type == "blob" {
			deletes = append(deletes, e.Path)
		}
	}
	if len(deletes) == 0 {
		return nil
	}
	_, err = a.CommitMultipleFiles(ctx, nil, deletes, message)
	return err
}

func (a *CommitsAdapter) TestConnection(ctx context.Context) error {
	ctx, cancel := withAdapterTimeout(ctx)
	defer cancel()
	_, _, err := a.cfg.Client.Repositories.Get(ctx, a.cfg.Owner, a.cfg.Repo)
	if err != nil {
		return internalerrors.ProviderError("git", "test connection", err)
	}
	return nil
}

func isNotFound(err error) bool {
	if ghErr, ok := err.(*github.ErrorResponse); ok {
		return ghErr.Response != nil && ghErr.Response.StatusCode == 404
	}
	return false
}
