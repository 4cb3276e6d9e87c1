package sync

import (
	"context"
	"strings"
	"time"

	internalerrors "github.com/restbench/core/internal/errors"
	"github.com/restbench/core/internal/metrics"
	"github.com/restbench/core/internal/serializer"
	"github.com/restbench/core/internal/store"
)

// Engine reconciles a store's collections against a remote Adapter using
// the base/local/remote three-way merge table in merge.go.
type Engine struct {
	store   *store.Store
	adapter Adapter
}

func NewEngine(s *store.Store, adapter Adapter) *Engine {
	return &Engine{store: s, adapter: adapter}
}

// Result accumulates the outcome of a batch push across many collections.
// A per-collection error or conflict does not halt the batch; Success only
// reflects whether every collection synced cleanly.
type Result struct {
	Success   bool
	Pulled    []string
	Pushed    []string
	Conflicts []internalerrors.ConflictError
	Errors    []string
}

// SyncCollection runs a full bidirectional reconcile pass for one
// collection: pulls remote-only changes, pushes local-only changes, and
// surfaces any path that changed on both sides since the last sync as a
// conflict (applying neither side for that path).
func (e *Engine) SyncCollection(ctx context.Context, workspaceID, collectionID string) ([]string, error) {
	col, err := e.store.Collections.FindByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	conflicts, _, _, err := e.syncOne(ctx, workspaceID, col)
	return conflicts, err
}

// PullSingleCollection is an alias for SyncCollection: a manual pull always
// reconciles both directions, since a remote change and an uncommitted
// local edit to the same path still need a merge decision.
func (e *Engine) PullSingleCollection(ctx context.Context, workspaceID, collectionID string) ([]string, error) {
	return e.SyncCollection(ctx, workspaceID, collectionID)
}

// PushAll reconciles every dirty, sync-enabled collection in a workspace.
func (e *Engine) PushAll(ctx context.Context, workspaceID string) (Result, error) {
	cols, err := e.store.Collections.DirtyUnsynced(ctx, workspaceID)
	if err != nil {
		return Result{}, err
	}

	res := Result{Success: true}
	for _, col := range cols {
		conflicts, pulled, pushed, err := e.syncOne(ctx, workspaceID, col)
		if err != nil {
			res.Success = false
			res.Errors = append(res.Errors, col.ID+": "+err.Error())
			continue
		}
		if len(conflicts) > 0 {
			res.Success = false
			res.Conflicts = append(res.Conflicts, internalerrors.ConflictError{
				CollectionID: col.ID, CollectionName: col.Name, Paths: conflicts,
			})
		}
		if pulled {
			res.Pulled = append(res.Pulled, col.ID)
		}
		if pushed {
			res.Pushed = append(res.Pushed, col.ID)
		}
	}
	return res, nil
}

// ForceKeepLocal resolves every currently conflicting path in a collection
// by pushing the local value (or deleting remotely, if local has none).
func (e *Engine) ForceKeepLocal(ctx context.Context, workspaceID, collectionID string) error {
	col, err := e.store.Collections.FindByID(ctx, collectionID)
	if err != nil {
		return err
	}
	localDocs, _, decisions, err := e.computeDecisions(ctx, col)
	if err != nil {
		return err
	}
	for p, d := range decisions {
		if d.action != actionConflict {
			continue
		}
		if content, ok := localDocs[p]; ok {
			h := GitBlobHash([]byte(content))
			decisions[p] = decision{action: actionPush, newBase: &h}
		} else {
			decisions[p] = decision{action: actionPushDelete}
		}
	}
	_, _, _, err = e.applyDecisions(ctx, workspaceID, col, localDocs, decisions)
	return err
}

// ForceKeepRemote resolves every currently conflicting path in a collection
// by pulling the remote value (or deleting locally, if remote has none).
func (e *Engine) ForceKeepRemote(ctx context.Context, workspaceID, collectionID string) error {
	col, err := e.store.Collections.FindByID(ctx, collectionID)
	if err != nil {
		return err
	}
	localDocs, remoteMap, decisions, err := e.computeDecisions(ctx, col)
	if err != nil {
		return err
	}
	for p, d := range decisions {
		if d.action != actionConflict {
			continue
		}
		if id, ok := remoteMap[p]; ok {
			idCopy := id
			decisions[p] = decision{action: actionPull, newBase: &idCopy}
		} else {
			decisions[p] = decision{action: actionPullDelete}
		}
	}
	_, _, _, err = e.applyDecisions(ctx, workspaceID, col, localDocs, decisions)
	return err
}

// PushSingleRequest commits one request's document directly, bypassing the
// merge table, and updates only that path's file_shas bookkeeping entry.
func (e *Engine) PushSingleRequest(ctx context.Context, collectionID, requestID string, sanitize bool) error {
	col, err := e.store.Collections.FindByID(ctx, collectionID)
	if err != nil {
		return err
	}
	req, err := e.store.Requests.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	relPath, err := serializer.RequestPath(ctx, e.store, req)
	if err != nil {
		return err
	}
	content, err := serializer.ExportRequestDocument(req, sanitize)
	if err != nil {
		return err
	}

	commitSHA, err := e.adapter.CommitMultipleFiles(ctx,
		map[string]string{col.ID + "/" + relPath: content}, nil, "push request "+req.Name)
	if err != nil {
		return err
	}

	hash := GitBlobHash([]byte(content))
	_, err = e.store.Collections.Update(ctx, col.ID, func(c *store.Collection) {
		if c.FileSHAs == nil {
			c.FileSHAs = map[string]store.FileSHAEntry{}
		}
		c.FileSHAs[relPath] = store.FileSHAEntry{ContentHash: hash, RemoteSHA: hash, CommitSHA: commitSHA}
	})
	return err
}

// DeleteRemoteCollection removes every remote path under a collection's
// directory and clears its local sync bookkeeping.
func (e *Engine) DeleteRemoteCollection(ctx context.Context, collectionID string) error {
	if err := e.adapter.DeleteDirectory(ctx, collectionID, "delete collection "+collectionID); err != nil {
		return err
	}
	_, err := e.store.Collections.Update(ctx, collectionID, func(c *store.Collection) {
		c.FileSHAs = map[string]store.FileSHAEntry{}
		c.RemoteSHA = ""
		c.RemoteSyncedAt = nil
	})
	return err
}

func (e *Engine) syncOne(ctx context.Context, workspaceID string, col store.Collection) (conflicts []string, pulled, pushed bool, err error) {
	start := time.Now()
	localDocs, _, decisions, err := e.computeDecisions(ctx, col)
	if err != nil {
		metrics.RecordSyncCollection("error", time.Since(start).Seconds())
		return nil, false, false, err
	}
	conflicts, pulled, pushed, err = e.applyDecisions(ctx, workspaceID, col, localDocs, decisions)
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case len(conflicts) > 0:
		result = "conflict"
	}
	metrics.RecordSyncCollection(result, time.Since(start).Seconds())
	return conflicts, pulled, pushed, err
}

// computeDecisions exports the collection locally, lists its remote
// directory, and classifies every path that exists on either side (or in
// the recorded merge base) against the three-way merge table.
func (e *Engine) computeDecisions(ctx context.Context, col store.Collection) (localDocs map[string]string, remoteMap map[string]string, decisions map[string]decision, err error) {
	localDocs, err = serializer.Export(ctx, e.store, col.ID, false)
	if err != nil {
		return nil, nil, nil, err
	}

	entries, err := e.adapter.ListDirectoryRecursive(ctx, col.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	prefix := col.ID + "/"
	remoteMap = map[string]string{}
	for _, en := range entries {
		if en.Type != "blob" {
			continue
		}
		remoteMap[strings.TrimPrefix(en.Path, prefix)] = en.ID
	}

	paths := map[string]bool{}
	for p := range localDocs {
		paths[p] = true
	}
	for p := range remoteMap {
		paths[p] = true
	}
	for p := range col.FileSHAs {
		paths[p] = true
	}

	decisions = map[string]decision{}
	for p := range paths {
		var localHash, remoteHash, baseHash *string
		if content, ok := localDocs[p]; ok {
			h := GitBlobHash([]byte(content))
			localHash = &h
		}
		if id, ok := remoteMap[p]; ok {
			remoteHash = &id
		}
		if entry, ok := col.FileSHAs[p]; ok {
			b := entry.RemoteSHA
			baseHash = &b
		}
		decisions[p] = classify(baseHash, localHash, remoteHash)
	}
	return localDocs, remoteMap, decisions, nil
}

// applyDecisions commits every push/push-delete path in one atomic commit,
// imports every pull/pull-delete path in one serializer.Import call, and
// persists the resulting file_shas bookkeeping. Conflicting paths are left
// untouched on both sides and returned for the caller to surface.
func (e *Engine) applyDecisions(ctx context.Context, workspaceID string, col store.Collection, localDocs map[string]string, decisions map[string]decision) (conflicts []string, pulled, pushed bool, err error) {
	importDocs := make(map[string]string, len(localDocs))
	for p, c := range localDocs {
		importDocs[p] = c
	}

	newShas := map[string]store.FileSHAEntry{}
	for p, entry := range col.FileSHAs {
		newShas[p] = entry
	}

	writes := map[string]string{}
	var deletes []string

	for p, d := range decisions {
		metrics.RecordSyncOperation(d.action)
		switch d.action {
		case actionPull:
			file, ferr := e.adapter.GetFile(ctx, col.ID+"/"+p)
			if ferr != nil {
				return nil, false, false, ferr
			}
			importDocs[p] = file.Content
			newShas[p] = store.FileSHAEntry{ContentHash: *d.newBase, RemoteSHA: *d.newBase}
			pulled = true
		case actionPush:
			writes[p] = localDocs[p]
			newShas[p] = store.FileSHAEntry{ContentHash: *d.newBase, RemoteSHA: *d.newBase}
			pushed = true
		case actionPushDelete:
			deletes = append(deletes, p)
			delete(newShas, p)
			pushed = true
		case actionPullDelete:
			delete(importDocs, p)
			delete(newShas, p)
			pulled = true
		case actionNoop:
			if d.newBase != nil {
				newShas[p] = store.FileSHAEntry{ContentHash: *d.newBase, RemoteSHA: *d.newBase}
			}
		case actionConflict:
			conflicts = append(conflicts, p)
		}
	}

	if len(writes) > 0 || len(deletes) > 0 {
		prefixedWrites := make(map[string]string, len(writes))
		for p, content := range writes {
			prefixedWrites[col.ID+"/"+p] = content
		}
		prefixedDeletes := make([]string, len(deletes))
		for i, p := range deletes {
			prefixedDeletes[i] = col.ID + "/" + p
		}
		commitSHA, cerr := e.adapter.CommitMultipleFiles(ctx, prefixedWrites, prefixedDeletes, "sync collection "+col.Name)
		if cerr != nil {
			return nil, false, false, cerr
		}
		for p := range writes {
			entry := newShas[p]
			entry.CommitSHA = commitSHA
			newShas[p] = entry
		}
	}

	if pulled {
		if _, ierr := serializer.Import(ctx, e.store, workspaceID, col.ID, importDocs); ierr != nil {
			return nil, false, false, ierr
		}
	}

	_, err = e.store.Collections.Update(ctx, col.ID, func(c *store.Collection) {
		c.FileSHAs = newShas
		if len(conflicts) == 0 {
			c.IsDirty = false
			now := time.Now().UTC()
			c.RemoteSyncedAt = &now
		}
	})
	return conflicts, pulled, pushed, err
}
