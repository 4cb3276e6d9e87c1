package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	internalerrors "github.com/restbench/core/internal/errors"
)

// CollectionRepo persists Collection rows. Sync bookkeeping
// (file_shas, remote_sha) is opaque JSON/text and carries no
// field-level encryption of its own.
type CollectionRepo struct {
	db *sql.DB
}

func (r *CollectionRepo) Create(ctx context.Context, c Collection) (Collection, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Variables == nil {
		c.Variables = map[string]string{}
	}
	if c.FileSHAs == nil {
		c.FileSHAs = map[string]FileSHAEntry{}
	}

	varsJSON, envsJSON, shasJSON, err := marshalCollectionJSON(c)
	if err != nil {
		return Collection{}, err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO collections
			(id, workspace_id, name, order_key, sync_enabled, is_dirty, remote_sha, remote_synced_at,
			 variables, environment_ids, default_env_id, file_shas, created_at, updated_at)
		 VALUES (?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.WorkspaceID, c.Name, c.Order, boolToInt(c.SyncEnabled), boolToInt(c.IsDirty),
		c.RemoteSHA, nullableTime(c.RemoteSyncedAt), varsJSON, envsJSON, c.DefaultEnvID, shasJSON,
		c.CreatedAt.Format(time.RFC3339Nano), c.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Collection{}, internalerrors.ConstraintViolationError{Entity: "collection", Message: err.Error()}
	}
	return c, nil
}

func (r *CollectionRepo) FindByID(ctx context.Context, id string) (Collection, error) {
	row := r.db.QueryRowContext(ctx, collectionSelect+` WHERE id = ?`, id)
	return scanCollection(row)
}

func (r *CollectionRepo) FindByParent(ctx context.Context, workspaceID string) ([]Collection, error) {
	rows, err := r.db.QueryContext(ctx, collectionSelect+` WHERE workspace_id = ? ORDER BY order_key ASC`, workspaceID)
	if err != nil {
		return nil, internalerrors.IOError{Op: "list collections", Err: err}
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *CollectionRepo) Update(ctx context.Context, id string, patch func(*Collection)) (Collection, error) {
	c, err := r.FindByID(ctx, id)
	if err != nil {
		return Collection{}, err
	}
	patch(&c)
	c.UpdatedAt = time.Now().UTC()

	varsJSON, envsJSON, shasJSON, err := marshalCollectionJSON(c)
	if err != nil {
		return Collection{}, err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE collections SET workspace_id = NULLIF(?, ''), name = ?, order_key = ?, sync_enabled = ?,
			is_dirty = ?, remote_sha = ?, remote_synced_at = ?, variables = ?, environment_ids = ?,
			default_env_id = ?, file_shas = ?, updated_at = ? WHERE id = ?`,
		c.WorkspaceID, c.Name, c.Order, boolToInt(c.SyncEnabled), boolToInt(c.IsDirty),
		c.RemoteSHA, nullableTime(c.RemoteSyncedAt), varsJSON, envsJSON, c.DefaultEnvID, shasJSON,
		c.UpdatedAt.Format(time.RFC3339Nano), id)
	if err != nil {
		return Collection{}, internalerrors.IOError{Op: "update collection", Err: err}
	}
	return c, nil
}

// MarkDirty sets is_dirty = true for sync-enabled collections on any
// request/folder mutation.
func (r *CollectionRepo) MarkDirty(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE collections SET is_dirty = 1, updated_at = ? WHERE id = ? AND sync_enabled = 1`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return internalerrors.IOError{Op: "mark collection dirty", Err: err}
	}
	return nil
}

func (r *CollectionRepo) Reorder(ctx context.Context, ids []string) error {
	return reorderRows(ctx, r.db, "collections", ids)
}

// Remove deletes a collection; cascades to folders/requests/histories via FKs.
func (r *CollectionRepo) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return internalerrors.IOError{Op: "delete collection", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internalerrors.NotFoundError{Entity: "collection", ID: id}
	}
	return nil
}

// DirtyUnsynced returns dirty, sync-enabled collections for a workspace
// (or all workspaces, if workspaceID is empty), used by push_all.
func (r *CollectionRepo) DirtyUnsynced(ctx context.Context, workspaceID string) ([]Collection, error) {
	query := collectionSelect + ` WHERE sync_enabled = 1 AND is_dirty = 1`
	args := []interface{}{}
	if workspaceID != "" {
		query += ` AND workspace_id = ?`
		args = append(args, workspaceID)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, internalerrors.IOError{Op: "list dirty collections", Err: err}
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

const collectionSelect = `SELECT id, COALESCE(workspace_id, ''), name, order_key, sync_enabled, is_dirty,
	remote_sha, remote_synced_at, variables, environment_ids, default_env_id, file_shas, created_at, updated_at
	FROM collections`

func marshalCollectionJSON(c Collection) (vars, envs, shas string, err error) {
	v, err := json.Marshal(c.Variables)
	if err != nil {
		return "", "", "", internalerrors.SerializationError{Path: "collection.variables", Message: "failed to encode", Err: err}
	}
	e, err := json.Marshal(c.EnvironmentIDs)
	if err != nil {
		return "", "", "", internalerrors.SerializationError{Path: "collection.environment_ids", Message: "failed to encode", Err: err}
	}
	s, err := json.Marshal(c.FileSHAs)
	if err != nil {
		return "", "", "", internalerrors.SerializationError{Path: "collection.file_shas", Message: "failed to encode", Err: err}
	}
	return string(v), string(e), string(s), nil
}

func scanCollection(row scanner) (Collection, error) {
	var c Collection
	var varsJSON, envsJSON, shasJSON, createdAt, updatedAt string
	var remoteSyncedAt sql.NullString

	err := row.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Order, &c.SyncEnabled, &c.IsDirty,
		&c.RemoteSHA, &remoteSyncedAt, &varsJSON, &envsJSON, &c.DefaultEnvID, &shasJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Collection{}, internalerrors.NotFoundError{Entity: "collection"}
	}
	if err != nil {
		return Collection{}, internalerrors.IOError{Op: "scan collection", Err: err}
	}

	c.Variables = map[string]string{}
	if err := json.Unmarshal([]byte(varsJSON), &c.Variables); err != nil {
		return Collection{}, internalerrors.SerializationError{Path: "collection.variables", Message: "failed to decode", Err: err}
	}
	if err := json.Unmarshal([]byte(envsJSON), &c.EnvironmentIDs); err != nil {
		return Collection{}, internalerrors.SerializationError{Path: "collection.environment_ids", Message: "failed to decode", Err: err}
	}
	c.FileSHAs = map[string]FileSHAEntry{}
	if err := json.Unmarshal([]byte(shasJSON), &c.FileSHAs); err != nil {
		return Collection{}, internalerrors.SerializationError{Path: "collection.file_shas", Message: "failed to decode", Err: err}
	}
	if remoteSyncedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, remoteSyncedAt.String)
		c.RemoteSyncedAt = &t
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func reorderRows(ctx context.Context, db *sql.DB, table string, ids []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return internalerrors.IOError{Op: "begin reorder transaction", Err: err}
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET order_key = ? WHERE id = ?`, i, id); err != nil {
			return internalerrors.IOError{Op: "reorder " + table, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return internalerrors.IOError{Op: "commit reorder transaction", Err: err}
	}
	return nil
}
