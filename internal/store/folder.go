package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	internalerrors "github.com/restbench/core/internal/errors"
)

// FolderRepo persists Folder rows, forming a self-referential tree per collection.
type FolderRepo struct {
	db *sql.DB
}

func (r *FolderRepo) Create(ctx context.Context, f Folder) (Folder, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now

	envsJSON, err := json.Marshal(f.EnvironmentIDs)
	if err != nil {
		return Folder{}, internalerrors.SerializationError{Path: "folder.environment_ids", Message: "failed to encode", Err: err}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO folders (id, collection_id, parent_folder_id, name, order_key, environment_ids, default_env_id, created_at, updated_at)
		 VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?)`,
		f.ID, f.CollectionID, f.ParentFolderID, f.Name, f.Order, string(envsJSON), f.DefaultEnvID,
		f.CreatedAt.Format(time.RFC3339Nano), f.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Folder{}, internalerrors.ConstraintViolationError{Entity: "folder", Message: err.Error()}
	}
	return f, nil
}

func (r *FolderRepo) FindByID(ctx context.Context, id string) (Folder, error) {
	row := r.db.QueryRowContext(ctx, folderSelect+` WHERE id = ?`, id)
	return scanFolder(row)
}

// FindByParent lists folders directly under parentFolderID within
// collectionID; pass an empty parentFolderID for collection-root folders.
func (r *FolderRepo) FindByParent(ctx context.Context, collectionID, parentFolderID string) ([]Folder, error) {
	rows, err := r.db.QueryContext(ctx,
		folderSelect+` WHERE collection_id = ? AND COALESCE(parent_folder_id, '') = ? ORDER BY order_key ASC`,
		collectionID, parentFolderID)
	if err != nil {
		return nil, internalerrors.IOError{Op: "list folders", Err: err}
	}
	defer rows.Close()

	var out []Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *FolderRepo) Update(ctx context.Context, id string, patch func(*Folder)) (Folder, error) {
	f, err := r.FindByID(ctx, id)
	if err != nil {
		return Folder{}, err
	}
	patch(&f)
	f.UpdatedAt = time.Now().UTC()

	envsJSON, err := json.Marshal(f.EnvironmentIDs)
	if err != nil {
		return Folder{}, internalerrors.SerializationError{Path: "folder.environment_ids", Message: "failed to encode", Err: err}
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE folders SET parent_folder_id = NULLIF(?, ''), name = ?, order_key = ?, environment_ids = ?,
			default_env_id = ?, updated_at = ? WHERE id = ?`,
		f.ParentFolderID, f.Name, f.Order, string(envsJSON), f.DefaultEnvID, f.UpdatedAt.Format(time.RFC3339Nano), id)
	if err != nil {
		return Folder{}, internalerrors.IOError{Op: "update folder", Err: err}
	}
	return f, nil
}

func (r *FolderRepo) Reorder(ctx context.Context, ids []string) error {
	return reorderRows(ctx, r.db, "folders", ids)
}

// Remove deletes a folder; descendant folders cascade via FK, contained
// requests are reparented to the collection root by the caller before
// this call (requests.folder_id ON DELETE SET NULL covers direct children).
func (r *FolderRepo) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return internalerrors.IOError{Op: "delete folder", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internalerrors.NotFoundError{Entity: "folder", ID: id}
	}
	return nil
}

const folderSelect = `SELECT id, collection_id, COALESCE(parent_folder_id, ''), name, order_key,
	environment_ids, default_env_id, created_at, updated_at FROM folders`

func scanFolder(row scanner) (Folder, error) {
	var f Folder
	var envsJSON, createdAt, updatedAt string
	err := row.Scan(&f.ID, &f.CollectionID, &f.ParentFolderID, &f.Name, &f.Order, &envsJSON, &f.DefaultEnvID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Folder{}, internalerrors.NotFoundError{Entity: "folder"}
	}
	if err != nil {
		return Folder{}, internalerrors.IOError{Op: "scan folder", Err: err}
	}
	if err := json.Unmarshal([]byte(envsJSON), &f.EnvironmentIDs); err != nil {
		return Folder{}, internalerrors.SerializationError{Path: "folder.environment_ids", Message: "failed to decode", Err: err}
	}
	f.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	f.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return f, nil
}
