package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	internalerrors "github.com/restbench/core/internal/errors"
)

// WorkspaceRepo persists Workspace rows.
type WorkspaceRepo struct {
	db *sql.DB
}

func (r *WorkspaceRepo) Create(ctx context.Context, w Workspace) (Workspace, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	if w.Settings == nil {
		w.Settings = map[string]interface{}{}
	}

	settingsJSON, err := json.Marshal(w.Settings)
	if err != nil {
		return Workspace{}, internalerrors.SerializationError{Path: "workspace.settings", Message: "failed to encode settings", Err: err}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, order_key, settings, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, w.Order, string(settingsJSON), w.CreatedAt.Format(time.RFC3339Nano), w.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Workspace{}, internalerrors.ConstraintViolationError{Entity: "workspace", Message: err.Error()}
	}
	return w, nil
}

func (r *WorkspaceRepo) FindByID(ctx context.Context, id string) (Workspace, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, order_key, settings, created_at, updated_at FROM workspaces WHERE id = ?`, id)
	return scanWorkspace(row)
}

func (r *WorkspaceRepo) List(ctx context.Context) ([]Workspace, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, order_key, settings, created_at, updated_at FROM workspaces ORDER BY order_key ASC`)
	if err != nil {
		return nil, internalerrors.IOError{Op: "list workspaces", Err: err}
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (r *WorkspaceRepo) Update(ctx context.Context, id string, patch func(*Workspace)) (Workspace, error) {
	w, err := r.FindByID(ctx, id)
	if err != nil {
		return Workspace{}, err
	}
	patch(&w)
	w.UpdatedAt = time.Now().UTC()

	settingsJSON, err := json.Marshal(w.Settings)
	if err != nil {
		return Workspace{}, internalerrors.SerializationError{Path: "workspace.settings", Message: "failed to encode settings", Err: err}
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE workspaces SET name = ?, order_key = ?, settings = ?, updated_at = ? WHERE id = ?`,
		w.Name, w.Order, string(settingsJSON), w.UpdatedAt.Format(time.RFC3339Nano), id)
	if err != nil {
		return Workspace{}, internalerrors.IOError{Op: "update workspace", Err: err}
	}
	return w, nil
}

// Remove deletes a workspace. Requires at least one remaining workspace,
// per spec's lifecycle rule.
func (r *WorkspaceRepo) Remove(ctx context.Context, id string) error {
	all, err := r.List(ctx)
	if err != nil {
		return err
	}
	if len(all) <= 1 {
		return internalerrors.ValidationError{Field: "workspace", Message: "at least one workspace must remain"}
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return internalerrors.IOError{Op: "delete workspace", Err: err}
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return internalerrors.NotFoundError{Entity: "workspace", ID: id}
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkspace(row scanner) (Workspace, error) {
	var w Workspace
	var settingsJSON, createdAt, updatedAt string
	err := row.Scan(&w.ID, &w.Name, &w.Order, &settingsJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Workspace{}, internalerrors.NotFoundError{Entity: "workspace"}
	}
	if err != nil {
		return Workspace{}, internalerrors.IOError{Op: "scan workspace", Err: err}
	}

	w.Settings = map[string]interface{}{}
	if err := json.Unmarshal([]byte(settingsJSON), &w.Settings); err != nil {
		return Workspace{}, internalerrors.SerializationError{Path: "workspace.settings", Message: "failed to decode settings", Err: err}
	}
	w.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	w.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return w, nil
}
