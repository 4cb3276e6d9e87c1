package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/restbench/core/internal/crypto"
	internalerrors "github.com/restbench/core/internal/errors"
)

// EnvironmentRepo persists Environment rows with transparent encryption
// of each variable's value.
type EnvironmentRepo struct {
	db   *sql.DB
	keys *crypto.Manager
}

func (r *EnvironmentRepo) Create(ctx context.Context, env Environment) (Environment, error) {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	env.CreatedAt, env.UpdatedAt = now, now
	if env.VaultSynced {
		env.Variables = nil
	}

	varsJSON, err := r.marshalEncrypted(env.Variables)
	if err != nil {
		return Environment{}, err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO environments (id, workspace_id, name, is_active, order_key, variables, vault_synced, vault_path, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		env.ID, env.WorkspaceID, env.Name, boolToInt(env.IsActive), env.Order, varsJSON,
		boolToInt(env.VaultSynced), env.VaultPath, env.CreatedAt.Format(time.RFC3339Nano), env.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Environment{}, internalerrors.ConstraintViolationError{Entity: "environment", Message: err.Error()}
	}
	return env, nil
}

func (r *EnvironmentRepo) FindByID(ctx context.Context, id string) (Environment, error) {
	row := r.db.QueryRowContext(ctx, environmentSelect+` WHERE id = ?`, id)
	env, err := scanEnvironment(row)
	if err != nil {
		return Environment{}, err
	}
	if err := r.decrypt(env.Variables); err != nil {
		return Environment{}, err
	}
	return env, nil
}

func (r *EnvironmentRepo) FindByParent(ctx context.Context, workspaceID string) ([]Environment, error) {
	rows, err := r.db.QueryContext(ctx, environmentSelect+` WHERE workspace_id = ? ORDER BY order_key ASC`, workspaceID)
	if err != nil {
		return nil, internalerrors.IOError{Op: "list environments", Err: err}
	}
	defer rows.Close()

	var out []Environment
	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			return nil, err
		}
		if err := r.decrypt(env.Variables); err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

// ActiveEnvironment returns the single is_active environment for a
// workspace, if any.
func (r *EnvironmentRepo) ActiveEnvironment(ctx context.Context, workspaceID string) (*Environment, error) {
	row := r.db.QueryRowContext(ctx, environmentSelect+` WHERE workspace_id = ? AND is_active = 1`, workspaceID)
	env, err := scanEnvironment(row)
	if _, ok := err.(internalerrors.NotFoundError); ok {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.decrypt(env.Variables); err != nil {
		return nil, err
	}
	return &env, nil
}

// Activate clears is_active on every environment in the workspace, then
// sets it on id, inside a single transaction, so no two environments in
// one workspace ever observe is_active = true simultaneously.
func (r *EnvironmentRepo) Activate(ctx context.Context, workspaceID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return internalerrors.IOError{Op: "begin activate transaction", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE environments SET is_active = 0 WHERE workspace_id = ?`, workspaceID); err != nil {
		return internalerrors.IOError{Op: "clear active environment", Err: err}
	}
	res, err := tx.ExecContext(ctx, `UPDATE environments SET is_active = 1 WHERE id = ? AND workspace_id = ?`, id, workspaceID)
	if err != nil {
		return internalerrors.IOError{Op: "set active environment", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internalerrors.NotFoundError{Entity: "environment", ID: id}
	}
	return tx.Commit()
}

// Deactivate clears is_active on a single environment.
func (r *EnvironmentRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE environments SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return internalerrors.IOError{Op: "deactivate environment", Err: err}
	}
	return nil
}

func (r *EnvironmentRepo) Update(ctx context.Context, id string, patch func(*Environment)) (Environment, error) {
	env, err := r.FindByID(ctx, id)
	if err != nil {
		return Environment{}, err
	}
	patch(&env)
	env.UpdatedAt = time.Now().UTC()
	if env.VaultSynced {
		env.Variables = nil
	}

	varsJSON, err := r.marshalEncrypted(env.Variables)
	if err != nil {
		return Environment{}, err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE environments SET name = ?, order_key = ?, variables = ?, vault_synced = ?, vault_path = ?, updated_at = ?
		 WHERE id = ?`,
		env.Name, env.Order, varsJSON, boolToInt(env.VaultSynced), env.VaultPath, env.UpdatedAt.Format(time.RFC3339Nano), id)
	if err != nil {
		return Environment{}, internalerrors.IOError{Op: "update environment", Err: err}
	}
	return env, nil
}

// SetVariable encrypts and persists a single variable's value, used by
// the script executor's post-response write path for non-vault environments.
func (r *EnvironmentRepo) SetVariable(ctx context.Context, id, key, value string) error {
	env, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	found := false
	for i := range env.Variables {
		if env.Variables[i].Key == key {
			env.Variables[i].Value = value
			found = true
			break
		}
	}
	if !found {
		env.Variables = append(env.Variables, EnvironmentVariable{Key: key, Value: value, Enabled: true})
	}
	_, err = r.Update(ctx, id, func(e *Environment) { e.Variables = env.Variables })
	return err
}

func (r *EnvironmentRepo) Reorder(ctx context.Context, ids []string) error {
	return reorderRows(ctx, r.db, "environments", ids)
}

func (r *EnvironmentRepo) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM environments WHERE id = ?`, id)
	if err != nil {
		return internalerrors.IOError{Op: "delete environment", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internalerrors.NotFoundError{Entity: "environment", ID: id}
	}
	return nil
}

func (r *EnvironmentRepo) marshalEncrypted(vars []EnvironmentVariable) (string, error) {
	encrypted := make([]EnvironmentVariable, len(vars))
	for i, v := range vars {
		ciphertext, err := r.keys.EncryptField(v.Value)
		if err != nil {
			return "", err
		}
		encrypted[i] = EnvironmentVariable{Key: v.Key, Value: ciphertext, Enabled: v.Enabled}
	}
	b, err := json.Marshal(encrypted)
	if err != nil {
		return "", internalerrors.SerializationError{Path: "environment.variables", Message: "failed to encode", Err: err}
	}
	return string(b), nil
}

func (r *EnvironmentRepo) decrypt(vars []EnvironmentVariable) error {
	for i := range vars {
		plain, err := r.keys.DecryptField(vars[i].Value)
		if err != nil {
			return err
		}
		vars[i].Value = plain
	}
	return nil
}

const environmentSelect = `SELECT id, workspace_id, name, is_active, order_key, variables, vault_synced,
	vault_path, created_at, updated_at FROM environments`

func scanEnvironment(row scanner) (Environment, error) {
	var env Environment
	var varsJSON, createdAt, updatedAt string

	err := row.Scan(&env.ID, &env.WorkspaceID, &env.Name, &env.IsActive, &env.Order, &varsJSON,
		&env.VaultSynced, &env.VaultPath, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Environment{}, internalerrors.NotFoundError{Entity: "environment"}
	}
	if err != nil {
		return Environment{}, internalerrors.IOError{Op: "scan environment", Err: err}
	}
	if err := json.Unmarshal([]byte(varsJSON), &env.Variables); err != nil {
		return Environment{}, internalerrors.SerializationError{Path: "environment.variables", Message: "failed to decode", Err: err}
	}
	env.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	env.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return env, nil
}
