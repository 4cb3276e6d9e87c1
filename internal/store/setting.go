package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/restbench/core/internal/crypto"
	internalerrors "github.com/restbench/core/internal/errors"
)

// SettingRepo persists two-tier (global/workspace) key-value settings,
// with full-field encryption for keys in SensitiveSettingKeys.
type SettingRepo struct {
	db   *sql.DB
	keys *crypto.Manager
}

// Get reads workspaceID[key], falling back to global[key] if unset.
// workspaceID may be empty to read the global scope directly.
func (r *SettingRepo) Get(ctx context.Context, workspaceID, key string) (string, error) {
	if workspaceID != "" {
		if v, ok, err := r.getScoped(ctx, workspaceID, key); err != nil {
			return "", err
		} else if ok {
			return v, nil
		}
	}
	v, ok, err := r.getScoped(ctx, "", key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", internalerrors.NotFoundError{Entity: "setting", ID: key}
	}
	return v, nil
}

func (r *SettingRepo) getScoped(ctx context.Context, workspaceID, key string) (string, bool, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ? AND workspace_id = ?`, key, workspaceID).Scan(&raw)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, internalerrors.IOError{Op: "read setting", Err: err}
	}

	if SensitiveSettingKeys[key] {
		decrypted, decErr := r.keys.DecryptField(raw)
		if decErr == nil {
			return decrypted, true, nil
		}
		// Pre-migration rows may still be raw; tolerate and return as-is.
		return raw, true, nil
	}
	return raw, true, nil
}

// Set writes key in the given scope (workspaceID empty means global).
// Rejects read-only keys (encryption.*, app.version).
func (r *SettingRepo) Set(ctx context.Context, workspaceID, key, value string) error {
	for _, prefix := range ReadOnlySettingPrefixes {
		if strings.HasPrefix(key, prefix) {
			return internalerrors.ValidationError{Field: key, Message: "read-only setting cannot be modified"}
		}
	}

	stored := value
	if SensitiveSettingKeys[key] {
		encrypted, err := r.keys.EncryptField(value)
		if err != nil {
			return err
		}
		stored = encrypted
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, workspace_id, value) VALUES (?, ?, ?)
		 ON CONFLICT(key, workspace_id) DO UPDATE SET value = excluded.value`,
		key, workspaceID, stored)
	if err != nil {
		return internalerrors.IOError{Op: "write setting", Err: err}
	}
	return nil
}

// GetAll returns every key in scope (workspace overlaying global),
// filtering out sensitive keys entirely.
func (r *SettingRepo) GetAll(ctx context.Context, workspaceID string) (map[string]string, error) {
	out := map[string]string{}

	globalRows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE workspace_id = ''`)
	if err != nil {
		return nil, internalerrors.IOError{Op: "list global settings", Err: err}
	}
	defer globalRows.Close()
	for globalRows.Next() {
		var key, value string
		if err := globalRows.Scan(&key, &value); err != nil {
			return nil, internalerrors.IOError{Op: "scan global setting", Err: err}
		}
		if !SensitiveSettingKeys[key] {
			out[key] = value
		}
	}

	if workspaceID == "" {
		return out, nil
	}

	scopedRows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return nil, internalerrors.IOError{Op: "list workspace settings", Err: err}
	}
	defer scopedRows.Close()
	for scopedRows.Next() {
		var key, value string
		if err := scopedRows.Scan(&key, &value); err != nil {
			return nil, internalerrors.IOError{Op: "scan workspace setting", Err: err}
		}
		if !SensitiveSettingKeys[key] {
			out[key] = value
		}
	}
	return out, nil
}
