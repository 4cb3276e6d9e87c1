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

// RequestRepo persists Request rows with transparent encryption of
// auth.bearer_token, auth.basic_username, auth.basic_password, and
// auth.api_key_value.
type RequestRepo struct {
	db   *sql.DB
	keys *crypto.Manager
}

func (r *RequestRepo) Create(ctx context.Context, req Request) (Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt, req.UpdatedAt = now, now

	encrypted, err := r.encryptAuth(req.Auth)
	if err != nil {
		return Request{}, err
	}

	headersJSON, queryJSON, authJSON, scriptsJSON, err := marshalRequestJSON(req, encrypted)
	if err != nil {
		return Request{}, err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO requests (id, collection_id, folder_id, name, order_key, method, url, headers,
			query_params, body, body_type, auth, scripts, created_at, updated_at)
		 VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.CollectionID, req.FolderID, req.Name, req.Order, string(req.Method), req.URL,
		headersJSON, queryJSON, req.Body, string(req.BodyType), authJSON, scriptsJSON,
		req.CreatedAt.Format(time.RFC3339Nano), req.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Request{}, internalerrors.ConstraintViolationError{Entity: "request", Message: err.Error()}
	}
	return req, nil
}

func (r *RequestRepo) FindByID(ctx context.Context, id string) (Request, error) {
	row := r.db.QueryRowContext(ctx, requestSelect+` WHERE id = ?`, id)
	req, err := scanRequest(row)
	if err != nil {
		return Request{}, err
	}
	if err := r.decryptAuth(&req.Auth); err != nil {
		return Request{}, err
	}
	return req, nil
}

func (r *RequestRepo) FindByParent(ctx context.Context, collectionID, folderID string) ([]Request, error) {
	rows, err := r.db.QueryContext(ctx,
		requestSelect+` WHERE collection_id = ? AND COALESCE(folder_id, '') = ? ORDER BY order_key ASC`,
		collectionID, folderID)
	if err != nil {
		return nil, internalerrors.IOError{Op: "list requests", Err: err}
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		if err := r.decryptAuth(&req.Auth); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func (r *RequestRepo) Update(ctx context.Context, id string, patch func(*Request)) (Request, error) {
	req, err := r.FindByID(ctx, id)
	if err != nil {
		return Request{}, err
	}
	patch(&req)
	req.UpdatedAt = time.Now().UTC()

	encrypted, err := r.encryptAuth(req.Auth)
	if err != nil {
		return Request{}, err
	}

	headersJSON, queryJSON, authJSON, scriptsJSON, err := marshalRequestJSON(req, encrypted)
	if err != nil {
		return Request{}, err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE requests SET folder_id = NULLIF(?, ''), name = ?, order_key = ?, method = ?, url = ?,
			headers = ?, query_params = ?, body = ?, body_type = ?, auth = ?, scripts = ?, updated_at = ?
		 WHERE id = ?`,
		req.FolderID, req.Name, req.Order, string(req.Method), req.URL, headersJSON, queryJSON,
		req.Body, string(req.BodyType), authJSON, scriptsJSON, req.UpdatedAt.Format(time.RFC3339Nano), id)
	if err != nil {
		return Request{}, internalerrors.IOError{Op: "update request", Err: err}
	}
	return req, nil
}

func (r *RequestRepo) Reorder(ctx context.Context, ids []string) error {
	return reorderRows(ctx, r.db, "requests", ids)
}

func (r *RequestRepo) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		return internalerrors.IOError{Op: "delete request", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internalerrors.NotFoundError{Entity: "request", ID: id}
	}
	return nil
}

func (r *RequestRepo) encryptAuth(auth AuthConfig) (AuthConfig, error) {
	out := auth
	var err error
	if out.BearerToken, err = r.keys.EncryptField(out.BearerToken); err != nil {
		return AuthConfig{}, err
	}
	if out.BasicUsername != "" {
		if out.BasicUsername, err = r.keys.EncryptField(out.BasicUsername); err != nil {
			return AuthConfig{}, err
		}
	}
	if out.BasicPassword, err = r.keys.EncryptField(out.BasicPassword); err != nil {
		return AuthConfig{}, err
	}
	if out.APIKeyValue, err = r.keys.EncryptField(out.APIKeyValue); err != nil {
		return AuthConfig{}, err
	}
	return out, nil
}

func (r *RequestRepo) decryptAuth(auth *AuthConfig) error {
	var err error
	if auth.BearerToken, err = r.keys.DecryptField(auth.BearerToken); err != nil {
		return err
	}
	if auth.BasicUsername, err = r.keys.DecryptField(auth.BasicUsername); err != nil {
		return err
	}
	if auth.BasicPassword, err = r.keys.DecryptField(auth.BasicPassword); err != nil {
		return err
	}
	if auth.APIKeyValue, err = r.keys.DecryptField(auth.APIKeyValue); err != nil {
		return err
	}
	return nil
}

const requestSelect = `SELECT id, collection_id, COALESCE(folder_id, ''), name, order_key, method, url,
	headers, query_params, body, body_type, auth, scripts, created_at, updated_at FROM requests`

func marshalRequestJSON(req Request, auth AuthConfig) (headers, query, authJSON, scripts string, err error) {
	h, err := json.Marshal(req.Headers)
	if err != nil {
		return "", "", "", "", internalerrors.SerializationError{Path: "request.headers", Message: "failed to encode", Err: err}
	}
	q, err := json.Marshal(req.QueryParams)
	if err != nil {
		return "", "", "", "", internalerrors.SerializationError{Path: "request.query_params", Message: "failed to encode", Err: err}
	}
	a, err := json.Marshal(auth)
	if err != nil {
		return "", "", "", "", internalerrors.SerializationError{Path: "request.auth", Message: "failed to encode", Err: err}
	}
	s, err := json.Marshal(req.Scripts)
	if err != nil {
		return "", "", "", "", internalerrors.SerializationError{Path: "request.scripts", Message: "failed to encode", Err: err}
	}
	return string(h), string(q), string(a), string(s), nil
}

func scanRequest(row scanner) (Request, error) {
	var req Request
	var method, headersJSON, queryJSON, authJSON, scriptsJSON, createdAt, updatedAt string

	err := row.Scan(&req.ID, &req.CollectionID, &req.FolderID, &req.Name, &req.Order, &method, &req.URL,
		&headersJSON, &queryJSON, &req.Body, &req.BodyType, &authJSON, &scriptsJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Request{}, internalerrors.NotFoundError{Entity: "request"}
	}
	if err != nil {
		return Request{}, internalerrors.IOError{Op: "scan request", Err: err}
	}
	req.Method = Method(method)

	if err := json.Unmarshal([]byte(headersJSON), &req.Headers); err != nil {
		return Request{}, internalerrors.SerializationError{Path: "request.headers", Message: "failed to decode", Err: err}
	}
	if err := json.Unmarshal([]byte(queryJSON), &req.QueryParams); err != nil {
		return Request{}, internalerrors.SerializationError{Path: "request.query_params", Message: "failed to decode", Err: err}
	}
	if err := json.Unmarshal([]byte(authJSON), &req.Auth); err != nil {
		return Request{}, internalerrors.SerializationError{Path: "request.auth", Message: "failed to decode", Err: err}
	}
	if err := json.Unmarshal([]byte(scriptsJSON), &req.Scripts); err != nil {
		return Request{}, internalerrors.SerializationError{Path: "request.scripts", Message: "failed to decode", Err: err}
	}
	req.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	req.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return req, nil
}
