package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	internalerrors "github.com/restbench/core/internal/errors"
)

// HistoryRepo persists RequestHistory rows. Inserts are best-effort from
// the caller's perspective: a failure here must never fail the request
// that produced it.
type HistoryRepo struct {
	db *sql.DB
}

func (r *HistoryRepo) Create(ctx context.Context, h RequestHistory) (RequestHistory, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.ExecutedAt.IsZero() {
		h.ExecutedAt = time.Now().UTC()
	}

	reqHeaders, err := json.Marshal(h.RequestHeaders)
	if err != nil {
		return RequestHistory{}, internalerrors.SerializationError{Path: "history.request_headers", Message: "failed to encode", Err: err}
	}
	respHeaders, err := json.Marshal(h.ResponseHeaders)
	if err != nil {
		return RequestHistory{}, internalerrors.SerializationError{Path: "history.response_headers", Message: "failed to encode", Err: err}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO request_history (id, request_id, method, url, status, request_headers, request_body,
			response_headers, response_body, duration_ms, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.RequestID, string(h.Method), h.URL, h.Status, string(reqHeaders), h.RequestBody,
		string(respHeaders), h.ResponseBody, h.DurationMS, h.ExecutedAt.Format(time.RFC3339Nano))
	if err != nil {
		return RequestHistory{}, internalerrors.IOError{Op: "insert request history", Err: err}
	}
	return h, nil
}

func (r *HistoryRepo) FindByParent(ctx context.Context, requestID string) ([]RequestHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, request_id, method, url, status, request_headers, request_body, response_headers,
			response_body, duration_ms, executed_at FROM request_history WHERE request_id = ? ORDER BY executed_at DESC`,
		requestID)
	if err != nil {
		return nil, internalerrors.IOError{Op: "list request history", Err: err}
	}
	defer rows.Close()

	var out []RequestHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (r *HistoryRepo) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM request_history WHERE id = ?`, id)
	if err != nil {
		return internalerrors.IOError{Op: "delete request history", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internalerrors.NotFoundError{Entity: "request_history", ID: id}
	}
	return nil
}

// Prune deletes history rows older than retentionDays, clamped [1..365].
func (r *HistoryRepo) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		retentionDays = 1
	}
	if retentionDays > 365 {
		retentionDays = 365
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	res, err := r.db.ExecContext(ctx, `DELETE FROM request_history WHERE executed_at < ?`, cutoff.Format(time.RFC3339Nano))
	if err != nil {
		return 0, internalerrors.IOError{Op: "prune request history", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanHistory(row scanner) (RequestHistory, error) {
	var h RequestHistory
	var method, reqHeaders, respHeaders, executedAt string

	err := row.Scan(&h.ID, &h.RequestID, &method, &h.URL, &h.Status, &reqHeaders, &h.RequestBody,
		&respHeaders, &h.ResponseBody, &h.DurationMS, &executedAt)
	if err == sql.ErrNoRows {
		return RequestHistory{}, internalerrors.NotFoundError{Entity: "request_history"}
	}
	if err != nil {
		return RequestHistory{}, internalerrors.IOError{Op: "scan request history", Err: err}
	}
	h.Method = Method(method)

	h.RequestHeaders = map[string]string{}
	if err := json.Unmarshal([]byte(reqHeaders), &h.RequestHeaders); err != nil {
		return RequestHistory{}, internalerrors.SerializationError{Path: "history.request_headers", Message: "failed to decode", Err: err}
	}
	h.ResponseHeaders = map[string]string{}
	if err := json.Unmarshal([]byte(respHeaders), &h.ResponseHeaders); err != nil {
		return RequestHistory{}, internalerrors.SerializationError{Path: "history.response_headers", Message: "failed to decode", Err: err}
	}
	h.ExecutedAt, _ = time.Parse(time.RFC3339Nano, executedAt)
	return h, nil
}
