package tokens

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres. The conditional UPDATE in
// CompareAndSetStatus relies on row-level locking, so concurrent transitions
// on one token serialize in the database.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new verification request.
func (r *PGRepo) Create(ctx context.Context, req Request) error {
	const query = `
INSERT INTO kyc_requests (
    id,
    token,
    first_name,
    last_name,
    email,
    status,
    created_at,
    updated_at,
    expires_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	status := req.Status
	if status == "" {
		status = StatusPending
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		req.ID,
		req.Token,
		req.FirstName,
		req.LastName,
		req.Email,
		status,
		req.CreatedAt,
		req.UpdatedAt,
		req.ExpiresAt,
	)
	return err
}

// GetByToken fetches a request by its token string.
func (r *PGRepo) GetByToken(ctx context.Context, token string) (Request, error) {
	const query = `
SELECT id, token, first_name, last_name, email, status, created_at, updated_at, expires_at
FROM kyc_requests
WHERE token = $1
LIMIT 1`
	var req Request
	err := r.DB.QueryRowContext(ctx, query, token).Scan(
		&req.ID,
		&req.Token,
		&req.FirstName,
		&req.LastName,
		&req.Email,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

// CompareAndSetStatus transitions a request from one status to another.
// Returns false when the row was not in the expected status.
func (r *PGRepo) CompareAndSetStatus(ctx context.Context, id string, from, to Status) (bool, error) {
	const query = `
UPDATE kyc_requests
SET status = $1, updated_at = $2
WHERE id = $3 AND status = $4`
	res, err := r.DB.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, err
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return updated == 1, nil
}

var _ Repo = (*PGRepo)(nil)
