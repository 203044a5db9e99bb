package verifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kyc-backend/internal/extract"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a verification record.
func (r *PGRepo) Create(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO verification_records (
    id,
    kyc_request_id,
    document_front_ref,
    document_back_ref,
    selfie_ref,
    fields_json,
    document_type,
    country,
    face_match_score,
    disposition,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	var fieldsJSON sql.NullString
	if rec.Fields != nil {
		data, err := json.Marshal(rec.Fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}
		fieldsJSON = sql.NullString{String: string(data), Valid: true}
	}

	disposition := rec.Disposition
	if disposition == "" {
		disposition = DispositionPending
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.RequestID,
		rec.DocumentFrontRef,
		nullIfEmpty(rec.DocumentBackRef),
		rec.SelfieRef,
		fieldsJSON,
		rec.DocumentType,
		nullIfEmpty(rec.Country),
		rec.FaceMatchScore,
		disposition,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

const recordColumns = `
id, kyc_request_id, document_front_ref, document_back_ref, selfie_ref,
fields_json, document_type, country, face_match_score, disposition,
created_at, updated_at`

// GetByID fetches one verification record.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM verification_records WHERE id = $1 LIMIT 1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// List returns records newest first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + recordColumns + ` FROM verification_records ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateDisposition sets the review outcome.
func (r *PGRepo) UpdateDisposition(ctx context.Context, id string, d Disposition) error {
	const query = `
UPDATE verification_records
SET disposition = $1, updated_at = $2
WHERE id = $3`
	res, err := r.DB.ExecContext(ctx, query, d, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec        Record
		backRef    sql.NullString
		fieldsJSON sql.NullString
		country    sql.NullString
		score      sql.NullFloat64
	)
	err := row.Scan(
		&rec.ID,
		&rec.RequestID,
		&rec.DocumentFrontRef,
		&backRef,
		&rec.SelfieRef,
		&fieldsJSON,
		&rec.DocumentType,
		&country,
		&score,
		&rec.Disposition,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.DocumentBackRef = backRef.String
	rec.Country = country.String
	if score.Valid {
		rec.FaceMatchScore = &score.Float64
	}
	if fieldsJSON.Valid && fieldsJSON.String != "" {
		var fields extract.Fields
		if err := json.Unmarshal([]byte(fieldsJSON.String), &fields); err != nil {
			return Record{}, fmt.Errorf("unmarshal fields: %w", err)
		}
		rec.Fields = &fields
	}
	return rec, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Repo = (*PGRepo)(nil)
