package verifications

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("verification record not found")

// Repo defines persistence for verification records.
type Repo interface {
	Create(ctx context.Context, rec Record) error
	GetByID(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, limit, offset int) ([]Record, error)
	UpdateDisposition(ctx context.Context, id string, d Disposition) error
}
