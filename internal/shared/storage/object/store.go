package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for saving and retrieving binary artifacts.
// Callers choose the storage key; the store returns the bytes written.
type ObjectStore interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	// URL returns a resolvable reference for a stored artifact. The reference
	// is what operators later use to view the evidence.
	URL(storageKey string) string
}
