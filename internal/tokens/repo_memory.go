package tokens

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo. A single mutex is the
// serialization point for CompareAndSetStatus.
type MemoryRepo struct {
	mu      sync.RWMutex
	byToken map[string]*Request
	byID    map[string]*Request
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byToken: make(map[string]*Request),
		byID:    make(map[string]*Request),
	}
}

// Create stores a new verification request.
func (r *MemoryRepo) Create(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := req
	r.byToken[req.Token] = &stored
	r.byID[req.ID] = &stored
	return nil
}

// GetByToken returns the request for a token.
func (r *MemoryRepo) GetByToken(ctx context.Context, token string) (Request, error) {
	if err := ctx.Err(); err != nil {
		return Request{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.byToken[token]
	if !ok {
		return Request{}, ErrNotFound
	}
	return *req, nil
}

// CompareAndSetStatus transitions a request from one status to another under
// the repo lock.
func (r *MemoryRepo) CompareAndSetStatus(ctx context.Context, id string, from, to Status) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if req.Status != from {
		return false, nil
	}
	req.Status = to
	req.UpdatedAt = time.Now().UTC()
	return true, nil
}

var _ Repo = (*MemoryRepo)(nil)
