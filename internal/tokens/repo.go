package tokens

import "context"

// Repo defines persistence operations for verification requests.
//
// CompareAndSetStatus is the serialization point for the token lifecycle: it
// must atomically verify the current status and apply the transition, so two
// concurrent validations of one token can never both observe pending.
type Repo interface {
	Create(ctx context.Context, req Request) error
	GetByToken(ctx context.Context, token string) (Request, error)
	CompareAndSetStatus(ctx context.Context, id string, from, to Status) (bool, error)
}
