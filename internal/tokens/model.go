package tokens

import "time"

// Status is the lifecycle state of a verification request. Transitions are
// monotonic: pending → in_progress → completed, with expired reachable from
// pending or in_progress. Nothing leaves completed or expired.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusExpired    Status = "expired"
)

// Request is a durable verification request keyed by its single-use token.
type Request struct {
	ID        string
	Token     string
	FirstName string
	LastName  string
	Email     string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the request is past its expiry at the given time.
func (r Request) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
