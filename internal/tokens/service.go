package tokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"kyc-backend/internal/shared/metrics"
)

const tokenBytes = 32

// Service contains the token lifecycle logic: issuance, single-use
// validation, and best-effort finalization.
type Service struct {
	Repo    Repo
	BaseURL string
	TTL     time.Duration

	now func() time.Time
}

// NewService constructs a Service. A zero ttl falls back to seven days.
func NewService(repo Repo, baseURL string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{
		Repo:    repo,
		BaseURL: strings.TrimRight(baseURL, "/"),
		TTL:     ttl,
		now:     time.Now,
	}
}

// Issue creates a pending verification request and returns it together with
// the shareable verification link.
func (s *Service) Issue(ctx context.Context, firstName, lastName, email string) (Request, string, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	email = strings.ToLower(strings.TrimSpace(email))
	if firstName == "" || lastName == "" || email == "" {
		return Request{}, "", fmt.Errorf("%w: first name, last name and email are required", ErrInvalidInput)
	}

	token, err := generateToken()
	if err != nil {
		return Request{}, "", fmt.Errorf("generate token: %w", err)
	}

	now := s.now().UTC()
	req := Request{
		ID:        uuid.NewString(),
		Token:     token,
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.TTL),
	}
	if err := s.Repo.Create(ctx, req); err != nil {
		return Request{}, "", err
	}

	link := fmt.Sprintf("%s/kyc/verify?token=%s", s.BaseURL, token)
	return req, link, nil
}

// Validate performs the single-use activation check for a token. A pending
// request moves to in_progress exactly once; a concurrent validation that
// loses the race observes the winner's transition. Expiry flips status to
// expired and is sticky.
func (s *Service) Validate(ctx context.Context, token string) (Request, error) {
	req, err := s.Repo.GetByToken(ctx, token)
	if err != nil {
		return Request{}, err
	}

	if req.Expired(s.now()) {
		if req.Status == StatusPending || req.Status == StatusInProgress {
			if _, err := s.Repo.CompareAndSetStatus(ctx, req.ID, req.Status, StatusExpired); err != nil {
				return Request{}, err
			}
		}
		return Request{}, ErrExpired
	}

	switch req.Status {
	case StatusCompleted:
		return Request{}, ErrAlreadyCompleted
	case StatusExpired:
		return Request{}, ErrExpired
	case StatusInProgress:
		return req, nil
	case StatusPending:
		ok, err := s.Repo.CompareAndSetStatus(ctx, req.ID, StatusPending, StatusInProgress)
		if err != nil {
			return Request{}, err
		}
		if ok {
			metrics.IncVerificationStarted()
			req.Status = StatusInProgress
			return req, nil
		}
		// Lost the activation race: re-read and report what the winner
		// left behind.
		current, err := s.Repo.GetByToken(ctx, token)
		if err != nil {
			return Request{}, err
		}
		switch current.Status {
		case StatusCompleted:
			return Request{}, ErrAlreadyCompleted
		case StatusExpired:
			return Request{}, ErrExpired
		default:
			return current, nil
		}
	default:
		return Request{}, fmt.Errorf("unknown status %q", req.Status)
	}
}

// Active resolves a token to its request without transitioning status. Used
// by uploads and submission, which run mid-session.
func (s *Service) Active(ctx context.Context, token string) (Request, error) {
	req, err := s.Repo.GetByToken(ctx, token)
	if err != nil {
		return Request{}, err
	}
	if req.Expired(s.now()) || req.Status == StatusExpired {
		return Request{}, ErrExpired
	}
	if req.Status == StatusCompleted {
		return Request{}, ErrAlreadyCompleted
	}
	return req, nil
}

// Finalize flips an in-progress request to completed after its artifact set
// has been durably stored. Idempotent on retry.
func (s *Service) Finalize(ctx context.Context, token string) error {
	req, err := s.Repo.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	ok, err := s.Repo.CompareAndSetStatus(ctx, req.ID, StatusInProgress, StatusCompleted)
	if err != nil {
		return err
	}
	if !ok {
		current, err := s.Repo.GetByToken(ctx, token)
		if err != nil {
			return err
		}
		if current.Status == StatusCompleted {
			return nil
		}
		return fmt.Errorf("cannot complete request in status %q", current.Status)
	}
	return nil
}

func generateToken() (string, error) {
	var b [tokenBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
