package tokens

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestService(repo Repo) *Service {
	svc := NewService(repo, "https://kyc.example.com", time.Hour)
	return svc
}

func issue(t *testing.T, svc *Service) (Request, string) {
	t.Helper()
	req, link, err := svc.Issue(context.Background(), "Jane", "Doe", "jane@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return req, link
}

func TestIssue_TokenAndLinkShape(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	req, link := issue(t, svc)

	if len(req.Token) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(req.Token))
	}
	if !strings.HasPrefix(link, "https://kyc.example.com/kyc/verify?token=") {
		t.Fatalf("unexpected link: %s", link)
	}
	if req.Status != StatusPending {
		t.Fatalf("status = %s, want pending", req.Status)
	}
	if !req.ExpiresAt.After(req.CreatedAt) {
		t.Fatal("expiry must be after creation")
	}
}

func TestIssue_RejectsMissingFields(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	if _, _, err := svc.Issue(context.Background(), "", "Doe", "jane@example.com"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestValidate_ActivatesPendingOnce(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	req, _ := issue(t, svc)

	got, err := svc.Validate(context.Background(), req.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}

	// Re-validation of an active token resumes, it does not fail.
	again, err := svc.Validate(context.Background(), req.Token)
	if err != nil {
		t.Fatalf("second validate: %v", err)
	}
	if again.Status != StatusInProgress {
		t.Fatalf("status = %s", again.Status)
	}
}

func TestValidate_ConcurrentValidationsNeverBothActivate(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	req, _ := issue(t, svc)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Validate(context.Background(), req.Token)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("validation %d failed: %v", i, err)
		}
	}
	got, err := svc.Repo.GetByToken(context.Background(), req.Token)
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
}

func TestValidate_UnknownToken(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	if _, err := svc.Validate(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidate_ExpiryIsSticky(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	req, _ := issue(t, svc)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Validate(context.Background(), req.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// Even if the clock drifted back, an expired token stays expired.
	svc.now = time.Now
	if _, err := svc.Validate(context.Background(), req.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expired status must be sticky, got %v", err)
	}
}

func TestValidate_CompletedIsTerminal(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	req, _ := issue(t, svc)

	if _, err := svc.Validate(context.Background(), req.Token); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := svc.Finalize(context.Background(), req.Token); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := svc.Validate(context.Background(), req.Token); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestFinalize_IdempotentOnRetry(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	req, _ := issue(t, svc)
	if _, err := svc.Validate(context.Background(), req.Token); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := svc.Finalize(context.Background(), req.Token); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := svc.Finalize(context.Background(), req.Token); err != nil {
		t.Fatalf("finalize retry: %v", err)
	}
}

func TestFinalize_RejectsPendingRequest(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	req, _ := issue(t, svc)
	if err := svc.Finalize(context.Background(), req.Token); err == nil {
		t.Fatal("finalizing a never-validated request must fail")
	}
}

func TestActive_DoesNotTransition(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	req, _ := issue(t, svc)

	got, err := svc.Active(context.Background(), req.Token)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("active must not transition, status = %s", got.Status)
	}
}
