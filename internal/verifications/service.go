package verifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kyc-backend/internal/session"
	"kyc-backend/internal/shared/metrics"
	"kyc-backend/internal/shared/telemetry"
	"kyc-backend/internal/tokens"
)

// Service owns the final submission: persisting the verification record and
// closing out the token and session.
type Service struct {
	Repo     Repo
	Tokens   *tokens.Service
	Sessions *session.Manager

	now func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo, tok *tokens.Service, mgr *session.Manager) *Service {
	return &Service{Repo: repo, Tokens: tok, Sessions: mgr, now: time.Now}
}

// Submit persists the verification for a session that reached face match.
// The record insert is the durability point; the subsequent status flip is
// best-effort, so a crash between the two leaves a completed record behind
// an in_progress token rather than the reverse.
func (s *Service) Submit(ctx context.Context, token string) (Record, error) {
	req, err := s.Tokens.Active(ctx, token)
	if err != nil {
		return Record{}, err
	}

	sess := s.Sessions.Get(token)
	if sess == nil {
		return Record{}, &session.ValidationError{Step: session.StepIntro, Msg: "no active session for token"}
	}
	payload, err := sess.Payload()
	if err != nil {
		return Record{}, err
	}
	if payload.FrontRef == "" || payload.SelfieRef == "" {
		return Record{}, &session.ValidationError{Step: session.StepFaceMatch, Msg: "document and selfie captures are required"}
	}

	now := s.now().UTC()
	fields := payload.Fields
	rec := Record{
		ID:               uuid.NewString(),
		RequestID:        req.ID,
		DocumentFrontRef: payload.FrontRef,
		DocumentBackRef:  payload.BackRef,
		SelfieRef:        payload.SelfieRef,
		Fields:           &fields,
		DocumentType:     string(payload.DocumentType),
		Country:          payload.Country,
		Disposition:      DispositionPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Repo.Create(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("create verification record: %w", err)
	}

	if err := s.Tokens.Finalize(ctx, token); err != nil {
		// The record is durable; the flip retries on the next submit or
		// is reconciled by an operator.
		telemetry.Warn("verifications.finalize_failed", map[string]any{
			"kyc_request_id": req.ID,
			"record_id":      rec.ID,
			"error":          err.Error(),
		})
	}

	if err := sess.Complete(); err == nil {
		s.Sessions.Remove(token)
	}

	metrics.IncVerificationSubmitted()
	telemetry.Info("verifications.submitted", map[string]any{
		"kyc_request_id": req.ID,
		"record_id":      rec.ID,
		"document_type":  rec.DocumentType,
	})
	return rec, nil
}

// Review sets the disposition of a submitted record.
func (s *Service) Review(ctx context.Context, id string, d Disposition) (Record, error) {
	if !d.Valid() {
		return Record{}, fmt.Errorf("unknown disposition %q", d)
	}
	if err := s.Repo.UpdateDisposition(ctx, id, d); err != nil {
		return Record{}, err
	}
	return s.Repo.GetByID(ctx, id)
}
