package session

import "kyc-backend/internal/tokens"

// Starter adapts the Manager to the token validation flow: a successful
// validate opens (or resumes) the flow session for the request.
type Starter struct {
	Manager *Manager
}

// StartSession opens or resumes the session for a validated request and
// returns its current step.
func (s Starter) StartSession(req tokens.Request) string {
	sess := s.Manager.Start(req.Token, Identity{
		RequestID: req.ID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}, req.ExpiresAt)
	return string(sess.Step())
}

var _ tokens.SessionStarter = Starter{}
