package verifications

import (
	"time"

	"kyc-backend/internal/extract"
)

// Disposition is the review outcome of a submitted verification.
type Disposition string

const (
	DispositionPending  Disposition = "pending"
	DispositionApproved Disposition = "approved"
	DispositionRejected Disposition = "rejected"
)

// Valid reports whether d names a known disposition.
func (d Disposition) Valid() bool {
	switch d {
	case DispositionPending, DispositionApproved, DispositionRejected:
		return true
	}
	return false
}

// Record is the durable result of one completed verification flow. Face
// match scoring is not performed server-side, so FaceMatchScore stays nil
// until a reviewer tool writes one.
type Record struct {
	ID               string          `json:"id"`
	RequestID        string          `json:"kycRequestId"`
	DocumentFrontRef string          `json:"documentFrontRef"`
	DocumentBackRef  string          `json:"documentBackRef,omitempty"`
	SelfieRef        string          `json:"selfieRef"`
	Fields           *extract.Fields `json:"fields,omitempty"`
	DocumentType     string          `json:"documentType"`
	Country          string          `json:"country,omitempty"`
	FaceMatchScore   *float64        `json:"faceMatchScore,omitempty"`
	Disposition      Disposition     `json:"disposition"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}
