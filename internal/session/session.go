// Package session implements the guided verification flow as an explicit
// state machine. Each step's state carries exactly the data that step
// guarantees, so later steps never see half-initialized values.
package session

import (
	"strings"
	"sync"
	"time"

	"kyc-backend/internal/extract"
)

// Step identifies a stage of the verification flow.
type Step string

const (
	StepIntro          Step = "intro"
	StepDocumentSelect Step = "document_select"
	StepDocumentUpload Step = "document_upload"
	StepOCRConfirm     Step = "ocr_confirm"
	StepSelfie         Step = "selfie"
	StepFaceMatch      Step = "face_match"
	StepComplete       Step = "complete"
)

// DocumentType enumerates the accepted identity documents.
type DocumentType string

const (
	DocTypeIDCard        DocumentType = "id_card"
	DocTypeDriverLicense DocumentType = "driver_license"
	DocTypePassport      DocumentType = "passport"
)

// Valid reports whether t names a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocTypeIDCard, DocTypeDriverLicense, DocTypePassport:
		return true
	}
	return false
}

// RequiredSides lists the captures a document type needs, in capture order.
func (t DocumentType) RequiredSides() []Side {
	if t == DocTypePassport {
		return []Side{SideMain}
	}
	return []Side{SideFront, SideBack}
}

// Side identifies one face of a document.
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
	SideMain  Side = "main"
)

// Capture is one stored document image plus the transient raster the
// recognition step consumes. The raster never reaches storage.
type Capture struct {
	Ref       string
	OCRRaster []byte
}

// Identity is the requester data bound to the session at validation time.
type Identity struct {
	RequestID string
	FirstName string
	LastName  string
	Email     string
}

// stepState is the tagged union of per-step data. Exactly one variant is
// live at a time.
type stepState interface {
	step() Step
}

type introState struct{}

type documentSelectState struct{}

type documentUploadState struct {
	country  string
	docType  DocumentType
	captures map[Side]Capture
}

type ocrConfirmState struct {
	country  string
	docType  DocumentType
	captures map[Side]Capture
	fields   *extract.Fields
}

type selfieState struct {
	country  string
	docType  DocumentType
	captures map[Side]Capture
	fields   extract.Fields
}

type faceMatchState struct {
	country   string
	docType   DocumentType
	captures  map[Side]Capture
	fields    extract.Fields
	selfieRef string
}

type completeState struct{}

func (introState) step() Step          { return StepIntro }
func (documentSelectState) step() Step { return StepDocumentSelect }
func (documentUploadState) step() Step { return StepDocumentUpload }
func (ocrConfirmState) step() Step     { return StepOCRConfirm }
func (selfieState) step() Step         { return StepSelfie }
func (faceMatchState) step() Step      { return StepFaceMatch }
func (completeState) step() Step       { return StepComplete }

const defaultAutoAdvanceDelay = 800 * time.Millisecond

// Session is one user's in-flight verification. All methods are safe for
// concurrent use.
type Session struct {
	mu sync.Mutex

	Token    string
	Identity Identity

	state     stepState
	autoTimer *time.Timer
	autoDelay time.Duration
}

// New constructs a session at the intro step.
func New(token string, identity Identity) *Session {
	return &Session{
		Token:     token,
		Identity:  identity,
		state:     introState{},
		autoDelay: defaultAutoAdvanceDelay,
	}
}

// Step returns the current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.step()
}

// Advance moves to the next step when the current step's preconditions hold.
// A failed precondition leaves the session untouched.
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked()
}

func (s *Session) advanceLocked() error {
	switch st := s.state.(type) {
	case introState:
		s.state = documentSelectState{}
		return nil
	case documentSelectState:
		return s.failf("select a document type first")
	case documentUploadState:
		if missing := missingSides(st.docType, st.captures); len(missing) > 0 {
			return s.failf("missing captures: %s", joinSides(missing))
		}
		s.cancelAutoLocked()
		s.state = ocrConfirmState{country: st.country, docType: st.docType, captures: st.captures}
		return nil
	case ocrConfirmState:
		return s.failf("confirm the extracted fields first")
	case selfieState:
		return s.failf("capture a selfie first")
	case faceMatchState:
		return s.failf("submit the verification to finish")
	case completeState:
		return s.failf("verification already complete")
	default:
		return s.failf("unknown step")
	}
}

// SelectDocument records the country and document type. Valid at the select
// step and again at the upload step; re-selecting discards any captures and
// cancels a pending auto-advance.
func (s *Session) SelectDocument(country string, docType DocumentType) error {
	if !docType.Valid() {
		return &ValidationError{Step: s.Step(), Msg: "unknown document type"}
	}
	if strings.TrimSpace(country) == "" {
		return &ValidationError{Step: s.Step(), Msg: "country is required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state.(type) {
	case documentSelectState, documentUploadState:
		s.cancelAutoLocked()
		s.state = documentUploadState{
			country:  country,
			docType:  docType,
			captures: make(map[Side]Capture),
		}
		return nil
	default:
		return s.failf("document selection is not available at this step")
	}
}

// AttachSide stores a captured document side. When the last required side
// arrives the session schedules a short auto-advance to the confirm step,
// giving the user a beat to retake.
func (s *Session) AttachSide(side Side, c Capture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state.(documentUploadState)
	if !ok {
		return s.failf("document capture is not available at this step")
	}
	if !sideRequired(st.docType, side) {
		return s.failf("side %q not required for %s", side, st.docType)
	}
	st.captures[side] = c
	if len(missingSides(st.docType, st.captures)) == 0 {
		s.scheduleAutoLocked()
	}
	return nil
}

// RetakeSide discards a capture so it can be taken again, cancelling any
// pending auto-advance.
func (s *Session) RetakeSide(side Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state.(documentUploadState)
	if !ok {
		return s.failf("retake is not available at this step")
	}
	s.cancelAutoLocked()
	delete(st.captures, side)
	return nil
}

// FrontRaster hands out the recognition raster for the primary side. Only
// the confirm step may read it.
func (s *Session) FrontRaster() ([]byte, DocumentType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state.(ocrConfirmState)
	if !ok {
		return nil, "", s.failf("recognition is not available at this step")
	}
	primary := st.docType.RequiredSides()[0]
	return st.captures[primary].OCRRaster, st.docType, nil
}

// SetExtractedFields records the recognition result so the confirm step can
// prefill the form. Passing nil marks the degraded manual-entry path.
func (s *Session) SetExtractedFields(fields *extract.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state.(ocrConfirmState)
	if !ok {
		return s.failf("recognition is not available at this step")
	}
	st.fields = fields
	s.state = st
	return nil
}

// ConfirmFields accepts the user-reviewed field values and advances to the
// selfie step. Recognition need not have run, and the user may decline to
// fill anything; an all-empty field set is confirmed as-is for manual review.
func (s *Session) ConfirmFields(fields extract.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state.(ocrConfirmState)
	if !ok {
		return s.failf("field confirmation is not available at this step")
	}
	// Rasters are only needed for recognition; drop them once confirmed.
	for side, c := range st.captures {
		c.OCRRaster = nil
		st.captures[side] = c
	}
	s.state = selfieState{country: st.country, docType: st.docType, captures: st.captures, fields: fields}
	return nil
}

// AttachSelfie stores the selfie reference and advances to face match.
func (s *Session) AttachSelfie(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state.(selfieState)
	if !ok {
		return s.failf("selfie capture is not available at this step")
	}
	s.state = faceMatchState{
		country:   st.country,
		docType:   st.docType,
		captures:  st.captures,
		fields:    st.fields,
		selfieRef: ref,
	}
	return nil
}

// Payload is the submission view of a session that reached face match.
type Payload struct {
	DocumentType DocumentType
	Country      string
	FrontRef     string
	BackRef      string
	SelfieRef    string
	Fields       extract.Fields
}

// Payload returns the data needed to submit the verification. Only valid at
// the face match step.
func (s *Session) Payload() (Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state.(faceMatchState)
	if !ok {
		return Payload{}, s.failf("submission is not available at this step")
	}
	p := Payload{
		DocumentType: st.docType,
		Country:      st.country,
		SelfieRef:    st.selfieRef,
		Fields:       st.fields,
	}
	if st.docType == DocTypePassport {
		p.FrontRef = st.captures[SideMain].Ref
	} else {
		p.FrontRef = st.captures[SideFront].Ref
		p.BackRef = st.captures[SideBack].Ref
	}
	return p, nil
}

// Complete marks the session finished after a successful submission.
func (s *Session) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.(faceMatchState); !ok {
		return s.failf("completion is not available at this step")
	}
	s.cancelAutoLocked()
	s.state = completeState{}
	return nil
}

// Snapshot is the client-facing view of a session.
type Snapshot struct {
	Step          Step            `json:"step"`
	DocumentType  DocumentType    `json:"documentType,omitempty"`
	Country       string          `json:"country,omitempty"`
	CapturedSides []Side          `json:"capturedSides,omitempty"`
	Fields        *extract.Fields `json:"fields,omitempty"`
	SelfieTaken   bool            `json:"selfieTaken"`
}

// Snapshot reports the current step and step-appropriate detail.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Step: s.state.step()}
	switch st := s.state.(type) {
	case documentUploadState:
		snap.DocumentType, snap.Country = st.docType, st.country
		snap.CapturedSides = capturedSides(st.docType, st.captures)
	case ocrConfirmState:
		snap.DocumentType, snap.Country = st.docType, st.country
		snap.CapturedSides = capturedSides(st.docType, st.captures)
		snap.Fields = st.fields
	case selfieState:
		snap.DocumentType, snap.Country = st.docType, st.country
		f := st.fields
		snap.Fields = &f
	case faceMatchState:
		snap.DocumentType, snap.Country = st.docType, st.country
		f := st.fields
		snap.Fields = &f
		snap.SelfieTaken = true
	}
	return snap
}

func (s *Session) scheduleAutoLocked() {
	s.cancelAutoLocked()
	if s.autoDelay <= 0 {
		return
	}
	s.autoTimer = time.AfterFunc(s.autoDelay, func() {
		// A retake or reselect since scheduling makes this a no-op via
		// the precondition check.
		_ = s.Advance()
	})
}

func (s *Session) cancelAutoLocked() {
	if s.autoTimer != nil {
		s.autoTimer.Stop()
		s.autoTimer = nil
	}
}

func (s *Session) failf(format string, args ...any) error {
	return newValidationError(s.state.step(), format, args...)
}

func sideRequired(t DocumentType, side Side) bool {
	for _, s := range t.RequiredSides() {
		if s == side {
			return true
		}
	}
	return false
}

func missingSides(t DocumentType, captures map[Side]Capture) []Side {
	var missing []Side
	for _, s := range t.RequiredSides() {
		if _, ok := captures[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}

func capturedSides(t DocumentType, captures map[Side]Capture) []Side {
	var got []Side
	for _, s := range t.RequiredSides() {
		if _, ok := captures[s]; ok {
			got = append(got, s)
		}
	}
	return got
}

func joinSides(sides []Side) string {
	out := ""
	for i, s := range sides {
		if i > 0 {
			out += ", "
		}
		out += string(s)
	}
	return out
}
