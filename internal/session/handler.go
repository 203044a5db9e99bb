package session

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/extract"
	"kyc-backend/internal/shared/server/respond"
	"kyc-backend/internal/tokens"
)

// Handler exposes the session flow endpoints.
type Handler struct {
	Tokens   *tokens.Service
	Sessions *Manager
}

// NewHandler constructs a Handler.
func NewHandler(tok *tokens.Service, mgr *Manager) *Handler {
	return &Handler{Tokens: tok, Sessions: mgr}
}

// RegisterRoutes mounts the session endpoints on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/session", h.get)
	rg.POST("/session/advance", h.advance)
	rg.POST("/session/select", h.selectDocument)
	rg.POST("/session/retake", h.retake)
	rg.POST("/session/fields", h.confirmFields)
}

func (h *Handler) get(c *gin.Context) {
	sess, ok := h.resolve(c, c.Query("token"))
	if !ok {
		return
	}
	respond.OK(c, sess.Snapshot())
}

type advanceRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *Handler) advance(c *gin.Context) {
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "token is required", nil)
		return
	}
	sess, ok := h.resolve(c, req.Token)
	if !ok {
		return
	}
	if err := sess.Advance(); err != nil {
		stepError(c, err)
		return
	}
	respond.OK(c, sess.Snapshot())
}

type selectRequest struct {
	Token        string `json:"token" binding:"required"`
	Country      string `json:"country" binding:"required"`
	DocumentType string `json:"documentType" binding:"required"`
}

func (h *Handler) selectDocument(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "token, country and documentType are required", nil)
		return
	}
	sess, ok := h.resolve(c, req.Token)
	if !ok {
		return
	}
	if err := sess.SelectDocument(req.Country, DocumentType(req.DocumentType)); err != nil {
		stepError(c, err)
		return
	}
	respond.OK(c, sess.Snapshot())
}

type retakeRequest struct {
	Token string `json:"token" binding:"required"`
	Side  string `json:"side" binding:"required"`
}

func (h *Handler) retake(c *gin.Context) {
	var req retakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "token and side are required", nil)
		return
	}
	sess, ok := h.resolve(c, req.Token)
	if !ok {
		return
	}
	if err := sess.RetakeSide(Side(req.Side)); err != nil {
		stepError(c, err)
		return
	}
	respond.OK(c, sess.Snapshot())
}

type fieldsRequest struct {
	Token          string `json:"token" binding:"required"`
	Name           string `json:"name"`
	DOB            string `json:"dob"`
	DocumentNumber string `json:"documentNumber"`
}

func (h *Handler) confirmFields(c *gin.Context) {
	var req fieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "token is required", nil)
		return
	}
	sess, ok := h.resolve(c, req.Token)
	if !ok {
		return
	}
	err := sess.ConfirmFields(extract.Fields{
		Name:           req.Name,
		DOB:            req.DOB,
		DocumentNumber: req.DocumentNumber,
	})
	if err != nil {
		stepError(c, err)
		return
	}
	respond.OK(c, sess.Snapshot())
}

// resolve maps a token to its live session, recreating one for an active
// token after a restart. Writes the error response itself on failure.
func (h *Handler) resolve(c *gin.Context, token string) (*Session, bool) {
	if token == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "token is required", nil)
		return nil, false
	}
	req, err := h.Tokens.Active(c.Request.Context(), token)
	if err != nil {
		TokenError(c, err)
		return nil, false
	}
	c.Set("kycRequestId", req.ID)

	sess := h.Sessions.Get(token)
	if sess == nil {
		sess = h.Sessions.Start(token, Identity{
			RequestID: req.ID,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
		}, req.ExpiresAt)
	}
	c.Set("sessionStep", string(sess.Step()))
	return sess, true
}

// TokenError writes the standard response for a token lifecycle failure.
func TokenError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tokens.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "token_not_found", "invalid verification link", nil)
	case errors.Is(err, tokens.ErrExpired):
		respond.Error(c, http.StatusGone, "token_expired", "verification link expired", nil)
	case errors.Is(err, tokens.ErrAlreadyCompleted):
		respond.Error(c, http.StatusConflict, "already_completed", "verification already completed", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func stepError(c *gin.Context, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		respond.Error(c, http.StatusConflict, "invalid_step", ve.Msg, gin.H{"step": ve.Step})
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal", "internal error", nil)
}
