package tokens

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/server/respond"
	"kyc-backend/internal/shared/telemetry"
	"kyc-backend/internal/shared/util"
)

// SessionStarter lets the validate endpoint open a flow session without the
// tokens package depending on the session package.
type SessionStarter interface {
	StartSession(req Request) (step string)
}

// Handler exposes token issuance and validation.
type Handler struct {
	Service  *Service
	Sessions SessionStarter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, sessions SessionStarter) *Handler {
	return &Handler{Service: svc, Sessions: sessions}
}

// RegisterPublicRoutes mounts token validation on the public group.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/validate", h.validate)
}

// RegisterAdminRoutes mounts request issuance on the operator group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/requests", h.issue)
}

type issueRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
}

type issueResponse struct {
	ID        string    `json:"id"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) issue(c *gin.Context) {
	var body issueRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "firstName, lastName and a valid email are required", nil)
		return
	}

	req, link, err := h.Service.Issue(c.Request.Context(), body.FirstName, body.LastName, body.Email)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal", "could not create verification request", nil)
		return
	}

	telemetry.Info("tokens.issued", map[string]any{
		"kyc_request_id": req.ID,
		"token":          util.RedactToken(req.Token),
		"token_hash":     util.HashToken(req.Token),
		"expires_at":     req.ExpiresAt,
	})
	respond.JSON(c, http.StatusCreated, issueResponse{ID: req.ID, Link: link, ExpiresAt: req.ExpiresAt})
}

type validateResponse struct {
	Valid     bool   `json:"valid"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Status    string `json:"status"`
	Step      string `json:"step"`
}

// validate is the single-use entry check for a verification link. A pending
// token flips to in_progress exactly once; revisiting an active token
// resumes its session.
func (h *Handler) validate(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "token is required", nil)
		return
	}

	req, err := h.Service.Validate(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "token_not_found", "invalid verification link", nil)
		case errors.Is(err, ErrExpired):
			respond.Error(c, http.StatusGone, "token_expired", "verification link expired", nil)
		case errors.Is(err, ErrAlreadyCompleted):
			respond.Error(c, http.StatusConflict, "already_completed", "verification already completed", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal", "could not validate token", nil)
		}
		return
	}
	c.Set("kycRequestId", req.ID)

	step := h.Sessions.StartSession(req)
	c.Set("sessionStep", step)

	telemetry.Info("tokens.validated", map[string]any{
		"kyc_request_id": req.ID,
		"token":          util.RedactToken(token),
		"token_hash":     util.HashToken(token),
		"status":         string(req.Status),
	})
	respond.OK(c, validateResponse{
		Valid:     true,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Status:    string(req.Status),
		Step:      step,
	})
}
