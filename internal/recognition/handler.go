package recognition

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/session"
	"kyc-backend/internal/shared/server/respond"
	"kyc-backend/internal/tokens"
)

// Handler exposes the recognition endpoint for the confirm step.
type Handler struct {
	Tokens   *tokens.Service
	Sessions *session.Manager
	Service  *Service
}

// NewHandler constructs a Handler.
func NewHandler(tok *tokens.Service, mgr *session.Manager, svc *Service) *Handler {
	return &Handler{Tokens: tok, Sessions: mgr, Service: svc}
}

// RegisterRoutes mounts the recognition endpoint on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/recognize", h.recognize)
}

type recognizeRequest struct {
	Token string `json:"token" binding:"required"`
}

type recognizeResponse struct {
	Fields        any     `json:"fields"`
	Confidence    float64 `json:"confidence"`
	LowConfidence bool    `json:"lowConfidence"`
	Degraded      bool    `json:"degraded"`
}

func (h *Handler) recognize(c *gin.Context) {
	var req recognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "token is required", nil)
		return
	}

	tokReq, err := h.Tokens.Active(c.Request.Context(), req.Token)
	if err != nil {
		session.TokenError(c, err)
		return
	}
	c.Set("kycRequestId", tokReq.ID)

	sess := h.Sessions.Get(req.Token)
	if sess == nil {
		respond.Error(c, http.StatusConflict, "no_session", "validate the link before recognition", nil)
		return
	}
	c.Set("sessionStep", string(sess.Step()))

	raster, docType, err := sess.FrontRaster()
	if err != nil {
		respond.Error(c, http.StatusConflict, "invalid_step", err.Error(), nil)
		return
	}

	out := h.Service.Recognize(c.Request.Context(), tokReq.ID, raster, string(docType))

	// Prefill the confirm form; manual edits overwrite on confirmation.
	fields := out.Fields
	if err := sess.SetExtractedFields(&fields); err != nil {
		respond.Error(c, http.StatusConflict, "invalid_step", err.Error(), nil)
		return
	}

	respond.OK(c, recognizeResponse{
		Fields:        fields,
		Confidence:    out.Confidence,
		LowConfidence: out.LowConfidence,
		Degraded:      out.Degraded,
	})
}
