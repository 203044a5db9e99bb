package verifications

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/session"
	"kyc-backend/internal/shared/server/respond"
	"kyc-backend/internal/shared/storage/object"
	"kyc-backend/internal/shared/util"
)

// Handler exposes submission and operator review endpoints.
type Handler struct {
	Service *Service
	Store   object.ObjectStore
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, store object.ObjectStore) *Handler {
	return &Handler{Service: svc, Store: store}
}

// RegisterPublicRoutes mounts submission on the public group.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/submissions", h.submit)
}

// RegisterAdminRoutes mounts review endpoints on the operator group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/verifications", h.list)
	rg.GET("/verifications/:id", h.get)
	rg.GET("/verifications/:id/evidence/:kind", h.evidence)
	rg.PATCH("/verifications/:id", h.review)
}

type submitRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *Handler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "token is required", nil)
		return
	}

	rec, err := h.Service.Submit(c.Request.Context(), req.Token)
	if err != nil {
		var ve *session.ValidationError
		if errors.As(err, &ve) {
			respond.Error(c, http.StatusConflict, "invalid_step", ve.Msg, gin.H{"step": ve.Step})
			return
		}
		session.TokenError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, rec)
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	records, err := h.Service.Repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "could not list verifications", nil)
		return
	}
	respond.OK(c, gin.H{"items": records})
}

func (h *Handler) get(c *gin.Context) {
	rec, err := h.Service.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "verification not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal", "could not load verification", nil)
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) evidence(c *gin.Context) {
	rec, err := h.Service.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "verification not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal", "could not load verification", nil)
		return
	}

	var key string
	switch c.Param("kind") {
	case "front":
		key = rec.DocumentFrontRef
	case "back":
		key = rec.DocumentBackRef
	case "selfie":
		key = rec.SelfieRef
	default:
		respond.Error(c, http.StatusBadRequest, "invalid_request", "kind must be front, back or selfie", nil)
		return
	}
	if key == "" {
		respond.Error(c, http.StatusNotFound, "not_found", "no evidence stored for this kind", nil)
		return
	}

	reader, err := h.Store.Open(c.Request.Context(), key)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "could not open evidence", nil)
		return
	}
	defer reader.Close()

	ct := "image/jpeg"
	if ext := util.FileExt(key); ext != "jpg" && ext != "jpeg" {
		ct = "image/" + ext
	}
	c.Header("Content-Type", ct)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, reader)
}

type reviewRequest struct {
	Disposition string `json:"disposition" binding:"required"`
}

func (h *Handler) review(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "disposition is required", nil)
		return
	}
	rec, err := h.Service.Review(c.Request.Context(), c.Param("id"), Disposition(req.Disposition))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "verification not found", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	respond.OK(c, rec)
}
