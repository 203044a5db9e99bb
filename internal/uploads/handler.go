package uploads

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/imageproc"
	"kyc-backend/internal/session"
	"kyc-backend/internal/shared/server/respond"
	"kyc-backend/internal/shared/storage/object"
	"kyc-backend/internal/shared/telemetry"
	"kyc-backend/internal/shared/util"
	"kyc-backend/internal/tokens"
)

const defaultMaxUploadBytes = 10 << 20

// Handler receives document and selfie captures, derives the stored and
// recognition copies, and attaches them to the flow session.
type Handler struct {
	Tokens   *tokens.Service
	Sessions *session.Manager
	Store    object.ObjectStore
	MaxBytes int64
}

// NewHandler constructs a Handler. A zero maxBytes falls back to 10 MiB.
func NewHandler(tok *tokens.Service, mgr *session.Manager, store object.ObjectStore, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &Handler{Tokens: tok, Sessions: mgr, Store: store, MaxBytes: maxBytes}
}

// RegisterRoutes mounts the upload endpoint on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads", h.upload)
}

var validRoles = map[string]struct{}{
	"front":  {},
	"back":   {},
	"main":   {},
	"selfie": {},
}

type uploadResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
	Step string `json:"step"`
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBytes)

	token := c.PostForm("token")
	role := c.PostForm("fileType")
	if token == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "token is required", nil)
		return
	}
	if _, ok := validRoles[role]; !ok {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "fileType must be front, back, main or selfie", nil)
		return
	}

	req, err := h.Tokens.Active(c.Request.Context(), token)
	if err != nil {
		session.TokenError(c, err)
		return
	}
	c.Set("kycRequestId", req.ID)

	sess := h.Sessions.Get(token)
	if sess == nil {
		respond.Error(c, http.StatusConflict, "no_session", "validate the link before uploading", nil)
		return
	}
	c.Set("sessionStep", string(sess.Step()))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "could not read file", nil)
		return
	}
	defer file.Close()

	src, err := io.ReadAll(io.LimitReader(file, h.MaxBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "could not read file", nil)
		return
	}
	if int64(len(src)) > h.MaxBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the upload limit", nil)
		return
	}
	if !strings.HasPrefix(http.DetectContentType(src), "image/") {
		respond.Error(c, http.StatusBadRequest, "invalid_file_type", "only image uploads are accepted", nil)
		return
	}

	derived, err := imageproc.Derive(c.Request.Context(), src)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "could not process image", nil)
		return
	}

	name, err := util.SanitizeFileName(fileHeader.Filename)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid file name", nil)
		return
	}
	ext := util.FileExt(name)
	contentType := imageproc.SniffContentType(derived.Upload, derived.UploadContentType)
	if derived.UploadContentType == "image/jpeg" {
		ext = "jpg"
	}
	key := fmt.Sprintf("%s/%s_%d.%s", req.ID, role, time.Now().UnixMilli(), ext)

	size, err := h.Store.SaveWithKey(c.Request.Context(), key, contentType, bytes.NewReader(derived.Upload))
	if err != nil {
		telemetry.Error("uploads.store_failed", map[string]any{
			"kyc_request_id": req.ID,
			"key":            key,
			"error":          err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal", "could not store file", nil)
		return
	}

	if role == "selfie" {
		err = sess.AttachSelfie(key)
	} else {
		err = sess.AttachSide(session.Side(role), session.Capture{Ref: key, OCRRaster: derived.OCR})
	}
	if err != nil {
		respond.Error(c, http.StatusConflict, "invalid_step", err.Error(), nil)
		return
	}

	telemetry.Info("uploads.stored", map[string]any{
		"kyc_request_id": req.ID,
		"key":            key,
		"role":           role,
		"bytes":          size,
		"content_type":   contentType,
	})
	respond.JSON(c, http.StatusCreated, uploadResponse{
		Path: key,
		URL:  h.Store.URL(key),
		Step: string(sess.Step()),
	})
}
