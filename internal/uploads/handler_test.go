package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/session"
	localstore "kyc-backend/internal/shared/storage/object/local"
	"kyc-backend/internal/tokens"
)

type uploadFixture struct {
	router *gin.Engine
	tokens *tokens.Service
	mgr    *session.Manager
	token  string
}

func newUploadFixture(t *testing.T) *uploadFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokSvc := tokens.NewService(tokens.NewMemoryRepo(), "http://localhost:8080", time.Hour)
	mgr := session.NewManager()
	store := localstore.New(t.TempDir(), "http://localhost:8080")
	h := NewHandler(tokSvc, mgr, store, 0)

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1/kyc"))

	req, _, err := tokSvc.Issue(context.Background(), "Jane", "Doe", "jane@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tokSvc.Validate(context.Background(), req.Token); err != nil {
		t.Fatalf("validate: %v", err)
	}
	sess := mgr.Start(req.Token, session.Identity{RequestID: req.ID}, req.ExpiresAt)
	if err := sess.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := sess.SelectDocument("DE", session.DocTypePassport); err != nil {
		t.Fatalf("select: %v", err)
	}

	return &uploadFixture{router: r, tokens: tokSvc, mgr: mgr, token: req.Token}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func multipartUpload(t *testing.T, token, role, filename string, payload []byte) (*http.Request, error) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("token", token); err != nil {
		return nil, err
	}
	if err := w.WriteField("fileType", role); err != nil {
		return nil, err
	}
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/kyc/uploads", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

func TestUpload_StoresCaptureAndAttachesToSession(t *testing.T) {
	f := newUploadFixture(t)

	req, err := multipartUpload(t, f.token, "main", "passport.png", pngBytes(t))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Path == "" || resp.URL == "" {
		t.Fatalf("missing refs in response: %s", rr.Body.String())
	}

	sess := f.mgr.Get(f.token)
	if got := sess.Snapshot().CapturedSides; len(got) != 1 || got[0] != session.SideMain {
		t.Fatalf("capture not attached: %v", got)
	}
}

func TestUpload_RejectsNonImagePayload(t *testing.T) {
	f := newUploadFixture(t)

	req, err := multipartUpload(t, f.token, "main", "doc.txt", []byte("plain text, not an image"))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestUpload_RejectsUnknownRole(t *testing.T) {
	f := newUploadFixture(t)

	req, err := multipartUpload(t, f.token, "sideways", "x.png", pngBytes(t))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestUpload_UnknownTokenIs404(t *testing.T) {
	f := newUploadFixture(t)

	req, err := multipartUpload(t, "bogus", "main", "x.png", pngBytes(t))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestUpload_SelfieRejectedBeforeSelfieStep(t *testing.T) {
	f := newUploadFixture(t)

	req, err := multipartUpload(t, f.token, "selfie", "selfie.png", pngBytes(t))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}
