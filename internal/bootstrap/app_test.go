package bootstrap

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/config"
)

func testApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app, err := Build(config.Config{
		Env:             "dev",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		AppBaseURL:      "http://localhost:8080",
		OCREngine:       "stub",
		TokenTTL:        time.Hour,
	})
	if err != nil {
		t.Fatalf("bootstrap.Build: %v", err)
	}
	return app
}

func doJSON(t *testing.T, app *App, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	app.Router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func uploadImage(t *testing.T, app *App, token, role string) *httptest.ResponseRecorder {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 60; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: 180, B: 180, A: 255})
		}
	}
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("token", token)
	_ = w.WriteField("fileType", role)
	fw, err := w.CreateFormFile("file", role+".png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(pngBuf.Bytes()); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/kyc/uploads", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rr := httptest.NewRecorder()
	app.Router.ServeHTTP(rr, req)
	return rr
}

func TestFullVerificationFlow(t *testing.T) {
	app := testApp(t)

	// Operator issues a verification link.
	rr := doJSON(t, app, http.MethodPost, "/api/v1/admin/requests", gin.H{
		"firstName": "Jane",
		"lastName":  "Doe",
		"email":     "jane@example.com",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("issue status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var issued struct {
		ID   string `json:"id"`
		Link string `json:"link"`
	}
	decode(t, rr, &issued)

	linkURL, err := url.Parse(issued.Link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	token := linkURL.Query().Get("token")
	if len(token) != 64 {
		t.Fatalf("token length = %d, want 64", len(token))
	}

	// The user opens the link.
	rr = doJSON(t, app, http.MethodGet, "/api/v1/kyc/validate?token="+token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("validate status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var validated struct {
		Valid  bool   `json:"valid"`
		Status string `json:"status"`
		Step   string `json:"step"`
	}
	decode(t, rr, &validated)
	if !validated.Valid || validated.Status != "in_progress" || validated.Step != "intro" {
		t.Fatalf("unexpected validate response: %+v", validated)
	}

	// Intro -> document select -> passport.
	if rr = doJSON(t, app, http.MethodPost, "/api/v1/kyc/session/advance", gin.H{"token": token}); rr.Code != http.StatusOK {
		t.Fatalf("advance status = %d, body = %s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, app, http.MethodPost, "/api/v1/kyc/session/select", gin.H{
		"token":        token,
		"country":      "DE",
		"documentType": "passport",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("select status = %d, body = %s", rr.Code, rr.Body.String())
	}

	// Submitting now must fail: nothing captured yet.
	if rr = doJSON(t, app, http.MethodPost, "/api/v1/kyc/submissions", gin.H{"token": token}); rr.Code != http.StatusConflict {
		t.Fatalf("premature submit status = %d, want 409", rr.Code)
	}

	// Capture the document and move to the confirm step.
	if rr = uploadImage(t, app, token, "main"); rr.Code != http.StatusCreated {
		t.Fatalf("upload main status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rr = doJSON(t, app, http.MethodPost, "/api/v1/kyc/session/advance", gin.H{"token": token}); rr.Code != http.StatusOK {
		t.Fatalf("advance to confirm status = %d, body = %s", rr.Code, rr.Body.String())
	}

	// The stub engine recognizes nothing, so the flow degrades to manual
	// entry but still proceeds.
	rr = doJSON(t, app, http.MethodPost, "/api/v1/kyc/recognize", gin.H{"token": token})
	if rr.Code != http.StatusOK {
		t.Fatalf("recognize status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var recognized struct {
		LowConfidence bool `json:"lowConfidence"`
	}
	decode(t, rr, &recognized)
	if !recognized.LowConfidence {
		t.Fatal("empty recognition must be flagged low confidence")
	}

	rr = doJSON(t, app, http.MethodPost, "/api/v1/kyc/session/fields", gin.H{
		"token": token,
		"name":  "JANE DOE",
		"dob":   "15/03/1990",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm fields status = %d, body = %s", rr.Code, rr.Body.String())
	}

	if rr = uploadImage(t, app, token, "selfie"); rr.Code != http.StatusCreated {
		t.Fatalf("upload selfie status = %d, body = %s", rr.Code, rr.Body.String())
	}

	// Submit and verify the durable outcome.
	rr = doJSON(t, app, http.MethodPost, "/api/v1/kyc/submissions", gin.H{"token": token})
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var record struct {
		ID          string `json:"id"`
		Disposition string `json:"disposition"`
	}
	decode(t, rr, &record)
	if record.Disposition != "pending" {
		t.Fatalf("disposition = %s, want pending", record.Disposition)
	}

	// The link is single-use: a second visit reports completion.
	if rr = doJSON(t, app, http.MethodGet, "/api/v1/kyc/validate?token="+token, nil); rr.Code != http.StatusConflict {
		t.Fatalf("post-submit validate status = %d, want 409", rr.Code)
	}

	// Operator review.
	rr = doJSON(t, app, http.MethodGet, "/api/v1/admin/verifications", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var listed struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	decode(t, rr, &listed)
	if len(listed.Items) != 1 || listed.Items[0].ID != record.ID {
		t.Fatalf("unexpected list: %s", rr.Body.String())
	}

	rr = doJSON(t, app, http.MethodPatch, "/api/v1/admin/verifications/"+record.ID, gin.H{"disposition": "approved"})
	if rr.Code != http.StatusOK {
		t.Fatalf("review status = %d, body = %s", rr.Code, rr.Body.String())
	}

	// The stored evidence streams back for review.
	rr = doJSON(t, app, http.MethodGet, "/api/v1/admin/verifications/"+record.ID+"/evidence/front", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("evidence status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rr.Body.Len() == 0 {
		t.Fatal("evidence body is empty")
	}
	if rr = doJSON(t, app, http.MethodGet, "/api/v1/admin/verifications/"+record.ID+"/evidence/back", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("missing evidence status = %d, want 404", rr.Code)
	}
}

func TestValidate_UnknownAndMissingToken(t *testing.T) {
	app := testApp(t)

	if rr := doJSON(t, app, http.MethodGet, "/api/v1/kyc/validate", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing token status = %d, want 400", rr.Code)
	}
	if rr := doJSON(t, app, http.MethodGet, "/api/v1/kyc/validate?token=deadbeef", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown token status = %d, want 404", rr.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := testApp(t)
	rr := doJSON(t, app, http.MethodGet, "/api/v1/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
}
