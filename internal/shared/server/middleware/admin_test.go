package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func adminRouter(apiKey, env string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AdminKey(apiKey, env))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAdminKeyAcceptsMatchingKey(t *testing.T) {
	r := adminRouter("secret", "prod")
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("X-Admin-Api-Key", "secret")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAdminKeyRejectsWrongOrMissingKey(t *testing.T) {
	r := adminRouter("secret", "prod")
	for _, key := range []string{"", "wrong"} {
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		if key != "" {
			req.Header.Set("X-Admin-Api-Key", key)
		}
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("key %q: expected 401, got %d", key, resp.Code)
		}
	}
}

func TestAdminKeyUnconfigured(t *testing.T) {
	// Dev-like environments run open; everywhere else locks down.
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)

	resp := httptest.NewRecorder()
	adminRouter("", "dev").ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("dev: expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	adminRouter("", "prod").ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("prod: expected 401, got %d", resp.Code)
	}
}
