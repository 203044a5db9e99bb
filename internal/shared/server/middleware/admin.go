package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/server/respond"
)

const adminKeyHeader = "X-Admin-Api-Key"

// AdminKey guards operator routes with a shared API key. Operator identity
// management lives outside this service; an empty configured key locks the
// routes except in dev-like environments.
func AdminKey(apiKey, env string) gin.HandlerFunc {
	key := strings.TrimSpace(apiKey)
	return func(c *gin.Context) {
		if key == "" {
			if isDevLike(env) {
				c.Next()
				return
			}
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "admin API key not configured", nil)
			return
		}
		presented := strings.TrimSpace(c.GetHeader(adminKeyHeader))
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid admin API key", nil)
			return
		}
		c.Next()
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
