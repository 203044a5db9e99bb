package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/recognition"
	"kyc-backend/internal/session"
	"kyc-backend/internal/shared/config"
	"kyc-backend/internal/shared/metrics"
	"kyc-backend/internal/shared/server/middleware"
	"kyc-backend/internal/shared/server/respond"
	"kyc-backend/internal/tokens"
	"kyc-backend/internal/uploads"
	"kyc-backend/internal/verifications"
)

// Rate limit groups. VALIDATE is tight because the validate endpoint is the
// token guessing surface; UPLOAD bounds image processing work per caller.
const (
	rateGroupValidate = "VALIDATE"
	rateGroupUpload   = "UPLOAD"
)

// RouterDeps carries everything the router wires up.
type RouterDeps struct {
	Config               config.Config
	TokensHandler        *tokens.Handler
	SessionHandler       *session.Handler
	UploadsHandler       *uploads.Handler
	RecognitionHandler   *recognition.Handler
	VerificationsHandler *verifications.Handler

	// LocalFilesDir, when set, is served at /files for the local object
	// store.
	LocalFilesDir string
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				rateGroupValidate: {Rate: 1, Burst: 10},
				rateGroupUpload:   {Rate: 2, Burst: 10},
			},
			GroupFor: rateGroupFor,
		}),
	)

	if deps.LocalFilesDir != "" {
		r.Static("/files", deps.LocalFilesDir)
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})

	kyc := api.Group("/kyc")
	deps.TokensHandler.RegisterPublicRoutes(kyc)
	deps.SessionHandler.RegisterRoutes(kyc)
	deps.UploadsHandler.RegisterRoutes(kyc)
	deps.RecognitionHandler.RegisterRoutes(kyc)
	deps.VerificationsHandler.RegisterPublicRoutes(kyc)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKey(deps.Config.AdminAPIKey, deps.Config.Env))
	admin.GET("/metrics", metrics.Handler())
	deps.TokensHandler.RegisterAdminRoutes(admin)
	deps.VerificationsHandler.RegisterAdminRoutes(admin)

	return r
}

func rateGroupFor(c *gin.Context) string {
	path := c.Request.URL.Path
	switch {
	case strings.HasSuffix(path, "/kyc/validate"):
		return rateGroupValidate
	case strings.HasSuffix(path, "/kyc/uploads"):
		return rateGroupUpload
	default:
		return ""
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
