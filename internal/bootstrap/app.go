// Package bootstrap wires configuration, storage, services and the HTTP
// router into a runnable application.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/ocr"
	"kyc-backend/internal/recognition"
	"kyc-backend/internal/session"
	"kyc-backend/internal/shared/config"
	"kyc-backend/internal/shared/server"
	"kyc-backend/internal/shared/storage/db"
	"kyc-backend/internal/shared/storage/object"
	localstore "kyc-backend/internal/shared/storage/object/local"
	s3store "kyc-backend/internal/shared/storage/object/s3"
	"kyc-backend/internal/tokens"
	"kyc-backend/internal/uploads"
	"kyc-backend/internal/verifications"
)

// App holds the application's shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore

	TokensRepo        tokens.Repo
	VerificationsRepo verifications.Repo
	Sessions          *session.Manager

	TokensService        *tokens.Service
	RecognitionService   *recognition.Service
	VerificationsService *verifications.Service

	TokensHandler        *tokens.Handler
	SessionHandler       *session.Handler
	UploadsHandler       *uploads.Handler
	RecognitionHandler   *recognition.Handler
	VerificationsHandler *verifications.Handler
}

// Build prepares all dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Store:    store,
		Sessions: session.NewManager(),
	}
	buildServices(app)

	var localDir string
	if local, ok := store.(*localstore.Store); ok {
		localDir = local.Dir()
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:               cfg,
		TokensHandler:        app.TokensHandler,
		SessionHandler:       app.SessionHandler,
		UploadsHandler:       app.UploadsHandler,
		RecognitionHandler:   app.RecognitionHandler,
		VerificationsHandler: app.VerificationsHandler,
		LocalFilesDir:        localDir,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir, cfg.AppBaseURL), nil
	}
}

func buildEngine(cfg config.Config) ocr.Engine {
	if cfg.OCREngine == "tesseract" {
		return ocr.NewTesseractEngine()
	}
	return &ocr.StubEngine{}
}

func buildServices(app *App) {
	var tokensRepo tokens.Repo
	var verificationsRepo verifications.Repo
	if app.DB != nil {
		tokensRepo = &tokens.PGRepo{DB: app.DB}
		verificationsRepo = &verifications.PGRepo{DB: app.DB}
	} else {
		tokensRepo = tokens.NewMemoryRepo()
		verificationsRepo = verifications.NewMemoryRepo()
	}

	tokensSvc := tokens.NewService(tokensRepo, app.Config.AppBaseURL, app.Config.TokenTTL)
	recognitionSvc := recognition.NewService(buildEngine(app.Config), app.Config.OCRLanguages)
	verificationsSvc := verifications.NewService(verificationsRepo, tokensSvc, app.Sessions)

	app.TokensRepo = tokensRepo
	app.VerificationsRepo = verificationsRepo
	app.TokensService = tokensSvc
	app.RecognitionService = recognitionSvc
	app.VerificationsService = verificationsSvc

	app.TokensHandler = tokens.NewHandler(tokensSvc, session.Starter{Manager: app.Sessions})
	app.SessionHandler = session.NewHandler(tokensSvc, app.Sessions)
	app.UploadsHandler = uploads.NewHandler(tokensSvc, app.Sessions, app.Store, app.Config.MaxUploadBytes)
	app.RecognitionHandler = recognition.NewHandler(tokensSvc, app.Sessions, recognitionSvc)
	app.VerificationsHandler = verifications.NewHandler(verificationsSvc, app.Store)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
