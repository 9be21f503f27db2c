package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/cache"
	httpapi "github.com/aussiebroadwan/gatekeeper/internal/auth/http"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/mail"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/storage"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the accounts service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	redis      *redis.Client // nil when the identity cache is disabled
	cache      cache.UserCache
	tokens     *jwtx.HS256
	mailer     *mail.Mailer
	mailCloser io.Closer // nil unless mail goes through the queue
	objects    storage.ObjectStore

	// Services
	authService         *service.AuthService
	verificationService *service.EmailVerificationService
	resetService        *service.PasswordResetService
	identityService     *service.IdentityService
	userService         *service.UserService
	uploadService       *service.UploadService
	bootstrapService    *service.BootstrapService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the process logger for cfg.
func NewLogger(cfg Config, service string) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: service,
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg, "gatekeeper"),
	}

	ctx := slogx.WithContext(context.Background(), app.logger)

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	tokens, err := InitTokens(app.cfg, app.logger)
	if err != nil {
		_ = app.closeDependencies()
		return nil, err
	}
	app.tokens = tokens

	for _, step := range []func(context.Context) error{
		app.initCache,
		app.initMail,
		app.initStorage,
	} {
		if err := step(ctx); err != nil {
			_ = app.closeDependencies()
			return nil, err
		}
	}

	app.initServices()

	if err := app.seedSuperadmin(ctx); err != nil {
		_ = app.closeDependencies()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("gatekeeper starting",
		"port", app.cfg.Port,
		"prefix", app.cfg.APIPrefix,
		"version", BuildVersion,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.closeDependencies()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatekeeper...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.closeDependencies(); err != nil {
		return err
	}

	app.logger.Info("gatekeeper stopped")
	return nil
}

// Handler exposes the router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// closeDependencies releases everything opened during New. It returns the
// database error, the others are only logged.
func (app *Application) closeDependencies() error {
	if app.mailCloser != nil {
		if err := app.mailCloser.Close(); err != nil {
			app.logger.Error("error closing mail queue", "error", err)
		}
		app.mailCloser = nil
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
		app.redis = nil
	}

	if app.db != nil {
		err := app.db.Close()
		app.db = nil
		if err != nil {
			app.logger.Error("error closing database", "error", err)
			return err
		}
	}
	return nil
}

// isPostgresURL reports whether dsn names a PostgreSQL server rather than a
// SQLite file.
func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// initDatabase opens the store named by DATABASE_URL and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db     store.Store
		apply  func() error
		driver string
	)

	if isPostgresURL(app.cfg.DatabaseURL) {
		pg, err := postgres.NewStore(ctx, app.cfg.DatabaseURL, postgres.DefaultPoolConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		db, apply, driver = pg, pg.ApplyMigrations, "postgres"
	} else {
		lite, err := sqlite.NewStore(app.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		db, apply, driver = lite, lite.ApplyMigrations, "sqlite"
	}
	app.db = db

	if err := apply(); err != nil {
		_ = db.Close()
		app.db = nil
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", driver)
	return nil
}

// initCache connects to Redis when configured. An unreachable server fails
// start-up rather than silently running without the cache.
func (app *Application) initCache(ctx context.Context) error {
	if !app.cfg.Redis.Configured() {
		app.cache = cache.NopUserCache{}
		app.logger.Warn("redis not configured, identity cache disabled")
		return nil
	}

	client, err := cache.NewClient(ctx, app.cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.redis = client
	app.cache = cache.NewRedisUserCache(client, cache.DefaultTTL, app.logger)

	app.logger.Info("identity cache enabled", "ttl", cache.DefaultTTL)
	return nil
}

func (app *Application) initMail(ctx context.Context) error {
	sender, closer, err := NewSender(ctx, app.cfg, app.cfg.MailDriver)
	if err != nil {
		return err
	}
	app.mailCloser = closer
	app.mailer = mail.NewMailer(sender, mail.Config{
		VerificationURL:  app.cfg.EmailVerificationURL,
		PasswordResetURL: app.cfg.PasswordResetURL,
	})

	app.logger.Info("mail configured", "driver", app.cfg.MailDriver)
	return nil
}

func (app *Application) initStorage(ctx context.Context) error {
	if app.cfg.StorageDriver != StorageDriverS3 {
		app.objects = storage.NewMemoryStore(fmt.Sprintf("http://localhost:%d/files", app.cfg.Port))
		app.logger.Warn("using in-memory object storage, uploads are lost on restart")
		return nil
	}

	var s3cfg storage.S3Config
	if app.cfg.UseLocalStack {
		s3cfg = storage.LocalStackConfig(app.cfg.LocalStackEndpoint, app.cfg.AWSRegion, app.cfg.R2BucketName)
	} else {
		s3cfg = storage.R2Config(
			app.cfg.R2AccountID,
			app.cfg.R2AccessKeyID,
			app.cfg.R2SecretAccessKey,
			app.cfg.R2BucketName,
			app.cfg.R2PublicURL,
		)
	}

	objects, err := storage.NewS3Store(ctx, s3cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}
	app.objects = objects

	app.logger.Info("object storage configured", "bucket", s3cfg.Bucket, "localstack", app.cfg.UseLocalStack)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.verificationService = &service.EmailVerificationService{
		Store:  app.db,
		Cache:  app.cache,
		Mailer: app.mailer,
	}
	app.resetService = &service.PasswordResetService{
		Store:  app.db,
		Cache:  app.cache,
		Mailer: app.mailer,
	}
	app.authService = &service.AuthService{
		Store:        app.db,
		Cache:        app.cache,
		Tokens:       app.tokens,
		Verification: app.verificationService,
		AccessTTL:    app.cfg.AccessTTL,
		RefreshTTL:   app.cfg.RefreshTTL,
	}
	app.identityService = &service.IdentityService{Store: app.db, Cache: app.cache}
	app.userService = &service.UserService{Store: app.db, Cache: app.cache}
	app.uploadService = &service.UploadService{
		Objects:          app.objects,
		MaxFileSize:      app.cfg.MaxFileSize,
		AllowedMimeTypes: app.cfg.AllowedMimeTypes,
	}
	app.bootstrapService = &service.BootstrapService{Store: app.db}
}

func (app *Application) seedSuperadmin(ctx context.Context) error {
	created, err := app.bootstrapService.SeedSuperadmin(ctx, app.cfg.Superadmin)
	if err != nil {
		return fmt.Errorf("failed to seed superadmin: %w", err)
	}
	if created {
		app.logger.Info("superadmin account created", "email", app.cfg.Superadmin.Email)
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		httpapi.Options{
			Prefix:          app.cfg.APIPrefix,
			Version:         BuildVersion,
			CORSOrigins:     app.cfg.CORSWhitelist,
			LogRequests:     app.cfg.EnableRequestLogging,
			SwaggerUsername: app.cfg.SwaggerUsername,
			SwaggerPassword: app.cfg.SwaggerPassword,
		},
		app.tokens,
		app.db,
		app.cache,
		app.logger,
	)

	// Wire services to router
	router.AuthService = app.authService
	router.VerificationService = app.verificationService
	router.ResetService = app.resetService
	router.IdentityService = app.identityService
	router.UserService = app.userService
	router.UploadService = app.uploadService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
