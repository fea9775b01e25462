package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bazaarhq/storefront-api/internal/cache"
	"github.com/bazaarhq/storefront-api/internal/config"
	"github.com/bazaarhq/storefront-api/internal/database"
	"github.com/bazaarhq/storefront-api/internal/handler"
	"github.com/bazaarhq/storefront-api/internal/identity"
	"github.com/bazaarhq/storefront-api/internal/middleware"
	"github.com/bazaarhq/storefront-api/internal/repository"
	"github.com/bazaarhq/storefront-api/internal/service"
	"github.com/bazaarhq/storefront-api/internal/session"
)

// main is the application entrypoint for the storefront admin API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting storefront admin api")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 4. Initialize repositories
	adminRepo := repository.NewAdministratorRepository(db)
	codeRepo := repository.NewSecondFactorCodeRepository(db)
	auditRepo := repository.NewAuditEventRepository(db)

	// 5. Failed-login throttle: Redis-backed when Redis is configured so all
	// instances share one attempt window, in-memory otherwise.
	var throttle service.Throttle
	if cfg.Redis.Host != "" {
		redisClient, err := cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Error().Err(err).Msg("redis connection failed")
			fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		throttle = cache.NewAttemptCache(redisClient, cfg.Throttle.MaxAttempts, cfg.Throttle.Window)
		log.Info().Msg("redis connected, using shared attempt throttle")
	} else {
		throttle = service.NewMemoryThrottle(cfg.Throttle.MaxAttempts, cfg.Throttle.Window)
		log.Info().Msg("redis not configured, using in-memory attempt throttle")
	}

	// 6. Identity store backend
	var identityStore identity.Store
	if cfg.Identity.Backend == "http" {
		identityStore = identity.NewHTTPStore(cfg.Identity.BaseURL, cfg.Identity.APIKey, cfg.Identity.Timeout)
		log.Info().Str("base_url", cfg.Identity.BaseURL).Msg("using managed identity store")
	} else {
		identityStore = identity.NewLocalStore(adminRepo, cfg.Session.Duration)
		log.Info().Msg("using local identity store")
	}

	// 7. Initialize session service
	var notifier service.CodeNotifier
	if cfg.Env == "development" {
		notifier = service.LogNotifier{}
	}
	sessionSvc := service.NewSessionService(service.SessionServiceParams{
		IdentityStore: identityStore,
		Directory:     adminRepo,
		Codes:         codeRepo,
		Audit:         service.NewAuditLogger(auditRepo),
		Throttle:      throttle,
		Notifier:      notifier,
		Codec:         session.NewCodec(cfg.Session.Secret),
		DurationLimit: cfg.Session.Duration,
		CodeTTL:       cfg.Session.TwoFactorCodeTTL,
		CodeLength:    cfg.Session.TwoFactorCodeSize,
	})

	// 8. Initialize handlers and middleware
	authHandler := handler.NewAuthHandler(sessionSvc)
	adminHandler := handler.NewAdministratorHandler(adminRepo)
	auditHandler := handler.NewAuditHandler(auditRepo)
	healthHandler := handler.NewHealthHandler(db)
	sessionMw := middleware.NewSessionMiddleware(sessionSvc)

	// 9. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, authHandler, adminHandler, auditHandler, healthHandler, sessionMw)

	// 10. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 11. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 12. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// setupRoutes registers all routes.
func setupRoutes(
	router *gin.Engine,
	authHandler *handler.AuthHandler,
	adminHandler *handler.AdministratorHandler,
	auditHandler *handler.AuditHandler,
	healthHandler *handler.HealthHandler,
	sessionMw *middleware.SessionMiddleware,
) {
	router.GET("/v1/health", healthHandler.GetHealth)

	admin := router.Group("/v1/admin")
	admin.POST("/auth/login", authHandler.Login)
	// Logout is idempotent and succeeds with or without a live session, so it
	// sits outside the guard.
	admin.POST("/auth/logout", authHandler.Logout)

	admin.Use(sessionMw.RequireAuthenticated())
	{
		admin.GET("/auth/me", authHandler.Me)

		// Directory views
		admin.GET("/administrators",
			sessionMw.RequirePermission("manage_administrators"), adminHandler.ListAdministrators)
		admin.GET("/administrators/:id",
			sessionMw.RequirePermission("manage_administrators"), adminHandler.GetAdministrator)

		// Audit log
		admin.GET("/audit-events",
			sessionMw.RequirePermission("view_audit_log"), auditHandler.ListEvents)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
