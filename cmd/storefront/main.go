package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/naazbooks/storefront/internal/audit"
	"github.com/naazbooks/storefront/internal/cart"
	"github.com/naazbooks/storefront/internal/catalog"
	"github.com/naazbooks/storefront/internal/config"
	"github.com/naazbooks/storefront/internal/csrf"
	"github.com/naazbooks/storefront/internal/database"
	"github.com/naazbooks/storefront/internal/handlers"
	"github.com/naazbooks/storefront/internal/ratelimit"
	"github.com/naazbooks/storefront/internal/ratelimit/redisstore"
	"github.com/naazbooks/storefront/internal/repository"
	"github.com/naazbooks/storefront/internal/repository/postgres"
	"github.com/naazbooks/storefront/internal/repository/sqlite"
	"github.com/naazbooks/storefront/internal/session"
	"github.com/naazbooks/storefront/internal/storage"
	"github.com/naazbooks/storefront/internal/storage/filesystem"
)

// Audit rows older than the retention window are purged this often.
const auditCleanupInterval = 6 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("starting storefront",
		"port", cfg.Port,
		"db_type", cfg.DBType,
		"rate_limit_backend", cfg.RateLimitBackend,
		"https_enabled", cfg.HTTPSEnabled,
	)

	repos, err := openRepositories(cfg)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer repos.Close()

	slog.Info("database initialized", "type", repos.DatabaseType)

	clientStore, err := openClientStore(cfg)
	if err != nil {
		slog.Error("failed to initialize client storage", "error", err)
		os.Exit(1)
	}

	janitor := storage.NewJanitor(clientStore, storage.JanitorConfig{
		TabIdle:       cfg.ClientStorageTabIdle(),
		ClientIdle:    cfg.ClientStorageMaxIdle(),
		SweepInterval: cfg.ClientStorageSweepInterval(),
	})
	janitor.Start()

	entries, closeEntries, err := openEntryStore(cfg, repos)
	if err != nil {
		slog.Error("failed to initialize rate limit store", "error", err)
		os.Exit(1)
	}
	defer closeEntries()

	// Security log writer
	dispatcher := audit.NewDispatcher(repos.SecurityLogs, cfg.AuditWorkers, cfg.AuditQueueSize, audit.NewPrometheusMetrics())
	dispatcher.SetRetention(cfg.LogRetention(), auditCleanupInterval)
	dispatcher.Start()

	limiter := ratelimit.NewService(entries,
		ratelimit.WithEmitter(dispatcher),
		ratelimit.WithSweepInterval(cfg.RateLimitSweepInterval()),
	)
	limiter.Start()

	tracker := session.NewTracker(repos.Sessions, session.ConfigFrom(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tracker.StartActivityTracking(ctx)

	assertions := session.NewAssertionVerifier(cfg.SessionIssuerSecret, cfg.SessionIssuer, nil)
	if assertions == nil {
		slog.Warn("SESSION_ISSUER_SECRET is not set; sign-in is disabled")
	}

	handler := handlers.NewRouter(handlers.Dependencies{
		Config:      cfg,
		Repos:       repos,
		ClientStore: janitor,
		CSRF:        csrf.NewManager(csrf.WithTTL(cfg.CSRFTokenTTL()), csrf.WithEmitter(dispatcher)),
		Sessions:    tracker,
		Assertions:  assertions,
		RateLimits:  ratelimit.NewMiddleware(limiter, ratelimit.ActionsFromConfig(cfg)),
		Carts:       cart.NewService(repos.Carts, repos.Products),
		Catalog:     catalog.New(repos.Products),
		AuditQueue:  dispatcher,
		HealthChecks: []handlers.ComponentChecker{
			limiter, tracker, dispatcher,
		},
		StartTime: time.Now(),
	})

	// Setup HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)

	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)

		// Give outstanding requests 10 seconds to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				slog.Error("server close failed", "error", err)
			}
		}
	}

	// Stop background work before the database goes away
	cancel()
	tracker.Close()
	limiter.Close()
	janitor.Close()
	dispatcher.Shutdown()

	slog.Info("server shutdown complete")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openRepositories connects to the configured database backend.
func openRepositories(cfg *config.Config) (*repository.Repositories, error) {
	switch cfg.DBType {
	case config.DBTypePostgres:
		repos, _, err := postgres.NewRepositories(cfg)
		return repos, err

	default:
		db, err := database.Initialize(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		repos, err := sqlite.NewRepositories(cfg, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return repos, nil
	}
}

// openClientStore returns the base store of per-client storage.
func openClientStore(cfg *config.Config) (storage.ListStore, error) {
	if cfg.ClientStorageDir == "" {
		return storage.NewMemoryStore(), nil
	}
	fs, err := filesystem.NewFilesystemStorage(cfg.ClientStorageDir)
	if err != nil {
		return nil, err
	}
	slog.Info("client storage on disk", "path", cfg.ClientStorageDir)
	return fs, nil
}

// openEntryStore returns the rate limit entry store and its close function.
func openEntryStore(cfg *config.Config, repos *repository.Repositories) (ratelimit.EntryStore, func(), error) {
	switch cfg.RateLimitBackend {
	case config.RateLimitBackendRedis:
		if cfg.Redis == nil {
			return nil, nil, fmt.Errorf("RATE_LIMIT_BACKEND=redis requires REDIS_ADDR")
		}
		store, err := redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("failed to close redis client", "error", err)
			}
		}, nil

	case config.RateLimitBackendDatabase:
		return ratelimit.NewRepositoryStore(repos.RateLimits), func() {}, nil

	default:
		return ratelimit.NewMemoryStore(), func() {}, nil
	}
}
