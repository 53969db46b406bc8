// Package runtime boots the care layer from configuration: it opens the
// stores, wires the services and middleware chain, and manages the HTTP
// server lifecycle.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	app "github.com/SilverCare-Net/care_layer/internal/app"
	"github.com/SilverCare-Net/care_layer/internal/app/httpapi"
	"github.com/SilverCare-Net/care_layer/internal/app/metrics"
	"github.com/SilverCare-Net/care_layer/internal/app/storage/postgres"
	redisstore "github.com/SilverCare-Net/care_layer/internal/app/storage/redis"
	"github.com/SilverCare-Net/care_layer/internal/config"
	"github.com/SilverCare-Net/care_layer/internal/logging"
	"github.com/SilverCare-Net/care_layer/internal/middleware"
	"github.com/SilverCare-Net/care_layer/internal/platform/blob"
	"github.com/SilverCare-Net/care_layer/internal/platform/migrations"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg      *config.Config
	log      *logging.Logger
	app      *app.Application
	server   *http.Server
	db       *sql.DB
	sessions *redisstore.SessionStore
}

// NewApplication constructs a fully wired application from the environment.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newApplication(cfg)
}

func newApplication(cfg *config.Config) (*Application, error) {
	log := logging.New(cfg.Logging)

	stores, db, err := buildStores(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	var sessions *redisstore.SessionStore
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		sessions, err = redisstore.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		stores.Sessions = sessions
	}

	media, err := blob.New(cfg.Media.Root, cfg.Media.URLPrefix)
	if err != nil {
		return nil, fmt.Errorf("configure media store: %w", err)
	}

	application, err := app.New(stores, app.Options{
		JWTSecret:       cfg.Auth.JWTSecret,
		AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		AdminUserIDs:    cfg.Auth.AdminUserIDs,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}

	handler, err := httpapi.NewHandler(application, httpapi.Options{
		Media:           media,
		AuditMaxEntries: cfg.Audit.MaxEntries,
		AuditFile:       cfg.Audit.FilePath,
		Logger:          log,
	})
	if err != nil {
		return nil, fmt.Errorf("build handler: %w", err)
	}

	authMW := middleware.NewAuthMiddleware(application.Issuer, log, []string{
		"/api/auth/register",
		"/api/auth/login",
		"/api/auth/token/refresh",
		"/healthz",
		"/metrics",
		cfg.Media.URLPrefix + "/",
	})
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	limiter.StartCleanup(time.Minute)

	var chained http.Handler = metrics.InstrumentHandler(handler)
	chained = authMW.Handler(chained)
	chained = limiter.Handler(chained)
	chained = middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins).Handler(chained)
	chained = middleware.NewTracingMiddleware(log).Handler(chained)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      chained,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Application{
		cfg:      cfg,
		log:      log,
		app:      application,
		server:   server,
		db:       db,
		sessions: sessions,
	}, nil
}

// Run starts the services and the HTTP server, blocking until the context is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server, the services and the stores.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}

// buildStores opens the configured relational store. An empty driver selects
// the in-memory store and returns a nil db handle.
func buildStores(cfg *config.Config) (app.Stores, *sql.DB, error) {
	if cfg.Database.Driver == "" {
		return app.Stores{}, nil, nil
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return app.Stores{}, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("apply migrations: %w", err)
	}

	store := postgres.New(db)
	return app.Stores{
		Identities:    store,
		Profiles:      store,
		Cards:         store,
		Schedules:     store,
		Guardianships: store,
		Requests:      store,
		Sessions:      store,
	}, db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
