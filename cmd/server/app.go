package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwhitford/edgegate/internal/config"
	"github.com/mwhitford/edgegate/internal/health"
	"github.com/mwhitford/edgegate/internal/idempotency"
	"github.com/mwhitford/edgegate/internal/platform/logger"
	"github.com/mwhitford/edgegate/internal/platform/memstore"
	"github.com/mwhitford/edgegate/internal/platform/postgres"
	"github.com/mwhitford/edgegate/internal/store"
)

// application holds the assembled dependencies of the running service.
type application struct {
	config *config.Config
	logger *slog.Logger

	idempotencyStore idempotency.Store
	sweeper          idempotency.Sweeper
	profileStore     store.ProfileStore
	healthRegistry   *health.Registry

	pool *pgxpool.Pool
}

// initializeApp loads configuration and wires the application components.
func initializeApp(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"idempotency_backend", cfg.Idempotency.Backend,
		"idempotency_retention", cfg.Idempotency.Retention.String())

	app := &application{
		config:         cfg,
		logger:         log,
		profileStore:   memstore.NewProfileStore(),
		healthRegistry: health.NewRegistry(),
	}

	if err := app.setupIdempotencyStore(ctx); err != nil {
		return nil, err
	}
	app.registerHealthChecks()

	return app, nil
}

// setupIdempotencyStore builds the configured idempotency backend. The
// postgres backend migrates its schema before serving.
func (app *application) setupIdempotencyStore(ctx context.Context) error {
	idemCfg := app.config.Idempotency

	switch idemCfg.Backend {
	case "postgres":
		if err := postgres.Migrate(ctx, app.config.Database.URL); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		pool, err := postgres.NewPool(ctx, app.config.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		app.pool = pool
		pgStore := postgres.NewIdempotencyStore(pool, idemCfg.Retention, idemCfg.WaitTimeout)
		app.idempotencyStore = pgStore
		app.sweeper = pgStore

	default:
		memStore := idempotency.NewMemoryStore(idemCfg.Retention, idemCfg.WaitTimeout)
		app.idempotencyStore = memStore
		app.sweeper = memStore
	}
	return nil
}

// registerHealthChecks wires the readiness checks for the configured
// collaborators. The service itself owns no dependencies beyond these.
func (app *application) registerHealthChecks() {
	if app.pool != nil {
		pool := app.pool
		app.healthRegistry.Register("database", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
	}
}

// cleanup releases resources on shutdown.
func (app *application) cleanup() {
	if app.pool != nil {
		app.pool.Close()
	}
}
