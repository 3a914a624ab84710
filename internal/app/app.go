package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/volforecast/config"
	"github.com/guttosm/volforecast/internal/api"
	"github.com/guttosm/volforecast/internal/calendar"
	"github.com/guttosm/volforecast/internal/garch"
	"github.com/guttosm/volforecast/internal/metrics"
	"github.com/guttosm/volforecast/internal/service"
	"github.com/guttosm/volforecast/internal/storage"
	"github.com/guttosm/volforecast/internal/volatility"
)

// App is the wired application.
type App struct {
	Router  *gin.Engine
	Service service.ModelService
	Metrics *metrics.Recorder
	DB      *sql.DB
}

// migrator is an indirection used by InitializeApp; overridden in tests.
var migrator = storage.Migrate

// InitializeApp sets up all application dependencies and returns the wired
// App, a cleanup function for graceful shutdown, and any error encountered
// during initialization.
//
// Responsibilities:
//   - Opens the price store (SQLite or PostgreSQL) and applies migrations.
//   - Creates the model directory.
//   - Builds the price source, the per-ticker lock and the metrics recorder.
//   - Creates the model service and the HTTP handler layer.
//   - Configures the Gin router and registers health and readiness probes.
//   - Provides a cleanup function to close resources.
func InitializeApp(ctx context.Context, cfg config.Config) (*App, func(), error) {
	cal, err := calendar.ByName(cfg.Model.Calendar)
	if err != nil {
		return nil, nil, err
	}

	// indirection for unit testing
	db, err := dbOpener(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	driver := cfg.Database.Driver
	if driver == "" {
		driver = "sqlite"
	}
	if err := migrator(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := os.MkdirAll(cfg.Model.Directory, 0o755); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create model directory: %w", err)
	}

	source, err := NewSource(cfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	locker, closeLocker, err := NewLocker(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	rec := metrics.New()

	svc := service.NewModelService(db, source, locker, rec, service.Options{
		Model: volatility.Options{
			ModelDirectory: cfg.Model.Directory,
			Calendar:       cal,
			Garch:          garch.Options{MaxIterations: cfg.Model.MaxIterations},
			MaxHorizon:     cfg.Model.MaxHorizon,
		},
		FitTimeout: cfg.Model.FitTimeout,
	})

	// Initialize HTTP handler layer (model workflows to HTTP mapping)
	handler := api.NewHandler(svc)

	router := api.NewRouter(handler, api.RouterOptions{
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      cfg.Server.RateLimit,
		Metrics:        rec,
		MetricsHandler: rec.Handler(),
	})

	// Register health and readiness probes
	api.NewHealthHandler(db.PingContext, cfg.Model.Directory).Register(router)

	cleanup := func() {
		closeLocker()
		_ = db.Close()
	}

	return &App{Router: router, Service: svc, Metrics: rec, DB: db}, cleanup, nil
}
