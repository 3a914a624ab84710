package main

//
//  @title           volforecast API
//  @version         1.0
//  @description     GARCH volatility model fitting and forecasting service.
//  @termsOfService  https://github.com/guttosm/volforecast
//  @contact.name    API Support
//  @contact.url     https://github.com/guttosm/volforecast
//  @contact.email   support@example.com
//  @license.name    MIT
//  @license.url     https://opensource.org/licenses/MIT
//  @host            localhost:8080
//  @BasePath        /
//  @schemes         http
//
//  @tag.name        models
//  @tag.description Fit and forecast volatility models
//
//  @tag.name        health
//  @tag.description Liveness and readiness probes

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guttosm/volforecast/config"
	_ "github.com/guttosm/volforecast/docs" // swagger docs
	"github.com/guttosm/volforecast/internal/app"
	"github.com/guttosm/volforecast/internal/ingestion"
	"github.com/guttosm/volforecast/internal/logger"
	"github.com/guttosm/volforecast/internal/scheduler"
	"github.com/guttosm/volforecast/internal/storage"
)

// startServer initializes and starts the HTTP server in a separate goroutine.
//
// Parameters:
//   - router (http.Handler): The HTTP router (Gin Engine) configured with all routes.
//   - port (string): The port where the server will listen for incoming requests.
//   - writeTimeout (time.Duration): Upper bound for writing a response; fits can be slow.
//
// Returns:
//   - *http.Server: The initialized HTTP server instance.
func startServer(router http.Handler, port string, writeTimeout time.Duration) *http.Server {
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.L().Info().Str("port", port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msg("server failed to start")
		}
	}()

	return server
}

// gracefulShutdown gracefully terminates the HTTP server and cleans up resources
// when an OS interrupt signal (SIGINT, SIGTERM) is received.
//
// Parameters:
//   - ctx (context.Context): A context with timeout for graceful shutdown.
//   - server (*http.Server): The HTTP server instance to shut down.
//   - cleanup (func()): Cleanup callback to release resources (scheduler, DB connections).
func gracefulShutdown(ctx context.Context, server *http.Server, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	<-quit
	logger.L().Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L().Error().Err(err).Msg("server forced to shutdown")
	}

	cleanup()
	logger.L().Info().Msg("server exited gracefully")
}

// refitJob builds the watchlist job from configuration, letting a non-empty
// tickers flag replace the configured list.
func refitJob(cfg config.RefitConfig, tickers string) scheduler.RefitJob {
	list := cfg.Tickers
	if tickers != "" {
		list = config.SplitList(tickers)
	}
	return scheduler.RefitJob{
		Tickers:       list,
		UseNewData:    cfg.UseNewData,
		NObservations: cfg.NObservations,
		P:             cfg.P,
		Q:             cfg.Q,
		Parallel:      cfg.Parallel,
	}
}

// main is the entry point of the volforecast application.
//
// Modes (selected via --mode flag):
//   - api:   Starts the REST API (/fit, /predict). When REFIT_CRON is set the
//     watchlist is also refitted on that schedule.
//   - refit:  Fits every watchlist ticker once and exits.
//   - ingest: Imports <TICKER>.csv daily-close files from --dir into the price store.
//
// Flags:
//   - --mode:     Execution mode ("api", "refit" or "ingest"). Default: "api".
//   - --port:     Port for the API server. Defaults to value from config (SERVER_PORT).
//   - --tickers:  Comma-separated watchlist overriding REFIT_TICKERS.
//   - --dir:      Directory with CSV files for ingest. Default: "./data/input".
//   - --parallel: Files imported concurrently (0=auto up to CPU, max 8).
func main() {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Load configuration from environment or .env file
	cfg, err := config.LoadConfig()

	logger.Init(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if err != nil {
		logger.L().Fatal().Err(err).Msg("config error")
	}

	// Parse CLI flags (override config defaults if provided)
	mode := flag.String("mode", "api", "Mode: api, refit or ingest")
	port := flag.String("port", cfg.Server.Port, "Port for API mode")
	tickers := flag.String("tickers", "", "Comma-separated tickers for refit (overrides REFIT_TICKERS)")
	dir := flag.String("dir", "./data/input", "Directory with <TICKER>.csv files for ingest")
	parallel := flag.Int("parallel", 0, "How many files to import concurrently (0=auto up to CPU, max 8)")
	flag.Parse()

	if *mode == "ingest" {
		runIngest(ctx, cfg, *dir, *parallel)
		return
	}

	a, cleanup, err := app.InitializeApp(ctx, cfg)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("app init error")
	}

	switch *mode {
	case "refit":
		job := refitJob(cfg.Refit, *tickers)
		if len(job.Tickers) == 0 {
			cleanup()
			logger.L().Fatal().Msg("refit needs tickers (REFIT_TICKERS or --tickers)")
		}
		logger.L().Info().Strs("tickers", job.Tickers).Msg("running refit")

		start := time.Now()
		results, err := scheduler.RefitAll(ctx, a.Service, job)
		a.Metrics.ObserveOperation("refit", err, time.Since(start))
		for _, r := range results {
			logger.L().Info().Str("ticker", r.Ticker).Bool("success", r.Success).Msg(r.Message)
		}
		cleanup()
		if err != nil {
			logger.L().Fatal().Err(err).Msg("refit finished with failures")
		}
		logger.L().Info().Msg("refit completed successfully")

	case "api":
		logger.L().Info().Msg("starting API server")

		var sched *scheduler.Scheduler
		if cfg.Refit.Cron != "" {
			sched = scheduler.New(ctx, a.Service, refitJob(cfg.Refit, *tickers), a.Metrics)
			if err := sched.Register(cfg.Refit.Cron); err != nil {
				cleanup()
				logger.L().Fatal().Err(err).Msg("invalid REFIT_CRON")
			}
			sched.Start()
		}

		writeTimeout := cfg.Server.RequestTimeout + 10*time.Second
		server := startServer(a.Router, *port, writeTimeout)
		gracefulShutdown(ctx, server, func() {
			stop()
			if sched != nil {
				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				sched.Stop(stopCtx)
				cancel()
			}
			cleanup()
		})

	default:
		cleanup()
		logger.L().Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}

// runIngest opens the store directly; the API wiring is not needed to import files.
func runIngest(ctx context.Context, cfg config.Config, dir string, parallel int) {
	logger.L().Info().Str("dir", dir).Msg("running ingestion")

	db, err := app.InitDB(cfg)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("db connect error")
	}
	defer func() { _ = db.Close() }()

	if err := storage.Migrate(ctx, db, cfg.Database.Driver); err != nil {
		logger.L().Fatal().Err(err).Msg("migration failed")
	}

	counts, err := ingestion.ProcessDirectory(ctx, dir, db, parallel)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("ingestion failed")
	}
	logger.L().Info().Interface("rows", counts).Msg("ingestion completed successfully")
}
