// Package scheduler refits models for a watchlist on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/guttosm/volforecast/internal/domain/dto"
	"github.com/guttosm/volforecast/internal/logger"
	"github.com/guttosm/volforecast/internal/service"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// RefitJob describes which tickers to refit and with which settings.
type RefitJob struct {
	Tickers       []string
	UseNewData    bool
	NObservations int
	P             int
	Q             int
	// Parallel caps concurrent fits. Zero means min(4, NumCPU).
	Parallel int
}

func (j RefitJob) parallel() int {
	if j.Parallel > 0 {
		return j.Parallel
	}
	if c := runtime.NumCPU(); c < 4 {
		return c
	}
	return 4
}

// Observer receives the outcome of each refit run.
type Observer interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
}

// RefitAll fits every ticker in job. A failing ticker does not cancel the
// others; all failures are joined into the returned error. Responses are in
// job.Tickers order.
func RefitAll(ctx context.Context, svc service.ModelService, job RefitJob) ([]dto.FitResponse, error) {
	results := make([]dto.FitResponse, len(job.Tickers))
	failures := make([]error, len(job.Tickers))

	logger.L().Info().Int("tickers", len(job.Tickers)).Int("max_parallel", job.parallel()).Msg("refit start")

	var g errgroup.Group
	g.SetLimit(job.parallel())
	for i, ticker := range job.Tickers {
		g.Go(func() error {
			start := time.Now()
			resp := svc.Fit(ctx, dto.FitRequest{
				Ticker:        ticker,
				UseNewData:    job.UseNewData,
				NObservations: job.NObservations,
				P:             job.P,
				Q:             job.Q,
			})
			results[i] = resp
			if !resp.Success {
				failures[i] = fmt.Errorf("%s: %s", ticker, resp.Message)
				logger.L().Error().Str("ticker", ticker).Dur("elapsed", time.Since(start)).Str("error", resp.Message).Msg("refit failed")
				return nil
			}
			logger.L().Info().Str("ticker", ticker).Dur("elapsed", time.Since(start)).Msg(resp.Message)
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(failures...)
}

// Scheduler runs RefitAll on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	svc  service.ModelService
	job  RefitJob
	obs  Observer
}

// New creates a scheduler. Specs use the six-field format with seconds.
// Runs that are still going when the next tick fires are skipped.
func New(ctx context.Context, svc service.ModelService, job RefitJob, obs Observer) *Scheduler {
	l := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		ctx: ctx,
		svc: svc,
		job: job,
		obs: obs,
	}
}

// Register schedules the refit job at spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.RunNow); err != nil {
		return fmt.Errorf("register refit job: %w", err)
	}
	return nil
}

// RunNow executes one refit pass synchronously.
func (s *Scheduler) RunNow() {
	start := time.Now()
	_, err := RefitAll(s.ctx, s.svc, s.job)
	if s.obs != nil {
		s.obs.ObserveOperation("refit", err, time.Since(start))
	}
	if err != nil {
		logger.L().Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("refit finished with failures")
		return
	}
	logger.L().Info().Dur("elapsed", time.Since(start)).Msg("refit finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.L().Info().Int("entries", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop stops scheduling and waits for a running refit, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	logger.L().Info().Msg("scheduler stopped")
}

// cronLogger adapts cron's logger to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.L().Debug().Str("component", "cron").Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.L().Error().Str("component", "cron").Err(err).Fields(keysAndValues).Msg(msg)
}
