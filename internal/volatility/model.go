// Package volatility runs the model lifecycle for one ticker: building a
// return series from stored prices, fitting GARCH, persisting the fit as an
// artifact, and forecasting from a persisted artifact.
//
// A Model is request scoped and not safe for concurrent use.
package volatility

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/guttosm/volforecast/internal/calendar"
	"github.com/guttosm/volforecast/internal/domain/errs"
	"github.com/guttosm/volforecast/internal/domain/models"
	"github.com/guttosm/volforecast/internal/garch"
	"github.com/guttosm/volforecast/internal/logger"
	"github.com/guttosm/volforecast/internal/marketdata"
	"github.com/guttosm/volforecast/internal/storage"
	"github.com/rs/zerolog"
)

// Options configure where artifacts live and how models are fit.
type Options struct {
	ModelDirectory string
	// Calendar steps forecast dates. Nil means weekdays.
	Calendar calendar.Calendar
	Garch    garch.Options
	// MaxHorizon caps PredictVolatility. Zero means DefaultMaxHorizon.
	MaxHorizon int
}

// DefaultMaxHorizon is the largest forecast horizon accepted when Options
// does not set one.
const DefaultMaxHorizon = 1000

// Model is one ticker's volatility model.
type Model struct {
	ticker     string
	repo       storage.PriceRepository
	source     marketdata.Source
	useNewData bool
	opts       Options

	state   State
	returns models.ReturnSeries
	fitted  *FittedModel

	now func() time.Time
	log zerolog.Logger
}

// New binds a model to ticker, its price repository and an optional source
// used when useNewData is set.
func New(ticker string, repo storage.PriceRepository, source marketdata.Source, useNewData bool, opts Options) *Model {
	if opts.Calendar == nil {
		opts.Calendar, _ = calendar.ByName(calendar.Weekdays)
	}
	if opts.MaxHorizon <= 0 {
		opts.MaxHorizon = DefaultMaxHorizon
	}
	return &Model{
		ticker:     ticker,
		repo:       repo,
		source:     source,
		useNewData: useNewData,
		opts:       opts,
		now:        time.Now,
		log:        logger.ForTicker(ticker),
	}
}

func (m *Model) Ticker() string { return m.ticker }

// State reports the lifecycle position.
func (m *Model) State() State { return m.state }

// Returns is the series built by WrangleData.
func (m *Model) Returns() models.ReturnSeries { return m.returns }

// Fitted is the model produced by Fit or Load, or nil.
func (m *Model) Fitted() *FittedModel { return m.fitted }

func (m *Model) stateErr(op string) error {
	return fmt.Errorf("%w: cannot %s %q in state %s", errs.ErrState, op, m.ticker, m.state)
}

// WrangleData builds the return series from the most recent nObservations
// stored closes, refreshing storage from the price source first when the model
// was created with useNewData.
func (m *Model) WrangleData(ctx context.Context, nObservations int) error {
	if !m.state.in(Uninitialized, DataReady) {
		return m.stateErr("wrangle data for")
	}
	if nObservations < 2 {
		return fmt.Errorf("%w: n_observations must be at least 2, got %d", errs.ErrValidation, nObservations)
	}

	if m.useNewData {
		if err := m.refresh(ctx); err != nil {
			return err
		}
	}

	rows, err := m.repo.Read(ctx, m.ticker, nObservations)
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("%w: no price history stored for %q", errs.ErrDataUnavailable, m.ticker)
	}
	if err != nil {
		return fmt.Errorf("read prices for %q: %w", m.ticker, err)
	}

	series, err := Returns(m.ticker, rows)
	if err != nil {
		return err
	}
	m.returns = series
	m.state = DataReady
	m.log.Debug().Int("observations", len(rows)).Int("returns", series.Len()).Msg("return series ready")
	return nil
}

// refresh pulls the full history from the source into storage. A failing or
// empty source leaves storage as it is and the caller falls back to cached rows.
func (m *Model) refresh(ctx context.Context) error {
	if m.source == nil {
		m.log.Warn().Msg("no price source configured, using cached prices")
		return nil
	}
	obs, err := m.source.DailyCloses(ctx, m.ticker)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		m.log.Warn().Err(err).Str("source", m.source.Name()).Msg("price source failed, using cached prices")
		return nil
	}
	if len(obs) == 0 {
		m.log.Warn().Str("source", m.source.Name()).Msg("price source returned no data, using cached prices")
		return nil
	}
	n, err := m.repo.Insert(ctx, m.ticker, obs)
	if err != nil {
		return fmt.Errorf("store prices for %q: %w", m.ticker, err)
	}
	m.log.Info().Str("source", m.source.Name()).Int("rows", n).Msg("price history refreshed")
	return nil
}

// Fit estimates GARCH(p, q) on the wrangled returns. It may be called again
// on the same data to refit with another order.
func (m *Model) Fit(ctx context.Context, p, q int) error {
	if !m.state.in(DataReady, Fitted, Persisted) {
		return m.stateErr("fit")
	}
	if p < 1 || q < 1 {
		return fmt.Errorf("%w: %w: p and q must be positive integers, got p=%d q=%d", errs.ErrFit, errs.ErrValidation, p, q)
	}

	start := time.Now()
	res, err := garch.Fit(ctx, m.returns.Values, p, q, m.opts.Garch)
	if err != nil {
		return fmt.Errorf("%w: GARCH(%d,%d) for %q: %w", errs.ErrFit, p, q, m.ticker, err)
	}

	m.fitted = &FittedModel{
		Version:         artifactVersion,
		Ticker:          m.ticker,
		P:               p,
		Q:               q,
		Params:          res.Params,
		LogLikelihood:   res.LogLikelihood,
		NumObservations: m.returns.Len() + 1,
		Iterations:      res.Iterations,
		FittedAt:        m.now().UTC(),
		LastDate:        m.returns.LastDate().UTC(),
		Calendar:        m.opts.Calendar.Name(),
		Scale:           ReturnScale,
		State:           res.State(),
	}
	m.state = Fitted
	m.log.Info().
		Int("p", p).Int("q", q).
		Float64("log_likelihood", res.LogLikelihood).
		Float64("persistence", res.Params.Persistence()).
		Int("iterations", res.Iterations).
		Dur("elapsed", time.Since(start)).
		Msg("model fitted")
	return nil
}

// Dump writes the fitted model to the model directory and returns the file
// name. The write is all-or-nothing.
func (m *Model) Dump() (string, error) {
	if !m.state.in(Fitted, Persisted) {
		return "", m.stateErr("dump")
	}
	if err := checkTicker(m.ticker); err != nil {
		return "", err
	}
	name, err := writeArtifact(m.opts.ModelDirectory, m.fitted)
	if err != nil {
		return "", err
	}
	m.state = Persisted
	m.log.Info().Str("artifact", name).Msg("model saved")
	return name, nil
}

// Load reads the most recently fitted artifact for the ticker.
func (m *Model) Load() error {
	if !m.state.in(Uninitialized, Loaded, Forecasted) {
		return m.stateErr("load")
	}
	if err := checkTicker(m.ticker); err != nil {
		return err
	}
	name, err := latestArtifact(m.opts.ModelDirectory, m.ticker)
	if err != nil {
		return err
	}
	fm, err := readArtifact(filepath.Join(m.opts.ModelDirectory, name))
	if err != nil {
		return err
	}
	if fm.Ticker != m.ticker {
		return fmt.Errorf("corrupt artifact %s: holds ticker %q", name, fm.Ticker)
	}
	m.fitted = fm
	m.state = Loaded
	m.log.Debug().Str("artifact", name).Msg("model loaded")
	return nil
}

// PredictVolatility forecasts conditional volatility for the next horizon
// business days after the last observed date. Values are daily, in the
// percent units of the return series.
func (m *Model) PredictVolatility(horizon int) (models.Forecast, error) {
	if !m.state.in(Loaded, Forecasted) {
		return models.Forecast{}, m.stateErr("predict volatility for")
	}
	if horizon < 1 {
		return models.Forecast{}, fmt.Errorf("%w: horizon must be a positive integer, got %d", errs.ErrValidation, horizon)
	}
	if horizon > m.opts.MaxHorizon {
		return models.Forecast{}, fmt.Errorf("%w: horizon must be at most %d, got %d", errs.ErrValidation, m.opts.MaxHorizon, horizon)
	}

	cal, err := calendar.ByName(m.fitted.Calendar)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("artifact for %q: %w", m.ticker, err)
	}
	variances, err := garch.Forecast(m.fitted.Params, m.fitted.State, horizon)
	if err != nil {
		return models.Forecast{}, err
	}
	dates := calendar.NextN(cal, m.fitted.LastDate, horizon)

	fc := models.Forecast{Ticker: m.ticker, Points: make([]models.ForecastPoint, horizon)}
	for i, v := range variances {
		fc.Points[i] = models.ForecastPoint{Date: dates[i], Volatility: math.Sqrt(v)}
	}
	m.state = Forecasted
	return fc, nil
}
