package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guttosm/volforecast/internal/domain/dto"
	"github.com/guttosm/volforecast/internal/domain/errs"
	"github.com/guttosm/volforecast/internal/lock"
	"github.com/guttosm/volforecast/internal/logger"
	"github.com/guttosm/volforecast/internal/marketdata"
	"github.com/guttosm/volforecast/internal/storage"
	"github.com/guttosm/volforecast/internal/volatility"
)

// ModelService runs the fit and predict workflows. Failures never escape as
// errors; they are reported in the response with Success=false.
type ModelService interface {
	Fit(ctx context.Context, req dto.FitRequest) dto.FitResponse
	Predict(ctx context.Context, req dto.PredictRequest) dto.PredictResponse
}

// ConnProvider hands out dedicated connections. *sql.DB satisfies it.
type ConnProvider interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Observer receives operation metrics. *metrics.Recorder satisfies it.
type Observer interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
	ObserveLockWait(op string, waited time.Duration)
	SetPersistence(ticker string, v float64)
}

type noopObserver struct{}

func (noopObserver) ObserveOperation(string, error, time.Duration) {}
func (noopObserver) ObserveLockWait(string, time.Duration)         {}
func (noopObserver) SetPersistence(string, float64)                {}

// Options configure model construction and fit limits.
type Options struct {
	Model volatility.Options
	// FitTimeout bounds one fit request including lock wait. Zero means none.
	FitTimeout time.Duration
}

type modelService struct {
	db     ConnProvider
	source marketdata.Source
	locker lock.Locker
	obs    Observer
	opts   Options
}

// NewModelService wires the workflows. A nil locker defaults to an in-process
// lock and a nil observer discards metrics.
func NewModelService(db ConnProvider, source marketdata.Source, locker lock.Locker, obs Observer, opts Options) ModelService {
	if locker == nil {
		locker = lock.NewMemory()
	}
	if obs == nil {
		obs = noopObserver{}
	}
	return &modelService{db: db, source: source, locker: locker, obs: obs, opts: opts}
}

func (s *modelService) Fit(ctx context.Context, req dto.FitRequest) dto.FitResponse {
	resp := dto.FitResponse{FitRequest: req}
	start := time.Now()

	name, err := s.fit(ctx, req)
	s.obs.ObserveOperation("fit", err, time.Since(start))
	if err != nil {
		logger.L().Warn().Err(err).Str("ticker", req.Ticker).Str("kind", errs.Kind(err)).Msg("fit failed")
		resp.Message = err.Error()
		return resp
	}

	resp.Success = true
	resp.Message = fmt.Sprintf("Trained and saved '%s'.", name)
	return resp
}

func (s *modelService) fit(ctx context.Context, req dto.FitRequest) (name string, err error) {
	defer recoverInto(&err)

	if s.opts.FitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.FitTimeout)
		defer cancel()
	}

	waitStart := time.Now()
	unlock, err := s.locker.Lock(ctx, req.Ticker)
	s.obs.ObserveLockWait("fit", time.Since(waitStart))
	if err != nil {
		return "", fmt.Errorf("acquire lock for %q: %w", req.Ticker, err)
	}
	defer unlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return "", fmt.Errorf("database connection: %w", err)
	}
	defer conn.Close()

	model := volatility.New(req.Ticker, storage.NewPriceRepository(conn), s.source, req.UseNewData, s.opts.Model)
	if err := model.WrangleData(ctx, req.NObservations); err != nil {
		return "", err
	}
	if err := model.Fit(ctx, req.P, req.Q); err != nil {
		return "", err
	}
	name, err = model.Dump()
	if err != nil {
		return "", err
	}
	s.obs.SetPersistence(req.Ticker, model.Fitted().Params.Persistence())
	return name, nil
}

func (s *modelService) Predict(ctx context.Context, req dto.PredictRequest) dto.PredictResponse {
	resp := dto.PredictResponse{PredictRequest: req, Forecast: map[string]float64{}}
	start := time.Now()

	forecast, err := s.predict(ctx, req)
	s.obs.ObserveOperation("predict", err, time.Since(start))
	if err != nil {
		logger.L().Warn().Err(err).Str("ticker", req.Ticker).Str("kind", errs.Kind(err)).Msg("predict failed")
		resp.Message = err.Error()
		return resp
	}

	resp.Success = true
	resp.Forecast = forecast
	return resp
}

// predict reads only the artifact directory, so a database outage does not
// affect forecasting.
func (s *modelService) predict(_ context.Context, req dto.PredictRequest) (out map[string]float64, err error) {
	defer recoverInto(&err)

	model := volatility.New(req.Ticker, nil, nil, false, s.opts.Model)
	if err := model.Load(); err != nil {
		return nil, err
	}
	fc, err := model.PredictVolatility(req.NDays)
	if err != nil {
		return nil, err
	}
	return fc.AsMap(), nil
}

// recoverInto turns a panic in a workflow into an error so one bad request
// cannot take the process down.
func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("internal error: %v", r)
	}
}
