package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/guttosm/volforecast/config"
	"github.com/guttosm/volforecast/internal/calendar"
	"github.com/guttosm/volforecast/internal/domain/dto"
	"github.com/guttosm/volforecast/internal/domain/models"
	"github.com/guttosm/volforecast/internal/lock"
	"github.com/guttosm/volforecast/internal/storage"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Server:   config.ServerConfig{Port: "0"},
		Database: config.DatabaseConfig{Driver: "sqlite", SQLitePath: filepath.Join(dir, "stocks.sqlite")},
		Model:    config.ModelConfig{Directory: filepath.Join(dir, "models"), Calendar: calendar.Weekdays},
		Source:   config.SourceConfig{Provider: "none"},
		Lock:     config.LockConfig{Backend: "memory"},
	}
}

// TestInitializeApp_DBFailure ensures InitializeApp returns error when DB cannot connect.
func TestInitializeApp_DBFailure(t *testing.T) {
	old := dbOpener
	dbOpener = func(config.Config) (*sql.DB, error) { return nil, errors.New("connection refused") }
	t.Cleanup(func() { dbOpener = old })

	a, cleanup, err := InitializeApp(context.Background(), baseConfig(t))
	if err == nil || a != nil || cleanup != nil {
		if cleanup != nil {
			cleanup()
		}
		t.Fatalf("expected error from InitializeApp with failing database")
	}
}

func TestInitializeApp_MigrateFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	mock.ExpectClose()

	oldOpen, oldMigrate := dbOpener, migrator
	dbOpener = func(config.Config) (*sql.DB, error) { return db, nil }
	migrator = func(context.Context, *sql.DB, string) error { return errors.New("bad migration") }
	t.Cleanup(func() { dbOpener, migrator = oldOpen, oldMigrate })

	if _, _, err := InitializeApp(context.Background(), baseConfig(t)); err == nil {
		t.Fatalf("expected migration error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("database was not closed: %v", err)
	}
}

func TestInitializeApp_HappyPath(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Override opener to return a sqlmock DB that pings successfully
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	mock.ExpectPing()
	mock.ExpectClose()

	var migratedWith string
	oldOpen, oldMigrate := dbOpener, migrator
	dbOpener = func(config.Config) (*sql.DB, error) { return db, nil }
	migrator = func(_ context.Context, _ *sql.DB, driver string) error { migratedWith = driver; return nil }
	t.Cleanup(func() { dbOpener, migrator = oldOpen, oldMigrate })

	cfg := baseConfig(t)
	a, cleanup, err := InitializeApp(context.Background(), cfg)
	if err != nil || a == nil || cleanup == nil {
		t.Fatalf("InitializeApp failed: %v", err)
	}
	if migratedWith != "sqlite" {
		t.Fatalf("expected sqlite migrations, got %q", migratedWith)
	}
	if fi, err := os.Stat(cfg.Model.Directory); err != nil || !fi.IsDir() {
		t.Fatalf("model directory not created: %v", err)
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		w := httptest.NewRecorder()
		a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, w.Code, w.Body.String())
		}
	}

	cleanup()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInitializeApp_InvalidCalendar(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Model.Calendar = "lse"
	if _, _, err := InitializeApp(context.Background(), cfg); err == nil {
		t.Fatalf("expected calendar error")
	}
}

func TestNewSource(t *testing.T) {
	cases := []struct {
		provider string
		name     string
		nilSrc   bool
		wantErr  bool
	}{
		{provider: "alphavantage", name: "alphavantage"},
		{provider: "yahoo", name: "yahoo"},
		{provider: "none", nilSrc: true},
		{provider: "bloomberg", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			src, err := NewSource(config.Config{Source: config.SourceConfig{Provider: tc.provider, AlphaVantageAPIKey: "k"}})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.nilSrc {
				if src != nil {
					t.Fatalf("expected nil source, got %T", src)
				}
				return
			}
			if src.Name() != tc.name {
				t.Fatalf("expected %s, got %s", tc.name, src.Name())
			}
		})
	}
}

func TestNewLocker(t *testing.T) {
	l, cleanup, err := NewLocker(context.Background(), config.Config{Lock: config.LockConfig{Backend: "memory"}})
	if err != nil {
		t.Fatalf("memory locker: %v", err)
	}
	defer cleanup()
	if _, ok := l.(*lock.Memory); !ok {
		t.Fatalf("expected *lock.Memory, got %T", l)
	}

	if _, _, err := NewLocker(context.Background(), config.Config{Lock: config.LockConfig{Backend: "etcd"}}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, _, err := NewLocker(ctx, config.Config{Lock: config.LockConfig{Backend: "redis", RedisAddr: "127.0.0.1:1"}}); err == nil {
		t.Fatalf("expected ping error for unreachable redis")
	}
}

// seedPrices stores a GARCH(1,1)-like price path so a fit can run without a
// network source.
func seedPrices(t *testing.T, db *sql.DB, ticker string, n int) {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	cal, _ := calendar.ByName(calendar.Weekdays)
	dates := calendar.NextN(cal, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), n)

	const omega, alpha, beta = 0.05, 0.1, 0.85
	sigma2 := omega / (1 - alpha - beta)
	price := 50.0
	rows := make([]models.PriceObservation, n)
	for i := range rows {
		e := math.Sqrt(sigma2) * rng.NormFloat64()
		price *= 1 + e/100
		rows[i] = models.PriceObservation{Ticker: ticker, Timestamp: dates[i], Close: price}
		sigma2 = omega + alpha*e*e + beta*sigma2
	}
	if _, err := storage.NewPriceRepository(db).Insert(context.Background(), ticker, rows); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func postJSON(t *testing.T, h http.Handler, path string, body any, out any) {
	t.Helper()
	b, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("%s status=%d body=%s", path, w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("%s json: %v", path, err)
	}
}

// TestInitializeApp_FitPredictSQLite drives the real wiring end to end on a
// SQLite file.
func TestInitializeApp_FitPredictSQLite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := baseConfig(t)

	a, cleanup, err := InitializeApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("InitializeApp: %v", err)
	}
	defer cleanup()
	seedPrices(t, a.DB, "AAPL", 600)

	var predictBefore dto.PredictResponse
	postJSON(t, a.Router, "/predict", dto.PredictRequest{Ticker: "AAPL", NDays: 3}, &predictBefore)
	if predictBefore.Success || len(predictBefore.Forecast) != 0 {
		t.Fatalf("predict before fit should fail: %+v", predictBefore)
	}

	var fit dto.FitResponse
	postJSON(t, a.Router, "/fit", dto.FitRequest{Ticker: "AAPL", UseNewData: false, NObservations: 500, P: 1, Q: 1}, &fit)
	if !fit.Success {
		t.Fatalf("fit failed: %s", fit.Message)
	}
	entries, err := os.ReadDir(cfg.Model.Directory)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one artifact, got %v (%v)", entries, err)
	}

	var pred dto.PredictResponse
	postJSON(t, a.Router, "/predict", dto.PredictRequest{Ticker: "AAPL", NDays: 3}, &pred)
	if !pred.Success || len(pred.Forecast) != 3 {
		t.Fatalf("unexpected forecast: %+v", pred)
	}
	for date, v := range pred.Forecast {
		if _, err := time.Parse(models.ForecastDateLayout, date); err != nil {
			t.Fatalf("bad forecast key %q: %v", date, err)
		}
		if !(v > 0) || math.IsInf(v, 0) {
			t.Fatalf("bad forecast value %v for %s", v, date)
		}
	}
}
