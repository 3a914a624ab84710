package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guttosm/volforecast/internal/calendar"
	"github.com/spf13/viper"
)

// Config holds the full application configuration loaded from environment
// variables or a .env file.
//
// Example ENV:
//
//	SERVER_PORT=8080
//	DB_DRIVER=sqlite
//	SQLITE_PATH=stocks.sqlite
//	MODEL_DIRECTORY=models
//	PRICE_SOURCE=alphavantage
//	ALPHAVANTAGE_API_KEY=demo
//	REFIT_CRON="0 30 22 * * 1-5"
//	REFIT_TICKERS=AAPL,MSFT
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Postgres PostgresConfig
	Model    ModelConfig
	Source   SourceConfig
	Lock     LockConfig
	Refit    RefitConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string
	RequestTimeout time.Duration
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int
}

// DatabaseConfig selects the price store.
//
//   - Driver: "sqlite" (default, file at SQLitePath) or "postgres".
type DatabaseConfig struct {
	Driver       string
	SQLitePath   string
	MaxOpenConns int
}

// PostgresConfig defines connection details for PostgreSQL.
//
// Fields:
//   - Host, Port, User, Password, DBName, SSLMode: connection parameters.
//   - URL: computed DSN used by database/sql to connect.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string
}

// ModelConfig controls fitting and artifact storage.
type ModelConfig struct {
	Directory     string
	Calendar      string
	MaxIterations int
	// FitTimeout bounds a whole fit request; 0 means no limit.
	FitTimeout time.Duration
	// MaxHorizon is the largest n_days a predict request may ask for.
	MaxHorizon int
}

// SourceConfig selects the external price provider.
//
//   - Provider: "alphavantage", "yahoo" or "none" (cached rows only).
type SourceConfig struct {
	Provider           string
	AlphaVantageAPIKey string
	AlphaVantageURL    string
	YahooURL           string
	YahooRange         string
	Timeout            time.Duration
}

// LockConfig selects the per-ticker lock backend: "memory" or "redis".
type LockConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// RefitConfig describes the scheduled refit job. An empty Cron disables it.
type RefitConfig struct {
	Cron          string
	Tickers       []string
	UseNewData    bool
	NObservations int
	P             int
	Q             int
	Parallel      int
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level  string
	Pretty bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", 5*time.Minute)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)

	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("SQLITE_PATH", "stocks.sqlite")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "volforecast")
	v.SetDefault("POSTGRES_SSLMODE", "disable")

	v.SetDefault("MODEL_DIRECTORY", "models")
	v.SetDefault("MODEL_CALENDAR", calendar.NYSE)
	v.SetDefault("FIT_MAX_ITERATIONS", 5000)
	v.SetDefault("FIT_TIMEOUT", 2*time.Minute)
	v.SetDefault("FORECAST_MAX_HORIZON", 1000)

	v.SetDefault("PRICE_SOURCE", "alphavantage")
	v.SetDefault("ALPHAVANTAGE_API_KEY", "")
	v.SetDefault("ALPHAVANTAGE_URL", "https://www.alphavantage.co")
	v.SetDefault("YAHOO_URL", "https://query1.finance.yahoo.com")
	v.SetDefault("YAHOO_RANGE", "10y")
	v.SetDefault("SOURCE_TIMEOUT", 30*time.Second)

	v.SetDefault("LOCK_BACKEND", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL", 10*time.Minute)

	v.SetDefault("REFIT_CRON", "")
	v.SetDefault("REFIT_TICKERS", "")
	v.SetDefault("REFIT_USE_NEW_DATA", true)
	v.SetDefault("REFIT_N_OBSERVATIONS", 2000)
	v.SetDefault("REFIT_P", 1)
	v.SetDefault("REFIT_Q", 1)
	v.SetDefault("REFIT_PARALLEL", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
}

// LoadConfig reads configuration from a .env file in the working directory
// (if present) and the environment.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this package.
//  2. Values from .env file (if present).
//  3. Environment variables.
//
// The PostgreSQL DSN is derived from the POSTGRES_* values. A configuration
// that fails validation is returned together with an error naming every
// problem.
func LoadConfig() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(".env")
	_ = v.ReadInConfig() // ignore error if no .env

	v.AutomaticEnv()

	cfg := Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
			RateLimit:      v.GetInt("RATE_LIMIT_PER_MINUTE"),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
			SQLitePath:   v.GetString("SQLITE_PATH"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		},
		Postgres: PostgresConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetInt("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DBName:   v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		},
		Model: ModelConfig{
			Directory:     v.GetString("MODEL_DIRECTORY"),
			Calendar:      strings.ToLower(v.GetString("MODEL_CALENDAR")),
			MaxIterations: v.GetInt("FIT_MAX_ITERATIONS"),
			FitTimeout:    v.GetDuration("FIT_TIMEOUT"),
			MaxHorizon:    v.GetInt("FORECAST_MAX_HORIZON"),
		},
		Source: SourceConfig{
			Provider:           strings.ToLower(v.GetString("PRICE_SOURCE")),
			AlphaVantageAPIKey: v.GetString("ALPHAVANTAGE_API_KEY"),
			AlphaVantageURL:    v.GetString("ALPHAVANTAGE_URL"),
			YahooURL:           v.GetString("YAHOO_URL"),
			YahooRange:         v.GetString("YAHOO_RANGE"),
			Timeout:            v.GetDuration("SOURCE_TIMEOUT"),
		},
		Lock: LockConfig{
			Backend:       strings.ToLower(v.GetString("LOCK_BACKEND")),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			TTL:           v.GetDuration("LOCK_TTL"),
		},
		Refit: RefitConfig{
			Cron:          strings.TrimSpace(v.GetString("REFIT_CRON")),
			Tickers:       SplitList(v.GetString("REFIT_TICKERS")),
			UseNewData:    v.GetBool("REFIT_USE_NEW_DATA"),
			NObservations: v.GetInt("REFIT_N_OBSERVATIONS"),
			P:             v.GetInt("REFIT_P"),
			Q:             v.GetInt("REFIT_Q"),
			Parallel:      v.GetInt("REFIT_PARALLEL"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Pretty: v.GetBool("LOG_PRETTY"),
		},
	}

	cfg.Postgres.URL = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)

	return cfg, validateConfig(cfg)
}

// SplitList splits a comma or whitespace separated list, dropping empties.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.ToUpper(f))
	}
	return out
}

// validateConfig collects every missing or inconsistent setting.
func validateConfig(cfg Config) error {
	var problems []error
	missing := func(name string) { problems = append(problems, fmt.Errorf("missing %s", name)) }

	if cfg.Server.Port == "" {
		missing("SERVER_PORT")
	}
	if cfg.Model.Directory == "" {
		missing("MODEL_DIRECTORY")
	}
	if _, err := calendar.ByName(cfg.Model.Calendar); err != nil {
		problems = append(problems, fmt.Errorf("MODEL_CALENDAR: %w", err))
	}
	if cfg.Model.MaxHorizon < 1 {
		problems = append(problems, fmt.Errorf("FORECAST_MAX_HORIZON must be at least 1, got %d", cfg.Model.MaxHorizon))
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.SQLitePath == "" {
			missing("SQLITE_PATH")
		}
	case "postgres":
		if cfg.Postgres.Host == "" {
			missing("POSTGRES_HOST")
		}
		if cfg.Postgres.Port == 0 {
			missing("POSTGRES_PORT")
		}
		if cfg.Postgres.User == "" {
			missing("POSTGRES_USER")
		}
		if cfg.Postgres.DBName == "" {
			missing("POSTGRES_DB")
		}
	default:
		problems = append(problems, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.Database.Driver))
	}

	switch cfg.Source.Provider {
	case "alphavantage":
		if cfg.Source.AlphaVantageAPIKey == "" {
			missing("ALPHAVANTAGE_API_KEY")
		}
	case "yahoo", "none":
	default:
		problems = append(problems, fmt.Errorf("PRICE_SOURCE must be alphavantage, yahoo or none, got %q", cfg.Source.Provider))
	}

	switch cfg.Lock.Backend {
	case "memory":
	case "redis":
		if cfg.Lock.RedisAddr == "" {
			missing("REDIS_ADDR")
		}
	default:
		problems = append(problems, fmt.Errorf("LOCK_BACKEND must be memory or redis, got %q", cfg.Lock.Backend))
	}

	if cfg.Refit.Cron != "" && len(cfg.Refit.Tickers) == 0 {
		missing("REFIT_TICKERS (required when REFIT_CRON is set)")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
	}
	return nil
}
