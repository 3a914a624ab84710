package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	base        zerolog.Logger
	initialized bool
)

// Options controls the global logger.
//
//   - Level: debug|info|warn|error (default: info)
//   - Pretty: human-readable console output instead of JSON lines
//   - Output: destination writer (default: os.Stdout)
type Options struct {
	Level  string
	Pretty bool
	Output io.Writer
}

// Init configures the global logger. Every entry carries the service name so
// logs from the API and the refit job can be told apart once aggregated.
func Init(opts Options) {
	level := parseLevel(opts.Level)

	zerolog.TimeFieldFormat = time.RFC3339Nano
	var w io.Writer = os.Stdout
	if opts.Output != nil {
		w = opts.Output
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	base = zerolog.New(w).With().Timestamp().Str("service", "volforecast").Logger().Level(level)
	initialized = true
}

// L returns the global logger. Call Init() once on startup; an uninitialized
// logger falls back to info-level JSON on stdout.
func L() *zerolog.Logger {
	if !initialized {
		Init(Options{})
	}
	return &base
}

// ForTicker returns a child logger tagged with the ticker being processed.
func ForTicker(ticker string) zerolog.Logger {
	return L().With().Str("ticker", ticker).Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error", "err":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
