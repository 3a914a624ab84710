package volatility

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/guttosm/volforecast/internal/domain/errs"
	"github.com/guttosm/volforecast/internal/garch"
	"gopkg.in/yaml.v3"
)

const (
	artifactVersion = 1
	artifactExt     = ".yaml"
	// artifactTimeLayout sorts lexically in time order and is safe in file names.
	artifactTimeLayout = "20060102T150405.000000000Z"
)

// FittedModel is everything needed to forecast without re-reading prices.
type FittedModel struct {
	Version         int          `yaml:"version"`
	Ticker          string       `yaml:"ticker"`
	P               int          `yaml:"p"`
	Q               int          `yaml:"q"`
	Params          garch.Params `yaml:"params"`
	LogLikelihood   float64      `yaml:"log_likelihood"`
	NumObservations int          `yaml:"n_observations"`
	Iterations      int          `yaml:"iterations"`
	FittedAt        time.Time    `yaml:"fitted_at"`
	LastDate        time.Time    `yaml:"last_date"`
	Calendar        string       `yaml:"calendar"`
	Scale           float64      `yaml:"scale"`
	State           garch.State  `yaml:"state"`
}

func (f *FittedModel) validate() error {
	if f.Version != artifactVersion {
		return fmt.Errorf("unsupported artifact version %d", f.Version)
	}
	if f.P != f.Params.P() || f.Q != f.Params.Q() {
		return fmt.Errorf("order GARCH(%d,%d) does not match %d alpha and %d beta terms",
			f.P, f.Q, f.Params.P(), f.Params.Q())
	}
	if err := f.Params.Validate(); err != nil {
		return err
	}
	if len(f.State.Residuals) < f.P || len(f.State.Variances) < f.Q {
		return errors.New("forecast state is shorter than the model order")
	}
	if f.LastDate.IsZero() {
		return errors.New("missing last_date")
	}
	return nil
}

// ArtifactName is the file name for ticker's model fitted at t.
func ArtifactName(ticker string, t time.Time) string {
	return ticker + "_" + t.UTC().Format(artifactTimeLayout) + artifactExt
}

// parseArtifactName splits a file name produced by ArtifactName. Tickers may
// contain underscores, so the split uses the last one.
func parseArtifactName(name string) (ticker string, fittedAt time.Time, ok bool) {
	base, found := strings.CutSuffix(name, artifactExt)
	if !found {
		return "", time.Time{}, false
	}
	i := strings.LastIndex(base, "_")
	if i <= 0 {
		return "", time.Time{}, false
	}
	t, err := time.Parse(artifactTimeLayout, base[i+1:])
	if err != nil {
		return "", time.Time{}, false
	}
	return base[:i], t, true
}

func checkTicker(ticker string) error {
	if ticker == "" || strings.ContainsAny(ticker, `/\`) || ticker == "." || ticker == ".." {
		return fmt.Errorf("%w: ticker %q cannot name a model artifact", errs.ErrValidation, ticker)
	}
	return nil
}

// writeArtifact encodes fm to a temporary file in dir and renames it into
// place, so readers never observe a partially written artifact.
func writeArtifact(dir string, fm *FittedModel) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return "", fmt.Errorf("encode model: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode model: %w", err)
	}

	name := ArtifactName(fm.Ticker, fm.FittedAt)
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		cleanup()
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	return name, nil
}

// latestArtifact returns the newest artifact file name for ticker in dir.
func latestArtifact(dir, ticker string) (string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: no trained model for %q", errs.ErrNotFound, ticker)
	}
	if err != nil {
		return "", fmt.Errorf("scan model directory: %w", err)
	}

	var (
		best     string
		bestTime time.Time
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		t, at, ok := parseArtifactName(e.Name())
		if !ok || t != ticker {
			continue
		}
		if best == "" || at.After(bestTime) {
			best, bestTime = e.Name(), at
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: no trained model for %q", errs.ErrNotFound, ticker)
	}
	return best, nil
}

func readArtifact(path string) (*FittedModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var fm FittedModel
	if err := dec.Decode(&fm); err != nil {
		return nil, fmt.Errorf("corrupt artifact %s: %w", filepath.Base(path), err)
	}
	if err := fm.validate(); err != nil {
		return nil, fmt.Errorf("corrupt artifact %s: %w", filepath.Base(path), err)
	}
	return &fm, nil
}
