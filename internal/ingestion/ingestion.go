// Package ingestion backfills the price store from daily-close CSV files, for
// tickers the network sources cannot serve or for offline seeding.
package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guttosm/volforecast/internal/logger"
	"github.com/guttosm/volforecast/internal/storage"
)

const (
	fileSuffix       = ".csv"
	defaultBatchSize = 1000
	maxParallel      = 8
)

// repoCtor is an indirection for creating the repository; tests can override this.
var repoCtor = func(db storage.DBTX) storage.PriceRepository {
	return storage.NewPriceRepository(db)
}

// TickerFromFile returns the ticker a file holds: its base name without the
// .csv suffix, upper-cased. ok is false for files that are not CSV.
func TickerFromFile(path string) (ticker string, ok bool) {
	base := filepath.Base(path)
	if !strings.EqualFold(filepath.Ext(base), fileSuffix) {
		return "", false
	}
	ticker = strings.ToUpper(strings.TrimSpace(base[:len(base)-len(fileSuffix)]))
	return ticker, ticker != ""
}

// ProcessDirectory imports every <TICKER>.csv file in dir.
//
// Parameters:
//   - dir:      directory containing the CSV files.
//   - db:       open database handle.
//   - parallel: files processed concurrently; 0 means min(8, NumCPU).
//
// Behavior:
//   - Fails upfront when dir holds no CSV files.
//   - Parses and upserts each file in batches; re-importing a file is harmless.
//   - If any file returns error, cancels the rest and returns that error.
//
// Returns:
//   - map[string]int: rows written per ticker for the files that completed.
//   - error: first error encountered (if any).
func ProcessDirectory(ctx context.Context, dir string, db storage.DBTX, parallel int) (map[string]int, error) {
	// use indirection to allow tests to swap repository constructor
	repo := repoCtor(db)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	files := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ticker, ok := TickerFromFile(e.Name())
		if !ok {
			continue
		}
		if prev, dup := files[ticker]; dup {
			return nil, fmt.Errorf("files %s and %s both hold %s", prev, e.Name(), ticker)
		}
		files[ticker] = filepath.Join(dir, e.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files in %s", fileSuffix, dir)
	}

	tickers := make([]string, 0, len(files))
	for t := range files {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	limit := parallel
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	if limit > maxParallel {
		limit = maxParallel
	}

	logger.L().Info().Int("files", len(files)).Str("dir", dir).Int("max_parallel", limit).Msg("ingestion start")

	var (
		mu     sync.Mutex
		counts = make(map[string]int, len(files))
	)

	// errgroup will cancel siblings on first error.
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, limit)

dispatch:
	for i, ticker := range tickers {
		path := files[ticker]
		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			break dispatch
		}

		g.Go(func() error {
			defer func() { <-sem }()
			start := time.Now()
			base := filepath.Base(path)
			log := logger.ForTicker(ticker)
			log.Info().Int("idx", i+1).Int("total", len(tickers)).Str("file", base).Msg("file start")

			total, err := parseAndPersistFile(gctx, path, ticker, repo, defaultBatchSize)
			if err != nil {
				log.Error().Str("file", base).Dur("elapsed", time.Since(start)).Err(err).Msg("file failed")
				return fmt.Errorf("file %s: %w", base, err)
			}

			mu.Lock()
			counts[ticker] = total
			mu.Unlock()
			log.Info().Int("idx", i+1).Int("total", len(tickers)).Str("file", base).Int("rows", total).Dur("elapsed", time.Since(start)).Msg("file done")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return counts, err
	}
	return counts, ctx.Err()
}
