package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guttosm/volforecast/internal/domain/models"
	"github.com/guttosm/volforecast/internal/storage"
)

const dateLayout = "2006-01-02"

// layout locates the columns a file must carry. The date column may be named
// "timestamp" (Alpha Vantage export) or "date" (Yahoo export); other columns
// are ignored.
type layout struct {
	date, close, width int
}

func parseHeader(header []string) (layout, error) {
	l := layout{date: -1, close: -1, width: len(header)}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "timestamp", "date":
			if l.date >= 0 {
				return l, fmt.Errorf("duplicate date column at col %d", i+1)
			}
			l.date = i
		case "close":
			if l.close >= 0 {
				return l, fmt.Errorf("duplicate close column at col %d", i+1)
			}
			l.close = i
		}
	}
	if l.date < 0 || l.close < 0 {
		return l, fmt.Errorf("invalid header %q: need a timestamp or date column and a close column", strings.Join(header, ","))
	}
	return l, nil
}

// parseAndPersistFile opens, validates, parses, and persists one file in batches.
// It fails on:
//   - a header without date and close columns
//   - a row with the wrong column count, a bad date or a non-positive close
//   - unrecoverable I/O errors
//
// It tolerates:
//   - empty or "null" close cells (the row is skipped)
func parseAndPersistFile(ctx context.Context, path, ticker string, repo storage.PriceRepository, batch int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // checked explicitly for better messages
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	l, err := parseHeader(header)
	if err != nil {
		return 0, err
	}

	buf := make([]models.PriceObservation, 0, batch)
	lineNumber := 1 // header already read
	total := 0

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		n, err := repo.Insert(ctx, ticker, buf)
		if err != nil {
			return err
		}
		total += n
		buf = buf[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read line after %d: %w", lineNumber, err)
		}
		lineNumber++

		if len(rec) != l.width {
			return 0, fmt.Errorf("invalid column count on line %d: expected %d got %d", lineNumber, l.width, len(rec))
		}

		obs, ok, err := recordToObservation(rec, l, ticker)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		if !ok {
			continue
		}

		buf = append(buf, obs)
		if len(buf) >= batch {
			if err := flush(); err != nil {
				return 0, fmt.Errorf("flush batch ending line %d: %w", lineNumber, err)
			}
		}
	}

	if err := flush(); err != nil {
		return 0, fmt.Errorf("final flush: %w", err)
	}
	return total, nil
}

// recordToObservation converts one row. ok is false for rows without a close.
func recordToObservation(rec []string, l layout, ticker string) (obs models.PriceObservation, ok bool, err error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(rec[l.date]))
	if err != nil {
		return obs, false, fmt.Errorf("invalid date: %v", err)
	}

	s := strings.TrimSpace(rec[l.close])
	if s == "" || strings.EqualFold(s, "null") {
		return obs, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return obs, false, fmt.Errorf("invalid close: %v", err)
	}
	if !(v > 0) {
		return obs, false, fmt.Errorf("close must be positive, got %v", v)
	}
	if math.IsInf(v, 0) {
		return obs, false, fmt.Errorf("close must be finite, got %v", v)
	}

	return models.PriceObservation{Ticker: ticker, Timestamp: d.UTC(), Close: v}, true, nil
}
