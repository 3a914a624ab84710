package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guttosm/volforecast/internal/domain/errs"
	"github.com/guttosm/volforecast/internal/domain/models"
)

// DBTX is the subset of *sql.DB and *sql.Conn the repository needs, so a
// request can bind it to a dedicated pooled connection.
type DBTX interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PriceRepository defines contract for price history persistence.
type PriceRepository interface {
	Insert(ctx context.Context, ticker string, observations []models.PriceObservation) (int, error)
	Read(ctx context.Context, ticker string, limit int) ([]models.PriceObservation, error)
}

type priceRepository struct {
	db DBTX
}

func NewPriceRepository(db DBTX) PriceRepository {
	return &priceRepository{db: db}
}

const upsertPrice = `
	INSERT INTO price_observations (ticker, ts, close)
	VALUES ($1, $2, $3)
	ON CONFLICT (ticker, ts)
	DO UPDATE SET close = EXCLUDED.close`

const selectRecent = `
	SELECT ticker, ts, close
	FROM price_observations
	WHERE ticker = $1
	ORDER BY ts DESC
	LIMIT $2`

// Insert upserts observations for ticker in a single transaction and returns
// the number of rows written. Re-inserting an existing (ticker, ts) replaces
// its close.
func (r *priceRepository) Insert(ctx context.Context, ticker string, observations []models.PriceObservation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, upsertPrice)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	written := 0
	for _, obs := range observations {
		res, err := stmt.ExecContext(ctx, ticker, obs.Timestamp.UTC(), obs.Close)
		if err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return 0, fmt.Errorf("upsert %s@%s: %w", ticker, obs.Timestamp.Format(time.DateOnly), err)
		}
		// Drivers that cannot report affected rows still executed the upsert.
		if n, err := res.RowsAffected(); err == nil {
			written += int(n)
		} else {
			written++
		}
	}

	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

// Read returns the most recent limit observations for ticker in ascending
// time order.
func (r *priceRepository) Read(ctx context.Context, ticker string, limit int) ([]models.PriceObservation, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be at least 1, got %d", errs.ErrValidation, limit)
	}

	rows, err := r.db.QueryContext(ctx, selectRecent, ticker, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PriceObservation
	for rows.Next() {
		var obs models.PriceObservation
		if err := rows.Scan(&obs.Ticker, &obs.Timestamp, &obs.Close); err != nil {
			return nil, err
		}
		obs.Timestamp = obs.Timestamp.UTC()
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no price history for %q", errs.ErrNotFound, ticker)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
