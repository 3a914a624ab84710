package volatility

import (
	"fmt"
	"time"

	"github.com/guttosm/volforecast/internal/domain/errs"
	"github.com/guttosm/volforecast/internal/domain/models"
)

// ReturnScale converts fractional returns to percent. Forecasts are reported
// in the same units.
const ReturnScale = 100.0

// Returns converts ascending closes into percentage returns scaled by
// ReturnScale. The result has one element fewer than rows.
func Returns(ticker string, rows []models.PriceObservation) (models.ReturnSeries, error) {
	if len(rows) < 2 {
		return models.ReturnSeries{}, fmt.Errorf("%w: %q needs at least 2 observations, have %d", errs.ErrDataUnavailable, ticker, len(rows))
	}
	series := models.ReturnSeries{
		Ticker: ticker,
		Dates:  make([]time.Time, 0, len(rows)-1),
		Values: make([]float64, 0, len(rows)-1),
	}
	for i := 1; i < len(rows); i++ {
		prev := rows[i-1].Close
		if !(prev > 0) {
			return models.ReturnSeries{}, fmt.Errorf("%w: non-positive close %v for %q at %s",
				errs.ErrDataUnavailable, prev, ticker, rows[i-1].Timestamp.Format("2006-01-02"))
		}
		series.Dates = append(series.Dates, rows[i].Timestamp)
		series.Values = append(series.Values, (rows[i].Close/prev-1)*ReturnScale)
	}
	return series, nil
}
