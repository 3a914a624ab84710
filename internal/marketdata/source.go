// Package marketdata fetches daily close histories from external providers.
package marketdata

import (
	"context"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/guttosm/volforecast/internal/domain/models"
)

// Source fetches the full daily close history for a ticker, oldest first.
// An unknown ticker or an empty history yields an empty slice and no error.
type Source interface {
	Name() string
	DailyCloses(ctx context.Context, ticker string) ([]models.PriceObservation, error)
}

const userAgent = "volforecast/1.0"

func newClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
}

func sortByTime(obs []models.PriceObservation) {
	sort.Slice(obs, func(i, j int) bool { return obs[i].Timestamp.Before(obs[j].Timestamp) })
}
