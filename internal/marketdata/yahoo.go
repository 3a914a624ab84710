package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/guttosm/volforecast/internal/domain/models"
)

// DefaultYahooURL is the public Yahoo Finance chart host.
const DefaultYahooURL = "https://query1.finance.yahoo.com"

// Yahoo implements Source using the Yahoo Finance v8 chart API.
type Yahoo struct {
	client *resty.Client
	rng    string
}

// NewYahoo creates a client fetching rng of daily history (e.g. "10y", "max").
func NewYahoo(baseURL, rng string, timeout time.Duration) *Yahoo {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	if rng == "" {
		rng = "10y"
	}
	return &Yahoo{client: newClient(baseURL, timeout), rng: rng}
}

func (y *Yahoo) Name() string { return "yahoo" }

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyCloses fetches daily closes for ticker. Bars without a close (halts,
// the current unfinished session) are skipped. Timestamps are normalized to
// midnight UTC of the exchange-local trading date.
func (y *Yahoo) DailyCloses(ctx context.Context, ticker string) ([]models.PriceObservation, error) {
	var chart yahooChart
	resp, err := y.client.R().
		SetContext(ctx).
		SetPathParam("symbol", ticker).
		SetQueryParams(map[string]string{"interval": "1d", "range": y.rng}).
		SetResult(&chart).
		SetError(&chart).
		Get("/v8/finance/chart/{symbol}")
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" {
			return []models.PriceObservation{}, nil
		}
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return []models.PriceObservation{}, nil
	}

	result := chart.Chart.Result[0]
	loc := time.UTC
	if tz := result.Meta.ExchangeTimezoneName; tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	closes := result.Indicators.Quote[0].Close
	out := make([]models.PriceObservation, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		yy, mm, dd := time.Unix(ts, 0).In(loc).Date()
		out = append(out, models.PriceObservation{
			Ticker:    ticker,
			Timestamp: time.Date(yy, mm, dd, 0, 0, 0, 0, time.UTC),
			Close:     *closes[i],
		})
	}
	sortByTime(out)
	return out, nil
}
