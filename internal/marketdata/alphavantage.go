package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/guttosm/volforecast/internal/domain/models"
)

// DefaultAlphaVantageURL is the public AlphaVantage endpoint.
const DefaultAlphaVantageURL = "https://www.alphavantage.co"

// AlphaVantage implements Source using the TIME_SERIES_DAILY function.
type AlphaVantage struct {
	client *resty.Client
	apiKey string
}

// NewAlphaVantage creates a client. baseURL defaults to DefaultAlphaVantageURL.
func NewAlphaVantage(baseURL, apiKey string, timeout time.Duration) *AlphaVantage {
	if baseURL == "" {
		baseURL = DefaultAlphaVantageURL
	}
	return &AlphaVantage{client: newClient(baseURL, timeout), apiKey: apiKey}
}

func (a *AlphaVantage) Name() string { return "alphavantage" }

type avDaily struct {
	Series map[string]struct {
		Close string `json:"4. close"`
	} `json:"Time Series (Daily)"`
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

// DailyCloses fetches the full daily history for ticker.
func (a *AlphaVantage) DailyCloses(ctx context.Context, ticker string) ([]models.PriceObservation, error) {
	var body avDaily
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function":   "TIME_SERIES_DAILY",
			"symbol":     ticker,
			"outputsize": "full",
			"datatype":   "json",
			"apikey":     a.apiKey,
		}).
		SetResult(&body).
		Get("/query")
	if err != nil {
		return nil, fmt.Errorf("alphavantage fetch: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("alphavantage: status %d, body: %s", resp.StatusCode(), resp.String())
	}

	switch {
	case strings.Contains(body.ErrorMessage, "Invalid API call"):
		// AlphaVantage answers unknown symbols with a generic invalid-call message.
		return []models.PriceObservation{}, nil
	case body.ErrorMessage != "":
		return nil, errors.New("alphavantage: " + body.ErrorMessage)
	case body.Note != "":
		return nil, errors.New("alphavantage: " + body.Note)
	case body.Information != "" && len(body.Series) == 0:
		return nil, errors.New("alphavantage: " + body.Information)
	}

	out := make([]models.PriceObservation, 0, len(body.Series))
	for day, bar := range body.Series {
		ts, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, fmt.Errorf("alphavantage: bad date %q: %w", day, err)
		}
		c, err := strconv.ParseFloat(bar.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("alphavantage: bad close %q on %s: %w", bar.Close, day, err)
		}
		out = append(out, models.PriceObservation{Ticker: ticker, Timestamp: ts, Close: c})
	}
	sortByTime(out)
	return out, nil
}
