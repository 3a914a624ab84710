package models

import "time"

// ForecastDateLayout renders forecast dates the way the /predict endpoint
// exposes them (midnight, no zone).
const ForecastDateLayout = "2006-01-02T15:04:05"

// ForecastPoint is the predicted conditional volatility for one future
// business day, in the same percent units as the return series.
type ForecastPoint struct {
	Date       time.Time
	Volatility float64
}

// Forecast is an ordered multi-day volatility forecast for a ticker.
type Forecast struct {
	Ticker string
	Points []ForecastPoint
}

// AsMap renders the forecast as date -> volatility, the shape used in API
// responses. JSON encoding sorts the keys, which keeps the dates chronological.
func (f Forecast) AsMap() map[string]float64 {
	out := make(map[string]float64, len(f.Points))
	for _, p := range f.Points {
		out[p.Date.Format(ForecastDateLayout)] = p.Volatility
	}
	return out
}
