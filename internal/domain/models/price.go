package models

import "time"

// PriceObservation is one stored close for a ticker at a trading timestamp.
//
// Rows are unique on (Ticker, Timestamp); re-ingesting the same key replaces
// the close instead of adding a row.
type PriceObservation struct {
	Ticker    string    `json:"ticker" example:"AAPL"`
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close" example:"189.98"`
}

// ReturnSeries holds percentage changes between consecutive closes, scaled by
// 100, in ascending date order. Dates[i] is the date of the later observation
// of the pair that produced Values[i].
type ReturnSeries struct {
	Ticker string
	Dates  []time.Time
	Values []float64
}

// Len reports the number of returns.
func (r ReturnSeries) Len() int { return len(r.Values) }

// LastDate returns the date of the most recent return, or the zero time for an
// empty series.
func (r ReturnSeries) LastDate() time.Time {
	if len(r.Dates) == 0 {
		return time.Time{}
	}
	return r.Dates[len(r.Dates)-1]
}
