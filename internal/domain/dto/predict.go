package dto

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Ticker string `json:"ticker" example:"AAPL"`
	NDays  int    `json:"n_days" example:"5"`
}

// PredictResponse echoes the request and carries the forecast keyed by
// business date. Forecast is an empty object on failure, never null.
type PredictResponse struct {
	PredictRequest
	Success  bool               `json:"success" example:"true"`
	Forecast map[string]float64 `json:"forecast"`
	Message  string             `json:"message" example:""`
}
