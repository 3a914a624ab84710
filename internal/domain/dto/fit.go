package dto

// FitRequest is the body of POST /fit.
type FitRequest struct {
	Ticker        string `json:"ticker" example:"AAPL"`
	UseNewData    bool   `json:"use_new_data" example:"true"`
	NObservations int    `json:"n_observations" example:"500"`
	P             int    `json:"p" example:"1"`
	Q             int    `json:"q" example:"1"`
}

// FitResponse echoes the request and reports the outcome. On success Message
// names the persisted artifact; on failure it carries the error text.
type FitResponse struct {
	FitRequest
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Trained and saved 'AAPL_20250919T140000.000000000Z.yaml'."`
}
