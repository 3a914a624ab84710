package dto

import "time"

// ErrorResponse is the JSON body returned for requests rejected before they
// reach the model service (malformed JSON, panics, rate limiting).
type ErrorResponse struct {
	Message      string    `json:"message" example:"invalid request body"`
	ErrorDetails string    `json:"error,omitempty" example:"unexpected EOF"`
	Timestamp    time.Time `json:"timestamp"`
}

// Error implements the error interface so the response can travel through c.Error.
func (e ErrorResponse) Error() string {
	if e.ErrorDetails != "" {
		return e.Message + ": " + e.ErrorDetails
	}
	return e.Message
}

// NewErrorResponse builds an ErrorResponse stamped with the current time.
// err may be nil.
func NewErrorResponse(message string, err error) ErrorResponse {
	resp := ErrorResponse{Message: message, Timestamp: time.Now().UTC()}
	if err != nil {
		resp.ErrorDetails = err.Error()
	}
	return resp
}
