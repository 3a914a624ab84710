// Package errs holds the failure kinds shared by the storage, volatility and
// service layers. Producers wrap one of the sentinels with fmt.Errorf("%w: ...")
// so callers can branch with errors.Is without string matching.
package errs

import "errors"

var (
	// ErrDataUnavailable means there is not enough price data to build a return series.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrState means a model operation was called out of lifecycle order.
	ErrState = errors.New("invalid model state")
	// ErrFit means the optimizer failed or the requested order is unusable.
	ErrFit = errors.New("fit failed")
	// ErrNotFound means no stored rows or no artifact exist for the ticker.
	ErrNotFound = errors.New("not found")
	// ErrValidation means a numeric input is out of range.
	ErrValidation = errors.New("validation failed")
)

// Kind returns a short, stable label for err, suitable for metric labels and
// structured log fields. Nil maps to "ok".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrState):
		return "state"
	case errors.Is(err, ErrFit):
		return "fit"
	default:
		return "internal"
	}
}
