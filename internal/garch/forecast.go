package garch

import (
	"errors"
	"fmt"
)

// State is the end-of-sample information a forecast needs: the last P
// residuals and the last Q conditional variances, oldest first.
type State struct {
	Residuals []float64 `yaml:"residuals" json:"residuals"`
	Variances []float64 `yaml:"variances" json:"variances"`
}

// State extracts the forecast state from an in-sample fit.
func (r *Result) State() State {
	return State{
		Residuals: tail(r.Residuals, r.Params.P()),
		Variances: tail(r.Variances, r.Params.Q()),
	}
}

func tail(xs []float64, n int) []float64 {
	if n > len(xs) {
		n = len(xs)
	}
	return append([]float64(nil), xs[len(xs)-n:]...)
}

// Forecast returns the conditional variance for each of the next horizon
// steps. Beyond the sample, squared residuals are replaced by their
// expectation, the forecast variance of the same step.
func Forecast(params Params, st State, horizon int) ([]float64, error) {
	if horizon < 1 {
		return nil, errors.New("garch: horizon must be positive")
	}
	if len(st.Residuals) < params.P() || len(st.Variances) < params.Q() {
		return nil, fmt.Errorf("garch: state has %d residuals and %d variances, GARCH(%d,%d) needs %d and %d",
			len(st.Residuals), len(st.Variances), params.P(), params.Q(), params.P(), params.Q())
	}

	e2 := make([]float64, 0, len(st.Residuals)+horizon)
	for _, e := range st.Residuals {
		e2 = append(e2, e*e)
	}
	s2 := make([]float64, 0, len(st.Variances)+horizon)
	s2 = append(s2, st.Variances...)

	out := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		v := params.Omega
		for i, a := range params.Alpha {
			v += a * e2[len(e2)-1-i]
		}
		for j, b := range params.Beta {
			v += b * s2[len(s2)-1-j]
		}
		out[h] = v
		e2 = append(e2, v)
		s2 = append(s2, v)
	}
	return out, nil
}
