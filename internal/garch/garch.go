// Package garch estimates constant-mean GARCH(p, q) models with normal
// innovations and produces multi-step variance forecasts.
//
// The model is
//
//	r[t]      = mu + e[t]
//	sigma2[t] = omega + sum_i alpha[i]*e[t-i]^2 + sum_j beta[j]*sigma2[t-j]
//
// where p is the number of ARCH terms (alpha) and q the number of GARCH terms
// (beta). Pre-sample values of e^2 and sigma2 are replaced by an exponentially
// weighted backcast of the first residuals.
package garch

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInvalidOrder is returned when p or q is below 1.
	ErrInvalidOrder = errors.New("garch: p and q must be positive")
	// ErrTooFewObservations is returned when the series is too short for the order.
	ErrTooFewObservations = errors.New("garch: not enough observations")
	// ErrNotConverged is returned when the optimizer stops before a minimum is found.
	ErrNotConverged = errors.New("garch: optimizer did not converge")
)

const (
	backcastDecay = 0.94
	backcastSpan  = 75
	log2Pi        = 1.8378770664093453
)

// Params are the fitted coefficients of a GARCH(p, q) process.
type Params struct {
	Mu    float64   `yaml:"mu" json:"mu"`
	Omega float64   `yaml:"omega" json:"omega"`
	Alpha []float64 `yaml:"alpha" json:"alpha"`
	Beta  []float64 `yaml:"beta" json:"beta"`
}

// P is the ARCH order.
func (p Params) P() int { return len(p.Alpha) }

// Q is the GARCH order.
func (p Params) Q() int { return len(p.Beta) }

// Persistence is sum(alpha) + sum(beta). Values below 1 give a stationary process.
func (p Params) Persistence() float64 {
	s := 0.0
	for _, a := range p.Alpha {
		s += a
	}
	for _, b := range p.Beta {
		s += b
	}
	return s
}

// UnconditionalVariance is omega / (1 - persistence), or +Inf for a
// non-stationary parameter set.
func (p Params) UnconditionalVariance() float64 {
	pers := p.Persistence()
	if pers >= 1 {
		return math.Inf(1)
	}
	return p.Omega / (1 - pers)
}

// Validate checks the constraints the estimator guarantees: omega > 0,
// non-negative ARCH/GARCH terms and persistence below 1.
func (p Params) Validate() error {
	if p.P() < 1 || p.Q() < 1 {
		return ErrInvalidOrder
	}
	if !(p.Omega > 0) || math.IsInf(p.Omega, 0) || math.IsNaN(p.Mu) {
		return fmt.Errorf("garch: invalid omega=%v mu=%v", p.Omega, p.Mu)
	}
	for _, v := range append(append([]float64(nil), p.Alpha...), p.Beta...) {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("garch: negative or NaN coefficient %v", v)
		}
	}
	if p.Persistence() >= 1 {
		return fmt.Errorf("garch: persistence %.6f is not below 1", p.Persistence())
	}
	return nil
}

// backcast computes the pre-sample value used for e^2 and sigma2 at t <= 0
// from the demeaned series. It depends only on the data, so every likelihood
// evaluation during a fit shares it.
func backcast(returns []float64) float64 {
	mean := stat.Mean(returns, nil)
	n := len(returns)
	if n > backcastSpan {
		n = backcastSpan
	}
	var num, den float64
	w := 1.0
	for i := 0; i < n; i++ {
		d := returns[i] - mean
		num += w * d * d
		den += w
		w *= backcastDecay
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// filter runs the variance recursion for returns under params, writing
// residuals and conditional variances into the provided buffers.
func filter(params Params, returns []float64, bc float64, resid, sigma2 []float64) {
	for t, r := range returns {
		resid[t] = r - params.Mu
	}
	for t := range returns {
		v := params.Omega
		for i, a := range params.Alpha {
			k := t - i - 1
			if k < 0 {
				v += a * bc
			} else {
				v += a * resid[k] * resid[k]
			}
		}
		for j, b := range params.Beta {
			k := t - j - 1
			if k < 0 {
				v += b * bc
			} else {
				v += b * sigma2[k]
			}
		}
		sigma2[t] = v
	}
}

// logLikelihood returns the Gaussian log-likelihood of the filtered series,
// or -Inf when any conditional variance is not strictly positive.
func logLikelihood(resid, sigma2 []float64) float64 {
	ll := 0.0
	for t := range resid {
		s := sigma2[t]
		if !(s > 0) || math.IsInf(s, 0) {
			return math.Inf(-1)
		}
		ll -= 0.5 * (log2Pi + math.Log(s) + resid[t]*resid[t]/s)
	}
	return ll
}

// Filter evaluates params on returns and reports residuals, conditional
// variances and the log-likelihood.
func Filter(params Params, returns []float64) (resid, sigma2 []float64, ll float64) {
	resid = make([]float64, len(returns))
	sigma2 = make([]float64, len(returns))
	filter(params, returns, backcast(returns), resid, sigma2)
	return resid, sigma2, logLikelihood(resid, sigma2)
}
