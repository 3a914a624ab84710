package garch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateSeries is returned for series without variance.
var ErrDegenerateSeries = errors.New("garch: return series has no variance")

const (
	defaultMaxIterations = 5000
	// penalty replaces -loglik for parameter sets with non-positive variances.
	penalty = 1e10
)

// Options tune the optimizer.
type Options struct {
	// MaxIterations caps Nelder-Mead iterations. Zero means 5000.
	MaxIterations int
	// Timeout caps wall-clock time spent optimizing. Zero means no limit.
	Timeout time.Duration
}

func (o Options) maxIterations() int {
	if o.MaxIterations > 0 {
		return o.MaxIterations
	}
	return defaultMaxIterations
}

// Result is a fitted model plus the in-sample filter output.
type Result struct {
	Params        Params
	LogLikelihood float64
	Iterations    int
	FuncEvals     int
	Residuals     []float64
	Variances     []float64
}

// MinObservations is the shortest return series Fit accepts for an order.
func MinObservations(p, q int) int {
	return 3 * (p + q + 2)
}

// Fit estimates GARCH(p, q) on returns by maximum likelihood.
//
// The search runs over an unconstrained vector [mu, log(omega), z_1..z_p+q];
// alpha, beta and a slack term are the softmax of (z, 0), so omega > 0, every
// coefficient is positive and persistence stays strictly below 1 without bound
// handling in the optimizer.
//
// Fit stops with ErrNotConverged when the iteration or time budget runs out,
// when ctx is cancelled, or when the optimum is not a valid parameter set.
func Fit(ctx context.Context, returns []float64, p, q int, opts Options) (*Result, error) {
	if p < 1 || q < 1 {
		return nil, fmt.Errorf("%w: got p=%d q=%d", ErrInvalidOrder, p, q)
	}
	// An order longer than the series can never fit; checking it first keeps
	// MinObservations from overflowing on absurd p or q.
	if p > len(returns) || q > len(returns) {
		return nil, fmt.Errorf("%w: GARCH(%d,%d) is longer than %d returns", ErrTooFewObservations, p, q, len(returns))
	}
	if need := MinObservations(p, q); len(returns) < need {
		return nil, fmt.Errorf("%w: GARCH(%d,%d) needs %d returns, got %d", ErrTooFewObservations, p, q, need, len(returns))
	}
	for i, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("garch: non-finite return at index %d", i)
		}
	}
	mean, variance := stat.MeanVariance(returns, nil)
	if !(variance > 0) {
		return nil, ErrDegenerateSeries
	}

	n := len(returns)
	bc := backcast(returns)
	resid := make([]float64, n)
	sigma2 := make([]float64, n)
	objective := func(x []float64) float64 {
		filter(unpack(x, p, q), returns, bc, resid, sigma2)
		ll := logLikelihood(resid, sigma2)
		if math.IsInf(ll, 0) || math.IsNaN(ll) {
			return penalty
		}
		return -ll / float64(n)
	}

	problem := optimize.Problem{
		Func: objective,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		MajorIterations: opts.maxIterations(),
		Runtime:         opts.Timeout,
		Converger:       &optimize.FunctionConverge{Absolute: 1e-10, Relative: 1e-10, Iterations: 200},
	}

	res, err := optimize.Minimize(problem, pack(startingParams(mean, variance, p, q)), settings, &optimize.NelderMead{SimplexSize: 0.5})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotConverged, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}
	switch res.Status {
	case optimize.IterationLimit, optimize.RuntimeLimit, optimize.FunctionEvaluationLimit, optimize.Failure:
		return nil, fmt.Errorf("%w: stopped with %s after %d iterations", ErrNotConverged, res.Status, res.MajorIterations)
	}
	if math.IsNaN(res.F) || res.F >= penalty/2 {
		return nil, fmt.Errorf("%w: no finite likelihood found", ErrNotConverged)
	}

	params := unpack(res.X, p, q)
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}
	r, s, ll := Filter(params, returns)
	return &Result{
		Params:        params,
		LogLikelihood: ll,
		Iterations:    res.MajorIterations,
		FuncEvals:     res.FuncEvaluations,
		Residuals:     r,
		Variances:     s,
	}, nil
}

func startingParams(mean, variance float64, p, q int) Params {
	const alphaTotal, betaTotal = 0.05, 0.90
	params := Params{
		Mu:    mean,
		Omega: variance * (1 - alphaTotal - betaTotal),
		Alpha: make([]float64, p),
		Beta:  make([]float64, q),
	}
	for i := range params.Alpha {
		params.Alpha[i] = alphaTotal / float64(p)
	}
	for j := range params.Beta {
		params.Beta[j] = betaTotal / float64(q)
	}
	return params
}

// pack maps params onto the unconstrained search space. The slack logit is
// pinned at zero, so each coefficient is stored relative to it. Persistence
// must be below 1.
func pack(params Params) []float64 {
	logSlack := math.Log(1 - params.Persistence())
	x := make([]float64, 0, params.P()+params.Q()+2)
	x = append(x, params.Mu, math.Log(params.Omega))
	for _, a := range params.Alpha {
		x = append(x, math.Log(a)-logSlack)
	}
	for _, b := range params.Beta {
		x = append(x, math.Log(b)-logSlack)
	}
	return x
}

func unpack(x []float64, p, q int) Params {
	z := append(append(make([]float64, 0, p+q+1), x[2:2+p+q]...), 0)
	maxZ := z[0]
	for _, v := range z[1:] {
		maxZ = math.Max(maxZ, v)
	}
	w := make([]float64, len(z))
	sum := 0.0
	for k, v := range z {
		w[k] = math.Exp(v - maxZ)
		sum += w[k]
	}
	params := Params{
		Mu:    x[0],
		Omega: math.Exp(x[1]),
		Alpha: make([]float64, p),
		Beta:  make([]float64, q),
	}
	for i := 0; i < p; i++ {
		params.Alpha[i] = w[i] / sum
	}
	for j := 0; j < q; j++ {
		params.Beta[j] = w[p+j] / sum
	}
	return params
}
