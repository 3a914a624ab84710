// Package metrics exposes Prometheus instrumentation on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/guttosm/volforecast/internal/domain/errs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records model operation and HTTP request metrics.
type Recorder struct {
	registry     *prometheus.Registry
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	lockWait     *prometheus.HistogramVec
	persistence  *prometheus.GaugeVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Recorder with its own registry, including Go runtime and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volforecast_operations_total",
				Help: "Model operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "volforecast_operation_duration_seconds",
				Help:    "Duration of model operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		lockWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "volforecast_lock_wait_seconds",
				Help:    "Time spent waiting for a per-ticker lock",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		persistence: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "volforecast_model_persistence",
				Help: "Sum of ARCH and GARCH coefficients of the latest fit per ticker",
			},
			[]string{"ticker"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"route", "method"},
		),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.operations, r.duration, r.lockWait, r.persistence, r.httpRequests, r.httpDuration,
	)
	return r
}

// Registry returns the registry backing this recorder.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveOperation records one fit, predict or refit with its outcome, the
// errs.Kind of err.
func (r *Recorder) ObserveOperation(op string, err error, elapsed time.Duration) {
	r.operations.WithLabelValues(op, errs.Kind(err)).Inc()
	r.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveLockWait(op string, waited time.Duration) {
	r.lockWait.WithLabelValues(op).Observe(waited.Seconds())
}

func (r *Recorder) SetPersistence(ticker string, v float64) {
	r.persistence.WithLabelValues(ticker).Set(v)
}

// ObserveHTTP records a served request. route should be the templated path.
func (r *Recorder) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
