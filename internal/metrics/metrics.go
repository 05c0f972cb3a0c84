// Package metrics exposes storefront checkout and backend-call metrics in
// Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Cheertaboi/jewelry-storefront/internal/apperr"
	"github.com/Cheertaboi/jewelry-storefront/internal/checkout"
	"github.com/Cheertaboi/jewelry-storefront/internal/models"
)

const namespace = "storefront"

// Registry owns every storefront metric. Safe for concurrent use.
type Registry struct {
	registry *prometheus.Registry

	stepTransitions  *prometheus.CounterVec
	validationFailed *prometheus.CounterVec
	ordersPlaced     *prometheus.CounterVec
	paymentOutcomes  *prometheus.CounterVec
	backendDuration  *prometheus.HistogramVec
	backendErrors    *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func New() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.stepTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "step_transitions_total",
		Help:      "Checkout wizard step changes.",
	}, []string{"from", "to"})

	r.validationFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "validation_failures_total",
		Help:      "Step advances blocked by field validation.",
	}, []string{"step"})

	r.ordersPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "orders_placed_total",
		Help:      "Orders created, by payment method.",
	}, []string{"payment_method"})

	r.paymentOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "payment_outcomes_total",
		Help:      "Resolved online payments, by outcome.",
	}, []string{"status"})

	r.backendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "request_duration_seconds",
		Help:      "Latency of calls to the storefront API.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	r.backendErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "errors_total",
		Help:      "Failed calls to the storefront API, by error kind.",
	}, []string{"endpoint", "kind"})

	r.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served.",
	}, []string{"method", "route", "status"})

	r.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.stepTransitions,
		r.validationFailed,
		r.ordersPlaced,
		r.paymentOutcomes,
		r.backendDuration,
		r.backendErrors,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) StepChanged(from, to checkout.Step) {
	r.stepTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (r *Registry) ValidationFailed(step checkout.Step, _ int) {
	r.validationFailed.WithLabelValues(step.String()).Inc()
}

func (r *Registry) OrderPlaced(method models.PaymentMethod) {
	r.ordersPlaced.WithLabelValues(string(method)).Inc()
}

func (r *Registry) PaymentResolved(status checkout.OutcomeStatus) {
	r.paymentOutcomes.WithLabelValues(string(status)).Inc()
}

// ObserveBackend matches backend.Observer
func (r *Registry) ObserveBackend(endpoint string, elapsed time.Duration, err error) {
	r.backendDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
	if err == nil {
		return
	}
	kind := string(apperr.KindOf(err))
	if kind == "" {
		kind = "other"
	}
	r.backendErrors.WithLabelValues(endpoint, kind).Inc()
}

// ObserveHTTP records one served request. route is the matched route
// pattern, never the raw path.
func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

var _ checkout.Recorder = (*Registry)(nil)
