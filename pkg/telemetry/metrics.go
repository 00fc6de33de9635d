package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for model evaluation and fitting.
// A nil *Metrics, or one built with Enabled=false, records nothing.
type Metrics struct {
	config MetricsConfig

	// Evaluation metrics
	evaluations        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	floored            *prometheus.CounterVec

	// Refinement and initialization metrics
	fracks        *prometheus.CounterVec
	frackDuration *prometheus.HistogramVec
	walkerDraws   *prometheus.CounterVec

	// Fit metrics
	fitsStarted   prometheus.Counter
	fitsCompleted *prometheus.CounterVec
	fitDuration   *prometheus.HistogramVec
	activeFits    prometheus.Gauge

	// Error metrics
	errorsByCode *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of call stack passes by root tag",
			},
			[]string{"root"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of one call stack pass in seconds",
				Buckets:   buckets,
			},
			[]string{"root"},
		),
		floored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "objective_floored_total",
				Help:      "Objective evaluations replaced by the floor sentinel",
			},
			[]string{"reason"},
		),

		fracks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frack_total",
				Help:      "Total number of local refinements by method",
			},
			[]string{"method"},
		),
		frackDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "frack_duration_seconds",
				Help:      "Duration of local refinement in seconds",
				Buckets:   buckets,
			},
			[]string{"method"},
		),
		walkerDraws: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "walker_draws_total",
				Help:      "Walker initialization draws by outcome",
			},
			[]string{"outcome"},
		),

		fitsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fits_started_total",
				Help:      "Total number of fits started",
			},
		),
		fitsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fits_completed_total",
				Help:      "Total number of fits completed",
			},
			[]string{"status"},
		),
		fitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fit_duration_seconds",
				Help:      "Duration of fits in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		activeFits: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_fits",
				Help:      "Current number of running fits",
			},
		),

		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of engine errors by class and code",
			},
			[]string{"class", "code"},
		),
	}

	registry.MustRegister(
		m.evaluations,
		m.evaluationDuration,
		m.floored,
		m.fracks,
		m.frackDuration,
		m.walkerDraws,
		m.fitsStarted,
		m.fitsCompleted,
		m.fitDuration,
		m.activeFits,
		m.errorsByCode,
	)

	return m, nil
}

// Evaluation Metrics

// RecordEvaluation records one call stack pass for the given root tag.
func (m *Metrics) RecordEvaluation(root string, duration time.Duration) {
	if m == nil || m.evaluations == nil {
		return
	}
	m.evaluations.WithLabelValues(root).Inc()
	m.evaluationDuration.WithLabelValues(root).Observe(duration.Seconds())
}

// RecordFloored records an objective value replaced by the floor sentinel.
func (m *Metrics) RecordFloored(reason string) {
	if m == nil || m.floored == nil {
		return
	}
	m.floored.WithLabelValues(reason).Inc()
}

// Refinement Metrics

// RecordFrack records a local refinement and its duration.
func (m *Metrics) RecordFrack(method string, duration time.Duration) {
	if m == nil || m.fracks == nil {
		return
	}
	m.fracks.WithLabelValues(method).Inc()
	m.frackDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordWalkerDraw records one walker initialization draw.
func (m *Metrics) RecordWalkerDraw(accepted bool) {
	if m == nil || m.walkerDraws == nil {
		return
	}
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.walkerDraws.WithLabelValues(outcome).Inc()
}

// Fit Metrics

// RecordFitStarted increments the counter for started fits.
func (m *Metrics) RecordFitStarted() {
	if m == nil || m.fitsStarted == nil {
		return
	}
	m.fitsStarted.Inc()
	m.activeFits.Inc()
}

// RecordFitCompleted records a completed fit with its status and duration.
func (m *Metrics) RecordFitCompleted(status string, duration time.Duration) {
	if m == nil || m.fitsCompleted == nil {
		return
	}
	m.fitsCompleted.WithLabelValues(status).Inc()
	m.fitDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeFits.Dec()
}

// RecordError records an error by class and code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m == nil || m.errorsByCode == nil {
		return
	}
	m.errorsByCode.WithLabelValues(errorClass, errorCode).Inc()
}

// Registry returns the private Prometheus registry, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves metrics on the configured address until ctx is done.
func (m *Metrics) StartMetricsServer(ctx context.Context, logger *Logger) error {
	if m == nil || !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Metrics are best effort; the fit keeps running.
			logger.WithError(err).Error("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Infof("serving metrics on %s%s", m.config.ListenAddress, path)
	return nil
}
