package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for vnflcm.
type Metrics struct {
	config MetricsConfig

	// Model metrics
	applies      *prometheus.CounterVec
	applyTime    *prometheus.HistogramVec
	modelVersion *prometheus.GaugeVec
	entities     *prometheus.GaugeVec
	rules        *prometheus.GaugeVec
	inconsistent *prometheus.GaugeVec

	// Plan metrics
	planSteps *prometheus.CounterVec

	// Run metrics
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	activeRuns    prometheus.Gauge

	// Step metrics
	stepsExecuted *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec

	// Policy metrics
	policyViolations *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
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

		applies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_applies_total",
				Help:      "Total number of statement batches applied to a model",
			},
			[]string{"result"},
		),
		applyTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_apply_duration_seconds",
				Help:      "Duration of batch application in seconds",
				Buckets:   buckets,
			},
			[]string{"result"},
		),
		modelVersion: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_version",
				Help:      "Current model version per context",
			},
			[]string{"context"},
		),
		entities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_entities",
				Help:      "Current number of model entities per type",
			},
			[]string{"context", "type"},
		),
		rules: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_rules",
				Help:      "Current number of synthesized security rules",
			},
			[]string{"context"},
		),
		inconsistent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_inconsistent",
				Help:      "Whether the current model has unresolved references (1=inconsistent)",
			},
			[]string{"context"},
		),

		planSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plan_steps_total",
				Help:      "Total number of planned steps",
			},
			[]string{"operation", "type"},
		),

		runsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of runs started",
			},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of run execution in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of active runs",
			},
		),

		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total number of actuated plan steps",
			},
			[]string{"operation", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of step actuation in seconds",
				Buckets:   buckets,
			},
			[]string{"operation", "type"},
		),

		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations",
			},
			[]string{"policy", "severity"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.applies,
		m.applyTime,
		m.modelVersion,
		m.entities,
		m.rules,
		m.inconsistent,
		m.planSteps,
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.activeRuns,
		m.stepsExecuted,
		m.stepDuration,
		m.policyViolations,
		m.errorsByClass,
		m.errorsByCode,
	)

	return m, nil
}

// Registry returns the metrics registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Model Metrics

// RecordApply records one batch application.
func (m *Metrics) RecordApply(result string, duration time.Duration) {
	if m.applies == nil {
		return
	}
	m.applies.WithLabelValues(result).Inc()
	m.applyTime.WithLabelValues(result).Observe(duration.Seconds())
}

// ModelState summarizes a committed model for the gauges.
type ModelState struct {
	Context    string
	Version    int
	Consistent bool
	Rules      int
	Entities   map[string]int
}

// SetModelState updates the model gauges of a context.
func (m *Metrics) SetModelState(state ModelState) {
	if m.modelVersion == nil {
		return
	}
	m.modelVersion.WithLabelValues(state.Context).Set(float64(state.Version))
	m.rules.WithLabelValues(state.Context).Set(float64(state.Rules))
	for typ, count := range state.Entities {
		m.entities.WithLabelValues(state.Context, typ).Set(float64(count))
	}
	value := 0.0
	if !state.Consistent {
		value = 1.0
	}
	m.inconsistent.WithLabelValues(state.Context).Set(value)
}

// Plan Metrics

// RecordPlanStep counts one planned step.
func (m *Metrics) RecordPlanStep(operation, entityType string) {
	if m.planSteps == nil {
		return
	}
	m.planSteps.WithLabelValues(operation, entityType).Inc()
}

// Run Metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted() {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// Step Metrics

// RecordStep records the outcome of one actuated step.
func (m *Metrics) RecordStep(operation, entityType, status string, duration time.Duration) {
	if m.stepsExecuted == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(operation, status).Inc()
	m.stepDuration.WithLabelValues(operation, entityType).Observe(duration.Seconds())
}

// Policy Metrics

// RecordPolicyViolation counts a policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics endpoint on the configured address until ctx is
// cancelled.
func (m *Metrics) Serve(ctx context.Context) error {
	return m.ServeOn(ctx, m.config.ListenAddress)
}

// ServeOn is Serve with an explicit listen address.
func (m *Metrics) ServeOn(ctx context.Context, addr string) error {
	if !m.config.Enabled {
		return errors.New("metrics are disabled")
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
