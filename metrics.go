package sagaflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Phase names the half of a step being executed.
type Phase string

const (
	PhaseForward    Phase = "forward"
	PhaseCompensate Phase = "compensate"
)

// MetricsRecorder receives saga lifecycle measurements. Implementations must
// be safe for concurrent use; runs over distinct entities share one recorder.
type MetricsRecorder interface {
	SagaStarted(def DefinitionName)
	SagaSucceeded(def DefinitionName, duration time.Duration)
	SagaFailed(def DefinitionName, failedStep StepName, duration time.Duration)
	StepExecuted(def DefinitionName, step StepName, phase Phase, success bool, duration time.Duration)
	DeadLetterReported(def DefinitionName, success bool)
}

type noopMetrics struct{}

func (noopMetrics) SagaStarted(DefinitionName)                                        {}
func (noopMetrics) SagaSucceeded(DefinitionName, time.Duration)                       {}
func (noopMetrics) SagaFailed(DefinitionName, StepName, time.Duration)                {}
func (noopMetrics) StepExecuted(DefinitionName, StepName, Phase, bool, time.Duration) {}
func (noopMetrics) DeadLetterReported(DefinitionName, bool)                           {}

// PrometheusMetrics implements MetricsRecorder using Prometheus metrics.
type PrometheusMetrics struct {
	sagaStartedTotal   *prometheus.CounterVec
	sagaCompletedTotal *prometheus.CounterVec
	sagaFailedTotal    *prometheus.CounterVec
	sagaDuration       *prometheus.HistogramVec

	stepExecutedTotal         *prometheus.CounterVec
	compensationExecutedTotal *prometheus.CounterVec
	stepDuration              *prometheus.HistogramVec

	deadLettersTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// PrometheusMetricsConfig contains configuration for Prometheus metrics.
type PrometheusMetricsConfig struct {
	// Namespace for all metrics (default: "sagaflow")
	Namespace string

	// Registry to register with. If nil, a new registry is created.
	Registry *prometheus.Registry

	// DurationBuckets for the duration histograms. If nil, the defaults are
	// used: [0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60]
	DurationBuckets []float64
}

var defaultDurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0}

// NewPrometheusMetrics creates the collectors and registers them.
func NewPrometheusMetrics(config *PrometheusMetricsConfig) (*PrometheusMetrics, error) {
	if config == nil {
		config = &PrometheusMetricsConfig{}
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.Namespace == "" {
		config.Namespace = "sagaflow"
	}
	if config.DurationBuckets == nil {
		config.DurationBuckets = defaultDurationBuckets
	}

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}
	histogram := func(name, help string, labels ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      name,
			Help:      help,
			Buckets:   config.DurationBuckets,
		}, labels)
	}

	m := &PrometheusMetrics{
		sagaStartedTotal:          counter("saga_started_total", "Total number of sagas started", "definition"),
		sagaCompletedTotal:        counter("saga_completed_total", "Total number of sagas that confirmed their entity", "definition"),
		sagaFailedTotal:           counter("saga_failed_total", "Total number of sagas that failed a forward step", "definition", "step"),
		sagaDuration:              histogram("saga_duration_seconds", "Duration of saga runs in seconds", "definition", "status"),
		stepExecutedTotal:         counter("step_executed_total", "Total number of forward actions executed", "definition", "step", "result"),
		compensationExecutedTotal: counter("compensation_executed_total", "Total number of compensating actions executed", "definition", "step", "result"),
		stepDuration:              histogram("step_duration_seconds", "Duration of step actions in seconds", "definition", "step", "phase"),
		deadLettersTotal:          counter("dead_letters_total", "Total number of dead letters reported", "definition", "result"),
		registry:                  config.Registry,
	}

	collectors := []prometheus.Collector{
		m.sagaStartedTotal,
		m.sagaCompletedTotal,
		m.sagaFailedTotal,
		m.sagaDuration,
		m.stepExecutedTotal,
		m.compensationExecutedTotal,
		m.stepDuration,
		m.deadLettersTotal,
	}
	for _, c := range collectors {
		if err := config.Registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry returns the registry the collectors are registered with.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) SagaStarted(def DefinitionName) {
	m.sagaStartedTotal.WithLabelValues(string(def)).Inc()
}

func (m *PrometheusMetrics) SagaSucceeded(def DefinitionName, duration time.Duration) {
	m.sagaCompletedTotal.WithLabelValues(string(def)).Inc()
	m.sagaDuration.WithLabelValues(string(def), "succeeded").Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SagaFailed(def DefinitionName, failedStep StepName, duration time.Duration) {
	m.sagaFailedTotal.WithLabelValues(string(def), string(failedStep)).Inc()
	m.sagaDuration.WithLabelValues(string(def), "failed").Observe(duration.Seconds())
}

func (m *PrometheusMetrics) StepExecuted(def DefinitionName, step StepName, phase Phase, success bool, duration time.Duration) {
	counter := m.stepExecutedTotal
	if phase == PhaseCompensate {
		counter = m.compensationExecutedTotal
	}
	counter.WithLabelValues(string(def), string(step), result(success)).Inc()
	m.stepDuration.WithLabelValues(string(def), string(step), string(phase)).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) DeadLetterReported(def DefinitionName, success bool) {
	m.deadLettersTotal.WithLabelValues(string(def), result(success)).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
