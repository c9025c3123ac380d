package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stagerun"

// Исходы шага для метки outcome.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Metrics — Prometheus метрики движка.
//
// Все методы безопасны для nil-получателя: движок без метрик
// просто не вызывает регистрацию.
type Metrics struct {
	runs         *prometheus.CounterVec
	steps        *prometheus.CounterVec
	stepDuration prometheus.Histogram
	retries      prometheus.Counter
	batchPauses  prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// Если reg == nil, метрики создаются без регистрации.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by terminal status.",
		}, []string{"status"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_attempts_total",
			Help:      "Step computation attempts by outcome.",
		}, []string{"outcome"}),
		stepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of a single step computation attempt.",
			Buckets:   prometheus.DefBuckets,
		}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_retries_total",
			Help:      "Retries scheduled after a failed step attempt.",
		}),
		batchPauses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_pauses_total",
			Help:      "Pauses inserted between batches.",
		}),
	}
}

// RunFinished учитывает завершённый run.
func (m *Metrics) RunFinished(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

// StepAttempt учитывает одну попытку вычисления шага.
func (m *Metrics) StepAttempt(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(outcome).Inc()
	m.stepDuration.Observe(d.Seconds())
}

// RetryScheduled учитывает запланированный retry.
func (m *Metrics) RetryScheduled() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// BatchPaused учитывает паузу между батчами.
func (m *Metrics) BatchPaused() {
	if m == nil {
		return
	}
	m.batchPauses.Inc()
}

// Runs возвращает счётчик run (для тестов и экспорта).
func (m *Metrics) Runs() *prometheus.CounterVec { return m.runs }

// Steps возвращает счётчик попыток шагов.
func (m *Metrics) Steps() *prometheus.CounterVec { return m.steps }

// Retries возвращает счётчик retry.
func (m *Metrics) Retries() prometheus.Counter { return m.retries }

// BatchPauses возвращает счётчик пауз между батчами.
func (m *Metrics) BatchPauses() prometheus.Counter { return m.batchPauses }
