package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — Prometheus метрики движка.
//
// Все методы безопасны для nil-получателя: компоненты, созданные
// без метрик, просто ничего не записывают.
type Metrics struct {
	steps       *prometheus.CounterVec
	reminders   *prometheus.CounterVec
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

// NewMetrics создаёт и регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engage",
			Name:      "steps_total",
			Help:      "Executed sequence steps by action type and outcome.",
		}, []string{"action", "outcome"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engage",
			Name:      "reminders_total",
			Help:      "Reminder dispatches by kind, channel and outcome.",
		}, []string{"kind", "channel", "outcome"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engage",
			Name:      "job_runs_total",
			Help:      "Scheduler job runs by job and status.",
		}, []string{"job", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "engage",
			Name:      "job_duration_seconds",
			Help:      "Scheduler job duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
	}
	reg.MustRegister(m.steps, m.reminders, m.jobRuns, m.jobDuration)
	return m
}

// StepExecuted учитывает выполнение шага.
func (m *Metrics) StepExecuted(action, outcome string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(action, outcome).Inc()
}

// ReminderDispatched учитывает отправку напоминания.
func (m *Metrics) ReminderDispatched(kind, channel string, ok bool) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(kind, channel, outcomeLabel(ok)).Inc()
}

// JobRun учитывает запуск задачи планировщика.
func (m *Metrics) JobRun(job string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, outcomeLabel(ok)).Inc()
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func outcomeLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}
