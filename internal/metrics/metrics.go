package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"zenithmaint/internal/domain"
)

const (
	Namespace = "zenith"
	Subsystem = "maintenance"
)

// Metrics holds the maintenance collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	TaskRuns     *prometheus.CounterVec
	TaskDuration *prometheus.HistogramVec
	TaskLastRun  *prometheus.GaugeVec
	Running      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		TaskRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "task_runs_total",
				Help:      "Counter of maintenance task attempts by outcome.",
			}, []string{"task", "outcome"}),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "task_duration_seconds",
				Help:      "Wall-clock duration of maintenance task attempts.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			}, []string{"task"}),
		TaskLastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "task_last_run_timestamp_seconds",
				Help:      "Unix time of the last maintenance task attempt.",
			}, []string{"task"}),
		Running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "scheduler_running",
				Help:      "1 while the maintenance scheduler is started.",
			}),
	}
	m.Registry.MustRegister(
		m.TaskRuns, m.TaskDuration, m.TaskLastRun, m.Running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func outcome(res domain.Result) string {
	if res.Success {
		return "success"
	}
	return "failure"
}

// ObserveTask records one task attempt.
func (m *Metrics) ObserveTask(task domain.Task, res domain.Result) {
	m.TaskRuns.WithLabelValues(task.ID, outcome(res)).Inc()
	m.TaskDuration.WithLabelValues(task.ID).Observe(res.Duration.Seconds())
	if task.LastRun != nil {
		m.TaskLastRun.WithLabelValues(task.ID).Set(float64(task.LastRun.Unix()))
	}
}

func (m *Metrics) SetRunning(running bool) {
	if running {
		m.Running.Set(1)
		return
	}
	m.Running.Set(0)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
