package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"snippetd/internal/state"
)

// PoolMetrics adapts the worker pool's counters to Prometheus collectors.
// All record methods are nil-safe so the pool can run without metrics
// configured.
type PoolMetrics struct {
	jobsSubmittedTotal prom.Counter
	jobsFinishedTotal  *prom.CounterVec
	jobDurationSeconds prom.Histogram
	queueDepth         prom.Gauge
	busyWorkers        prom.Gauge
}

// NewPoolMetrics creates and registers the pool collectors.
func NewPoolMetrics(namespace string, reg prom.Registerer) (*PoolMetrics, error) {
	if namespace == "" {
		namespace = "snippetd"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	m := &PoolMetrics{
		jobsSubmittedTotal: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of submitted jobs.",
		}),
		jobsFinishedTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Total number of jobs that reached a terminal status.",
		}, []string{"status"}),
		jobDurationSeconds: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution duration in seconds.",
			Buckets:   prom.DefBuckets,
		}),
		queueDepth: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of jobs waiting for a worker.",
		}),
		busyWorkers: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "busy_workers",
			Help:      "Number of workers currently executing a job.",
		}),
	}

	collectors := []prom.Collector{
		m.jobsSubmittedTotal,
		m.jobsFinishedTotal,
		m.jobDurationSeconds,
		m.queueDepth,
		m.busyWorkers,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PoolMetrics) JobSubmitted() {
	if m == nil {
		return
	}
	m.jobsSubmittedTotal.Inc()
}

func (m *PoolMetrics) JobStarted() {
	if m == nil {
		return
	}
	m.busyWorkers.Inc()
}

func (m *PoolMetrics) JobFinished(status state.JobStatus, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobsFinishedTotal.WithLabelValues(status.String()).Inc()
	if status == state.StatusDone || status == state.StatusFailed {
		m.busyWorkers.Dec()
		m.jobDurationSeconds.Observe(duration.Seconds())
	}
}

func (m *PoolMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
