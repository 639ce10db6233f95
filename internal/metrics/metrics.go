// Package metrics exposes batch progress as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/datallboy/streamgrab/internal/domain"
)

const namespace = "streamgrab"

// Metrics implements app.Metrics on top of client_golang collectors.
type Metrics struct {
	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	bytesDownloaded prometheus.Counter
	fileSizeBytes   prometheus.Histogram
	inProgress      prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// It panics if a collector is already registered, like prometheus.MustRegister.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Finished jobs by status and failure kind.",
			},
			[]string{"status", "kind"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Wall time of a job from browser launch to saved file.",
				// pages take seconds to load, downloads take minutes
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"status"},
		),
		bytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written to disk by finished jobs.",
		}),
		fileSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_size_bytes",
			Help:      "Size of saved media files.",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 4, 8), // 1MiB .. 16GiB
		}),
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_progress",
			Help:      "Jobs currently running.",
		}),
	}

	reg.MustRegister(m.jobsTotal, m.jobDuration, m.bytesDownloaded, m.fileSizeBytes, m.inProgress)
	return m
}

func (m *Metrics) JobStarted() {
	m.inProgress.Inc()
}

// JobFinished closes a job opened with JobStarted.
func (m *Metrics) JobFinished(res domain.JobResult, elapsed time.Duration) {
	status := string(res.Status)
	if res.Succeeded() {
		m.fileSizeBytes.Observe(float64(res.BytesWritten))
	}

	m.inProgress.Dec()
	m.jobsTotal.WithLabelValues(status, string(res.Kind)).Inc()
	m.jobDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// JobSkipped counts a job that never ran because the batch was stopped.
func (m *Metrics) JobSkipped(res domain.JobResult) {
	m.jobsTotal.WithLabelValues(string(res.Status), string(res.Kind)).Inc()
}

func (m *Metrics) BytesDownloaded(n int64) {
	if n > 0 {
		m.bytesDownloaded.Add(float64(n))
	}
}
