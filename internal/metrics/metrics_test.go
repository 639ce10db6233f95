package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/datallboy/streamgrab/internal/domain"
)

func TestMetrics_JobLifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())
	job := domain.NewJob("1", "https://films.example/a", "1080p", 0)

	m.JobStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inProgress))

	m.JobFinished(domain.Success(job, "A", "/films/A.mp4", 5<<20), 3*time.Second)
	m.BytesDownloaded(5 << 20)

	m.JobStarted()
	m.JobFinished(domain.Failure(job, domain.NewJobError(domain.KindMediaNotFound, job.SourceURL, domain.ErrMediaURLNotFound)), time.Minute)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.inProgress))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("completed", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("failed", "media_url_not_found")))
	assert.Equal(t, float64(5<<20), testutil.ToFloat64(m.bytesDownloaded))
	assert.Equal(t, 2, testutil.CollectAndCount(m.jobDuration))
}

func TestMetrics_SkippedJobsDoNotTouchGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())
	job := domain.NewJob("1", "https://films.example/a", "1080p", 0)

	m.JobSkipped(domain.Failure(job, domain.NewJobError(domain.KindCancelled, job.SourceURL, errors.New("context canceled"))))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.inProgress))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("failed", "cancelled")))
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	assert.Panics(t, func() { New(reg) })
}
