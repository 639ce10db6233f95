package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/datallboy/streamgrab/internal/app"
	"github.com/datallboy/streamgrab/internal/domain"
	"github.com/datallboy/streamgrab/internal/infra/logger"
)

// Report is the outcome of a whole batch. Failed holds source URLs in job order.
type Report struct {
	Completed []string
	Failed    []string
	Results   []domain.JobResult
}

// Batch runs jobs strictly one after another and keeps a live view of the
// queue for the status API.
type Batch struct {
	mu      sync.RWMutex
	runner  app.JobRunner
	store   app.Store
	metrics app.Metrics
	logger  *logger.Logger

	queue      []*domain.QueueItem
	activeItem *domain.QueueItem
}

func NewBatch(app *app.Context) *Batch {
	return &Batch{
		runner:  app.Runner,
		store:   app.Store,
		metrics: app.Metrics,
		logger:  app.Logger,
	}
}

// BuildJobs turns page URLs into jobs sharing one quality and bandwidth cap.
func BuildJobs(urls []string, quality string, bandwidthCap int64) []domain.Job {
	jobs := make([]domain.Job, 0, len(urls))
	for _, u := range urls {
		jobs = append(jobs, domain.NewJob(ksuid.New().String(), u, quality, bandwidthCap))
	}
	return jobs
}

// Run processes jobs in order. A failed job never stops the batch; a
// cancelled ctx does, and every job that did not get to run is reported
// as failed.
func (b *Batch) Run(ctx context.Context, jobs []domain.Job) Report {
	items := make([]*domain.QueueItem, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, domain.NewQueueItem(job))
	}

	b.mu.Lock()
	b.queue = append(b.queue, items...)
	b.mu.Unlock()

	var report Report
	for i, item := range items {
		var res domain.JobResult

		if err := ctx.Err(); err != nil {
			res = domain.Failure(item.Job, domain.NewJobError(domain.KindCancelled, item.URL, err))
			res.StartedAt = res.FinishedAt
			if b.metrics != nil {
				b.metrics.JobSkipped(res)
			}
		} else {
			b.logger.Info("Processing %d/%d: %s", i+1, len(items), item.URL)
			res = b.runItem(ctx, item)
			if b.metrics != nil {
				b.metrics.JobFinished(res, time.Since(item.StartedAt))
				b.metrics.BytesDownloaded(res.BytesWritten)
			}
		}

		b.finalizeJob(ctx, item, res)

		report.Results = append(report.Results, res)
		if res.Succeeded() {
			report.Completed = append(report.Completed, item.URL)
		} else {
			report.Failed = append(report.Failed, item.URL)
		}
	}

	b.logger.Info("Batch finished: %d completed, %d failed", len(report.Completed), len(report.Failed))
	b.logger.Info("URLs not processed: %v", report.Failed)

	return report
}

func (b *Batch) runItem(ctx context.Context, item *domain.QueueItem) domain.JobResult {
	b.mu.Lock()
	b.activeItem = item
	item.Status = domain.StatusRunning
	item.StartedAt = time.Now()
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.JobStarted()
	}

	return b.runner.Run(ctx, item.Job)
}

func (b *Batch) finalizeJob(ctx context.Context, item *domain.QueueItem, res domain.JobResult) {
	b.mu.Lock()
	if res.Succeeded() {
		item.Status = domain.StatusCompleted
		item.State = domain.StateDone
		item.BytesWritten.Store(res.BytesWritten)
	} else {
		item.Status = domain.StatusFailed
		item.State = domain.StateFailed
		if errors.Is(res.Err, context.Canceled) {
			item.Error = "Cancelled by user"
		} else {
			item.Error = res.Reason
		}
	}
	if b.activeItem == item {
		b.activeItem = nil
	}
	b.mu.Unlock()

	if b.store != nil {
		// The outcome is recorded even when the batch is being cancelled
		if err := b.store.SaveResult(context.WithoutCancel(ctx), res); err != nil {
			b.logger.Warn("Failed to save result for %s: %v", item.URL, err)
		}
	}
}

// OnState mirrors the runner's state machine into the active queue item.
func (b *Batch) OnState(job domain.Job, state domain.JobState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.activeItem != nil && b.activeItem.ID == job.ID {
		b.activeItem.State = state
	}
}

// OnProgress records download progress on the active queue item.
func (b *Batch) OnProgress(job domain.Job, p domain.DownloadProgress) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.activeItem != nil && b.activeItem.ID == job.ID {
		b.activeItem.BytesWritten.Store(p.DownloadedBytes)
		b.activeItem.TotalBytes.Store(p.TotalBytes)
	}
}

// ActiveItem returns the job currently running, if any.
func (b *Batch) ActiveItem() (domain.QueueSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.activeItem == nil {
		return domain.QueueSnapshot{}, false
	}
	return b.activeItem.Snapshot(), true
}

// Items returns a snapshot of every job this batch has seen, in order.
func (b *Batch) Items() []domain.QueueSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	items := make([]domain.QueueSnapshot, 0, len(b.queue))
	for _, item := range b.queue {
		items = append(items, item.Snapshot())
	}
	return items
}

// GetItem searches the queue for a specific ID.
func (b *Batch) GetItem(id string) (domain.QueueSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, item := range b.queue {
		if item.ID == id {
			return item.Snapshot(), true
		}
	}
	return domain.QueueSnapshot{}, false
}
