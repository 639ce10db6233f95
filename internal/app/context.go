package app

import (
	"context"
	"time"

	"github.com/datallboy/streamgrab/internal/domain"
	"github.com/datallboy/streamgrab/internal/infra/config"
	"github.com/datallboy/streamgrab/internal/infra/logger"
)

// JobRunner runs a single page to completion.
type JobRunner interface {
	Run(ctx context.Context, job domain.Job) domain.JobResult
}

// Store keeps the history of finished jobs.
type Store interface {
	SaveResult(ctx context.Context, res domain.JobResult) error
	ListResults(ctx context.Context, limit int) ([]domain.JobResult, error)
	GetResult(ctx context.Context, id string) (domain.JobResult, error)
	Close() error
}

// QueueView is the read side of the running batch.
type QueueView interface {
	Items() []domain.QueueSnapshot
	ActiveItem() (domain.QueueSnapshot, bool)
	GetItem(id string) (domain.QueueSnapshot, bool)
}

// Metrics receives batch and job events. Implementations must be safe for concurrent use.
type Metrics interface {
	JobStarted()
	JobFinished(res domain.JobResult, elapsed time.Duration)
	JobSkipped(res domain.JobResult)
	BytesDownloaded(n int64)
}

// Context holds the core environment and shared resources.
// Store, Metrics and Queue are optional and may be nil.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Runner  JobRunner
	Store   Store
	Metrics Metrics
	Queue   QueueView
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}
