package domain

import (
	"sync/atomic"
	"time"
)

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// QueueItem is the live view of a job while the batch runs
type QueueItem struct {
	Job    Job       `json:"-"`
	ID     string    `json:"id"`
	URL    string    `json:"url"`
	Status JobStatus `json:"status"`
	State  JobState  `json:"state"`

	BytesWritten atomic.Int64 `json:"-"`
	TotalBytes   atomic.Int64 `json:"-"`

	StartedAt time.Time `json:"started_at"`
	Error     string    `json:"error,omitempty"`
}

func NewQueueItem(job Job) *QueueItem {
	return &QueueItem{
		Job:    job,
		ID:     job.ID,
		URL:    job.SourceURL,
		Status: StatusPending,
		State:  StateIdle,
	}
}

// QueueSnapshot is a copy of a QueueItem safe to hand to readers.
type QueueSnapshot struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Status       JobStatus `json:"status"`
	State        JobState  `json:"state"`
	BytesWritten int64     `json:"bytes_written"`
	TotalBytes   int64     `json:"total_bytes"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Snapshot copies the item. Callers must hold the lock guarding Status, State and Error.
func (q *QueueItem) Snapshot() QueueSnapshot {
	return QueueSnapshot{
		ID:           q.ID,
		URL:          q.URL,
		Status:       q.Status,
		State:        q.State,
		BytesWritten: q.BytesWritten.Load(),
		TotalBytes:   q.TotalBytes.Load(),
		StartedAt:    q.StartedAt,
		Error:        q.Error,
	}
}
