package domain

import "time"

// Job is one queued page. It is immutable once built.
type Job struct {
	ID           string
	SourceURL    string
	Quality      string
	BandwidthCap int64 // bytes per second, <= 0 means unlimited
}

func NewJob(id, sourceURL, quality string, bandwidthCap int64) Job {
	return Job{
		ID:           id,
		SourceURL:    sourceURL,
		Quality:      quality,
		BandwidthCap: bandwidthCap,
	}
}

// JobState is a step of the per-page state machine.
type JobState string

const (
	StateIdle            JobState = "idle"
	StateLoading         JobState = "loading"
	StateQualityApplied  JobState = "quality_applied"
	StateAwaitingCapture JobState = "awaiting_capture"
	StateDownloading     JobState = "downloading"
	StateDone            JobState = "done"
	StateFailed          JobState = "failed"
)

// IsTerminal reports whether no further transition can follow.
func (s JobState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// JobResult is produced exactly once per Job: either a saved file or a failure.
type JobResult struct {
	JobID        string    `json:"id"`
	SourceURL    string    `json:"source_url"`
	Status       JobStatus `json:"status"`
	Title        string    `json:"title,omitempty"`
	FilePath     string    `json:"file_path,omitempty"`
	BytesWritten int64     `json:"bytes_written"`
	Kind         ErrorKind `json:"kind,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`

	Err error `json:"-"`
}

// Success builds the result of a job that saved its stream.
func Success(job Job, title, filePath string, bytesWritten int64) JobResult {
	return JobResult{
		JobID:        job.ID,
		SourceURL:    job.SourceURL,
		Status:       StatusCompleted,
		Title:        title,
		FilePath:     filePath,
		BytesWritten: bytesWritten,
		FinishedAt:   time.Now(),
	}
}

// Failure builds the result of a job that ended in err.
func Failure(job Job, err error) JobResult {
	res := JobResult{
		JobID:      job.ID,
		SourceURL:  job.SourceURL,
		Status:     StatusFailed,
		Kind:       KindOf(err),
		Err:        err,
		FinishedAt: time.Now(),
	}
	if err != nil {
		res.Reason = err.Error()
	}
	return res
}

func (r JobResult) Succeeded() bool {
	return r.Status == StatusCompleted
}

// DownloadProgress is a coalesced progress sample for one download.
type DownloadProgress struct {
	Title           string
	DownloadedBytes int64
	TotalBytes      int64 // <= 0 when the server did not declare a size
	Percent         int
}
