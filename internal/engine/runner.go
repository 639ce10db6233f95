package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/datallboy/streamgrab/internal/browser"
	"github.com/datallboy/streamgrab/internal/domain"
	"github.com/datallboy/streamgrab/internal/infra/logger"
	"github.com/datallboy/streamgrab/internal/intercept"
	"github.com/datallboy/streamgrab/internal/naming"
	"github.com/datallboy/streamgrab/internal/quality"
)

const (
	DefaultNavigationTimeout = 35 * time.Second
	DefaultCaptureTimeout    = 60 * time.Second
)

// playScript starts the player if the page has one. A missing element is not an error.
const playScript = `(() => { const v = document.querySelector('video'); if (v) { v.play(); return true; } return false; })()`

// Writer downloads a captured media URL to dest.
type Writer interface {
	Write(ctx context.Context, src, dest string, capBytesPerSec int64, title string, onProgress ProgressFunc) (int64, error)
}

// Observer is told about state changes and progress of the job being run.
type Observer interface {
	OnState(job domain.Job, state domain.JobState)
	OnProgress(job domain.Job, p domain.DownloadProgress)
}

type RunnerOptions struct {
	OutDir            string
	Extension         string
	NavigationTimeout time.Duration
	CaptureTimeout    time.Duration
}

// Runner drives one page from navigation to a saved file.
type Runner struct {
	launcher browser.Launcher
	selector *quality.Selector
	writer   Writer
	logger   *logger.Logger
	opts     RunnerOptions
	observer Observer
}

func NewRunner(launcher browser.Launcher, selector *quality.Selector, writer Writer, log *logger.Logger, opts RunnerOptions) *Runner {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = DefaultCaptureTimeout
	}
	if opts.Extension == "" {
		opts.Extension = ".mp4"
	}
	return &Runner{
		launcher: launcher,
		selector: selector,
		writer:   writer,
		logger:   log,
		opts:     opts,
	}
}

// SetObserver must be called before Run.
func (r *Runner) SetObserver(o Observer) {
	r.observer = o
}

// Run executes job and always returns exactly one result. The browser session
// it opens is closed exactly once, whichever way the job ends.
func (r *Runner) Run(ctx context.Context, job domain.Job) domain.JobResult {
	started := time.Now()
	res := r.run(ctx, job)
	res.StartedAt = started

	if res.Succeeded() {
		r.setState(job, domain.StateDone)
	} else {
		r.setState(job, domain.StateFailed)
		r.logger.Error("Job failed: %v", res.Err)
	}
	return res
}

func (r *Runner) run(ctx context.Context, job domain.Job) domain.JobResult {
	r.setState(job, domain.StateIdle)

	session, err := r.launcher.Open(ctx)
	if err != nil {
		return r.fail(ctx, job, domain.KindSession, fmt.Errorf("could not open browser session: %w", err))
	}

	var closeOnce sync.Once
	closeSession := func() {
		closeOnce.Do(func() {
			if err := session.Close(); err != nil {
				r.logger.Warn("Closing browser session failed: %v", err)
			}
		})
	}
	defer closeSession()

	ic := intercept.New()
	session.OnRequest(func(req intercept.Request) intercept.Disposition {
		d := ic.Classify(req)
		if d.Action == intercept.Capture {
			r.logger.Debug("Captured media request %s", req.URL)
		}
		return d
	})
	if err := session.SetRequestInterception(ctx, true); err != nil {
		return r.fail(ctx, job, domain.KindSession, fmt.Errorf("could not enable request interception: %w", err))
	}

	r.setState(job, domain.StateLoading)
	if err := session.Navigate(ctx, job.SourceURL, r.opts.NavigationTimeout); err != nil {
		return r.fail(ctx, job, domain.KindNavigation, fmt.Errorf("%w: %w", domain.ErrNavigation, err))
	}
	r.logger.Info("Page loaded: %s", job.SourceURL)

	if err := r.selector.Apply(ctx, session, job.Quality, ic.Arm); err != nil {
		kind := domain.KindSession
		if errors.Is(err, context.DeadlineExceeded) {
			kind = domain.KindNavigation
		}
		return r.fail(ctx, job, kind, fmt.Errorf("could not apply quality %q: %w", job.Quality, err))
	}
	r.setState(job, domain.StateQualityApplied)
	r.logger.Info("Quality set to %s, page reloaded", job.Quality)

	var playing bool
	if err := session.Evaluate(ctx, playScript, &playing); err != nil {
		r.logger.Debug("Could not trigger playback: %v", err)
	} else if !playing {
		r.logger.Debug("No video element found, waiting for the page to request the stream itself")
	}

	r.setState(job, domain.StateAwaitingCapture)
	mediaURL, err := r.awaitCapture(ctx, ic)
	if err != nil {
		return r.fail(ctx, job, domain.KindOf(err), err)
	}
	r.logger.Debug("Media URL: %s", mediaURL)

	markup, err := session.Content(ctx)
	if err != nil {
		return r.fail(ctx, job, domain.KindSession, fmt.Errorf("could not read page content: %w", err))
	}

	// The stream is fetched directly, the page is no longer needed
	closeSession()

	title, err := naming.ExtractTitle(markup)
	if err != nil {
		return r.fail(ctx, job, domain.KindTitle, err)
	}

	if err := os.MkdirAll(r.opts.OutDir, 0755); err != nil {
		return r.fail(ctx, job, domain.KindFilesystem, fmt.Errorf("failed to create out_dir: %w", err))
	}

	dest, err := naming.UniquePath(r.opts.OutDir, title, r.opts.Extension)
	if err != nil {
		return r.fail(ctx, job, domain.KindOf(err), err)
	}

	r.setState(job, domain.StateDownloading)
	r.logger.Info("Downloading: %s", title)

	n, err := r.writer.Write(ctx, mediaURL, dest, job.BandwidthCap, title, func(p domain.DownloadProgress) {
		r.logger.Info("%s", FormatProgress(p))
		if r.observer != nil {
			r.observer.OnProgress(job, p)
		}
	})
	if err != nil {
		return r.fail(ctx, job, domain.KindOf(err), err)
	}

	r.logger.Info("Download complete: %s (%s)", title, dest)
	return domain.Success(job, title, dest, n)
}

// awaitCapture waits for the interceptor to capture a media URL, up to the capture timeout.
func (r *Runner) awaitCapture(ctx context.Context, ic *intercept.Interceptor) (string, error) {
	timer := time.NewTimer(r.opts.CaptureTimeout)
	defer timer.Stop()

	select {
	case u := <-ic.Captured():
		return u, nil
	case <-timer.C:
		return "", domain.NewJobError(domain.KindMediaNotFound, "",
			fmt.Errorf("%w within %s", domain.ErrMediaURLNotFound, r.opts.CaptureTimeout))
	case <-ctx.Done():
		return "", domain.NewJobError(domain.KindCancelled, "", ctx.Err())
	}
}

// fail builds a failed result. A cancelled batch wins over whatever kind the step reported.
func (r *Runner) fail(ctx context.Context, job domain.Job, kind domain.ErrorKind, err error) domain.JobResult {
	if ctx.Err() != nil {
		kind = domain.KindCancelled
	}

	var je *domain.JobError
	if errors.As(err, &je) {
		if je.URL == "" {
			je.URL = job.SourceURL
		}
		je.Kind = kind
	} else {
		err = domain.NewJobError(kind, job.SourceURL, err)
	}

	return domain.Failure(job, err)
}

func (r *Runner) setState(job domain.Job, state domain.JobState) {
	r.logger.Debug("Job %s: %s", job.ID, state)
	if r.observer != nil {
		r.observer.OnState(job, state)
	}
}
