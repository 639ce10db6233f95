package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/time/rate"

	"github.com/datallboy/streamgrab/internal/domain"
	"github.com/datallboy/streamgrab/internal/infra/logger"
)

const DefaultChunkSize = 32 * 1024

// ProgressFunc receives coalesced progress reports
type ProgressFunc func(domain.DownloadProgress)

// StreamWriter downloads one media URL to disk under a bandwidth cap.
type StreamWriter struct {
	client    *http.Client
	logger    *logger.Logger
	chunkSize int
}

func NewStreamWriter(client *http.Client, log *logger.Logger, chunkSize int) *StreamWriter {
	if client == nil {
		client = http.DefaultClient
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &StreamWriter{client: client, logger: log, chunkSize: chunkSize}
}

// Write streams src into dest, admitting at most capBytesPerSec bytes per second
// (<= 0 disables the cap). Bytes land in dest+".part" and the file is only
// renamed to dest after it has been synced, so dest never holds a partial stream.
// Transport and filesystem failures come back as *domain.JobError.
func (w *StreamWriter) Write(ctx context.Context, src, dest string, capBytesPerSec int64, title string, onProgress ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, domain.NewJobError(domain.KindTransport, src, err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, domain.NewJobError(domain.KindTransport, src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, domain.NewJobError(domain.KindTransport, src, fmt.Errorf("unexpected status %s", resp.Status))
	}

	// ContentLength is -1 when the server did not declare a size
	total := resp.ContentLength

	partPath := dest + ".part"
	f, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, domain.NewJobError(domain.KindFilesystem, src, fmt.Errorf("could not create %s: %w", partPath, err))
	}

	written, err := w.copyThrottled(ctx, f, resp.Body, capBytesPerSec, NewProgressTracker(title, total), onProgress)
	if err == nil {
		err = w.finalize(f, partPath, dest)
	} else {
		f.Close()
	}

	if err != nil {
		if rmErr := os.Remove(partPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			w.logger.Warn("Could not remove partial file %s: %v", partPath, rmErr)
		}
		var je *domain.JobError
		if !errors.As(err, &je) {
			return written, domain.NewJobError(domain.KindTransport, src, err)
		}
		if je.URL == "" {
			je.URL = src
		}
		return written, je
	}

	return written, nil
}

// copyThrottled moves bytes in order, waiting on the limiter before each write.
func (w *StreamWriter) copyThrottled(ctx context.Context, dst io.Writer, src io.Reader, capBytesPerSec int64, tracker *ProgressTracker, onProgress ProgressFunc) (int64, error) {
	chunk := w.chunkSize
	limiter := rate.NewLimiter(rate.Inf, chunk)
	if capBytesPerSec > 0 {
		if int64(chunk) > capBytesPerSec {
			chunk = int(capBytesPerSec)
		}
		// burst == chunk keeps the overshoot above the cap to a single chunk
		limiter = rate.NewLimiter(rate.Limit(capBytesPerSec), chunk)
	}

	buf := make([]byte, chunk)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if err := limiter.WaitN(ctx, n); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				return written, domain.NewJobError(domain.KindCancelled, "", err)
			}

			if _, err := dst.Write(buf[:n]); err != nil {
				return written, domain.NewJobError(domain.KindFilesystem, "", fmt.Errorf("write failed: %w", err))
			}
			written += int64(n)

			if p, ok := tracker.Add(n); ok && onProgress != nil {
				onProgress(p)
			}
		}

		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return written, domain.NewJobError(domain.KindCancelled, "", ctxErr)
			}
			return written, domain.NewJobError(domain.KindTransport, "", fmt.Errorf("stream interrupted after %d bytes: %w", written, readErr))
		}
	}
}

// finalize syncs and closes the part file, then moves it into place.
func (w *StreamWriter) finalize(f *os.File, partPath, dest string) error {
	if err := f.Sync(); err != nil {
		f.Close()
		return domain.NewJobError(domain.KindFilesystem, "", fmt.Errorf("sync failed: %w", err))
	}
	if err := f.Close(); err != nil {
		return domain.NewJobError(domain.KindFilesystem, "", fmt.Errorf("close failed: %w", err))
	}
	if err := os.Rename(partPath, dest); err != nil {
		return domain.NewJobError(domain.KindFilesystem, "", fmt.Errorf("could not move %s into place: %w", partPath, err))
	}
	return nil
}
