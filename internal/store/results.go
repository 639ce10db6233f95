package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/datallboy/streamgrab/internal/domain"
)

// ErrNotFound is returned when no result has the requested id
var ErrNotFound = errors.New("result not found")

const resultColumns = `id, source_url, status, title, file_path, bytes_written, kind, reason, started_at, finished_at`

// SaveResult records the outcome of a job. Saving the same job twice keeps the latest.
func (s *PersistentStore) SaveResult(ctx context.Context, res domain.JobResult) error {
	query := `INSERT OR REPLACE INTO job_results (` + resultColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		res.JobID,
		res.SourceURL,
		string(res.Status),
		res.Title,
		res.FilePath,
		res.BytesWritten,
		string(res.Kind),
		res.Reason,
		unixNano(res.StartedAt),
		unixNano(res.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save result %s: %w", res.JobID, err)
	}
	return nil
}

// ListResults returns up to limit results, most recently finished first. limit <= 0 means all.
func (s *PersistentStore) ListResults(ctx context.Context, limit int) ([]domain.JobResult, error) {
	query := `SELECT ` + resultColumns + ` FROM job_results ORDER BY finished_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.JobResult, 0)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	return results, rows.Err()
}

// GetResult returns a single result by job id.
func (s *PersistentStore) GetResult(ctx context.Context, id string) (domain.JobResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM job_results WHERE id = ? LIMIT 1`, id)

	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JobResult{}, ErrNotFound
	}
	return res, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner) (domain.JobResult, error) {
	var (
		res                 domain.JobResult
		status, kind        string
		startedAt, finished int64
	)

	err := sc.Scan(&res.JobID, &res.SourceURL, &status, &res.Title, &res.FilePath,
		&res.BytesWritten, &kind, &res.Reason, &startedAt, &finished)
	if err != nil {
		return domain.JobResult{}, err
	}

	res.Status = domain.JobStatus(status)
	res.Kind = domain.ErrorKind(kind)
	res.StartedAt = fromUnixNano(startedAt)
	res.FinishedAt = fromUnixNano(finished)
	return res, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
