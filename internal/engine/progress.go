package engine

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/datallboy/streamgrab/internal/domain"
)

// ProgressStep is the minimum percent advance between two reports
const ProgressStep = 10

// ProgressTracker turns per-chunk byte counts into coalesced progress reports.
// Reported percentages never go down and never repeat.
type ProgressTracker struct {
	title      string
	total      int64
	downloaded int64
	last       int
}

func NewProgressTracker(title string, total int64) *ProgressTracker {
	return &ProgressTracker{title: title, total: total}
}

// Add records n more bytes. It returns a report and true when the percentage
// moved at least ProgressStep points since the previous report. 100 is an upper
// bound, not a report of its own: a download that ends 8 points after the last
// report ends silently. Without a known total nothing is ever reported.
func (p *ProgressTracker) Add(n int) (domain.DownloadProgress, bool) {
	p.downloaded += int64(n)

	if p.total <= 0 {
		return domain.DownloadProgress{}, false
	}

	percent := int(p.downloaded * 100 / p.total)
	if percent > 100 {
		percent = 100
	}

	if percent-p.last < ProgressStep {
		return domain.DownloadProgress{}, false
	}
	p.last = percent

	return p.Current(), true
}

// Current is the state as of the last Add, reported or not.
func (p *ProgressTracker) Current() domain.DownloadProgress {
	return domain.DownloadProgress{
		Title:           p.title,
		DownloadedBytes: p.downloaded,
		TotalBytes:      p.total,
		Percent:         p.last,
	}
}

// FormatProgress renders a report the way it is logged:
//
//	Progress (Title): 40% [========>           ] (12 MB / 30 MB)
func FormatProgress(p domain.DownloadProgress) string {
	const barWidth = 20
	completedWidth := p.Percent * barWidth / 100
	bar := strings.Repeat("=", completedWidth)
	if completedWidth < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-completedWidth-1)
	}

	return fmt.Sprintf("Progress (%s): %d%% [%s] (%s / %s)",
		p.Title, p.Percent, bar,
		humanize.IBytes(uint64(p.DownloadedBytes)), humanize.IBytes(uint64(p.TotalBytes)))
}
