// Package intercept decides what happens to every request a rendered page makes:
// drop it, let it through, or take it as the media stream we are looking for.
package intercept

import (
	"strings"
	"sync/atomic"
)

// ResourceType is the declared type of an outgoing request.
type ResourceType string

const (
	ResourceImage      ResourceType = "image"
	ResourceStylesheet ResourceType = "stylesheet"
	ResourceFont       ResourceType = "font"
	ResourceMedia      ResourceType = "media"
	ResourceDocument   ResourceType = "document"
	ResourceOther      ResourceType = "other"
)

// ParseResourceType maps a DevTools resource type ("Image", "Stylesheet", ...) onto ResourceType.
func ParseResourceType(s string) ResourceType {
	switch rt := ResourceType(strings.ToLower(s)); rt {
	case ResourceImage, ResourceStylesheet, ResourceFont, ResourceMedia, ResourceDocument:
		return rt
	default:
		return ResourceOther
	}
}

// Request is the view of one in-flight request. It is only valid for the
// duration of a single Classify call.
type Request struct {
	URL          string
	ResourceType ResourceType
}

type Action int

const (
	Continue Action = iota
	Abort
	Capture
)

func (a Action) String() string {
	switch a {
	case Abort:
		return "abort"
	case Capture:
		return "capture"
	default:
		return "continue"
	}
}

// Disposition is the verdict for one request. MediaURL is set only for Capture.
type Disposition struct {
	Action   Action
	MediaURL string
}

// CaptureState flips from false to true at most once.
type CaptureState struct {
	found atomic.Bool
}

func (s *CaptureState) Captured() bool { return s.found.Load() }

// tryCapture is the single critical section: only one caller ever wins.
func (s *CaptureState) tryCapture() bool {
	return s.found.CompareAndSwap(false, true)
}

// Interceptor classifies the requests of one job. A fresh Interceptor is used per job.
//
// Until Arm is called, requests that look like the media stream are aborted
// instead of captured: the page has not yet been told which quality to load.
type Interceptor struct {
	state    CaptureState
	armed    atomic.Bool
	captured chan string
}

func New() *Interceptor {
	return &Interceptor{captured: make(chan string, 1)}
}

// Arm enables capturing. Call it once the quality preference is visible to the page.
func (i *Interceptor) Arm() { i.armed.Store(true) }

// Captured delivers the media URL once, when the capture happens.
func (i *Interceptor) Captured() <-chan string { return i.captured }

// Done reports whether the media URL has been captured.
func (i *Interceptor) Done() bool { return i.state.Captured() }

// Classify applies the interception policy in order. It does no I/O and is
// safe to call from concurrent callbacks.
func (i *Interceptor) Classify(req Request) Disposition {
	if i.state.Captured() {
		return Disposition{Action: Continue}
	}

	switch req.ResourceType {
	case ResourceImage, ResourceStylesheet, ResourceFont:
		return Disposition{Action: Abort}
	}

	// A bare .mp4 is a poster or decoy, never the stream itself
	if strings.HasSuffix(req.URL, mediaExt) {
		return Disposition{Action: Abort}
	}

	if !IsStreamURL(req.URL) {
		return Disposition{Action: Continue}
	}

	if !i.armed.Load() {
		return Disposition{Action: Abort}
	}

	// Someone else may have won between the check above and here
	if !i.state.tryCapture() {
		return Disposition{Action: Continue}
	}

	mediaURL := CanonicalMediaURL(req.URL)
	i.captured <- mediaURL

	return Disposition{Action: Capture, MediaURL: mediaURL}
}

const (
	mediaExt      = ".mp4"
	segmentMarker = ".ts"
	metaDelimiter = ".mp4:"
)

// IsStreamURL reports whether url carries both the container extension and a segment marker.
func IsStreamURL(url string) bool {
	return strings.Contains(url, mediaExt) && strings.Contains(url, segmentMarker)
}

// CanonicalMediaURL strips the segment metadata the stream server appends
// after "<asset>.mp4:" and returns the asset URL.
//
//	https://cdn.example/video.mp4:1080p.ts/seg1 -> https://cdn.example/video.mp4
//
// Without the colon delimiter the URL is cut right after the first ".mp4".
func CanonicalMediaURL(raw string) string {
	if before, _, ok := strings.Cut(raw, metaDelimiter); ok {
		return before + mediaExt
	}
	if idx := strings.Index(raw, mediaExt); idx >= 0 {
		return raw[:idx+len(mediaExt)]
	}
	return raw
}
