package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why a job failed. It is recorded with every failed result.
type ErrorKind string

const (
	KindNavigation    ErrorKind = "navigation_timeout"
	KindMediaNotFound ErrorKind = "media_url_not_found"
	KindTitle         ErrorKind = "title_extraction_failure"
	KindTransport     ErrorKind = "transport_error"
	KindFilesystem    ErrorKind = "filesystem_error"
	KindNameExhausted ErrorKind = "duplicate_name_exhaustion"
	KindSession       ErrorKind = "session_error"
	KindCancelled     ErrorKind = "cancelled"
	KindUnknown       ErrorKind = "unknown"
)

// ErrNavigation indicates the page could not be loaded within the load timeout
var ErrNavigation = errors.New("navigation failed")

// ErrMediaURLNotFound indicates no request matched the capture pattern before the deadline
var ErrMediaURLNotFound = errors.New("media URL not found")

// ErrTitleNotFound indicates neither title pattern matched the rendered page
var ErrTitleNotFound = errors.New("title not found in page content")

// ErrNameExhausted indicates every numbered candidate name was already taken
var ErrNameExhausted = errors.New("no free destination name")

// JobError ties a failure to the page it happened on.
type JobError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func NewJobError(kind ErrorKind, url string, err error) *JobError {
	return &JobError{Kind: kind, URL: url, Err: err}
}

func (e *JobError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v. URL: %s", e.Kind, e.Err, e.URL)
}

func (e *JobError) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}

	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrMediaURLNotFound):
		return KindMediaNotFound
	case errors.Is(err, ErrTitleNotFound):
		return KindTitle
	case errors.Is(err, ErrNameExhausted):
		return KindNameExhausted
	case errors.Is(err, ErrNavigation):
		return KindNavigation
	default:
		return KindUnknown
	}
}
