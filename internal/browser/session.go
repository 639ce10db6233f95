// Package browser is the controllable rendering session a job drives: it loads
// a page, lets a handler rule on every outgoing request, and runs scripts in
// the page.
package browser

import (
	"context"
	"time"

	"github.com/datallboy/streamgrab/internal/intercept"
)

// RequestHandler rules on one paused request. It must not block.
type RequestHandler func(intercept.Request) intercept.Disposition

// Session is one rendered page. Close must be safe to call more than once.
type Session interface {
	// OnRequest installs the handler consulted while interception is enabled
	OnRequest(h RequestHandler)
	SetRequestInterception(ctx context.Context, enabled bool) error

	// Navigate and Reload return once the document has been parsed (DOMContentLoaded)
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Reload(ctx context.Context, timeout time.Duration) error

	// Evaluate runs a script expression in the page and decodes its result into res
	Evaluate(ctx context.Context, expression string, res any) error
	Content(ctx context.Context) (string, error)

	Close() error
}

// Launcher opens new sessions. Each job gets its own.
type Launcher interface {
	Open(ctx context.Context) (Session, error)
}
