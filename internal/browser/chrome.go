package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/datallboy/streamgrab/internal/infra/logger"
	"github.com/datallboy/streamgrab/internal/intercept"
)

type ChromeOptions struct {
	Headless  bool
	ExecPath  string
	UserAgent string
}

// ChromeLauncher starts one headless Chrome per session over the DevTools protocol.
type ChromeLauncher struct {
	opts   []chromedp.ExecAllocatorOption
	logger *logger.Logger
}

func NewChromeLauncher(o ChromeOptions, log *logger.Logger) *ChromeLauncher {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("mute-audio", true),
		// play() must work without a user gesture
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
	)

	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	if o.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.UserAgent))
	}

	return &ChromeLauncher{opts: opts, logger: log}
}

func (l *ChromeLauncher) Open(ctx context.Context) (Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, l.opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(l.logger.Debug),
		chromedp.WithErrorf(l.logger.Debug),
	)

	s := &chromeSession{
		ctx:      tabCtx,
		logger:   l.logger,
		domReady: make(chan struct{}, 1),
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}

	chromedp.ListenTarget(tabCtx, s.onEvent)

	// The first Run launches the browser and attaches the tab
	if err := chromedp.Run(tabCtx, page.Enable()); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return s, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *logger.Logger

	mu      sync.RWMutex
	handler RequestHandler

	domReady  chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (s *chromeSession) OnRequest(h RequestHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *chromeSession) SetRequestInterception(ctx context.Context, enabled bool) error {
	var action chromedp.Action = fetch.Disable()
	if enabled {
		action = fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
		})
	}

	runCtx, cancel := s.scoped(ctx, 0)
	defer cancel()

	return chromedp.Run(runCtx, action)
}

func (s *chromeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return s.load(ctx, timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}
		return nil
	}))
}

func (s *chromeSession) Reload(ctx context.Context, timeout time.Duration) error {
	return s.load(ctx, timeout, page.Reload())
}

// load runs a navigation action and waits for the next DOMContentLoaded.
func (s *chromeSession) load(ctx context.Context, timeout time.Duration, action chromedp.Action) error {
	runCtx, cancel := s.scoped(ctx, timeout)
	defer cancel()

	// Drop a signal left over from an earlier load
	select {
	case <-s.domReady:
	default:
	}

	if err := chromedp.Run(runCtx, action); err != nil {
		return err
	}

	select {
	case <-s.domReady:
		return nil
	case <-runCtx.Done():
		return runCtx.Err()
	}
}

func (s *chromeSession) Evaluate(ctx context.Context, expression string, res any) error {
	runCtx, cancel := s.scoped(ctx, 0)
	defer cancel()

	return chromedp.Run(runCtx, chromedp.Evaluate(expression, res))
}

func (s *chromeSession) Content(ctx context.Context) (string, error) {
	runCtx, cancel := s.scoped(ctx, 0)
	defer cancel()

	var markup string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return markup, nil
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		// Ask the browser to shut down cleanly, then release everything regardless
		if err := chromedp.Cancel(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = err
		}
		s.cancel()
	})
	return s.closeErr
}

// scoped derives a context that lives on the tab but also ends with ctx or after timeout.
func (s *chromeSession) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.ctx)
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		parent := cancel
		cancel = func() {
			cancelTimeout()
			parent()
		}
	}

	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromeSession) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *fetch.EventRequestPaused:
		// Decide here, in event order. Answering the browser needs a round trip
		// and the listener must not block.
		d := s.classify(e)
		go s.resolve(e.RequestID, d)
	case *page.EventDomContentEventFired:
		select {
		case s.domReady <- struct{}{}:
		default:
		}
	}
}

func (s *chromeSession) classify(e *fetch.EventRequestPaused) intercept.Disposition {
	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()

	if h == nil || e.Request == nil {
		return intercept.Disposition{Action: intercept.Continue}
	}

	return h(intercept.Request{
		URL:          e.Request.URL,
		ResourceType: intercept.ParseResourceType(string(e.ResourceType)),
	})
}

func (s *chromeSession) resolve(id fetch.RequestID, d intercept.Disposition) {
	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil {
		return
	}
	ctx := cdp.WithExecutor(s.ctx, c.Target)

	var err error
	switch d.Action {
	case intercept.Continue:
		err = fetch.ContinueRequest(id).Do(ctx)
	default:
		// A captured stream is fetched by the throttled writer, not by the page
		err = fetch.FailRequest(id, network.ErrorReasonBlockedByClient).Do(ctx)
	}

	if err != nil && s.ctx.Err() == nil {
		s.logger.Debug("Request %s (%s): %v", id, d.Action, err)
	}
}
