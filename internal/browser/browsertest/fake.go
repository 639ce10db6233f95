// Package browsertest provides in-memory sessions for tests that would otherwise need Chrome.
package browsertest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/datallboy/streamgrab/internal/browser"
	"github.com/datallboy/streamgrab/internal/intercept"
)

// Session is a scripted page. Hooks run synchronously inside the matching call.
type Session struct {
	mu           sync.Mutex
	handler      browser.RequestHandler
	intercepting bool

	Markup      string
	HasVideo    bool
	NavigateErr error
	ReloadErr   error

	// AfterNavigate and AfterReload let a test emit page traffic
	AfterNavigate func(s *Session)
	AfterReload   func(s *Session)
	OnPlay        func(s *Session)

	Storage      map[string]string
	Dispositions []intercept.Disposition
	closed       int
}

func NewSession(markup string) *Session {
	return &Session{Markup: markup, HasVideo: true, Storage: map[string]string{}}
}

// Emit pushes a request through the installed handler, as the browser would.
func (s *Session) Emit(url string, rt intercept.ResourceType) intercept.Disposition {
	s.mu.Lock()
	h, on := s.handler, s.intercepting
	s.mu.Unlock()

	d := intercept.Disposition{Action: intercept.Continue}
	if on && h != nil {
		d = h(intercept.Request{URL: url, ResourceType: rt})
	}

	s.mu.Lock()
	s.Dispositions = append(s.Dispositions, d)
	s.mu.Unlock()
	return d
}

func (s *Session) OnRequest(h browser.RequestHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *Session) SetRequestInterception(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intercepting = enabled
	return nil
}

func (s *Session) Navigate(ctx context.Context, _ string, _ time.Duration) error {
	if s.NavigateErr != nil {
		return s.NavigateErr
	}
	if s.AfterNavigate != nil {
		s.AfterNavigate(s)
	}
	return ctx.Err()
}

func (s *Session) Reload(ctx context.Context, _ time.Duration) error {
	if s.ReloadErr != nil {
		return s.ReloadErr
	}
	if s.AfterReload != nil {
		s.AfterReload(s)
	}
	return ctx.Err()
}

// Evaluate understands the two scripts jobs run: a localStorage write and a play() call.
func (s *Session) Evaluate(_ context.Context, expression string, res any) error {
	switch {
	case strings.Contains(expression, "localStorage.setItem"):
		s.mu.Lock()
		s.Storage["last_script"] = expression
		s.mu.Unlock()
		if b, ok := res.(*bool); ok {
			*b = true
		}
	case strings.Contains(expression, ".play("):
		if b, ok := res.(*bool); ok {
			*b = s.HasVideo
		}
		if s.HasVideo && s.OnPlay != nil {
			s.OnPlay(s)
		}
	default:
		return errors.New("browsertest: unsupported script")
	}
	return nil
}

func (s *Session) Content(_ context.Context) (string, error) {
	return s.Markup, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Closed reports how many times Close was called.
func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Launcher hands out the queued sessions in order.
type Launcher struct {
	mu       sync.Mutex
	Sessions []*Session
	OpenErr  error
	opened   int
}

func (l *Launcher) Open(_ context.Context) (browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.OpenErr != nil {
		return nil, l.OpenErr
	}
	if l.opened >= len(l.Sessions) {
		return nil, errors.New("browsertest: no session queued")
	}
	s := l.Sessions[l.opened]
	l.opened++
	return s, nil
}

// MockSession is a testify mock of browser.Session.
type MockSession struct {
	mock.Mock
}

func (m *MockSession) OnRequest(h browser.RequestHandler) { m.Called(h) }

func (m *MockSession) SetRequestInterception(ctx context.Context, enabled bool) error {
	return m.Called(ctx, enabled).Error(0)
}

func (m *MockSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return m.Called(ctx, url, timeout).Error(0)
}

func (m *MockSession) Reload(ctx context.Context, timeout time.Duration) error {
	return m.Called(ctx, timeout).Error(0)
}

func (m *MockSession) Evaluate(ctx context.Context, expression string, res any) error {
	args := m.Called(ctx, expression, res)
	if b, ok := res.(*bool); ok && len(args) > 1 {
		*b = args.Bool(1)
	}
	return args.Error(0)
}

func (m *MockSession) Content(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSession) Close() error {
	return m.Called().Error(0)
}
