package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/datallboy/streamgrab/internal/app"
)

const shutdownTimeout = 5 * time.Second

// Server serves the status API while a batch runs.
type Server struct {
	app    *app.Context
	server *http.Server
}

func NewServer(addr string, app *app.Context, gatherer prometheus.Gatherer) *Server {
	e := echo.New()
	RegisterRoutes(e, app, gatherer)

	return &Server{
		app: app,
		server: &http.Server{
			Addr:              addr,
			Handler:           e,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Serve listens until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an already open listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.app.Logger.Info("Status API listening on http://%s", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status API stopped: %w", err)
	case <-ctx.Done():
	}

	s.app.Logger.Info("Shutting down status API")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status API shutdown: %w", err)
	}
	return nil
}
