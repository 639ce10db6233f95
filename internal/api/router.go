package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datallboy/streamgrab/internal/api/controllers"
	"github.com/datallboy/streamgrab/internal/app"
)

// RegisterRoutes mounts the status endpoints. gatherer may be nil to leave /metrics out.
func RegisterRoutes(e *echo.Echo, app *app.Context, gatherer prometheus.Gatherer) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Debug("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	jobsCtrl := &controllers.JobsController{App: app}

	e.GET("/api/status", jobsCtrl.HandleStatus)
	e.GET("/api/jobs", jobsCtrl.HandleList)
	e.GET("/api/jobs/:id", jobsCtrl.HandleGet)

	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}
