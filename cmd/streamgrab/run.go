package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/datallboy/streamgrab/internal/api"
	"github.com/datallboy/streamgrab/internal/app"
	"github.com/datallboy/streamgrab/internal/browser"
	"github.com/datallboy/streamgrab/internal/engine"
	"github.com/datallboy/streamgrab/internal/infra/config"
	"github.com/datallboy/streamgrab/internal/infra/logger"
	"github.com/datallboy/streamgrab/internal/metrics"
	"github.com/datallboy/streamgrab/internal/platform"
	"github.com/datallboy/streamgrab/internal/quality"
	"github.com/datallboy/streamgrab/internal/store"
)

type options struct {
	configPath string
	listen     string
	args       []string
}

func run(ctx context.Context, opts options) error {
	if err := config.LoadEnvFiles(); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := cfg.ApplyArgs(opts.args); err != nil {
		return err
	}
	if opts.listen != "" {
		cfg.API.Listen = opts.listen
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return fmt.Errorf("could not open log file: %w", err)
	}
	defer log.Close()

	chromePath, err := platform.FindChrome(cfg.Browser.ExecPath)
	if err != nil {
		return err
	}
	log.Debug("Using browser %s", chromePath)

	logParameters(log, cfg)

	appCtx := app.NewContext(cfg, log)

	if cfg.Store.SQLitePath != "" {
		st, err := store.NewPersistentStore(cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("could not open job history: %w", err)
		}
		defer st.Close()
		appCtx.Store = st
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appCtx.Metrics = metrics.New(reg)

	launcher := browser.NewChromeLauncher(browser.ChromeOptions{
		Headless:  cfg.Browser.Headless,
		ExecPath:  chromePath,
		UserAgent: cfg.Browser.UserAgent,
	}, log)

	// No overall client timeout: a capped download of a feature film takes a long time
	client := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   15 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
		},
	}

	runner := engine.NewRunner(
		launcher,
		quality.NewSelector(cfg.Browser.QualityKey, cfg.Browser.NavigationTimeout),
		engine.NewStreamWriter(client, log, cfg.Download.ChunkSize),
		log,
		engine.RunnerOptions{
			OutDir:            cfg.Download.OutDir,
			Extension:         cfg.Download.Extension,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			CaptureTimeout:    cfg.Browser.CaptureTimeout,
		},
	)
	appCtx.Runner = runner

	batch := engine.NewBatch(appCtx)
	runner.SetObserver(batch)
	appCtx.Queue = batch

	jobs := engine.BuildJobs(cfg.Jobs, cfg.Download.Quality, cfg.Download.BandwidthBytes())

	g, gctx := errgroup.WithContext(ctx)

	// The status API lives exactly as long as the batch
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	if cfg.API.Listen != "" {
		srv := api.NewServer(cfg.API.Listen, appCtx, reg)
		g.Go(func() error {
			return srv.Serve(serverCtx)
		})
	}

	var report engine.Report
	g.Go(func() error {
		defer stopServer()
		report = batch.Run(gctx, jobs)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %d of %d pages not processed", len(report.Failed), len(jobs))
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d of %d pages not processed", len(report.Failed), len(jobs))
	}

	log.Info("All %d pages downloaded", len(jobs))
	return nil
}

func logParameters(log *logger.Logger, cfg *config.Config) {
	speed := "unlimited"
	if limit := cfg.Download.BandwidthBytes(); limit > 0 {
		speed = humanize.IBytes(uint64(limit)) + "/s"
	}

	log.Info("Parameters: quality %s, speed limit %s", cfg.Download.Quality, speed)
	log.Info("Saving to %s, %d pages queued", cfg.Download.OutDir, len(cfg.Jobs))
}
