package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maltedev/watch-price-scraper/internal/browser"
	"github.com/maltedev/watch-price-scraper/internal/config"
	"github.com/maltedev/watch-price-scraper/internal/database"
	"github.com/maltedev/watch-price-scraper/internal/logging"
	"github.com/maltedev/watch-price-scraper/internal/parser"
	"github.com/maltedev/watch-price-scraper/internal/ratelimit"
	"github.com/maltedev/watch-price-scraper/internal/report"
	"github.com/maltedev/watch-price-scraper/internal/scraper"
	"github.com/maltedev/watch-price-scraper/internal/sink"
	"github.com/maltedev/watch-price-scraper/internal/storage"
	"github.com/redis/go-redis/v9"
)

// app holds every long-lived component of one process.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *scraper.Metrics
	browser    *browser.Browser
	db         *database.DB
	outbox     *database.OutboxRepository
	redis      *redis.Client
	relay      *database.Relay
	runLog     *storage.RunLog
	runner     *scraper.Runner
	dispatcher *sink.Dispatcher

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	logger, logCloser, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}, os.Stdout)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	a.closers = append(a.closers, logCloser.Close)
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	a.runLog, err = storage.NewRunLog(filepath.Join(cfg.Output.Dir, cfg.Output.RunLogFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}

	sinks := []sink.Sink{report.NewCSVReport(cfg.Output.Dir), a.runLog}

	if cfg.Database.Enabled {
		a.db, err = database.New(ctx, database.ConfigFrom(cfg.Database))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { a.db.Close(); return nil })

		if err := a.db.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.outbox = database.NewOutboxRepository(a.db)
		sinks = append(sinks, database.NewStore(a.db, cfg.Redis.Stream, logger))
	}

	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, a.redis.Close)

		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.relay = database.NewRelay(a.outbox, a.redis, logger, database.RelayConfig{
			PollInterval: cfg.Redis.PollInterval,
		})
	}

	a.dispatcher = sink.NewDispatcher(logger, sinks...)

	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.UserAgent = cfg.Browser.UserAgent
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.Locale = cfg.Browser.Locale

	a.browser, err = browser.New(opts)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.browser.Close)

	a.metrics = scraper.NewMetrics()
	fetcher := scraper.NewFetcher(
		scraper.BrowserRenderer{Browser: a.browser},
		parser.NewWatchParser(),
		scraper.FetchOptions{
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			ReadinessTimeout:  cfg.Browser.ReadinessTimeout,
			ReadySelector:     parser.ReadySelector,
		},
		a.metrics,
		logger,
	)
	visitor := scraper.NewRetryingVisitor(fetcher, scraper.RetryPolicy{
		MaxAttempts: cfg.Scraper.MaxAttempts,
		Delay:       cfg.Scraper.RetryDelay,
	}, a.metrics, logger)
	scheduler := scraper.NewScheduler(
		visitor,
		cfg.Scraper.ConcurrentLimit,
		ratelimit.NewJitter(cfg.Scraper.JitterMin, cfg.Scraper.JitterMax),
		logger,
	)
	a.runner = scraper.NewRunner(scheduler, a.metrics, logger)

	logger.Info("scraper initialized",
		"targets", len(cfg.Targets),
		"concurrent_limit", cfg.Scraper.ConcurrentLimit,
		"max_attempts", cfg.Scraper.MaxAttempts,
		"sinks", a.dispatcher.Names())

	return a, nil
}

// Close releases components in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
