package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/maltedev/watch-price-scraper/internal/api"
	"github.com/maltedev/watch-price-scraper/internal/jobs"
	"github.com/maltedev/watch-price-scraper/internal/queue"
	"github.com/spf13/cobra"
)

const requestQueueSize = 16

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled scrapes and expose the HTTP API",
	RunE:  serve,
}

func init() {
	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "HTTP port (overrides SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if portFlag > 0 {
		cfg.Server.Port = portFlag
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	q := queue.NewInMemoryQueue(requestQueueSize)
	manager := jobs.NewManager(a.runner, a.dispatcher, q, cfg.Targets, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		manager.StartWorker(ctx)
	}()
	go func() {
		defer wg.Done()
		manager.StartScheduler(ctx, cfg.Schedule.Interval, cfg.Schedule.RunOnStart)
	}()

	if a.relay != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("relay stopped with error", "error", err)
			}
		}()
	}

	var outbox api.OutboxStats
	if a.outbox != nil {
		outbox = a.outbox
	}
	handlers := api.NewHandlers(manager, a.runLog, outbox, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handlers, a.metrics.Registry),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Server.Port)
	serveErr := server.ListenAndServe()
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}

	// A run already in progress finishes before the worker exits.
	cancel()
	q.Close()
	wg.Wait()

	logger.Info("server stopped")
	return serveErr
}
