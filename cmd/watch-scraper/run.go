package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/watch-price-scraper/internal/config"
	"github.com/maltedev/watch-price-scraper/internal/jobs"
	"github.com/maltedev/watch-price-scraper/internal/queue"
	"github.com/spf13/cobra"
)

var (
	targetsFlag   []string
	outputDirFlag string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape every configured model page once and exit",
	RunE:  runOnce,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&targetsFlag, "targets", nil, "Model page URLs (overrides WATCH_TARGETS)")
	rootCmd.PersistentFlags().StringVarP(&outputDirFlag, "output", "o", "", "Directory for CSV and run log files (overrides OUTPUT_DIR)")
	rootCmd.AddCommand(runCmd)
}

// loadConfig applies command line overrides on top of the environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if len(targetsFlag) > 0 {
		cfg.Targets = targetsFlag
	}
	if outputDirFlag != "" {
		cfg.Output.Dir = outputDirFlag
	}
	return cfg, cfg.Validate()
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	q := queue.NewInMemoryQueue(1)
	defer q.Close()
	manager := jobs.NewManager(a.runner, a.dispatcher, q, cfg.Targets, a.logger)

	result, runErr := manager.RunNow(ctx)
	if result != nil {
		s := result.Summary
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d/%d watches scraped in %.2fs\n",
			s.ID, s.SuccessfulWatches, s.TotalWatches, s.DurationSeconds)
	}

	if a.relay != nil {
		published, err := a.relay.ProcessOnce(context.WithoutCancel(ctx))
		if err != nil {
			a.logger.Error("failed to relay outbox events", "error", err)
		} else {
			a.logger.Info("outbox events relayed", "count", published)
		}
	}

	return runErr
}
