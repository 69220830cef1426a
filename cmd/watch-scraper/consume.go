package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/watch-price-scraper/internal/config"
	"github.com/maltedev/watch-price-scraper/internal/events"
	"github.com/maltedev/watch-price-scraper/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	groupFlag    string
	consumerFlag string
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Follow run events published to the Redis stream",
	RunE:  consume,
}

func init() {
	consumeCmd.Flags().StringVar(&groupFlag, "group", "watch-price-consumers", "Consumer group name")
	consumeCmd.Flags().StringVar(&consumerFlag, "name", "", "Consumer name within the group (defaults to hostname)")
	rootCmd.AddCommand(consumeCmd)
}

func consume(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, os.Stdout)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	name := consumerFlag
	if name == "" {
		if name, err = os.Hostname(); err != nil {
			name = "consumer-1"
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	consumer := events.NewConsumer(rdb, events.ConsumerConfig{
		Stream: cfg.Redis.Stream,
		Group:  groupFlag,
		Name:   name,
	}, func(_ context.Context, e events.RunCompleted) error {
		p := e.Payload
		logger.Info("run completed",
			"run_id", p.RunID,
			"captured_at", p.CapturedAt,
			"successful", p.SuccessfulWatches,
			"total", p.TotalWatches,
			"failed_targets", p.FailedTargets)
		for modelID, price := range p.MarketPrices {
			logger.Debug("market price", "run_id", p.RunID, "model_id", modelID, "price", price)
		}
		return nil
	}, logger)

	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
