package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/watch-price-scraper/internal/database"
	"github.com/redis/go-redis/v9"
)

// StreamClient is the subset of the redis client a consumer group member needs.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// RunCompleted is one SCRAPE_RUN_COMPLETED event read from the stream.
type RunCompleted struct {
	MessageID string
	EventID   string
	Payload   database.RunCompletedPayload
}

type Handler func(ctx context.Context, event RunCompleted) error

type ConsumerConfig struct {
	Stream string
	Group  string
	Name   string
	Block  time.Duration
}

// Consumer reads run events from a Redis stream as a member of a consumer
// group. A message is acknowledged only after its handler succeeds.
type Consumer struct {
	client  StreamClient
	config  ConsumerConfig
	handler Handler
	logger  *slog.Logger
}

func NewConsumer(client StreamClient, config ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	if config.Stream == "" {
		config.Stream = database.DefaultStream
	}
	if config.Group == "" {
		config.Group = "watch-price-consumers"
	}
	if config.Name == "" {
		config.Name = "consumer-1"
	}
	if config.Block <= 0 {
		config.Block = 5 * time.Second
	}

	return &Consumer{
		client:  client,
		config:  config,
		handler: handler,
		logger:  logger.With("component", "consumer", "stream", config.Stream, "group", config.Group),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.config.Stream, c.config.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("consumer started", "name", c.config.Name)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping")
			return ctx.Err()
		default:
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.config.Group,
			Consumer: c.config.Name,
			Streams:  []string{c.config.Stream, ">"},
			Count:    10,
			Block:    c.config.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			c.logger.Error("failed to read from stream", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if err := c.processMessage(ctx, msg); err != nil {
					c.logger.Error("failed to process message", "message_id", msg.ID, "error", err)
					continue
				}
				if err := c.client.XAck(ctx, c.config.Stream, c.config.Group, msg.ID).Err(); err != nil {
					c.logger.Error("failed to acknowledge message", "message_id", msg.ID, "error", err)
				}
			}
		}
	}
}

// processMessage hands run events to the handler. Other event types are
// skipped and acknowledged.
func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage) error {
	eventType, _ := msg.Values["event_type"].(string)
	if eventType != database.EventScrapeRunCompleted {
		c.logger.Debug("skipping event", "message_id", msg.ID, "event_type", eventType)
		return nil
	}

	event, err := decodeRunCompleted(msg)
	if err != nil {
		return err
	}

	return c.handler(ctx, event)
}

func decodeRunCompleted(msg redis.XMessage) (RunCompleted, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return RunCompleted{}, fmt.Errorf("message %s has no data field", msg.ID)
	}

	var envelope database.StreamEnvelope
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		return RunCompleted{}, fmt.Errorf("failed to parse event data: %w", err)
	}

	var payload database.RunCompletedPayload
	if len(envelope.Payload) > 0 {
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return RunCompleted{}, fmt.Errorf("failed to parse run payload: %w", err)
		}
	}
	if payload.RunID == "" {
		return RunCompleted{}, fmt.Errorf("message %s has no run id", msg.ID)
	}

	return RunCompleted{
		MessageID: msg.ID,
		EventID:   envelope.ID,
		Payload:   payload,
	}, nil
}
