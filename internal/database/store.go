package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/maltedev/watch-price-scraper/internal/models"
)

const (
	AggregateScrapeRun      = "scrape_run"
	EventScrapeRunCompleted = "SCRAPE_RUN_COMPLETED"
)

// Store appends a finished run to postgres. Price rows, spec rows, the scrape
// log and the completion event commit in one transaction.
type Store struct {
	db     *DB
	outbox *OutboxRepository
	stream string
	logger *slog.Logger
}

func NewStore(db *DB, stream string, logger *slog.Logger) *Store {
	if stream == "" {
		stream = DefaultStream
	}
	return &Store{
		db:     db,
		outbox: NewOutboxRepository(db),
		stream: stream,
		logger: logger.With("component", "store"),
	}
}

func (s *Store) Name() string {
	return "postgres"
}

func (s *Store) Write(ctx context.Context, result *models.RunResult) error {
	payload, err := json.Marshal(NewRunCompletedPayload(result))
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}

	err = s.db.Transaction(ctx, func(tx pgx.Tx) error {
		runID := result.Summary.ID

		for _, p := range result.Prices {
			if err := insertPrice(ctx, tx, runID, p); err != nil {
				return err
			}
		}
		for _, spec := range result.Specs {
			if err := insertSpec(ctx, tx, runID, result, spec); err != nil {
				return err
			}
		}
		if err := insertScrapeLog(ctx, tx, result.Summary); err != nil {
			return err
		}

		return s.outbox.InsertWithTx(ctx, tx, &OutboxEvent{
			AggregateType: AggregateScrapeRun,
			AggregateID:   runID,
			EventType:     EventScrapeRunCompleted,
			Payload:       payload,
			TargetStream:  s.stream,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("run stored",
		"run_id", result.Summary.ID,
		"prices", len(result.Prices),
		"specs", len(result.Specs))
	return nil
}

func insertPrice(ctx context.Context, tx pgx.Tx, runID string, p models.PriceRecord) error {
	query := `
		INSERT INTO watch_prices (run_id, model_id, model_name, retail_price, market_price, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := tx.Exec(ctx, query,
		runID, p.ModelID, p.ModelName, p.RetailPrice, p.MarketPrice, p.CapturedAt,
	); err != nil {
		return fmt.Errorf("failed to insert price for %s: %w", p.ModelID, err)
	}
	return nil
}

func insertSpec(ctx context.Context, tx pgx.Tx, runID string, result *models.RunResult, spec models.SpecRecord) error {
	specs, err := specsJSON(spec)
	if err != nil {
		return err
	}

	var imageURL *string
	if spec.ImageURL != "" {
		imageURL = &spec.ImageURL
	}

	query := `
		INSERT INTO watch_specs (run_id, model_id, model_name, image_url, specs, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := tx.Exec(ctx, query,
		runID, spec.ModelID, spec.ModelName, imageURL, specs, result.CapturedAt,
	); err != nil {
		return fmt.Errorf("failed to insert specs for %s: %w", spec.ModelID, err)
	}
	return nil
}

func insertScrapeLog(ctx context.Context, tx pgx.Tx, summary models.RunSummary) error {
	query := `
		INSERT INTO scrape_logs (id, start_time, end_time, duration_seconds, total_watches, successful_watches)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := tx.Exec(ctx, query,
		summary.ID, summary.StartTime, summary.EndTime,
		summary.DurationSeconds, summary.TotalWatches, summary.SuccessfulWatches,
	); err != nil {
		return fmt.Errorf("failed to insert scrape log: %w", err)
	}
	return nil
}

func specsJSON(spec models.SpecRecord) ([]byte, error) {
	specs := spec.Specs
	if specs == nil {
		specs = map[string]string{}
	}
	data, err := json.Marshal(specs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal specs for %s: %w", spec.ModelID, err)
	}
	return data, nil
}

// RunCompletedPayload is the body of the SCRAPE_RUN_COMPLETED event.
type RunCompletedPayload struct {
	RunID             string            `json:"run_id"`
	StartTime         string            `json:"start_time"`
	EndTime           string            `json:"end_time"`
	DurationSeconds   float64           `json:"duration_seconds"`
	TotalWatches      int               `json:"total_watches"`
	SuccessfulWatches int               `json:"successful_watches"`
	CapturedAt        string            `json:"captured_at"`
	MarketPrices      map[string]string `json:"market_prices"`
	FailedTargets     []string          `json:"failed_targets"`
}

func NewRunCompletedPayload(result *models.RunResult) RunCompletedPayload {
	payload := RunCompletedPayload{
		RunID:             result.Summary.ID,
		StartTime:         result.Summary.StartTime.Format(models.TimestampLayout),
		EndTime:           result.Summary.EndTime.Format(models.TimestampLayout),
		DurationSeconds:   result.Summary.DurationSeconds,
		TotalWatches:      result.Summary.TotalWatches,
		SuccessfulWatches: result.Summary.SuccessfulWatches,
		CapturedAt:        result.CapturedAt.Format(models.TimestampLayout),
		MarketPrices:      make(map[string]string),
		FailedTargets:     []string{},
	}

	for _, p := range result.Prices {
		if !p.Failed() {
			payload.MarketPrices[p.ModelID] = p.MarketPrice
		}
	}
	for _, outcome := range result.Outcomes {
		if !outcome.OK() {
			payload.FailedTargets = append(payload.FailedTargets, outcome.Target)
		}
	}

	return payload
}
