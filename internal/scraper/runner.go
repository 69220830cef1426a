package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/watch-price-scraper/internal/models"
)

// Runner performs one full scraping run and summarizes it. It does no I/O
// beyond what the scheduler drives.
type Runner struct {
	scheduler *Scheduler
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

func NewRunner(scheduler *Scheduler, metrics *Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		scheduler: scheduler,
		metrics:   metrics,
		logger:    logger.With("component", "runner"),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// RunSession visits every target once and returns the finished result set.
// len(Prices) == len(Specs) == len(targets), in target order.
func (r *Runner) RunSession(ctx context.Context, targets []string) *models.RunResult {
	start := r.now()
	capturedAt := start.Truncate(time.Second)
	r.logger.Info("scraping session started", "targets", len(targets))

	outcomes := r.scheduler.RunAll(ctx, targets, capturedAt)

	prices := make([]models.PriceRecord, len(outcomes))
	specs := make([]models.SpecRecord, len(outcomes))
	for i, outcome := range outcomes {
		prices[i] = outcome.Visit.Price
		specs[i] = outcome.Visit.Spec
	}

	end := r.now()
	summary := models.RunSummary{
		ID:                r.newID(),
		StartTime:         start,
		EndTime:           end,
		DurationSeconds:   end.Sub(start).Seconds(),
		TotalWatches:      len(targets),
		SuccessfulWatches: countSuccessful(prices),
	}
	r.metrics.ObserveRun(summary)

	r.logger.Info("scraping session completed",
		"run_id", summary.ID,
		"duration_seconds", summary.DurationSeconds,
		"total", summary.TotalWatches,
		"successful", summary.SuccessfulWatches,
	)

	return &models.RunResult{
		Summary:    summary,
		CapturedAt: capturedAt,
		Prices:     prices,
		Specs:      specs,
		Outcomes:   outcomes,
	}
}

func countSuccessful(prices []models.PriceRecord) int {
	n := 0
	for _, p := range prices {
		if !p.Failed() {
			n++
		}
	}
	return n
}
