package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/maltedev/watch-price-scraper/internal/models"
	"github.com/maltedev/watch-price-scraper/internal/ratelimit"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Scheduler runs a Visitor over every target with at most maxConcurrent
// visits in flight.
type Scheduler struct {
	visitor       Visitor
	maxConcurrent int
	jitter        ratelimit.Waiter
	logger        *slog.Logger
}

func NewScheduler(visitor Visitor, maxConcurrent int, jitter ratelimit.Waiter, logger *slog.Logger) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if jitter == nil {
		jitter = ratelimit.NoWait{}
	}
	return &Scheduler{
		visitor:       visitor,
		maxConcurrent: maxConcurrent,
		jitter:        jitter,
		logger:        logger.With("component", "scheduler"),
	}
}

// RunAll launches one task per target and returns once all of them finished.
// outcomes[i] always belongs to targets[i]. Visits are detached from ctx
// cancellation: a started visit runs to completion, bounded only by its own
// timeouts.
func (s *Scheduler) RunAll(ctx context.Context, targets []string, capturedAt time.Time) []models.VisitOutcome {
	ctx = context.WithoutCancel(ctx)
	gate := semaphore.NewWeighted(int64(s.maxConcurrent))
	outcomes := make([]models.VisitOutcome, len(targets))

	var g errgroup.Group
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			if err := gate.Acquire(ctx, 1); err != nil {
				outcomes[i] = models.VisitOutcome{
					Target: target,
					Kind:   models.OutcomeFault,
					Visit:  models.FailedVisit(capturedAt),
					Err:    &FetchFault{Target: target, Stage: "admission", Err: err},
				}
				return nil
			}
			defer gate.Release(1)

			if err := s.jitter.Wait(ctx); err != nil {
				s.logger.Debug("jitter interrupted", "target", target, "error", err)
			}

			outcomes[i] = s.visitor.Visit(ctx, target, capturedAt)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
