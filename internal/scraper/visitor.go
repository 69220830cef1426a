package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/maltedev/watch-price-scraper/internal/models"
	"github.com/maltedev/watch-price-scraper/internal/ratelimit"
)

// RetryPolicy is a fixed attempt cap with a fixed delay between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 2,
		Delay:       3 * time.Second,
	}
}

// RetryingVisitor retries every failure kind uniformly and returns the last
// outcome once the cap is reached.
type RetryingVisitor struct {
	fetcher PageFetcher
	policy  RetryPolicy
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *Metrics
	logger  *slog.Logger
}

func NewRetryingVisitor(fetcher PageFetcher, policy RetryPolicy, metrics *Metrics, logger *slog.Logger) *RetryingVisitor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryingVisitor{
		fetcher: fetcher,
		policy:  policy,
		sleep:   ratelimit.Sleep,
		metrics: metrics,
		logger:  logger.With("component", "visitor"),
	}
}

func (v *RetryingVisitor) Visit(ctx context.Context, target string, capturedAt time.Time) models.VisitOutcome {
	var outcome models.VisitOutcome

	for attempt := 1; attempt <= v.policy.MaxAttempts; attempt++ {
		start := time.Now()
		visit, err := v.fetcher.Fetch(ctx, target, capturedAt)
		if err == nil && visit == nil {
			err = &FetchFault{Target: target, Stage: "fetch", Err: errEmptyVisit}
		}
		kind := outcomeKind(err)
		v.metrics.ObserveAttempt(kind, time.Since(start))

		if err == nil {
			outcome = models.VisitOutcome{
				Target:   target,
				Kind:     models.OutcomeSuccess,
				Visit:    *visit,
				Attempts: attempt,
			}
			break
		}

		outcome = models.VisitOutcome{
			Target:   target,
			Kind:     kind,
			Visit:    models.FailedVisit(capturedAt),
			Attempts: attempt,
			Err:      err,
		}
		if attempt == v.policy.MaxAttempts {
			break
		}

		v.logger.Warn("retrying target", "target", target, "attempt", attempt, "outcome", kind.String())
		v.metrics.IncRetries()
		if sleepErr := v.sleep(ctx, v.policy.Delay); sleepErr != nil {
			break
		}
	}

	if !outcome.OK() {
		v.logger.Error("target failed after retries", "target", target, "attempts", outcome.Attempts, "error", outcome.Err)
	}
	v.metrics.ObserveVisit(outcome.Kind)
	return outcome
}
