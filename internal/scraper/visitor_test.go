package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maltedev/watch-price-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCountingVisitor(f PageFetcher, policy RetryPolicy) (*RetryingVisitor, *[]time.Duration) {
	v := NewRetryingVisitor(f, policy, NewMetrics(), testLogger())
	var delays []time.Duration
	v.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return v, &delays
}

func TestRetryingVisitor_SucceedsOnAttemptK(t *testing.T) {
	const target = "https://watches.example.test/k"
	policy := RetryPolicy{MaxAttempts: 4, Delay: 3 * time.Second}

	for k := 1; k <= policy.MaxAttempts; k++ {
		fetcher := newScriptedFetcher(map[string]int{target: k}, &NavigationError{Target: target, Err: errors.New("timeout")})
		visitor, delays := newCountingVisitor(fetcher, policy)

		outcome := visitor.Visit(context.Background(), target, time.Now())

		require.True(t, outcome.OK(), "k=%d", k)
		assert.Equal(t, k, outcome.Attempts)
		assert.Equal(t, k, fetcher.callCount(target))
		assert.Len(t, *delays, k-1)
		assert.Equal(t, target, outcome.Visit.Price.ModelID)
		assert.NoError(t, outcome.Err)
	}
}

func TestRetryingVisitor_ExhaustsCap(t *testing.T) {
	const target = "https://watches.example.test/down"
	capturedAt := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	readyErr := &ReadinessError{Target: target, Selector: "h1", Err: errors.New("timeout")}

	for _, limit := range []int{1, 2, 3} {
		fetcher := newScriptedFetcher(nil, readyErr)
		visitor, delays := newCountingVisitor(fetcher, RetryPolicy{MaxAttempts: limit, Delay: 3 * time.Second})

		outcome := visitor.Visit(context.Background(), target, capturedAt)

		assert.False(t, outcome.OK())
		assert.Equal(t, models.OutcomeReadinessTimeout, outcome.Kind)
		assert.Equal(t, limit, fetcher.callCount(target))
		assert.Equal(t, limit, outcome.Attempts)
		assert.Len(t, *delays, limit-1)
		for _, d := range *delays {
			assert.Equal(t, 3*time.Second, d)
		}

		assert.Equal(t, models.ErrorSentinel, outcome.Visit.Price.ModelID)
		assert.Equal(t, models.ErrorSentinel, outcome.Visit.Spec.ModelID)
		assert.Equal(t, models.ErrorSentinel, outcome.Visit.Price.RetailPrice)
		assert.Equal(t, capturedAt, outcome.Visit.Price.CapturedAt)
		assert.ErrorIs(t, outcome.Err, readyErr)
	}
}

func TestRetryingVisitor_RetriesEveryFailureKind(t *testing.T) {
	const target = "https://watches.example.test/any"
	failures := []error{
		&NavigationError{Target: target, Err: errors.New("nav")},
		&ReadinessError{Target: target, Err: errors.New("ready")},
		&FetchFault{Target: target, Stage: "content", Err: errors.New("crash")},
	}

	for _, failure := range failures {
		fetcher := newScriptedFetcher(map[string]int{target: 2}, failure)
		visitor, delays := newCountingVisitor(fetcher, DefaultRetryPolicy())

		outcome := visitor.Visit(context.Background(), target, time.Now())
		assert.True(t, outcome.OK(), "%T should be retried", failure)
		assert.Len(t, *delays, 1)
	}
}

func TestRetryingVisitor_NilVisitIsFault(t *testing.T) {
	visitor, _ := newCountingVisitor(nilFetcher{}, RetryPolicy{MaxAttempts: 1})

	outcome := visitor.Visit(context.Background(), "https://watches.example.test/nil", time.Now())
	assert.Equal(t, models.OutcomeFault, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, errEmptyVisit)
}

func TestNewRetryingVisitor_MinimumOneAttempt(t *testing.T) {
	v := NewRetryingVisitor(nilFetcher{}, RetryPolicy{MaxAttempts: 0}, nil, testLogger())
	assert.Equal(t, 1, v.policy.MaxAttempts)
}

type nilFetcher struct{}

func (nilFetcher) Fetch(context.Context, string, time.Time) (*models.Visit, error) {
	return nil, nil
}
