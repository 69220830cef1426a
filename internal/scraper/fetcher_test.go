package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maltedev/watch-price-scraper/internal/models"
	"github.com/maltedev/watch-price-scraper/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(r Renderer) *Fetcher {
	return NewFetcher(r, parser.NewWatchParser(), DefaultFetchOptions(), nil, testLogger())
}

func TestFetcher_Success(t *testing.T) {
	target := "https://watches.example.test/1"
	renderer := newFakeRenderer(map[string]pageBehavior{target: {html: modelPage("5711/1A")}})
	capturedAt := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

	visit, err := newTestFetcher(renderer).Fetch(context.Background(), target, capturedAt)
	require.NoError(t, err)
	require.NotNil(t, visit)

	assert.Equal(t, "5711/1A", visit.Price.ModelID)
	assert.Equal(t, visit.Price.ModelID, visit.Spec.ModelID)
	assert.Equal(t, "1000", visit.Price.MarketPrice)
	assert.Equal(t, models.NotAvailable, visit.Price.RetailPrice)
	assert.Equal(t, capturedAt, visit.Price.CapturedAt)
	assert.Equal(t, "5711/1A", visit.Spec.Specs["reference"])

	opened, closed, _ := renderer.stats()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestFetcher_Failures(t *testing.T) {
	target := "https://watches.example.test/broken"
	boom := errors.New("Timeout 60000ms exceeded")

	tests := []struct {
		name     string
		behavior pageBehavior
		openErr  error
		wantKind models.OutcomeKind
		closed   int
	}{
		{"navigation timeout", pageBehavior{navErr: boom}, nil, models.OutcomeNavigationTimeout, 1},
		{"readiness timeout", pageBehavior{readyErr: boom}, nil, models.OutcomeReadinessTimeout, 1},
		{"panic during extraction", pageBehavior{panicIn: "content"}, nil, models.OutcomeFault, 1},
		{"session cannot open", pageBehavior{}, boom, models.OutcomeFault, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := newFakeRenderer(map[string]pageBehavior{target: tt.behavior})
			renderer.openErr = tt.openErr

			visit, err := newTestFetcher(renderer).Fetch(context.Background(), target, time.Now())
			require.Error(t, err)
			assert.Nil(t, visit)
			assert.Equal(t, tt.wantKind, outcomeKind(err))

			opened, closed, _ := renderer.stats()
			assert.Equal(t, opened, closed, "every opened session must be closed")
			assert.Equal(t, tt.closed, closed)
		})
	}
}

func TestFetcher_PanicReportsStage(t *testing.T) {
	target := "https://watches.example.test/crash"

	for _, stage := range []string{"navigate", "ready", "content"} {
		t.Run(stage, func(t *testing.T) {
			renderer := newFakeRenderer(map[string]pageBehavior{target: {html: modelPage("X"), panicIn: stage}})

			visit, err := newTestFetcher(renderer).Fetch(context.Background(), target, time.Now())
			assert.Nil(t, visit)

			var fault *FetchFault
			require.ErrorAs(t, err, &fault)
			assert.Equal(t, stage, fault.Stage)
			assert.Contains(t, fault.Error(), "renderer crashed")

			opened, closed, _ := renderer.stats()
			assert.Equal(t, 1, opened)
			assert.Equal(t, 1, closed)
		})
	}
}

func TestFetcher_ErrorsUnwrap(t *testing.T) {
	target := "https://watches.example.test/slow"
	cause := errors.New("net::ERR_TIMED_OUT")
	renderer := newFakeRenderer(map[string]pageBehavior{target: {navErr: cause}})

	_, err := newTestFetcher(renderer).Fetch(context.Background(), target, time.Now())

	var navErr *NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, target, navErr.Target)
	assert.ErrorIs(t, err, cause)
}

func TestFetcher_CanceledBeforeStart(t *testing.T) {
	renderer := newFakeRenderer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(renderer).Fetch(ctx, "https://watches.example.test/x", time.Now())
	assert.Equal(t, models.OutcomeFault, outcomeKind(err))

	opened, _, _ := renderer.stats()
	assert.Zero(t, opened)
}
