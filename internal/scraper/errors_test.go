package scraper

import (
	"errors"
	"fmt"
	"testing"

	"github.com/maltedev/watch-price-scraper/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestOutcomeKind(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want models.OutcomeKind
	}{
		{"nil", nil, models.OutcomeSuccess},
		{"navigation", &NavigationError{Target: "t", Err: cause}, models.OutcomeNavigationTimeout},
		{"readiness", &ReadinessError{Target: "t", Err: cause}, models.OutcomeReadinessTimeout},
		{"wrapped readiness", fmt.Errorf("attempt 2: %w", &ReadinessError{Err: cause}), models.OutcomeReadinessTimeout},
		{"fault", &FetchFault{Stage: "content", Err: cause}, models.OutcomeFault},
		{"plain error", cause, models.OutcomeFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outcomeKind(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("Timeout 60000ms exceeded")

	assert.Contains(t, (&NavigationError{Target: "https://a", Err: cause}).Error(), "https://a")
	assert.Contains(t, (&ReadinessError{Target: "https://a", Selector: "h1", Err: cause}).Error(), `"h1"`)
	assert.Contains(t, (&FetchFault{Target: "https://a", Stage: "extraction", Err: cause}).Error(), "extraction")
}
