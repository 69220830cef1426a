package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/watch-price-scraper/internal/models"
)

// Sink persists a finished run. Implementations must not modify the result.
type Sink interface {
	Name() string
	Write(ctx context.Context, result *models.RunResult) error
}

// Dispatcher hands a run result to every configured sink in order. A failing
// sink is logged and does not stop the remaining ones.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewDispatcher(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:  sinks,
		logger: logger.With("component", "sink"),
	}
}

// Dispatch returns the joined errors of all failed sinks, or nil.
func (d *Dispatcher) Dispatch(ctx context.Context, result *models.RunResult) error {
	if result == nil {
		return errors.New("nil run result")
	}

	var errs []error
	for _, s := range d.sinks {
		start := time.Now()
		if err := s.Write(ctx, result); err != nil {
			d.logger.Error("sink write failed",
				"sink", s.Name(),
				"run_id", result.Summary.ID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		d.logger.Info("sink write completed",
			"sink", s.Name(),
			"run_id", result.Summary.ID,
			"duration", time.Since(start),
		)
	}

	return errors.Join(errs...)
}

// Names lists the configured sinks.
func (d *Dispatcher) Names() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}
