package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/watch-price-scraper/internal/models"
	"github.com/maltedev/watch-price-scraper/internal/parser"
)

type FetchOptions struct {
	NavigationTimeout time.Duration
	ReadinessTimeout  time.Duration
	ReadySelector     string
}

func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		NavigationTimeout: 60 * time.Second,
		ReadinessTimeout:  60 * time.Second,
		ReadySelector:     parser.ReadySelector,
	}
}

// Fetcher loads one model page in its own session and extracts it.
type Fetcher struct {
	renderer Renderer
	parser   parser.Parser
	opts     FetchOptions
	metrics  *Metrics
	logger   *slog.Logger
}

func NewFetcher(renderer Renderer, p parser.Parser, opts FetchOptions, metrics *Metrics, logger *slog.Logger) *Fetcher {
	if opts.ReadySelector == "" {
		opts.ReadySelector = parser.ReadySelector
	}
	return &Fetcher{
		renderer: renderer,
		parser:   p,
		opts:     opts,
		metrics:  metrics,
		logger:   logger.With("component", "fetcher"),
	}
}

// Fetch returns either a well-formed visit or a typed error, never both. The
// session is closed on every path, including a panic at any stage.
func (f *Fetcher) Fetch(ctx context.Context, target string, capturedAt time.Time) (visit *models.Visit, err error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchFault{Target: target, Stage: "start", Err: err}
	}

	session, err := f.renderer.NewSession()
	if err != nil {
		return nil, &FetchFault{Target: target, Stage: "open session", Err: err}
	}
	f.metrics.SessionOpened()
	stage := "navigate"
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			f.logger.Warn("failed to close session", "target", target, "error", closeErr)
		}
		f.metrics.SessionClosed()
	}()
	defer func() {
		if r := recover(); r != nil {
			visit = nil
			err = &FetchFault{Target: target, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	f.logger.Info("scraping started", "target", target)

	if err := session.Navigate(target, f.opts.NavigationTimeout); err != nil {
		f.logger.Error("timeout or load error", "target", target, "error", err)
		return nil, &NavigationError{Target: target, Err: err}
	}

	stage = "ready"
	if err := session.WaitReady(f.opts.ReadySelector, f.opts.ReadinessTimeout); err != nil {
		f.logger.Error("timeout or load error", "target", target, "error", err)
		return nil, &ReadinessError{Target: target, Selector: f.opts.ReadySelector, Err: err}
	}

	stage = "content"
	html, err := session.Content()
	if err != nil {
		return nil, &FetchFault{Target: target, Stage: "content", Err: err}
	}

	stage = "extraction"
	page, err := f.parser.ParseWatchPage(html)
	if err != nil {
		return nil, &FetchFault{Target: target, Stage: "extraction", Err: err}
	}

	result := page.Visit(capturedAt)
	f.logger.Info("scraping completed", "target", target, "model_id", result.Price.ModelID, "specs", len(result.Spec.Specs))

	return &result, nil
}
