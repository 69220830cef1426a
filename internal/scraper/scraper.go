package scraper

import (
	"context"
	"time"

	"github.com/maltedev/watch-price-scraper/internal/browser"
	"github.com/maltedev/watch-price-scraper/internal/models"
)

// Renderer opens isolated page sessions on a shared rendering engine.
type Renderer interface {
	NewSession() (Session, error)
}

// Session is one isolated browsing context scoped to a single target.
type Session interface {
	Navigate(url string, timeout time.Duration) error
	WaitReady(selector string, timeout time.Duration) error
	Content() (string, error)
	Close() error
}

// PageFetcher performs exactly one attempt at one target.
type PageFetcher interface {
	Fetch(ctx context.Context, target string, capturedAt time.Time) (*models.Visit, error)
}

// Visitor produces the final outcome for one target, retries included.
type Visitor interface {
	Visit(ctx context.Context, target string, capturedAt time.Time) models.VisitOutcome
}

// BrowserRenderer adapts a launched playwright browser to Renderer.
type BrowserRenderer struct {
	Browser *browser.Browser
}

func (r BrowserRenderer) NewSession() (Session, error) {
	s, err := r.Browser.NewSession()
	if err != nil {
		return nil, err
	}
	return s, nil
}
