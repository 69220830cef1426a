package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/watch-price-scraper/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func modelPage(id string) string {
	return fmt.Sprintf(`<html><body>
<h1 class="mb-0 font-weight-bolder text-break">%s</h1>
<h2 class="h4 font-weight-bolder">Model %s</h2>
<div class="market-price">$1,000</div>
<table class="spec-table"><tr><td>References</td><td>%s</td></tr></table>
</body></html>`, id, id, id)
}

// pageBehavior scripts what a fake session does for one target.
type pageBehavior struct {
	navErr   error
	readyErr error
	html     string
	delay    time.Duration
	// panicIn names the session call that panics: navigate, ready or content.
	panicIn string
}

type fakeRenderer struct {
	mu       sync.Mutex
	pages    map[string]pageBehavior
	openErr  error
	open     int
	maxOpen  int
	opened   int
	closed   int
	navCalls map[string]int
}

func newFakeRenderer(pages map[string]pageBehavior) *fakeRenderer {
	return &fakeRenderer{pages: pages, navCalls: make(map[string]int)}
}

func (r *fakeRenderer) NewSession() (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openErr != nil {
		return nil, r.openErr
	}
	r.open++
	r.opened++
	if r.open > r.maxOpen {
		r.maxOpen = r.open
	}
	return &fakeSession{renderer: r}, nil
}

func (r *fakeRenderer) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open--
	r.closed++
}

func (r *fakeRenderer) stats() (opened, closed, maxOpen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened, r.closed, r.maxOpen
}

type fakeSession struct {
	renderer *fakeRenderer
	behavior pageBehavior
	closed   bool
}

func (s *fakeSession) Navigate(url string, _ time.Duration) error {
	s.renderer.mu.Lock()
	s.behavior = s.renderer.pages[url]
	s.renderer.navCalls[url]++
	s.renderer.mu.Unlock()

	if s.behavior.delay > 0 {
		time.Sleep(s.behavior.delay)
	}
	s.maybePanic("navigate")
	return s.behavior.navErr
}

func (s *fakeSession) WaitReady(string, time.Duration) error {
	s.maybePanic("ready")
	return s.behavior.readyErr
}

func (s *fakeSession) Content() (string, error) {
	s.maybePanic("content")
	return s.behavior.html, nil
}

func (s *fakeSession) maybePanic(stage string) {
	if s.behavior.panicIn == stage {
		panic("renderer crashed")
	}
}

func (s *fakeSession) Close() error {
	if s.closed {
		return errors.New("session closed twice")
	}
	s.closed = true
	s.renderer.release()
	return nil
}

// scriptedFetcher fails until its per-target success attempt is reached.
type scriptedFetcher struct {
	mu        sync.Mutex
	succeedOn map[string]int
	failWith  error
	calls     map[string]int
}

func newScriptedFetcher(succeedOn map[string]int, failWith error) *scriptedFetcher {
	return &scriptedFetcher{succeedOn: succeedOn, failWith: failWith, calls: make(map[string]int)}
}

func (f *scriptedFetcher) Fetch(_ context.Context, target string, capturedAt time.Time) (*models.Visit, error) {
	f.mu.Lock()
	f.calls[target]++
	call := f.calls[target]
	f.mu.Unlock()

	if want, ok := f.succeedOn[target]; ok && call >= want {
		return &models.Visit{
			Price: models.PriceRecord{ModelID: target, ModelName: target, RetailPrice: "1", MarketPrice: "2", CapturedAt: capturedAt},
			Spec:  models.SpecRecord{ModelID: target, ModelName: target},
		}, nil
	}
	return nil, f.failWith
}

func (f *scriptedFetcher) callCount(target string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[target]
}
