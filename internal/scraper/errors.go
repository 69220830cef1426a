package scraper

import (
	"errors"
	"fmt"

	"github.com/maltedev/watch-price-scraper/internal/models"
)

// NavigationError indicates the page could not be loaded in time.
type NavigationError struct {
	Target string
	Err    error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation failed for %s: %v", e.Target, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// ReadinessError indicates the content-ready element never appeared.
type ReadinessError struct {
	Target   string
	Selector string
	Err      error
}

func (e *ReadinessError) Error() string {
	return fmt.Sprintf("readiness wait for %q failed on %s: %v", e.Selector, e.Target, e.Err)
}

func (e *ReadinessError) Unwrap() error {
	return e.Err
}

// FetchFault covers every other failure during a visit.
type FetchFault struct {
	Target string
	Stage  string
	Err    error
}

func (e *FetchFault) Error() string {
	return fmt.Sprintf("fetch fault for %s during %s: %v", e.Target, e.Stage, e.Err)
}

func (e *FetchFault) Unwrap() error {
	return e.Err
}

// outcomeKind maps a fetch error onto the visit outcome tag.
func outcomeKind(err error) models.OutcomeKind {
	if err == nil {
		return models.OutcomeSuccess
	}
	var nav *NavigationError
	if errors.As(err, &nav) {
		return models.OutcomeNavigationTimeout
	}
	var ready *ReadinessError
	if errors.As(err, &ready) {
		return models.OutcomeReadinessTimeout
	}
	return models.OutcomeFault
}

var errEmptyVisit = errors.New("fetcher returned no visit and no error")
