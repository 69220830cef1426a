package models

import (
	"time"
)

// OutcomeKind tags the result of visiting one target.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeNavigationTimeout
	OutcomeReadinessTimeout
	OutcomeFault
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNavigationTimeout:
		return "navigation_timeout"
	case OutcomeReadinessTimeout:
		return "readiness_timeout"
	case OutcomeFault:
		return "fault"
	default:
		return "unknown"
	}
}

// VisitOutcome is the final result for one target after retries. Failed
// outcomes still carry the sentinel pair so row counts stay aligned with the
// target list.
type VisitOutcome struct {
	Target   string
	Kind     OutcomeKind
	Visit    Visit
	Attempts int
	Err      error
}

// OK reports whether the visit produced real data.
func (o VisitOutcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// RunSummary is the audit record of one run.
type RunSummary struct {
	ID                string    `json:"id"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	DurationSeconds   float64   `json:"duration_seconds"`
	TotalWatches      int       `json:"total_watches"`
	SuccessfulWatches int       `json:"successful_watches"`
}

// Row flattens the summary into the scrape log columns.
func (s RunSummary) Row() map[string]string {
	return map[string]string{
		"id":                 s.ID,
		"start_time":         s.StartTime.Format(TimestampLayout),
		"end_time":           s.EndTime.Format(TimestampLayout),
		"duration_seconds":   formatSeconds(s.DurationSeconds),
		"total_watches":      itoa(s.TotalWatches),
		"successful_watches": itoa(s.SuccessfulWatches),
	}
}

// RunResult is the finished, read-only output of one run handed to sinks.
type RunResult struct {
	Summary    RunSummary
	CapturedAt time.Time
	Prices     []PriceRecord
	Specs      []SpecRecord
	Outcomes   []VisitOutcome
}

// SpecColumns returns the sorted union of all spec row keys in the run.
func (r *RunResult) SpecColumns() []string {
	seen := make(map[string]struct{})
	for _, spec := range r.Specs {
		for k := range spec.Row() {
			seen[k] = struct{}{}
		}
	}
	return sortedKeys(seen)
}
