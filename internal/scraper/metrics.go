package scraper

import (
	"time"

	"github.com/maltedev/watch-price-scraper/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry       *prometheus.Registry
	AttemptsTotal  *prometheus.CounterVec
	VisitsTotal    *prometheus.CounterVec
	RetriesTotal   prometheus.Counter
	VisitDuration  prometheus.Histogram
	ActiveSessions prometheus.Gauge
	RunsTotal      prometheus.Counter
	RunDuration    prometheus.Histogram
	RunSuccess     prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_scraper_attempts_total",
			Help: "Fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)
	visits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_scraper_visits_total",
			Help: "Final per-target visit outcomes after retries.",
		},
		[]string{"outcome"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watch_scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	visitDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watch_scraper_fetch_duration_seconds",
			Help:    "Duration of a single fetch attempt including navigation and readiness wait.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "watch_scraper_active_sessions",
			Help: "Browser sessions currently open.",
		},
	)
	runs := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watch_scraper_runs_total",
			Help: "Completed scraping runs.",
		},
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watch_scraper_run_duration_seconds",
			Help:    "Wall-clock duration of a full run.",
			Buckets: prometheus.ExponentialBuckets(15, 2, 8),
		},
	)
	runSuccess := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "watch_scraper_last_run_success_ratio",
			Help: "Share of targets scraped successfully in the last run.",
		},
	)

	registry.MustRegister(attempts, visits, retries, visitDuration, activeSessions, runs, runDuration, runSuccess)

	return &Metrics{
		Registry:       registry,
		AttemptsTotal:  attempts,
		VisitsTotal:    visits,
		RetriesTotal:   retries,
		VisitDuration:  visitDuration,
		ActiveSessions: activeSessions,
		RunsTotal:      runs,
		RunDuration:    runDuration,
		RunSuccess:     runSuccess,
	}
}

func (m *Metrics) ObserveAttempt(kind models.OutcomeKind, d time.Duration) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(kind.String()).Inc()
	m.VisitDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveVisit(kind models.OutcomeKind) {
	if m == nil {
		return
	}
	m.VisitsTotal.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) ObserveRun(summary models.RunSummary) {
	if m == nil {
		return
	}
	m.RunsTotal.Inc()
	m.RunDuration.Observe(summary.DurationSeconds)
	if summary.TotalWatches > 0 {
		m.RunSuccess.Set(float64(summary.SuccessfulWatches) / float64(summary.TotalWatches))
	}
}
