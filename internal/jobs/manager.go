package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/watch-price-scraper/internal/models"
	"github.com/maltedev/watch-price-scraper/internal/queue"
)

type SessionRunner interface {
	RunSession(ctx context.Context, targets []string) *models.RunResult
}

type Dispatcher interface {
	Dispatch(ctx context.Context, result *models.RunResult) error
}

// Status describes what the worker is doing right now.
type Status struct {
	Running   bool               `json:"running"`
	Current   *queue.Request     `json:"current,omitempty"`
	Queued    int                `json:"queued"`
	LastRun   *models.RunSummary `json:"last_run,omitempty"`
	LastError string             `json:"last_error,omitempty"`
}

// Manager serializes scraping runs: scheduled and manual requests go through
// one queue and a single worker, so only one run drives the browser at a time.
type Manager struct {
	runner     SessionRunner
	dispatcher Dispatcher
	queue      queue.Queue
	targets    []string
	logger     *slog.Logger

	mu        sync.Mutex
	current   *queue.Request
	lastRun   *models.RunSummary
	lastError string
}

func NewManager(runner SessionRunner, dispatcher Dispatcher, q queue.Queue, targets []string, logger *slog.Logger) *Manager {
	return &Manager{
		runner:     runner,
		dispatcher: dispatcher,
		queue:      q,
		targets:    targets,
		logger:     logger.With("component", "job_manager"),
	}
}

// Enqueue asks for a run. Scheduled requests coalesce while one is waiting.
func (m *Manager) Enqueue(trigger queue.Trigger) (*queue.Request, error) {
	req := queue.NewRequest(trigger)
	if err := m.queue.Push(req); err != nil {
		return nil, err
	}
	m.logger.Info("run requested", "request_id", req.ID, "trigger", req.Trigger)
	return req, nil
}

// RunNow performs one run synchronously and hands it to the sinks. Sink
// errors are returned together with the result.
func (m *Manager) RunNow(ctx context.Context) (*models.RunResult, error) {
	result := m.runner.RunSession(ctx, m.targets)

	// A finished run is persisted even when shutdown has begun.
	err := m.dispatcher.Dispatch(context.WithoutCancel(ctx), result)

	m.mu.Lock()
	summary := result.Summary
	m.lastRun = &summary
	m.lastError = ""
	if err != nil {
		m.lastError = err.Error()
	}
	m.mu.Unlock()

	if err != nil {
		return result, fmt.Errorf("failed to persist run %s: %w", result.Summary.ID, err)
	}
	return result, nil
}

// StartScheduler enqueues a scheduled run every interval until ctx is done.
func (m *Manager) StartScheduler(ctx context.Context, interval time.Duration, runOnStart bool) {
	m.logger.Info("scheduler started", "interval", interval, "run_on_start", runOnStart)

	if runOnStart {
		m.enqueueScheduled()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			m.enqueueScheduled()
		}
	}
}

func (m *Manager) enqueueScheduled() {
	if _, err := m.Enqueue(queue.TriggerScheduled); err != nil {
		if errors.Is(err, queue.ErrAlreadyQueued) {
			m.logger.Warn("previous scheduled run still waiting, skipping tick")
			return
		}
		m.logger.Error("failed to enqueue scheduled run", "error", err)
	}
}

// StartWorker processes run requests one at a time until ctx is done or the
// queue is closed.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	for {
		req, err := m.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, queue.ErrQueueClosed) {
				m.logger.Error("failed to take next run request", "error", err)
			}
			m.logger.Info("job worker stopping")
			return
		}

		m.process(ctx, req)
	}
}

func (m *Manager) process(ctx context.Context, req *queue.Request) {
	m.mu.Lock()
	m.current = req
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.current = nil
		m.mu.Unlock()
	}()

	m.logger.Info("processing run request",
		"request_id", req.ID,
		"trigger", req.Trigger,
		"waited", time.Since(req.CreatedAt))

	result, err := m.RunNow(ctx)
	if err != nil {
		m.logger.Error("run completed with sink errors", "request_id", req.ID, "error", err)
		return
	}

	m.logger.Info("run request completed",
		"request_id", req.ID,
		"run_id", result.Summary.ID,
		"successful", result.Summary.SuccessfulWatches,
		"total", result.Summary.TotalWatches)
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		Running:   m.current != nil,
		Current:   m.current,
		Queued:    m.queue.Size(),
		LastRun:   m.lastRun,
		LastError: m.lastError,
	}
}
