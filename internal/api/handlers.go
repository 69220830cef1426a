package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/maltedev/watch-price-scraper/internal/jobs"
	"github.com/maltedev/watch-price-scraper/internal/models"
	"github.com/maltedev/watch-price-scraper/internal/queue"
	"github.com/maltedev/watch-price-scraper/internal/storage"
)

type RunController interface {
	Enqueue(trigger queue.Trigger) (*queue.Request, error)
	Status() jobs.Status
}

type RunHistory interface {
	List(limit int) []models.RunSummary
	Latest() (models.RunSummary, error)
}

// OutboxStats is optional; health reports outbox backlog when set.
type OutboxStats interface {
	Counts(ctx context.Context) (pending, deadLetter int64, err error)
}

const (
	defaultListLimit     = 20
	maxListLimit         = 500
	pendingWarnThreshold = 100
	deadLetterThreshold  = 10
)

type Handlers struct {
	runs    RunController
	history RunHistory
	outbox  OutboxStats
	logger  *slog.Logger
}

func NewHandlers(runs RunController, history RunHistory, outbox OutboxStats, logger *slog.Logger) *Handlers {
	return &Handlers{
		runs:    runs,
		history: history,
		outbox:  outbox,
		logger:  logger.With("component", "api"),
	}
}

type TriggerRunResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// TriggerRun queues a manual run.
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	req, err := h.runs.Enqueue(queue.TriggerManual)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrQueueFull):
			h.respondError(w, http.StatusTooManyRequests, "too many runs queued")
		case errors.Is(err, queue.ErrQueueClosed):
			h.respondError(w, http.StatusServiceUnavailable, "scraper is shutting down")
		default:
			h.logger.Error("failed to queue run", "error", err)
			h.respondError(w, http.StatusInternalServerError, "failed to queue run")
		}
		return
	}

	h.respondJSON(w, http.StatusAccepted, TriggerRunResponse{
		RequestID: req.ID,
		Status:    "queued",
		Message:   "Run queued successfully",
	})
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs": h.history.List(limit),
	})
}

func (h *Handlers) LatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.history.Latest()
	if errors.Is(err, storage.ErrNoRuns) {
		h.respondError(w, http.StatusNotFound, "no runs recorded yet")
		return
	}
	if err != nil {
		h.logger.Error("failed to read run history", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read run history")
		return
	}

	h.respondJSON(w, http.StatusOK, run)
}

func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.runs.Status())
}

// Health reports ok unless the outbox backlog is unhealthy.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
	}
	status := http.StatusOK

	if h.outbox != nil {
		pending, deadLetter, err := h.outbox.Counts(r.Context())
		switch {
		case err != nil:
			h.logger.Error("failed to read outbox counts", "error", err)
			health["status"] = "error"
			health["message"] = "database unavailable"
			status = http.StatusServiceUnavailable
		case deadLetter > deadLetterThreshold:
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		case pending > pendingWarnThreshold:
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if err == nil {
			health["outbox"] = map[string]int64{
				"pending":     pending,
				"dead_letter": deadLetter,
			}
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
