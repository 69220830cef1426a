package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/maltedev/watch-price-scraper/internal/jobs"
	"github.com/maltedev/watch-price-scraper/internal/models"
	"github.com/maltedev/watch-price-scraper/internal/queue"
	"github.com/maltedev/watch-price-scraper/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	err      error
	enqueued []queue.Trigger
	status   jobs.Status
}

func (c *fakeController) Enqueue(trigger queue.Trigger) (*queue.Request, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.enqueued = append(c.enqueued, trigger)
	return &queue.Request{ID: "req-1", Trigger: trigger}, nil
}

func (c *fakeController) Status() jobs.Status {
	return c.status
}

type fakeHistory struct {
	runs      []models.RunSummary
	lastLimit int
}

func (h *fakeHistory) List(limit int) []models.RunSummary {
	h.lastLimit = limit
	if len(h.runs) > limit {
		return h.runs[:limit]
	}
	return h.runs
}

func (h *fakeHistory) Latest() (models.RunSummary, error) {
	if len(h.runs) == 0 {
		return models.RunSummary{}, storage.ErrNoRuns
	}
	return h.runs[0], nil
}

type MockOutboxStats struct {
	mock.Mock
}

func (m *MockOutboxStats) Counts(ctx context.Context) (int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(c RunController, h RunHistory, o OutboxStats) http.Handler {
	return NewRouter(NewHandlers(c, h, o, testLogger()), prometheus.NewRegistry())
}

func do(t *testing.T, handler http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var body map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestTriggerRun(t *testing.T) {
	controller := &fakeController{}
	rec, body := do(t, newTestServer(controller, &fakeHistory{}, nil), http.MethodPost, "/api/v1/runs")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "req-1", body["request_id"])
	assert.Equal(t, []queue.Trigger{queue.TriggerManual}, controller.enqueued)
}

func TestTriggerRun_Errors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{queue.ErrQueueFull, http.StatusTooManyRequests},
		{queue.ErrQueueClosed, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec, body := do(t, newTestServer(&fakeController{err: tt.err}, &fakeHistory{}, nil), http.MethodPost, "/api/v1/runs")
			assert.Equal(t, tt.code, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestListRuns(t *testing.T) {
	start := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	history := &fakeHistory{runs: []models.RunSummary{
		{ID: "b", StartTime: start.Add(24 * time.Hour), TotalWatches: 13, SuccessfulWatches: 13},
		{ID: "a", StartTime: start, TotalWatches: 13, SuccessfulWatches: 11},
	}}
	server := newTestServer(&fakeController{}, history, nil)

	rec, body := do(t, server, http.MethodGet, "/api/v1/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := body["runs"].([]interface{})
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].(map[string]interface{})["id"])
	assert.Equal(t, 1, history.lastLimit)

	_, _ = do(t, server, http.MethodGet, "/api/v1/runs")
	assert.Equal(t, defaultListLimit, history.lastLimit)

	_, _ = do(t, server, http.MethodGet, "/api/v1/runs?limit=100000")
	assert.Equal(t, maxListLimit, history.lastLimit)

	rec, _ = do(t, server, http.MethodGet, "/api/v1/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLatestRun(t *testing.T) {
	rec, _ := do(t, newTestServer(&fakeController{}, &fakeHistory{}, nil), http.MethodGet, "/api/v1/runs/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	history := &fakeHistory{runs: []models.RunSummary{{ID: "latest", SuccessfulWatches: 12}}}
	rec, body := do(t, newTestServer(&fakeController{}, history, nil), http.MethodGet, "/api/v1/runs/latest")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "latest", body["id"])
	assert.Equal(t, float64(12), body["successful_watches"])
}

func TestGetStatus(t *testing.T) {
	controller := &fakeController{status: jobs.Status{Running: true, Queued: 2}}
	rec, body := do(t, newTestServer(controller, &fakeHistory{}, nil), http.MethodGet, "/api/v1/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(2), body["queued"])
}

func TestHealth(t *testing.T) {
	t.Run("without outbox", func(t *testing.T) {
		rec, body := do(t, newTestServer(&fakeController{}, &fakeHistory{}, nil), http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", body["status"])
	})

	tests := []struct {
		name       string
		pending    int64
		deadLetter int64
		err        error
		code       int
		status     string
	}{
		{"healthy outbox", 3, 0, nil, http.StatusOK, "ok"},
		{"backlog", pendingWarnThreshold + 1, 0, nil, http.StatusOK, "warning"},
		{"dead letters", 0, deadLetterThreshold + 1, nil, http.StatusServiceUnavailable, "error"},
		{"database down", 0, 0, errors.New("conn refused"), http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outbox := new(MockOutboxStats)
			outbox.On("Counts", mock.Anything).Return(tt.pending, tt.deadLetter, tt.err)

			rec, body := do(t, newTestServer(&fakeController{}, &fakeHistory{}, outbox), http.MethodGet, "/health")
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.status, body["status"])
			outbox.AssertExpectations(t)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "watch_scraper_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	server := NewRouter(NewHandlers(&fakeController{}, &fakeHistory{}, nil, testLogger()), registry)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "watch_scraper_test_total 1")
}
