package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/maltedev/watch-price-scraper/internal/models"
)

var ErrNoRuns = errors.New("no runs recorded")

// RunLog keeps the history of run summaries in a JSON file.
type RunLog struct {
	mu       sync.RWMutex
	runs     []models.RunSummary
	filename string
}

func NewRunLog(filename string) (*RunLog, error) {
	rl := &RunLog{
		filename: filename,
	}

	if err := rl.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return rl, nil
}

func (rl *RunLog) Name() string {
	return "run_log"
}

// Write records the summary of a finished run.
func (rl *RunLog) Write(_ context.Context, result *models.RunResult) error {
	return rl.Add(result.Summary)
}

func (rl *RunLog) Add(summary models.RunSummary) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if summary.ID == "" {
		return fmt.Errorf("run id is required")
	}

	rl.runs = append(rl.runs, summary)
	return rl.save()
}

// List returns up to limit summaries, newest first. limit <= 0 returns all.
func (rl *RunLog) List(limit int) []models.RunSummary {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	runs := make([]models.RunSummary, len(rl.runs))
	copy(runs, rl.runs)
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs
}

func (rl *RunLog) Latest() (models.RunSummary, error) {
	runs := rl.List(1)
	if len(runs) == 0 {
		return models.RunSummary{}, ErrNoRuns
	}
	return runs[0], nil
}

func (rl *RunLog) Get(id string) (models.RunSummary, bool) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	for _, run := range rl.runs {
		if run.ID == id {
			return run, true
		}
	}
	return models.RunSummary{}, false
}

func (rl *RunLog) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.runs)
}

func (rl *RunLog) save() error {
	data, err := json.MarshalIndent(rl.runs, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := rl.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpFile, rl.filename)
}

func (rl *RunLog) Load() error {
	data, err := os.ReadFile(rl.filename)
	if err != nil {
		return err
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	return json.Unmarshal(data, &rl.runs)
}
