package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"forecast_agent/pkg/models"
)

// MemoryStore keeps runs in process. It is used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	runs    map[int64]*models.ForecastRun
	metrics map[int64]*models.FinancialMetrics
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:    make(map[int64]*models.ForecastRun),
		metrics: make(map[int64]*models.FinancialMetrics),
	}
}

// Save stores a copy of run and returns its id.
func (s *MemoryStore) Save(_ context.Context, run *models.ForecastRun) (int64, error) {
	if run == nil {
		return 0, fmt.Errorf("run is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	cp := *run
	cp.ID = s.nextID
	cp.ToolsUsed = append([]string{}, run.ToolsUsed...)
	s.runs[cp.ID] = &cp
	return cp.ID, nil
}

// SaveMetrics attaches metrics to an existing run.
func (s *MemoryStore) SaveMetrics(_ context.Context, m *models.FinancialMetrics, runID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("forecast run %d not found", runID)
	}
	if m != nil {
		s.metrics[runID] = m
	}
	return nil
}

// Delete removes a run and its metrics.
func (s *MemoryStore) Delete(_ context.Context, runID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("forecast run %d not found", runID)
	}
	delete(s.runs, runID)
	delete(s.metrics, runID)
	return nil
}

// Metrics returns the metrics stored for a run.
func (s *MemoryStore) Metrics(runID int64) (*models.FinancialMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metrics[runID]
	return m, ok
}

// Get returns a stored run by id.
func (s *MemoryStore) Get(_ context.Context, id int64) (*models.ForecastRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrRunNotFound, id)
	}
	cp := *run
	return &cp, nil
}

// Recent returns the newest runs first.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*models.ForecastRun, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].RequestTimestamp.Equal(runs[j].RequestTimestamp) {
			return runs[i].RequestTimestamp.After(runs[j].RequestTimestamp)
		}
		return runs[i].ID > runs[j].ID
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}

	out := make([]models.RunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, models.RunSummary{
			ID:            r.ID,
			Timestamp:     r.RequestTimestamp,
			Task:          models.TruncateTask(r.TaskDescription),
			Status:        r.Status,
			ExecutionTime: r.ExecutionTimeSeconds,
			ToolsUsed:     append([]string{}, r.ToolsUsed...),
		})
	}
	return out, nil
}
