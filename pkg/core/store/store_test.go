package store

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast_agent/pkg/models"
)

func run(task string, at time.Time) *models.ForecastRun {
	return &models.ForecastRun{
		TaskDescription:  task,
		RequestTimestamp: at,
		ToolsUsed:        []string{"market_data"},
		Status:           models.StatusSuccess,
		Forecast:         &models.ForecastOutput{},
	}
}

func TestMemoryStoreSaveAndRecent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		id, err := s.Save(ctx, run("task", base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
	}

	recent, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, DefaultLogLimit)
	assert.Equal(t, int64(12), recent[0].ID, "newest first")
	assert.Equal(t, []string{"market_data"}, recent[0].ToolsUsed)

	recent, _ = s.Recent(ctx, 3)
	assert.Len(t, recent, 3)
}

func TestMemoryStoreTruncatesTask(t *testing.T) {
	s := NewMemoryStore()
	long := strings.Repeat("é", 150)
	_, err := s.Save(context.Background(), run(long, time.Now()))
	require.NoError(t, err)

	recent, _ := s.Recent(context.Background(), 1)
	assert.Equal(t, strings.Repeat("é", 100)+"...", recent[0].Task)

	full, err := s.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, long, full.TaskDescription)
}

func TestMemoryStoreMetricsCascade(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, _ := s.Save(ctx, run("t", time.Now()))

	assert.Error(t, s.SaveMetrics(ctx, &models.FinancialMetrics{}, 99))
	require.NoError(t, s.SaveMetrics(ctx, &models.FinancialMetrics{KeyHighlights: []string{"x"}}, id))
	_, ok := s.Metrics(id)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, id))
	_, ok = s.Metrics(id)
	assert.False(t, ok, "metrics go with their run")
	_, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestMemoryStoreSaveCopies(t *testing.T) {
	s := NewMemoryStore()
	r := run("t", time.Now())
	id, _ := s.Save(context.Background(), r)
	r.ToolsUsed[0] = "mutated"

	got, _ := s.Get(context.Background(), id)
	assert.Equal(t, "market_data", got.ToolsUsed[0])
	assert.Zero(t, r.ID, "caller's run is not modified")
}

func TestMemoryStoreConcurrentSaves(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Save(context.Background(), run("t", time.Now()))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	recent, _ := s.Recent(context.Background(), 100)
	assert.Len(t, recent, 50)
}

func TestForecastRepoWithoutPool(t *testing.T) {
	repo := NewForecastRepo()
	ctx := context.Background()

	_, err := repo.Save(ctx, run("t", time.Now()))
	assert.ErrorContains(t, err, "not initialized")
	assert.Error(t, repo.SaveMetrics(ctx, &models.FinancialMetrics{}, 1))
	_, err = repo.Recent(ctx, 5)
	assert.Error(t, err)
	_, err = repo.Get(ctx, 1)
	assert.ErrorContains(t, err, "not initialized")
	assert.Error(t, Migrate(ctx))
}

func TestStoresSatisfyRunStore(t *testing.T) {
	var _ RunStore = NewForecastRepo()
	var _ RunStore = NewMemoryStore()
}

func TestSchemaCascades(t *testing.T) {
	assert.Contains(t, schemaSQL, "REFERENCES forecast_logs(id) ON DELETE CASCADE")
}
