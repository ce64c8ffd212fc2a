package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"forecast_agent/pkg/models"
)

// DefaultLogLimit is the number of runs Recent returns when limit is not positive.
const DefaultLogLimit = 10

// ErrRunNotFound is returned by Get for an unknown run id.
var ErrRunNotFound = errors.New("forecast run not found")

// RunStore is what the HTTP layer needs from persistence.
type RunStore interface {
	Save(ctx context.Context, run *models.ForecastRun) (int64, error)
	SaveMetrics(ctx context.Context, metrics *models.FinancialMetrics, runID int64) error
	Recent(ctx context.Context, limit int) ([]models.RunSummary, error)
	Get(ctx context.Context, id int64) (*models.ForecastRun, error)
}

// ForecastRepo stores runs in Postgres.
type ForecastRepo struct{}

// NewForecastRepo creates a new repository instance.
func NewForecastRepo() *ForecastRepo {
	return &ForecastRepo{}
}

// Save inserts run and returns its id.
func (r *ForecastRepo) Save(ctx context.Context, run *models.ForecastRun) (int64, error) {
	pool := GetPool()
	if pool == nil {
		return 0, fmt.Errorf("database pool not initialized")
	}

	tools, err := json.Marshal(run.ToolsUsed)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal tools: %w", err)
	}
	forecast, err := json.Marshal(run.Forecast)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal forecast: %w", err)
	}

	query := `
		INSERT INTO forecast_logs (run_id, request_timestamp, task_description, tools_used,
			execution_time_seconds, forecast_output, raw_output, llm_provider, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	var id int64
	err = pool.QueryRow(ctx, query,
		run.RunID, run.RequestTimestamp, run.TaskDescription, tools,
		run.ExecutionTimeSeconds, forecast, nullable(run.RawOutput), run.LLMProvider,
		string(run.Status), nullable(run.ErrorMessage),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save forecast run: %w", err)
	}
	return id, nil
}

// SaveMetrics inserts the metrics extracted during run runID.
func (r *ForecastRepo) SaveMetrics(ctx context.Context, m *models.FinancialMetrics, runID int64) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}
	if m == nil {
		return nil
	}

	highlights, err := json.Marshal(m.KeyHighlights)
	if err != nil {
		return fmt.Errorf("failed to marshal highlights: %w", err)
	}
	segments, err := json.Marshal(m.SegmentPerformance)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}

	query := `
		INSERT INTO financial_metrics (forecast_log_id, quarter, year, total_revenue, net_profit,
			operating_margin, revenue_growth, key_highlights, segment_performance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = pool.Exec(ctx, query, runID, m.Quarter, m.Year, m.TotalRevenue, m.NetProfit,
		m.OperatingMargin, m.RevenueGrowth, highlights, segments)
	if err != nil {
		return fmt.Errorf("failed to save financial metrics: %w", err)
	}
	return nil
}

// Recent returns the newest runs first.
func (r *ForecastRepo) Recent(ctx context.Context, limit int) ([]models.RunSummary, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	if limit <= 0 {
		limit = DefaultLogLimit
	}

	query := `
		SELECT id, request_timestamp, task_description, status, execution_time_seconds, tools_used
		FROM forecast_logs
		ORDER BY request_timestamp DESC, id DESC
		LIMIT $1`

	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	out := []models.RunSummary{}
	for rows.Next() {
		var (
			s     models.RunSummary
			task  string
			tools []byte
		)
		if err := rows.Scan(&s.ID, &s.Timestamp, &task, &s.Status, &s.ExecutionTime, &tools); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.Task = models.TruncateTask(task)
		s.ToolsUsed = []string{}
		if len(tools) > 0 {
			if err := json.Unmarshal(tools, &s.ToolsUsed); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tools for run %d: %w", s.ID, err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get loads one full run by id.
func (r *ForecastRepo) Get(ctx context.Context, id int64) (*models.ForecastRun, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	query := `
		SELECT id, run_id, request_timestamp, task_description, tools_used, execution_time_seconds,
			forecast_output, COALESCE(llm_provider, ''), status, COALESCE(error_message, '')
		FROM forecast_logs WHERE id = $1`

	var (
		run      models.ForecastRun
		tools    []byte
		forecast []byte
	)
	err := pool.QueryRow(ctx, query, id).Scan(&run.ID, &run.RunID, &run.RequestTimestamp,
		&run.TaskDescription, &tools, &run.ExecutionTimeSeconds, &forecast, &run.LLMProvider,
		&run.Status, &run.ErrorMessage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to load forecast run: %w", err)
	}
	if err := json.Unmarshal(tools, &run.ToolsUsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tools: %w", err)
	}
	run.Forecast = &models.ForecastOutput{}
	if err := json.Unmarshal(forecast, run.Forecast); err != nil {
		return nil, fmt.Errorf("failed to unmarshal forecast: %w", err)
	}
	return &run, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
