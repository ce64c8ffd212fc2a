// Package store persists forecast runs and their extracted metrics.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool *pgxpool.Pool
	once sync.Once
)

// InitDB initializes the connection pool. Only the first call has any effect.
func InitDB(ctx context.Context, dbURL string) error {
	var err error
	once.Do(func() {
		if dbURL == "" {
			err = fmt.Errorf("database url not set")
			return
		}

		config, parseErr := pgxpool.ParseConfig(dbURL)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			err = fmt.Errorf("failed to create pool: %w", err)
			return
		}
		if pingErr := pool.Ping(ctx); pingErr != nil {
			pool.Close()
			pool = nil
			err = fmt.Errorf("failed to reach database: %w", pingErr)
		}
	})
	return err
}

// GetPool returns the database connection pool
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the database connection pool
func Close() {
	if pool != nil {
		pool.Close()
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS forecast_logs (
	id                     BIGSERIAL PRIMARY KEY,
	run_id                 TEXT NOT NULL,
	request_timestamp      TIMESTAMPTZ NOT NULL,
	task_description       TEXT NOT NULL,
	tools_used             JSONB NOT NULL DEFAULT '[]',
	execution_time_seconds DOUBLE PRECISION NOT NULL,
	forecast_output        JSONB NOT NULL,
	raw_output             TEXT,
	llm_provider           TEXT,
	status                 TEXT NOT NULL,
	error_message          TEXT
);

CREATE INDEX IF NOT EXISTS forecast_logs_request_timestamp_idx
	ON forecast_logs (request_timestamp DESC);

CREATE TABLE IF NOT EXISTS financial_metrics (
	id                  BIGSERIAL PRIMARY KEY,
	forecast_log_id     BIGINT NOT NULL REFERENCES forecast_logs(id) ON DELETE CASCADE,
	quarter             TEXT,
	year                INTEGER,
	total_revenue       DOUBLE PRECISION,
	net_profit          DOUBLE PRECISION,
	operating_margin    DOUBLE PRECISION,
	revenue_growth      DOUBLE PRECISION,
	key_highlights      JSONB,
	segment_performance JSONB,
	extracted_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context) error {
	p := GetPool()
	if p == nil {
		return fmt.Errorf("database pool not initialized")
	}
	if _, err := p.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
