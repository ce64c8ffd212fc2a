package models

import (
	"time"
)

// ConfidenceLevel is the model's self-reported certainty in a forecast.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Valid reports whether c is one of the three allowed levels.
func (c ConfidenceLevel) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// RunStatus describes how degraded a forecast run was.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusPartial RunStatus = "partial"
	StatusError   RunStatus = "error"
)

// ForecastOutput is the canonical synthesized forecast.
// Every field is populated after extraction; slices and maps are never nil.
type ForecastOutput struct {
	Summary               string            `json:"summary"`
	FinancialTrends       []string          `json:"financial_trends"`
	ManagementOutlook     map[string]string `json:"management_outlook"`
	RisksAndOpportunities []string          `json:"risks_and_opportunities"`
	QuarterlyForecast     string            `json:"quarterly_forecast"`
	ConfidenceLevel       ConfidenceLevel   `json:"confidence_level"`
	DataSourcesUsed       []string          `json:"data_sources_used"`
}

// Normalize replaces nil collections with empty ones and coerces an unknown
// confidence level to low.
func (f *ForecastOutput) Normalize() {
	if f.FinancialTrends == nil {
		f.FinancialTrends = []string{}
	}
	if f.ManagementOutlook == nil {
		f.ManagementOutlook = map[string]string{}
	}
	if f.RisksAndOpportunities == nil {
		f.RisksAndOpportunities = []string{}
	}
	if f.DataSourcesUsed == nil {
		f.DataSourcesUsed = []string{}
	}
	if !f.ConfidenceLevel.Valid() {
		f.ConfidenceLevel = ConfidenceLow
	}
}

// FinancialMetrics holds the numbers pulled out of a quarterly report.
// Pointer fields are nil when the report did not state the value.
type FinancialMetrics struct {
	Quarter            *string           `json:"quarter"`
	Year               *int              `json:"year"`
	TotalRevenue       *float64          `json:"total_revenue"`    // crores
	NetProfit          *float64          `json:"net_profit"`       // crores
	OperatingMargin    *float64          `json:"operating_margin"` // percent
	RevenueGrowth      *float64          `json:"revenue_growth"`   // percent
	KeyHighlights      []string          `json:"key_highlights"`
	SegmentPerformance map[string]string `json:"segment_performance,omitempty"`
}

// ForecastRun is the persisted record of one orchestrator invocation.
type ForecastRun struct {
	ID                   int64           `json:"id"`
	RunID                string          `json:"run_id"`
	RequestTimestamp     time.Time       `json:"request_timestamp"`
	TaskDescription      string          `json:"task_description"`
	ToolsUsed            []string        `json:"tools_used"`
	ExecutionTimeSeconds float64         `json:"execution_time_seconds"`
	Forecast             *ForecastOutput `json:"forecast_output"`
	LLMProvider          string          `json:"llm_provider"`
	Status               RunStatus       `json:"status"`
	ErrorMessage         string          `json:"error_message,omitempty"`
	RawOutput            string          `json:"-"`

	// Metrics is the financial extraction result for this run, nil if extraction failed.
	Metrics *FinancialMetrics `json:"-"`
}

// ForecastRequest is the inbound payload of the forecast endpoint.
type ForecastRequest struct {
	Task string `json:"task" validate:"required,min=3,max=4000"`
}

// ForecastResponse is the outbound payload of the forecast endpoint.
type ForecastResponse struct {
	Status               RunStatus      `json:"status"`
	Timestamp            time.Time      `json:"timestamp"`
	ExecutionTimeSeconds float64        `json:"execution_time_seconds"`
	ToolsUsed            []string       `json:"tools_used"`
	Forecast             ForecastOutput `json:"forecast"`
	LogID                int64          `json:"log_id"`
}

// RunSummary is the abbreviated view returned by the logs endpoint.
type RunSummary struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Task          string    `json:"task"`
	Status        RunStatus `json:"status"`
	ExecutionTime float64   `json:"execution_time"`
	ToolsUsed     []string  `json:"tools_used"`
}

// TaskPreviewLen is how many runes of a task the logs view shows.
const TaskPreviewLen = 100

// TruncateTask shortens a task for list views, marking the cut with "...".
func TruncateTask(task string) string {
	r := []rune(task)
	if len(r) <= TaskPreviewLen {
		return task
	}
	return string(r[:TaskPreviewLen]) + "..."
}
