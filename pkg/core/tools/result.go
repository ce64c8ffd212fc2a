// Package tools holds the data-gathering steps the forecast pipeline runs
// before synthesis. Every tool reports through a Result and never returns an
// error directly.
package tools

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tool names as they appear in tools_used and data_sources_used.
const (
	NameFinancial   = "financial_data_extractor"
	NameQualitative = "qualitative_analysis"
	NameMarket      = "market_data"
)

// Result is the outcome of one tool call. Exactly one of Payload or Reason is set.
type Result struct {
	Tool     string          `json:"tool"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// OK reports whether the tool succeeded.
func (r Result) OK() bool {
	return r.Payload != nil
}

// Success wraps payload. A payload that cannot be marshalled becomes a failure.
func Success(tool string, payload any) Result {
	data, err := json.Marshal(payload)
	if err != nil {
		return Failure(tool, fmt.Sprintf("failed to encode result: %v", err))
	}
	if string(data) == "null" {
		return Failure(tool, "empty result")
	}
	return Result{Tool: tool, Payload: data}
}

// Failure records why a tool produced nothing.
func Failure(tool, reason string) Result {
	if reason == "" {
		reason = "unknown error"
	}
	return Result{Tool: tool, Reason: reason}
}
