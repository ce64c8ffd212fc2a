package tools

import (
	"context"
	"fmt"
	"strings"

	"forecast_agent/pkg/core/document"
	"forecast_agent/pkg/core/extract"
	"forecast_agent/pkg/core/llm"
	"forecast_agent/pkg/core/logger"
	"forecast_agent/pkg/core/prompt"
	"forecast_agent/pkg/models"
)

// DefaultFinancialChunks is how many leading report chunks are sent for extraction.
const DefaultFinancialChunks = 5

// FinancialExtractor pulls headline metrics out of quarterly reports.
type FinancialExtractor struct {
	gateway   llm.Gateway
	loader    *document.Loader
	maxChunks int
}

// NewFinancialExtractor returns an extractor that reads the first maxChunks
// chunks produced by loader.
func NewFinancialExtractor(gateway llm.Gateway, loader *document.Loader, maxChunks int) *FinancialExtractor {
	if maxChunks <= 0 {
		maxChunks = DefaultFinancialChunks
	}
	return &FinancialExtractor{gateway: gateway, loader: loader, maxChunks: maxChunks}
}

// Extract loads sourcePath (a report file or a directory of them) and returns
// FinancialMetrics as the payload.
func (f *FinancialExtractor) Extract(ctx context.Context, sourcePath string) Result {
	chunks, err := f.loader.LoadPath(sourcePath, ".pdf", ".html", ".htm", ".txt")
	if err != nil {
		logger.Log.WithField("tool", NameFinancial).Warnf("load failed: %v", err)
		return Failure(NameFinancial, "no documents loaded")
	}
	if len(chunks) == 0 {
		return Failure(NameFinancial, "no documents loaded")
	}
	if len(chunks) > f.maxChunks {
		chunks = chunks[:f.maxChunks]
	}

	text := strings.Join(document.Texts(chunks), "\n\n")
	p, err := prompt.Build(prompt.IDFinancialExtraction, prompt.NewContext().Set("ReportText", text))
	if err != nil {
		return Failure(NameFinancial, fmt.Sprintf("failed to build prompt: %v", err))
	}

	raw, err := f.gateway.Complete(ctx, p, 0)
	if err != nil {
		return Failure(NameFinancial, fmt.Sprintf("model call failed: %v", err))
	}

	obj, method, ok := extract.Object(raw)
	if !ok {
		return Failure(NameFinancial, "failed to parse extraction output")
	}
	logger.Log.WithField("tool", NameFinancial).Debugf("extraction parsed via %s", method)

	return Success(NameFinancial, CoerceMetrics(obj))
}

// CoerceMetrics maps a loosely typed model object onto FinancialMetrics.
func CoerceMetrics(obj map[string]any) *models.FinancialMetrics {
	m := &models.FinancialMetrics{
		Quarter:         parseQuarter(obj["quarter"]),
		Year:            parseYear(obj["year"]),
		TotalRevenue:    parseNumber(obj["total_revenue"]),
		NetProfit:       parseNumber(obj["net_profit"]),
		OperatingMargin: parseNumber(obj["operating_margin"]),
		RevenueGrowth:   parseNumber(obj["revenue_growth"]),
		KeyHighlights:   extract.StringSlice(obj["key_highlights"]),
	}
	if seg, ok := obj["segment_performance"].(map[string]any); ok && len(seg) > 0 {
		m.SegmentPerformance = make(map[string]string, len(seg))
		for k, v := range seg {
			m.SegmentPerformance[k] = extract.Stringify(v)
		}
	}
	return m
}
