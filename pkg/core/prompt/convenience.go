package prompt

import (
	"forecast_agent/pkg/core/logger"
)

// Prompt IDs used by the forecasting pipeline.
const (
	IDSynthesis           = "forecast.synthesis"
	IDFinancialExtraction = "extraction.financial_metrics"
	IDQualitativeAnalysis = "qualitative.transcript_analysis"
)

// Build renders id from the global registry. A loaded override that fails to
// render falls back to the built-in template of the same ID.
func Build(id string, ctx *PromptExecutionContext) (string, error) {
	out, err := Get().Render(id, ctx)
	if err == nil {
		return out, nil
	}

	logger.Log.Warnf("prompt %s unusable (%v), falling back to built-in", id, err)
	return NewRegistry().Render(id, ctx)
}

// SchemaFor returns the JSON Schema text referenced by prompt id, or fallback
// when the prompt names no schema or none was loaded for it.
func SchemaFor(id, fallback string) string {
	pt, err := Get().GetPrompt(id)
	if err != nil || pt.ResponseSchemaID == "" {
		return fallback
	}
	s, err := Get().GetSchema(pt.ResponseSchemaID)
	if err != nil || s.JSONSchema == "" {
		return fallback
	}
	return s.JSONSchema
}
