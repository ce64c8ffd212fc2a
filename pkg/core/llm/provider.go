package llm

import (
	"context"
	"strings"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats
	AdaptInstructions(rawInstructions string) string
}

// Option keys understood by every provider.
const (
	OptTemperature = "temperature"
	OptModel       = "model"
	OptMaxTokens   = "max_tokens"
)

const defaultMaxTokens = 4096

// temperatureOption reads the sampling temperature from options, falling back to def.
func temperatureOption(options map[string]interface{}, def float64) float64 {
	switch v := options[OptTemperature].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}

func modelOption(options map[string]interface{}, def string) string {
	if val, ok := options[OptModel].(string); ok && val != "" {
		return val
	}
	return def
}

func maxTokensOption(options map[string]interface{}) int {
	if val, ok := options[OptMaxTokens].(int); ok && val > 0 {
		return val
	}
	return defaultMaxTokens
}

// wantsJSON is the heuristic for switching a provider into JSON output mode.
func wantsJSON(prompt, systemPrompt string) bool {
	return strings.Contains(strings.ToLower(systemPrompt), "json") || strings.Contains(strings.ToLower(prompt), "json")
}

// Gateway is the single-call text completion surface used by the tools and the orchestrator.
type Gateway interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
	ProviderName() string
}
