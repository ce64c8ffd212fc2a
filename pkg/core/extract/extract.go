// Package extract turns free-text model responses into structured objects.
//
// Candidates are tried in a fixed order: the whole text, each fenced code
// block, then the span from the first '{' to the last '}'. Every candidate is
// tried as strict JSON before any of them is repaired. Forecast never fails;
// when nothing parses it synthesizes a minimal low-confidence output.
package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"forecast_agent/pkg/core/logger"
	"forecast_agent/pkg/core/utils"
	"forecast_agent/pkg/models"
)

// Method records which candidate produced the object.
type Method string

const (
	MethodDirect   Method = "direct"
	MethodFenced   Method = "fenced"
	MethodSpan     Method = "span"
	MethodFallback Method = "fallback"
)

// FallbackPrefix starts the summary of a synthesized minimal output.
const FallbackPrefix = "Unable to parse structured forecast: "

const fallbackRunes = 500

type candidate struct {
	method Method
	text   string
}

func candidates(raw string) []candidate {
	trimmed := strings.TrimSpace(raw)
	out := []candidate{{MethodDirect, trimmed}}

	for _, block := range utils.FencedBlocks(raw) {
		out = append(out, candidate{MethodFenced, strings.TrimSpace(block.Content)})
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		out = append(out, candidate{MethodSpan, raw[start : end+1]})
	}
	return out
}

// Object returns the first JSON object found in raw. ok is false when no
// candidate parses to an object.
func Object(raw string) (map[string]any, Method, bool) {
	cands := candidates(raw)
	for _, c := range cands {
		if obj, ok := utils.StrictParse(c.text); ok {
			logger.Log.WithField("method", c.method).WithField("strategy", utils.StrategyStrict).Debug("extracted object")
			return obj, c.method, true
		}
	}

	// json-repair accepts a leading object followed by prose, so the lenient
	// pass must not shadow a later candidate that is already valid.
	for _, c := range cands {
		if c.text == "" {
			continue
		}
		obj, strategy, err := utils.SmartParse(c.text)
		if err != nil {
			continue
		}
		logger.Log.WithField("method", c.method).WithField("strategy", strategy).Debug("extracted object")
		return obj, c.method, true
	}
	return nil, MethodFallback, false
}

// Forecast extracts a ForecastOutput from raw. It is total: every input yields
// a schema-valid value. When sources is non-nil it replaces data_sources_used.
func Forecast(raw string, sources []string) (models.ForecastOutput, Method) {
	obj, method, ok := Object(raw)
	if !ok {
		return Minimal(raw, sources), MethodFallback
	}

	out := Coerce(obj)
	if sources != nil {
		out.DataSourcesUsed = append([]string{}, sources...)
	}
	return out, method
}

// Minimal builds the fallback output for text that holds no object.
func Minimal(raw string, sources []string) models.ForecastOutput {
	out := models.ForecastOutput{
		Summary:         FallbackPrefix + truncateRunes(raw, fallbackRunes),
		ConfidenceLevel: models.ConfidenceLow,
		DataSourcesUsed: append([]string{}, sources...),
	}
	out.Normalize()
	return out
}

// Coerce maps an arbitrary object onto ForecastOutput.
func Coerce(obj map[string]any) models.ForecastOutput {
	out := models.ForecastOutput{
		Summary:               Stringify(obj["summary"]),
		FinancialTrends:       StringSlice(obj["financial_trends"]),
		ManagementOutlook:     stringMap(obj["management_outlook"]),
		RisksAndOpportunities: StringSlice(obj["risks_and_opportunities"]),
		QuarterlyForecast:     Stringify(obj["quarterly_forecast"]),
		ConfidenceLevel:       models.ConfidenceLevel(strings.ToLower(strings.TrimSpace(Stringify(obj["confidence_level"])))),
		DataSourcesUsed:       StringSlice(obj["data_sources_used"]),
	}
	out.Normalize()
	return out
}

// Stringify renders any decoded JSON value as a string. Strings pass through
// unchanged, null becomes "", everything else is compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// StringSlice coerces v to a list of strings. A lone string becomes a
// one-element list; null and empty strings become an empty list.
func StringSlice(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			out = append(out, Stringify(item))
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return []string{}
		}
		return []string{t}
	}
	return []string{Stringify(v)}
}

func stringMap(v any) map[string]string {
	out := map[string]string{}
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			out[k] = outlookValue(val)
		}
	case string:
		if strings.TrimSpace(t) != "" {
			out["summary"] = t
		}
	}
	return out
}

// outlookValue joins lists of plain strings with "; " so statements stay readable.
func outlookValue(v any) string {
	list, ok := v.([]any)
	if !ok {
		return Stringify(v)
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return Stringify(v)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
