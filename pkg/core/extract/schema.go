package extract

import (
	"encoding/json"
	"fmt"
	"sync"

	"forecast_agent/pkg/models"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ForecastSchemaJSON is the JSON Schema of models.ForecastOutput. It is also
// embedded verbatim in the synthesis prompt.
const ForecastSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": [
    "summary",
    "financial_trends",
    "management_outlook",
    "risks_and_opportunities",
    "quarterly_forecast",
    "confidence_level",
    "data_sources_used"
  ],
  "properties": {
    "summary": {"type": "string"},
    "financial_trends": {"type": "array", "items": {"type": "string"}},
    "management_outlook": {"type": "object", "additionalProperties": {"type": "string"}},
    "risks_and_opportunities": {"type": "array", "items": {"type": "string"}},
    "quarterly_forecast": {"type": "string"},
    "confidence_level": {"type": "string", "enum": ["high", "medium", "low"]},
    "data_sources_used": {"type": "array", "items": {"type": "string"}}
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func forecastSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var schemaDoc any
		if err := json.Unmarshal([]byte(ForecastSchemaJSON), &schemaDoc); err != nil {
			schemaErr = fmt.Errorf("unmarshal schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("forecast_output.json", schemaDoc); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = c.Compile("forecast_output.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Validate checks out against the ForecastOutput schema.
func Validate(out models.ForecastOutput) error {
	sch, err := forecastSchema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal forecast: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal forecast: %w", err)
	}
	return sch.Validate(doc)
}
