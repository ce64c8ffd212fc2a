// Package prompt provides a centralized prompt library for LLM interactions.
// Built-in prompts are always registered; JSON files loaded at runtime
// replace them by ID, so prompts can be tuned without code changes.
package prompt

import (
	"fmt"
	"strings"
)

// PromptTemplate is one prompt as stored on disk. ID defaults to the file's
// path below prompts/, e.g. "forecast.synthesis".
type PromptTemplate struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Category         string           `json:"category"`
	Description      string           `json:"description"`
	SystemPrompt     string           `json:"system_prompt"`
	UserPromptTmpl   string           `json:"user_prompt_template"`
	ResponseSchemaID string           `json:"response_schema_ref"`
	Variables        []PromptVariable `json:"variables"`
	Version          string           `json:"version"`
}

// PromptVariable declares a template input. Required inputs must be set on
// the execution context or rendering fails.
type PromptVariable struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default"`
}

// ResponseSchema is a JSON Schema document shown to the model.
type ResponseSchema struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	JSONSchema  string `json:"json_schema"`
}

// PromptExecutionContext carries the values a template is rendered with.
type PromptExecutionContext struct {
	Variables map[string]interface{}
}

func NewContext() *PromptExecutionContext {
	return &PromptExecutionContext{
		Variables: make(map[string]interface{}),
	}
}

// Set stores value under key and returns c for chaining.
func (c *PromptExecutionContext) Set(key string, value interface{}) *PromptExecutionContext {
	c.Variables[key] = value
	return c
}

// bind fills declared defaults into a copy of ctx and reports required
// variables that are still missing.
func (pt *PromptTemplate) bind(ctx *PromptExecutionContext) (map[string]interface{}, error) {
	vars := make(map[string]interface{}, len(pt.Variables))
	for _, v := range pt.Variables {
		if v.Default != "" {
			vars[v.Name] = v.Default
		}
	}
	if ctx != nil {
		for k, v := range ctx.Variables {
			vars[k] = v
		}
	}

	var missing []string
	for _, v := range pt.Variables {
		if _, ok := vars[v.Name]; v.Required && !ok {
			missing = append(missing, v.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("prompt %s: missing required variables %s", pt.ID, strings.Join(missing, ", "))
	}
	return vars, nil
}
