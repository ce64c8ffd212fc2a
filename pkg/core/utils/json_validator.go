package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ParseStrategy names the parser that produced an object.
type ParseStrategy string

const (
	StrategyStrict ParseStrategy = "strict"
	StrategyRepair ParseStrategy = "repair"
	StrategyHJSON  ParseStrategy = "hjson"
)

// RepairJSON attempts to fix common JSON errors from LLM outputs.
// Uses github.com/RealAlexandreAI/json-repair for intelligent repair.
// Supported repairs:
// - Missing quotes around keys
// - Single quotes instead of double quotes
// - Unclosed arrays/objects
// - TRUE/FALSE/Null instead of true/false/null
// - Trailing commas
// - Comments in JSON
func RepairJSON(malformedJSON string) (repaired string, err error) {
	// the repair library can panic on pathological input
	defer func() {
		if r := recover(); r != nil {
			repaired, err = "", fmt.Errorf("JSON_REPAIR_FAILED: panic: %v", r)
		}
	}()
	repaired, err = jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %w", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
// Hjson supports:
// - Comments (# // /* */)
// - Unquoted keys
// - Unquoted strings
// - Optional commas
// - Multiline strings
func ParseHJSON(hjsonData string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("HJSON_PARSE_ERROR: panic: %v", r)
		}
	}()

	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %w", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %w", err)
	}
	return string(jsonBytes), nil
}

// SmartParse tries multiple parsing strategies to extract a JSON object.
// Order of attempts:
// 1. Standard JSON parse
// 2. JSON repair
// 3. Hjson parse (most lenient)
//
// The lenient attempts only run when the input starts with '{'; both libraries
// happily turn arbitrary prose into a scalar otherwise.
func SmartParse(input string) (map[string]interface{}, ParseStrategy, error) {
	input = strings.TrimSpace(input)

	if obj, ok := decodeObject(input); ok {
		return obj, StrategyStrict, nil
	}

	if !strings.HasPrefix(input, "{") {
		return nil, "", fmt.Errorf("SMART_PARSE_FAILED: input is not a JSON object")
	}

	if repaired, err := RepairJSON(input); err == nil {
		if obj, ok := decodeObject(repaired); ok {
			return obj, StrategyRepair, nil
		}
	}

	if converted, err := ParseHJSON(input); err == nil {
		if obj, ok := decodeObject(converted); ok {
			return obj, StrategyHJSON, nil
		}
	}

	return nil, "", fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed for input")
}

// StrictParse decodes input as a JSON object without any repair.
func StrictParse(input string) (map[string]interface{}, bool) {
	return decodeObject(strings.TrimSpace(input))
}

func decodeObject(s string) (map[string]interface{}, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
