package tools

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe  = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?|-?\.\d+`)
	yearRe    = regexp.MustCompile(`(?:19|20)\d{2}`)
	quarterRe = regexp.MustCompile(`(?i)q\s*([1-4])(?:[^0-9]|$)`)
)

// parseNumber reads a float from a JSON number or from text such as
// "₹ 1,234.5 crore", "24.5%" or "(12.0)". Anything else is nil.
func parseNumber(v any) *float64 {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return &x
	case int:
		f := float64(x)
		return &f
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		m := numberRe.FindString(s)
		if m == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			return nil
		}
		// accounting negatives
		if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") && f > 0 {
			f = -f
		}
		return &f
	}
	return nil
}

// parseYear accepts 2024, "2024", "FY2024" or "FY 2024-25".
func parseYear(v any) *int {
	switch x := v.(type) {
	case float64:
		if x < 1900 || x > 2100 || x != math.Trunc(x) {
			return nil
		}
		y := int(x)
		return &y
	case string:
		m := yearRe.FindString(x)
		if m == "" {
			return nil
		}
		y, _ := strconv.Atoi(m)
		return &y
	}
	return nil
}

// parseQuarter normalizes "q3", "Q3 FY25" or 3 to "Q3".
func parseQuarter(v any) *string {
	var q string
	switch x := v.(type) {
	case float64:
		if x >= 1 && x <= 4 && x == math.Trunc(x) {
			q = "Q" + strconv.Itoa(int(x))
		}
	case string:
		if m := quarterRe.FindStringSubmatch(x); m != nil {
			q = "Q" + m[1]
		} else if s := strings.TrimSpace(x); s != "" {
			q = s
		}
	}
	if q == "" {
		return nil
	}
	return &q
}
