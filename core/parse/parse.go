package parse

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// StringAs parses raw LLM output into the target type T.
//
// Primitive targets (string, bool, integers, floats) are converted
// directly with strconv. Complex targets (structs, maps, slices) are
// JSON-unmarshaled; on failure the content is stripped of markdown fences
// and surrounding prose, repaired with jsonrepair, and retried.
//
// Example:
//
//	decision, err := parse.StringAs[RouterDecision]("```json\n{next: 'researcher'}\n```")
func StringAs[T any](content string) (T, error) {
	var result T

	switch reflect.TypeFor[T]().Kind() {
	case reflect.String:
		reflect.ValueOf(&result).Elem().SetString(strings.TrimSpace(stripFences(content)))
		return result, nil

	case reflect.Bool:
		value, err := strconv.ParseBool(strings.TrimSpace(content))
		if err != nil {
			return result, fmt.Errorf("parse %q as bool: %w", content, err)
		}
		reflect.ValueOf(&result).Elem().SetBool(value)
		return result, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value, err := strconv.ParseInt(strings.TrimSpace(content), 10, 64)
		if err != nil {
			return result, fmt.Errorf("parse %q as int: %w", content, err)
		}
		reflect.ValueOf(&result).Elem().SetInt(value)
		return result, nil

	case reflect.Float32, reflect.Float64:
		value, err := strconv.ParseFloat(strings.TrimSpace(content), 64)
		if err != nil {
			return result, fmt.Errorf("parse %q as float: %w", content, err)
		}
		reflect.ValueOf(&result).Elem().SetFloat(value)
		return result, nil

	default:
		candidate := extractCandidate(content)
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			return result, nil
		}

		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return result, fmt.Errorf("parse content as %T: repair failed: %w", result, repairErr)
		}
		if err := json.Unmarshal([]byte(repaired), &result); err != nil {
			return result, fmt.Errorf("parse content as %T: %w", result, err)
		}
		return result, nil
	}
}

// stripFences removes a single wrapping markdown code fence, with or
// without a language tag.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		// Drop the language tag line (e.g. ```json).
		if !strings.ContainsAny(trimmed[:newline], "{[\"") {
			trimmed = trimmed[newline+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// extractCandidate isolates the most plausible JSON payload from content
// that may surround it with fences or narrative text.
func extractCandidate(content string) string {
	candidate := stripFences(content)
	if len(candidate) > 0 && (candidate[0] == '{' || candidate[0] == '[') {
		return candidate
	}

	// Fall back to the outermost brace pair inside the text.
	start := strings.IndexAny(candidate, "{[")
	if start < 0 {
		return candidate
	}
	var end int
	if candidate[start] == '{' {
		end = strings.LastIndexByte(candidate, '}')
	} else {
		end = strings.LastIndexByte(candidate, ']')
	}
	if end <= start {
		return candidate
	}
	return candidate[start : end+1]
}
