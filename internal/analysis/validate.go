package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateJSONAgainstSchema validates data against schemaMap.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// extractJSON pulls the JSON object out of a model reply that may be wrapped
// in a markdown fence or surrounded by prose.
func extractJSON(content string) []byte {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") {
		start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return []byte(s)
}

// SanitizeResponse makes a near-miss reply fit schemaMap: unknown keys are
// dropped, numeric strings become integers where an integer is expected and
// out-of-range scores are clamped. It returns the names it touched.
func SanitizeResponse(schemaMap map[string]any, doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}
	props, _ := schemaMap["properties"].(map[string]any)
	var touched []string

	for k, v := range m {
		spec, ok := props[k].(map[string]any)
		if !ok {
			delete(m, k)
			touched = append(touched, k)
			continue
		}
		switch spec["type"] {
		case "integer":
			n, ok := toInt(v)
			if !ok {
				delete(m, k)
				touched = append(touched, k)
				continue
			}
			if lo, ok := spec["minimum"].(int); ok && n < lo {
				n = lo
			}
			if hi, ok := spec["maximum"].(int); ok && n > hi {
				n = hi
			}
			if f, isFloat := v.(float64); !isFloat || f != float64(n) {
				touched = append(touched, k)
			}
			m[k] = n
		case "array":
			if s, isString := v.(string); isString {
				m[k] = splitList(s)
				touched = append(touched, k)
			}
		case "string":
			if v == nil {
				delete(m, k)
				touched = append(touched, k)
			} else if _, isString := v.(string); !isString {
				b, _ := json.Marshal(v)
				m[k] = string(b)
				touched = append(touched, k)
			}
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, touched, nil
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(math.Round(t)), true
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "점"))
		if i := strings.Index(s, "/"); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return int(math.Round(f)), true
	default:
		return 0, false
	}
}

func splitList(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
		if line != "" {
			out = append(out, line)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
