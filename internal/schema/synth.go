// Package schema converts arbitrary JSON-compatible values into draft
// schemas suitable for embedding in a specification document.
package schema

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/apitrail/apitrail/internal/models"
)

// FromValue returns a best-effort schema describing the shape of v.
// It is total: any input yields a schema, never an error.
func FromValue(v interface{}) *models.Schema {
	switch val := v.(type) {
	case nil:
		return &models.Schema{Type: "null"}

	case bool:
		return &models.Schema{Type: "boolean"}

	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return &models.Schema{Type: "number", Example: val}

	case string:
		return fromString(val)

	case []interface{}:
		if len(val) == 0 {
			// Placeholder item type, empty arrays carry no shape
			return &models.Schema{Type: "array", Items: &models.Schema{Type: "string"}}
		}
		// Schema derives from the first element only, heterogeneous
		// arrays are not merged across elements
		return &models.Schema{Type: "array", Items: FromValue(val[0])}

	case map[string]interface{}:
		return fromObject(val)

	default:
		return &models.Schema{Type: "string"}
	}
}

// fromString handles the embedded-JSON special case: a string whose
// first character is '[' or '{' is parsed and recursed into, so a
// JSON-encoded body yields a structured schema rather than an opaque
// string.
func fromString(s string) *models.Schema {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		if gjson.Valid(trimmed) {
			var parsed interface{}
			if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
				return FromValue(parsed)
			}
		}
	}
	return &models.Schema{Type: "string", Example: s}
}

func fromObject(obj map[string]interface{}) *models.Schema {
	s := &models.Schema{
		Type:       "object",
		Properties: make(map[string]*models.Schema, len(obj)),
		Example:    obj,
	}

	required := make([]string, 0, len(obj))
	for key, child := range obj {
		s.Properties[key] = FromValue(child)
		if child != nil {
			required = append(required, key)
		}
	}

	// Omitted entirely when no key qualifies
	if len(required) > 0 {
		sort.Strings(required)
		s.Required = required
	}

	return s
}
