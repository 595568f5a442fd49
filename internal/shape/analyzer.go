// Package shape infers semantic type labels for body values and flags
// sensitive fields during a single recursive walk.
package shape

import (
	"math"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/apitrail/apitrail/internal/models"
	"github.com/apitrail/apitrail/internal/redact"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	uuidPattern  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)
)

// dateLayouts are tried in order when classifying date-like strings
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC1123,
}

// Result is the output of one body analysis
type Result struct {
	Sanitized        interface{}             // Body with sensitive fields replaced by the marker
	Types            interface{}             // Structurally identical tree of semantic type labels
	SensitiveFields  []models.SensitiveField // One descriptor per matched field
	HasSensitiveData bool
}

// Analyze produces a sanitized copy through the redactor, a parallel
// types tree, and descriptors for every field whose key matched a
// sensitive substring. Once a key matches, its subtree is replaced by
// the marker and not descended into.
func Analyze(body interface{}, sensitiveFields []string) *Result {
	lowered := make([]string, len(sensitiveFields))
	for i, s := range sensitiveFields {
		lowered[i] = strings.ToLower(s)
	}

	r := &Result{SensitiveFields: make([]models.SensitiveField, 0)}
	r.Sanitized = redact.Value(body, sensitiveFields)
	r.Types = r.walk(body, "", lowered, make(map[uintptr]bool))
	r.HasSensitiveData = len(r.SensitiveFields) > 0
	return r
}

// walk mirrors the body into type labels. seen carries the containers
// on the current recursion path, matching the redactor's cycle guard:
// a back-reference is labeled "null" since its sanitized counterpart
// is nil. Zero-length containers are not tracked.
func (r *Result) walk(v interface{}, path string, sensitive []string, seen map[uintptr]bool) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if len(val) > 0 {
			ptr := reflect.ValueOf(val).Pointer()
			if seen[ptr] {
				return "null"
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}

		types := make(map[string]interface{}, len(val))
		for key, child := range val {
			childPath := joinPath(path, key)
			if keyMatches(key, sensitive) {
				r.SensitiveFields = append(r.SensitiveFields, models.SensitiveField{
					Path:        childPath,
					Field:       key,
					Type:        Classify(child),
					ActualValue: child,
				})
				// The type entry reflects the marker's type so redacted
				// fields never leak shape information.
				types[key] = Classify(redact.Marker)
				continue
			}
			types[key] = r.walk(child, childPath, sensitive, seen)
		}
		return types

	case []interface{}:
		if len(val) > 0 {
			ptr := reflect.ValueOf(val).Pointer()
			if seen[ptr] {
				return "null"
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}

		types := make([]interface{}, len(val))
		for i, child := range val {
			types[i] = r.walk(child, joinPath(path, strconv.Itoa(i)), sensitive, seen)
		}
		return types

	default:
		return Classify(v)
	}
}

// Classify returns the semantic type label for a leaf value
func Classify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return classifyString(val)
	case float64:
		if val == math.Trunc(val) {
			return "integer"
		}
		return "number"
	case float32:
		if float64(val) == math.Trunc(float64(val)) {
			return "integer"
		}
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	default:
		return "string"
	}
}

// classifyString applies the leaf classification order for strings:
// email, URL, date (longer than 4 characters), UUID, embedded JSON,
// plain string. First match wins.
func classifyString(s string) string {
	if emailPattern.MatchString(s) {
		return "email"
	}
	if isURL(s) {
		return "url"
	}
	if len(s) > 4 && isDate(s) {
		return "date"
	}
	if uuidPattern.MatchString(s) {
		return "uuid"
	}
	if gjson.Valid(s) && looksStructured(s) {
		return "json-string"
	}
	return "string"
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func isDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// looksStructured filters out bare scalars that are technically valid
// JSON ("42", "true") so only embedded objects and arrays are labeled
// json-string.
func looksStructured(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

func keyMatches(key string, lowered []string) bool {
	k := strings.ToLower(key)
	for _, s := range lowered {
		if s != "" && strings.Contains(k, s) {
			return true
		}
	}
	return false
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
