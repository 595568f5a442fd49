package shape

import (
	"testing"

	"github.com/apitrail/apitrail/internal/redact"
)

func TestClassify_Strings(t *testing.T) {
	tests := []struct {
		value    string
		expected string
	}{
		{"user@example.com", "email"},
		{"https://example.com/path", "url"},
		{"2024-01-15", "date"},
		{"2024-01-15T10:30:00Z", "date"},
		{"550e8400-e29b-41d4-a716-446655440000", "uuid"},
		{`{"key":"value"}`, "json-string"},
		{`[1,2,3]`, "json-string"},
		{"plain text", "string"},
		{"42", "string"},
		{"true", "string"},
	}

	for _, tt := range tests {
		if got := Classify(tt.value); got != tt.expected {
			t.Errorf("Classify(%q) = %q, expected %q", tt.value, got, tt.expected)
		}
	}
}

func TestClassify_Scalars(t *testing.T) {
	if got := Classify(nil); got != "null" {
		t.Errorf("Expected null, got %q", got)
	}
	if got := Classify(true); got != "boolean" {
		t.Errorf("Expected boolean, got %q", got)
	}
	if got := Classify(float64(42)); got != "integer" {
		t.Errorf("Expected integer for whole float, got %q", got)
	}
	if got := Classify(float64(3.14)); got != "number" {
		t.Errorf("Expected number for fractional float, got %q", got)
	}
	if got := Classify(map[string]interface{}{}); got != "object" {
		t.Errorf("Expected object, got %q", got)
	}
	if got := Classify([]interface{}{}); got != "array" {
		t.Errorf("Expected array, got %q", got)
	}
}

func TestAnalyze_TypesTreeMirrorsStructure(t *testing.T) {
	body := map[string]interface{}{
		"id":    float64(7),
		"email": "ann@example.com",
		"tags":  []interface{}{"a", "b"},
	}

	r := Analyze(body, nil)

	types := r.Types.(map[string]interface{})
	if types["id"] != "integer" {
		t.Errorf("Expected id type integer, got %v", types["id"])
	}
	if types["email"] != "email" {
		t.Errorf("Expected email type, got %v", types["email"])
	}
	tags := types["tags"].([]interface{})
	if len(tags) != 2 || tags[0] != "string" {
		t.Errorf("Expected tags type [string string], got %v", tags)
	}
	if r.HasSensitiveData {
		t.Error("Expected no sensitive data")
	}
}

func TestAnalyze_SensitiveField(t *testing.T) {
	body := map[string]interface{}{
		"username": "ann",
		"password": "hunter2",
	}

	r := Analyze(body, []string{"password"})

	if !r.HasSensitiveData {
		t.Fatal("Expected sensitive data flag")
	}
	sanitized := r.Sanitized.(map[string]interface{})
	if sanitized["password"] != redact.Marker {
		t.Errorf("Expected password sanitized, got %v", sanitized["password"])
	}
	if sanitized["username"] != "ann" {
		t.Errorf("Expected username unchanged, got %v", sanitized["username"])
	}

	types := r.Types.(map[string]interface{})
	if types["password"] != "string" {
		t.Errorf("Expected redacted type to report string, got %v", types["password"])
	}

	if len(r.SensitiveFields) != 1 {
		t.Fatalf("Expected 1 sensitive field, got %d", len(r.SensitiveFields))
	}
	f := r.SensitiveFields[0]
	if f.Path != "password" || f.Field != "password" {
		t.Errorf("Unexpected descriptor: %+v", f)
	}
	if f.ActualValue != "hunter2" {
		t.Errorf("Expected actual value preserved, got %v", f.ActualValue)
	}
}

func TestAnalyze_NestedSensitivePath(t *testing.T) {
	body := map[string]interface{}{
		"user": map[string]interface{}{
			"credentials": map[string]interface{}{
				"apiToken": "abc",
			},
		},
	}

	r := Analyze(body, []string{"token", "credential"})

	if len(r.SensitiveFields) != 1 {
		t.Fatalf("Expected 1 sensitive field (no descent past match), got %d", len(r.SensitiveFields))
	}
	if r.SensitiveFields[0].Path != "user.credentials" {
		t.Errorf("Expected dot path user.credentials, got %q", r.SensitiveFields[0].Path)
	}

	sanitized := r.Sanitized.(map[string]interface{})
	user := sanitized["user"].(map[string]interface{})
	if user["credentials"] != redact.Marker {
		t.Errorf("Expected entire credentials subtree replaced, got %v", user["credentials"])
	}
}

func TestAnalyze_ArrayIndexPaths(t *testing.T) {
	body := []interface{}{
		map[string]interface{}{"secret": "s1"},
		map[string]interface{}{"name": "ok"},
	}

	r := Analyze(body, []string{"secret"})

	if len(r.SensitiveFields) != 1 {
		t.Fatalf("Expected 1 sensitive field, got %d", len(r.SensitiveFields))
	}
	if r.SensitiveFields[0].Path != "0.secret" {
		t.Errorf("Expected path 0.secret, got %q", r.SensitiveFields[0].Path)
	}
}

func TestAnalyze_CyclicStructure(t *testing.T) {
	cyclic := map[string]interface{}{"name": "root"}
	cyclic["self"] = cyclic

	// Must terminate without panicking
	r := Analyze(cyclic, nil)

	sanitized := r.Sanitized.(map[string]interface{})
	if sanitized["name"] != "root" {
		t.Errorf("Expected name preserved, got %v", sanitized["name"])
	}
	if sanitized["self"] != nil {
		t.Errorf("Expected back-reference sanitized to nil, got %v", sanitized["self"])
	}

	types := r.Types.(map[string]interface{})
	if types["name"] != "string" {
		t.Errorf("Expected name type string, got %v", types["name"])
	}
	if types["self"] != "null" {
		t.Errorf("Expected back-reference labeled null, got %v", types["self"])
	}
}

func TestAnalyze_SiblingEmptyArrays(t *testing.T) {
	body := map[string]interface{}{
		"a": []interface{}{},
		"b": []interface{}{},
		"c": "keep",
	}

	r := Analyze(body, nil)

	sanitized := r.Sanitized.(map[string]interface{})
	for _, key := range []string{"a", "b"} {
		arr, ok := sanitized[key].([]interface{})
		if !ok || len(arr) != 0 {
			t.Errorf("key %s: expected empty array, got %v", key, sanitized[key])
		}
	}
	if sanitized["c"] != "keep" {
		t.Errorf("Expected c unchanged, got %v", sanitized["c"])
	}
}

func TestAnalyze_ScalarBody(t *testing.T) {
	r := Analyze("hello world", nil)

	if r.Sanitized != "hello world" {
		t.Errorf("Expected scalar passthrough, got %v", r.Sanitized)
	}
	if r.Types != "string" {
		t.Errorf("Expected string type, got %v", r.Types)
	}
}
