package capture

import (
	"testing"
	"time"

	"github.com/apitrail/apitrail/internal/models"
	"github.com/apitrail/apitrail/internal/redact"
)

func TestRecord_BasicCapture(t *testing.T) {
	r := NewRecorder(nil, nil)

	start := time.Now()
	rec, err := r.Record(RequestData{
		Method:  "GET",
		Path:    "/api/users/7",
		Headers: map[string]string{"Accept": "application/json"},
		Start:   start,
	}, ResponseData{
		StatusCode: 200,
		StatusText: "OK",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(`{"id":7,"name":"Ann"}`),
		End:        start.Add(15 * time.Millisecond),
	}, models.CaptureMetadata{})

	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if rec.ID == "" {
		t.Error("Expected generated record ID")
	}
	if rec.Metadata.SchemaVersion != SchemaVersion {
		t.Errorf("Expected schema version %q, got %q", SchemaVersion, rec.Metadata.SchemaVersion)
	}
	if rec.Request.NormalizedPath != "/api/users/{id}" {
		t.Errorf("Expected normalized path stamped, got %q", rec.Request.NormalizedPath)
	}
	if rec.Response.Duration != 15*time.Millisecond {
		t.Errorf("Expected 15ms duration, got %v", rec.Response.Duration)
	}

	body := rec.Response.Body.(map[string]interface{})
	if body["id"] != float64(7) || body["name"] != "Ann" {
		t.Errorf("Unexpected decoded response body: %v", body)
	}
	types := rec.Response.BodyTypes.(map[string]interface{})
	if types["id"] != "integer" || types["name"] != "string" {
		t.Errorf("Unexpected body types: %v", types)
	}
	if rec.Response.HasSensitiveData {
		t.Error("Expected no sensitive data")
	}
}

func TestRecord_Validation(t *testing.T) {
	r := NewRecorder(nil, nil)

	if _, err := r.Record(RequestData{Path: "/x"}, ResponseData{}, models.CaptureMetadata{}); err == nil {
		t.Error("Expected error for missing method")
	}
	if _, err := r.Record(RequestData{Method: "GET"}, ResponseData{}, models.CaptureMetadata{}); err == nil {
		t.Error("Expected error for missing path")
	}
}

func TestRecord_SensitiveLogin(t *testing.T) {
	r := NewRecorder(nil, nil)

	rec, err := r.Record(RequestData{
		Method:      "POST",
		Path:        "/api/login",
		Headers:     map[string]string{"Authorization": "Bearer tok", "Content-Type": "application/json"},
		Body:        []byte(`{"username":"ann","password":"hunter2"}`),
		ContentType: "application/json",
	}, ResponseData{
		StatusCode: 200,
		Body:       []byte(`{"token":"abc123"}`),
	}, models.CaptureMetadata{})

	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if rec.Request.Headers["Authorization"] != redact.Marker {
		t.Errorf("Expected Authorization header redacted, got %q", rec.Request.Headers["Authorization"])
	}

	reqBody := rec.Request.Body.(map[string]interface{})
	if reqBody["password"] != redact.Marker {
		t.Errorf("Expected password sanitized, got %v", reqBody["password"])
	}
	if reqBody["username"] != "ann" {
		t.Errorf("Expected username preserved, got %v", reqBody["username"])
	}
	if !rec.Request.HasSensitiveData {
		t.Error("Expected request sensitive flag")
	}
	actual := rec.Request.ActualBody.(map[string]interface{})
	if actual["password"] != "hunter2" {
		t.Errorf("Expected actual body unredacted, got %v", actual["password"])
	}

	respBody := rec.Response.Body.(map[string]interface{})
	if respBody["token"] != redact.Marker {
		t.Errorf("Expected response token sanitized, got %v", respBody["token"])
	}
	if !rec.Response.HasSensitiveData {
		t.Error("Expected response sensitive flag")
	}
}

func TestRecord_NonJSONBody(t *testing.T) {
	r := NewRecorder(nil, nil)

	rec, err := r.Record(RequestData{
		Method: "POST",
		Path:   "/upload",
		Body:   []byte("plain text payload"),
	}, ResponseData{StatusCode: 204}, models.CaptureMetadata{})

	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if rec.Request.Body != "plain text payload" {
		t.Errorf("Expected non-JSON body kept as string, got %v", rec.Request.Body)
	}
	if rec.Response.Body != nil {
		t.Errorf("Expected empty response body to stay nil, got %v", rec.Response.Body)
	}
}

func TestRecord_NegativeDurationClamped(t *testing.T) {
	r := NewRecorder(nil, nil)

	start := time.Now()
	rec, err := r.Record(RequestData{
		Method: "GET",
		Path:   "/x",
		Start:  start,
	}, ResponseData{
		StatusCode: 200,
		End:        start.Add(-time.Second),
	}, models.CaptureMetadata{})

	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if rec.Response.Duration != 0 {
		t.Errorf("Expected duration clamped to 0, got %v", rec.Response.Duration)
	}
}

func TestRecord_UpdateListsTakesEffect(t *testing.T) {
	r := NewRecorder(nil, nil)

	rec, err := r.Record(RequestData{
		Method: "POST",
		Path:   "/x",
		Body:   []byte(`{"internalId":"a"}`),
	}, ResponseData{StatusCode: 200}, models.CaptureMetadata{})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	body := rec.Request.Body.(map[string]interface{})
	if body["internalId"] != "a" {
		t.Fatalf("Expected internalId unredacted before update, got %v", body["internalId"])
	}

	r.UpdateLists([]string{"internal"}, []string{"x-internal"})

	rec, err = r.Record(RequestData{
		Method:  "POST",
		Path:    "/x",
		Headers: map[string]string{"X-Internal": "secret"},
		Body:    []byte(`{"internalId":"a"}`),
	}, ResponseData{StatusCode: 200}, models.CaptureMetadata{})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	body = rec.Request.Body.(map[string]interface{})
	if body["internalId"] != redact.Marker {
		t.Errorf("Expected internalId redacted after update, got %v", body["internalId"])
	}
	if rec.Request.Headers["X-Internal"] != redact.Marker {
		t.Error("Expected updated header list applied")
	}
}

func TestRecord_CustomSensitiveLists(t *testing.T) {
	r := NewRecorder([]string{"internal"}, []string{"x-internal"})

	rec, err := r.Record(RequestData{
		Method:  "POST",
		Path:    "/x",
		Headers: map[string]string{"X-Internal": "secret", "Authorization": "kept"},
		Body:    []byte(`{"internalId":"a","password":"kept"}`),
	}, ResponseData{StatusCode: 200}, models.CaptureMetadata{})

	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if rec.Request.Headers["X-Internal"] != redact.Marker {
		t.Error("Expected custom header redacted")
	}
	if rec.Request.Headers["Authorization"] != "kept" {
		t.Error("Expected default header list replaced, not extended")
	}

	body := rec.Request.Body.(map[string]interface{})
	if body["internalId"] != redact.Marker {
		t.Error("Expected custom field redacted")
	}
	if body["password"] != "kept" {
		t.Error("Expected default field list replaced, not extended")
	}
}
