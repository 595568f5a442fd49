package stats

import (
	"testing"
	"time"

	"github.com/apitrail/apitrail/internal/models"
)

func capture(method, path string, status int, duration time.Duration) *models.CaptureRecord {
	return &models.CaptureRecord{
		Request: models.RequestCapture{
			Method:         method,
			Path:           path,
			NormalizedPath: path,
		},
		Response: models.ResponseCapture{
			StatusCode: status,
			Duration:   duration,
		},
	}
}

func TestRecordCapture_Aggregation(t *testing.T) {
	c := NewCollector()

	c.RecordCapture(capture("GET", "/users/{id}", 200, 10*time.Millisecond))
	c.RecordCapture(capture("GET", "/users/{id}", 200, 30*time.Millisecond))
	c.RecordCapture(capture("POST", "/users", 201, 20*time.Millisecond))

	endpoints := c.EndpointStats()
	if len(endpoints) != 2 {
		t.Fatalf("Expected 2 endpoints, got %d", len(endpoints))
	}

	// Sorted by request count, GET first
	get := endpoints[0]
	if get.Method != "GET" || get.TotalRequests != 2 {
		t.Errorf("Unexpected top endpoint: %+v", get)
	}
	if get.MinTimeMs != 10 || get.MaxTimeMs != 30 || get.AvgTimeMs != 20 {
		t.Errorf("Unexpected timing aggregates: min=%v max=%v avg=%v", get.MinTimeMs, get.MaxTimeMs, get.AvgTimeMs)
	}
	if get.LastRequestTime.IsZero() {
		t.Error("Expected last request time set")
	}
}

func TestRecordCapture_Errors(t *testing.T) {
	c := NewCollector()

	c.RecordCapture(capture("GET", "/x", 200, time.Millisecond))
	c.RecordCapture(capture("GET", "/x", 500, time.Millisecond))
	c.RecordCapture(capture("GET", "/x", 404, time.Millisecond))

	snap := c.Snapshot()
	if snap.TotalRequests != 3 {
		t.Errorf("Expected 3 requests, got %d", snap.TotalRequests)
	}
	if snap.TotalErrors != 2 {
		t.Errorf("Expected 2 errors, got %d", snap.TotalErrors)
	}
	if len(snap.RecentErrors) != 2 {
		t.Fatalf("Expected 2 recent errors, got %d", len(snap.RecentErrors))
	}
	if snap.RecentErrors[1].StatusCode != 404 {
		t.Errorf("Expected newest error last, got %+v", snap.RecentErrors)
	}
}

func TestRecordCapture_FallsBackToRawPath(t *testing.T) {
	c := NewCollector()

	rec := capture("GET", "", 200, time.Millisecond)
	rec.Request.NormalizedPath = ""
	rec.Request.Path = "/raw/1"
	c.RecordCapture(rec)

	endpoints := c.EndpointStats()
	if len(endpoints) != 1 || endpoints[0].Path != "/raw/1" {
		t.Errorf("Expected raw path fallback, got %+v", endpoints)
	}
}

func TestRecordCapture_NilIgnored(t *testing.T) {
	c := NewCollector()
	c.RecordCapture(nil)

	if snap := c.Snapshot(); snap.TotalRequests != 0 {
		t.Errorf("Expected nothing recorded, got %+v", snap)
	}
}

func TestSnapshot_TopEndpointsCapped(t *testing.T) {
	c := NewCollector()

	for i := 0; i < 15; i++ {
		path := "/endpoint/" + string(rune('a'+i))
		c.RecordCapture(capture("GET", path, 200, time.Millisecond))
	}

	snap := c.Snapshot()
	if snap.Endpoints != 15 {
		t.Errorf("Expected 15 endpoints counted, got %d", snap.Endpoints)
	}
	if len(snap.TopEndpoints) != 10 {
		t.Errorf("Expected top list capped at 10, got %d", len(snap.TopEndpoints))
	}
}

func TestSnapshot_HourlySeries(t *testing.T) {
	c := NewCollector()
	c.RecordCapture(capture("GET", "/x", 200, time.Millisecond))

	snap := c.Snapshot()
	if len(snap.RequestsByHour) != 24 {
		t.Fatalf("Expected 24 hourly slots, got %d", len(snap.RequestsByHour))
	}
	// The newest slot carries the request
	last := snap.RequestsByHour[23]
	if last.Requests != 1 {
		t.Errorf("Expected current hour to carry the request, got %+v", last)
	}
}

func TestReset(t *testing.T) {
	c := NewCollector()
	c.RecordCapture(capture("GET", "/x", 500, time.Millisecond))

	c.Reset()

	snap := c.Snapshot()
	if snap.TotalRequests != 0 || snap.TotalErrors != 0 || len(snap.RecentErrors) != 0 {
		t.Errorf("Expected empty aggregates after reset, got %+v", snap)
	}
}

func TestConsume(t *testing.T) {
	c := NewCollector()
	ch := make(chan *models.CaptureRecord, 2)
	ch <- capture("GET", "/x", 200, time.Millisecond)
	ch <- capture("GET", "/x", 200, time.Millisecond)
	close(ch)

	c.Consume(ch)

	if snap := c.Snapshot(); snap.TotalRequests != 2 {
		t.Errorf("Expected 2 consumed records, got %d", snap.TotalRequests)
	}
}
