package capture

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/apitrail/apitrail/internal/filter"
	"github.com/apitrail/apitrail/internal/models"
	"github.com/apitrail/apitrail/internal/redact"
)

// fakeSink records the captures routed through the middleware
type fakeSink struct {
	records []*models.CaptureRecord
	rules   []models.AssignmentRules
}

func (f *fakeSink) AddEndpointWithRules(rec *models.CaptureRecord, rules models.AssignmentRules) []models.AssignmentResult {
	f.records = append(f.records, rec)
	f.rules = append(f.rules, rules)
	return []models.AssignmentResult{{Collection: "Main", Saved: true}}
}

func newTestEngine(sink Sink, feed *Feed) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	recorder := NewRecorder(nil, nil)
	rules := models.AssignmentRules{DefaultCollection: "Main"}
	engine.Use(Middleware(recorder, sink, rules, feed, nil))

	engine.GET("/api/users/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "name": "Ann"})
	})
	engine.POST("/api/login", func(c *gin.Context) {
		var body map[string]interface{}
		c.ShouldBindJSON(&body)
		c.JSON(http.StatusOK, gin.H{"token": "abc123"})
	})
	return engine
}

func TestMiddleware_CapturesCompletedCall(t *testing.T) {
	sink := &fakeSink{}
	engine := newTestEngine(sink, nil)

	req := httptest.NewRequest("GET", "/api/users/7?verbose=1", nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if len(sink.records) != 1 {
		t.Fatalf("Expected 1 captured record, got %d", len(sink.records))
	}

	rec := sink.records[0]
	if rec.Request.Method != "GET" || rec.Request.Path != "/api/users/7" {
		t.Errorf("Unexpected request capture: %s %s", rec.Request.Method, rec.Request.Path)
	}
	if rec.Request.PathParams["id"] != "7" {
		t.Errorf("Expected path param id=7, got %v", rec.Request.PathParams)
	}
	if rec.Request.Query["verbose"] != "1" {
		t.Errorf("Expected query captured, got %v", rec.Request.Query)
	}
	if rec.Response.StatusCode != 200 {
		t.Errorf("Expected 200 response captured, got %d", rec.Response.StatusCode)
	}
	body := rec.Response.Body.(map[string]interface{})
	if body["name"] != "Ann" {
		t.Errorf("Expected response body captured, got %v", body)
	}

	if sink.rules[0].DefaultCollection != "Main" {
		t.Errorf("Expected rules forwarded, got %+v", sink.rules[0])
	}
}

func TestMiddleware_ResponseUnaffected(t *testing.T) {
	sink := &fakeSink{}
	engine := newTestEngine(sink, nil)

	body := strings.NewReader(`{"username":"ann","password":"hunter2"}`)
	req := httptest.NewRequest("POST", "/api/login", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	// The client still receives the unredacted response
	if !strings.Contains(w.Body.String(), "abc123") {
		t.Errorf("Expected original response body delivered, got %s", w.Body.String())
	}

	rec := sink.records[0]
	reqBody := rec.Request.Body.(map[string]interface{})
	if reqBody["password"] != redact.Marker {
		t.Errorf("Expected captured password sanitized, got %v", reqBody["password"])
	}
	respBody := rec.Response.Body.(map[string]interface{})
	if respBody["token"] != redact.Marker {
		t.Errorf("Expected captured token sanitized, got %v", respBody["token"])
	}
}

func TestMiddleware_RequestBodyStillReadableByHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	recorder := NewRecorder(nil, nil)
	sink := &fakeSink{}
	engine.Use(Middleware(recorder, sink, models.AssignmentRules{DefaultCollection: "Main"}, nil, nil))

	var seen map[string]interface{}
	engine.POST("/echo", func(c *gin.Context) {
		if err := c.ShouldBindJSON(&seen); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, seen)
	})

	req := httptest.NewRequest("POST", "/echo", strings.NewReader(`{"key":"value"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if seen["key"] != "value" {
		t.Errorf("Expected handler to read the restored body, got %v", seen)
	}
}

func TestMiddleware_PublishesToFeed(t *testing.T) {
	sink := &fakeSink{}
	feed := NewFeed(10)
	engine := newTestEngine(sink, feed)

	req := httptest.NewRequest("GET", "/api/users/7", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	recent := feed.Recent(1)
	if len(recent) != 1 {
		t.Fatalf("Expected 1 record in feed, got %d", len(recent))
	}
	if recent[0].Request.Path != "/api/users/7" {
		t.Errorf("Unexpected feed record: %+v", recent[0].Request)
	}
}

func TestMiddleware_IgnoreRules(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	sink := &fakeSink{}
	ignore := filter.NewRuleSet([]filter.Rule{
		{Source: filter.SourcePath, Operator: filter.OpStartsWith, Value: "/health"},
	})
	engine.Use(Middleware(NewRecorder(nil, nil), sink, models.AssignmentRules{DefaultCollection: "Main"}, nil, ignore))
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/api/users", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"users": []string{}})
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if len(sink.records) != 0 {
		t.Errorf("Expected ignored path not captured, got %d records", len(sink.records))
	}

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/users", nil))
	if len(sink.records) != 1 {
		t.Errorf("Expected non-ignored path captured, got %d records", len(sink.records))
	}
}

func TestMiddleware_IgnoreRulesReplacedAtRuntime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	sink := &fakeSink{}
	ignore := filter.NewRuleSet(nil)
	engine.Use(Middleware(NewRecorder(nil, nil), sink, models.AssignmentRules{DefaultCollection: "Main"}, nil, ignore))
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if len(sink.records) != 1 {
		t.Fatalf("Expected capture before rules installed, got %d records", len(sink.records))
	}

	ignore.Replace([]filter.Rule{
		{Source: filter.SourcePath, Operator: filter.OpStartsWith, Value: "/health"},
	})

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if len(sink.records) != 1 {
		t.Errorf("Expected replaced rules to suppress capture, got %d records", len(sink.records))
	}
}

func TestMiddleware_NilSinkAndFeed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Middleware(NewRecorder(nil, nil), nil, models.AssignmentRules{}, nil, nil))
	engine.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/ok", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("Expected passthrough, got %d %s", w.Code, w.Body.String())
	}
}
