package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/apitrail/apitrail/internal/capture"
	"github.com/apitrail/apitrail/internal/models"
)

type captureSink struct {
	records []*models.CaptureRecord
}

func (s *captureSink) AddEndpointWithRules(rec *models.CaptureRecord, rules models.AssignmentRules) []models.AssignmentResult {
	s.records = append(s.records, rec)
	return []models.AssignmentResult{{Collection: "Main", Saved: true}}
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/7", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":7,"name":"Ann"}`))
	})
	mux.HandleFunc("/api/echo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"received":true}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// proxyRequest gives the request a cancellable context so ReverseProxy
// uses it instead of falling back to http.CloseNotifier, which
// httptest.ResponseRecorder does not implement.
func proxyRequest(t *testing.T, method, target string, body *strings.Reader) *http.Request {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	ctx, cancel := context.WithCancel(req.Context())
	t.Cleanup(cancel)
	return req.WithContext(ctx)
}

func newProxyEngine(t *testing.T, upstream string, sink capture.Sink) *gin.Engine {
	t.Helper()
	engine, err := NewEngine(upstream)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	gin.SetMode(gin.TestMode)
	g := gin.New()
	recorder := capture.NewRecorder(nil, nil)
	rules := models.AssignmentRules{DefaultCollection: "Main"}
	g.NoRoute(capture.Middleware(recorder, sink, rules, nil, nil), engine.Handler())
	return g
}

func TestNewEngine_Validation(t *testing.T) {
	if _, err := NewEngine("://bad"); err == nil {
		t.Error("Expected error for unparseable URL")
	}
	if _, err := NewEngine("no-scheme.example.com"); err == nil {
		t.Error("Expected error for URL without scheme")
	}

	engine, err := NewEngine("http://localhost:3000")
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if engine.Upstream() != "http://localhost:3000" {
		t.Errorf("Unexpected upstream: %q", engine.Upstream())
	}
}

func TestProxy_ForwardsAndCaptures(t *testing.T) {
	upstream := newUpstream(t)
	sink := &captureSink{}
	g := newProxyEngine(t, upstream.URL, sink)

	w := httptest.NewRecorder()
	g.ServeHTTP(w, proxyRequest(t, "GET", "/api/users/7", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from upstream, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"name":"Ann"`) {
		t.Errorf("Expected upstream body delivered, got %s", w.Body.String())
	}

	if len(sink.records) != 1 {
		t.Fatalf("Expected 1 capture, got %d", len(sink.records))
	}
	rec := sink.records[0]
	if rec.Request.NormalizedPath != "/api/users/{id}" {
		t.Errorf("Expected normalized path, got %q", rec.Request.NormalizedPath)
	}
	body := rec.Response.Body.(map[string]interface{})
	if body["name"] != "Ann" {
		t.Errorf("Expected proxied response captured, got %v", body)
	}
}

func TestProxy_ForwardsStatusAndBody(t *testing.T) {
	upstream := newUpstream(t)
	sink := &captureSink{}
	g := newProxyEngine(t, upstream.URL, sink)

	w := httptest.NewRecorder()
	req := proxyRequest(t, "POST", "/api/echo", strings.NewReader(`{"ping":1}`))
	req.Header.Set("Content-Type", "application/json")
	g.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}
	if sink.records[0].Response.StatusCode != http.StatusCreated {
		t.Errorf("Expected 201 captured, got %d", sink.records[0].Response.StatusCode)
	}
	reqBody := sink.records[0].Request.Body.(map[string]interface{})
	if reqBody["ping"] != float64(1) {
		t.Errorf("Expected request body captured, got %v", reqBody)
	}
}

func TestProxy_UpstreamUnreachable(t *testing.T) {
	sink := &captureSink{}
	g := newProxyEngine(t, "http://127.0.0.1:1", sink)

	w := httptest.NewRecorder()
	g.ServeHTTP(w, proxyRequest(t, "GET", "/api/users/7", nil))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "upstream unreachable") {
		t.Errorf("Expected error body, got %s", w.Body.String())
	}

	// The failed exchange is still observed
	if len(sink.records) != 1 {
		t.Fatalf("Expected failure captured, got %d records", len(sink.records))
	}
	if sink.records[0].Response.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected 502 captured, got %d", sink.records[0].Response.StatusCode)
	}
}
