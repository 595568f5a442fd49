// Package proxy forwards traffic to an upstream service so the capture
// middleware can observe real exchanges without touching the
// application being documented.
package proxy

import (
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
)

// Engine is a single-upstream reverse proxy
type Engine struct {
	upstream *url.URL
	proxy    *httputil.ReverseProxy
}

// NewEngine creates a proxy engine forwarding to the upstream base URL
func NewEngine(upstream string) (*Engine, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %s: %w", upstream, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream URL must include scheme and host: %s", upstream)
	}

	p := httputil.NewSingleHostReverseProxy(u)

	director := p.Director
	p.Director = func(req *http.Request) {
		director(req)
		// Present the upstream's host so virtual-host routing works
		req.Host = u.Host
	}

	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("Upstream request failed for %s %s: %v", r.Method, r.URL.Path, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, `{"error": "upstream unreachable", "upstream": %q}`, u.String())
	}

	p.Transport = &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &Engine{upstream: u, proxy: p}, nil
}

// Upstream returns the configured upstream base URL
func (e *Engine) Upstream() string {
	return e.upstream.String()
}

// Handler returns a gin handler that forwards the request upstream.
// Mounted behind the capture middleware, the teed response writer
// observes whatever the upstream returns.
func (e *Engine) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		e.proxy.ServeHTTP(c.Writer, c.Request)
	}
}
