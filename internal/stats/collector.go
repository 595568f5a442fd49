// Package stats aggregates traffic statistics over captured exchanges,
// keyed by method and normalized path.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/apitrail/apitrail/internal/models"
)

const (
	maxRecentErrors = 100
	maxHourlySlots  = 168 // 7 days
)

// EndpointStat is the aggregated view of one endpoint
type EndpointStat struct {
	Method          string    `json:"method"`
	Path            string    `json:"path"`
	TotalRequests   int64     `json:"totalRequests"`
	TotalErrors     int64     `json:"totalErrors"`
	AvgTimeMs       float64   `json:"avgTimeMs"`
	MinTimeMs       float64   `json:"minTimeMs"`
	MaxTimeMs       float64   `json:"maxTimeMs"`
	LastRequestTime time.Time `json:"lastRequestTime"`
}

// ErrorEvent records one observed error response
type ErrorEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"statusCode"`
}

// HourlyStat is one hour's traffic counter
type HourlyStat struct {
	Hour     string `json:"hour"`
	Requests int64  `json:"requests"`
	Errors   int64  `json:"errors"`
}

// Snapshot is the aggregate view returned to the admin API
type Snapshot struct {
	TotalRequests     int64          `json:"totalRequests"`
	TotalErrors       int64          `json:"totalErrors"`
	Endpoints         int            `json:"endpoints"`
	AvgResponseTimeMs float64        `json:"avgResponseTimeMs"`
	RequestsPerSecond float64        `json:"requestsPerSecond"`
	StartTime         time.Time      `json:"startTime"`
	Uptime            string         `json:"uptime"`
	TopEndpoints      []EndpointStat `json:"topEndpoints"`
	RecentErrors      []ErrorEvent   `json:"recentErrors"`
	RequestsByHour    []HourlyStat   `json:"requestsByHour"`
}

type endpointCounter struct {
	method          string
	path            string
	totalRequests   int64
	totalErrors     int64
	totalTimeNs     int64
	minTimeNs       int64
	maxTimeNs       int64
	lastRequestTime time.Time
}

type hourlyCounter struct {
	requests int64
	errors   int64
}

// Collector aggregates traffic statistics. It is fed through
// RecordCapture, typically from a feed subscription.
type Collector struct {
	mu           sync.RWMutex
	startTime    time.Time
	endpoints    map[string]*endpointCounter // "METHOD path" -> counter
	recentErrors []ErrorEvent
	hourly       map[string]*hourlyCounter // "2006-01-02-15" -> counter
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{
		startTime:    time.Now(),
		endpoints:    make(map[string]*endpointCounter),
		recentErrors: make([]ErrorEvent, 0),
		hourly:       make(map[string]*hourlyCounter),
	}
}

// Consume aggregates records from a feed subscription channel until
// the channel is closed.
func (c *Collector) Consume(ch <-chan *models.CaptureRecord) {
	for rec := range ch {
		c.RecordCapture(rec)
	}
}

// RecordCapture folds one capture into the aggregates
func (c *Collector) RecordCapture(rec *models.CaptureRecord) {
	if rec == nil {
		return
	}

	path := rec.Request.NormalizedPath
	if path == "" {
		path = rec.Request.Path
	}
	key := rec.Request.Method + " " + path
	durationNs := rec.Response.Duration.Nanoseconds()
	isError := rec.Response.StatusCode >= 400
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	ep, ok := c.endpoints[key]
	if !ok {
		ep = &endpointCounter{
			method:    rec.Request.Method,
			path:      path,
			minTimeNs: durationNs,
			maxTimeNs: durationNs,
		}
		c.endpoints[key] = ep
	}

	ep.totalRequests++
	ep.totalTimeNs += durationNs
	ep.lastRequestTime = now
	if durationNs < ep.minTimeNs {
		ep.minTimeNs = durationNs
	}
	if durationNs > ep.maxTimeNs {
		ep.maxTimeNs = durationNs
	}
	if isError {
		ep.totalErrors++
		c.recentErrors = append(c.recentErrors, ErrorEvent{
			Timestamp:  now,
			Method:     rec.Request.Method,
			Path:       path,
			StatusCode: rec.Response.StatusCode,
		})
		if len(c.recentErrors) > maxRecentErrors {
			c.recentErrors = c.recentErrors[1:]
		}
	}

	hourKey := now.Format("2006-01-02-15")
	hour, ok := c.hourly[hourKey]
	if !ok {
		hour = &hourlyCounter{}
		c.hourly[hourKey] = hour
		c.pruneHourly()
	}
	hour.requests++
	if isError {
		hour.errors++
	}
}

// pruneHourly drops the oldest slots beyond the retention window.
// Caller holds the lock.
func (c *Collector) pruneHourly() {
	if len(c.hourly) <= maxHourlySlots {
		return
	}

	keys := make([]string, 0, len(c.hourly))
	for k := range c.hourly {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys[:len(keys)-maxHourlySlots] {
		delete(c.hourly, k)
	}
}

// Snapshot returns the aggregate view of all observed traffic
func (c *Collector) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var totalRequests, totalErrors, totalTimeNs int64
	endpoints := make([]EndpointStat, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		endpoints = append(endpoints, ep.stat())
		totalRequests += ep.totalRequests
		totalErrors += ep.totalErrors
		totalTimeNs += ep.totalTimeNs
	}

	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].TotalRequests > endpoints[j].TotalRequests
	})
	top := endpoints
	if len(top) > 10 {
		top = top[:10]
	}

	var avgMs float64
	if totalRequests > 0 {
		avgMs = float64(totalTimeNs) / float64(totalRequests) / 1e6
	}

	uptime := time.Since(c.startTime)
	var perSecond float64
	if secs := uptime.Seconds(); secs > 0 {
		perSecond = float64(totalRequests) / secs
	}

	errors := make([]ErrorEvent, len(c.recentErrors))
	copy(errors, c.recentErrors)

	return &Snapshot{
		TotalRequests:     totalRequests,
		TotalErrors:       totalErrors,
		Endpoints:         len(c.endpoints),
		AvgResponseTimeMs: avgMs,
		RequestsPerSecond: perSecond,
		StartTime:         c.startTime,
		Uptime:            uptime.Round(time.Second).String(),
		TopEndpoints:      top,
		RecentErrors:      errors,
		RequestsByHour:    c.lastDay(),
	}
}

// EndpointStats returns per-endpoint aggregates sorted by request count
func (c *Collector) EndpointStats() []EndpointStat {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]EndpointStat, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		out = append(out, ep.stat())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TotalRequests > out[j].TotalRequests
	})
	return out
}

// lastDay builds the trailing 24 hour series. Caller holds the lock.
func (c *Collector) lastDay() []HourlyStat {
	now := time.Now()
	out := make([]HourlyStat, 0, 24)

	for i := 23; i >= 0; i-- {
		hour := now.Add(-time.Duration(i) * time.Hour)
		stat := HourlyStat{Hour: hour.Format("15:00")}
		if counter, ok := c.hourly[hour.Format("2006-01-02-15")]; ok {
			stat.Requests = counter.requests
			stat.Errors = counter.errors
		}
		out = append(out, stat)
	}
	return out
}

// Reset clears all aggregates and restarts the uptime clock
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.endpoints = make(map[string]*endpointCounter)
	c.recentErrors = make([]ErrorEvent, 0)
	c.hourly = make(map[string]*hourlyCounter)
}

func (ep *endpointCounter) stat() EndpointStat {
	var avgMs float64
	if ep.totalRequests > 0 {
		avgMs = float64(ep.totalTimeNs) / float64(ep.totalRequests) / 1e6
	}
	return EndpointStat{
		Method:          ep.method,
		Path:            ep.path,
		TotalRequests:   ep.totalRequests,
		TotalErrors:     ep.totalErrors,
		AvgTimeMs:       avgMs,
		MinTimeMs:       float64(ep.minTimeNs) / 1e6,
		MaxTimeMs:       float64(ep.maxTimeNs) / 1e6,
		LastRequestTime: ep.lastRequestTime,
	}
}
