// Package capture builds immutable capture records from framework
// request/response data and exposes the middleware hook and live feed.
package capture

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apitrail/apitrail/internal/models"
	"github.com/apitrail/apitrail/internal/redact"
	"github.com/apitrail/apitrail/internal/shape"
	"github.com/apitrail/apitrail/internal/specstore"
)

// SchemaVersion tags the capture record layout
const SchemaVersion = "1.0"

// RequestData is the framework-provided view of a request
type RequestData struct {
	Method        string
	Path          string
	OriginalPath  string
	Protocol      string
	Secure        bool
	Host          string
	ClientIP      string
	Headers       map[string]string
	Query         map[string]string
	PathParams    map[string]string
	Cookies       map[string]string
	Body          []byte
	ContentType   string
	ContentLength int64
	Start         time.Time
}

// ResponseData is the framework-provided view of the completed response
type ResponseData struct {
	StatusCode int
	StatusText string
	Headers    map[string]string
	Body       []byte
	End        time.Time
}

// Recorder builds capture records, applying redaction and type
// analysis to headers and bodies. The sensitive lists can be swapped
// at runtime on configuration reload.
type Recorder struct {
	mu               sync.RWMutex
	sensitiveFields  []string
	sensitiveHeaders []string
}

// NewRecorder creates a recorder. Empty slices fall back to the
// default sensitive field and header lists.
func NewRecorder(sensitiveFields, sensitiveHeaders []string) *Recorder {
	r := &Recorder{}
	r.UpdateLists(sensitiveFields, sensitiveHeaders)
	return r
}

// UpdateLists replaces the sensitive field and header lists. Empty
// slices fall back to the defaults, matching NewRecorder.
func (r *Recorder) UpdateLists(sensitiveFields, sensitiveHeaders []string) {
	if len(sensitiveFields) == 0 {
		sensitiveFields = redact.DefaultSensitiveFields
	}
	if len(sensitiveHeaders) == 0 {
		sensitiveHeaders = redact.DefaultSensitiveHeaders
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sensitiveFields = sensitiveFields
	r.sensitiveHeaders = sensitiveHeaders
}

// lists returns the active sensitive lists
func (r *Recorder) lists() (fields, headers []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sensitiveFields, r.sensitiveHeaders
}

// Record builds one immutable capture record from a completed call
func (r *Recorder) Record(req RequestData, resp ResponseData, meta models.CaptureMetadata) (*models.CaptureRecord, error) {
	if req.Method == "" {
		return nil, fmt.Errorf("capture requires a request method")
	}
	if req.Path == "" {
		return nil, fmt.Errorf("capture requires a request path")
	}

	if req.Start.IsZero() {
		req.Start = time.Now()
	}
	if resp.End.IsZero() {
		resp.End = time.Now()
	}
	duration := resp.End.Sub(req.Start)
	if duration < 0 {
		duration = 0
	}

	if meta.CapturedAt.IsZero() {
		meta.CapturedAt = time.Now()
	}
	meta.SchemaVersion = SchemaVersion

	sensitiveFields, sensitiveHeaders := r.lists()

	record := &models.CaptureRecord{
		ID: uuid.New().String(),
		Request: models.RequestCapture{
			Method:         req.Method,
			Path:           req.Path,
			NormalizedPath: specstore.NormalizePath(req.Path),
			OriginalPath:   req.OriginalPath,
			Protocol:       req.Protocol,
			Secure:         req.Secure,
			Host:           req.Host,
			ClientIP:       req.ClientIP,
			Headers:        redact.Headers(req.Headers, sensitiveHeaders),
			Query:          req.Query,
			PathParams:     req.PathParams,
			Cookies:        redact.Headers(req.Cookies, sensitiveHeaders),
			ContentType:    req.ContentType,
			ContentLength:  req.ContentLength,
			CapturedAt:     meta.CapturedAt,
			StartTime:      req.Start,
		},
		Response: models.ResponseCapture{
			StatusCode:   resp.StatusCode,
			StatusText:   resp.StatusText,
			Headers:      redact.Headers(resp.Headers, sensitiveHeaders),
			EndTime:      resp.End,
			Duration:     duration,
			DurationText: duration.String(),
		},
		Metadata: meta,
	}

	analyzeBody(req.Body, sensitiveFields, &record.Request.Body, &record.Request.ActualBody,
		&record.Request.BodyTypes, &record.Request.SensitiveFields, &record.Request.HasSensitiveData)
	analyzeBody(resp.Body, sensitiveFields, &record.Response.Body, &record.Response.ActualBody,
		&record.Response.BodyTypes, &record.Response.SensitiveFields, &record.Response.HasSensitiveData)

	return record, nil
}

// analyzeBody decodes raw bytes and fills the sanitized, actual, and
// typed views. Non-JSON payloads are carried as plain strings.
func analyzeBody(raw []byte, sensitiveFields []string, sanitized, actual, types *interface{},
	fields *[]models.SensitiveField, flag *bool) {

	if len(raw) == 0 {
		return
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = string(raw)
	}

	result := shape.Analyze(decoded, sensitiveFields)
	*sanitized = result.Sanitized
	*types = result.Types
	*flag = result.HasSensitiveData
	if result.HasSensitiveData {
		*fields = result.SensitiveFields
	}
	*actual = decoded
}
