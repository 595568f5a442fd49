package capture

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apitrail/apitrail/internal/filter"
	"github.com/apitrail/apitrail/internal/metrics"
	"github.com/apitrail/apitrail/internal/models"
)

// Sink receives completed capture records and fans them out to target
// collections.
type Sink interface {
	AddEndpointWithRules(rec *models.CaptureRecord, rules models.AssignmentRules) []models.AssignmentResult
}

// maxBodyCapture bounds how much of a body is retained per direction
const maxBodyCapture = 1 << 20

// bodyWriter tees the response body into a buffer while it is written
// to the client.
type bodyWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyWriter) Write(p []byte) (int, error) {
	if w.buf.Len() < maxBodyCapture {
		w.buf.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

func (w *bodyWriter) WriteString(s string) (int, error) {
	if w.buf.Len() < maxBodyCapture {
		w.buf.WriteString(s)
	}
	return w.ResponseWriter.WriteString(s)
}

// Middleware returns a gin handler that observes each completed call
// and routes the resulting capture record through the sink. Exchanges
// matching an active ignore rule are served but not captured; the rule
// set is re-read per call so replacements take effect immediately.
// Capture is best-effort instrumentation: its failures are logged and
// never alter the in-flight response.
func Middleware(recorder *Recorder, sink Sink, rules models.AssignmentRules, feed *Feed, ignore *filter.RuleSet) gin.HandlerFunc {
	evaluator := filter.NewEvaluator()

	return func(c *gin.Context) {
		start := time.Now()

		var reqBody []byte
		if c.Request.Body != nil {
			reqBody, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxBodyCapture))
			c.Request.Body = io.NopCloser(bytes.NewReader(reqBody))
		}

		writer := &bodyWriter{ResponseWriter: c.Writer}
		c.Writer = writer

		c.Next()

		defer func() {
			if r := recover(); r != nil {
				log.Printf("Capture failed for %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
			}
		}()

		if ignore != nil {
			if active := ignore.Rules(); len(active) > 0 && evaluator.MatchAny(active, filterData(c, reqBody)) {
				return
			}
		}

		record, err := recorder.Record(requestData(c, reqBody, start), responseData(c, writer), models.CaptureMetadata{})
		if err != nil {
			log.Printf("Capture failed for %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			return
		}

		metrics.CapturesTotal.Inc()

		if feed != nil {
			feed.Publish(record)
		}

		if sink != nil {
			for _, result := range sink.AddEndpointWithRules(record, rules) {
				if result.Error != "" {
					log.Printf("Failed to update collection %s: %s", result.Collection, result.Error)
				}
			}
		}
	}
}

func filterData(c *gin.Context, body []byte) *filter.RequestData {
	pathParams := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		pathParams[p.Key] = p.Value
	}

	return &filter.RequestData{
		Path:        c.Request.URL.Path,
		PathParams:  pathParams,
		QueryParams: c.Request.URL.Query(),
		Headers:     c.Request.Header,
		Body:        string(body),
	}
}

func requestData(c *gin.Context, body []byte, start time.Time) RequestData {
	headers := make(map[string]string, len(c.Request.Header))
	for name := range c.Request.Header {
		headers[name] = c.Request.Header.Get(name)
	}

	query := make(map[string]string)
	for name, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}

	pathParams := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		pathParams[p.Key] = p.Value
	}

	cookies := make(map[string]string)
	for _, cookie := range c.Request.Cookies() {
		cookies[cookie.Name] = cookie.Value
	}

	protocol := "http"
	if c.Request.TLS != nil {
		protocol = "https"
	}

	return RequestData{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		OriginalPath:  c.Request.URL.RequestURI(),
		Protocol:      protocol,
		Secure:        c.Request.TLS != nil,
		Host:          c.Request.Host,
		ClientIP:      c.ClientIP(),
		Headers:       headers,
		Query:         query,
		PathParams:    pathParams,
		Cookies:       cookies,
		Body:          body,
		ContentType:   c.ContentType(),
		ContentLength: c.Request.ContentLength,
		Start:         start,
	}
}

func responseData(c *gin.Context, writer *bodyWriter) ResponseData {
	headers := make(map[string]string)
	for name := range c.Writer.Header() {
		headers[name] = c.Writer.Header().Get(name)
	}

	status := c.Writer.Status()
	return ResponseData{
		StatusCode: status,
		StatusText: http.StatusText(status),
		Headers:    headers,
		Body:       writer.buf.Bytes(),
		End:        time.Now(),
	}
}
