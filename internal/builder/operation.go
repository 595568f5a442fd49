// Package builder converts capture records into specification
// operations, layered on the synthesized schemas.
package builder

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/apitrail/apitrail/internal/models"
	"github.com/apitrail/apitrail/internal/schema"
)

// Options controls operation construction
type Options struct {
	IncludeExamples bool `json:"includeExamples"`
	IncludeSchemas  bool `json:"includeSchemas"`
	GroupByPath     bool `json:"groupByPath"`
}

// DefaultOptions returns the options used when none are supplied
func DefaultOptions() Options {
	return Options{
		IncludeExamples: true,
		IncludeSchemas:  true,
		GroupByPath:     true,
	}
}

// headerAllowList names the request headers that become documented
// parameters. Anything else not prefixed with x- is treated as generic
// browser/proxy noise and filtered out.
var headerAllowList = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"x-auth-token":  true,
	"content-type":  true,
	"accept":        true,
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Build produces an operation from a capture record. The record's
// NormalizedPath must already be set.
func Build(rec *models.CaptureRecord, opts Options) *models.Operation {
	method := strings.ToLower(rec.Request.Method)
	path := rec.Request.NormalizedPath

	op := &models.Operation{
		Summary:     fmt.Sprintf("%s %s", rec.Request.Method, path),
		Description: fmt.Sprintf("Auto-generated from captured traffic for %s %s", rec.Request.Method, path),
		OperationID: OperationID(method, path),
		Tags:        tags(path, opts),
		Parameters:  parameters(rec),
		RequestBody: requestBody(rec, opts),
		Responses:   responses(rec, opts),
		Security:    security(rec),
	}

	if data := actualData(rec); len(data) > 0 {
		op.ActualData = data
	}

	return op
}

// OperationID derives a deterministic identifier from method and path:
// braces stripped, non-alphanumeric runs collapsed to one underscore,
// leading and trailing underscores trimmed.
func OperationID(method, path string) string {
	cleaned := strings.ReplaceAll(path, "{", "")
	cleaned = strings.ReplaceAll(cleaned, "}", "")
	cleaned = nonAlnum.ReplaceAllString(cleaned, "_")
	cleaned = strings.Trim(cleaned, "_")
	return strings.ToLower(method) + "_" + cleaned
}

// FirstPathSegment returns the first non-empty segment of path
func FirstPathSegment(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}

func tags(path string, opts Options) []string {
	if opts.GroupByPath {
		if seg := FirstPathSegment(path); seg != "" {
			return []string{seg}
		}
	}
	return []string{"API"}
}

func parameters(rec *models.CaptureRecord) []models.Parameter {
	params := make([]models.Parameter, 0)

	for name := range rec.Request.PathParams {
		params = append(params, models.Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   &models.Schema{Type: "string"},
		})
	}

	for name, value := range rec.Request.Query {
		schemaType := "string"
		if _, err := strconv.ParseFloat(value, 64); err == nil && value != "" {
			schemaType = "number"
		}
		params = append(params, models.Parameter{
			Name:     name,
			In:       "query",
			Required: false,
			Schema:   &models.Schema{Type: schemaType},
		})
	}

	for name := range rec.Request.Headers {
		lowered := strings.ToLower(name)
		if !headerAllowList[lowered] && !strings.HasPrefix(lowered, "x-") {
			continue
		}
		params = append(params, models.Parameter{
			Name:     name,
			In:       "header",
			Required: false,
			Schema:   &models.Schema{Type: "string"},
		})
	}

	return params
}

func requestBody(rec *models.CaptureRecord, opts Options) *models.RequestBody {
	body := rec.Request.Body
	if body == nil || isEmptyObject(body) {
		return nil
	}

	contentType := stripParams(rec.Request.ContentType)
	if contentType == "" {
		contentType = "application/json"
	}

	media := &models.MediaType{}
	if opts.IncludeSchemas {
		media.Schema = schema.FromValue(body)
	}
	if opts.IncludeExamples {
		media.Examples = bodyExamples(body, rec.Request.ActualBody, rec.Request.BodyTypes)
	}

	return &models.RequestBody{
		Description: "Request body captured from traffic",
		Required:    true,
		Content:     map[string]*models.MediaType{contentType: media},
	}
}

func responses(rec *models.CaptureRecord, opts Options) map[string]*models.Response {
	status := rec.Response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	out := map[string]*models.Response{
		strconv.Itoa(status): observedResponse(rec, opts),
	}

	// Static boilerplate entries, not derived from the actual error body
	if status >= http.StatusBadRequest {
		out["4xx"] = genericErrorResponse("Client error")
	}
	if status >= http.StatusInternalServerError {
		out["5xx"] = genericErrorResponse("Server error")
	}

	return out
}

func observedResponse(rec *models.CaptureRecord, opts Options) *models.Response {
	description := rec.Response.StatusText
	if description == "" {
		description = http.StatusText(rec.Response.StatusCode)
	}
	if description == "" {
		description = "Response"
	}

	contentType := responseContentType(rec.Response.Headers)
	body := rec.Response.Body

	media := &models.MediaType{}
	if body == nil {
		media.Schema = &models.Schema{Type: "string", Description: "Empty response"}
	} else {
		if opts.IncludeSchemas {
			media.Schema = schema.FromValue(body)
		}
		if opts.IncludeExamples {
			media.Examples = bodyExamples(body, rec.Response.ActualBody, rec.Response.BodyTypes)
		}
	}

	return &models.Response{
		Description: description,
		Content:     map[string]*models.MediaType{contentType: media},
	}
}

// responseContentType takes the response content-type header stripped
// of parameters, normalizing absent and text/plain values to JSON.
func responseContentType(headers map[string]string) string {
	contentType := ""
	for name, value := range headers {
		if strings.EqualFold(name, "content-type") {
			contentType = stripParams(value)
			break
		}
	}
	if contentType == "" || contentType == "text/plain" {
		return "application/json"
	}
	return contentType
}

func genericErrorResponse(description string) *models.Response {
	return &models.Response{
		Description: description,
		Content: map[string]*models.MediaType{
			"application/json": {
				Schema: &models.Schema{
					Type: "object",
					Properties: map[string]*models.Schema{
						"error": {Type: "string"},
						"code":  {Type: "string"},
					},
				},
			},
		},
	}
}

func security(rec *models.CaptureRecord) []map[string][]string {
	for name := range rec.Request.Headers {
		if strings.EqualFold(name, "authorization") {
			return []map[string][]string{{"bearerAuth": {}}}
		}
	}
	return []map[string][]string{}
}

// actualData merges request-side and response-side unredacted data
// under prefixed keys so both directions coexist without collision.
func actualData(rec *models.CaptureRecord) map[string]interface{} {
	data := make(map[string]interface{})

	if rec.Request.ActualBody != nil || rec.Request.HasSensitiveData {
		data["body"] = rec.Request.ActualBody
		data["hasSensitiveData"] = rec.Request.HasSensitiveData
		if rec.Request.BodyTypes != nil {
			data["bodyTypes"] = rec.Request.BodyTypes
		}
		if len(rec.Request.SensitiveFields) > 0 {
			data["sensitiveFields"] = rec.Request.SensitiveFields
		}
	}

	if rec.Response.ActualBody != nil || rec.Response.HasSensitiveData {
		data["responseBody"] = rec.Response.ActualBody
		data["responseHasSensitiveData"] = rec.Response.HasSensitiveData
		if rec.Response.BodyTypes != nil {
			data["responseBodyTypes"] = rec.Response.BodyTypes
		}
		if len(rec.Response.SensitiveFields) > 0 {
			data["responseSensitiveFields"] = rec.Response.SensitiveFields
		}
	}

	return data
}

func bodyExamples(sanitized, actual, types interface{}) map[string]*models.Example {
	examples := map[string]*models.Example{
		"sanitized": {Summary: "Sanitized example", Value: sanitized},
	}
	if actual != nil {
		examples["actual"] = &models.Example{Summary: "Actual captured data", Value: actual}
	}
	if types != nil {
		examples["types"] = &models.Example{Summary: "Field types", Value: types}
	}
	return examples
}

func stripParams(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}

func isEmptyObject(v interface{}) bool {
	obj, ok := v.(map[string]interface{})
	return ok && len(obj) == 0
}
