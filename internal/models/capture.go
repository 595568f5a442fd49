package models

import (
	"time"
)

// CaptureRecord represents one observed request/response pair.
// It is immutable once built and owned by the caller until handed
// to the collection manager.
type CaptureRecord struct {
	ID       string          `json:"id"`
	Request  RequestCapture  `json:"request"`
	Response ResponseCapture `json:"response"`
	Metadata CaptureMetadata `json:"metadata"`
}

// RequestCapture holds the captured request attributes
type RequestCapture struct {
	Method           string            `json:"method"`
	Path             string            `json:"path"`                     // Path as captured, e.g. /users/42
	NormalizedPath   string            `json:"normalizedPath,omitempty"` // Path with identifier segments collapsed, e.g. /users/{id}
	OriginalPath     string            `json:"originalPath,omitempty"`   // Full original URL path including query string
	Protocol         string            `json:"protocol"`
	Secure           bool              `json:"secure"`
	Host             string            `json:"host,omitempty"`
	ClientIP         string            `json:"clientIp,omitempty"`
	Headers          map[string]string `json:"headers"` // Sanitized
	Query            map[string]string `json:"query,omitempty"`
	PathParams       map[string]string `json:"pathParams,omitempty"`
	Cookies          map[string]string `json:"cookies,omitempty"` // Sanitized
	Body             interface{}       `json:"body,omitempty"`    // Sanitized body tree
	ActualBody       interface{}       `json:"actualBody,omitempty"`
	BodyTypes        interface{}       `json:"bodyTypes,omitempty"`
	SensitiveFields  []SensitiveField  `json:"sensitiveFields,omitempty"`
	HasSensitiveData bool              `json:"hasSensitiveData"`
	ContentType      string            `json:"contentType,omitempty"`
	ContentLength    int64             `json:"contentLength,omitempty"`
	CapturedAt       time.Time         `json:"capturedAt"`
	StartTime        time.Time         `json:"startTime"`
}

// ResponseCapture holds the captured response attributes
type ResponseCapture struct {
	StatusCode       int               `json:"statusCode"`
	StatusText       string            `json:"statusText,omitempty"`
	Headers          map[string]string `json:"headers"` // Sanitized
	Body             interface{}       `json:"body,omitempty"`
	ActualBody       interface{}       `json:"actualBody,omitempty"`
	BodyTypes        interface{}       `json:"bodyTypes,omitempty"`
	SensitiveFields  []SensitiveField  `json:"sensitiveFields,omitempty"`
	HasSensitiveData bool              `json:"hasSensitiveData"`
	EndTime          time.Time         `json:"endTime"`
	Duration         time.Duration     `json:"duration"`
	DurationText     string            `json:"durationText,omitempty"`
}

// CaptureMetadata carries capture bookkeeping and caller-supplied values
type CaptureMetadata struct {
	CapturedAt    time.Time         `json:"capturedAt"`
	SchemaVersion string            `json:"schemaVersion,omitempty"`
	Version       string            `json:"version,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// SensitiveField describes one redacted field found during body analysis
type SensitiveField struct {
	Path        string      `json:"path"`  // Dot-joined location, e.g. user.credentials.password
	Field       string      `json:"field"` // Leaf key name
	Type        string      `json:"type"`  // Semantic type of the original value
	ActualValue interface{} `json:"actualValue,omitempty"`
}
