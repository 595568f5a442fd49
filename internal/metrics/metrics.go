// Package metrics exposes Prometheus collectors for the capture
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CapturesTotal counts capture records observed by the middleware
	CapturesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apitrail_captures_total",
		Help: "Total number of request/response pairs captured",
	})

	// OperationsMerged counts operations merged into documents
	OperationsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apitrail_operations_merged_total",
		Help: "Total number of operations merged into specification documents",
	})

	// SavesTotal counts successful document persistence writes
	SavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apitrail_document_saves_total",
		Help: "Total number of successful document writes",
	})

	// SaveFailures counts failed persistence and backup writes
	SaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apitrail_document_save_failures_total",
		Help: "Total number of failed document writes",
	})
)

// Handler returns the Prometheus exposition endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
