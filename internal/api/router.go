package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/apitrail/apitrail/internal/capture"
	"github.com/apitrail/apitrail/internal/collection"
	"github.com/apitrail/apitrail/internal/metrics"
	"github.com/apitrail/apitrail/internal/stats"
)

// Router exposes the read-side admin API over the collection manager
type Router struct {
	engine  *gin.Engine
	manager *collection.Manager
	feed    *capture.Feed
	handler *Handler
}

// NewRouter creates the admin router
func NewRouter(manager *collection.Manager, feed *capture.Feed, traffic *stats.Collector) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:  gin.New(),
		manager: manager,
		feed:    feed,
	}

	r.handler = NewHandler(manager, feed, traffic)

	r.engine.Use(gin.Recovery())
	r.engine.Use(corsMiddleware())
	r.engine.Use(gin.Logger())

	r.setupRoutes()

	return r
}

// setupRoutes configures all routes
func (r *Router) setupRoutes() {
	api := r.engine.Group("/_api")
	{
		// Collections
		api.GET("/collections", r.handler.ListCollections)
		api.GET("/collections/:name", r.handler.GetCollectionStats)
		api.GET("/collections/:name/export", r.handler.ExportCollection)
		api.POST("/collections/:name/versions", r.handler.CreateVersion)
		api.POST("/collections/:name/backups", r.handler.CreateBackup)
		api.GET("/collections/:name/backups", r.handler.ListBackups)

		// Merging
		api.POST("/merge", r.handler.MergeCollections)

		// Statistics
		api.GET("/stats", r.handler.GetAllStats)
		api.GET("/stats/traffic", r.handler.GetTrafficStats)
		api.GET("/stats/endpoints", r.handler.GetEndpointStats)
		api.POST("/stats/reset", r.handler.ResetTrafficStats)

		// Recent captures
		api.GET("/captures", r.handler.ListCaptures)

		// Health
		api.GET("/health", r.handler.HealthCheck)
	}

	// WebSocket for live captures
	wsHandler := capture.NewWebSocketHandler(r.feed)
	r.engine.GET("/_api/captures/stream", gin.WrapH(wsHandler))

	// Prometheus exposition
	r.engine.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// Handler returns the underlying http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Engine returns the gin engine, used to mount additional routes
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
