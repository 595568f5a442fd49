package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/apitrail/apitrail/internal/capture"
	"github.com/apitrail/apitrail/internal/collection"
	"github.com/apitrail/apitrail/internal/stats"
)

// Handler handles admin API requests
type Handler struct {
	manager *collection.Manager
	feed    *capture.Feed
	traffic *stats.Collector
}

// NewHandler creates a new admin API handler
func NewHandler(manager *collection.Manager, feed *capture.Feed, traffic *stats.Collector) *Handler {
	return &Handler{
		manager: manager,
		feed:    feed,
		traffic: traffic,
	}
}

// ListCollections returns the registered collection names with stats
func (h *Handler) ListCollections(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"collections": h.manager.GetAllStats(),
	})
}

// GetCollectionStats returns aggregation for one collection
func (h *Handler) GetCollectionStats(c *gin.Context) {
	stats, err := h.manager.GetStats(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ExportCollection serializes one document as JSON or YAML
func (h *Handler) ExportCollection(c *gin.Context) {
	store := h.manager.GetOrCreate(c.Param("name"))

	switch c.DefaultQuery("format", "json") {
	case "yaml":
		data, err := store.ExportYAML()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/yaml", data)
	case "json":
		data, err := store.ExportJSON()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json", data)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json or yaml"})
	}
}

// CreateVersion snapshots one document under a version label
func (h *Handler) CreateVersion(c *gin.Context) {
	var input struct {
		Version string `json:"version" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	path, err := h.manager.CreateVersion(c.Param("name"), input.Version)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"path": path})
}

// CreateBackup snapshots one document's current serialized form
func (h *Handler) CreateBackup(c *gin.Context) {
	path, err := h.manager.CreateBackup(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"path": path})
}

// ListBackups returns the backup files recorded for a collection
func (h *Handler) ListBackups(c *gin.Context) {
	backups, err := h.manager.ListBackups(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": backups})
}

// MergeCollections unions source documents into a target collection
func (h *Handler) MergeCollections(c *gin.Context) {
	var input struct {
		Sources                  []string `json:"sources" binding:"required"`
		Target                   string   `json:"target" binding:"required"`
		PrefixWithCollectionName bool     `json:"prefixWithCollectionName"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, err := h.manager.MergeCollections(input.Sources, input.Target, collection.MergeOptions{
		PrefixWithCollectionName: input.PrefixWithCollectionName,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, store.Stats())
}

// GetAllStats returns aggregation across all collections
func (h *Handler) GetAllStats(c *gin.Context) {
	out := gin.H{
		"collections": h.manager.GetAllStats(),
		"feed":        h.feed.Stats(),
	}
	if h.traffic != nil {
		out["traffic"] = h.traffic.Snapshot()
	}
	c.JSON(http.StatusOK, out)
}

// GetTrafficStats returns the aggregate traffic snapshot
func (h *Handler) GetTrafficStats(c *gin.Context) {
	if h.traffic == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "traffic statistics are not enabled"})
		return
	}
	c.JSON(http.StatusOK, h.traffic.Snapshot())
}

// GetEndpointStats returns per-endpoint traffic aggregates
func (h *Handler) GetEndpointStats(c *gin.Context) {
	if h.traffic == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "traffic statistics are not enabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": h.traffic.EndpointStats()})
}

// ResetTrafficStats clears all traffic aggregates
func (h *Handler) ResetTrafficStats(c *gin.Context) {
	if h.traffic == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "traffic statistics are not enabled"})
		return
	}
	h.traffic.Reset()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// ListCaptures returns recent capture records, newest first
func (h *Handler) ListCaptures(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	c.JSON(http.StatusOK, gin.H{
		"captures": h.feed.Recent(limit),
	})
}

// HealthCheck reports service liveness
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"collections": len(h.manager.Collections()),
	})
}
