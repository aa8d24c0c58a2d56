package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/courtcapture/internal/metrics"
)

// HealthHandler serves liveness and counter snapshots.
type HealthHandler struct {
	db        *sqlx.DB
	collector *metrics.Collector
}

// NewHealthHandler creates a health handler. db may be nil in tests.
func NewHealthHandler(db *sqlx.DB, collector *metrics.Collector) *HealthHandler {
	return &HealthHandler{db: db, collector: collector}
}

// Health handles GET /api/v1/health.
func (h *HealthHandler) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics handles GET /api/v1/metrics.
func (h *HealthHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.collector.Snapshot())
}
