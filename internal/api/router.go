package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alert-publisher/internal/logging"
)

// NewRouter wires the query surface for published-alert tracking records.
func NewRouter(h *Handler, logger *logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group("/api/v1/published-alerts")
	{
		api.GET("", h.GetAllAlerts)
		api.GET("/failed", h.GetFailedAlerts)
		api.GET("/date-range", h.GetAlertsByDateRange)
		api.GET("/statistics", h.GetStatistics)
		api.GET("/severity/:severity", h.GetAlertsBySeverity)
		api.GET("/type/:alertType", h.GetAlertsByType)
		api.GET("/:alertId", h.GetAlertByID)
		api.POST("/retry-failed", h.RetryFailedAlerts)
	}

	r.GET("/ws", h.StreamResults)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
