package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"alert-publisher/internal/logging"
	"alert-publisher/internal/publisher"
	"alert-publisher/internal/store"
	"alert-publisher/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler serves the published-alert query surface.
type Handler struct {
	store      store.Store
	svc        *publisher.Service
	hub        *ws.Hub
	logger     *logging.Logger
	maxRetries int
}

// NewHandler builds the API handler.
func NewHandler(st store.Store, svc *publisher.Service, hub *ws.Hub, logger *logging.Logger, maxRetries int) *Handler {
	return &Handler{store: st, svc: svc, hub: hub, logger: logger, maxRetries: maxRetries}
}

// GetAllAlerts lists every tracking record.
func (h *Handler) GetAllAlerts(c *gin.Context) {
	alerts, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to list published alerts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list published alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// GetAlertByID returns one tracking record by alert ID.
func (h *Handler) GetAlertByID(c *gin.Context) {
	alertID := c.Param("alertId")
	alert, err := h.store.Get(c.Request.Context(), alertID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Published alert not found"})
			return
		}
		h.logger.Errorf("Failed to get published alert %s: %v", alertID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get published alert"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

// GetAlertsBySeverity lists records matching a severity.
func (h *Handler) GetAlertsBySeverity(c *gin.Context) {
	severity := c.Param("severity")
	alerts, err := h.store.ListBySeverity(c.Request.Context(), severity)
	if err != nil {
		h.logger.Errorf("Failed to list alerts by severity %s: %v", severity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts by severity"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// GetAlertsByType lists records matching an alert type.
func (h *Handler) GetAlertsByType(c *gin.Context) {
	alertType := c.Param("alertType")
	alerts, err := h.store.ListByType(c.Request.Context(), alertType)
	if err != nil {
		h.logger.Errorf("Failed to list alerts by type %s: %v", alertType, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts by type"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// GetAlertsByDateRange lists records published inside [start, end]
// (RFC 3339 query params).
func (h *Handler) GetAlertsByDateRange(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start date, expected RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end date, expected RFC3339"})
		return
	}

	alerts, err := h.store.ListByPublishedBetween(c.Request.Context(), start, end)
	if err != nil {
		h.logger.Errorf("Failed to list alerts by date range: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts by date range"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// GetFailedAlerts lists records with at least one FAILED channel.
func (h *Handler) GetFailedAlerts(c *gin.Context) {
	alerts, err := h.store.ListFailed(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to list failed alerts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list failed alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// RetryFailedAlerts triggers one retry sweep. maxRetries defaults to the
// configured ceiling.
func (h *Handler) RetryFailedAlerts(c *gin.Context) {
	maxRetries := h.maxRetries
	if v := c.Query("maxRetries"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid maxRetries"})
			return
		}
		maxRetries = n
	}

	if err := h.svc.RetryFailed(maxRetries); err != nil {
		h.logger.Errorf("Retry sweep failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Retry sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Retry process initiated for failed alerts",
	})
}

// GetStatistics reports per-channel success rates over a trailing window.
func (h *Handler) GetStatistics(c *gin.Context) {
	hours := 24
	if v := c.Query("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hours"})
			return
		}
		hours = n
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	stats, err := h.store.Stats(c.Request.Context(), since)
	if err != nil {
		h.logger.Errorf("Failed to get publish statistics: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get statistics"})
		return
	}

	rate := func(success int64) string {
		if stats.TotalPublished == 0 {
			return "0%"
		}
		return fmt.Sprintf("%.2f%%", float64(success)*100/float64(stats.TotalPublished))
	}
	c.JSON(http.StatusOK, gin.H{
		"period":                   fmt.Sprintf("%d hours", hours),
		"totalPublished":           stats.TotalPublished,
		"cellBroadcastSuccess":     stats.CellBroadcastSuccess,
		"fcmSuccess":               stats.FcmSuccess,
		"cellBroadcastSuccessRate": rate(stats.CellBroadcastSuccess),
		"fcmSuccessRate":           rate(stats.FcmSuccess),
	})
}

// StreamResults upgrades the connection and streams channel-completion
// events until the client disconnects.
func (h *Handler) StreamResults(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	h.hub.Add(conn)

	// Reads are discarded; the loop exists to detect disconnects.
	go func() {
		defer func() {
			h.hub.Remove(conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
