package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"slope-monitor-backend/internal/dashboard"
	"slope-monitor-backend/internal/live"
)

// GetAlerts lists the newest alerts, optionally filtered by ?device_id.
// ?acknowledged defaults to false.
func (h *Handler) GetAlerts(c *gin.Context) {
	f := live.AlertFilter{DeviceID: c.Query("device_id")}
	if raw := c.Query("acknowledged"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "acknowledged must be a boolean"})
			return
		}
		f.Acknowledged = v
	}

	alerts, err := live.LoadAlerts(c.Request.Context(), h.store, f, h.opts.AlertLimit)
	if err != nil {
		log.Printf("Error fetching alerts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": dashboard.BuildAlertItems(alerts, h.opts.Location)})
}

// AcknowledgeAlert marks an alert as acknowledged. Failures are logged only,
// so the response is always 202.
func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	_ = dashboard.AcknowledgeAlert(c.Request.Context(), h.store, c.Param("id"))
	c.Status(http.StatusAccepted)
}
