package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"slope-monitor-backend/internal/dashboard"
	"slope-monitor-backend/internal/live"
	"slope-monitor-backend/internal/model"
	"slope-monitor-backend/internal/status"
	"slope-monitor-backend/internal/store"
)

// GetDevices lists every device id that has reported readings.
func (h *Handler) GetDevices(c *gin.Context) {
	st := live.FetchDevices(c.Request.Context(), h.store)
	if st.Err != nil {
		log.Printf("Error fetching devices: %v", st.Err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": st.Err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": st.Data})
}

// GetReadings returns the device's readings of the last ?hours, oldest first.
func (h *Handler) GetReadings(c *gin.Context) {
	hours := h.opts.WindowHours
	if raw := c.Query("hours"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		hours = v
	}

	f := live.SensorFilter{DeviceID: c.Param("device_id"), WindowHours: hours}
	readings, err := live.LoadReadings(c.Request.Context(), h.store, f, h.opts.ReadingLimit, time.Now())
	if err != nil {
		log.Printf("Error fetching readings for device %s: %v", f.DeviceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"device_id": f.DeviceID, "hours": hours, "readings": readings})
}

type deviceStatusResponse struct {
	Reading    model.SensorReading `json:"reading"`
	Thresholds *model.Thresholds   `json:"thresholds"`
	Status     status.Metrics      `json:"status"`
	Cards      []dashboard.Card    `json:"cards"`
}

// GetDeviceStatus classifies the device's latest reading against its thresholds.
func (h *Handler) GetDeviceStatus(c *gin.Context) {
	ctx := c.Request.Context()
	deviceID := c.Param("device_id")

	latest, err := h.store.LatestReading(ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no readings for device"})
		return
	}
	if err != nil {
		log.Printf("Error fetching latest reading for device %s: %v", deviceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	th := live.FetchThresholds(ctx, h.store, deviceID)
	if th.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": th.Err.Error()})
		return
	}

	c.JSON(http.StatusOK, deviceStatusResponse{
		Reading:    latest,
		Thresholds: th.Data,
		Status:     status.Evaluate(latest, th.Data),
		Cards:      dashboard.BuildCards(latest, th.Data),
	})
}
