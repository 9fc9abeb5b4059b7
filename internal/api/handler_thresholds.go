package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"slope-monitor-backend/internal/dashboard"
	"slope-monitor-backend/internal/live"
	"slope-monitor-backend/internal/parse"
)

// GetThresholds returns the device's thresholds, or the defaults when none are stored.
func (h *Handler) GetThresholds(c *gin.Context) {
	st := live.FetchThresholds(c.Request.Context(), h.store, c.Param("device_id"))
	if st.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": st.Err.Error()})
		return
	}
	c.JSON(http.StatusOK, st.Data)
}

// PutThresholds overwrites the device's thresholds. Values are strings as
// typed by the user; blank fields keep the current value.
func (h *Handler) PutThresholds(c *gin.Context) {
	var form parse.ThresholdForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctx := c.Request.Context()
	deviceID := c.Param("device_id")
	current := live.FetchThresholds(ctx, h.store, deviceID)
	if current.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": current.Err.Error()})
		return
	}

	msg, err := dashboard.SaveThresholds(ctx, h.store, deviceID, form, *current.Data)
	if err != nil {
		var fe *parse.FieldError
		if errors.As(err, &fe) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg, "field": fe.Field})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
		return
	}

	saved := live.FetchThresholds(ctx, h.store, deviceID)
	c.JSON(http.StatusOK, gin.H{"message": msg, "thresholds": saved.Data})
}
