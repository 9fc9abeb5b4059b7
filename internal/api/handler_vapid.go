package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"slope-monitor-backend/internal/notification"
)

// GetVAPIDPublicKey gives the dashboard's service worker what it needs to
// subscribe: the application server key and the lowest alert level that
// will be pushed. Without VAPID keys push is off and the endpoint is 503.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push notifications are not configured"})
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.JSON(http.StatusOK, gin.H{
		"public_key": h.webpush.VAPIDPublicKey,
		"min_level":  notification.PushLevel,
	})
}
