package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"slope-monitor-backend/config"
	"slope-monitor-backend/internal/auth"
	"slope-monitor-backend/internal/mw"
	"slope-monitor-backend/internal/store"
	"slope-monitor-backend/internal/websocket"
)

// Deps are the services the router exposes.
type Deps struct {
	Store   store.Store
	Auth    *auth.Manager
	Webpush *webpush.Options
	// WS serves /ws; nil leaves the route out.
	WS      *websocket.Server
	Options Options
}

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, deps Deps) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(deps.Store, deps.Webpush, deps.Auth, deps.Options)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	loginLimiter := mw.RateLimiter(rate.Limit(cfg.LoginRateLimitPerSec), 1)

	var caching gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second; cacheTTL > 0 {
		caching = mw.Cache(cache.New(cacheTTL, 2*cacheTTL), cacheTTL, auth.Subject)
	}

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/auth/login", loginLimiter, handler.Login)
		api.POST("/auth/logout", handler.Logout)
		api.GET("/auth/session", handler.GetSession)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		admin := api.Group("")
		admin.Use(auth.RequireAdmin(deps.Auth))
		{
			admin.GET("/devices", caching, handler.GetDevices)
			admin.GET("/devices/:device_id/readings", handler.GetReadings)
			admin.GET("/devices/:device_id/status", handler.GetDeviceStatus)

			admin.GET("/alerts", handler.GetAlerts)
			admin.POST("/alerts/:id/ack", handler.AcknowledgeAlert)

			admin.GET("/thresholds/:device_id", handler.GetThresholds)
			admin.PUT("/thresholds/:device_id", handler.PutThresholds)

			admin.GET("/subscriptions", handler.GetSubscription)
			admin.PUT("/subscriptions", handler.PutSubscription)
			admin.DELETE("/subscriptions", handler.DeleteSubscription)
		}
	}

	if deps.WS != nil {
		r.GET("/ws", deps.WS.ServeWS)
	}

	return r
}
