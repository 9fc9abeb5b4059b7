package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"slope-monitor-backend/internal/auth"
	"slope-monitor-backend/internal/store"
)

// Options tunes the read endpoints.
type Options struct {
	WindowHours  int
	ReadingLimit int
	AlertLimit   int
	// Location is used for alert display times. Defaults to time.Local.
	Location *time.Location
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	webpush *webpush.Options
	auth    *auth.Manager
	opts    Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, webpushOptions *webpush.Options, m *auth.Manager, opts Options) *Handler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Handler{
		store:   s,
		webpush: webpushOptions,
		auth:    m,
		opts:    opts,
	}
}
