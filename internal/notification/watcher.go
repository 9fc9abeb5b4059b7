package notification

import (
	"context"
	"log"
	"sync"

	"slope-monitor-backend/internal/live"
	"slope-monitor-backend/internal/model"
	"slope-monitor-backend/internal/realtime"
	"slope-monitor-backend/internal/store"
)

// PushLevel is the lowest alert level that is announced.
const PushLevel = model.AlertLevelHigh

// Broadcaster fans an alert out to connected dashboards.
type Broadcaster interface {
	BroadcastAlert(alert any)
}

// Dispatcher queues an alert for push delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert model.Alert) bool
}

// Watcher follows unacknowledged alerts of every device and announces the
// ones it has not seen before.
type Watcher struct {
	alerts   *live.Alerts
	hub      Broadcaster
	pool     Dispatcher
	minLevel model.AlertLevel

	ctx    context.Context
	mu     sync.Mutex
	seen   map[string]struct{}
	primed bool
}

// NewWatcher creates a watcher. hub and pool may be nil.
func NewWatcher(s store.Store, feed *realtime.Feed, limit int, hub Broadcaster, pool Dispatcher) *Watcher {
	w := &Watcher{
		alerts:   live.NewAlerts(s, feed, limit),
		hub:      hub,
		pool:     pool,
		minLevel: PushLevel,
		seen:     make(map[string]struct{}),
	}
	w.alerts.OnChange(w.observe)
	return w
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.alerts.Start(live.AlertFilter{})
	<-ctx.Done()
	w.alerts.Stop()
}

// The first snapshot is what already existed at start-up; it is recorded
// without announcing anything.
func (w *Watcher) observe(st live.State[[]model.Alert]) {
	if st.Loading {
		return
	}
	if st.Err != nil {
		log.Printf("Alert watcher stopped: %v", st.Err)
		return
	}

	w.mu.Lock()
	ctx := w.ctx
	current := make(map[string]struct{}, len(st.Data))
	var fresh []model.Alert
	for _, a := range st.Data {
		current[a.ID] = struct{}{}
		if _, ok := w.seen[a.ID]; !ok && w.primed && a.Level.AtLeast(w.minLevel) {
			fresh = append(fresh, a)
		}
	}
	// Acknowledged alerts never come back, so only the current ids are kept.
	w.seen = current
	w.primed = true
	w.mu.Unlock()

	for _, a := range fresh {
		log.Printf("New %s alert %s on device %s", a.Level, a.ID, a.DeviceID)
		if w.hub != nil {
			w.hub.BroadcastAlert(a)
		}
		if w.pool != nil && !w.pool.Dispatch(ctx, a) {
			log.Printf("Dropped push notification for alert %s: shutting down", a.ID)
		}
	}
}
