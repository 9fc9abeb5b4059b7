package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slope-monitor-backend/internal/db"
	"slope-monitor-backend/internal/live"
	"slope-monitor-backend/internal/model"
	"slope-monitor-backend/internal/realtime"
	"slope-monitor-backend/internal/store"
)

type recorder struct {
	mu          sync.Mutex
	broadcasted []string
	dispatched  []string
}

func (r *recorder) BroadcastAlert(alert any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasted = append(r.broadcasted, alert.(model.Alert).ID)
}

func (r *recorder) Dispatch(ctx context.Context, alert model.Alert) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched = append(r.dispatched, alert.ID)
	return true
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.broadcasted...), append([]string(nil), r.dispatched...)
}

func TestWatcher_AnnouncesOnlyNewSevereAlerts(t *testing.T) {
	gormDB := newSQLiteDB(t)
	feed := realtime.NewFeed(0)
	require.NoError(t, db.WatchChanges(gormDB, feed))

	now := time.Now().UTC()
	require.NoError(t, gormDB.Create(&model.Alert{ID: "old", DeviceID: "D1", Level: model.AlertLevelCritical, Message: "m", Timestamp: now.Add(-time.Hour)}).Error)

	rec := &recorder{}
	w := NewWatcher(store.NewGormStore(gormDB), feed, 50, rec, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.primed
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, gormDB.Create([]model.Alert{
		{ID: "minor", DeviceID: "D1", Level: model.AlertLevelMedium, Message: "m", Timestamp: now},
		{ID: "severe", DeviceID: "D2", Level: model.AlertLevelHigh, Message: "m", Timestamp: now},
	}).Error)

	require.Eventually(t, func() bool {
		b, _ := rec.snapshot()
		return len(b) > 0
	}, 2*time.Second, 5*time.Millisecond)

	// Acknowledging changes the result set but announces nothing.
	require.NoError(t, gormDB.Model(&model.Alert{}).Where("id = ?", "old").Update("acknowledged", true).Error)
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		_, ok := w.seen["old"]
		return !ok
	}, 2*time.Second, 5*time.Millisecond)

	broadcasted, dispatched := rec.snapshot()
	assert.Equal(t, []string{"severe"}, broadcasted)
	assert.Equal(t, []string{"severe"}, dispatched)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.Equal(t, 0, feed.Active(realtime.Alerts))
}

func TestWatcher_NilTargets(t *testing.T) {
	w := &Watcher{seen: map[string]struct{}{}, primed: true, minLevel: model.AlertLevelHigh, ctx: context.Background()}
	assert.NotPanics(t, func() {
		w.observe(live.State[[]model.Alert]{Data: []model.Alert{{ID: "x", Level: model.AlertLevelCritical}}})
	})
}
