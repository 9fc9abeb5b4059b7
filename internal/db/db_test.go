package db

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slope-monitor-backend/config"
	"slope-monitor-backend/internal/model"
	"slope-monitor-backend/internal/realtime"
)

func TestInit_SQLite(t *testing.T) {
	gormDB, err := Init(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	for _, m := range []any{&model.SensorReading{}, &model.Alert{}, &model.Thresholds{}, &model.User{}, &model.PushSubscription{}, &model.PushSubscriptionDevice{}} {
		assert.True(t, gormDB.Migrator().HasTable(m), "%T", m)
	}
}

func TestInit_UnsupportedDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, `unsupported database driver "mysql"`)
}

func TestWatchChanges(t *testing.T) {
	gormDB, err := Init(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	feed := realtime.NewFeed(0)
	require.NoError(t, WatchChanges(gormDB, feed))

	var fetches atomic.Int32
	cancel := realtime.Subscribe(context.Background(), feed, realtime.Alerts,
		func(ctx context.Context) (int64, error) {
			fetches.Add(1)
			var n int64
			err := gormDB.WithContext(ctx).Model(&model.Alert{}).Where("acknowledged = ?", false).Count(&n).Error
			return n, err
		},
		func(int64) {}, func(error) {})
	defer cancel()
	require.Eventually(t, func() bool { return fetches.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Writes to other tables do not wake the subscription.
	require.NoError(t, gormDB.Create(&model.SensorReading{DeviceID: "D1", Timestamp: time.Now()}).Error)

	require.NoError(t, gormDB.Create(&model.Alert{DeviceID: "D1", Level: model.AlertLevelHigh, Message: "m", Timestamp: time.Now()}).Error)
	require.Eventually(t, func() bool { return fetches.Load() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, gormDB.Model(&model.Alert{}).Where("device_id = ?", "D1").Update("acknowledged", true).Error)
	require.Eventually(t, func() bool { return fetches.Load() == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, gormDB.Where("device_id = ?", "D1").Delete(&model.Alert{}).Error)
	require.Eventually(t, func() bool { return fetches.Load() == 4 }, time.Second, 5*time.Millisecond)
}
