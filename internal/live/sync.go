package live

import (
	"context"
	"log"
	"sort"
	"time"

	"slope-monitor-backend/internal/model"
	"slope-monitor-backend/internal/realtime"
	"slope-monitor-backend/internal/store"
)

// DefaultWindowHours applies when a SensorFilter has no window.
const DefaultWindowHours = 24

// SensorFilter selects the readings of one device within a trailing window.
type SensorFilter struct {
	DeviceID    string
	WindowHours int
}

// SensorData keeps the readings of the selected device in ascending time order.
type SensorData = Binding[SensorFilter, []model.SensorReading]

// NewSensorData creates a sensor binding returning at most limit readings.
// The window is measured from the time of each fetch.
func NewSensorData(s store.Store, feed *realtime.Feed, limit int) *SensorData {
	query := func(ctx context.Context, f SensorFilter) ([]model.SensorReading, error) {
		return LoadReadings(ctx, s, f, limit, time.Now())
	}
	idle := func(f SensorFilter) bool { return f.DeviceID == "" }
	return newBinding(feed, realtime.SensorReadings, query, idle)
}

// LoadReadings fetches the newest readings in the window and returns them
// oldest first. Malformed readings are dropped.
func LoadReadings(ctx context.Context, s store.Store, f SensorFilter, limit int, now time.Time) ([]model.SensorReading, error) {
	hours := f.WindowHours
	if hours <= 0 {
		hours = DefaultWindowHours
	}
	readings, err := s.QueryReadings(ctx, store.ReadingQuery{
		DeviceID: f.DeviceID,
		Since:    now.UTC().Add(-time.Duration(hours) * time.Hour),
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.SensorReading, 0, len(readings))
	for _, r := range readings {
		if err := r.Validate(); err != nil {
			log.Printf("live: dropping reading: %v", err)
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// AlertFilter selects alerts by acknowledged flag and, optionally, device.
type AlertFilter struct {
	DeviceID     string
	Acknowledged bool
}

// Alerts keeps the newest matching alerts, newest first.
type Alerts = Binding[AlertFilter, []model.Alert]

// NewAlerts creates an alert binding returning at most limit alerts.
func NewAlerts(s store.Store, feed *realtime.Feed, limit int) *Alerts {
	query := func(ctx context.Context, f AlertFilter) ([]model.Alert, error) {
		return LoadAlerts(ctx, s, f, limit)
	}
	return newBinding(feed, realtime.Alerts, query, nil)
}

// LoadAlerts fetches matching alerts, newest first. Malformed alerts are dropped.
func LoadAlerts(ctx context.Context, s store.Store, f AlertFilter, limit int) ([]model.Alert, error) {
	alerts, err := s.QueryAlerts(ctx, store.AlertQuery{
		DeviceID:     f.DeviceID,
		Acknowledged: f.Acknowledged,
		Limit:        limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Alert, 0, len(alerts))
	for _, a := range alerts {
		if err := a.Validate(); err != nil {
			log.Printf("live: dropping alert: %v", err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
