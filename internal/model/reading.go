package model

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SensorReading is a single measurement reported by a field device.
// Readings are written by the ingestion pipeline and never modified here.
// The timestamp is part of the primary key so the table can become a
// TimescaleDB hypertable.
type SensorReading struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	DeviceID     string    `gorm:"size:128;not null;index:idx_readings_device_ts,priority:1" json:"device_id"`
	Timestamp    time.Time `gorm:"primaryKey;index:idx_readings_device_ts,priority:2" json:"timestamp"`
	TiltX        float64   `json:"tilt_x"`
	TiltY        float64   `json:"tilt_y"`
	TiltZ        float64   `json:"tilt_z"`
	SoilMoisture float64   `json:"soil_moisture"`
	Humidity     float64   `json:"humidity"`
	Temperature  float64   `json:"temperature"`
}

// TableName pins the collection name.
func (SensorReading) TableName() string { return "sensor_readings" }

// BeforeCreate assigns a document id when the writer did not supply one and
// stores the timestamp in UTC. sqlite keeps timestamps as text, so mixed
// offsets would not compare or sort as instants.
func (r *SensorReading) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Timestamp = r.Timestamp.UTC()
	return nil
}

// Validate rejects readings that would poison status computation.
func (r SensorReading) Validate() error {
	if r.DeviceID == "" {
		return fmt.Errorf("reading %q: missing device_id", r.ID)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("reading %q: missing timestamp", r.ID)
	}
	metrics := map[string]float64{
		"tilt_x":        r.TiltX,
		"tilt_y":        r.TiltY,
		"tilt_z":        r.TiltZ,
		"soil_moisture": r.SoilMoisture,
		"humidity":      r.Humidity,
		"temperature":   r.Temperature,
	}
	for name, v := range metrics {
		if !finite(v) {
			return fmt.Errorf("reading %q: %s is not a finite number", r.ID, name)
		}
	}
	return nil
}

// Metric returns the named metric value. ok is false for unknown names.
func (r SensorReading) Metric(name string) (value float64, ok bool) {
	switch name {
	case "tilt_x":
		return r.TiltX, true
	case "tilt_y":
		return r.TiltY, true
	case "tilt_z":
		return r.TiltZ, true
	case "soil_moisture":
		return r.SoilMoisture, true
	case "humidity":
		return r.Humidity, true
	case "temperature":
		return r.Temperature, true
	}
	return 0, false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
