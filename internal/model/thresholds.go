package model

import (
	"fmt"
	"time"
)

// Default thresholds used when a device has no stored record.
const (
	DefaultTiltMax         = 15.0
	DefaultSoilMoistureMax = 80.0
	DefaultHumidityMax     = 90.0
	DefaultSoilMoistureMin = 10.0
)

// Thresholds holds the per-device alert limits. One record per device.
type Thresholds struct {
	DeviceID        string    `gorm:"primaryKey;size:128" json:"device_id"`
	TiltMax         float64   `gorm:"not null" json:"tilt_max"`
	SoilMoistureMax float64   `gorm:"not null" json:"soil_moisture_max"`
	SoilMoistureMin float64   `gorm:"not null" json:"soil_moisture_min"`
	HumidityMax     float64   `gorm:"not null" json:"humidity_max"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName pins the collection name.
func (Thresholds) TableName() string { return "thresholds" }

// DefaultThresholds returns the in-memory defaults for a device.
// The record is not persisted until an admin saves it.
func DefaultThresholds(deviceID string) Thresholds {
	return Thresholds{
		DeviceID:        deviceID,
		TiltMax:         DefaultTiltMax,
		SoilMoistureMax: DefaultSoilMoistureMax,
		HumidityMax:     DefaultHumidityMax,
		SoilMoistureMin: DefaultSoilMoistureMin,
	}
}

// Validate checks every limit is a finite number.
func (t Thresholds) Validate() error {
	if t.DeviceID == "" {
		return fmt.Errorf("thresholds: missing device_id")
	}
	for name, v := range map[string]float64{
		"tilt_max":          t.TiltMax,
		"soil_moisture_max": t.SoilMoistureMax,
		"soil_moisture_min": t.SoilMoistureMin,
		"humidity_max":      t.HumidityMax,
	} {
		if !finite(v) {
			return fmt.Errorf("thresholds %q: %s is not a finite number", t.DeviceID, name)
		}
	}
	return nil
}
