// Package status classifies sensor metrics against per-device thresholds.
package status

import (
	"math"

	"slope-monitor-backend/internal/model"
)

// Level is the derived status of one metric.
type Level string

const (
	Normal   Level = "normal"
	Warning  Level = "warning"
	Critical Level = "critical"
)

const (
	warningRatio  = 1.0
	criticalRatio = 1.5
)

// Classify maps a value and its threshold to a status level.
// A nil or zero threshold means the metric is not limited and is always normal.
func Classify(value float64, threshold *float64) Level {
	if threshold == nil || *threshold == 0 {
		return Normal
	}
	ratio := value / *threshold
	switch {
	case ratio > criticalRatio:
		return Critical
	case ratio > warningRatio:
		return Warning
	}
	return Normal
}

// Metrics holds the status of each classified metric of a reading.
type Metrics struct {
	TiltX        Level `json:"tilt_x"`
	TiltY        Level `json:"tilt_y"`
	SoilMoisture Level `json:"soil_moisture"`
	Humidity     Level `json:"humidity"`
}

// Evaluate classifies every limited metric of r. Tilt is compared by magnitude.
// A nil t leaves every metric normal.
func Evaluate(r model.SensorReading, t *model.Thresholds) Metrics {
	var tiltMax, soilMax, humidityMax *float64
	if t != nil {
		tiltMax, soilMax, humidityMax = &t.TiltMax, &t.SoilMoistureMax, &t.HumidityMax
	}
	return Metrics{
		TiltX:        Classify(math.Abs(r.TiltX), tiltMax),
		TiltY:        Classify(math.Abs(r.TiltY), tiltMax),
		SoilMoisture: Classify(r.SoilMoisture, soilMax),
		Humidity:     Classify(r.Humidity, humidityMax),
	}
}
