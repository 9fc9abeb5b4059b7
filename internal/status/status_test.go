package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"slope-monitor-backend/internal/model"
)

func ptr(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	testCases := []struct {
		name      string
		value     float64
		threshold *float64
		expected  Level
	}{
		{name: "no threshold", value: 1e9, threshold: nil, expected: Normal},
		{name: "zero threshold is disabled", value: 5, threshold: ptr(0), expected: Normal},
		{name: "below threshold", value: 5, threshold: ptr(10), expected: Normal},
		{name: "at threshold", value: 10, threshold: ptr(10), expected: Normal},
		{name: "just above threshold", value: 10.01, threshold: ptr(10), expected: Warning},
		{name: "at critical ratio", value: 15, threshold: ptr(10), expected: Warning},
		{name: "above critical ratio", value: 15.01, threshold: ptr(10), expected: Critical},
		{name: "double the threshold", value: 20, threshold: ptr(10), expected: Critical},
		{name: "negative value", value: -20, threshold: ptr(10), expected: Normal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.value, tc.threshold))
		})
	}
}

func TestEvaluate(t *testing.T) {
	thresholds := model.Thresholds{DeviceID: "D1", TiltMax: 10, SoilMoistureMax: 80, HumidityMax: 90}

	t.Run("tilt uses magnitude", func(t *testing.T) {
		got := Evaluate(model.SensorReading{TiltX: 20, TiltY: -12, SoilMoisture: 40, Humidity: 50}, &thresholds)
		assert.Equal(t, Metrics{TiltX: Critical, TiltY: Warning, SoilMoisture: Normal, Humidity: Normal}, got)
	})

	t.Run("moisture and humidity", func(t *testing.T) {
		got := Evaluate(model.SensorReading{SoilMoisture: 121, Humidity: 91}, &thresholds)
		assert.Equal(t, Critical, got.SoilMoisture)
		assert.Equal(t, Warning, got.Humidity)
	})

	t.Run("no thresholds", func(t *testing.T) {
		got := Evaluate(model.SensorReading{TiltX: 100, SoilMoisture: 500}, nil)
		assert.Equal(t, Metrics{TiltX: Normal, TiltY: Normal, SoilMoisture: Normal, Humidity: Normal}, got)
	})
}
