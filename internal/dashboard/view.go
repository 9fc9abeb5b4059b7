package dashboard

import (
	"fmt"
	"math"
	"time"

	"slope-monitor-backend/internal/auth"
	"slope-monitor-backend/internal/model"
	"slope-monitor-backend/internal/status"
)

// View is the serialisable state of a dashboard page.
type View struct {
	User           *auth.User `json:"user"`
	Devices        []string   `json:"devices"`
	DevicesLoading bool       `json:"devices_loading"`
	SelectedDevice string     `json:"selected_device"`

	Cards       []Card  `json:"cards"`
	Charts      []Chart `json:"charts"`
	DataLoading bool    `json:"data_loading"`

	Alerts        []AlertItem `json:"alerts"`
	AlertsLoading bool        `json:"alerts_loading"`

	Thresholds *model.Thresholds `json:"thresholds"`

	// Message is the transient result of the last threshold save.
	Message string `json:"message,omitempty"`
	// Errors holds read and subscription failures keyed by section.
	Errors map[string]string `json:"errors,omitempty"`
}

// Card summarises the latest value of one metric.
type Card struct {
	Title  string       `json:"title"`
	Value  float64      `json:"value"`
	Unit   string       `json:"unit"`
	Icon   string       `json:"icon"`
	Status status.Level `json:"status"`
}

// Point is one chart sample.
type Point struct {
	Timestamp   time.Time `json:"timestamp"`
	Value       float64   `json:"value"`
	DisplayTime string    `json:"display_time"`
}

// Chart is a time series for one metric, oldest point first.
type Chart struct {
	Metric string  `json:"metric"`
	Label  string  `json:"label"`
	Color  string  `json:"color"`
	Points []Point `json:"points"`
}

// AlertItem is an alert with display fields.
type AlertItem struct {
	model.Alert
	DisplayTime string `json:"display_time"`
	ValueText   string `json:"value_text"`
}

var metricLabels = map[string]string{
	"tilt_x":        "Tilt X (°)",
	"tilt_y":        "Tilt Y (°)",
	"tilt_z":        "Tilt Z (°)",
	"soil_moisture": "Soil Moisture (%)",
	"humidity":      "Humidity (%)",
	"temperature":   "Temperature (°C)",
}

var charts = []struct {
	metric string
	color  string
}{
	{"tilt_x", "#ef4444"},
	{"soil_moisture", "#3b82f6"},
	{"humidity", "#10b981"},
	{"temperature", "#f59e0b"},
}

// MetricLabel returns the display label of a metric, or the name itself.
func MetricLabel(metric string) string {
	if l, ok := metricLabels[metric]; ok {
		return l
	}
	return metric
}

// BuildCards returns the metric cards for the latest reading.
func BuildCards(latest model.SensorReading, t *model.Thresholds) []Card {
	st := status.Evaluate(latest, t)
	return []Card{
		{Title: "Tilt X", Value: latest.TiltX, Unit: "°", Icon: "tilt", Status: st.TiltX},
		{Title: "Tilt Y", Value: latest.TiltY, Unit: "°", Icon: "tilt", Status: st.TiltY},
		{Title: "Soil Moisture", Value: latest.SoilMoisture, Unit: "%", Icon: "moisture", Status: st.SoilMoisture},
		{Title: "Humidity", Value: latest.Humidity, Unit: "%", Icon: "temperature", Status: st.Humidity},
	}
}

// BuildCharts shapes readings, already in ascending order, into chart series.
func BuildCharts(readings []model.SensorReading, loc *time.Location) []Chart {
	out := make([]Chart, 0, len(charts))
	for _, c := range charts {
		points := make([]Point, 0, len(readings))
		for _, r := range readings {
			v, _ := r.Metric(c.metric)
			points = append(points, Point{
				Timestamp:   r.Timestamp,
				Value:       v,
				DisplayTime: r.Timestamp.In(loc).Format("15:04"),
			})
		}
		out = append(out, Chart{Metric: c.metric, Label: MetricLabel(c.metric), Color: c.color, Points: points})
	}
	return out
}

// BuildAlertItems adds display fields to alerts.
func BuildAlertItems(alerts []model.Alert, loc *time.Location) []AlertItem {
	out := make([]AlertItem, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertItem{
			Alert:       a,
			DisplayTime: a.Timestamp.In(loc).Format("Jan 2, 15:04"),
			ValueText:   fmt.Sprintf("Value: %.2f (Threshold: %s)", a.Value, formatThreshold(a.Threshold)),
		})
	}
	return out
}

func formatThreshold(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}
