package parse

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"slope-monitor-backend/internal/model"
)

// ThresholdForm carries threshold fields exactly as the user typed them.
type ThresholdForm struct {
	TiltMax         Input `json:"tilt_max"`
	SoilMoistureMax Input `json:"soil_moisture_max"`
	SoilMoistureMin Input `json:"soil_moisture_min"`
	HumidityMax     Input `json:"humidity_max"`
}

// Input is one raw form value. In JSON it may be a string, a number or null.
type Input string

func (in *Input) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*in = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*in = Input(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected a number or a string, got %s", data)
	}
	*in = Input(n.String())
	return nil
}

// FieldError names the form field that could not be parsed.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e *FieldError) Unwrap() error { return e.Err }

// ParseThresholds builds the full record to save for deviceID.
// Blank fields keep the value from current, which is what the form showed.
// No range checks are made; the form's min/max are hints only.
func ParseThresholds(deviceID string, form ThresholdForm, current model.Thresholds) (model.Thresholds, error) {
	out := current
	out.DeviceID = deviceID

	fields := []struct {
		name string
		raw  Input
		dst  *float64
	}{
		{"tilt_max", form.TiltMax, &out.TiltMax},
		{"soil_moisture_max", form.SoilMoistureMax, &out.SoilMoistureMax},
		{"soil_moisture_min", form.SoilMoistureMin, &out.SoilMoistureMin},
		{"humidity_max", form.HumidityMax, &out.HumidityMax},
	}
	for _, f := range fields {
		v, ok, err := parseFloat(string(f.raw))
		if err != nil {
			return model.Thresholds{}, &FieldError{Field: f.name, Err: err}
		}
		if ok {
			*f.dst = v
		}
	}
	return out, nil
}

// parseFloat reports ok=false for blank input.
func parseFloat(raw string) (float64, bool, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("unable to parse number: %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("not a finite number: %q", raw)
	}
	return v, true, nil
}
