package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"

	"slope-monitor-backend/internal/model"
	"slope-monitor-backend/internal/parse"
	"slope-monitor-backend/internal/store"
)

// ErrWrite wraps failed acknowledge and threshold writes.
var ErrWrite = errors.New("dashboard: write failed")

const savedMessage = "Thresholds updated successfully"

// AcknowledgeAlert marks an alert as acknowledged. The local alert list is not
// touched; the live alert subscription picks the change up. Failures are
// logged and returned for callers that care, but are not shown to the user.
func AcknowledgeAlert(ctx context.Context, s store.Store, alertID string) error {
	if err := s.UpdateAlert(ctx, alertID, map[string]any{"acknowledged": true}); err != nil {
		err = fmt.Errorf("%w: acknowledge alert %q: %w", ErrWrite, alertID, err)
		log.Printf("Error acknowledging alert: %v", err)
		return err
	}
	return nil
}

// SaveThresholds parses the form and overwrites the device's thresholds.
// It returns the status message to show; err is non-nil when the save failed.
// Blank form fields fall back to current.
func SaveThresholds(ctx context.Context, s store.Store, deviceID string, form parse.ThresholdForm, current model.Thresholds) (string, error) {
	if deviceID == "" {
		return failed(errors.New("no device selected"))
	}

	t, err := parse.ParseThresholds(deviceID, form, current)
	if err != nil {
		return failed(err)
	}
	if err := s.SetThresholds(ctx, t); err != nil {
		log.Printf("Error updating thresholds for device %q: %v", deviceID, err)
		return failed(err)
	}
	return savedMessage, nil
}

func failed(cause error) (string, error) {
	return "Error updating thresholds: " + cause.Error(), fmt.Errorf("%w: %w", ErrWrite, cause)
}
