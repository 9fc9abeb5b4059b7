package live

import (
	"context"
	"errors"
	"fmt"

	"slope-monitor-backend/internal/model"
	"slope-monitor-backend/internal/store"
)

// FetchDevices reads the distinct device ids once.
func FetchDevices(ctx context.Context, s store.Store) State[[]string] {
	ids, err := s.DistinctDeviceIDs(ctx)
	if err != nil {
		return State[[]string]{Err: fmt.Errorf("%w: %w", ErrRead, err)}
	}
	if ids == nil {
		ids = []string{}
	}
	return State[[]string]{Data: ids}
}

// FetchThresholds reads a device's thresholds once. A device without a
// stored record gets the defaults, which are not written back.
// An empty device id reads nothing.
func FetchThresholds(ctx context.Context, s store.Store, deviceID string) State[*model.Thresholds] {
	if deviceID == "" {
		return State[*model.Thresholds]{}
	}

	t, err := s.GetThresholds(ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		t = model.DefaultThresholds(deviceID)
		return State[*model.Thresholds]{Data: &t}
	}
	if err != nil {
		return State[*model.Thresholds]{Err: fmt.Errorf("%w: %w", ErrRead, err)}
	}
	if err := t.Validate(); err != nil {
		return State[*model.Thresholds]{Err: fmt.Errorf("%w: %w", ErrRead, err)}
	}
	return State[*model.Thresholds]{Data: &t}
}
