package store

import "time"

// ReadingQuery filters sensor readings for one device.
type ReadingQuery struct {
	DeviceID string
	// Since is inclusive. Zero means no lower bound.
	Since time.Time
	Limit int
}

// AlertQuery filters alerts. An empty DeviceID matches every device.
type AlertQuery struct {
	DeviceID     string
	Acknowledged bool
	Limit        int
}
