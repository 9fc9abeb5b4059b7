package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AlertLevel is the severity of an alert. Levels are ordered.
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelMedium   AlertLevel = "medium"
	AlertLevelHigh     AlertLevel = "high"
	AlertLevelCritical AlertLevel = "critical"
)

// Rank orders levels: info < medium < high < critical. Unknown levels rank 0.
func (l AlertLevel) Rank() int {
	switch l {
	case AlertLevelInfo:
		return 1
	case AlertLevelMedium:
		return 2
	case AlertLevelHigh:
		return 3
	case AlertLevelCritical:
		return 4
	}
	return 0
}

// AtLeast reports whether l is as severe as other.
func (l AlertLevel) AtLeast(other AlertLevel) bool {
	return l.Rank() >= other.Rank()
}

// Alert is raised by the ingestion pipeline when a reading violates a threshold.
// The dashboard only ever flips Acknowledged from false to true.
type Alert struct {
	ID           string     `gorm:"primaryKey;size:64" json:"id"`
	DeviceID     string     `gorm:"size:128;not null;index:idx_alerts_ack_device_ts,priority:2" json:"device_id"`
	Level        AlertLevel `gorm:"size:16;not null" json:"level"`
	Message      string     `gorm:"not null" json:"message"`
	Timestamp    time.Time  `gorm:"not null;index:idx_alerts_ack_device_ts,priority:3" json:"timestamp"`
	Value        float64    `json:"value"`
	Threshold    float64    `json:"threshold"`
	Acknowledged bool       `gorm:"not null;default:false;index:idx_alerts_ack_device_ts,priority:1" json:"acknowledged"`
}

// TableName pins the collection name.
func (Alert) TableName() string { return "alerts" }

// BeforeCreate assigns a document id when the writer did not supply one and
// stores the timestamp in UTC, like SensorReading.
func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Timestamp = a.Timestamp.UTC()
	return nil
}

// Validate checks the fields the dashboard relies on.
func (a Alert) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("alert: missing id")
	}
	if a.DeviceID == "" {
		return fmt.Errorf("alert %q: missing device_id", a.ID)
	}
	if a.Level.Rank() == 0 {
		return fmt.Errorf("alert %q: unknown level %q", a.ID, a.Level)
	}
	if a.Timestamp.IsZero() {
		return fmt.Errorf("alert %q: missing timestamp", a.ID)
	}
	if !finite(a.Value) || !finite(a.Threshold) {
		return fmt.Errorf("alert %q: value or threshold is not a finite number", a.ID)
	}
	return nil
}
