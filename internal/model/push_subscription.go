package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Devices limits notifications to the listed devices. Empty means all devices.
	Devices []PushSubscriptionDevice `gorm:"foreignKey:Endpoint;references:Endpoint;constraint:OnDelete:CASCADE"`
}

// PushSubscriptionDevice maps a subscription to one device it wants alerts for.
type PushSubscriptionDevice struct {
	Endpoint string `gorm:"primaryKey"`
	DeviceID string `gorm:"primaryKey;size:128;index"`
}

// DeviceIDs flattens the device mapping.
func (s PushSubscription) DeviceIDs() []string {
	ids := make([]string, len(s.Devices))
	for i, d := range s.Devices {
		ids[i] = d.DeviceID
	}
	return ids
}
