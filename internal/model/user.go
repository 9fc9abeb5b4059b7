package model

import "time"

// User is a dashboard account. Only users with Admin set may hold a session.
type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:256;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Admin        bool      `gorm:"not null;default:false" json:"admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
