package model

import "time"

// PushSubscription holds a browser push subscription bound to a user code.
// Notifications addressed to that user are fanned out to every endpoint
// registered under it.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	UserCode  string    `gorm:"index;size:64;not null"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
