package model

import "time"

// Domain event types recorded in the audit log.
const (
	EventUserEntered          = "USER_ENTERED_OFFICE"
	EventUserLeft             = "USER_LEFT_OFFICE"
	EventReservationCreated   = "RESERVATION_CREATED"
	EventReservationActivated = "RESERVATION_ACTIVATED"
	EventReservationExpired   = "RESERVATION_EXPIRED"
	EventQueueCleared         = "QUEUE_CLEARED"
	EventSystemReset          = "SYSTEM_RESET"
	EventForceUnlock          = "FORCE_UNLOCK"
	EventSystemRecovery       = "SYSTEM_RECOVERY"
)

// SystemEvent is an append-only audit log entry. Written by the state
// machine and admin actions, removed only by retention cleanup.
type SystemEvent struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	Timestamp       time.Time `gorm:"index;not null" json:"timestamp"`
	EventType       string    `gorm:"index;size:64;not null" json:"event_type"`
	UserCode        *string   `gorm:"size:64" json:"user_code,omitempty"`
	StateFrom       *string   `gorm:"size:32" json:"state_from,omitempty"`
	StateTo         *string   `gorm:"size:32" json:"state_to,omitempty"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	QueueSize       *int      `json:"queue_size,omitempty"`
	Details         string    `gorm:"size:512" json:"details,omitempty"`
}
