package model

import "time"

// ReservationStatus is the lifecycle state of a queued claim on the office.
type ReservationStatus string

const (
	ReservationWaiting   ReservationStatus = "waiting"
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationNoShow    ReservationStatus = "no_show"
)

// Reservation represents a queued claim on the office. Queue order is
// CreatedAt ascending with ID as the tie-breaker; at most one reservation
// per user code may be waiting or active at any time.
type Reservation struct {
	ID        int64             `gorm:"primaryKey" json:"id"`
	UserCode  string            `gorm:"index;size:64;not null" json:"user_code"`
	CreatedAt time.Time         `gorm:"index;not null" json:"created_at"`
	Status    ReservationStatus `gorm:"index;size:16;not null;default:waiting" json:"status"`
	StartTime *time.Time        `json:"start_time,omitempty"` // set on activation
	EndTime   *time.Time        `json:"end_time,omitempty"`   // set on completion
}
