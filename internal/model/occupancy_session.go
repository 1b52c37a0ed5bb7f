package model

import "time"

// Access types for an occupancy session.
const (
	AccessDirect      = "direct"
	AccessReservation = "reservation"
)

// OccupancySession is a record of time the office was held. Created when
// occupancy begins, closed when presence is lost.
type OccupancySession struct {
	ID              int64      `gorm:"primaryKey" json:"id"`
	StartTime       time.Time  `gorm:"index;not null" json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	AccessType      string     `gorm:"size:16;not null" json:"access_type"`
	UserCode        *string    `gorm:"size:64" json:"user_code,omitempty"` // nil for anonymous direct access
	DurationMinutes *int       `json:"duration_minutes,omitempty"`         // computed on close
	CreatedAt       time.Time  `gorm:"not null" json:"-"`
}
