package model

import "time"

// ConfigEntry is a persisted override for a runtime tunable. Values are
// stored as strings and parsed by the dyncfg layer.
type ConfigEntry struct {
	Key         string    `gorm:"primaryKey;size:64" json:"key"`
	Value       string    `gorm:"size:256;not null" json:"value"`
	Description string    `gorm:"size:256" json:"description,omitempty"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}
