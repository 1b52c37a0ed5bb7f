package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"office-queue-backend/internal/model"
)

// Store defines the persistence operations consumed by the engine, the
// scheduler and the API layer. The engine is the only mutator of queue
// state; the store's transactions keep its mutations atomic with respect
// to concurrent API readers.
type Store interface {
	// DB exposes the underlying gorm handle for collaborator layers
	// (push subscriptions, notification worker).
	DB() *gorm.DB

	// Users.
	UserExists(ctx context.Context, code string) (bool, error)
	GetUserName(ctx context.Context, code string) (string, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, code, name string) error
	UpdateUser(ctx context.Context, code, name string) error
	DeleteUser(ctx context.Context, code string) error

	// Queue. Enqueue enforces the per-user uniqueness invariant and the
	// queue-size limit in a single transaction and returns the created
	// reservation with its 1-indexed position.
	Enqueue(ctx context.Context, userCode string, maxQueueSize int) (*model.Reservation, int, error)
	PeekFront(ctx context.Context) (*model.Reservation, error)
	MarkActive(ctx context.Context, id int64, now time.Time) error
	MarkCompleted(ctx context.Context, id int64, now time.Time) error
	MarkNoShow(ctx context.Context, userCode string) error
	QueueSize(ctx context.Context) (int, error)
	ListWaiting(ctx context.Context) ([]model.Reservation, error)
	ClearQueue(ctx context.Context) (int64, error)

	// Occupancy sessions and the audit log. Best-effort from the engine's
	// point of view: a write failure never rolls back a state transition.
	OpenSession(ctx context.Context, start time.Time, accessType string, userCode *string) (int64, error)
	CloseSession(ctx context.Context, id int64, end time.Time, durationMinutes int) error
	CloseDanglingSessions(ctx context.Context, now time.Time) (int64, error)
	RecordEvent(ctx context.Context, ev *model.SystemEvent) error

	// Statistics.
	AverageOccupationMinutes(ctx context.Context, days int) (float64, bool, error)
	DailyStats(ctx context.Context, day time.Time) (*DailyStats, error)
	CleanupOldData(ctx context.Context, before time.Time) error

	// Runtime config rows.
	GetConfigValue(ctx context.Context, key string) (string, bool, error)
	SetConfigValue(ctx context.Context, key, value, description string) error
	AllConfigValues(ctx context.Context) (map[string]string, error)
	ResetConfig(ctx context.Context) error
}

// DailyStats aggregates one day of office usage.
type DailyStats struct {
	Date             string         `json:"date"`
	TotalOccupations int64          `json:"total_occupations"`
	AvgDuration      float64        `json:"avg_duration_minutes"`
	TotalMinutes     int64          `json:"total_minutes"`
	AccessTypes      map[string]int `json:"access_types"`
	NoShows          int64          `json:"no_shows"`
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}
