package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"office-queue-backend/config"
	"office-queue-backend/internal/db"
	"office-queue-backend/internal/dyncfg"
	"office-queue-backend/internal/engine"
	"office-queue-backend/internal/hardware"
	"office-queue-backend/internal/hub"
	"office-queue-backend/internal/model"
	"office-queue-backend/internal/notification"
	"office-queue-backend/internal/store"
)

type stubSensors struct{}

func (stubSensors) ReadPresence() hardware.PresenceSnapshot { return hardware.PresenceSnapshot{} }

func newTestScheduler(t *testing.T) (*Scheduler, store.Store, *gorm.DB, *dyncfg.Provider) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})
	require.NoError(t, db.Migrate(gormDB))

	appStore := store.NewGormStore(gormDB)
	require.NoError(t, appStore.CreateUser(context.Background(), "07", "User 07"))

	var cfg config.Config
	config.ApplyDefaults(&cfg)
	tunables := dyncfg.New(appStore, cfg.Tunables)

	gateway := notification.NewGateway(false, 1, gormDB, nil)
	eng := engine.New(appStore, tunables, stubSensors{}, hardware.NewButton(), gateway)

	s := New(eng, appStore, tunables, hardware.NewLogDisplay(), hub.New(),
		time.Second, cfg.Database.RetentionDays)
	return s, appStore, gormDB, tunables
}

func TestCycleBroadcastsStatus(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)

	updates, cancel := s.hub.Subscribe()
	defer cancel()

	s.cycle(context.Background())

	select {
	case payload := <-updates:
		assert.Contains(t, string(payload), `"state":"FREE"`)
	default:
		t.Fatal("cycle did not publish a status snapshot")
	}
}

func TestDailyAutoResetRunsOnce(t *testing.T) {
	s, appStore, _, tunables := newTestScheduler(t)
	ctx := context.Background()
	require.NoError(t, tunables.Set(ctx, dyncfg.KeyAutoResetTime, "03:00"))

	_, _, err := appStore.Enqueue(ctx, "07", 7)
	require.NoError(t, err)

	day := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return day }
	s.lastResetDay = "2026-08-27"
	s.lastCleanupDay = day.Format("2006-01-02")

	s.maintenance(ctx)

	size, err := appStore.QueueSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)

	// Re-enqueue; the same day never resets twice.
	_, _, err = appStore.Enqueue(ctx, "07", 7)
	require.NoError(t, err)
	s.maintenance(ctx)
	size, err = appStore.QueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestAutoResetWaitsForConfiguredTime(t *testing.T) {
	s, appStore, _, tunables := newTestScheduler(t)
	ctx := context.Background()
	require.NoError(t, tunables.Set(ctx, dyncfg.KeyAutoResetTime, "23:00"))

	_, _, err := appStore.Enqueue(ctx, "07", 7)
	require.NoError(t, err)

	day := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return day }
	s.lastResetDay = "2026-08-27"
	s.lastCleanupDay = day.Format("2006-01-02")

	s.maintenance(ctx)

	size, err := appStore.QueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size, "reset time not reached yet")
}

func TestRetentionCleanupRunsOnDayChange(t *testing.T) {
	s, appStore, gormDB, _ := newTestScheduler(t)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -60)
	require.NoError(t, appStore.RecordEvent(ctx, &model.SystemEvent{
		Timestamp: old,
		EventType: model.EventUserLeft,
	}))

	s.lastCleanupDay = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	s.maintenance(ctx)

	var events int64
	require.NoError(t, gormDB.Model(&model.SystemEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}
