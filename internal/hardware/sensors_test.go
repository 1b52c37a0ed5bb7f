package hardware

import (
	"context"
	"errors"
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
	"office-queue-backend/internal/store"
)

func newTestProvider(t *testing.T) *dyncfg.Provider {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})
	require.NoError(t, db.Migrate(gormDB))

	var cfg config.Config
	config.ApplyDefaults(&cfg)
	return dyncfg.New(store.NewGormStore(gormDB), cfg.Tunables)
}

type testRig struct {
	agg      *Aggregator
	cfg      *dyncfg.Provider
	motion   *SimMotionSensor
	distance *SimDistanceSensor
	now      time.Time
}

func newTestRig(t *testing.T) *testRig {
	rig := &testRig{
		cfg:      newTestProvider(t),
		motion:   NewSimMotionSensor(),
		distance: NewSimDistanceSensor(),
		now:      time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
	}
	rig.agg = NewAggregator(rig.cfg, rig.motion, rig.distance)
	rig.agg.now = func() time.Time { return rig.now }
	return rig
}

func (r *testRig) sample() PresenceSnapshot {
	r.agg.Sample()
	return r.agg.ReadPresence()
}

func TestFusionANDMode(t *testing.T) {
	rig := newTestRig(t)

	// Nothing in range, no movement.
	snapshot := rig.sample()
	assert.False(t, snapshot.PresenceDetected)
	assert.Equal(t, float64(MaxDistanceCM), snapshot.DistanceCM)

	// Distance alone is not enough in AND mode.
	rig.distance.SetDistance(150)
	snapshot = rig.sample()
	assert.False(t, snapshot.PresenceDetected)

	// Distance plus live movement.
	rig.motion.SetMovement(true)
	snapshot = rig.sample()
	assert.True(t, snapshot.PresenceDetected)
	assert.True(t, snapshot.PIRMovement)
}

func TestFusionRecentMovementCountsAsPresence(t *testing.T) {
	rig := newTestRig(t)

	rig.distance.SetDistance(150)
	rig.motion.SetMovement(true)
	assert.True(t, rig.sample().PresenceDetected)

	// Someone sitting still: the PIR goes quiet but the last movement is
	// within the movement timeout, so presence holds.
	rig.motion.SetMovement(false)
	rig.now = rig.now.Add(3 * time.Minute)
	snapshot := rig.sample()
	assert.True(t, snapshot.PresenceDetected)
	assert.False(t, snapshot.PIRMovement)

	// Past the timeout the movement term expires.
	rig.now = rig.now.Add(3 * time.Minute)
	assert.False(t, rig.sample().PresenceDetected)
}

func TestFusionORMode(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.cfg.Set(context.Background(), dyncfg.KeyDualSensorMode, dyncfg.ModeOR))

	// Movement alone suffices even with nothing in range.
	rig.motion.SetMovement(true)
	assert.True(t, rig.sample().PresenceDetected)

	// Distance alone suffices too.
	rig.motion.SetMovement(false)
	rig.now = rig.now.Add(10 * time.Minute)
	rig.distance.SetDistance(100)
	assert.True(t, rig.sample().PresenceDetected)
}

func TestFusionDisabledSensorsAreAbsentTerms(t *testing.T) {
	t.Run("only ultrasonic", func(t *testing.T) {
		rig := newTestRig(t)
		require.NoError(t, rig.cfg.Set(context.Background(), dyncfg.KeyUsePIRSensor, "false"))

		rig.distance.SetDistance(150)
		assert.True(t, rig.sample().PresenceDetected, "distance decides alone")

		rig.distance.SetDistance(500)
		assert.False(t, rig.sample().PresenceDetected)
	})

	t.Run("only PIR", func(t *testing.T) {
		rig := newTestRig(t)
		require.NoError(t, rig.cfg.Set(context.Background(), dyncfg.KeyUseUltrasonicSensor, "false"))

		rig.motion.SetMovement(true)
		assert.True(t, rig.sample().PresenceDetected, "movement decides alone")
	})

	t.Run("both disabled", func(t *testing.T) {
		rig := newTestRig(t)
		ctx := context.Background()
		require.NoError(t, rig.cfg.Set(ctx, dyncfg.KeyUsePIRSensor, "false"))
		require.NoError(t, rig.cfg.Set(ctx, dyncfg.KeyUseUltrasonicSensor, "false"))

		rig.motion.SetMovement(true)
		rig.distance.SetDistance(10)
		assert.False(t, rig.sample().PresenceDetected)
	})
}

type failingDistanceSensor struct{}

func (failingDistanceSensor) DistanceCM() (float64, error) {
	return 0, errors.New("echo timeout")
}

func TestRangingFailureYieldsSentinel(t *testing.T) {
	rig := newTestRig(t)
	rig.agg = NewAggregator(rig.cfg, rig.motion, failingDistanceSensor{})
	rig.agg.now = func() time.Time { return rig.now }

	snapshot := rig.sample()
	assert.Equal(t, float64(MaxDistanceCM), snapshot.DistanceCM)
	assert.False(t, snapshot.PresenceDetected)
}
