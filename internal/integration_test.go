package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"office-queue-backend/config"
	"office-queue-backend/internal/api"
	"office-queue-backend/internal/db"
	"office-queue-backend/internal/dyncfg"
	"office-queue-backend/internal/engine"
	"office-queue-backend/internal/hardware"
	"office-queue-backend/internal/hub"
	"office-queue-backend/internal/model"
	"office-queue-backend/internal/notification"
	"office-queue-backend/internal/scheduler"
	"office-queue-backend/internal/store"
)

// TestOccupancyLifecycle boots the full stack on an in-memory database and
// walks a booking through activation, entry and departure, driven by the
// real scheduler loop and simulated sensors.
func TestOccupancyLifecycle(t *testing.T) {
	testDB, err := gorm.Open(sqlite.Open("file:integration?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()
	require.NoError(t, db.Migrate(testDB))

	appStore := store.NewGormStore(testDB)
	require.NoError(t, appStore.CreateUser(context.Background(), "07", "User 07"))

	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000

	tunables := dyncfg.New(appStore, cfg.Tunables)
	require.NoError(t, tunables.SeedDefaults(context.Background()))

	motion := hardware.NewSimMotionSensor()
	distance := hardware.NewSimDistanceSensor()
	sensors := hardware.NewAggregator(tunables, motion, distance)
	button := hardware.NewButton()
	display := hardware.NewLogDisplay()
	gateway := notification.NewGateway(false, 1, testDB, nil)

	eng := engine.New(appStore, tunables, sensors, button, gateway)
	require.NoError(t, eng.Recover(context.Background()))

	statusHub := hub.New()
	sched := scheduler.New(eng, appStore, tunables, display, statusHub,
		25*time.Millisecond, cfg.Database.RetentionDays)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	router := api.NewRouter(api.Deps{
		Store:       appStore,
		Engine:      eng,
		Cfg:         tunables,
		Hub:         statusHub,
		Button:      button,
		Admin:       cfg.Admin,
		SimMotion:   motion,
		SimDistance: distance,
	}, cfg.Server, true)

	currentState := func() string {
		// Bypass the response cache: read the engine directly.
		return string(eng.GetStatusSnapshot(context.Background()).State)
	}

	updates, unsubscribe := statusHub.Subscribe()
	defer unsubscribe()

	// The office starts free.
	assert.Equal(t, "FREE", currentState())

	// Book through the HTTP API.
	body, _ := json.Marshal(map[string]string{"user_code": "07"})
	req := httptest.NewRequest(http.MethodPost, "/api/reservations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	// The scheduler activates the reservation.
	assert.Eventually(t, func() bool {
		return currentState() == "RESERVED_WAITING"
	}, 2*time.Second, 10*time.Millisecond)

	// The user walks in: both sensors agree on presence.
	distance.SetDistance(100)
	motion.SetMovement(true)
	sensors.Sample()
	assert.Eventually(t, func() bool {
		return currentState() == "RESERVED_OCCUPIED"
	}, 2*time.Second, 10*time.Millisecond)

	var reservations []model.Reservation
	require.NoError(t, testDB.Find(&reservations).Error)
	require.Len(t, reservations, 1)
	assert.Equal(t, model.ReservationCompleted, reservations[0].Status)

	// The user leaves: the ultrasonic term drops, which breaks AND fusion
	// even while the movement window is still warm.
	distance.SetDistance(hardware.MaxDistanceCM)
	motion.SetMovement(false)
	sensors.Sample()
	assert.Eventually(t, func() bool {
		return currentState() == "FREE"
	}, 2*time.Second, 10*time.Millisecond)

	var sessions []model.OccupancySession
	require.NoError(t, testDB.Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.NotNil(t, sessions[0].EndTime)
	assert.Equal(t, model.AccessReservation, sessions[0].AccessType)

	// The hub broadcast carried the projection along the way.
	select {
	case payload := <-updates:
		assert.Contains(t, string(payload), `"state"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no status broadcast received")
	}
}
