package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
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
	"office-queue-backend/internal/notification"
	"office-queue-backend/internal/store"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	require.NoError(t, appStore.CreateUser(context.Background(), "08", "User 08"))

	var bootCfg config.Config
	config.ApplyDefaults(&bootCfg)
	bootCfg.Admin.Password = "hunter2"
	// Generous limits so tests never trip the per-IP limiter.
	bootCfg.Server.RateLimitPerSec = 1000
	bootCfg.Server.RateLimitBurst = 1000

	tunables := dyncfg.New(appStore, bootCfg.Tunables)
	require.NoError(t, tunables.SeedDefaults(context.Background()))

	sensors := &stubSensors{}
	button := hardware.NewButton()
	gateway := notification.NewGateway(false, 1, gormDB, nil)
	eng := engine.New(appStore, tunables, sensors, button, gateway)

	deps := Deps{
		Store:       appStore,
		Engine:      eng,
		Cfg:         tunables,
		Hub:         hub.New(),
		Button:      button,
		Admin:       bootCfg.Admin,
		SimMotion:   hardware.NewSimMotionSensor(),
		SimDistance: hardware.NewSimDistanceSensor(),
	}
	return NewRouter(deps, bootCfg.Server, true)
}

// stubSensors reports no presence; the API tests never tick the engine
// into an occupied state through sensors.
type stubSensors struct{}

func (stubSensors) ReadPresence() hardware.PresenceSnapshot { return hardware.PresenceSnapshot{} }

func doJSON(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetStatus(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "FREE", body["state"])
	assert.EqualValues(t, 0, body["queue_size"])
}

func TestPostReservationStatusMapping(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/reservations", gin.H{"user_code": "99"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodPost, "/api/reservations", gin.H{"user_code": "07"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var result map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.EqualValues(t, 1, result["position"])

	w = doJSON(router, http.MethodPost, "/api/reservations", gin.H{"user_code": "07"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPost, "/api/reservations", gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminAuthFlow(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/admin/config", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, "/api/admin/login", gin.H{"password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, "/api/admin/login", gin.H{"password": "hunter2"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var login map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	token, _ := login["token"].(string)
	require.NotEmpty(t, token)

	auth := map[string]string{sessionHeader: token}
	w = doJSON(router, http.MethodGet, "/api/admin/config", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var cfg map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "7", cfg["max_queue_size"])

	w = doJSON(router, http.MethodPut, "/api/admin/config", gin.H{"max_queue_size": "0"}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPut, "/api/admin/config", gin.H{"max_queue_size": "5"}, auth)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/api/admin/logout", nil, auth)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(router, http.MethodGet, "/api/admin/config", nil, auth)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminQueueOperations(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/admin/login", gin.H{"password": "hunter2"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var login map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	auth := map[string]string{sessionHeader: login["token"].(string)}

	w = doJSON(router, http.MethodPost, "/api/reservations", gin.H{"user_code": "07"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/api/admin/clear_queue", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var cleared map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cleared))
	assert.EqualValues(t, 1, cleared["cleared"])

	w = doJSON(router, http.MethodGet, "/api/queue", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var queue map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queue))
	assert.EqualValues(t, 0, queue["queue_size"])
}

func TestSubscriptions(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPut, "/api/subscriptions", gin.H{"endpoint": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	sub := gin.H{
		"user_code": "07",
		"endpoint":  "https://example.com/push",
		"p256dh":    "key",
		"auth":      "secret",
	}
	w = doJSON(router, http.MethodPut, "/api/subscriptions", sub, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	sub["user_code"] = "99"
	w = doJSON(router, http.MethodPut, "/api/subscriptions", sub, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodGet, "/api/subscriptions?endpoint=https%3A%2F%2Fexample.com%2Fpush", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "07", got["user_code"])

	w = doJSON(router, http.MethodDelete, "/api/subscriptions", gin.H{"endpoint": "https://example.com/push"}, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodGet, "/api/subscriptions?endpoint=https%3A%2F%2Fexample.com%2Fpush", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVAPIDKeyUnconfigured(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/vapid_public_key", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestButtonPressAccepted(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/button", nil, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}
