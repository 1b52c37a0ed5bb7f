package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"office-queue-backend/config"
	"office-queue-backend/internal/dyncfg"
	"office-queue-backend/internal/engine"
	"office-queue-backend/internal/hardware"
	"office-queue-backend/internal/hub"
	"office-queue-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	engine   *engine.Engine
	cfg      *dyncfg.Provider
	hub      *hub.Hub
	button   *hardware.Button
	webpush  *webpush.Options
	admin    config.AdminConfig
	sessions *sessionManager

	// Simulation hooks, nil when running on real hardware.
	simMotion   *hardware.SimMotionSensor
	simDistance *hardware.SimDistanceSensor
}

// Deps bundles everything the API layer needs.
type Deps struct {
	Store       store.Store
	Engine      *engine.Engine
	Cfg         *dyncfg.Provider
	Hub         *hub.Hub
	Button      *hardware.Button
	Webpush     *webpush.Options
	Admin       config.AdminConfig
	SimMotion   *hardware.SimMotionSensor
	SimDistance *hardware.SimDistanceSensor
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:       d.Store,
		engine:      d.Engine,
		cfg:         d.Cfg,
		hub:         d.Hub,
		button:      d.Button,
		webpush:     d.Webpush,
		admin:       d.Admin,
		sessions:    newSessionManager(d.Admin.SessionTimeoutMinutes),
		simMotion:   d.SimMotion,
		simDistance: d.SimDistance,
	}
}
