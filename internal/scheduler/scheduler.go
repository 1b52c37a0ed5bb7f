// Package scheduler drives the 1-second evaluation cycle. Each cycle runs
// strictly in order: engine tick, status projection, display render, hub
// broadcast. Steps never overlap; a slow cycle delays the next tick.
package scheduler

import (
	"context"
	"log"
	"time"

	"office-queue-backend/internal/dyncfg"
	"office-queue-backend/internal/engine"
	"office-queue-backend/internal/hardware"
	"office-queue-backend/internal/hub"
	"office-queue-backend/internal/store"
)

// Scheduler owns the tick loop and the daily maintenance hooks (auto reset
// and retention cleanup).
type Scheduler struct {
	engine        *engine.Engine
	store         store.Store
	cfg           *dyncfg.Provider
	display       hardware.Display
	hub           *hub.Hub
	tick          time.Duration
	retentionDays int

	lastResetDay   string
	lastCleanupDay string

	now func() time.Time
}

// New creates a scheduler. tick is the evaluation interval, normally one
// second.
func New(e *engine.Engine, s store.Store, cfg *dyncfg.Provider, display hardware.Display, h *hub.Hub, tick time.Duration, retentionDays int) *Scheduler {
	return &Scheduler{
		engine:        e,
		store:         s,
		cfg:           cfg,
		display:       display,
		hub:           h,
		tick:          tick,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Run ticks until the context is cancelled. An expedited tick requested by
// a booking runs immediately and restarts the interval.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("Scheduler started, tick interval %s", s.tick)

	// Seed the cleanup markers so a restart does not immediately rerun
	// today's maintenance.
	today := s.now().Format("2006-01-02")
	s.lastResetDay = today
	s.lastCleanupDay = today

	timer := time.NewTimer(s.tick)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler shutting down")
			return
		case <-timer.C:
		case <-s.engine.Kicked():
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		s.cycle(ctx)
		timer.Reset(s.tick)
	}
}

// cycle is one full evaluation pass.
func (s *Scheduler) cycle(ctx context.Context) {
	if err := s.engine.Tick(ctx); err != nil {
		// State is unchanged; the next tick re-evaluates from scratch.
		log.Printf("Tick failed: %v", err)
	}

	snapshot := s.engine.GetStatusSnapshot(ctx)
	s.display.Render(snapshot.ToDisplay())
	s.hub.Publish(snapshot)

	s.maintenance(ctx)
}

// maintenance runs the once-a-day jobs: the configured auto reset and the
// retention cleanup. Day markers keep each job to a single run per day.
func (s *Scheduler) maintenance(ctx context.Context) {
	now := s.now()
	today := now.Format("2006-01-02")

	if resetAt := s.cfg.AutoResetTime(); resetAt != "" && s.lastResetDay != today {
		if now.Format("15:04") >= resetAt {
			s.lastResetDay = today
			log.Printf("Running daily auto reset (configured for %s)", resetAt)
			if err := s.engine.ForceReset(ctx); err != nil {
				log.Printf("Daily auto reset failed: %v", err)
			}
		}
	}

	if s.lastCleanupDay != today {
		s.lastCleanupDay = today
		before := now.AddDate(0, 0, -s.retentionDays)
		log.Printf("Running retention cleanup, dropping data older than %s", before.Format("2006-01-02"))
		if err := s.store.CleanupOldData(ctx, before); err != nil {
			log.Printf("Retention cleanup failed: %v", err)
		}
	}
}
