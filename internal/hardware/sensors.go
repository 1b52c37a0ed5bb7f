package hardware

import (
	"context"
	"log"
	"sync"
	"time"

	"office-queue-backend/internal/dyncfg"
)

// MaxDistanceCM is the sentinel reported when ultrasonic ranging fails
// (echo timeout) or nothing is in range.
const MaxDistanceCM = 999

// PresenceSnapshot is the fused sensor reading the engine acts on. The
// aggregator refreshes it in the background; readers always get the last
// sampled value and never block on hardware.
type PresenceSnapshot struct {
	PIRMovement      bool       `json:"pir_movement"`
	DistanceCM       float64    `json:"distance_cm"`
	PresenceDetected bool       `json:"presence_detected"`
	LastMovementAt   *time.Time `json:"last_movement_at,omitempty"`
	SampledAt        time.Time  `json:"sampled_at"`
}

// MotionSensor reports whether the PIR currently sees movement.
type MotionSensor interface {
	Movement() (bool, error)
}

// DistanceSensor reports the ultrasonic range in centimeters. A ranging
// failure returns MaxDistanceCM, not an error the caller must handle.
type DistanceSensor interface {
	DistanceCM() (float64, error)
}

// Aggregator samples both sensors on a fixed interval and fuses them into
// a presence judgment per the configured dual-sensor mode. A disabled
// sensor is an absent term in the fusion, never a forced boolean.
type Aggregator struct {
	cfg      *dyncfg.Provider
	motion   MotionSensor
	distance DistanceSensor

	mu           sync.RWMutex
	snapshot     PresenceSnapshot
	lastMovement *time.Time

	now func() time.Time
}

// NewAggregator creates a sensor aggregator. The initial snapshot reports
// no presence until the first sample lands.
func NewAggregator(cfg *dyncfg.Provider, motion MotionSensor, distance DistanceSensor) *Aggregator {
	return &Aggregator{
		cfg:      cfg,
		motion:   motion,
		distance: distance,
		snapshot: PresenceSnapshot{DistanceCM: MaxDistanceCM},
		now:      time.Now,
	}
}

// Run samples the sensors until the context is cancelled. The polling
// interval is re-read each cycle so a config change applies without
// restart.
func (a *Aggregator) Run(ctx context.Context) {
	log.Println("Sensor aggregator started")
	a.Sample()

	timer := time.NewTimer(a.pollInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sensor aggregator shutting down")
			return
		case <-timer.C:
			a.Sample()
			timer.Reset(a.pollInterval())
		}
	}
}

func (a *Aggregator) pollInterval() time.Duration {
	return time.Duration(a.cfg.UltrasonicPollingSeconds()) * time.Second
}

// Sample reads both sensors once and refreshes the fused snapshot.
func (a *Aggregator) Sample() {
	now := a.now()
	usePIR := a.cfg.UsePIRSensor()
	useUltrasonic := a.cfg.UseUltrasonicSensor()

	pirMovement := false
	if usePIR {
		movement, err := a.motion.Movement()
		if err != nil {
			log.Printf("PIR read failed, keeping last movement state: %v", err)
		} else {
			pirMovement = movement
		}
	}

	distanceCM := float64(MaxDistanceCM)
	if useUltrasonic {
		d, err := a.distance.DistanceCM()
		if err != nil {
			log.Printf("Ultrasonic read failed, reporting max distance: %v", err)
			d = MaxDistanceCM
		}
		if d > MaxDistanceCM {
			d = MaxDistanceCM
		}
		distanceCM = d
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if pirMovement {
		t := now
		a.lastMovement = &t
	}

	a.snapshot = PresenceSnapshot{
		PIRMovement:      pirMovement,
		DistanceCM:       distanceCM,
		LastMovementAt:   a.lastMovement,
		SampledAt:        now,
		PresenceDetected: a.fuse(now, usePIR, useUltrasonic, pirMovement, distanceCM),
	}
}

// fuse combines the enabled sensors' judgments. Callers hold a.mu.
func (a *Aggregator) fuse(now time.Time, usePIR, useUltrasonic, pirMovement bool, distanceCM float64) bool {
	distancePresence := distanceCM < float64(a.cfg.PresenceThresholdCM())

	movementPresence := false
	if a.lastMovement != nil {
		movementPresence = now.Sub(*a.lastMovement) < time.Duration(a.cfg.MovementTimeoutMinutes())*time.Minute
	}

	switch {
	case usePIR && useUltrasonic:
		if a.cfg.DualSensorMode() == dyncfg.ModeAND {
			return distancePresence && (pirMovement || movementPresence)
		}
		return distancePresence || movementPresence
	case useUltrasonic:
		return distancePresence
	case usePIR:
		return pirMovement || movementPresence
	default:
		return false
	}
}

// ReadPresence returns the latest fused snapshot.
func (a *Aggregator) ReadPresence() PresenceSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}
