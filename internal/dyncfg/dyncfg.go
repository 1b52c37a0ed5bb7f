// Package dyncfg resolves runtime tunables through a layered strategy:
// in-memory cache, then the persisted config_entries table, then the
// compiled default from the boot configuration. Writes invalidate the
// cache so the next tick observes the new value.
package dyncfg

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"office-queue-backend/config"
	"office-queue-backend/internal/store"
)

// Runtime tunable keys. The set is closed: Set rejects anything else.
const (
	KeyReservationTimeoutMinutes = "reservation_timeout_minutes"
	KeyMaxOccupancyMinutes       = "max_occupancy_minutes"
	KeyMaxQueueSize              = "max_queue_size"
	KeyConflictPriority          = "conflict_priority"
	KeyPresenceThresholdCM       = "presence_threshold_cm"
	KeyDualSensorMode            = "dual_sensor_mode"
	KeyMovementTimeoutMinutes    = "movement_timeout_minutes"
	KeyPIRAbsenceSeconds         = "pir_absence_seconds"
	KeyUltrasonicPollingSeconds  = "ultrasonic_polling_seconds"
	KeyUsePIRSensor              = "use_pir_sensor"
	KeyUseUltrasonicSensor       = "use_ultrasonic_sensor"
	KeyAutoResetTime             = "auto_reset_time"
)

// Conflict priority values.
const (
	PriorityPresence    = "presence"
	PriorityReservation = "reservation"
)

// Dual sensor modes.
const (
	ModeAND = "AND"
	ModeOR  = "OR"
)

// Provider resolves typed runtime configuration values.
type Provider struct {
	store    store.Store
	defaults config.Tunables
	cache    *gocache.Cache
}

// New creates a provider over the given store with the boot config's
// tunables as the compiled-default layer.
func New(s store.Store, defaults config.Tunables) *Provider {
	return &Provider{
		store:    s,
		defaults: defaults,
		cache:    gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

// SeedDefaults inserts a config row for every tunable that has no
// persisted override yet, so admins see the full key set.
func (p *Provider) SeedDefaults(ctx context.Context) error {
	d := p.defaults
	seed := map[string]string{
		KeyReservationTimeoutMinutes: strconv.Itoa(d.ReservationTimeoutMinutes),
		KeyMaxOccupancyMinutes:       strconv.Itoa(d.MaxOccupancyMinutes),
		KeyMaxQueueSize:              strconv.Itoa(d.MaxQueueSize),
		KeyConflictPriority:          d.ConflictPriority,
		KeyPresenceThresholdCM:       strconv.Itoa(d.PresenceThresholdCM),
		KeyDualSensorMode:            d.DualSensorMode,
		KeyMovementTimeoutMinutes:    strconv.Itoa(d.MovementTimeoutMinutes),
		KeyPIRAbsenceSeconds:         strconv.Itoa(d.PIRAbsenceSeconds),
		KeyUltrasonicPollingSeconds:  strconv.Itoa(d.UltrasonicPollingSeconds),
		KeyUsePIRSensor:              strconv.FormatBool(d.UsePIRSensor == nil || *d.UsePIRSensor),
		KeyUseUltrasonicSensor:       strconv.FormatBool(d.UseUltrasonicSensor == nil || *d.UseUltrasonicSensor),
		KeyAutoResetTime:             d.AutoResetTime,
	}
	existing, err := p.store.AllConfigValues(ctx)
	if err != nil {
		return err
	}
	for key, value := range seed {
		if _, ok := existing[key]; ok {
			continue
		}
		if err := p.store.SetConfigValue(ctx, key, value, "default"); err != nil {
			return err
		}
	}
	return nil
}

// Set validates and persists an override, then refreshes the cache entry.
func (p *Provider) Set(ctx context.Context, key, value string) error {
	if err := Validate(key, value); err != nil {
		return err
	}
	if err := p.store.SetConfigValue(ctx, key, value, ""); err != nil {
		return err
	}
	p.cache.Set(key, value, gocache.NoExpiration)
	return nil
}

// Invalidate drops the cache; the next read hits the store again.
func (p *Provider) Invalidate() {
	p.cache.Flush()
}

// All returns the effective value of every tunable.
func (p *Provider) All(ctx context.Context) (map[string]string, error) {
	values, err := p.store.AllConfigValues(ctx)
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Validate checks that a value is acceptable for a key.
func Validate(key, value string) error {
	switch key {
	case KeyReservationTimeoutMinutes, KeyMaxOccupancyMinutes, KeyMaxQueueSize,
		KeyPresenceThresholdCM, KeyMovementTimeoutMinutes,
		KeyPIRAbsenceSeconds, KeyUltrasonicPollingSeconds:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("config %s: %q is not a positive integer", key, value)
		}
	case KeyConflictPriority:
		if value != PriorityPresence && value != PriorityReservation {
			return fmt.Errorf("config %s: %q must be %q or %q", key, value, PriorityPresence, PriorityReservation)
		}
	case KeyDualSensorMode:
		if value != ModeAND && value != ModeOR {
			return fmt.Errorf("config %s: %q must be %q or %q", key, value, ModeAND, ModeOR)
		}
	case KeyUsePIRSensor, KeyUseUltrasonicSensor:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("config %s: %q is not a boolean", key, value)
		}
	case KeyAutoResetTime:
		if value != "" {
			if _, err := time.Parse("15:04", value); err != nil {
				return fmt.Errorf("config %s: %q is not HH:MM", key, value)
			}
		}
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// lookup returns the raw value for a key: cache, then store, then "".
func (p *Provider) lookup(key string) (string, bool) {
	if v, found := p.cache.Get(key); found {
		return v.(string), true
	}
	value, found, err := p.store.GetConfigValue(context.Background(), key)
	if err != nil {
		log.Printf("dyncfg: failed to read %s, using compiled default: %v", key, err)
		return "", false
	}
	if !found {
		return "", false
	}
	p.cache.Set(key, value, gocache.NoExpiration)
	return value, true
}

func (p *Provider) intValue(key string, fallback int) int {
	raw, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("dyncfg: invalid stored value %q for %s, using compiled default", raw, key)
		return fallback
	}
	return n
}

func (p *Provider) boolValue(key string, fallback bool) bool {
	raw, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("dyncfg: invalid stored value %q for %s, using compiled default", raw, key)
		return fallback
	}
	return b
}

func (p *Provider) stringValue(key, fallback string) string {
	raw, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	return raw
}

// Typed getters for every tunable the core consumes.

func (p *Provider) ReservationTimeoutMinutes() int {
	return p.intValue(KeyReservationTimeoutMinutes, p.defaults.ReservationTimeoutMinutes)
}

func (p *Provider) MaxOccupancyMinutes() int {
	return p.intValue(KeyMaxOccupancyMinutes, p.defaults.MaxOccupancyMinutes)
}

func (p *Provider) MaxQueueSize() int {
	return p.intValue(KeyMaxQueueSize, p.defaults.MaxQueueSize)
}

func (p *Provider) ConflictPriority() string {
	v := p.stringValue(KeyConflictPriority, p.defaults.ConflictPriority)
	if v != PriorityPresence && v != PriorityReservation {
		return p.defaults.ConflictPriority
	}
	return v
}

func (p *Provider) PresenceThresholdCM() int {
	return p.intValue(KeyPresenceThresholdCM, p.defaults.PresenceThresholdCM)
}

func (p *Provider) DualSensorMode() string {
	v := p.stringValue(KeyDualSensorMode, p.defaults.DualSensorMode)
	if v != ModeAND && v != ModeOR {
		return p.defaults.DualSensorMode
	}
	return v
}

func (p *Provider) MovementTimeoutMinutes() int {
	return p.intValue(KeyMovementTimeoutMinutes, p.defaults.MovementTimeoutMinutes)
}

func (p *Provider) PIRAbsenceSeconds() int {
	return p.intValue(KeyPIRAbsenceSeconds, p.defaults.PIRAbsenceSeconds)
}

func (p *Provider) UltrasonicPollingSeconds() int {
	return p.intValue(KeyUltrasonicPollingSeconds, p.defaults.UltrasonicPollingSeconds)
}

func (p *Provider) UsePIRSensor() bool {
	return p.boolValue(KeyUsePIRSensor, p.defaults.UsePIRSensor == nil || *p.defaults.UsePIRSensor)
}

func (p *Provider) UseUltrasonicSensor() bool {
	return p.boolValue(KeyUseUltrasonicSensor, p.defaults.UseUltrasonicSensor == nil || *p.defaults.UseUltrasonicSensor)
}

func (p *Provider) AutoResetTime() string {
	return p.stringValue(KeyAutoResetTime, p.defaults.AutoResetTime)
}
