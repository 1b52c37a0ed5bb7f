package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Hardware   HardwareConfig   `yaml:"hardware"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Admin      AdminConfig      `yaml:"admin"`
	Tunables   Tunables         `yaml:"tunables"`
	Users      []SeedUser       `yaml:"default_users"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
// Driver is "sqlite" (the on-device default) or "postgres".
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	RetentionDays          int    `yaml:"retention_days"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// HardwareConfig selects between real GPIO and simulated sensors.
type HardwareConfig struct {
	Simulation bool `yaml:"simulation"`
	PIRPin     int  `yaml:"pir_pin"`
	TrigPin    int  `yaml:"ultrasonic_trig_pin"`
	EchoPin    int  `yaml:"ultrasonic_echo_pin"`
	ButtonPin  int  `yaml:"button_pin"`
}

// SchedulerConfig drives the periodic evaluation cycle.
type SchedulerConfig struct {
	TickSeconds int           `yaml:"tick_seconds"`
	Tick        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// AdminConfig holds admin authentication settings.
type AdminConfig struct {
	Password              string `yaml:"password"`
	SessionTimeoutMinutes int    `yaml:"session_timeout_minutes"`
}

// Tunables are the compiled defaults for every runtime-configurable value.
// Effective values are resolved through the dyncfg layer, which consults the
// config_entries table first and falls back to these.
type Tunables struct {
	ReservationTimeoutMinutes int    `yaml:"reservation_timeout_minutes"`
	MaxOccupancyMinutes       int    `yaml:"max_occupancy_minutes"`
	MaxQueueSize              int    `yaml:"max_queue_size"`
	ConflictPriority          string `yaml:"conflict_priority"` // "presence" or "reservation"
	PresenceThresholdCM       int    `yaml:"presence_threshold_cm"`
	DualSensorMode            string `yaml:"dual_sensor_mode"` // "AND" or "OR"
	MovementTimeoutMinutes    int    `yaml:"movement_timeout_minutes"`
	PIRAbsenceSeconds         int    `yaml:"pir_absence_seconds"`
	UltrasonicPollingSeconds  int    `yaml:"ultrasonic_polling_seconds"`
	UsePIRSensor              *bool  `yaml:"use_pir_sensor"`        // nil means enabled
	UseUltrasonicSensor       *bool  `yaml:"use_ultrasonic_sensor"` // nil means enabled
	AutoResetTime             string `yaml:"auto_reset_time"`       // "HH:MM", empty disables
}

// SeedUser is a user inserted at first startup.
type SeedUser struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)

	if cfg.Tunables.ConflictPriority != "presence" && cfg.Tunables.ConflictPriority != "reservation" {
		return nil, fmt.Errorf("invalid conflict_priority %q: must be \"presence\" or \"reservation\"", cfg.Tunables.ConflictPriority)
	}
	if cfg.Tunables.DualSensorMode != "AND" && cfg.Tunables.DualSensorMode != "OR" {
		return nil, fmt.Errorf("invalid dual_sensor_mode %q: must be \"AND\" or \"OR\"", cfg.Tunables.DualSensorMode)
	}

	return &cfg, nil
}

// ApplyDefaults backfills zero values with the compiled defaults. Exported
// so tests can build a usable Config without a YAML file.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "data/office_queue.db"
	}
	if cfg.Database.RetentionDays <= 0 {
		cfg.Database.RetentionDays = 30
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Scheduler.TickSeconds <= 0 {
		cfg.Scheduler.TickSeconds = 1
	}
	cfg.Scheduler.Tick = time.Duration(cfg.Scheduler.TickSeconds) * time.Second

	if cfg.Admin.SessionTimeoutMinutes <= 0 {
		cfg.Admin.SessionTimeoutMinutes = 30
	}

	t := &cfg.Tunables
	if t.ReservationTimeoutMinutes <= 0 {
		t.ReservationTimeoutMinutes = 3
	}
	if t.MaxOccupancyMinutes <= 0 {
		t.MaxOccupancyMinutes = 10
	}
	if t.MaxQueueSize <= 0 {
		t.MaxQueueSize = 7
	}
	if t.ConflictPriority == "" {
		t.ConflictPriority = "presence"
	}
	if t.PresenceThresholdCM <= 0 {
		t.PresenceThresholdCM = 200
	}
	if t.DualSensorMode == "" {
		t.DualSensorMode = "AND"
	}
	if t.MovementTimeoutMinutes <= 0 {
		t.MovementTimeoutMinutes = 5
	}
	if t.PIRAbsenceSeconds <= 0 {
		t.PIRAbsenceSeconds = 30
	}
	if t.UltrasonicPollingSeconds <= 0 {
		t.UltrasonicPollingSeconds = 2
	}
	if t.UsePIRSensor == nil {
		enabled := true
		t.UsePIRSensor = &enabled
	}
	if t.UseUltrasonicSensor == nil {
		enabled := true
		t.UseUltrasonicSensor = &enabled
	}
}
