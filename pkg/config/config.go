// Package config loads fleetsim settings from an optional YAML file and
// applies command line and environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fleetsim/pkg/exporter"
	"fleetsim/pkg/notify"
	"fleetsim/pkg/sim"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
	// RateLimit is mutating requests per second per client; 0 disables it.
	RateLimit          float64 `yaml:"rate_limit" validate:"gte=0"`
	RateBurst          int     `yaml:"rate_burst" validate:"gte=0"`
	CompressionMinSize int     `yaml:"compression_min_size" validate:"gte=0"`
}

type SimulationConfig struct {
	TickInterval           time.Duration `yaml:"tick_interval" validate:"gt=0"`
	Speed                  float64       `yaml:"speed" validate:"gte=0.1,lte=5"`
	Seed                   uint64        `yaml:"seed"`
	SegmentLength          float64       `yaml:"segment_length" validate:"gt=0"`
	MinSpeedKMH            float64       `yaml:"min_speed_kmh" validate:"gt=0"`
	AlertTTL               time.Duration `yaml:"alert_ttl" validate:"gt=0"`
	PredictionHorizonHours int           `yaml:"prediction_horizon_hours" validate:"gt=0,lte=24"`
	PredictionFreshness    time.Duration `yaml:"prediction_freshness" validate:"gt=0"`
	PredictionRetention    time.Duration `yaml:"prediction_retention" validate:"gte=0"`
	SeedHistory            bool          `yaml:"seed_history"`
	GPSRetention           time.Duration `yaml:"gps_retention" validate:"gte=0"`
	TicketRetention        time.Duration `yaml:"ticket_retention" validate:"gte=0"`
}

type NotificationsConfig struct {
	TTL           time.Duration `yaml:"ttl" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gt=0"`
}

type CatalogConfig struct {
	// Source is empty for the built-in catalog, a file path or an http(s) URL.
	Source string `yaml:"source"`
}

type ExportConfig struct {
	Enabled      bool          `yaml:"enabled"`
	DryRun       bool          `yaml:"dry_run"`
	Backfill     bool          `yaml:"backfill"`
	Interval     time.Duration `yaml:"interval" validate:"gt=0"`
	LokiURL      string        `yaml:"loki_url" validate:"omitempty,url"`
	LokiUser     string        `yaml:"loki_user"`
	LokiPassword string        `yaml:"loki_password"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Simulation    SimulationConfig    `yaml:"simulation"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Export        ExportConfig        `yaml:"export"`
	Log           LogConfig           `yaml:"log"`
}

var validate = validator.New()

func Default() Config {
	s := sim.DefaultConfig()
	n := notify.DefaultConfig()

	return Config{
		Server: ServerConfig{
			Addr:               ":8080",
			RateLimit:          5,
			RateBurst:          10,
			CompressionMinSize: 1024,
		},
		Simulation: SimulationConfig{
			TickInterval:           s.TickInterval,
			Speed:                  s.Speed,
			SegmentLength:          s.SegmentLength,
			MinSpeedKMH:            s.MinSpeedKMH,
			AlertTTL:               s.AlertTTL,
			PredictionHorizonHours: s.PredictionHorizonHours,
			PredictionFreshness:    s.PredictionFreshness,
			PredictionRetention:    s.PredictionRetention,
			SeedHistory:            s.SeedHistory,
			GPSRetention:           s.GPSRetention,
			TicketRetention:        s.TicketRetention,
		},
		Notifications: NotificationsConfig{
			TTL:           n.TTL,
			SweepInterval: n.SweepInterval,
		},
		Export: ExportConfig{
			Interval: 30 * time.Second,
			LokiURL:  "http://localhost:3100",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config file %s not found", path)
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Export.Enabled && !c.Export.DryRun && c.Export.LokiURL == "" {
		return errors.New("invalid config: export.loki_url is required when export is enabled")
	}
	return nil
}

// Keys lists the override names accepted by Set, in flag order.
var Keys = []string{
	"addr", "rate-limit", "catalog",
	"tick-interval", "speed", "seed", "seed-history", "alert-ttl",
	"notification-ttl",
	"export", "dry-run", "backfill", "export-interval", "loki-url", "loki-user", "loki-password",
	"log-level", "log-format",
}

// EnvName is the environment variable that overrides key, e.g.
// FLEETSIM_LOKI_URL for loki-url.
func EnvName(key string) string {
	return "FLEETSIM_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Set applies a single override. Callers run Validate afterwards.
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	case "addr":
		c.Server.Addr = value
	case "rate-limit":
		c.Server.RateLimit, err = strconv.ParseFloat(value, 64)
	case "catalog":
		c.Catalog.Source = value
	case "tick-interval":
		c.Simulation.TickInterval, err = time.ParseDuration(value)
	case "speed":
		c.Simulation.Speed, err = strconv.ParseFloat(value, 64)
	case "seed":
		c.Simulation.Seed, err = strconv.ParseUint(value, 10, 64)
	case "seed-history":
		c.Simulation.SeedHistory, err = strconv.ParseBool(value)
	case "alert-ttl":
		c.Simulation.AlertTTL, err = time.ParseDuration(value)
	case "notification-ttl":
		c.Notifications.TTL, err = time.ParseDuration(value)
	case "export":
		c.Export.Enabled, err = strconv.ParseBool(value)
	case "dry-run":
		c.Export.DryRun, err = strconv.ParseBool(value)
	case "backfill":
		c.Export.Backfill, err = strconv.ParseBool(value)
	case "export-interval":
		c.Export.Interval, err = time.ParseDuration(value)
	case "loki-url":
		c.Export.LokiURL = value
	case "loki-user":
		c.Export.LokiUser = value
	case "loki-password":
		c.Export.LokiPassword = value
	case "log-level":
		c.Log.Level = value
	case "log-format":
		c.Log.Format = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
	return nil
}

// Sim converts the simulation section to engine settings.
func (c Config) Sim() sim.Config {
	s := c.Simulation
	return sim.Config{
		TickInterval:           s.TickInterval,
		Speed:                  s.Speed,
		SegmentLength:          s.SegmentLength,
		MinSpeedKMH:            s.MinSpeedKMH,
		AlertTTL:               s.AlertTTL,
		PredictionHorizonHours: s.PredictionHorizonHours,
		PredictionFreshness:    s.PredictionFreshness,
		PredictionRetention:    s.PredictionRetention,
		SeedHistory:            s.SeedHistory,
		GPSRetention:           s.GPSRetention,
		TicketRetention:        s.TicketRetention,
	}
}

func (c Config) Notify() notify.Config {
	return notify.Config{
		TTL:           c.Notifications.TTL,
		SweepInterval: c.Notifications.SweepInterval,
	}
}

func (c Config) Exporter() exporter.Config {
	e := c.Export
	return exporter.Config{
		DryRun:       e.DryRun,
		LokiURL:      e.LokiURL,
		LokiUser:     e.LokiUser,
		LokiPassword: e.LokiPassword,
		Interval:     e.Interval,
		Backfill:     e.Backfill,
	}
}
