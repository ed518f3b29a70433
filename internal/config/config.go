// Package config defines service configuration and its defaults.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	Server      Server      `koanf:"server"`
	Scoring     Scoring     `koanf:"scoring"`
	Capacity    Capacity    `koanf:"capacity"`
	Leaderboard Leaderboard `koanf:"leaderboard"`
	Ingest      Ingest      `koanf:"ingest"`
	Kafka       Kafka       `koanf:"kafka"`
	Postgres    Postgres    `koanf:"postgres"`
	Redis       Redis       `koanf:"redis"`
	Metrics     Metrics     `koanf:"metrics"`
	Seed        Seed        `koanf:"seed"`
}

// Server configures the HTTP listener and logging.
type Server struct {
	Addr            string        `koanf:"addr"`
	LogLevel        string        `koanf:"log_level"`  // debug, info, warn, error
	LogFormat       string        `koanf:"log_format"` // text or json
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Scoring tunes the score calculator.
type Scoring struct {
	LoadKey       string  `koanf:"load_key"`
	TimeNumerator float64 `koanf:"time_numerator"`
}

// Capacity tunes the capacity aggregator.
type Capacity struct {
	DecayDays          float64       `koanf:"decay_days"`
	EMAAlpha           float64       `koanf:"ema_alpha"`
	ConfidenceWindow   time.Duration `koanf:"confidence_window"`
	ConfidenceLowBelow int           `koanf:"confidence_low_below"`
	ConfidenceMedBelow int           `koanf:"confidence_med_below"`
}

// Leaderboard controls eager snapshot materialization.
type Leaderboard struct {
	RecomputeInterval time.Duration `koanf:"recompute_interval"` // 0 disables the ticker
	RecomputeOnStart  bool          `koanf:"recompute_on_start"`
}

// Ingest sizes the asynchronous event pipeline.
type Ingest struct {
	QueueSize   int `koanf:"queue_size"`
	WorkerCount int `koanf:"worker_count"`
	DedupeSize  int `koanf:"dedupe_size"`
}

// Kafka configures the optional attempt-event consumer.
type Kafka struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	GroupID string   `koanf:"group_id"`
	Version string   `koanf:"version"`
}

// Postgres configures the optional snapshot sink.
type Postgres struct {
	DSN      string `koanf:"dsn"` // empty disables the sink
	MaxConns int32  `koanf:"max_conns"`
}

// Redis configures the optional snapshot mirror.
type Redis struct {
	Addr      string `koanf:"addr"` // empty disables the mirror
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// Metrics configures prometheus collection.
type Metrics struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

// Seed points at an optional YAML fixture loaded at startup.
type Seed struct {
	Path string `koanf:"path"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Server: Server{
			Addr:            ":9080",
			LogLevel:        "info",
			LogFormat:       "text",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Scoring: Scoring{
			LoadKey:       "loadKgTotal",
			TimeNumerator: 100_000,
		},
		Capacity: Capacity{
			DecayDays:          60,
			EMAAlpha:           0.3,
			ConfidenceWindow:   60 * 24 * time.Hour,
			ConfidenceLowBelow: 2,
			ConfidenceMedBelow: 5,
		},
		Leaderboard: Leaderboard{
			RecomputeInterval: 5 * time.Minute,
			RecomputeOnStart:  true,
		},
		Ingest: Ingest{
			QueueSize:   10_000,
			WorkerCount: runtime.NumCPU(),
			DedupeSize:  100_000,
		},
		Kafka: Kafka{
			Topic:   "attempt-events",
			GroupID: "pulse-engine",
			Version: "3.6.0",
		},
		Postgres: Postgres{MaxConns: 4},
		Redis:    Redis{KeyPrefix: "pulse"},
		Metrics:  Metrics{Enabled: true, Namespace: "pulse"},
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return invalid("server.addr must not be empty")
	case c.Scoring.LoadKey == "":
		return invalid("scoring.load_key must not be empty")
	case c.Scoring.TimeNumerator <= 0:
		return invalid("scoring.time_numerator must be > 0")
	case c.Capacity.DecayDays <= 0:
		return invalid("capacity.decay_days must be > 0")
	case c.Capacity.EMAAlpha <= 0 || c.Capacity.EMAAlpha > 1:
		return invalid("capacity.ema_alpha must be in (0,1]")
	case c.Capacity.ConfidenceWindow <= 0:
		return invalid("capacity.confidence_window must be > 0")
	case c.Capacity.ConfidenceLowBelow <= 0 || c.Capacity.ConfidenceMedBelow < c.Capacity.ConfidenceLowBelow:
		return invalid("capacity confidence thresholds must satisfy 0 < low <= med")
	case c.Leaderboard.RecomputeInterval < 0:
		return invalid("leaderboard.recompute_interval must be >= 0")
	case c.Ingest.QueueSize <= 0 || c.Ingest.WorkerCount <= 0:
		return invalid("ingest.queue_size and ingest.worker_count must be > 0")
	case c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" || c.Kafka.GroupID == ""):
		return invalid("kafka requires brokers, topic and group_id when enabled")
	}
	switch strings.ToLower(c.Server.LogFormat) {
	case "", "text", "json":
	default:
		return invalid("server.log_format must be text or json")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
