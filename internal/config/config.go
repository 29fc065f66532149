// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nagarbus/nagarbus/internal/database"
	"github.com/nagarbus/nagarbus/internal/simulator"
)

// Preference store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config is the full service configuration.
type Config struct {
	Port        string
	Environment string
	Version     string

	// RequireTLS rejects requests a load balancer forwarded over plain HTTP.
	RequireTLS bool

	Database    database.Config
	Redis       database.RedisConfig
	Preferences PreferencesConfig
	Simulation  SimulationConfig
	NATS        NATSConfig
	PubSub      PubSubConfig
	Telemetry   TelemetryConfig

	// MetricsAddr is where the worker serves Prometheus metrics. Empty disables it.
	MetricsAddr string
}

// PreferencesConfig selects where preferences are stored.
type PreferencesConfig struct {
	Store   string
	Profile string
}

// SimulationConfig tunes the fleet simulation.
type SimulationConfig struct {
	// Enabled runs the pass timers in this process. With a shared network
	// store exactly one process should own them.
	Enabled    bool
	Background time.Duration
	Focused    time.Duration
	Seed       uint64

	// NetworkStore is "memory" for the embedded seed or "postgres".
	NetworkStore string
}

// NATSConfig configures position publishing. An empty URL disables it.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// PubSubConfig configures job intake. An empty project disables it.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults and validating.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{getenv: getenv}

	cfg := &Config{
		Port:        e.str("PORT", "8080"),
		Environment: e.str("ENVIRONMENT", "development"),
		Version:     e.str("VERSION", "dev"),
		RequireTLS:  e.boolean("REQUIRE_TLS", false),
		Database: database.Config{
			Host:            e.str("DB_HOST", "localhost"),
			Port:            e.integer("DB_PORT", 5432),
			User:            e.str("DB_USER", "nagarbus"),
			Password:        e.str("DB_PASSWORD", "localdev"),
			Database:        e.str("DB_NAME", "nagarbus"),
			SSLMode:         e.str("DB_SSL_MODE", "disable"),
			MaxOpenConns:    e.integer("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    e.integer("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: database.RedisConfig{
			Addr:     e.str("REDIS_ADDR", "localhost:6379"),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.integer("REDIS_DB", 0),
		},
		Preferences: PreferencesConfig{
			Store:   strings.ToLower(e.str("PREFERENCES_STORE", StoreMemory)),
			Profile: e.str("PREFERENCES_PROFILE", "default"),
		},
		Simulation: SimulationConfig{
			Enabled:      e.boolean("SIM_ENABLED", true),
			Background:   e.duration("SIM_BACKGROUND_INTERVAL", simulator.DefaultBackgroundInterval),
			Focused:      e.duration("SIM_FOCUSED_INTERVAL", simulator.DefaultFocusedInterval),
			Seed:         e.unsigned("SIM_SEED", 0),
			NetworkStore: strings.ToLower(e.str("NETWORK_STORE", StoreMemory)),
		},
		NATS: NATSConfig{
			URL:           e.str("NATS_URL", ""),
			SubjectPrefix: e.str("NATS_SUBJECT_PREFIX", "nagarbus.positions"),
		},
		PubSub: PubSubConfig{
			ProjectID:    e.str("PUBSUB_PROJECT_ID", ""),
			Subscription: e.str("PUBSUB_SUBSCRIPTION", "nagarbus-jobs"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      e.boolean("OTEL_ENABLED", false),
			OTLPEndpoint: e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio:  e.float("OTEL_TRACES_SAMPLE_RATIO", 1),
		},
		MetricsAddr: e.str("METRICS_ADDR", ":9090"),
	}

	if err := e.err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch c.Preferences.Store {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("PREFERENCES_STORE: unknown store %q", c.Preferences.Store))
	}
	switch c.Simulation.NetworkStore {
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("NETWORK_STORE: unknown store %q", c.Simulation.NetworkStore))
	}
	if c.Simulation.Background <= 0 {
		errs = append(errs, errors.New("SIM_BACKGROUND_INTERVAL: must be positive"))
	}
	if c.Simulation.Focused < simulator.MinFocusedInterval || c.Simulation.Focused > simulator.MaxFocusedInterval {
		errs = append(errs, fmt.Errorf("SIM_FOCUSED_INTERVAL: must be between %s and %s", simulator.MinFocusedInterval, simulator.MaxFocusedInterval))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACES_SAMPLE_RATIO: must be between 0 and 1"))
	}
	if c.Preferences.Profile == "" {
		errs = append(errs, errors.New("PREFERENCES_PROFILE: must not be empty"))
	}
	return errors.Join(errs...)
}

// NeedsPostgres reports whether any component is backed by PostgreSQL.
func (c *Config) NeedsPostgres() bool {
	return c.Preferences.Store == StorePostgres || c.Simulation.NetworkStore == StorePostgres
}

type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (e *env) unsigned(key string, def uint64) uint64 {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid unsigned integer %q", key, v))
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return f
}

func (e *env) boolean(key string, def bool) bool {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (e *env) err() error {
	return errors.Join(e.errs...)
}
