package dbopconfig

import (
	"bytes"
	"os"
	"time"

	"log/slog"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for a process wiring dbop:
// where to connect, how to retry, how to log, and whether telemetry is on.
// Database/Logging mirror the teacher's config shape unchanged; Retry and
// Telemetry are additions a distilled spec.md has no config surface for.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Retry     RetryConfig     `yaml:"retry"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var durationStr string
	if err := value.Decode(&durationStr); err != nil {
		return err
	}
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// DatabaseConfig selects and connects to the SQL dialect backing the
// reference Scope implementations.
type DatabaseConfig struct {
	Dialect  string `yaml:"dialect" validate:"required,oneof=postgres mysql sqlite3"`
	Host     string `yaml:"host" validate:"required_unless=Dialect sqlite3"`
	Port     int    `yaml:"port" validate:"required_unless=Dialect sqlite3"`
	User     string `yaml:"user" validate:"required_unless=Dialect sqlite3"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname" validate:"required"`

	MaxOpenConns    int      `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int      `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime" validate:"gte=0"`
	ConnMaxIdleTime Duration `yaml:"conn_max_idle_time" validate:"gte=0"`
}

// PoolLimits returns the connection-pool sizing dbopsql.Open and
// dbopsql.OpenPgxPool apply: MaxOpenConns/MaxIdleConns default to 10/0 when
// unset (zero is a valid but unusual choice for MaxIdleConns, so only
// MaxOpenConns gets a positive floor), and ConnMaxLifetime defaults to 30
// minutes when unset. Centralising the defaulting here means both the
// bun-backed opener and the pgx pool opener apply identical pool behavior
// instead of drifting independently.
func (c *DatabaseConfig) PoolLimits() (maxOpen, maxIdle int, lifetime, idleTime time.Duration) {
	maxOpen = c.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle = c.MaxIdleConns
	if maxIdle < 0 {
		maxIdle = 0
	}
	lifetime = time.Duration(c.ConnMaxLifetime)
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	idleTime = time.Duration(c.ConnMaxIdleTime)
	return maxOpen, maxIdle, lifetime, idleTime
}

// RetryConfig maps directly onto dbop.RetryPolicy; kept separate so it can
// be loaded from YAML without pulling dbop's time.Duration fields into the
// wire format.
type RetryConfig struct {
	MaxRetries   int      `yaml:"max_retries" validate:"gte=0"`
	InitialDelay Duration `yaml:"initial_delay" validate:"gte=0"`
	MaxDelay     Duration `yaml:"max_delay" validate:"gtefield=InitialDelay"`
	Jitter       float64  `yaml:"jitter" validate:"gte=0,lte=1"`
}

// TelemetryConfig holds the same settings as the environment variables the
// telemetry wrapper consults (§6). Nothing in this module reads it:
// ExecuteTraced and NewTelemetryResource take these settings only from the
// process environment or from explicit TelemetryParams fields.
type TelemetryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	ServiceVersion string `yaml:"service_version"`
}

// LoggingConfig controls application logging via slog.
type LoggingConfig struct {
	Level     string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format    string `yaml:"format" validate:"omitempty,oneof=json text"`
	AddSource bool   `yaml:"add_source"`
}

func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		slog.Error("failed to read config file", "path", configFile, "err", err)
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		slog.Error("failed to decode config yaml", "path", configFile, "err", err)
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("config validation failed", "err", err)
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) GetDatabaseConfig() *DatabaseConfig {
	return &c.Database
}

// Validate validates config fields using struct tags.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	return v.Struct(c)
}
