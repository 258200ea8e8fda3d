// Package config loads the server configuration from built-in defaults, an
// optional YAML file, an optional .env file and TONTINE_* environment variables,
// in that order.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/mmynk/tontine/internal/models"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "tontine"

type ctxKey string

const configContextKey ctxKey = "tontine.config"

// WithContext stores cfg in ctx.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

// FromContext returns the config stored by WithContext, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(configContextKey).(*Config)
	return cfg
}

// Database drivers.
const (
	DriverSQLite     = "sqlite"
	DriverPostgres   = "postgres"
	DriverGormSQLite = "gorm-sqlite"
)

// Telemetry exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Defaults   Defaults         `yaml:"defaults"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Settlement SettlementConfig `yaml:"settlement"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     uint   `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslMode" split_words:"true"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwtSecret" envconfig:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"tokenTTL"  envconfig:"token_ttl"`
	// Required guards /contribution/* and /auth/me with a bearer token.
	Required bool `yaml:"required"`
}

// Defaults are the values applied when a request leaves a field unset.
type Defaults struct {
	Parts int         `yaml:"parts"`
	Role  models.Role `yaml:"role"`
}

type ScheduleConfig struct {
	// RejectRegeneration makes GenerateSchedule fail with a conflict when the
	// run already has contributions.
	RejectRegeneration bool `yaml:"rejectRegeneration" split_words:"true"`
}

type SettlementConfig struct {
	// RequirePaidBeforeWinner rejects winners on contributions that are not PAID.
	RequirePaidBeforeWinner bool `yaml:"requirePaidBeforeWinner" split_words:"true"`
}

type TelemetryConfig struct {
	Exporter    string `yaml:"exporter"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"serviceName" split_words:"true"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "./data/tontine.db",
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				User:    "tontine",
				Name:    "tontine",
				SSLMode: "disable",
			},
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
			Required: true,
		},
		Defaults: Defaults{
			Parts: 1,
			Role:  models.RoleUser,
		},
		Telemetry: TelemetryConfig{
			Exporter:    ExporterNone,
			ServiceName: "tontine",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration. An empty configFile skips the YAML step.
// A missing .env file is not an error.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverSQLite, DriverGormSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required for the sqlite driver"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth jwt secret is required (TONTINE_AUTH_JWT_SECRET)"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth token ttl must be positive"))
	}
	if c.Defaults.Parts <= 0 {
		errs = append(errs, fmt.Errorf("default parts must be positive, got %d", c.Defaults.Parts))
	}
	if !c.Defaults.Role.Valid() {
		errs = append(errs, fmt.Errorf("unknown default role %q", c.Defaults.Role))
	}
	switch strings.ToLower(c.Telemetry.Exporter) {
	case ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry endpoint is required for the otlp exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown telemetry exporter %q", c.Telemetry.Exporter))
	}

	return errors.Join(errs...)
}
