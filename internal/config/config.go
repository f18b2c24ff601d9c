// Package config loads the docassist service configuration from TOML files
// and DOCASSIST_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/docassist/internal/export"
	"github.com/JaimeStill/docassist/internal/prediction"
	"github.com/JaimeStill/docassist/internal/session"
	"github.com/JaimeStill/docassist/pkg/database"
	"github.com/JaimeStill/docassist/pkg/storage"
	"github.com/JaimeStill/docassist/pkg/typewriter"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvDocassistEnv             = "DOCASSIST_ENV"
	EnvDocassistShutdownTimeout = "DOCASSIST_SHUTDOWN_TIMEOUT"
	EnvDocassistVersion         = "DOCASSIST_VERSION"
	EnvHistoryEnabled           = "DOCASSIST_HISTORY_ENABLED"
)

var databaseEnv = &database.Env{
	URL:             "DOCASSIST_DB_DSN",
	Host:            "DOCASSIST_DB_HOST",
	Port:            "DOCASSIST_DB_PORT",
	Name:            "DOCASSIST_DB_NAME",
	User:            "DOCASSIST_DB_USER",
	Password:        "DOCASSIST_DB_PASSWORD",
	SSLMode:         "DOCASSIST_DB_SSL_MODE",
	ApplicationName: "DOCASSIST_DB_APPLICATION_NAME",
	MaxOpenConns:    "DOCASSIST_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "DOCASSIST_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "DOCASSIST_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "DOCASSIST_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Provider:         "DOCASSIST_STORAGE_PROVIDER",
	Container:        "DOCASSIST_STORAGE_CONTAINER",
	ConnectionString: "DOCASSIST_STORAGE_CONNECTION_STRING",
	ServiceURL:       "DOCASSIST_STORAGE_SERVICE_URL",
	Endpoint:         "DOCASSIST_STORAGE_ENDPOINT",
	AccessKey:        "DOCASSIST_STORAGE_ACCESS_KEY",
	SecretKey:        "DOCASSIST_STORAGE_SECRET_KEY",
	Region:           "DOCASSIST_STORAGE_REGION",
	UseSSL:           "DOCASSIST_STORAGE_USE_SSL",
}

var predictionEnv = &prediction.Env{
	BaseURL:      "DOCASSIST_PREDICTION_BASE_URL",
	DocumentPath: "DOCASSIST_PREDICTION_DOCUMENT_PATH",
	ManualPath:   "DOCASSIST_PREDICTION_MANUAL_PATH",
	Timeout:      "DOCASSIST_PREDICTION_TIMEOUT",
}

var revealEnv = &typewriter.Env{
	Interval: "DOCASSIST_REVEAL_INTERVAL",
}

var exportEnv = &export.Env{
	Paper:    "DOCASSIST_EXPORT_PAPER",
	Font:     "DOCASSIST_EXPORT_FONT",
	BodySize: "DOCASSIST_EXPORT_BODY_SIZE",
}

var sessionsEnv = &session.Env{
	IdleTTL:       "DOCASSIST_SESSIONS_IDLE_TTL",
	SweepInterval: "DOCASSIST_SESSIONS_SWEEP_INTERVAL",
}

// Config is the root configuration for the docassist service.
type Config struct {
	Server          ServerConfig      `toml:"server"`
	API             APIConfig         `toml:"api"`
	Prediction      prediction.Config `toml:"prediction"`
	Reveal          typewriter.Config `toml:"reveal"`
	Export          export.Config     `toml:"export"`
	Sessions        session.Config    `toml:"sessions"`
	History         HistoryConfig     `toml:"history"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
	Version         string            `toml:"version"`
}

// HistoryConfig toggles the analysis archive. The database and storage
// sections are only required while it is enabled.
type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
}

// Env returns the DOCASSIST_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvDocassistEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	if overlay.History.Enabled {
		c.History.Enabled = true
	}
	c.Server.Merge(&overlay.Server)
	c.API.Merge(&overlay.API)
	c.Prediction.Merge(&overlay.Prediction)
	c.Reveal.Merge(&overlay.Reveal)
	c.Export.Merge(&overlay.Export)
	c.Sessions.Merge(&overlay.Sessions)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Prediction.Finalize(predictionEnv); err != nil {
		return fmt.Errorf("prediction: %w", err)
	}
	if err := c.Reveal.Finalize(revealEnv); err != nil {
		return fmt.Errorf("reveal: %w", err)
	}
	if err := c.Export.Finalize(exportEnv); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := c.Sessions.Finalize(sessionsEnv); err != nil {
		return fmt.Errorf("sessions: %w", err)
	}

	if !c.History.Enabled {
		return nil
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvDocassistShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvDocassistVersion); v != "" {
		c.Version = v
	}
	if v := os.Getenv(EnvHistoryEnabled); v != "" {
		c.History.Enabled = v == "true" || v == "1"
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvDocassistEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
