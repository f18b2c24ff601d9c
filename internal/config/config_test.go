package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/docassist/internal/config"
)

const baseConfig = `
shutdown_timeout = "20s"
version = "1.2.0"

[server]
port = 8080
read_timeout = "1m"
write_timeout = "15m"

[api]
base_path = "/api"
max_upload_size = "5MB"

[api.cors]
enabled = true
origins = ["http://localhost:3000"]

[api.pagination]
default_page_size = 25
max_page_size = 50

[prediction]
base_url = "http://inference:5000"
timeout = "90s"

[reveal]
interval = "20ms"

[export]
paper = "Letter"

[sessions]
idle_ttl = "10m"
max_sessions = 50
`

const historyConfig = `
[history]
enabled = true

[database]
name = "docassist"
user = "docassist"

[storage]
provider = "minio"
endpoint = "localhost:9000"
access_key = "docassist"
secret_key = "docassist"
`

const overlayConfig = `
[server]
port = 9090

[prediction]
base_url = "https://inference.prod.internal"
`

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Env() != "local" {
		t.Errorf("env = %q, want local", cfg.Env())
	}
	if cfg.ShutdownTimeoutDuration() != 30*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.ShutdownTimeoutDuration())
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
	if cfg.Server.ReadHeaderTimeoutDuration() != 10*time.Second || cfg.Server.IdleTimeoutDuration() != 2*time.Minute {
		t.Errorf("server timeouts = %+v", cfg.Server)
	}
	if cfg.API.BasePath != "/api" {
		t.Errorf("base path = %q", cfg.API.BasePath)
	}
	if cfg.API.MaxUploadSizeBytes() != 10*1024*1024 {
		t.Errorf("max upload = %d", cfg.API.MaxUploadSizeBytes())
	}
	if cfg.Prediction.BaseURL != "http://localhost:5000" {
		t.Errorf("prediction base url = %q", cfg.Prediction.BaseURL)
	}
	if cfg.Reveal.IntervalDuration() <= 0 {
		t.Errorf("reveal interval = %v", cfg.Reveal.IntervalDuration())
	}
	if cfg.History.Enabled {
		t.Error("history should be disabled by default")
	}
}

func TestLoadBaseConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Version != "1.2.0" {
		t.Errorf("version = %q", cfg.Version)
	}
	if cfg.ShutdownTimeoutDuration() != 20*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.ShutdownTimeoutDuration())
	}
	if cfg.API.MaxUploadSizeBytes() != 5*1024*1024 {
		t.Errorf("max upload = %d", cfg.API.MaxUploadSizeBytes())
	}
	if !cfg.API.CORS.Enabled || len(cfg.API.CORS.Origins) != 1 {
		t.Errorf("cors = %+v", cfg.API.CORS)
	}
	if cfg.API.Pagination.DefaultPageSize != 25 || cfg.API.Pagination.MaxPageSize != 50 {
		t.Errorf("pagination = %+v", cfg.API.Pagination)
	}
	if cfg.Prediction.TimeoutDuration() != 90*time.Second {
		t.Errorf("prediction timeout = %v", cfg.Prediction.TimeoutDuration())
	}
	if cfg.Reveal.IntervalDuration() != 20*time.Millisecond {
		t.Errorf("reveal interval = %v", cfg.Reveal.IntervalDuration())
	}
	if cfg.Export.Paper != "Letter" {
		t.Errorf("paper = %q", cfg.Export.Paper)
	}
	if cfg.Sessions.IdleTTLDuration() != 10*time.Minute || cfg.Sessions.MaxSessions != 50 {
		t.Errorf("sessions = %+v", cfg.Sessions)
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	writeConfig(t, dir, "config.prod.toml", overlayConfig)
	t.Setenv(config.EnvDocassistEnv, "prod")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Env() != "prod" {
		t.Errorf("env = %q", cfg.Env())
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want overlay 9090", cfg.Server.Port)
	}
	if cfg.Prediction.BaseURL != "https://inference.prod.internal" {
		t.Errorf("base url = %q", cfg.Prediction.BaseURL)
	}
	if cfg.Export.Paper != "Letter" {
		t.Errorf("paper = %q, base value should survive the overlay", cfg.Export.Paper)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)

	t.Setenv("DOCASSIST_SERVER_PORT", "7070")
	t.Setenv("DOCASSIST_PREDICTION_BASE_URL", "http://predict:8000")
	t.Setenv("DOCASSIST_REVEAL_INTERVAL", "5ms")
	t.Setenv("DOCASSIST_API_MAX_UPLOAD_SIZE", "1MB")
	t.Setenv(config.EnvDocassistVersion, "9.9.9")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Prediction.BaseURL != "http://predict:8000" {
		t.Errorf("base url = %q", cfg.Prediction.BaseURL)
	}
	if cfg.Reveal.IntervalDuration() != 5*time.Millisecond {
		t.Errorf("interval = %v", cfg.Reveal.IntervalDuration())
	}
	if cfg.API.MaxUploadSizeBytes() != 1024*1024 {
		t.Errorf("max upload = %d", cfg.API.MaxUploadSizeBytes())
	}
	if cfg.Version != "9.9.9" {
		t.Errorf("version = %q", cfg.Version)
	}
}

func TestHistoryRequiresBackingStores(t *testing.T) {
	t.Run("enabled with stores", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		writeConfig(t, dir, config.BaseConfigFile, baseConfig+historyConfig)

		cfg, err := config.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !cfg.History.Enabled {
			t.Fatal("history should be enabled")
		}
		if cfg.Storage.Provider != "minio" || cfg.Storage.Container != "reports" {
			t.Errorf("storage = %+v", cfg.Storage)
		}
		if cfg.Database.Port != 5432 {
			t.Errorf("database port = %d", cfg.Database.Port)
		}
	})

	t.Run("enabled without database", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		writeConfig(t, dir, config.BaseConfigFile, baseConfig)
		t.Setenv(config.EnvHistoryEnabled, "true")

		_, err := config.Load()
		if err == nil || !strings.Contains(err.Error(), "database") {
			t.Errorf("error = %v, want database validation failure", err)
		}
	})

	t.Run("database dsn satisfies validation", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		writeConfig(t, dir, config.BaseConfigFile, baseConfig)
		t.Setenv(config.EnvHistoryEnabled, "true")
		t.Setenv("DOCASSIST_DB_DSN", "postgres://docassist@localhost/docassist")
		t.Setenv("DOCASSIST_STORAGE_PROVIDER", "memory")

		cfg, err := config.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Database.Dsn() != "postgres://docassist@localhost/docassist" {
			t.Errorf("dsn = %q", cfg.Database.Dsn())
		}
	})
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"shutdown timeout", map[string]string{config.EnvDocassistShutdownTimeout: "soon"}, "shutdown_timeout"},
		{"server port", map[string]string{"DOCASSIST_SERVER_PORT": "70000"}, "server"},
		{"server header timeout", map[string]string{"DOCASSIST_SERVER_READ_HEADER_TIMEOUT": "5m"}, "read_header_timeout"},
		{"server idle timeout", map[string]string{"DOCASSIST_SERVER_IDLE_TIMEOUT": "0s"}, "idle_timeout"},
		{"upload size", map[string]string{"DOCASSIST_API_MAX_UPLOAD_SIZE": "lots"}, "max_upload_size"},
		{"prediction url", map[string]string{"DOCASSIST_PREDICTION_BASE_URL": "ftp://inference"}, "prediction"},
		{"reveal interval", map[string]string{"DOCASSIST_REVEAL_INTERVAL": "-1s"}, "reveal"},
		{"auth without issuer", map[string]string{"DOCASSIST_AUTH_ENABLED": "true"}, "auth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, config.BaseConfigFile, "[server\nport = ")

	if _, err := config.Load(); err == nil {
		t.Error("expected parse error")
	}
}
