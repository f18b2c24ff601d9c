package infrastructure_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/JaimeStill/docassist/internal/config"
	"github.com/JaimeStill/docassist/internal/infrastructure"
	"github.com/JaimeStill/docassist/pkg/database"
	"github.com/JaimeStill/docassist/pkg/storage"
)

func historyConfig() *config.Config {
	return &config.Config{
		History: config.HistoryConfig{Enabled: true},
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "docassist",
			User:            "docassist",
			Password:        "docassist",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			Provider:  storage.ProviderMemory,
			Container: "reports",
		},
		Version: "0.1.0",
	}
}

func TestNewWithoutHistory(t *testing.T) {
	infra, err := infrastructure.New(&config.Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if infra.Lifecycle == nil {
		t.Error("Lifecycle is nil")
	}
	if infra.Logger == nil {
		t.Error("Logger is nil")
	}
	if infra.Database != nil || infra.Storage != nil {
		t.Error("database and storage should be nil while history is disabled")
	}

	if err := infra.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	infra.Lifecycle.WaitForStartup()
	if !infra.Lifecycle.Ready() {
		t.Error("lifecycle should be ready with no registered checks")
	}
}

func TestNewWithHistory(t *testing.T) {
	infra, err := infrastructure.New(historyConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if infra.Database == nil {
		t.Error("Database is nil")
	}
	if infra.Storage == nil {
		t.Error("Storage is nil")
	}
}

func TestNewUnknownStorageProvider(t *testing.T) {
	cfg := historyConfig()
	cfg.Storage.Provider = "ftp"

	_, err := infrastructure.New(cfg)
	if err == nil || !strings.Contains(err.Error(), "storage init failed") {
		t.Errorf("error = %v, want storage init failure", err)
	}
}

func TestLoggerOptions(t *testing.T) {
	var buf bytes.Buffer
	infra, err := infrastructure.New(
		&config.Config{},
		infrastructure.WithOutput(&buf),
		infrastructure.WithLevel(slog.LevelWarn),
	)
	if err != nil {
		t.Fatal(err)
	}

	infra.Logger.Info("hidden")
	infra.Logger.Warn("shown", "system", "test")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "system=test") {
		t.Errorf("output = %q", out)
	}
}
