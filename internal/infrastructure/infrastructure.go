// Package infrastructure provides core service initialization for application startup.
// It assembles the shared dependencies (lifecycle, logging, and the optional
// history database and storage) that domain systems require.
package infrastructure

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JaimeStill/docassist/internal/config"
	"github.com/JaimeStill/docassist/pkg/database"
	"github.com/JaimeStill/docassist/pkg/lifecycle"
	"github.com/JaimeStill/docassist/pkg/storage"
)

// Infrastructure holds the core systems shared by the domain modules.
// Database and Storage are nil unless the history archive is enabled.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
}

// Option configures New.
type Option func(*options)

type options struct {
	out   io.Writer
	level slog.Level
}

// WithOutput sends log records to w instead of stderr.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithLevel sets the minimum log level.
func WithLevel(l slog.Level) Option {
	return func(o *options) { o.level = l }
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config, opts ...Option) (*Infrastructure, error) {
	o := options{out: os.Stderr, level: slog.LevelInfo}
	for _, opt := range opts {
		opt(&o)
	}

	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(o.out, &slog.HandlerOptions{Level: o.level}))

	infra := &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
	}

	if !cfg.History.Enabled {
		return infra, nil
	}

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	infra.Database = db
	infra.Storage = store
	return infra, nil
}

// Start registers the configured systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}
	return nil
}
