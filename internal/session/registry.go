package session

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docassist/pkg/lifecycle"
)

// Config holds live session retention settings.
type Config struct {
	IdleTTL       string `toml:"idle_ttl"`
	SweepInterval string `toml:"sweep_interval"`
	MaxSessions   int    `toml:"max_sessions"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	IdleTTL       string
	SweepInterval string
}

// IdleTTLDuration returns IdleTTL as a time.Duration.
func (c *Config) IdleTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.IdleTTL)
	return d
}

// SweepIntervalDuration returns SweepInterval as a time.Duration.
func (c *Config) SweepIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.SweepInterval)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.IdleTTL == "" {
		c.IdleTTL = "30m"
	}
	if c.SweepInterval == "" {
		c.SweepInterval = "1m"
	}
	if c.MaxSessions == 0 {
		c.MaxSessions = 1000
	}

	if env != nil {
		if v := os.Getenv(env.IdleTTL); v != "" {
			c.IdleTTL = v
		}
		if v := os.Getenv(env.SweepInterval); v != "" {
			c.SweepInterval = v
		}
	}

	if d, err := time.ParseDuration(c.IdleTTL); err != nil || d <= 0 {
		return fmt.Errorf("invalid idle_ttl: %q", c.IdleTTL)
	}
	if d, err := time.ParseDuration(c.SweepInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid sweep_interval: %q", c.SweepInterval)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must not be negative")
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.IdleTTL != "" {
		c.IdleTTL = overlay.IdleTTL
	}
	if overlay.SweepInterval != "" {
		c.SweepInterval = overlay.SweepInterval
	}
	if overlay.MaxSessions != 0 {
		c.MaxSessions = overlay.MaxSessions
	}
}

// Factory builds the controller for a new session id.
type Factory func(id uuid.UUID) *Controller

// Registry holds the live sessions of the process and expires idle ones.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Controller
	factory  Factory
	cfg      *Config
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg *Config, factory Factory, logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Controller),
		factory:  factory,
		cfg:      cfg,
		logger:   logger.With("system", "sessions"),
	}
}

// Create starts a new session.
func (r *Registry) Create() (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		return nil, ErrCapacity
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	c := r.factory(id)
	r.sessions[id] = c
	r.logger.Info("session created", "session", id, "live", len(r.sessions))
	return c, nil
}

// Get returns the session with id.
func (r *Registry) Get(id uuid.UUID) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Delete closes and removes the session with id.
func (r *Registry) Delete(id uuid.UUID) error {
	r.mu.Lock()
	c, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	c.Close()
	r.logger.Info("session deleted", "session", id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions idle since before now minus the idle TTL. Sessions
// waiting on the service or revealing are never idle.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.cfg.IdleTTLDuration())

	r.mu.Lock()
	var expired []*Controller
	for id, c := range r.sessions {
		switch c.State().Phase() {
		case PhaseSubmitting, PhaseStreaming:
			continue
		}
		if c.LastActivity().Before(cutoff) {
			expired = append(expired, c)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, c := range expired {
		c.Close()
	}
	if len(expired) > 0 {
		r.logger.Info("expired idle sessions", "count", len(expired))
	}
	return len(expired)
}

// Start registers the idle sweeper and closes every session on shutdown.
func (r *Registry) Start(lc *lifecycle.Coordinator) error {
	r.logger.Info("starting session registry")

	go func() {
		ticker := time.NewTicker(r.cfg.SweepIntervalDuration())
		defer ticker.Stop()
		for {
			select {
			case <-lc.Context().Done():
				return
			case now := <-ticker.C:
				r.Sweep(now)
			}
		}
	}()

	lc.OnShutdown(func() {
		<-lc.Context().Done()

		r.mu.Lock()
		sessions := r.sessions
		r.sessions = make(map[uuid.UUID]*Controller)
		r.mu.Unlock()

		for _, c := range sessions {
			c.Close()
		}
		r.logger.Info("session registry stopped", "closed", len(sessions))
	})

	return nil
}
