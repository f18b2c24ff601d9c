// Package lifecycle coordinates startup, readiness, and shutdown across the
// subsystems of a running service.
package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Readiness is a point-in-time view of the coordinator and its named checks.
type Readiness struct {
	Ready  bool            `json:"ready"`
	Checks map[string]bool `json:"checks,omitempty"`
}

// Coordinator manages startup and shutdown hooks for the application lifecycle.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	startupWg  sync.WaitGroup
	shutdownWg sync.WaitGroup

	mu       sync.RWMutex
	started  bool
	checks   map[string]ReadinessChecker
	stopOnce sync.Once
	stopErr  error
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
		checks: make(map[string]ReadinessChecker),
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup registers a function to run concurrently during startup.
func (c *Coordinator) OnStartup(fn func()) {
	c.startupWg.Go(fn)
}

// OnShutdown registers a function to run concurrently during shutdown.
// Shutdown hooks should block on <-c.Context().Done() before executing cleanup.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// Check registers a named readiness checker. A registered checker that
// reports false keeps the coordinator from reporting ready.
func (c *Coordinator) Check(name string, checker ReadinessChecker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = checker
}

// Ready returns true after all startup hooks have completed and every
// registered checker reports ready.
func (c *Coordinator) Ready() bool {
	return c.Readiness().Ready
}

// Readiness evaluates every registered checker.
func (c *Coordinator) Readiness() Readiness {
	c.mu.RLock()
	started := c.started
	checks := maps.Clone(c.checks)
	c.mu.RUnlock()

	r := Readiness{Ready: started}
	if len(checks) == 0 {
		return r
	}

	r.Checks = make(map[string]bool, len(checks))
	for name, checker := range checks {
		ok := checker.Ready()
		r.Checks[name] = ok
		if !ok {
			r.Ready = false
		}
	}
	return r
}

// WaitForStartup blocks until all startup hooks have completed.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
}

// Shutdown cancels the context and waits for shutdown hooks to complete
// within the given timeout. Later calls return the first call's result.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.stopOnce.Do(func() {
		c.cancel()

		done := make(chan struct{})
		go func() {
			c.shutdownWg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			c.stopErr = fmt.Errorf("shutdown timeout after %v", timeout)
		}
	})
	return c.stopErr
}
