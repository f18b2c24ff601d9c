// Package session orchestrates one analysis workflow: mode selection, input
// acquisition, submission, live reveal of the returned narrative and export.
//
// The workflow state is a single State value advanced by the pure Transition
// function. Every submission mints a new generation; results and reveal
// ticks carrying an older generation are discarded, so a reset or a
// resubmission can never be overwritten by work it superseded.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docassist/internal/acquisition"
	"github.com/JaimeStill/docassist/internal/export"
	"github.com/JaimeStill/docassist/internal/panel"
	"github.com/JaimeStill/docassist/internal/prediction"
	"github.com/JaimeStill/docassist/pkg/typewriter"
)

// Exporter renders a completed narrative.
type Exporter interface {
	Export(text string) (*export.Document, error)
}

// Completion describes a session that reached PhaseComplete.
type Completion struct {
	SessionID  uuid.UUID
	Generation typewriter.Token
	Source     acquisition.Source
	Result     prediction.Result
	Narrative  string
}

// Option configures a Controller.
type Option func(*Controller)

// WithLimits sets the document constraints applied on attach.
func WithLimits(l acquisition.Limits) Option {
	return func(c *Controller) { c.limits = l }
}

// WithScheduler drives reveal ticks from s instead of the wall clock.
func WithScheduler(s typewriter.Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// WithInterval sets the reveal tick interval.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// WithCompletion registers fn to run each time a reveal completes. fn runs on
// the reveal goroutine after the session lock is released.
func WithCompletion(fn func(Completion)) Option {
	return func(c *Controller) { c.onComplete = fn }
}

// Controller owns one session. All methods are safe for concurrent use.
type Controller struct {
	id         uuid.UUID
	client     prediction.Client
	exporter   Exporter
	logger     *slog.Logger
	onComplete func(Completion)
	limits     acquisition.Limits
	sched      typewriter.Scheduler
	interval   time.Duration
	renderer   *typewriter.Renderer

	mu         sync.Mutex
	state      State
	draft      *acquisition.Acquisition
	generation typewriter.Token
	submitted  acquisition.Source
	notice     string
	cancel     context.CancelFunc
	watchers   map[int]chan Snapshot
	nextWatch  int
	closed     bool
	updated    time.Time
}

// New creates a Controller in PhaseSelectingMode.
func New(id uuid.UUID, client prediction.Client, exporter Exporter, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		id:       id,
		client:   client,
		exporter: exporter,
		logger:   logger.With("session", id.String()),
		limits:   acquisition.DefaultLimits(),
		state:    SelectingMode{},
		watchers: make(map[int]chan Snapshot),
		updated:  time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.draft = acquisition.New(c.limits)

	var ropts []typewriter.Option
	if c.sched != nil {
		ropts = append(ropts, typewriter.WithScheduler(c.sched))
	}
	if c.interval > 0 {
		ropts = append(ropts, typewriter.WithInterval(c.interval))
	}
	c.renderer = typewriter.New(c.onFrame, ropts...)

	return c
}

// ID returns the session identifier.
func (c *Controller) ID() uuid.UUID {
	return c.id
}

// SelectMode leaves PhaseSelectingMode for upload or manual entry with an
// empty draft and no prior result.
func (c *Controller) SelectMode(mode acquisition.Mode) error {
	return c.update(func() error {
		next, err := Transition(c.state, ModeSelected{Mode: mode})
		if err != nil {
			return err
		}
		if err := c.draft.Select(mode); err != nil {
			return err
		}
		c.state = next
		c.notice = ""
		c.logger.Info("mode selected", "mode", mode)
		return nil
	})
}

// Back resets the session from any phase. The in-flight request and reveal
// are abandoned and the draft is discarded.
func (c *Controller) Back() error {
	return c.update(func() error {
		next, _ := Transition(c.state, Reset{})
		c.abandon()
		c.draft.Back()
		c.state = next
		c.submitted = nil
		c.notice = ""
		c.logger.Info("session reset")
		return nil
	})
}

// Attach captures the document to upload.
func (c *Controller) Attach(filename string, data []byte) error {
	return c.update(func() error {
		if err := c.draft.Attach(filename, data); err != nil {
			return err
		}
		c.notice = ""
		return nil
	})
}

// Edit stores raw as the value of f.
func (c *Controller) Edit(f panel.Field, raw string) error {
	return c.update(func() error {
		if err := c.draft.Edit(f, raw); err != nil {
			return err
		}
		c.notice = ""
		return nil
	})
}

// Blur validates f as it loses focus. A rejected value is cleared and the
// rejection is returned and kept as the session notice.
func (c *Controller) Blur(f panel.Field) error {
	return c.update(func() error {
		return c.noted(c.draft.Blur(f))
	})
}

// Focus moves focus to f.
func (c *Controller) Focus(f panel.Field) error {
	return c.update(func() error {
		return c.draft.Focus(f)
	})
}

// Commit advances focus from f to the next field, validating f on the way.
func (c *Controller) Commit(f panel.Field) (panel.Field, error) {
	var next panel.Field
	err := c.update(func() error {
		var err error
		next, err = c.draft.Commit(f)
		return c.noted(err)
	})
	return next, err
}

// Submit sends the draft and blocks until the service responds. On return
// the session is Streaming, Failed, or already superseded.
func (c *Controller) Submit(ctx context.Context) (Snapshot, error) {
	gen, src, rctx, cancel, err := c.begin(ctx)
	if err != nil {
		return c.Snapshot(), err
	}
	defer cancel()

	c.resolve(gen, c.client.Submit(rctx, src))
	return c.Snapshot(), nil
}

// SubmitAsync starts a submission and returns its generation without
// waiting for the response. The request outlives ctx cancellation; it is
// abandoned only by Back, Close, or a newer submission.
func (c *Controller) SubmitAsync(ctx context.Context) (typewriter.Token, error) {
	gen, src, rctx, cancel, err := c.begin(context.WithoutCancel(ctx))
	if err != nil {
		return 0, err
	}

	go func() {
		defer cancel()
		c.resolve(gen, c.client.Submit(rctx, src))
	}()
	return gen, nil
}

// Export renders the completed narrative. It is available only in
// PhaseComplete.
func (c *Controller) Export() (*export.Document, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	st, ok := c.state.(Complete)
	c.mu.Unlock()

	if !ok {
		return nil, ErrExportUnavailable
	}
	return c.exporter.Export(st.Narrative)
}

// Close abandons in-flight work and ends every subscription.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.abandon()
	for id, ch := range c.watchers {
		close(ch)
		delete(c.watchers, id)
	}
}

// State returns the current workflow state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastActivity returns when the session last changed.
func (c *Controller) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updated
}

func (c *Controller) begin(ctx context.Context) (typewriter.Token, acquisition.Source, context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, nil, nil, nil, ErrClosed
	}

	gen := c.generation + 1
	next, err := Transition(c.state, Submitted{Generation: gen})
	if err != nil {
		return 0, nil, nil, nil, err
	}

	src, err := c.draft.Source()
	if err != nil {
		return 0, nil, nil, nil, fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	c.abandon()

	rctx, cancel := context.WithCancel(ctx)
	c.generation = gen
	c.cancel = cancel
	c.submitted = src
	c.state = next
	c.notice = ""
	c.changed()

	c.logger.Info("submission started", "generation", gen, "mode", src.Mode())
	return gen, src, rctx, cancel, nil
}

func (c *Controller) resolve(gen typewriter.Token, res prediction.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	next, err := Transition(c.state, ResultReceived{Generation: gen, Result: res})
	if err != nil {
		c.logger.Debug("discarding result", "generation", gen, "error", err)
		return
	}

	c.state = next
	c.cancel = nil

	switch st := next.(type) {
	case Streaming:
		c.logger.Info("submission succeeded", "generation", gen, "prediction", res.Prediction)
		c.renderer.Start(st.Generation, st.Narrative)
	case Failed:
		c.logger.Warn("submission failed", "generation", gen, "error", st.Message)
	}
	c.changed()
}

func (c *Controller) onFrame(f typewriter.Frame) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	next, err := Transition(c.state, Revealed{Generation: f.Token, Text: f.Text})
	if err == nil && f.Done {
		next, err = Transition(next, RevealCompleted{Generation: f.Token})
	}
	if err != nil {
		c.mu.Unlock()
		if !errors.Is(err, ErrStaleGeneration) {
			c.logger.Error("reveal frame rejected", "generation", f.Token, "error", err)
		}
		return
	}

	c.state = next
	c.changed()

	var done *Completion
	if st, ok := next.(Complete); ok {
		c.logger.Info("reveal complete", "generation", st.Generation, "characters", f.Count)
		if c.onComplete != nil {
			done = &Completion{
				SessionID:  c.id,
				Generation: st.Generation,
				Source:     c.submitted,
				Result:     st.Result,
				Narrative:  st.Narrative,
			}
		}
	}
	c.mu.Unlock()

	if done != nil {
		c.onComplete(*done)
	}
}

// update runs fn under the session lock and publishes the result. fn errors
// still publish, since a rejected blur clears a field.
func (c *Controller) update(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	err := fn()
	c.changed()
	return err
}

func (c *Controller) noted(err error) error {
	var ve *panel.ValidationError
	if errors.As(err, &ve) {
		c.notice = ve.Error()
	}
	return err
}

// abandon must be called with mu held.
func (c *Controller) abandon() {
	c.renderer.Cancel()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// changed must be called with mu held.
func (c *Controller) changed() {
	c.updated = time.Now()
	snap := c.snapshot()
	for _, ch := range c.watchers {
		offer(ch, snap)
	}
}
