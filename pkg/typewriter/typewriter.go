// Package typewriter reveals text one character at a time at a fixed cadence.
//
// A Renderer runs at most one reveal. Every reveal is labeled with a Token
// supplied by the caller and every emitted Frame carries it, so a consumer
// that tracks the current token can discard frames from a reveal it has
// already superseded. Starting a new reveal or cancelling disarms the
// pending tick of the previous one before anything else happens.
package typewriter

import (
	"iter"
	"sync"
	"time"
	"unicode/utf8"
)

// DefaultInterval is the delay between two revealed characters.
const DefaultInterval = 20 * time.Millisecond

// Token identifies one reveal. Callers mint a new token per reveal.
type Token uint64

// Frame is the state of a reveal after one tick.
type Frame struct {
	Token Token
	Text  string
	Count int
	Done  bool
}

// Timer is a pending tick.
type Timer interface {
	Stop() bool
}

// Scheduler arms delayed callbacks.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithInterval overrides the tick interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithScheduler replaces the wall clock, typically with a manual clock in tests.
func WithScheduler(s Scheduler) Option {
	return func(r *Renderer) {
		if s != nil {
			r.sched = s
		}
	}
}

// Renderer is a cancellable, self-rescheduling reveal. Each tick appends one
// character, hands the frame to the sink and only then arms the next tick.
// The sink is never called while the renderer holds its lock, so it may call
// back into the renderer.
type Renderer struct {
	mu       sync.Mutex
	interval time.Duration
	sched    Scheduler
	sink     func(Frame)

	epoch uint64
	token Token
	total int
	next  func() (int, string, bool)
	stop  func()
	timer Timer
}

// New creates an idle Renderer that delivers frames to sink.
func New(sink func(Frame), opts ...Option) *Renderer {
	r := &Renderer{
		interval: DefaultInterval,
		sched:    wallClock{},
		sink:     sink,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the tick interval.
func (r *Renderer) Interval() time.Duration {
	return r.interval
}

// Start discards any in-flight reveal and begins revealing text under token.
// Empty text completes on the first tick with a single Done frame.
func (r *Renderer) Start(token Token, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disarm()

	r.token = token
	r.total = utf8.RuneCountInString(text)
	r.next, r.stop = iter.Pull2(Prefixes(text))

	epoch := r.epoch
	delay := r.interval
	if r.total == 0 {
		delay = 0
	}
	r.timer = r.sched.AfterFunc(delay, func() { r.tick(epoch) })
}

// Cancel disarms the in-flight reveal, if any. No further frames are emitted
// for it.
func (r *Renderer) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disarm()
}

// Active reports whether a reveal is in flight and returns its token.
func (r *Renderer) Active() (Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token, r.next != nil
}

func (r *Renderer) tick(epoch uint64) {
	r.mu.Lock()
	if epoch != r.epoch || r.next == nil {
		r.mu.Unlock()
		return
	}

	frame := Frame{Token: r.token, Done: true}
	if count, prefix, ok := r.next(); ok {
		frame.Text = prefix
		frame.Count = count
		frame.Done = count >= r.total
	}
	if frame.Done {
		r.disarm()
	}
	r.mu.Unlock()

	if r.sink != nil {
		r.sink(frame)
	}

	if frame.Done {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch == r.epoch && r.next != nil {
		r.timer = r.sched.AfterFunc(r.interval, func() { r.tick(epoch) })
	}
}

// disarm must be called with mu held.
func (r *Renderer) disarm() {
	r.epoch++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.stop != nil {
		r.stop()
	}
	r.next = nil
	r.stop = nil
}

// Prefixes yields every non-empty rune prefix of s in order, paired with its
// length in runes.
func Prefixes(s string) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		count := 0
		for end := 0; end < len(s); {
			_, width := utf8.DecodeRuneInString(s[end:])
			end += width
			count++
			if !yield(count, s[:end]) {
				return
			}
		}
	}
}
