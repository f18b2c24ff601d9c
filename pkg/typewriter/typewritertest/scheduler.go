// Package typewritertest provides a manual clock for driving reveals in tests.
package typewritertest

import (
	"sync"
	"time"

	"github.com/JaimeStill/docassist/pkg/typewriter"
)

// Scheduler is a typewriter.Scheduler whose callbacks fire only when the
// test advances it. Callbacks run on the caller's goroutine.
type Scheduler struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*timer
}

type timer struct {
	s   *Scheduler
	at  time.Duration
	seq int
	f   func()
}

func (t *timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i, p := range t.s.pending {
		if p == t {
			t.s.pending = append(t.s.pending[:i], t.s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// New creates a Scheduler at time zero.
func New() *Scheduler {
	return &Scheduler{}
}

// AfterFunc records f to fire d after the current manual time.
func (s *Scheduler) AfterFunc(d time.Duration, f func()) typewriter.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &timer{s: s, at: s.now + d, seq: s.seq, f: f}
	s.pending = append(s.pending, t)
	return t
}

// Now returns the elapsed manual time.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of armed callbacks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Step fires the earliest armed callback and reports whether one existed.
func (s *Scheduler) Step() bool {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return false
	}

	idx := 0
	for i, t := range s.pending {
		first := s.pending[idx]
		if t.at < first.at || (t.at == first.at && t.seq < first.seq) {
			idx = i
		}
	}
	t := s.pending[idx]
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	if t.at > s.now {
		s.now = t.at
	}
	s.mu.Unlock()

	t.f()
	return true
}

// RunAll steps until nothing is armed and returns the number of callbacks
// fired. It stops after limit steps when limit is positive.
func (s *Scheduler) RunAll(limit int) int {
	n := 0
	for limit <= 0 || n < limit {
		if !s.Step() {
			break
		}
		n++
	}
	return n
}
