package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docassist/internal/acquisition"
	"github.com/JaimeStill/docassist/internal/panel"
	"github.com/JaimeStill/docassist/internal/prediction"
	"github.com/JaimeStill/docassist/pkg/typewriter"
)

// DocumentInfo describes an attached document without its payload.
type DocumentInfo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID              uuid.UUID           `json:"id"`
	Phase           Phase               `json:"phase"`
	Mode            acquisition.Mode    `json:"mode"`
	Generation      typewriter.Token    `json:"generation"`
	Document        *DocumentInfo       `json:"document,omitempty"`
	Panel           *panel.BloodPanel   `json:"panel,omitempty"`
	Focus           panel.Field         `json:"focus,omitempty"`
	AllFieldsFilled bool                `json:"all_fields_filled"`
	CanSubmit       bool                `json:"can_submit"`
	CanExport       bool                `json:"can_export"`
	Revealed        string              `json:"revealed"`
	Prediction      string              `json:"prediction,omitempty"`
	Error           string              `json:"error,omitempty"`
	Failure         *prediction.Failure `json:"failure,omitempty"`
	Notice          string              `json:"notice,omitempty"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Snapshot returns the current view of the session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Subscribe returns a channel that receives the current snapshot and then
// every later change. Slow readers only see the most recent snapshot. The
// channel is closed by the returned cancel func or when the session closes.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = ch
	ch <- c.snapshot()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if w, ok := c.watchers[id]; ok {
			close(w)
			delete(c.watchers, id)
		}
	}
}

// snapshot must be called with mu held.
func (c *Controller) snapshot() Snapshot {
	s := Snapshot{
		ID:         c.id,
		Phase:      c.state.Phase(),
		Mode:       c.draft.Mode(),
		Generation: GenerationOf(c.state),
		Revealed:   RevealedText(c.state),
		Notice:     c.notice,
		UpdatedAt:  c.updated,
	}

	switch s.Mode {
	case acquisition.ModeUpload:
		if doc := c.draft.Document(); doc != nil {
			s.Document = &DocumentInfo{
				Filename:    doc.Filename,
				ContentType: doc.ContentType,
				Size:        len(doc.Data),
			}
		}
	case acquisition.ModeManual:
		p := c.draft.Panel()
		s.Panel = &p
		s.Focus = c.draft.Focused()
		s.AllFieldsFilled = c.draft.AllFieldsFilled()
	}

	switch st := c.state.(type) {
	case Streaming:
		s.Prediction = st.Result.Prediction
	case Complete:
		s.Prediction = st.Result.Prediction
		s.CanExport = true
	case Failed:
		s.Error = st.Message
		s.Failure = st.Result.Failure
	}

	if s.Phase != PhaseSelectingMode && s.Phase != PhaseSubmitting {
		s.CanSubmit = c.draft.Ready()
	}

	return s
}

// Terminal reports whether the snapshot is at rest after a submission.
func (s Snapshot) Terminal() bool {
	return s.Phase == PhaseComplete || s.Phase == PhaseFailed
}

// offer replaces any unread snapshot in ch with snap.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
