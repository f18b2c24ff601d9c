package acquisition

import (
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JaimeStill/docassist/internal/panel"
	"github.com/JaimeStill/docassist/pkg/formatting"
)

// Limits constrains accepted documents. A zero MaxSize disables the size
// check; an empty Extensions list accepts any file name.
type Limits struct {
	MaxSize    int64
	Extensions []string
}

// DefaultLimits matches the upload constraints of the inference service.
func DefaultLimits() Limits {
	return Limits{
		MaxSize:    10 * 1024 * 1024,
		Extensions: []string{".pdf"},
	}
}

func (l Limits) check(filename string, size int64) error {
	if len(l.Extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(filename))
		if !slices.Contains(l.Extensions, ext) {
			return fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedDocument, filename, strings.Join(l.Extensions, ", "))
		}
	}
	if l.MaxSize > 0 && size > l.MaxSize {
		return fmt.Errorf("%w: %s > %s",
			ErrDocumentTooLarge,
			formatting.FormatBytes(size, 1),
			formatting.FormatBytes(l.MaxSize, 1),
		)
	}
	return nil
}

// Acquisition is the mutable input draft of one session. It is not safe for
// concurrent use; the session controller serializes access.
type Acquisition struct {
	limits   Limits
	mode     Mode
	document *Document
	panel    panel.BloodPanel
	focus    panel.Field
}

// New creates an Acquisition with no active mode.
func New(limits Limits) *Acquisition {
	return &Acquisition{limits: limits}
}

// Mode returns the active mode.
func (a *Acquisition) Mode() Mode {
	return a.mode
}

// Select activates a mode with an empty draft. Switching modes requires Back.
func (a *Acquisition) Select(mode Mode) error {
	if mode != ModeUpload && mode != ModeManual {
		return ErrInvalidMode
	}
	if a.mode != ModeUnset {
		return fmt.Errorf("%w: %s", ErrModeActive, a.mode)
	}

	a.clear()
	a.mode = mode
	if mode == ModeManual {
		a.focus = panel.Fields()[0]
	}
	return nil
}

// Back clears the mode and any captured input.
func (a *Acquisition) Back() {
	a.clear()
	a.mode = ModeUnset
}

// Attach captures the uploaded document, replacing any previous one.
func (a *Acquisition) Attach(filename string, data []byte) error {
	if a.mode != ModeUpload {
		return ErrWrongMode
	}
	if err := a.limits.check(filename, int64(len(data))); err != nil {
		return err
	}

	a.document = &Document{
		Filename:    filepath.Base(filename),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}
	return nil
}

// Document returns the captured document, or nil.
func (a *Acquisition) Document() *Document {
	return a.document
}

// Edit stores raw as typed. Sex is uppercased immediately; no other
// validation happens until the field loses focus.
func (a *Acquisition) Edit(f panel.Field, raw string) error {
	if a.mode != ModeManual {
		return ErrWrongMode
	}
	if f == panel.Sex {
		raw = strings.ToUpper(raw)
	}
	return a.panel.Set(f, raw)
}

// Blur validates f when it loses focus. Empty values are skipped. A rejected
// value is cleared and the ValidationError is returned for display.
func (a *Acquisition) Blur(f panel.Field) error {
	if a.mode != ModeManual {
		return ErrWrongMode
	}
	if _, ok := panel.Lookup(f); !ok {
		return panel.ErrUnknownField
	}

	raw := a.panel.Get(f)
	if raw == "" {
		return nil
	}

	reading, err := panel.Validate(f, raw)
	if err != nil {
		a.panel.Clear(f)
		return err
	}

	return a.panel.Set(f, reading.Text)
}

// Focus moves focus to f.
func (a *Acquisition) Focus(f panel.Field) error {
	if a.mode != ModeManual {
		return ErrWrongMode
	}
	if _, ok := panel.Lookup(f); !ok {
		return panel.ErrUnknownField
	}
	a.focus = f
	return nil
}

// Focused returns the field that currently has focus.
func (a *Acquisition) Focused() panel.Field {
	return a.focus
}

// Commit handles the commit key on f. Focus moves to the next field in
// entry order, which blurs f; on the last field Commit is a no-op. The blur
// result is returned and focus advances even when the value was rejected.
func (a *Acquisition) Commit(f panel.Field) (panel.Field, error) {
	if a.mode != ModeManual {
		return a.focus, ErrWrongMode
	}
	if _, ok := panel.Lookup(f); !ok {
		return a.focus, panel.ErrUnknownField
	}
	if panel.Next(f) == f {
		return a.focus, nil
	}

	err := a.Blur(f)
	a.focus = panel.Next(f)
	return a.focus, err
}

// Panel returns a copy of the manual panel.
func (a *Acquisition) Panel() panel.BloodPanel {
	return a.panel
}

// AllFieldsFilled reports whether every manual field is non-empty.
func (a *Acquisition) AllFieldsFilled() bool {
	return a.panel.Filled()
}

// Ready reports whether the draft can be submitted.
func (a *Acquisition) Ready() bool {
	_, err := a.Source()
	return err == nil
}

// Source returns the submission source for the active mode.
func (a *Acquisition) Source() (Source, error) {
	switch a.mode {
	case ModeUpload:
		if a.document == nil {
			return nil, ErrNoDocument
		}
		doc := *a.document
		return doc, nil
	case ModeManual:
		if !a.panel.Filled() {
			return nil, fmt.Errorf("%w: missing %v", ErrIncompletePanel, a.panel.Missing())
		}
		if err := a.panel.Validate(); err != nil {
			return nil, err
		}
		return ManualPanel{Panel: a.panel}, nil
	default:
		return nil, fmt.Errorf("%w: no acquisition mode selected", ErrInvalidMode)
	}
}

func (a *Acquisition) clear() {
	a.document = nil
	a.panel = panel.BloodPanel{}
	a.focus = ""
}
