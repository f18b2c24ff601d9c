// Package acquisition captures the input of an analysis session: either an
// uploaded report document or a manually entered blood panel. Exactly one
// acquisition mode is active at a time.
package acquisition

import (
	"fmt"
	"strings"

	"github.com/JaimeStill/docassist/internal/panel"
)

// Mode is the active acquisition mode.
type Mode int

const (
	ModeUnset Mode = iota
	ModeUpload
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeUpload:
		return "upload"
	case ModeManual:
		return "manual"
	default:
		return ""
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode resolves "upload" or "manual".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upload":
		return ModeUpload, nil
	case "manual":
		return ModeManual, nil
	default:
		return ModeUnset, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Source is the captured report submitted for analysis. It is one of
// Document or ManualPanel.
type Source interface {
	Mode() Mode
	isSource()
}

// Document is an uploaded report. The payload is forwarded untouched; only
// the remote service parses its content.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (Document) Mode() Mode { return ModeUpload }
func (Document) isSource()  {}

// ManualPanel is a fully entered and validated blood panel.
type ManualPanel struct {
	Panel panel.BloodPanel
}

func (ManualPanel) Mode() Mode { return ModeManual }
func (ManualPanel) isSource()  {}
