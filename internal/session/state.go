package session

import (
	"github.com/JaimeStill/docassist/internal/acquisition"
	"github.com/JaimeStill/docassist/internal/prediction"
	"github.com/JaimeStill/docassist/pkg/typewriter"
)

// Phase names the position of a session in its workflow.
type Phase string

const (
	PhaseSelectingMode Phase = "selecting_mode"
	PhaseUploading     Phase = "uploading"
	PhaseManualEntry   Phase = "manual_entry"
	PhaseSubmitting    Phase = "submitting"
	PhaseStreaming     Phase = "streaming"
	PhaseComplete      Phase = "complete"
	PhaseFailed        Phase = "failed"
)

// MissingNarrative replaces a success response that carries no analysis so
// the reveal still runs to completion.
const MissingNarrative = "Error: Analysis not available"

// State is one of SelectingMode, Uploading, ManualEntry, Submitting,
// Streaming, Complete or Failed.
type State interface {
	Phase() Phase
	isState()
}

type SelectingMode struct{}

type Uploading struct{}

type ManualEntry struct{}

type Submitting struct {
	Mode       acquisition.Mode
	Generation typewriter.Token
}

// Streaming holds the narrative being revealed and the prefix shown so far.
type Streaming struct {
	Mode       acquisition.Mode
	Generation typewriter.Token
	Result     prediction.Result
	Narrative  string
	Revealed   string
}

type Complete struct {
	Mode       acquisition.Mode
	Generation typewriter.Token
	Result     prediction.Result
	Narrative  string
}

type Failed struct {
	Mode       acquisition.Mode
	Generation typewriter.Token
	Result     prediction.Result
	Message    string
}

func (SelectingMode) Phase() Phase { return PhaseSelectingMode }
func (Uploading) Phase() Phase     { return PhaseUploading }
func (ManualEntry) Phase() Phase   { return PhaseManualEntry }
func (Submitting) Phase() Phase    { return PhaseSubmitting }
func (Streaming) Phase() Phase     { return PhaseStreaming }
func (Complete) Phase() Phase      { return PhaseComplete }
func (Failed) Phase() Phase        { return PhaseFailed }

func (SelectingMode) isState() {}
func (Uploading) isState()     {}
func (ManualEntry) isState()   {}
func (Submitting) isState()    {}
func (Streaming) isState()     {}
func (Complete) isState()      {}
func (Failed) isState()        {}

// ModeOf returns the acquisition mode a state belongs to.
func ModeOf(s State) acquisition.Mode {
	switch st := s.(type) {
	case Uploading:
		return acquisition.ModeUpload
	case ManualEntry:
		return acquisition.ModeManual
	case Submitting:
		return st.Mode
	case Streaming:
		return st.Mode
	case Complete:
		return st.Mode
	case Failed:
		return st.Mode
	default:
		return acquisition.ModeUnset
	}
}

// GenerationOf returns the submission generation a state belongs to, or zero.
func GenerationOf(s State) typewriter.Token {
	switch st := s.(type) {
	case Submitting:
		return st.Generation
	case Streaming:
		return st.Generation
	case Complete:
		return st.Generation
	case Failed:
		return st.Generation
	default:
		return 0
	}
}

// RevealedText returns the narrative prefix visible in s.
func RevealedText(s State) string {
	switch st := s.(type) {
	case Streaming:
		return st.Revealed
	case Complete:
		return st.Narrative
	default:
		return ""
	}
}

// Event is an input to Transition.
type Event interface {
	isEvent()
}

// ModeSelected picks an acquisition mode.
type ModeSelected struct {
	Mode acquisition.Mode
}

// Submitted starts a submission under a freshly minted generation.
type Submitted struct {
	Generation typewriter.Token
}

// ResultReceived delivers the resolved submission of a generation.
type ResultReceived struct {
	Generation typewriter.Token
	Result     prediction.Result
}

// Revealed reports the narrative prefix shown after one reveal tick.
type Revealed struct {
	Generation typewriter.Token
	Text       string
}

// RevealCompleted reports that the whole narrative is shown.
type RevealCompleted struct {
	Generation typewriter.Token
}

// Reset returns the session to mode selection.
type Reset struct{}

func (ModeSelected) isEvent()    {}
func (Submitted) isEvent()       {}
func (ResultReceived) isEvent()  {}
func (Revealed) isEvent()        {}
func (RevealCompleted) isEvent() {}
func (Reset) isEvent()           {}
