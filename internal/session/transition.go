package session

import (
	"fmt"
	"strings"

	"github.com/JaimeStill/docassist/internal/acquisition"
	"github.com/JaimeStill/docassist/internal/prediction"
	"github.com/JaimeStill/docassist/pkg/typewriter"
)

// Transition computes the state that follows e in s. It has no side effects;
// the controller applies the returned state and performs the effects the new
// state implies. Events tagged with a generation other than the one s
// belongs to fail with ErrStaleGeneration.
func Transition(s State, e Event) (State, error) {
	switch ev := e.(type) {
	case Reset:
		return SelectingMode{}, nil

	case ModeSelected:
		if _, ok := s.(SelectingMode); !ok {
			return s, invalid(s, "select mode")
		}
		switch ev.Mode {
		case acquisition.ModeUpload:
			return Uploading{}, nil
		case acquisition.ModeManual:
			return ManualEntry{}, nil
		default:
			return s, fmt.Errorf("%w: %v", acquisition.ErrInvalidMode, ev.Mode)
		}

	case Submitted:
		switch s.(type) {
		case SelectingMode:
			return s, invalid(s, "submit")
		case Submitting:
			return s, ErrSubmitInFlight
		}
		if ev.Generation <= GenerationOf(s) {
			return s, fmt.Errorf("%w: generation %d is not newer than %d", ErrInvalidTransition, ev.Generation, GenerationOf(s))
		}
		return Submitting{Mode: ModeOf(s), Generation: ev.Generation}, nil

	case ResultReceived:
		st, err := expect[Submitting](s, ev.Generation, "receive result")
		if err != nil {
			return s, err
		}
		if !ev.Result.Succeeded() {
			msg := ev.Result.ErrorMessage()
			if msg == "" {
				msg = prediction.GenericServiceMessage
			}
			return Failed{Mode: st.Mode, Generation: st.Generation, Result: ev.Result, Message: msg}, nil
		}
		narrative, ok := ev.Result.Narrative()
		if !ok || narrative == "" {
			narrative = MissingNarrative
		}
		return Streaming{Mode: st.Mode, Generation: st.Generation, Result: ev.Result, Narrative: narrative}, nil

	case Revealed:
		st, err := expect[Streaming](s, ev.Generation, "reveal")
		if err != nil {
			return s, err
		}
		if len(ev.Text) < len(st.Revealed) || !strings.HasPrefix(st.Narrative, ev.Text) {
			return s, fmt.Errorf("%w: revealed text is not a growing prefix of the narrative", ErrInvalidTransition)
		}
		st.Revealed = ev.Text
		return st, nil

	case RevealCompleted:
		st, err := expect[Streaming](s, ev.Generation, "complete reveal")
		if err != nil {
			return s, err
		}
		return Complete{Mode: st.Mode, Generation: st.Generation, Result: st.Result, Narrative: st.Narrative}, nil

	default:
		return s, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, e)
	}
}

func expect[T State](s State, gen typewriter.Token, action string) (T, error) {
	var zero T
	if GenerationOf(s) != gen {
		return zero, fmt.Errorf("%w: %s for generation %d, current %d", ErrStaleGeneration, action, gen, GenerationOf(s))
	}
	st, ok := s.(T)
	if !ok {
		return zero, invalid(s, action)
	}
	return st, nil
}

func invalid(s State, action string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, s.Phase())
}
