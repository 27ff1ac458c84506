// Package session owns the lifecycle of the single conversion session: which
// stage the app is in and the rules for moving between stages.
package session

import (
	"fmt"

	"github.com/oukeidos/gifsmith/internal/apperrors"
	"github.com/oukeidos/gifsmith/internal/media"
)

type Stage int

const (
	StageAwaitingInput Stage = iota
	StageEditing
)

func (s Stage) String() string {
	switch s {
	case StageAwaitingInput:
		return "awaiting_input"
	case StageEditing:
		return "editing"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// State is an immutable snapshot of the session. The zero value is
// AwaitingInput.
type State struct {
	stage Stage
	input media.ValidatedInput
}

func AwaitingInput() State { return State{stage: StageAwaitingInput} }

func Editing(input media.ValidatedInput) State {
	return State{stage: StageEditing, input: input}
}

func (s State) Stage() Stage          { return s.stage }
func (s State) IsAwaitingInput() bool { return s.stage == StageAwaitingInput }
func (s State) IsEditing() bool       { return s.stage == StageEditing }

// Input returns the file being edited. ok is false while awaiting input.
func (s State) Input() (input media.ValidatedInput, ok bool) {
	if s.stage != StageEditing {
		return media.ValidatedInput{}, false
	}
	return s.input, true
}

func (s State) String() string {
	if s.stage == StageEditing {
		return fmt.Sprintf("editing(%s)", s.input.Path())
	}
	return s.stage.String()
}

// OpenRequestResult answers an open intent.
type OpenRequestResult int

const (
	// OpenProceedToPick tells the caller to present a file chooser.
	OpenProceedToPick OpenRequestResult = iota
	// OpenSuppressed means a session is active; the caller does nothing.
	OpenSuppressed
)

func (r OpenRequestResult) String() string {
	if r == OpenSuppressed {
		return "suppressed"
	}
	return "proceed_to_pick"
}

type TransitionKind int

const (
	// TransitionNoOp: the chooser was dismissed or validation was canceled.
	TransitionNoOp TransitionKind = iota
	// TransitionSuppressed: a session became active while the chooser was open.
	TransitionSuppressed
	// TransitionValidationFailed: the candidate was rejected; Failure is set.
	TransitionValidationFailed
	// TransitionAdvance: the session entered editing; Input is set.
	TransitionAdvance
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionNoOp:
		return "no_op"
	case TransitionSuppressed:
		return "suppressed"
	case TransitionValidationFailed:
		return "validation_failed"
	case TransitionAdvance:
		return "advance"
	default:
		return fmt.Sprintf("transition(%d)", int(k))
	}
}

// TransitionResult is what OnFileChosen hands back to the presentation layer.
type TransitionResult struct {
	Kind    TransitionKind
	Input   media.ValidatedInput
	Failure *apperrors.Error
}
