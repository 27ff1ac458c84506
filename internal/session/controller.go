package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/oukeidos/gifsmith/internal/logger"
	"github.com/oukeidos/gifsmith/internal/media"
	"github.com/oukeidos/gifsmith/internal/validate"
)

// Validator is the part of *validate.Validator the controller depends on.
type Validator interface {
	Validate(ctx context.Context, candidate string, reporter validate.Reporter) validate.Outcome
}

type ControllerConfig struct {
	Validator Validator
	// Reporter is forwarded to the validator for rejection notices. Optional.
	Reporter validate.Reporter
	// OnChange runs after every stage change on the goroutine that made it. Optional.
	OnChange func(State)
}

// Controller is the only writer of session state.
//
// chooseMu serializes OnFileChosen from the re-check through the commit, so
// two chooser results can never both see AwaitingInput. mu guards the state
// value alone and is never held during validation, so RequestOpen and State
// stay responsive while a probe runs.
type Controller struct {
	id        string
	validator Validator
	reporter  validate.Reporter
	onChange  func(State)

	chooseMu sync.Mutex

	mu    sync.Mutex
	state State
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	id := uuid.NewString()
	if v7, err := uuid.NewV7(); err == nil {
		id = v7.String()
	}
	return &Controller{
		id:        id,
		validator: cfg.Validator,
		reporter:  cfg.Reporter,
		onChange:  cfg.OnChange,
		state:     AwaitingInput(),
	}, nil
}

// ID identifies this controller in logs.
func (c *Controller) ID() string { return c.id }

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RequestOpen is the first phase of opening a file.
func (c *Controller) RequestOpen() OpenRequestResult {
	st := c.State()
	if !st.IsAwaitingInput() {
		logger.Debug("Open request suppressed", "session", c.id, "stage", st.Stage().String())
		return OpenSuppressed
	}
	return OpenProceedToPick
}

// OnFileChosen is the second phase. An empty candidate means the chooser was
// dismissed. The stage is checked again here because another source (a drop,
// a second chooser) may have started a session while the chooser was open.
func (c *Controller) OnFileChosen(ctx context.Context, candidate string) TransitionResult {
	if strings.TrimSpace(candidate) == "" {
		logger.Debug("Chooser dismissed", "session", c.id)
		return TransitionResult{Kind: TransitionNoOp}
	}

	c.chooseMu.Lock()
	defer c.chooseMu.Unlock()

	if st := c.State(); !st.IsAwaitingInput() {
		logger.Info("File choice suppressed", "session", c.id, "stage", st.Stage().String(), "path", candidate)
		return TransitionResult{Kind: TransitionSuppressed}
	}

	outcome := c.validator.Validate(ctx, candidate, c.reporter)
	if !outcome.Accepted() {
		if !outcome.Failure().IsValidation() {
			logger.Info("File choice abandoned", "session", c.id, "path", candidate, "reason", outcome.Failure().Kind)
			return TransitionResult{Kind: TransitionNoOp}
		}
		return TransitionResult{Kind: TransitionValidationFailed, Failure: outcome.Failure()}
	}

	input := outcome.Input()
	c.enterEditing(input)
	return TransitionResult{Kind: TransitionAdvance, Input: input}
}

func (c *Controller) enterEditing(input media.ValidatedInput) {
	c.mu.Lock()
	if c.state.IsEditing() {
		prev := c.state
		c.mu.Unlock()
		panic(fmt.Sprintf("session %s: transition to editing(%s) from %s", c.id, input.Path(), prev))
	}
	c.state = Editing(input)
	next := c.state
	c.mu.Unlock()

	logger.Info("Session started", "session", c.id, "path", input.Path())
	c.notify(next)
}

// Reset returns an editing session to AwaitingInput. It reports false when
// there was no session to end.
func (c *Controller) Reset() bool {
	c.mu.Lock()
	if !c.state.IsEditing() {
		c.mu.Unlock()
		return false
	}
	prev := c.state
	c.state = AwaitingInput()
	next := c.state
	c.mu.Unlock()

	logger.Info("Session ended", "session", c.id, "path", prev.input.Path())
	c.notify(next)
	return true
}

func (c *Controller) notify(st State) {
	if c.onChange != nil {
		c.onChange(st)
	}
}
