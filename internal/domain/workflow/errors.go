package workflow

import "errors"

var (
	// ErrInvalidTransition means the current state has no transition for the trigger
	ErrInvalidTransition = errors.New("trigger not permitted in current state")

	// ErrInvalidState means a state name is not part of any document workflow
	ErrInvalidState = errors.New("unknown workflow state")

	// ErrUnknownTrigger means a trigger name is not one the workflows define
	ErrUnknownTrigger = errors.New("unknown workflow trigger")

	// ErrGuardFailed means every guarded transition for the trigger refused
	ErrGuardFailed = errors.New("transition guard refused")
)
