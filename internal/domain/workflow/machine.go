package workflow

import "context"

// StateMachine represents a state machine that tracks current state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is configured in the current state
	CanFire(trigger Trigger) bool

	// CanFireWith returns true if the trigger is configured and one of its guards passes
	CanFireWith(ctx context.Context, trigger Trigger) bool

	// Peek resolves the target state of a trigger without transitioning
	Peek(ctx context.Context, trigger Trigger) (State, error)

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured in the current state
	PermittedTriggers() []Trigger

	// PermittedTriggersWith returns the triggers whose guards pass in ctx
	PermittedTriggersWith(ctx context.Context) []Trigger
}
