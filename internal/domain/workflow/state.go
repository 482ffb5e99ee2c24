package workflow

// State represents a status in a document or approval request lifecycle
type State string

const (
	// Document statuses
	StateDraft         State = "Draft"
	StateNeedsApproval State = "Needs Approval"
	StateApproved      State = "Approved"
	StateRejected      State = "Rejected"
	StateToReceive     State = "To Receive"
	StateToInvoice     State = "To Invoice"
	StateCompleted     State = "Completed"
	StateRequested     State = "Requested"
	StateInProgress    State = "In Progress"
	StateClosed        State = "Closed"

	// Approval request statuses (Approved and Rejected are shared)
	StatePending   State = "Pending"
	StateCancelled State = "Cancelled"
)

var validStates = map[State]bool{
	StateDraft:         true,
	StateNeedsApproval: true,
	StateApproved:      true,
	StateRejected:      true,
	StateToReceive:     true,
	StateToInvoice:     true,
	StateCompleted:     true,
	StateRequested:     true,
	StateInProgress:    true,
	StateClosed:        true,
	StatePending:       true,
	StateCancelled:     true,
}

var terminalStates = map[State]bool{
	StateClosed: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
