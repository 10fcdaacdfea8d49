package workflow

// State is a lifecycle state shared by approval requests and wizard sessions
type State string

const (
	StateDraft           State = "DRAFT"
	StatePending         State = "PENDING"
	StatePendingApproval State = "PENDING_APPROVAL"
	StateApproved        State = "APPROVED"
	StateRejected        State = "REJECTED"
	StateFailed          State = "FAILED"
	StateMerged          State = "MERGED"
)

var validStates = map[State]bool{
	StateDraft:           true,
	StatePending:         true,
	StatePendingApproval: true,
	StateApproved:        true,
	StateRejected:        true,
	StateFailed:          true,
	StateMerged:          true,
}

// REJECTED is not listed: a rejected wizard session can be edited again.
var terminalStates = map[State]bool{
	StateApproved: true,
	StateFailed:   true,
	StateMerged:   true,
}

// IsTerminal returns true if no machine permits leaving the state
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
