package workflow

// State represents a step in the assignment fulfillment lifecycle
type State string

const (
	StateAssigned              State = "assigned"
	StateRequirementSubmitted  State = "requirement-submitted"
	StateAdvancePaymentPending State = "advance-payment-pending"
	StateInProgress            State = "in-progress"
	StateReadyForDemo          State = "ready-for-demo"
	StateFinalPaymentPending   State = "final-payment-pending"
	StateReadyForDownload      State = "ready-for-download"
	StateDelivered             State = "delivered"
	StateCompleted             State = "completed"
)

// orderedStates lists states in pipeline order
var orderedStates = []State{
	StateAssigned,
	StateRequirementSubmitted,
	StateAdvancePaymentPending,
	StateInProgress,
	StateReadyForDemo,
	StateFinalPaymentPending,
	StateReadyForDownload,
	StateDelivered,
	StateCompleted,
}

var validStates = map[State]bool{
	StateAssigned:              true,
	StateRequirementSubmitted:  true,
	StateAdvancePaymentPending: true,
	StateInProgress:            true,
	StateReadyForDemo:          true,
	StateFinalPaymentPending:   true,
	StateReadyForDownload:      true,
	StateDelivered:             true,
	StateCompleted:             true,
}

var terminalStates = map[State]bool{
	StateDelivered: true,
	StateCompleted: true,
}

// AllStates returns every workflow state in pipeline order
func AllStates() []State {
	return append([]State(nil), orderedStates...)
}

// IsTerminal returns true if the pipeline has ended (files may still be appended)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
