package entity

import "time"

// AssignmentHistory is one applied action in an assignment's audit trail.
// Version is the assignment version the action produced; 0 for rows written before versions were tracked.
type AssignmentHistory struct {
	ID             int64     `json:"id"`
	AssignmentID   string    `json:"assignment_id"`
	Version        int64     `json:"version"`
	Action         string    `json:"action"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ActionData     string    `json:"action_data"`
	Timestamp      time.Time `json:"timestamp"`
}

// Transitioned reports whether the action changed the status
func (h *AssignmentHistory) Transitioned() bool {
	return h.PreviousStatus != h.NewStatus
}

// PaymentRequest is one entry of the payment ledger
type PaymentRequest struct {
	ID           int64       `json:"id"`
	AssignmentID string      `json:"assignment_id"`
	Kind         PaymentKind `json:"kind"`
	Amount       float64     `json:"amount"`
	Notes        string      `json:"notes"`
	RequestedAt  time.Time   `json:"requested_at"`
	ConfirmedAt  *time.Time  `json:"confirmed_at,omitempty"`
}
