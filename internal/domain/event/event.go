// Package event defines the domain events emitted after an assignment changes.
// Events are facts about committed state; nothing reads them back to decide a transition.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload carries event specific fields. Numbers decoded from JSON arrive as float64.
type Payload map[string]interface{}

// Event is one committed change to an assignment
type Event struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	AssignmentID string    `json:"assignment_id"`
	Version      int64     `json:"version,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
	Payload      Payload   `json:"payload,omitempty"`
}

// NewEvent stamps a new event with a fresh id and the current time
func NewEvent(eventType Type, assignmentID string, payload Payload) *Event {
	return &Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		AssignmentID: assignmentID,
		OccurredAt:   time.Now().UTC(),
		Payload:      payload,
	}
}

// AssignmentCreated is emitted once per new assignment
func AssignmentCreated(assignmentID, studentRef, itemRef, itemKind string) *Event {
	e := NewEvent(TypeAssignmentCreated, assignmentID, Payload{
		"student_ref": studentRef,
		"item_ref":    itemRef,
		"item_kind":   itemKind,
	})
	e.Version = 1
	return e
}

// StatusChanged is emitted when an action moved the assignment to a new status
func StatusChanged(assignmentID, from, to, trigger string, version int64) *Event {
	e := NewEvent(TypeStatusChanged, assignmentID, Payload{
		"previous_status": from,
		"new_status":      to,
		"trigger":         trigger,
	})
	e.Version = version
	return e
}

// FilesAttached is emitted when an upload stored at least one deliverable
func FilesAttached(assignmentID, status string, added, total int, version int64) *Event {
	e := NewEvent(TypeFilesAttached, assignmentID, Payload{
		"file_count":  added,
		"total_files": total,
		"status":      status,
	})
	e.Version = version
	return e
}

// NotificationFailed is emitted when the student could not be notified after a commit
func NotificationFailed(assignmentID, status string, resend bool, cause error) *Event {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return NewEvent(TypeNotificationFailed, assignmentID, Payload{
		"status": status,
		"resend": resend,
		"error":  msg,
	})
}

// PaymentConfirmed is emitted when an advance or final payment is marked paid
func PaymentConfirmed(assignmentID, kind string, amount float64, version int64) *Event {
	e := NewEvent(TypePaymentConfirmed, assignmentID, Payload{
		"kind":   kind,
		"amount": amount,
	})
	e.Version = version
	return e
}

// String returns the value under key, or "" when it is missing or not a string
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int returns the value under key as an int64, accepting the numeric shapes JSON and Go produce
func (p Payload) Int(key string) int64 {
	switch v := p[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// Bool returns the value under key, or false
func (p Payload) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}
