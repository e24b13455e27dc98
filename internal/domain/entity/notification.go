package entity

import "time"

// NotificationRecord is one attempt to deliver a template email for an assignment
type NotificationRecord struct {
	ID           int64      `json:"id"`
	AssignmentID string     `json:"assignment_id"`
	Template     string     `json:"template"`
	DedupeKey    string     `json:"dedupe_key"`
	Resend       bool       `json:"resend"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	AttemptedAt  time.Time  `json:"attempted_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
}

// NotificationMessage is the rendered content handed to the gateway
type NotificationMessage struct {
	AssignmentID string `json:"assignment_id"`
	Recipient    string `json:"recipient"`
	Template     string `json:"template"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
}

// PendingNotification is a state notification whose latest attempt failed
// and that has not been sent since
type PendingNotification struct {
	AssignmentID  string    `json:"assignment_id"`
	Template      string    `json:"template"`
	DedupeKey     string    `json:"dedupe_key"`
	Attempts      int       `json:"attempts"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
}
