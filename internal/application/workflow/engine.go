package workflow

import (
	"context"

	"github.com/garyjia/assignment-fulfillment/internal/domain/action"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	domainwf "github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

// FulfillmentEngine drives assignments through the fulfillment workflow.
// Every method runs under the assignment's lock and returns the committed record.
type FulfillmentEngine interface {
	SubmitRequirement(ctx context.Context, id string, req entity.Requirement) (*Result, error)
	RequestAdvance(ctx context.Context, id string, amount float64, notes string) (*Result, error)
	StartWork(ctx context.Context, id string) (*Result, error)
	ReadyForDemo(ctx context.Context, id string) (*Result, error)
	RequestFinal(ctx context.Context, id string, amount float64, notes string) (*Result, error)
	UploadFiles(ctx context.Context, id string, files []entity.FileUpload, fileTypes []string) (*Result, error)
	MarkDelivered(ctx context.Context, id string) (*Result, error)
	Complete(ctx context.Context, id string) (*Result, error)
	ResendEmail(ctx context.Context, id string) (*Result, error)
	TriggerEmail(ctx context.Context, id string) (*Result, error)

	// Execute dispatches any admin action
	Execute(ctx context.Context, id string, act action.Action) (*Result, error)

	// Locker exposes the per-assignment lock so other writers share the same critical section
	Locker() *KeyedLocker
}

// Result is the outcome of a committed action
type Result struct {
	Assignment       *entity.Assignment `json:"assignment"`
	PreviousStatus   domainwf.State     `json:"previous_status"`
	NotificationSent bool               `json:"notification_sent"`
	Warnings         []string           `json:"warnings,omitempty"`
}

// Notifier fires the template email for an assignment's current status.
// It reports false without error when the send was deduplicated.
type Notifier interface {
	NotifyState(ctx context.Context, assignment *entity.Assignment, resend bool) (bool, error)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
