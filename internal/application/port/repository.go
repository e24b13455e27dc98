package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
)

var (
	// ErrDuplicateAssignment is returned when the (student, item, kind) pair already has an assignment
	ErrDuplicateAssignment = errors.New("assignment already exists for student and item")

	// ErrConcurrentModification is returned when an update was based on a stale version
	ErrConcurrentModification = errors.New("assignment was modified concurrently")
)

// AssignmentRepository defines persistence operations for Assignment
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *entity.Assignment) error

	// GetByID returns workflow.ErrNotFound for unknown ids
	GetByID(ctx context.Context, id string) (*entity.Assignment, error)

	// Update writes the full record if the stored version equals assignment.Version,
	// then increments assignment.Version
	Update(ctx context.Context, assignment *entity.Assignment) error

	// SetLastNotified records a successful send without bumping the version
	SetLastNotified(ctx context.Context, id string, at time.Time) error

	// List returns assignments in the bucket ordered by assignment time
	List(ctx context.Context, bucket string) ([]*entity.Assignment, error)
}

// HistoryRepository defines persistence operations for AssignmentHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.AssignmentHistory) error
	GetByAssignmentID(ctx context.Context, assignmentID string) ([]*entity.AssignmentHistory, error)
}

// NotificationLogRepository stores every notification attempt
type NotificationLogRepository interface {
	Create(ctx context.Context, record *entity.NotificationRecord) error

	// FindSent returns the successful record for a dedupe key, or nil
	FindSent(ctx context.Context, dedupeKey string) (*entity.NotificationRecord, error)

	GetByAssignmentID(ctx context.Context, assignmentID string) ([]*entity.NotificationRecord, error)

	// ListFailedPending returns assignments whose latest non-resend attempt failed
	// after since, with fewer than maxAttempts tries on that dedupe key. Oldest first.
	ListFailedPending(ctx context.Context, since time.Time, maxAttempts, limit int) ([]*entity.PendingNotification, error)
}

// PaymentLedger records payment requests and their external confirmation
type PaymentLedger interface {
	RecordRequest(ctx context.Context, req *entity.PaymentRequest) error
	Confirm(ctx context.Context, assignmentID string, kind entity.PaymentKind, at time.Time) error
	GetByAssignmentID(ctx context.Context, assignmentID string) ([]*entity.PaymentRequest, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
