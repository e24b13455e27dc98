package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/assignment-fulfillment/internal/application/dispatcher"
	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/domain/event"
	domainwf "github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
	"github.com/garyjia/assignment-fulfillment/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// AssignInput carries the fields of the external "assign" action
type AssignInput struct {
	StudentRef string          `json:"studentRef"`
	ItemRef    string          `json:"itemRef"`
	ItemKind   entity.ItemKind `json:"itemKind"`
	AssignedBy string          `json:"assignedBy"`
}

// AssignmentService creates assignments and serves read-only views of them
type AssignmentService interface {
	Assign(ctx context.Context, in AssignInput) (*entity.Assignment, error)
	Get(ctx context.Context, id string) (*entity.Assignment, error)
	ListByFilter(ctx context.Context, bucket string) ([]*entity.Assignment, error)
	ListFiles(ctx context.Context, id string) ([]entity.DeliveryFile, error)
	// OpenFile streams the delivery file at index; the caller closes the reader
	OpenFile(ctx context.Context, id string, index int) (entity.DeliveryFile, io.ReadCloser, error)
	History(ctx context.Context, id string) ([]*entity.AssignmentHistory, error)
	Notifications(ctx context.Context, id string) ([]*entity.NotificationRecord, error)
	Payments(ctx context.Context, id string) ([]*entity.PaymentRequest, error)
}

type assignmentServiceImpl struct {
	assignmentRepo  port.AssignmentRepository
	historyRepo     port.HistoryRepository
	notificationLog port.NotificationLogRepository
	ledger          port.PaymentLedger
	artifacts       port.ArtifactReader
	txManager       port.TransactionManager
	dispatcher      dispatcher.Dispatcher
	logger          Logger
}

// NewAssignmentService creates a new AssignmentService. The dispatcher may be nil.
func NewAssignmentService(
	assignmentRepo port.AssignmentRepository,
	historyRepo port.HistoryRepository,
	notificationLog port.NotificationLogRepository,
	ledger port.PaymentLedger,
	artifacts port.ArtifactReader,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) AssignmentService {
	return &assignmentServiceImpl{
		assignmentRepo:  assignmentRepo,
		historyRepo:     historyRepo,
		notificationLog: notificationLog,
		ledger:          ledger,
		artifacts:       artifacts,
		txManager:       txManager,
		dispatcher:      d,
		logger:          logger,
	}
}

// Assign creates an assignment in the assigned state. No notification is sent;
// the initial notice is fired separately with trigger-email.
func (s *assignmentServiceImpl) Assign(ctx context.Context, in AssignInput) (*entity.Assignment, error) {
	in.StudentRef = utils.SanitizeString(in.StudentRef)
	in.ItemRef = utils.SanitizeString(in.ItemRef)
	if in.StudentRef == "" || in.ItemRef == "" {
		return nil, fmt.Errorf("%w: studentRef and itemRef are required", domainwf.ErrInvalidInput)
	}
	if in.ItemKind == "" {
		in.ItemKind = entity.ItemKindProject
	}
	if !in.ItemKind.IsValid() {
		return nil, fmt.Errorf("%w: unknown item kind %q", domainwf.ErrInvalidInput, in.ItemKind)
	}

	assignment := entity.NewAssignment(in.StudentRef, in.ItemRef, in.ItemKind, in.AssignedBy, time.Now())

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.assignmentRepo.Create(txCtx, assignment); err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}

		history := &entity.AssignmentHistory{
			AssignmentID:   assignment.ID,
			Version:        assignment.Version,
			Action:         "assign",
			PreviousStatus: "",
			NewStatus:      assignment.Status.String(),
			ActionData:     fmt.Sprintf(`{"assignedBy":%q}`, in.AssignedBy),
			Timestamp:      assignment.AssignedAt,
		}
		if err := s.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create assignment", "error", err, "student_ref", in.StudentRef, "item_ref", in.ItemRef)
		return nil, err
	}

	s.logger.Info("Assignment created",
		"assignment_id", assignment.ID,
		"student_ref", assignment.StudentRef,
		"item_ref", assignment.ItemRef,
		"item_kind", assignment.ItemKind,
	)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(context.WithoutCancel(ctx), event.AssignmentCreated(
			assignment.ID, assignment.StudentRef, assignment.ItemRef, string(assignment.ItemKind)))
	}

	return assignment, nil
}

// Get retrieves an assignment by id
func (s *assignmentServiceImpl) Get(ctx context.Context, id string) (*entity.Assignment, error) {
	return s.assignmentRepo.GetByID(ctx, id)
}

// ListByFilter returns the assignments in a status bucket
func (s *assignmentServiceImpl) ListByFilter(ctx context.Context, bucket string) ([]*entity.Assignment, error) {
	if bucket == "" {
		bucket = entity.BucketAll
	}
	if !entity.ValidBucket(bucket) {
		return nil, fmt.Errorf("%w: unknown bucket %q", domainwf.ErrInvalidInput, bucket)
	}
	return s.assignmentRepo.List(ctx, bucket)
}

// ListFiles returns the delivery files in upload order
func (s *assignmentServiceImpl) ListFiles(ctx context.Context, id string) ([]entity.DeliveryFile, error) {
	assignment, err := s.assignmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return assignment.DeliveryFiles, nil
}

// OpenFile resolves a delivery file by its upload position
func (s *assignmentServiceImpl) OpenFile(ctx context.Context, id string, index int) (entity.DeliveryFile, io.ReadCloser, error) {
	assignment, err := s.assignmentRepo.GetByID(ctx, id)
	if err != nil {
		return entity.DeliveryFile{}, nil, err
	}
	if index < 0 || index >= len(assignment.DeliveryFiles) {
		return entity.DeliveryFile{}, nil, fmt.Errorf("%w: %s has no file #%d", domainwf.ErrNotFound, id, index)
	}

	file := assignment.DeliveryFiles[index]
	rc, err := s.artifacts.Open(ctx, file.FilePath)
	if errors.Is(err, port.ErrBlobNotFound) {
		s.logger.Error("Delivery file missing from storage", "assignment_id", id, "path", file.FilePath)
		return entity.DeliveryFile{}, nil, fmt.Errorf("%w: %v", domainwf.ErrNotFound, err)
	}
	if err != nil {
		return entity.DeliveryFile{}, nil, fmt.Errorf("%w: %v", domainwf.ErrDependencyFailure, err)
	}
	return file, rc, nil
}

// History returns the audit trail of an assignment
func (s *assignmentServiceImpl) History(ctx context.Context, id string) ([]*entity.AssignmentHistory, error) {
	if _, err := s.assignmentRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.historyRepo.GetByAssignmentID(ctx, id)
}

// Notifications returns every notification attempt for an assignment
func (s *assignmentServiceImpl) Notifications(ctx context.Context, id string) ([]*entity.NotificationRecord, error) {
	if _, err := s.assignmentRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.notificationLog.GetByAssignmentID(ctx, id)
}

// Payments returns the payment requests recorded for an assignment
func (s *assignmentServiceImpl) Payments(ctx context.Context, id string) ([]*entity.PaymentRequest, error) {
	if _, err := s.assignmentRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.GetByAssignmentID(ctx, id)
}
