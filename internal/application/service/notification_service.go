package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	domainwf "github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

var stateTemplates = map[domainwf.State]string{
	domainwf.StateAssigned:              entity.TemplateAssignmentCreated,
	domainwf.StateRequirementSubmitted:  entity.TemplateRequirementReceived,
	domainwf.StateAdvancePaymentPending: entity.TemplateAdvancePaymentRequested,
	domainwf.StateInProgress:            entity.TemplateWorkStarted,
	domainwf.StateReadyForDemo:          entity.TemplateDemoReady,
	domainwf.StateFinalPaymentPending:   entity.TemplateFinalPaymentRequested,
	domainwf.StateReadyForDownload:      entity.TemplateFilesReady,
	domainwf.StateDelivered:             entity.TemplateDelivered,
	domainwf.StateCompleted:             entity.TemplateCompleted,
}

// TemplateForState returns the notification template for a status
func TemplateForState(state domainwf.State) string {
	return stateTemplates[state]
}

// DedupeKey identifies the first send of a template for one committed version
func DedupeKey(assignment *entity.Assignment, template string) string {
	return fmt.Sprintf("%s:%s:v%d", assignment.ID, template, assignment.Version)
}

// NotificationService sends state notifications and records every attempt
type NotificationService interface {
	// NotifyState sends the template for the assignment's current status.
	// It returns false without error when the same send already succeeded.
	NotifyState(ctx context.Context, assignment *entity.Assignment, resend bool) (bool, error)
}

type notificationServiceImpl struct {
	assignmentRepo  port.AssignmentRepository
	notificationLog port.NotificationLogRepository
	composer        port.MessageComposer
	gateway         port.NotificationGateway
	logger          Logger
	now             func() time.Time
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	assignmentRepo port.AssignmentRepository,
	notificationLog port.NotificationLogRepository,
	composer port.MessageComposer,
	gateway port.NotificationGateway,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		assignmentRepo:  assignmentRepo,
		notificationLog: notificationLog,
		composer:        composer,
		gateway:         gateway,
		logger:          logger,
		now:             time.Now,
	}
}

// NotifyState sends the template for the current status
func (s *notificationServiceImpl) NotifyState(ctx context.Context, assignment *entity.Assignment, resend bool) (bool, error) {
	template := TemplateForState(assignment.Status)
	if template == "" {
		return false, fmt.Errorf("%w: no template for status %s", domainwf.ErrInvalidState, assignment.Status)
	}

	key := DedupeKey(assignment, template)
	if resend {
		key = uuid.NewString()
	} else {
		sent, err := s.notificationLog.FindSent(ctx, key)
		if err != nil {
			s.logger.Error("Failed to check notification log", "error", err, "dedupe_key", key)
			return false, fmt.Errorf("%w: check notification log: %v", domainwf.ErrDependencyFailure, err)
		}
		if sent != nil {
			s.logger.Info("Notification already sent, skipping",
				"assignment_id", assignment.ID,
				"template", template,
				"dedupe_key", key,
			)
			return false, nil
		}
	}

	record := &entity.NotificationRecord{
		AssignmentID: assignment.ID,
		Template:     template,
		DedupeKey:    key,
		Resend:       resend,
		AttemptedAt:  s.now(),
	}

	sendErr := s.send(ctx, assignment, template)
	if sendErr != nil {
		record.Status = entity.NotificationStatusFailed
		record.ErrorMessage = sendErr.Error()
	} else {
		sentAt := s.now()
		record.Status = entity.NotificationStatusSent
		record.SentAt = &sentAt
	}

	if err := s.notificationLog.Create(ctx, record); err != nil {
		s.logger.Error("Failed to record notification attempt", "error", err, "assignment_id", assignment.ID, "template", template)
	}

	if sendErr != nil {
		s.logger.Error("Failed to send notification",
			"error", sendErr,
			"assignment_id", assignment.ID,
			"template", template,
			"resend", resend,
		)
		return false, fmt.Errorf("%w: %v", domainwf.ErrDependencyFailure, sendErr)
	}

	if err := s.assignmentRepo.SetLastNotified(ctx, assignment.ID, *record.SentAt); err != nil {
		s.logger.Error("Failed to update last notified time", "error", err, "assignment_id", assignment.ID)
	}
	assignment.LastNotifiedAt = record.SentAt

	s.logger.Info("Notification sent",
		"assignment_id", assignment.ID,
		"template", template,
		"resend", resend,
	)

	return true, nil
}

func (s *notificationServiceImpl) send(ctx context.Context, assignment *entity.Assignment, template string) error {
	msg, err := s.composer.Compose(ctx, assignment, template)
	if err != nil {
		return fmt.Errorf("compose message: %w", err)
	}
	if err := s.gateway.Send(ctx, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
