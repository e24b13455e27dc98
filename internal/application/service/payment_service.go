package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/assignment-fulfillment/internal/application/dispatcher"
	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	appwf "github.com/garyjia/assignment-fulfillment/internal/application/workflow"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/domain/event"
	domainwf "github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

// PaymentService records payment confirmations reported by the billing side.
// It never changes the workflow status.
type PaymentService interface {
	ConfirmPayment(ctx context.Context, id string, kind entity.PaymentKind) (*entity.Assignment, error)
}

type paymentServiceImpl struct {
	assignmentRepo port.AssignmentRepository
	ledger         port.PaymentLedger
	txManager      port.TransactionManager
	locker         *appwf.KeyedLocker
	dispatcher     dispatcher.Dispatcher
	logger         Logger
	now            func() time.Time
}

// NewPaymentService creates a new PaymentService. The locker must be the engine's
// so confirmations serialize with admin actions on the same assignment.
func NewPaymentService(
	assignmentRepo port.AssignmentRepository,
	ledger port.PaymentLedger,
	txManager port.TransactionManager,
	locker *appwf.KeyedLocker,
	d dispatcher.Dispatcher,
	logger Logger,
) PaymentService {
	return &paymentServiceImpl{
		assignmentRepo: assignmentRepo,
		ledger:         ledger,
		txManager:      txManager,
		locker:         locker,
		dispatcher:     d,
		logger:         logger,
		now:            time.Now,
	}
}

// ConfirmPayment marks a requested payment as paid. Confirming an already paid kind is a no-op.
func (s *paymentServiceImpl) ConfirmPayment(ctx context.Context, id string, kind entity.PaymentKind) (*entity.Assignment, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown payment kind %q", domainwf.ErrInvalidInput, kind)
	}

	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.assignmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch current.Payment.StatusOf(kind) {
	case entity.PaymentStatusNone:
		return nil, fmt.Errorf("%w: %s payment was never requested", domainwf.ErrInvalidInput, kind)
	case entity.PaymentStatusPaid:
		return current, nil
	}

	confirmedAt := s.now()
	updated := current.Clone()
	setPaymentStatus(&updated.Payment, kind, entity.PaymentStatusPaid)
	if latestKind(updated.Payment) == kind {
		updated.Payment.Status = entity.PaymentStatusPaid
	}
	updated.UpdatedAt = confirmedAt

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.assignmentRepo.Update(txCtx, updated); err != nil {
			return fmt.Errorf("update assignment: %w", err)
		}
		if err := s.ledger.Confirm(txCtx, id, kind, confirmedAt); err != nil {
			return fmt.Errorf("confirm payment: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to confirm payment", "error", err, "assignment_id", id, "kind", kind)
		return nil, err
	}

	s.logger.Info("Payment confirmed", "assignment_id", id, "kind", kind, "status", updated.Status)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(context.WithoutCancel(ctx), event.PaymentConfirmed(
			id, string(kind), updated.Payment.AmountOf(kind), updated.Version))
	}

	return updated, nil
}

func setPaymentStatus(p *entity.Payment, kind entity.PaymentKind, status entity.PaymentStatus) {
	if kind == entity.PaymentKindAdvance {
		p.AdvanceStatus = status
		return
	}
	p.FinalStatus = status
}

// latestKind is the most recently requested kind, which the top-level payment status follows
func latestKind(p entity.Payment) entity.PaymentKind {
	if p.StatusOf(entity.PaymentKindFinal) != entity.PaymentStatusNone {
		return entity.PaymentKindFinal
	}
	return entity.PaymentKindAdvance
}
