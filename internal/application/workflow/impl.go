package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/assignment-fulfillment/internal/application/dispatcher"
	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/action"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/domain/event"
	domainwf "github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

// engineImpl is the concrete implementation of FulfillmentEngine
type engineImpl struct {
	assignmentRepo port.AssignmentRepository
	historyRepo    port.HistoryRepository
	ledger         port.PaymentLedger
	artifacts      port.ArtifactStore
	txManager      port.TransactionManager
	notifier       Notifier
	dispatcher     dispatcher.Dispatcher
	logger         Logger
	locker         *KeyedLocker

	strictPayment bool
	now           func() time.Time
}

// EngineOption configures the fulfillment engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithStrictPaymentGating requires confirmed payments before start-work and the delivering upload
func WithStrictPaymentGating(strict bool) EngineOption {
	return func(e *engineImpl) {
		e.strictPayment = strict
	}
}

// WithLocker shares a locker with other writers of the same assignments
func WithLocker(l *KeyedLocker) EngineOption {
	return func(e *engineImpl) {
		e.locker = l
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new fulfillment engine
func NewEngine(
	assignmentRepo port.AssignmentRepository,
	historyRepo port.HistoryRepository,
	ledger port.PaymentLedger,
	artifacts port.ArtifactStore,
	txManager port.TransactionManager,
	notifier Notifier,
	opts ...EngineOption,
) FulfillmentEngine {
	e := &engineImpl{
		assignmentRepo: assignmentRepo,
		historyRepo:    historyRepo,
		ledger:         ledger,
		artifacts:      artifacts,
		txManager:      txManager,
		notifier:       notifier,
		logger:         nopLogger{},
		locker:         NewKeyedLocker(),
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) SubmitRequirement(ctx context.Context, id string, req entity.Requirement) (*Result, error) {
	return e.Execute(ctx, id, action.SubmitRequirement{
		ProjectType:       req.ProjectType,
		CollegeGuidelines: req.CollegeGuidelines,
		Notes:             req.Notes,
	})
}

func (e *engineImpl) RequestAdvance(ctx context.Context, id string, amount float64, notes string) (*Result, error) {
	return e.Execute(ctx, id, action.RequestPayment{Kind: entity.PaymentKindAdvance, Amount: amount, Notes: notes})
}

func (e *engineImpl) StartWork(ctx context.Context, id string) (*Result, error) {
	return e.Execute(ctx, id, action.StartWork{})
}

func (e *engineImpl) ReadyForDemo(ctx context.Context, id string) (*Result, error) {
	return e.Execute(ctx, id, action.ReadyForDemo{})
}

func (e *engineImpl) RequestFinal(ctx context.Context, id string, amount float64, notes string) (*Result, error) {
	return e.Execute(ctx, id, action.RequestPayment{Kind: entity.PaymentKindFinal, Amount: amount, Notes: notes})
}

func (e *engineImpl) UploadFiles(ctx context.Context, id string, files []entity.FileUpload, fileTypes []string) (*Result, error) {
	return e.Execute(ctx, id, action.UploadFiles{Files: files, FileTypes: fileTypes})
}

func (e *engineImpl) MarkDelivered(ctx context.Context, id string) (*Result, error) {
	return e.Execute(ctx, id, action.MarkDelivered{})
}

func (e *engineImpl) Complete(ctx context.Context, id string) (*Result, error) {
	return e.Execute(ctx, id, action.Complete{})
}

func (e *engineImpl) ResendEmail(ctx context.Context, id string) (*Result, error) {
	return e.Execute(ctx, id, action.ResendEmail{})
}

func (e *engineImpl) TriggerEmail(ctx context.Context, id string) (*Result, error) {
	return e.Execute(ctx, id, action.TriggerEmail{})
}

func (e *engineImpl) Locker() *KeyedLocker {
	return e.locker
}

// Execute runs one action: lock, load, validate, mutate, persist, notify, unlock
func (e *engineImpl) Execute(ctx context.Context, id string, act action.Action) (*Result, error) {
	if act == nil {
		return nil, fmt.Errorf("%w: action is required", domainwf.ErrInvalidInput)
	}
	trigger := act.Trigger()
	if strings.TrimSpace(id) == "" {
		return nil, domainwf.NewActionError(trigger, "", domainwf.ErrInvalidInput, "assignment id is required")
	}

	unlock, err := e.locker.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("acquire assignment lock: %w", err)
	}
	defer unlock()

	current, err := e.assignmentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainwf.ErrNotFound) {
			return nil, domainwf.NewActionError(trigger, "", domainwf.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load assignment %s: %w", id, err)
	}

	from := current.Status
	graph := GraphFor(current.ItemKind, e.strictPayment)
	if !graph.Allows(from, trigger) {
		return nil, domainwf.NewActionError(trigger, from, domainwf.ErrInvalidTransition, "").
			WithAllowed(graph.Triggers(from))
	}

	if err := act.Validate(); err != nil {
		return nil, domainwf.NewActionError(trigger, from, err, "")
	}

	next, err := graph.Next(ctx, from, trigger, current)
	if err != nil {
		var guardErr *domainwf.GuardError
		if errors.As(err, &guardErr) {
			return nil, domainwf.NewActionError(trigger, from, domainwf.ErrInvalidTransition, guardErr.Cause.Error()).
				WithAllowed(graph.Triggers(from))
		}
		return nil, domainwf.NewActionError(trigger, from, domainwf.ErrInvalidTransition, "").
			WithAllowed(graph.Triggers(from))
	}

	result := &Result{Assignment: current, PreviousStatus: from}

	if trigger == domainwf.TriggerResendEmail || trigger == domainwf.TriggerSendEmail {
		e.notify(ctx, result, trigger == domainwf.TriggerResendEmail)
		return result, nil
	}

	updated := current.Clone()
	updated.Status = next
	updated.UpdatedAt = e.now()

	var paymentReq *entity.PaymentRequest
	var stored []entity.ArtifactRef

	switch a := act.(type) {
	case action.SubmitRequirement:
		updated.Requirement = a.Requirement()
	case action.RequestPayment:
		if err := applyPaymentRequest(&updated.Payment, a); err != nil {
			return nil, domainwf.NewActionError(trigger, from, err, "")
		}
		paymentReq = &entity.PaymentRequest{
			AssignmentID: id,
			Kind:         a.Kind,
			Amount:       a.Amount,
			Notes:        a.Notes,
			RequestedAt:  updated.UpdatedAt,
		}
	case action.UploadFiles:
		stored, err = e.storeArtifacts(ctx, id, a)
		if err != nil {
			return nil, domainwf.NewActionError(trigger, from, uploadFailureKind(err), err.Error())
		}
		for _, ref := range stored {
			updated.DeliveryFiles = append(updated.DeliveryFiles, ref.ToDeliveryFile())
		}
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.assignmentRepo.Update(txCtx, updated); err != nil {
			return fmt.Errorf("failed to update assignment: %w", err)
		}

		if paymentReq != nil {
			if err := e.ledger.RecordRequest(txCtx, paymentReq); err != nil {
				return fmt.Errorf("failed to record payment request: %w", err)
			}
		}

		history := &entity.AssignmentHistory{
			AssignmentID:   id,
			Version:        updated.Version,
			Action:         trigger.String(),
			PreviousStatus: from.String(),
			NewStatus:      next.String(),
			ActionData:     actionData(act, stored),
			Timestamp:      updated.UpdatedAt,
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		return nil
	})
	if err != nil {
		e.discardArtifacts(ctx, stored)
		e.logger.Error("Failed to persist action", "assignment_id", id, "action", trigger, "error", err)
		if errors.Is(err, port.ErrConcurrentModification) {
			return nil, domainwf.NewActionError(trigger, from, domainwf.ErrInvalidTransition, port.ErrConcurrentModification.Error())
		}
		return nil, err
	}

	result.Assignment = updated

	e.logger.Info("Assignment action applied",
		"assignment_id", id,
		"action", trigger,
		"previous_status", from,
		"new_status", next,
	)

	if next != from {
		e.notify(ctx, result, false)
		e.emit(ctx, event.StatusChanged(id, from.String(), next.String(), trigger.String(), updated.Version))
	}
	if len(stored) > 0 {
		e.emit(ctx, event.FilesAttached(id, next.String(), len(stored), len(updated.DeliveryFiles), updated.Version))
	}

	return result, nil
}

// applyPaymentRequest layers a pending request for one kind. A confirmed kind is never
// reopened and a paid top-level status stays paid: only the new kind's own status is pending.
func applyPaymentRequest(p *entity.Payment, a action.RequestPayment) error {
	if p.StatusOf(a.Kind) == entity.PaymentStatusPaid {
		return fmt.Errorf("%w: %s payment already confirmed", domainwf.ErrInvalidInput, a.Kind)
	}

	if p.Status != entity.PaymentStatusPaid {
		p.Status = entity.PaymentStatusPending
	}
	p.Amount = a.Amount
	p.Notes = a.Notes

	switch a.Kind {
	case entity.PaymentKindAdvance:
		p.AdvanceAmount = a.Amount
		p.AdvanceStatus = entity.PaymentStatusPending
	case entity.PaymentKindFinal:
		p.FinalAmount = a.Amount
		p.FinalStatus = entity.PaymentStatusPending
	}
	if p.AdvanceStatus == "" {
		p.AdvanceStatus = entity.PaymentStatusNone
	}
	if p.FinalStatus == "" {
		p.FinalStatus = entity.PaymentStatusNone
	}
	return nil
}

// storeArtifacts stores every file or none of them
func (e *engineImpl) storeArtifacts(ctx context.Context, id string, a action.UploadFiles) ([]entity.ArtifactRef, error) {
	stored := make([]entity.ArtifactRef, 0, len(a.Files))
	for i, f := range a.Files {
		ref, err := e.artifacts.Store(ctx, id, f, a.FileTypes[i])
		if err != nil {
			e.logger.Error("Failed to store artifact", "assignment_id", id, "file_name", f.FileName, "error", err)
			e.discardArtifacts(ctx, stored)
			return nil, fmt.Errorf("store %s: %w", f.FileName, err)
		}
		stored = append(stored, ref)
	}
	return stored, nil
}

// uploadFailureKind separates files the store refuses from a store that is failing
func uploadFailureKind(err error) error {
	if errors.Is(err, port.ErrArtifactTooLarge) || errors.Is(err, port.ErrInvalidArtifactName) {
		return domainwf.ErrInvalidInput
	}
	return domainwf.ErrDependencyFailure
}

func (e *engineImpl) discardArtifacts(ctx context.Context, refs []entity.ArtifactRef) {
	for _, ref := range refs {
		if err := e.artifacts.Delete(ctx, ref); err != nil {
			e.logger.Error("Failed to discard artifact", "file_path", ref.FilePath, "error", err)
		}
	}
}

// notify fires the state notification and turns failure into a warning
func (e *engineImpl) notify(ctx context.Context, result *Result, resend bool) {
	a := result.Assignment
	sent, err := e.notifier.NotifyState(ctx, a, resend)
	if err != nil {
		warning := fmt.Sprintf("notification for %s not delivered: %v", a.Status, err)
		result.Warnings = append(result.Warnings, warning)
		e.logger.Error("Notification failed", "assignment_id", a.ID, "status", a.Status, "resend", resend, "error", err)
		e.emit(ctx, event.NotificationFailed(a.ID, a.Status.String(), resend, err))
		return
	}
	result.NotificationSent = sent
}

func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.DispatchAsync(context.WithoutCancel(ctx), evt)
}

func actionData(act action.Action, stored []entity.ArtifactRef) string {
	var data interface{}
	switch a := act.(type) {
	case action.SubmitRequirement:
		data = a
	case action.RequestPayment:
		data = a
	case action.UploadFiles:
		names := make([]string, 0, len(stored))
		for _, ref := range stored {
			names = append(names, ref.FileName)
		}
		data = map[string]interface{}{"files": names, "fileTypes": a.FileTypes}
	default:
		return ""
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(b)
}
