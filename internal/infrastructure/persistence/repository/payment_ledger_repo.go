package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/infrastructure/persistence/sqlite"
)

// PaymentLedgerRepository implements port.PaymentLedger
type PaymentLedgerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentLedgerRepository creates a new payment ledger repository
func NewPaymentLedgerRepository(db *sql.DB, logger *zap.Logger) port.PaymentLedger {
	return &PaymentLedgerRepository{
		db:     db,
		logger: logger,
	}
}

// RecordRequest appends a payment request
func (r *PaymentLedgerRepository) RecordRequest(ctx context.Context, req *entity.PaymentRequest) error {
	query := `
		INSERT INTO payment_requests (assignment_id, kind, amount, notes, requested_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		req.AssignmentID,
		string(req.Kind),
		req.Amount,
		req.Notes,
		req.RequestedAt,
	)
	if err != nil {
		r.logger.Error("Failed to record payment request",
			zap.String("assignment_id", req.AssignmentID),
			zap.String("kind", string(req.Kind)),
			zap.Error(err))
		return fmt.Errorf("failed to record payment request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	return nil
}

// Confirm stamps the open requests of a kind as confirmed
func (r *PaymentLedgerRepository) Confirm(ctx context.Context, assignmentID string, kind entity.PaymentKind, at time.Time) error {
	query := `
		UPDATE payment_requests SET confirmed_at = ?
		WHERE assignment_id = ? AND kind = ? AND confirmed_at IS NULL
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, at, assignmentID, string(kind))
	if err != nil {
		r.logger.Error("Failed to confirm payment",
			zap.String("assignment_id", assignmentID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return fmt.Errorf("failed to confirm payment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no open %s payment request for assignment %s", kind, assignmentID)
	}
	return nil
}

// GetByAssignmentID returns the ledger entries of an assignment in request order
func (r *PaymentLedgerRepository) GetByAssignmentID(ctx context.Context, assignmentID string) ([]*entity.PaymentRequest, error) {
	query := `
		SELECT id, assignment_id, kind, amount, notes, requested_at, confirmed_at
		FROM payment_requests
		WHERE assignment_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, assignmentID)
	if err != nil {
		r.logger.Error("Failed to list payment requests", zap.String("assignment_id", assignmentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list payment requests: %w", err)
	}
	defer rows.Close()

	requests := []*entity.PaymentRequest{}
	for rows.Next() {
		var req entity.PaymentRequest
		var kind string
		var confirmedAt sql.NullTime
		if err := rows.Scan(&req.ID, &req.AssignmentID, &kind, &req.Amount, &req.Notes, &req.RequestedAt, &confirmedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment request: %w", err)
		}
		req.Kind = entity.PaymentKind(kind)
		if confirmedAt.Valid {
			t := confirmedAt.Time
			req.ConfirmedAt = &t
		}
		requests = append(requests, &req)
	}

	return requests, rows.Err()
}

// Verify interface compliance
var _ port.PaymentLedger = (*PaymentLedgerRepository)(nil)
