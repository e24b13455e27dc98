package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
	"github.com/garyjia/assignment-fulfillment/internal/infrastructure/persistence/sqlite"
)

const assignmentColumns = `
	id, student_ref, item_ref, item_kind, status,
	payment_status, payment_amount, advance_amount, final_amount, payment_notes,
	advance_status, final_status, requirement, assigned_by, assigned_at,
	last_notified_at, version, created_at, updated_at`

// AssignmentRepository implements port.AssignmentRepository
type AssignmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sql.DB, logger *zap.Logger) port.AssignmentRepository {
	return &AssignmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new assignment together with any delivery files it already carries
func (r *AssignmentRepository) Create(ctx context.Context, a *entity.Assignment) error {
	requirement, err := encodeRequirement(a.Requirement)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO assignments (` + assignmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	exec := sqlite.ExecutorFrom(ctx, r.db)
	_, err = exec.ExecContext(ctx, query,
		a.ID,
		a.StudentRef,
		a.ItemRef,
		string(a.ItemKind),
		a.Status.String(),
		string(a.Payment.Status),
		a.Payment.Amount,
		a.Payment.AdvanceAmount,
		a.Payment.FinalAmount,
		a.Payment.Notes,
		string(a.Payment.StatusOf(entity.PaymentKindAdvance)),
		string(a.Payment.StatusOf(entity.PaymentKindFinal)),
		requirement,
		a.AssignedBy,
		a.AssignedAt,
		nullTime(a.LastNotifiedAt),
		a.Version,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return port.ErrDuplicateAssignment
		}
		r.logger.Error("Failed to create assignment", zap.String("id", a.ID), zap.Error(err))
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	return r.appendFiles(ctx, exec, a.ID, 0, a.DeliveryFiles)
}

// GetByID retrieves an assignment and its delivery files
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*entity.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = ?`

	exec := sqlite.ExecutorFrom(ctx, r.db)
	a, err := scanAssignment(exec.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get assignment by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	files, err := r.loadFiles(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	a.DeliveryFiles = files

	return a, nil
}

// Update writes the assignment when the stored version still matches a.Version.
// Delivery files are append-only, so only entries beyond the stored count are inserted.
func (r *AssignmentRepository) Update(ctx context.Context, a *entity.Assignment) error {
	requirement, err := encodeRequirement(a.Requirement)
	if err != nil {
		return err
	}

	query := `
		UPDATE assignments SET
			status = ?, payment_status = ?, payment_amount = ?, advance_amount = ?,
			final_amount = ?, payment_notes = ?, advance_status = ?, final_status = ?,
			requirement = ?, last_notified_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	exec := sqlite.ExecutorFrom(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		a.Status.String(),
		string(a.Payment.Status),
		a.Payment.Amount,
		a.Payment.AdvanceAmount,
		a.Payment.FinalAmount,
		a.Payment.Notes,
		string(a.Payment.StatusOf(entity.PaymentKindAdvance)),
		string(a.Payment.StatusOf(entity.PaymentKindFinal)),
		requirement,
		nullTime(a.LastNotifiedAt),
		a.UpdatedAt,
		a.ID,
		a.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update assignment", zap.String("id", a.ID), zap.Error(err))
		return fmt.Errorf("failed to update assignment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		var exists int
		err := exec.QueryRowContext(ctx, `SELECT 1 FROM assignments WHERE id = ?`, a.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", workflow.ErrNotFound, a.ID)
		}
		return port.ErrConcurrentModification
	}

	var stored int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM delivery_files WHERE assignment_id = ?`, a.ID).Scan(&stored); err != nil {
		return fmt.Errorf("failed to count delivery files: %w", err)
	}
	if stored > len(a.DeliveryFiles) {
		return fmt.Errorf("delivery files are append-only: stored %d, got %d", stored, len(a.DeliveryFiles))
	}
	if err := r.appendFiles(ctx, exec, a.ID, stored, a.DeliveryFiles[stored:]); err != nil {
		return err
	}

	a.Version++
	return nil
}

// SetLastNotified records a successful send without touching the version
func (r *AssignmentRepository) SetLastNotified(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE assignments SET last_notified_at = ? WHERE id = ?`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, at, id)
	if err != nil {
		r.logger.Error("Failed to set last notified time", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to set last notified time: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	return nil
}

// List returns the assignments in a bucket, oldest first
func (r *AssignmentRepository) List(ctx context.Context, bucket string) ([]*entity.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments`
	var args []interface{}

	terminal := []interface{}{workflow.StateDelivered.String(), workflow.StateCompleted.String()}
	switch bucket {
	case entity.BucketAll, "":
	case entity.BucketActive:
		query += ` WHERE status NOT IN (?, ?)`
		args = terminal
	case entity.BucketDelivered:
		query += ` WHERE status IN (?, ?)`
		args = terminal
	default:
		return nil, fmt.Errorf("%w: unknown bucket %q", workflow.ErrInvalidInput, bucket)
	}
	query += ` ORDER BY assigned_at ASC, id ASC`

	exec := sqlite.ExecutorFrom(ctx, r.db)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list assignments", zap.String("bucket", bucket), zap.Error(err))
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	var assignments []*entity.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Files are loaded after the cursor is closed; a single-connection pool would block otherwise
	for _, a := range assignments {
		files, err := r.loadFiles(ctx, exec, a.ID)
		if err != nil {
			return nil, err
		}
		a.DeliveryFiles = files
	}

	return assignments, nil
}

func (r *AssignmentRepository) appendFiles(ctx context.Context, exec sqlite.Executor, id string, offset int, files []entity.DeliveryFile) error {
	query := `
		INSERT INTO delivery_files (assignment_id, position, file_name, file_path, file_type)
		VALUES (?, ?, ?, ?, ?)
	`
	for i, f := range files {
		if _, err := exec.ExecContext(ctx, query, id, offset+i, f.FileName, f.FilePath, f.FileType); err != nil {
			r.logger.Error("Failed to insert delivery file", zap.String("id", id), zap.String("file", f.FileName), zap.Error(err))
			return fmt.Errorf("failed to insert delivery file: %w", err)
		}
	}
	return nil
}

func (r *AssignmentRepository) loadFiles(ctx context.Context, exec sqlite.Executor, id string) ([]entity.DeliveryFile, error) {
	query := `
		SELECT file_name, file_path, file_type
		FROM delivery_files
		WHERE assignment_id = ?
		ORDER BY position ASC
	`

	rows, err := exec.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load delivery files: %w", err)
	}
	defer rows.Close()

	files := []entity.DeliveryFile{}
	for rows.Next() {
		var f entity.DeliveryFile
		if err := rows.Scan(&f.FileName, &f.FilePath, &f.FileType); err != nil {
			return nil, fmt.Errorf("failed to scan delivery file: %w", err)
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssignment(row rowScanner) (*entity.Assignment, error) {
	var a entity.Assignment
	var itemKind, status, paymentStatus, advanceStatus, finalStatus string
	var requirement sql.NullString
	var lastNotified sql.NullTime

	err := row.Scan(
		&a.ID,
		&a.StudentRef,
		&a.ItemRef,
		&itemKind,
		&status,
		&paymentStatus,
		&a.Payment.Amount,
		&a.Payment.AdvanceAmount,
		&a.Payment.FinalAmount,
		&a.Payment.Notes,
		&advanceStatus,
		&finalStatus,
		&requirement,
		&a.AssignedBy,
		&a.AssignedAt,
		&lastNotified,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ItemKind = entity.ItemKind(itemKind)
	a.Status = workflow.State(status)
	a.Payment.Status = entity.PaymentStatus(paymentStatus)
	a.Payment.AdvanceStatus = entity.PaymentStatus(advanceStatus)
	a.Payment.FinalStatus = entity.PaymentStatus(finalStatus)
	if lastNotified.Valid {
		t := lastNotified.Time
		a.LastNotifiedAt = &t
	}
	if requirement.Valid && requirement.String != "" {
		var req entity.Requirement
		if err := json.Unmarshal([]byte(requirement.String), &req); err != nil {
			return nil, fmt.Errorf("failed to decode requirement: %w", err)
		}
		a.Requirement = &req
	}
	a.DeliveryFiles = []entity.DeliveryFile{}

	return &a, nil
}

func encodeRequirement(req *entity.Requirement) (sql.NullString, error) {
	if req == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(req)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode requirement: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Verify interface compliance
var _ port.AssignmentRepository = (*AssignmentRepository)(nil)
