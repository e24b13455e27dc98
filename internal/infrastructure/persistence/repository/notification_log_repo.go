package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/infrastructure/persistence/sqlite"
)

const notificationColumns = `
	id, assignment_id, template, dedupe_key, resend, status,
	error_message, attempted_at, sent_at`

// NotificationLogRepository implements port.NotificationLogRepository
type NotificationLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationLogRepository creates a new notification log repository
func NewNotificationLogRepository(db *sql.DB, logger *zap.Logger) port.NotificationLogRepository {
	return &NotificationLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create records one notification attempt
func (r *NotificationLogRepository) Create(ctx context.Context, record *entity.NotificationRecord) error {
	query := `
		INSERT INTO notification_log (
			assignment_id, template, dedupe_key, resend, status,
			error_message, attempted_at, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		record.AssignmentID,
		record.Template,
		record.DedupeKey,
		record.Resend,
		record.Status,
		record.ErrorMessage,
		record.AttemptedAt,
		nullTime(record.SentAt),
	)
	if err != nil {
		r.logger.Error("Failed to create notification record",
			zap.String("assignment_id", record.AssignmentID),
			zap.String("template", record.Template),
			zap.Error(err))
		return fmt.Errorf("failed to create notification record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// FindSent returns the successful attempt for a dedupe key, or nil when there is none
func (r *NotificationLogRepository) FindSent(ctx context.Context, dedupeKey string) (*entity.NotificationRecord, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notification_log
		WHERE dedupe_key = ? AND status = ?
		ORDER BY id ASC
		LIMIT 1
	`

	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, dedupeKey, entity.NotificationStatusSent)
	record, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find sent notification", zap.String("dedupe_key", dedupeKey), zap.Error(err))
		return nil, fmt.Errorf("failed to find sent notification: %w", err)
	}

	return record, nil
}

// GetByAssignmentID returns every attempt for an assignment in order
func (r *NotificationLogRepository) GetByAssignmentID(ctx context.Context, assignmentID string) ([]*entity.NotificationRecord, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notification_log
		WHERE assignment_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, assignmentID)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.String("assignment_id", assignmentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	records := []*entity.NotificationRecord{}
	for rows.Next() {
		record, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// ListFailedPending returns notifications worth another automatic attempt
func (r *NotificationLogRepository) ListFailedPending(ctx context.Context, since time.Time, maxAttempts, limit int) ([]*entity.PendingNotification, error) {
	query := `
		SELECT n.assignment_id, n.template, n.dedupe_key, n.attempted_at,
			(SELECT COUNT(*) FROM notification_log c WHERE c.dedupe_key = n.dedupe_key) AS attempts
		FROM notification_log n
		WHERE n.id IN (
			SELECT MAX(id) FROM notification_log WHERE resend = 0 GROUP BY assignment_id
		)
		AND n.status = ?
		AND n.attempted_at >= ?
		AND (SELECT COUNT(*) FROM notification_log c WHERE c.dedupe_key = n.dedupe_key) < ?
		ORDER BY n.attempted_at ASC
		LIMIT ?
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query,
		entity.NotificationStatusFailed, since, maxAttempts, limit)
	if err != nil {
		r.logger.Error("Failed to list pending notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	defer rows.Close()

	pending := []*entity.PendingNotification{}
	for rows.Next() {
		var p entity.PendingNotification
		if err := rows.Scan(&p.AssignmentID, &p.Template, &p.DedupeKey, &p.LastAttemptAt, &p.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan pending notification: %w", err)
		}
		pending = append(pending, &p)
	}

	return pending, rows.Err()
}

func scanNotification(row rowScanner) (*entity.NotificationRecord, error) {
	var record entity.NotificationRecord
	var sentAt sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.AssignmentID,
		&record.Template,
		&record.DedupeKey,
		&record.Resend,
		&record.Status,
		&record.ErrorMessage,
		&record.AttemptedAt,
		&sentAt,
	)
	if err != nil {
		return nil, err
	}

	if sentAt.Valid {
		t := sentAt.Time
		record.SentAt = &t
	}
	return &record, nil
}

// Verify interface compliance
var _ port.NotificationLogRepository = (*NotificationLogRepository)(nil)
