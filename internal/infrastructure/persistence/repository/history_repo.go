package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/infrastructure/persistence/sqlite"
)

const historyColumns = `id, assignment_id, version, action, previous_status, new_status, action_data, timestamp`

// HistoryRepository appends to and reads the assignment audit trail
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Create appends h. A second entry for the same assignment version means two
// writers raced past the version check and is reported as port.ErrConcurrentModification.
func (r *HistoryRepository) Create(ctx context.Context, h *entity.AssignmentHistory) error {
	data := h.ActionData
	if data == "" {
		data = "{}"
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `
		INSERT INTO assignment_history (
			assignment_id, version, action, previous_status, new_status, action_data, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.AssignmentID, h.Version, h.Action, h.PreviousStatus, h.NewStatus, data, h.Timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Warn("History already recorded for version",
				zap.String("assignment_id", h.AssignmentID),
				zap.Int64("version", h.Version))
			return port.ErrConcurrentModification
		}
		r.logger.Error("Failed to append history",
			zap.String("assignment_id", h.AssignmentID),
			zap.String("action", h.Action),
			zap.Error(err))
		return fmt.Errorf("failed to append history: %w", err)
	}

	if h.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read history id: %w", err)
	}
	h.ActionData = data
	return nil
}

// GetByAssignmentID returns the trail oldest first
func (r *HistoryRepository) GetByAssignmentID(ctx context.Context, assignmentID string) ([]*entity.AssignmentHistory, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx,
		`SELECT `+historyColumns+` FROM assignment_history WHERE assignment_id = ? ORDER BY id`,
		assignmentID,
	)
	if err != nil {
		r.logger.Error("Failed to read history", zap.String("assignment_id", assignmentID), zap.Error(err))
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer rows.Close()

	trail := []*entity.AssignmentHistory{}
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		trail = append(trail, h)
	}
	return trail, rows.Err()
}

func scanHistory(rows *sql.Rows) (*entity.AssignmentHistory, error) {
	var h entity.AssignmentHistory
	if err := rows.Scan(
		&h.ID, &h.AssignmentID, &h.Version, &h.Action,
		&h.PreviousStatus, &h.NewStatus, &h.ActionData, &h.Timestamp,
	); err != nil {
		return nil, fmt.Errorf("failed to scan history: %w", err)
	}
	return &h, nil
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
