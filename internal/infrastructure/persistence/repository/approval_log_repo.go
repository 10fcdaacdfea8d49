package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/entity"
	"github.com/garyjia/landrecords/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ApprovalLogRepository implements port.ApprovalLogRepository.
// Rows are insert-only; triggers in the schema reject UPDATE and DELETE.
type ApprovalLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalLogRepository creates a new approval log repository
func NewApprovalLogRepository(db *sql.DB, logger *zap.Logger) port.ApprovalLogRepository {
	return &ApprovalLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one log row
func (r *ApprovalLogRepository) Append(ctx context.Context, entry *entity.ApprovalLogEntry) error {
	query := `
		INSERT INTO approval_logs (
			request_id, action, performed_by, performer_role,
			previous_status, new_status, comments, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entry.RequestID,
		entry.Action,
		entry.PerformedBy,
		entry.PerformerRole,
		nullString(string(entry.PreviousStatus)),
		entry.NewStatus,
		nullString(entry.Comments),
		utc(entry.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to append approval log", zap.String("request_id", entry.RequestID), zap.Error(err))
		return fmt.Errorf("failed to append approval log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByRequestID returns the request's trail in insertion order
func (r *ApprovalLogRepository) ListByRequestID(ctx context.Context, requestID string) ([]*entity.ApprovalLogEntry, error) {
	query := `
		SELECT id, request_id, action, performed_by, performer_role,
			previous_status, new_status, comments, created_at
		FROM approval_logs
		WHERE request_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval logs: %w", err)
	}
	defer rows.Close()

	var entries []*entity.ApprovalLogEntry
	for rows.Next() {
		var (
			e        entity.ApprovalLogEntry
			previous sql.NullString
			comments sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Action, &e.PerformedBy, &e.PerformerRole,
			&previous, &e.NewStatus, &comments, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval log: %w", err)
		}
		e.PreviousStatus = entity.RequestStatus(previous.String)
		e.Comments = comments.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
