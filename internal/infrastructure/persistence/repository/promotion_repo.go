package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/entity"
	"github.com/garyjia/landrecords/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// PromotionRepository implements port.PromotionRepository over pending_promotions
type PromotionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPromotionRepository creates a new promotion outbox repository
func NewPromotionRepository(db *sql.DB, logger *zap.Logger) port.PromotionRepository {
	return &PromotionRepository{
		db:     db,
		logger: logger,
	}
}

const promotionColumns = `
	id, session_id, step, file_name, entity_type, entity_id, status,
	attempts, last_error, permanent_path, created_at, updated_at`

// Create queues a promotion. Re-queuing the same file is a no-op.
func (r *PromotionRepository) Create(ctx context.Context, p *entity.PendingPromotion) error {
	if p.Status == "" {
		p.Status = entity.PromotionPending
	}
	query := `
		INSERT INTO pending_promotions (
			session_id, step, file_name, entity_type, entity_id, status, attempts, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, step, file_name) DO NOTHING
	`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		p.SessionID,
		p.Step,
		p.FileName,
		p.EntityType,
		p.EntityID,
		p.Status,
		p.Attempts,
		utc(p.CreatedAt),
		utc(p.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to queue promotion",
			zap.String("session_id", p.SessionID),
			zap.String("file_name", p.FileName),
			zap.Error(err))
		return fmt.Errorf("failed to queue promotion: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 1 {
		if id, err := result.LastInsertId(); err == nil {
			p.ID = id
		}
	}
	return nil
}

// ListPendingBySession lists a session's PENDING rows in queue order
func (r *PromotionRepository) ListPendingBySession(ctx context.Context, sessionID string) ([]*entity.PendingPromotion, error) {
	query := `SELECT ` + promotionColumns + `
		FROM pending_promotions
		WHERE session_id = ? AND status = 'PENDING'
		ORDER BY id ASC`
	return r.list(ctx, query, sessionID)
}

// ListPending lists PENDING rows across sessions in queue order
func (r *PromotionRepository) ListPending(ctx context.Context, limit int) ([]*entity.PendingPromotion, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + promotionColumns + `
		FROM pending_promotions
		WHERE status = 'PENDING'
		ORDER BY id ASC
		LIMIT ?`
	return r.list(ctx, query, limit)
}

func (r *PromotionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.PendingPromotion, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	defer rows.Close()

	var result []*entity.PendingPromotion
	for rows.Next() {
		var (
			p             entity.PendingPromotion
			lastError     sql.NullString
			permanentPath sql.NullString
		)
		if err := rows.Scan(
			&p.ID, &p.SessionID, &p.Step, &p.FileName, &p.EntityType, &p.EntityID, &p.Status,
			&p.Attempts, &lastError, &permanentPath, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		p.LastError = lastError.String
		p.PermanentPath = permanentPath.String
		result = append(result, &p)
	}
	return result, rows.Err()
}

// MarkDone records the permanent path of a promoted file
func (r *PromotionRepository) MarkDone(ctx context.Context, id int64, permanentPath string) error {
	query := `
		UPDATE pending_promotions
		SET status = 'DONE', permanent_path = ?, attempts = attempts + 1, last_error = NULL, updated_at = ?
		WHERE id = ?
	`
	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, permanentPath, utc(time.Now()), id); err != nil {
		return fmt.Errorf("failed to mark promotion done: %w", err)
	}
	return nil
}

// MarkAttemptFailed bumps attempts and sets FAILED once maxAttempts is reached
func (r *PromotionRepository) MarkAttemptFailed(ctx context.Context, id int64, lastErr string, maxAttempts int) error {
	query := `
		UPDATE pending_promotions
		SET attempts = attempts + 1,
			last_error = ?,
			status = CASE WHEN attempts + 1 >= ? THEN 'FAILED' ELSE status END,
			updated_at = ?
		WHERE id = ? AND status = 'PENDING'
	`
	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, lastErr, maxAttempts, utc(time.Now()), id); err != nil {
		r.logger.Error("Failed to record promotion failure", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark promotion attempt: %w", err)
	}
	return nil
}

// CountOutstandingBySession counts PENDING and FAILED rows
func (r *PromotionRepository) CountOutstandingBySession(ctx context.Context, sessionID string) (int, error) {
	query := `SELECT COUNT(*) FROM pending_promotions WHERE session_id = ? AND status IN ('PENDING', 'FAILED')`
	var n int
	if err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count promotions: %w", err)
	}
	return n, nil
}
