package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
	"github.com/garyjia/landrecords/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ApprovalRequestRepository implements port.ApprovalRequestRepository
type ApprovalRequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRequestRepository creates a new approval request repository
func NewApprovalRequestRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRequestRepository {
	return &ApprovalRequestRepository{
		db:     db,
		logger: logger,
	}
}

const approvalRequestColumns = `
	id, entity_type, entity_id, action_type, request_data, status,
	maker_id, maker_role, approver_role, approver_id, sub_jurisdiction_id,
	comments, rejection_reason, created_at, updated_at, approved_at, rejected_at, is_deleted`

// Create inserts a PENDING request
func (r *ApprovalRequestRepository) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (
			id, entity_type, entity_id, action_type, request_data, status,
			maker_id, maker_role, approver_role, sub_jurisdiction_id, comments,
			created_at, updated_at, is_deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	`

	data := string(req.RequestData)
	if data == "" {
		data = "{}"
	}

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		req.ID,
		req.EntityType,
		req.EntityID,
		req.ActionType,
		data,
		req.Status,
		req.MakerID,
		req.MakerRole,
		req.ApproverRole,
		nullString(req.SubJurisdictionID),
		nullString(req.Comments),
		utc(req.CreatedAt),
		utc(req.UpdatedAt),
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return apperr.Duplicate("create approval request",
				"a pending %s request already exists for %s %s", req.ActionType, req.EntityType, req.EntityID)
		}
		r.logger.Error("Failed to create approval request", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create approval request: %w", err)
	}

	return nil
}

// GetByID retrieves a request by ID
func (r *ApprovalRequestRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	query := `SELECT ` + approvalRequestColumns + ` FROM approval_requests WHERE id = ? AND is_deleted = 0`

	req, err := scanApprovalRequest(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval request", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}
	return req, nil
}

// FindPending returns the PENDING request for the tuple, if any
func (r *ApprovalRequestRepository) FindPending(ctx context.Context, entityType entity.EntityType, entityID string, actionType entity.ActionType) (*entity.ApprovalRequest, error) {
	query := `SELECT ` + approvalRequestColumns + `
		FROM approval_requests
		WHERE entity_type = ? AND entity_id = ? AND action_type = ?
			AND status = 'PENDING' AND is_deleted = 0
		LIMIT 1`

	req, err := scanApprovalRequest(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, entityType, entityID, actionType))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending request: %w", err)
	}
	return req, nil
}

// MarkApproved moves a PENDING request to APPROVED
func (r *ApprovalRequestRepository) MarkApproved(ctx context.Context, id, approverID, comments string, at time.Time) (bool, error) {
	query := `
		UPDATE approval_requests
		SET status = 'APPROVED', approver_id = ?, approved_at = ?, updated_at = ?,
			comments = COALESCE(?, comments)
		WHERE id = ? AND status = 'PENDING' AND is_deleted = 0
	`
	return r.transition(ctx, query, id, approverID, utc(at), utc(at), nullString(comments), id)
}

// MarkRejected moves a PENDING request to REJECTED
func (r *ApprovalRequestRepository) MarkRejected(ctx context.Context, id, approverID, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE approval_requests
		SET status = 'REJECTED', approver_id = ?, rejected_at = ?, updated_at = ?, rejection_reason = ?
		WHERE id = ? AND status = 'PENDING' AND is_deleted = 0
	`
	return r.transition(ctx, query, id, approverID, utc(at), utc(at), reason, id)
}

func (r *ApprovalRequestRepository) transition(ctx context.Context, query, id string, args ...interface{}) (bool, error) {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update approval request", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to update approval request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ListPending lists PENDING requests oldest first
func (r *ApprovalRequestRepository) ListPending(ctx context.Context, filter port.PendingFilter) ([]*entity.ApprovalRequest, error) {
	var (
		where = []string{"status = 'PENDING'", "is_deleted = 0"}
		args  []interface{}
	)
	if filter.ApproverRole != "" {
		where = append(where, "approver_role = ?")
		args = append(args, filter.ApproverRole)
	}
	if filter.SubJurisdictionID != "" {
		where = append(where, "(sub_jurisdiction_id = ? OR sub_jurisdiction_id IS NULL)")
		args = append(args, filter.SubJurisdictionID)
	}
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, filter.EntityType)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	query := `SELECT ` + approvalRequestColumns + `
		FROM approval_requests
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list pending requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.ApprovalRequest
	for rows.Next() {
		req, err := scanApprovalRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanApprovalRequest(row rowScanner) (*entity.ApprovalRequest, error) {
	var (
		req             entity.ApprovalRequest
		data            string
		approverID      sql.NullString
		subJurisdiction sql.NullString
		comments        sql.NullString
		reason          sql.NullString
		approvedAt      sql.NullTime
		rejectedAt      sql.NullTime
		isDeleted       int
	)

	err := row.Scan(
		&req.ID,
		&req.EntityType,
		&req.EntityID,
		&req.ActionType,
		&data,
		&req.Status,
		&req.MakerID,
		&req.MakerRole,
		&req.ApproverRole,
		&approverID,
		&subJurisdiction,
		&comments,
		&reason,
		&req.CreatedAt,
		&req.UpdatedAt,
		&approvedAt,
		&rejectedAt,
		&isDeleted,
	)
	if err != nil {
		return nil, err
	}

	req.RequestData = []byte(data)
	req.ApproverID = approverID.String
	req.SubJurisdictionID = subJurisdiction.String
	req.Comments = comments.String
	req.RejectionReason = reason.String
	req.ApprovedAt = timePtr(approvedAt)
	req.RejectedAt = timePtr(rejectedAt)
	req.IsDeleted = isDeleted != 0
	return &req, nil
}
