package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
	"github.com/garyjia/landrecords/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// WizardSessionRepository implements port.WizardSessionRepository.
// Step slots are stored as JSON text columns.
type WizardSessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWizardSessionRepository creates a new wizard session repository
func NewWizardSessionRepository(db *sql.DB, logger *zap.Logger) port.WizardSessionRepository {
	return &WizardSessionRepository{
		db:     db,
		logger: logger,
	}
}

const sessionColumns = `
	id, user_id, user_role, sub_jurisdiction_id, status, current_step,
	parcel_data, parcel_docs, owner_data, owner_docs, lease_data, lease_docs,
	approval_request_id, expires_at, submitted_at, created_at, updated_at`

// sessionSlots holds the encoded JSON columns of a session
type sessionSlots struct {
	parcel, parcelDocs, owner, ownerDocs, lease, leaseDocs sql.NullString
}

func encodeSlots(s *entity.WizardSession) (*sessionSlots, error) {
	var (
		slots sessionSlots
		err   error
	)
	if slots.parcel, err = marshalJSON(s.Parcel); err != nil {
		return nil, err
	}
	if slots.owner, err = marshalJSON(s.Owner); err != nil {
		return nil, err
	}
	if slots.lease, err = marshalJSON(s.Lease); err != nil {
		return nil, err
	}
	if slots.parcelDocs, err = marshalDocs(s.ParcelDocs); err != nil {
		return nil, err
	}
	if slots.ownerDocs, err = marshalDocs(s.OwnerDocs); err != nil {
		return nil, err
	}
	if slots.leaseDocs, err = marshalDocs(s.LeaseDocs); err != nil {
		return nil, err
	}
	return &slots, nil
}

func marshalDocs(docs []entity.DocumentRef) (sql.NullString, error) {
	if docs == nil {
		docs = []entity.DocumentRef{}
	}
	return marshalJSON(docs)
}

// Create inserts a new session
func (r *WizardSessionRepository) Create(ctx context.Context, s *entity.WizardSession) error {
	slots, err := encodeSlots(s)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO wizard_sessions (
			id, user_id, user_role, sub_jurisdiction_id, status, current_step,
			parcel_data, parcel_docs, owner_data, owner_docs, lease_data, lease_docs,
			expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		s.ID, s.UserID, s.UserRole, nullString(s.SubJurisdictionID), s.Status, s.CurrentStep,
		slots.parcel, slots.parcelDocs, slots.owner, slots.ownerDocs, slots.lease, slots.leaseDocs,
		utc(s.ExpiresAt), utc(s.CreatedAt), utc(s.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create wizard session", zap.String("id", s.ID), zap.Error(err))
		return fmt.Errorf("failed to create wizard session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID
func (r *WizardSessionRepository) GetByID(ctx context.Context, id string) (*entity.WizardSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM wizard_sessions WHERE id = ?`
	s, err := scanSession(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get wizard session", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get wizard session: %w", err)
	}
	return s, nil
}

// GetEditableByUser returns the user's newest DRAFT or REJECTED session
func (r *WizardSessionRepository) GetEditableByUser(ctx context.Context, userID string) (*entity.WizardSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM wizard_sessions
		WHERE user_id = ? AND status IN ('DRAFT', 'REJECTED')
		ORDER BY created_at DESC
		LIMIT 1`
	s, err := scanSession(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get editable session: %w", err)
	}
	return s, nil
}

// Update writes step slots, status, current step and expiry
func (r *WizardSessionRepository) Update(ctx context.Context, s *entity.WizardSession) error {
	slots, err := encodeSlots(s)
	if err != nil {
		return err
	}

	query := `
		UPDATE wizard_sessions
		SET status = ?, current_step = ?,
			parcel_data = ?, parcel_docs = ?, owner_data = ?, owner_docs = ?, lease_data = ?, lease_docs = ?,
			expires_at = ?, updated_at = ?
		WHERE id = ?
	`
	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		s.Status, s.CurrentStep,
		slots.parcel, slots.parcelDocs, slots.owner, slots.ownerDocs, slots.lease, slots.leaseDocs,
		utc(s.ExpiresAt), utc(s.UpdatedAt), s.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update wizard session", zap.String("id", s.ID), zap.Error(err))
		return fmt.Errorf("failed to update wizard session: %w", err)
	}
	return nil
}

// UpdateStatus sets the session status
func (r *WizardSessionRepository) UpdateStatus(ctx context.Context, id string, status entity.SessionStatus) error {
	query := `UPDATE wizard_sessions SET status = ?, updated_at = ? WHERE id = ?`
	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, status, utc(time.Now()), id); err != nil {
		r.logger.Error("Failed to update session status", zap.String("id", id), zap.String("status", string(status)), zap.Error(err))
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return nil
}

// MarkSubmitted sets PENDING_APPROVAL and links the approval request. It
// only moves a DRAFT or REJECTED session.
func (r *WizardSessionRepository) MarkSubmitted(ctx context.Context, id, approvalRequestID string, at time.Time) error {
	query := `
		UPDATE wizard_sessions
		SET status = 'PENDING_APPROVAL', approval_request_id = ?, submitted_at = ?, updated_at = ?
		WHERE id = ? AND status IN ('DRAFT', 'REJECTED')
	`
	res, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, approvalRequestID, utc(at), utc(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark session submitted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark session submitted: %w", err)
	}
	if n == 0 {
		return apperr.InvalidState("mark session submitted", "session %s is no longer editable", id)
	}
	return nil
}

// MarkExecuted sets the status written by a wizard execution and stamps
// submitted_at when the session never went through MarkSubmitted
func (r *WizardSessionRepository) MarkExecuted(ctx context.Context, id string, status entity.SessionStatus, at time.Time) error {
	query := `
		UPDATE wizard_sessions
		SET status = ?, submitted_at = COALESCE(submitted_at, ?), updated_at = ?
		WHERE id = ?
	`
	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, status, utc(at), utc(at), id); err != nil {
		r.logger.Error("Failed to mark session executed", zap.String("id", id), zap.String("status", string(status)), zap.Error(err))
		return fmt.Errorf("failed to mark session executed: %w", err)
	}
	return nil
}

// ListExpiredDrafts returns DRAFT sessions whose expiry has passed
func (r *WizardSessionRepository) ListExpiredDrafts(ctx context.Context, now time.Time, limit int) ([]*entity.WizardSession, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + sessionColumns + `
		FROM wizard_sessions
		WHERE status = 'DRAFT' AND expires_at < ?
		ORDER BY expires_at ASC
		LIMIT ?`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, utc(now), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*entity.WizardSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wizard session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DeleteExpiredDraft deletes the session only while it is still an expired DRAFT
func (r *WizardSessionRepository) DeleteExpiredDraft(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `DELETE FROM wizard_sessions WHERE id = ? AND status = 'DRAFT' AND expires_at < ?`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, id, utc(now))
	if err != nil {
		return false, fmt.Errorf("failed to delete expired session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func scanSession(row rowScanner) (*entity.WizardSession, error) {
	var (
		s               entity.WizardSession
		subJurisdiction sql.NullString
		slots           sessionSlots
		requestID       sql.NullString
		submittedAt     sql.NullTime
	)

	err := row.Scan(
		&s.ID, &s.UserID, &s.UserRole, &subJurisdiction, &s.Status, &s.CurrentStep,
		&slots.parcel, &slots.parcelDocs, &slots.owner, &slots.ownerDocs, &slots.lease, &slots.leaseDocs,
		&requestID, &s.ExpiresAt, &submittedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.SubJurisdictionID = subJurisdiction.String
	s.ApprovalRequestID = requestID.String
	s.SubmittedAt = timePtr(submittedAt)

	if slots.parcel.Valid {
		s.Parcel = &entity.ParcelDraft{}
		if err := unmarshalJSON(slots.parcel, s.Parcel); err != nil {
			return nil, err
		}
	}
	if slots.owner.Valid {
		s.Owner = &entity.OwnerStep{}
		if err := unmarshalJSON(slots.owner, s.Owner); err != nil {
			return nil, err
		}
	}
	if slots.lease.Valid {
		s.Lease = &entity.LeaseDraft{}
		if err := unmarshalJSON(slots.lease, s.Lease); err != nil {
			return nil, err
		}
	}
	for _, d := range []struct {
		raw sql.NullString
		dst *[]entity.DocumentRef
	}{
		{slots.parcelDocs, &s.ParcelDocs},
		{slots.ownerDocs, &s.OwnerDocs},
		{slots.leaseDocs, &s.LeaseDocs},
	} {
		if err := unmarshalJSON(d.raw, d.dst); err != nil {
			return nil, err
		}
	}
	return &s, nil
}
