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

// EncumbranceRepository implements port.EncumbranceRepository
type EncumbranceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEncumbranceRepository creates a new encumbrance repository
func NewEncumbranceRepository(db *sql.DB, logger *zap.Logger) port.EncumbranceRepository {
	return &EncumbranceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new encumbrance
func (r *EncumbranceRepository) Create(ctx context.Context, e *entity.Encumbrance) error {
	query := `
		INSERT INTO encumbrances (
			id, upin, type, issuing_entity, reference_number, description,
			status, registration_date, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		e.ID,
		e.UPIN,
		e.Type,
		e.IssuingEntity,
		nullString(e.ReferenceNumber),
		nullString(e.Description),
		e.Status,
		nullTime(e.RegistrationDate),
		e.CreatedBy,
		utc(e.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create encumbrance", zap.String("upin", e.UPIN), zap.Error(err))
		return fmt.Errorf("failed to create encumbrance: %w", err)
	}
	return nil
}

// ListByUPIN lists a parcel's encumbrances oldest first
func (r *EncumbranceRepository) ListByUPIN(ctx context.Context, upin string) ([]*entity.Encumbrance, error) {
	query := `
		SELECT id, upin, type, issuing_entity, reference_number, description,
			status, registration_date, created_by, created_at
		FROM encumbrances
		WHERE upin = ?
		ORDER BY created_at ASC
	`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, upin)
	if err != nil {
		return nil, fmt.Errorf("failed to list encumbrances: %w", err)
	}
	defer rows.Close()

	var result []*entity.Encumbrance
	for rows.Next() {
		var (
			e                entity.Encumbrance
			reference, desc  sql.NullString
			registrationDate sql.NullTime
		)
		if err := rows.Scan(
			&e.ID, &e.UPIN, &e.Type, &e.IssuingEntity, &reference, &desc,
			&e.Status, &registrationDate, &e.CreatedBy, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan encumbrance: %w", err)
		}
		e.ReferenceNumber = reference.String
		e.Description = desc.String
		e.RegistrationDate = timePtr(registrationDate)
		result = append(result, &e)
	}
	return result, rows.Err()
}
