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

// OwnerRepository implements port.OwnerRepository
type OwnerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOwnerRepository creates a new owner repository
func NewOwnerRepository(db *sql.DB, logger *zap.Logger) port.OwnerRepository {
	return &OwnerRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new owner
func (r *OwnerRepository) Create(ctx context.Context, o *entity.Owner) error {
	query := `
		INSERT INTO owners (
			id, full_name, national_id, phone, tin, address, sub_jurisdiction_id,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		o.ID,
		o.FullName,
		nullString(o.NationalID),
		nullString(o.Phone),
		nullString(o.TIN),
		nullString(o.Address),
		nullString(o.SubJurisdictionID),
		o.CreatedBy,
		utc(o.CreatedAt),
		utc(o.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create owner", zap.String("id", o.ID), zap.Error(err))
		return fmt.Errorf("failed to create owner: %w", err)
	}
	return nil
}

// GetByID retrieves an owner by ID
func (r *OwnerRepository) GetByID(ctx context.Context, id string) (*entity.Owner, error) {
	query := `
		SELECT id, full_name, national_id, phone, tin, address, sub_jurisdiction_id,
			created_by, created_at, updated_at
		FROM owners
		WHERE id = ?
	`

	var (
		o                                   entity.Owner
		nationalID, phone, tin, address, sj sql.NullString
	)
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&o.ID,
		&o.FullName,
		&nationalID,
		&phone,
		&tin,
		&address,
		&sj,
		&o.CreatedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get owner", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}

	o.NationalID = nationalID.String
	o.Phone = phone.String
	o.TIN = tin.String
	o.Address = address.String
	o.SubJurisdictionID = sj.String
	return &o, nil
}

// Update writes the owner's contact fields
func (r *OwnerRepository) Update(ctx context.Context, o *entity.Owner) error {
	query := `
		UPDATE owners
		SET full_name = ?, national_id = ?, phone = ?, tin = ?, address = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		o.FullName,
		nullString(o.NationalID),
		nullString(o.Phone),
		nullString(o.TIN),
		nullString(o.Address),
		utc(o.UpdatedAt),
		o.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update owner", zap.String("id", o.ID), zap.Error(err))
		return fmt.Errorf("failed to update owner: %w", err)
	}
	return nil
}
