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

// ParcelRepository implements port.ParcelRepository
type ParcelRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewParcelRepository creates a new parcel repository
func NewParcelRepository(db *sql.DB, logger *zap.Logger) port.ParcelRepository {
	return &ParcelRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new parcel
func (r *ParcelRepository) Create(ctx context.Context, p *entity.LandParcel) error {
	query := `
		INSERT INTO land_parcels (
			upin, file_number, sub_jurisdiction_id, ketena, block, total_area_m2,
			land_use, land_grade, tenure_type, parent_upin, status, is_deleted,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		p.UPIN,
		p.FileNumber,
		nullString(p.SubJurisdictionID),
		nullString(p.Ketena),
		nullString(p.Block),
		p.TotalAreaM2,
		nullString(p.LandUse),
		nullString(p.LandGrade),
		p.TenureType,
		nullString(p.ParentUPIN),
		p.Status,
		boolToInt(p.IsDeleted),
		p.CreatedBy,
		utc(p.CreatedAt),
		utc(p.UpdatedAt),
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return apperr.Validation("create parcel", "parcel %s is already registered", p.UPIN)
		}
		r.logger.Error("Failed to create parcel", zap.String("upin", p.UPIN), zap.Error(err))
		return fmt.Errorf("failed to create parcel: %w", err)
	}
	return nil
}

// GetByUPIN retrieves a parcel, including soft-deleted ones
func (r *ParcelRepository) GetByUPIN(ctx context.Context, upin string) (*entity.LandParcel, error) {
	query := `
		SELECT upin, file_number, sub_jurisdiction_id, ketena, block, total_area_m2,
			land_use, land_grade, tenure_type, parent_upin, status, is_deleted,
			created_by, created_at, updated_at
		FROM land_parcels
		WHERE upin = ?
	`

	var (
		p                                                  entity.LandParcel
		subJurisdiction, ketena, block, landUse, landGrade sql.NullString
		parentUPIN                                         sql.NullString
		isDeleted                                          int
	)
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, upin).Scan(
		&p.UPIN,
		&p.FileNumber,
		&subJurisdiction,
		&ketena,
		&block,
		&p.TotalAreaM2,
		&landUse,
		&landGrade,
		&p.TenureType,
		&parentUPIN,
		&p.Status,
		&isDeleted,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get parcel", zap.String("upin", upin), zap.Error(err))
		return nil, fmt.Errorf("failed to get parcel: %w", err)
	}

	p.SubJurisdictionID = subJurisdiction.String
	p.Ketena = ketena.String
	p.Block = block.String
	p.LandUse = landUse.String
	p.LandGrade = landGrade.String
	p.ParentUPIN = parentUPIN.String
	p.IsDeleted = isDeleted != 0
	return &p, nil
}

// UpdateStatus sets the parcel status
func (r *ParcelRepository) UpdateStatus(ctx context.Context, upin, status string) error {
	query := `UPDATE land_parcels SET status = ?, updated_at = ? WHERE upin = ?`
	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, status, utc(time.Now()), upin); err != nil {
		return fmt.Errorf("failed to update parcel status: %w", err)
	}
	return nil
}

// SoftDelete flags the parcel as deleted
func (r *ParcelRepository) SoftDelete(ctx context.Context, upin string) error {
	query := `UPDATE land_parcels SET status = ?, is_deleted = 1, updated_at = ? WHERE upin = ?`
	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, entity.ParcelStatusDeleted, utc(time.Now()), upin); err != nil {
		r.logger.Error("Failed to delete parcel", zap.String("upin", upin), zap.Error(err))
		return fmt.Errorf("failed to delete parcel: %w", err)
	}
	return nil
}

// AddOwner links an owner to a parcel. A second active link for the pair is rejected.
func (r *ParcelRepository) AddOwner(ctx context.Context, link *entity.ParcelOwner) error {
	query := `
		INSERT INTO parcel_owners (upin, owner_id, acquired_at, retired_at, source_ref)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		link.UPIN, link.OwnerID, utc(link.AcquiredAt), nullTime(link.RetiredAt), nullString(link.SourceRef),
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return apperr.Validation("add parcel owner", "owner %s already holds parcel %s", link.OwnerID, link.UPIN)
		}
		return fmt.Errorf("failed to add parcel owner: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	link.ID = id
	return nil
}

// ListActiveOwners lists unretired owner links in acquisition order
func (r *ParcelRepository) ListActiveOwners(ctx context.Context, upin string) ([]*entity.ParcelOwner, error) {
	query := `
		SELECT id, upin, owner_id, acquired_at, retired_at, source_ref
		FROM parcel_owners
		WHERE upin = ? AND retired_at IS NULL
		ORDER BY id ASC
	`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, upin)
	if err != nil {
		return nil, fmt.Errorf("failed to list parcel owners: %w", err)
	}
	defer rows.Close()

	var links []*entity.ParcelOwner
	for rows.Next() {
		var (
			link      entity.ParcelOwner
			retiredAt sql.NullTime
			sourceRef sql.NullString
		)
		if err := rows.Scan(&link.ID, &link.UPIN, &link.OwnerID, &link.AcquiredAt, &retiredAt, &sourceRef); err != nil {
			return nil, fmt.Errorf("failed to scan parcel owner: %w", err)
		}
		link.RetiredAt = timePtr(retiredAt)
		link.SourceRef = sourceRef.String
		links = append(links, &link)
	}
	return links, rows.Err()
}

// RetireOwner closes the active link and reports whether one existed
func (r *ParcelRepository) RetireOwner(ctx context.Context, upin, ownerID string, at time.Time) (bool, error) {
	query := `UPDATE parcel_owners SET retired_at = ? WHERE upin = ? AND owner_id = ? AND retired_at IS NULL`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, utc(at), upin, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to retire parcel owner: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}
