package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/entity"
	"github.com/garyjia/landrecords/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LeaseRepository implements port.LeaseRepository. Amounts are stored as
// decimal text so no precision is lost.
type LeaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLeaseRepository creates a new lease repository
func NewLeaseRepository(db *sql.DB, logger *zap.Logger) port.LeaseRepository {
	return &LeaseRepository{
		db:     db,
		logger: logger,
	}
}

const leaseColumns = `
	id, upin, total_lease_amount, down_payment_amount, annual_installment, price_per_m2,
	payment_term_years, lease_period_years, start_date, expiry_date,
	created_by, created_at, updated_at`

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

// Create inserts a new lease
func (r *LeaseRepository) Create(ctx context.Context, l *entity.Lease) error {
	query := `INSERT INTO leases (` + leaseColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		l.ID,
		l.UPIN,
		l.TotalLeaseAmount,
		l.DownPayment,
		nullDecimal(l.AnnualInstallment),
		l.PricePerM2,
		l.PaymentTermYears,
		l.LeasePeriodYears,
		nullTime(l.StartDate),
		nullTime(l.ExpiryDate),
		l.CreatedBy,
		utc(l.CreatedAt),
		utc(l.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create lease", zap.String("id", l.ID), zap.String("upin", l.UPIN), zap.Error(err))
		return fmt.Errorf("failed to create lease: %w", err)
	}
	return nil
}

// GetByID retrieves a lease by ID
func (r *LeaseRepository) GetByID(ctx context.Context, id string) (*entity.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE id = ?`
	l, err := scanLease(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get lease", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}
	return l, nil
}

// GetByUPIN returns the newest lease on a parcel
func (r *LeaseRepository) GetByUPIN(ctx context.Context, upin string) (*entity.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE upin = ? ORDER BY created_at DESC LIMIT 1`
	l, err := scanLease(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, upin))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lease by upin: %w", err)
	}
	return l, nil
}

// Update writes the lease terms and expiry date
func (r *LeaseRepository) Update(ctx context.Context, l *entity.Lease) error {
	query := `
		UPDATE leases
		SET total_lease_amount = ?, down_payment_amount = ?, annual_installment = ?, price_per_m2 = ?,
			payment_term_years = ?, lease_period_years = ?, start_date = ?, expiry_date = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		l.TotalLeaseAmount,
		l.DownPayment,
		nullDecimal(l.AnnualInstallment),
		l.PricePerM2,
		l.PaymentTermYears,
		l.LeasePeriodYears,
		nullTime(l.StartDate),
		nullTime(l.ExpiryDate),
		utc(l.UpdatedAt),
		l.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update lease", zap.String("id", l.ID), zap.Error(err))
		return fmt.Errorf("failed to update lease: %w", err)
	}
	return nil
}

func scanLease(row rowScanner) (*entity.Lease, error) {
	var (
		l           entity.Lease
		installment decimal.NullDecimal
		startDate   sql.NullTime
		expiryDate  sql.NullTime
	)
	err := row.Scan(
		&l.ID,
		&l.UPIN,
		&l.TotalLeaseAmount,
		&l.DownPayment,
		&installment,
		&l.PricePerM2,
		&l.PaymentTermYears,
		&l.LeasePeriodYears,
		&startDate,
		&expiryDate,
		&l.CreatedBy,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if installment.Valid {
		v := installment.Decimal
		l.AnnualInstallment = &v
	}
	l.StartDate = timePtr(startDate)
	l.ExpiryDate = timePtr(expiryDate)
	return &l, nil
}
