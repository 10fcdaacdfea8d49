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

// BillingRepository implements port.BillingRepository
type BillingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBillingRepository creates a new lease bill repository
func NewBillingRepository(db *sql.DB, logger *zap.Logger) port.BillingRepository {
	return &BillingRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts all bills through one prepared statement
func (r *BillingRepository) CreateBatch(ctx context.Context, bills []*entity.LeaseBill) error {
	if len(bills) == 0 {
		return nil
	}

	query := `
		INSERT INTO lease_bills (
			id, upin, lease_id, fiscal_year, bill_type, amount_due, amount_paid,
			base_payment, payment_status, due_date, installment_number, remaining_amount,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	exec := sqlite.ExecutorFrom(ctx, r.db)
	for _, b := range bills {
		_, err := exec.ExecContext(ctx, query,
			b.ID,
			b.UPIN,
			b.LeaseID,
			b.FiscalYear,
			b.BillType,
			b.AmountDue,
			b.AmountPaid,
			b.BasePayment,
			b.PaymentStatus,
			utc(b.DueDate),
			b.InstallmentNumber,
			b.RemainingAmount,
			utc(b.CreatedAt),
			utc(b.UpdatedAt),
		)
		if err != nil {
			r.logger.Error("Failed to create lease bill",
				zap.String("lease_id", b.LeaseID),
				zap.Int("installment", b.InstallmentNumber),
				zap.Error(err))
			return fmt.Errorf("failed to create lease bill %d: %w", b.InstallmentNumber, err)
		}
	}
	return nil
}

// DeleteByLease removes every bill of the given type for a lease
func (r *BillingRepository) DeleteByLease(ctx context.Context, leaseID, billType string) (int64, error) {
	query := `DELETE FROM lease_bills WHERE lease_id = ? AND bill_type = ?`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, leaseID, billType)
	if err != nil {
		return 0, fmt.Errorf("failed to delete lease bills: %w", err)
	}
	return result.RowsAffected()
}

// ListByLease lists a lease's bills by installment number
func (r *BillingRepository) ListByLease(ctx context.Context, leaseID string) ([]*entity.LeaseBill, error) {
	query := `
		SELECT id, upin, lease_id, fiscal_year, bill_type, amount_due, amount_paid,
			base_payment, payment_status, due_date, installment_number, remaining_amount,
			created_at, updated_at
		FROM lease_bills
		WHERE lease_id = ?
		ORDER BY installment_number ASC
	`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, leaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lease bills: %w", err)
	}
	defer rows.Close()

	var bills []*entity.LeaseBill
	for rows.Next() {
		var b entity.LeaseBill
		if err := rows.Scan(
			&b.ID,
			&b.UPIN,
			&b.LeaseID,
			&b.FiscalYear,
			&b.BillType,
			&b.AmountDue,
			&b.AmountPaid,
			&b.BasePayment,
			&b.PaymentStatus,
			&b.DueDate,
			&b.InstallmentNumber,
			&b.RemainingAmount,
			&b.CreatedAt,
			&b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lease bill: %w", err)
		}
		bills = append(bills, &b)
	}
	return bills, rows.Err()
}
