// Package billing produces and replaces the lease amortization schedule.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Generator creates and replaces lease bills. Writes join the caller's
// transaction when ctx carries one.
type Generator interface {
	GenerateBills(ctx context.Context, lease *entity.Lease) ([]*entity.LeaseBill, error)
	RegenerateBills(ctx context.Context, lease *entity.Lease) ([]*entity.LeaseBill, error)
	ListBills(ctx context.Context, leaseID string) ([]*entity.LeaseBill, error)
}

type generatorImpl struct {
	billRepo  port.BillingRepository
	txManager port.TransactionManager
	logger    Logger
	now       func() time.Time
}

// NewGenerator creates a new bill Generator
func NewGenerator(billRepo port.BillingRepository, txManager port.TransactionManager, logger Logger) Generator {
	return &generatorImpl{
		billRepo:  billRepo,
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
}

// GenerateBills persists one bill per installment of the lease's payment term
func (g *generatorImpl) GenerateBills(ctx context.Context, lease *entity.Lease) ([]*entity.LeaseBill, error) {
	if lease == nil || lease.ID == "" {
		return nil, apperr.Validation("generate bills", "lease id is required")
	}

	schedule, err := BuildSchedule(lease.Terms())
	if err != nil {
		return nil, err
	}

	now := g.now()
	bills := make([]*entity.LeaseBill, 0, len(schedule))
	for _, inst := range schedule {
		bills = append(bills, &entity.LeaseBill{
			ID:                uuid.NewString(),
			UPIN:              lease.UPIN,
			LeaseID:           lease.ID,
			FiscalYear:        inst.DueDate.Year(),
			BillType:          entity.BillTypeLease,
			AmountDue:         inst.Amount,
			AmountPaid:        decimal.Zero,
			BasePayment:       inst.Amount,
			PaymentStatus:     entity.PaymentUnpaid,
			DueDate:           inst.DueDate,
			InstallmentNumber: inst.Number,
			RemainingAmount:   inst.RemainingBefore,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	err = g.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return g.billRepo.CreateBatch(txCtx, bills)
	})
	if err != nil {
		g.logger.Error("Failed to persist lease bills", "lease_id", lease.ID, "error", err)
		return nil, fmt.Errorf("persist bills: %w", err)
	}

	g.logger.Info("Lease bills generated", "lease_id", lease.ID, "upin", lease.UPIN, "count", len(bills))
	return bills, nil
}

// RegenerateBills replaces every LEASE bill of the lease in one transaction
func (g *generatorImpl) RegenerateBills(ctx context.Context, lease *entity.Lease) ([]*entity.LeaseBill, error) {
	if lease == nil || lease.ID == "" {
		return nil, apperr.Validation("regenerate bills", "lease id is required")
	}

	var bills []*entity.LeaseBill
	err := g.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		deleted, err := g.billRepo.DeleteByLease(txCtx, lease.ID, entity.BillTypeLease)
		if err != nil {
			return fmt.Errorf("delete bills: %w", err)
		}
		g.logger.Info("Lease bills cleared for regeneration", "lease_id", lease.ID, "deleted", deleted)

		bills, err = g.GenerateBills(txCtx, lease)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bills, nil
}

// ListBills returns the lease's bills ordered by installment number
func (g *generatorImpl) ListBills(ctx context.Context, leaseID string) ([]*entity.LeaseBill, error) {
	bills, err := g.billRepo.ListByLease(ctx, leaseID)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}
