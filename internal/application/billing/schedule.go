package billing

import (
	"time"

	"github.com/garyjia/landrecords/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Installment is one computed row of an amortization schedule
type Installment struct {
	Number          int
	DueDate         time.Time
	Amount          decimal.Decimal
	RemainingBefore decimal.Decimal
}

// InstallmentAmount returns the explicit installment when set, otherwise
// (total - down payment) / term rounded to 2 decimals.
func InstallmentAmount(terms entity.LeaseTerms) decimal.Decimal {
	if terms.AnnualInstallment != nil {
		return terms.AnnualInstallment.Round(2)
	}
	principal := terms.TotalLeaseAmount.Sub(terms.DownPayment)
	return principal.Div(decimal.NewFromInt(int64(terms.PaymentTermYears))).Round(2)
}

// BuildSchedule computes the amortization schedule without touching storage.
// Each row carries the outstanding principal before its own installment is applied.
func BuildSchedule(terms entity.LeaseTerms) ([]Installment, error) {
	if err := terms.Validate("generate bills"); err != nil {
		return nil, err
	}

	installment := InstallmentAmount(terms)
	remaining := terms.TotalLeaseAmount.Sub(terms.DownPayment).Round(2)
	start := *terms.StartDate

	schedule := make([]Installment, 0, terms.PaymentTermYears)
	for k := 1; k <= terms.PaymentTermYears; k++ {
		schedule = append(schedule, Installment{
			Number:          k,
			DueDate:         start.AddDate(k, 0, 0),
			Amount:          installment,
			RemainingBefore: remaining,
		})
		remaining = decimal.Max(decimal.Zero, remaining.Sub(installment)).Round(2)
	}
	return schedule, nil
}
