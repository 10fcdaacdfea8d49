package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill types and payment statuses
const (
	BillTypeLease  = "LEASE"
	PaymentUnpaid  = "UNPAID"
	PaymentPartial = "PARTIAL"
	PaymentPaid    = "PAID"
)

// LeaseBill is one installment of a lease's amortization schedule
type LeaseBill struct {
	ID                string          `json:"id"`
	UPIN              string          `json:"upin"`
	LeaseID           string          `json:"lease_id"`
	FiscalYear        int             `json:"fiscal_year"`
	BillType          string          `json:"bill_type"`
	AmountDue         decimal.Decimal `json:"amount_due"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
	BasePayment       decimal.Decimal `json:"base_payment"`
	PaymentStatus     string          `json:"payment_status"`
	DueDate           time.Time       `json:"due_date"`
	InstallmentNumber int             `json:"installment_number"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
