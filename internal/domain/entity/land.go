package entity

import (
	"time"

	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/shopspring/decimal"
)

// Parcel status values
const (
	ParcelStatusActive     = "ACTIVE"
	ParcelStatusSubdivided = "SUBDIVIDED"
	ParcelStatusDeleted    = "DELETED"
)

// LandParcel is a registered parcel identified by its UPIN
type LandParcel struct {
	UPIN              string    `json:"upin"`
	FileNumber        string    `json:"file_number"`
	SubJurisdictionID string    `json:"sub_jurisdiction_id"`
	Ketena            string    `json:"ketena,omitempty"`
	Block             string    `json:"block,omitempty"`
	TotalAreaM2       float64   `json:"total_area_m2"`
	LandUse           string    `json:"land_use,omitempty"`
	LandGrade         string    `json:"land_grade,omitempty"`
	TenureType        string    `json:"tenure_type"`
	ParentUPIN        string    `json:"parent_upin,omitempty"`
	Status            string    `json:"status"`
	IsDeleted         bool      `json:"is_deleted"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Owner is a natural or legal person holding rights on parcels
type Owner struct {
	ID                string    `json:"id"`
	FullName          string    `json:"full_name"`
	NationalID        string    `json:"national_id,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	TIN               string    `json:"tin,omitempty"`
	Address           string    `json:"address,omitempty"`
	SubJurisdictionID string    `json:"sub_jurisdiction_id,omitempty"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ParcelOwner links an owner to a parcel. A link with RetiredAt set is history.
type ParcelOwner struct {
	ID         int64      `json:"id"`
	UPIN       string     `json:"upin"`
	OwnerID    string     `json:"owner_id"`
	AcquiredAt time.Time  `json:"acquired_at"`
	RetiredAt  *time.Time `json:"retired_at,omitempty"`
	SourceRef  string     `json:"source_ref,omitempty"`
}

// Lease holds the financial terms of a leasehold parcel
type Lease struct {
	ID                string           `json:"id"`
	UPIN              string           `json:"upin"`
	TotalLeaseAmount  decimal.Decimal  `json:"total_lease_amount"`
	DownPayment       decimal.Decimal  `json:"down_payment_amount"`
	AnnualInstallment *decimal.Decimal `json:"annual_installment,omitempty"`
	PricePerM2        decimal.Decimal  `json:"price_per_m2"`
	PaymentTermYears  int              `json:"payment_term_years"`
	LeasePeriodYears  int              `json:"lease_period_years"`
	StartDate         *time.Time       `json:"start_date,omitempty"`
	ExpiryDate        *time.Time       `json:"expiry_date,omitempty"`
	CreatedBy         string           `json:"created_by"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// ApplyTerms copies amendable terms onto the lease and refreshes the expiry date
func (l *Lease) ApplyTerms(t LeaseTerms) {
	l.TotalLeaseAmount = t.TotalLeaseAmount
	l.DownPayment = t.DownPayment
	l.AnnualInstallment = t.AnnualInstallment
	l.PaymentTermYears = t.PaymentTermYears
	l.LeasePeriodYears = t.LeasePeriodYears
	if !t.PricePerM2.IsZero() {
		l.PricePerM2 = t.PricePerM2
	}
	l.StartDate = t.StartDate
	l.RefreshExpiry()
}

// RefreshExpiry derives ExpiryDate from StartDate and the lease period,
// falling back to the payment term when no period is set.
func (l *Lease) RefreshExpiry() {
	if l.StartDate == nil {
		l.ExpiryDate = nil
		return
	}
	years := l.LeasePeriodYears
	if years <= 0 {
		years = l.PaymentTermYears
	}
	expiry := l.StartDate.AddDate(years, 0, 0)
	l.ExpiryDate = &expiry
}

// LeaseTerms is the amendable part of a lease
type LeaseTerms struct {
	TotalLeaseAmount  decimal.Decimal  `json:"total_lease_amount"`
	DownPayment       decimal.Decimal  `json:"down_payment_amount"`
	AnnualInstallment *decimal.Decimal `json:"annual_installment,omitempty"`
	PricePerM2        decimal.Decimal  `json:"price_per_m2"`
	PaymentTermYears  int              `json:"payment_term_years"`
	LeasePeriodYears  int              `json:"lease_period_years"`
	StartDate         *time.Time       `json:"start_date,omitempty"`
}

// Validate checks the preconditions an amortization schedule needs,
// naming the first violated field.
func (t LeaseTerms) Validate(op string) error {
	if !t.TotalLeaseAmount.IsPositive() {
		return apperr.Validation(op, "total_lease_amount must be greater than zero")
	}
	if t.DownPayment.IsNegative() || t.DownPayment.GreaterThanOrEqual(t.TotalLeaseAmount) {
		return apperr.Validation(op, "down_payment_amount must be at least zero and less than total_lease_amount")
	}
	if t.PaymentTermYears <= 0 {
		return apperr.Validation(op, "payment_term_years must be greater than zero")
	}
	if t.StartDate == nil || t.StartDate.IsZero() {
		return apperr.Validation(op, "start_date is required")
	}
	if t.AnnualInstallment != nil && !t.AnnualInstallment.IsPositive() {
		return apperr.Validation(op, "annual_installment must be greater than zero when given")
	}
	if t.LeasePeriodYears < 0 {
		return apperr.Validation(op, "lease_period_years must not be negative")
	}
	return nil
}

// Terms returns the amendable part of the lease
func (l *Lease) Terms() LeaseTerms {
	return LeaseTerms{
		TotalLeaseAmount:  l.TotalLeaseAmount,
		DownPayment:       l.DownPayment,
		AnnualInstallment: l.AnnualInstallment,
		PricePerM2:        l.PricePerM2,
		PaymentTermYears:  l.PaymentTermYears,
		LeasePeriodYears:  l.LeasePeriodYears,
		StartDate:         l.StartDate,
	}
}

// Encumbrance status values
const (
	EncumbranceActive = "ACTIVE"
)

// Encumbrance is a restriction (mortgage, court order, ...) registered on a parcel
type Encumbrance struct {
	ID               string     `json:"id"`
	UPIN             string     `json:"upin"`
	Type             string     `json:"type"`
	IssuingEntity    string     `json:"issuing_entity"`
	ReferenceNumber  string     `json:"reference_number,omitempty"`
	Description      string     `json:"description,omitempty"`
	Status           string     `json:"status"`
	RegistrationDate *time.Time `json:"registration_date,omitempty"`
	CreatedBy        string     `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
}
