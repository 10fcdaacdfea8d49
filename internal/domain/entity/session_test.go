package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsLeaseTenure(t *testing.T) {
	assert.True(t, IsLeaseTenure("LEASE"))
	assert.True(t, IsLeaseTenure("lease"))
	assert.True(t, IsLeaseTenure(" Lease "))
	assert.False(t, IsLeaseTenure("Residential"))
	assert.False(t, IsLeaseTenure(""))
}

func TestWizardSession_OwnerHelpers(t *testing.T) {
	s := &WizardSession{}
	assert.False(t, s.HasNewOwner())
	assert.False(t, s.HasExistingOwner())

	s.Owner = &OwnerStep{Owners: []OwnerDraft{{OwnerID: "o-1"}}}
	assert.False(t, s.HasNewOwner())
	assert.True(t, s.HasExistingOwner())

	s.Owner.Owners = append(s.Owner.Owners, OwnerDraft{FullName: "New Person"})
	assert.True(t, s.HasNewOwner())
}

func TestWizardSession_IsEditable(t *testing.T) {
	for status, want := range map[SessionStatus]bool{
		SessionDraft:           true,
		SessionRejected:        true,
		SessionPendingApproval: false,
		SessionApproved:        false,
		SessionFailed:          false,
		SessionMerged:          false,
	} {
		s := &WizardSession{Status: status}
		assert.Equal(t, want, s.IsEditable(), "status %s", status)
	}
}

func TestWizardSession_DocumentSlots(t *testing.T) {
	s := &WizardSession{}
	s.SetDocuments(StepOwnerDocs, []DocumentRef{{FileName: "id.pdf"}})
	s.SetDocuments(StepLeaseDocs, []DocumentRef{{FileName: "lease.pdf"}})

	assert.Len(t, s.Documents(StepOwnerDocs), 1)
	assert.Empty(t, s.Documents(StepParcelDocs))
	assert.Len(t, s.AllDocuments(), 2)
	assert.Nil(t, s.Documents(StepParcel))
}

func TestLease_RefreshExpiry(t *testing.T) {
	start := time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC)
	l := &Lease{}
	l.ApplyTerms(LeaseTerms{
		TotalLeaseAmount: decimal.NewFromInt(1000),
		PaymentTermYears: 5,
		StartDate:        &start,
	})
	assert.Equal(t, time.Date(2029, 7, 8, 0, 0, 0, 0, time.UTC), *l.ExpiryDate)

	l.LeasePeriodYears = 99
	l.RefreshExpiry()
	assert.Equal(t, 2123, l.ExpiryDate.Year())
}

func TestLeaseTerms_ValidateNamesField(t *testing.T) {
	start := time.Now()
	valid := LeaseTerms{
		TotalLeaseAmount: decimal.NewFromInt(120000),
		DownPayment:      decimal.NewFromInt(20000),
		PaymentTermYears: 5,
		StartDate:        &start,
	}
	assert.NoError(t, valid.Validate("test"))

	tests := map[string]func(*LeaseTerms){
		"total_lease_amount":  func(t *LeaseTerms) { t.TotalLeaseAmount = decimal.Zero },
		"down_payment_amount": func(t *LeaseTerms) { t.DownPayment = t.TotalLeaseAmount },
		"payment_term_years":  func(t *LeaseTerms) { t.PaymentTermYears = 0 },
		"start_date":          func(t *LeaseTerms) { t.StartDate = nil },
	}
	for field, mutate := range tests {
		terms := valid
		mutate(&terms)
		err := terms.Validate("test")
		if assert.Error(t, err, field) {
			assert.Contains(t, err.Error(), field)
		}
	}
}

func TestSanitizeFileName_SpacesAndDirectories(t *testing.T) {
	assert.Equal(t, "my_deed.pdf", SanitizeFileName("my deed.pdf"))
	assert.Equal(t, "id.pdf", SanitizeFileName(`C:\uploads\id.pdf`))
	assert.Equal(t, "passwd", SanitizeFileName("../../etc/passwd"))
}

func TestWizardSession_OwnerDocumentIndex(t *testing.T) {
	s := &WizardSession{
		Parcel:     &ParcelDraft{UPIN: "P-1", TenureType: "FREEHOLD"},
		ParcelDocs: []DocumentRef{{FileName: "deed.pdf"}},
		Owner:      &OwnerStep{Owners: []OwnerDraft{{FullName: "A"}, {FullName: "B"}}},
		OwnerDocs: []DocumentRef{
			{FileName: "a.pdf", OwnerIndex: 0},
			{FileName: "b.pdf", OwnerIndex: 1},
		},
	}
	assert.Empty(t, s.MissingRequirements())
	assert.Len(t, s.OwnerDocuments(1), 1)
	assert.Equal(t, "b.pdf", s.OwnerDocuments(1)[0].FileName)

	// a document filed against an owner that was removed from the owner step
	s.Owner.Owners = s.Owner.Owners[:1]
	assert.Equal(t, []string{ReqOwnerDocuments}, s.MissingRequirements())
}
