package wizard_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/landrecords/internal/application/billing"
	"github.com/garyjia/landrecords/internal/application/dispatcher"
	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/application/wizard"
	"github.com/garyjia/landrecords/internal/application/workflow"
	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
	"github.com/garyjia/landrecords/internal/infrastructure/persistence/repository"
	"github.com/garyjia/landrecords/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// memDocuments is an in-memory DocumentLifecycle
type memDocuments struct {
	mu         sync.Mutex
	files      map[string][]byte
	cleaned    []string
	cleanupErr error
}

func newMemDocuments() *memDocuments {
	return &memDocuments{files: make(map[string][]byte)}
}

func tempKey(sessionID string, step entity.WizardStep, fileName string) string {
	return fmt.Sprintf("temp/%s/%s/%s", sessionID, step, fileName)
}

func (m *memDocuments) StoreTemporary(_ context.Context, file port.TemporaryFile, sessionID string, step entity.WizardStep, docType string) (*entity.DocumentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := entity.SanitizeFileName(file.FileName)
	key := tempKey(sessionID, step, name)
	m.files[key] = file.Content
	return &entity.DocumentRef{
		FileName:     name,
		OriginalName: file.FileName,
		DocType:      docType,
		Step:         step,
		Path:         key,
		Size:         int64(len(file.Content)),
		UploadedAt:   time.Now(),
	}, nil
}

func (m *memDocuments) PromoteToPermanent(_ context.Context, sessionID string, step entity.WizardStep, fileName string, entityType entity.EntityType, entityID string) (string, error) {
	return fmt.Sprintf("permanent/%s/%s/%s/%s", entityType, entityID, sessionID, fileName), nil
}

func (m *memDocuments) DeleteTemporary(_ context.Context, sessionID string, step entity.WizardStep, fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, tempKey(sessionID, step, fileName))
	return nil
}

func (m *memDocuments) CleanupSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cleanupErr != nil {
		return m.cleanupErr
	}
	prefix := "temp/" + sessionID + "/"
	for k := range m.files {
		if strings.HasPrefix(k, prefix) {
			delete(m.files, k)
		}
	}
	m.cleaned = append(m.cleaned, sessionID)
	return nil
}

func (m *memDocuments) has(sessionID string, step entity.WizardStep, fileName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[tempKey(sessionID, step, fileName)]
	return ok
}

func (m *memDocuments) content(sessionID string, step entity.WizardStep, fileName string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.files[tempKey(sessionID, step, fileName)])
}

// hookedSessions runs onRead once, after the first GetByID returns. onRead
// may call back into the repository.
type hookedSessions struct {
	port.WizardSessionRepository
	fired  atomic.Bool
	onRead func()
}

func (h *hookedSessions) GetByID(ctx context.Context, id string) (*entity.WizardSession, error) {
	s, err := h.WizardSessionRepository.GetByID(ctx, id)
	if h.onRead != nil && h.fired.CompareAndSwap(false, true) {
		h.onRead()
	}
	return s, err
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	repos    dispatcher.Repositories
	requests port.ApprovalRequestRepository
	docs     *memDocuments
	clock    *clock
	o        wizard.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test wrap the session repository the orchestrator sees
func newFixtureWith(t *testing.T, wrap func(port.WizardSessionRepository) port.WizardSessionRepository) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	logger := zap.NewNop()

	repos := dispatcher.Repositories{
		Parcels:      repository.NewParcelRepository(db.DB, logger),
		Owners:       repository.NewOwnerRepository(db.DB, logger),
		Leases:       repository.NewLeaseRepository(db.DB, logger),
		Encumbrances: repository.NewEncumbranceRepository(db.DB, logger),
		Sessions:     repository.NewWizardSessionRepository(db.DB, logger),
		Promotions:   repository.NewPromotionRepository(db.DB, logger),
	}
	bills := billing.NewGenerator(repository.NewBillingRepository(db.DB, logger), db, nopLogger{})
	d := dispatcher.NewDispatcher(repos, bills, db)
	requests := repository.NewApprovalRequestRepository(db.DB, logger)
	engine := workflow.NewEngine(requests, repository.NewApprovalLogRepository(db.DB, logger), repos.Sessions, db, d, nil)

	f := &fixture{
		repos:    repos,
		requests: requests,
		docs:     newMemDocuments(),
		clock:    &clock{t: time.Now().UTC().Truncate(time.Second)},
	}
	sessions := repos.Sessions
	if wrap != nil {
		sessions = wrap(sessions)
	}
	f.o = wizard.NewOrchestrator(sessions, engine, f.docs, db, nil,
		wizard.WithLogger(nopLogger{}),
		wizard.WithSessionTTL(time.Hour),
		wizard.WithClock(f.clock.now),
	)
	return f
}

var (
	maker = entity.Actor{ID: "maker-1", Role: entity.RoleSubCityNormal, SubJurisdictionID: "SC-01"}
	admin = entity.Actor{ID: "admin-1", Role: entity.RoleSubCityAdmin, SubJurisdictionID: "SC-01"}
)

func parcelDraft(upin, tenure string) entity.ParcelDraft {
	return entity.ParcelDraft{UPIN: upin, FileNumber: "FN-" + upin, TotalAreaM2: 320, TenureType: tenure}
}

func newOwnerStep() entity.OwnerStep {
	return entity.OwnerStep{Owners: []entity.OwnerDraft{{FullName: "Meron Alemu", NationalID: "ET-77"}}}
}

func file(name string) port.TemporaryFile {
	return port.TemporaryFile{FileName: name, Content: []byte("%PDF-1.4 " + name)}
}

// completeSession fills a freehold session with one new owner and its documents
func (f *fixture) completeSession(t *testing.T, actor entity.Actor, upin string) *entity.WizardSession {
	t.Helper()
	ctx := context.Background()
	s, err := f.o.StartSession(ctx, actor)
	require.NoError(t, err)
	_, err = f.o.SaveStep(ctx, s.ID, parcelDraft(upin, "FREEHOLD"))
	require.NoError(t, err)
	_, err = f.o.AttachDocument(ctx, s.ID, entity.StepParcelDocs, "TITLE_DEED", file("deed.pdf"))
	require.NoError(t, err)
	_, err = f.o.SaveStep(ctx, s.ID, newOwnerStep())
	require.NoError(t, err)
	_, err = f.o.AttachDocument(ctx, s.ID, entity.StepOwnerDocs, "NATIONAL_ID", file("id.pdf"))
	require.NoError(t, err)
	return s
}

// completeSessionDirect stores a complete freehold session through the
// repository, bypassing the orchestrator
func (f *fixture) completeSessionDirect(t *testing.T, actor entity.Actor, upin string) *entity.WizardSession {
	t.Helper()
	ctx := context.Background()
	now := f.clock.now()
	parcel := parcelDraft(upin, "FREEHOLD")
	owners := newOwnerStep()
	s := &entity.WizardSession{
		ID:                "session-" + upin,
		UserID:            actor.ID,
		UserRole:          actor.Role,
		SubJurisdictionID: actor.SubJurisdictionID,
		Status:            entity.SessionDraft,
		CurrentStep:       entity.StepOwnerDocs,
		Parcel:            &parcel,
		Owner:             &owners,
		ExpiresAt:         now.Add(time.Hour),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for step, name := range map[entity.WizardStep]string{entity.StepParcelDocs: "deed.pdf", entity.StepOwnerDocs: "id.pdf"} {
		ref, err := f.docs.StoreTemporary(ctx, file(name), s.ID, step, "DOC")
		require.NoError(t, err)
		s.SetDocuments(step, []entity.DocumentRef{*ref})
	}
	require.NoError(t, f.repos.Sessions.Create(ctx, s))
	return s
}

func TestStartSession_ReusesEditableSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1, err := f.o.StartSession(ctx, maker)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionDraft, s1.Status)
	assert.Equal(t, entity.StepParcel, s1.CurrentStep)
	assert.Equal(t, "SC-01", s1.SubJurisdictionID)
	assert.WithinDuration(t, f.clock.now().Add(time.Hour), s1.ExpiresAt, time.Second)

	s2, err := f.o.StartSession(ctx, maker)
	require.NoError(t, err)
	assert.Equal(t, s1.ID, s2.ID)

	other, err := f.o.StartSession(ctx, entity.Actor{ID: "maker-2", Role: entity.RoleSubCityNormal})
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID, other.ID)

	_, err = f.o.StartSession(ctx, entity.Actor{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSaveStep_StoresSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.o.StartSession(ctx, maker)
	require.NoError(t, err)

	_, err = f.o.SaveStep(ctx, s.ID, &entity.ParcelDraft{UPIN: " P-100 ", FileNumber: "FN", TotalAreaM2: 150, TenureType: "Lease"})
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	saved, err := f.o.SaveStep(ctx, s.ID, entity.LeaseDraft{LeaseTerms: entity.LeaseTerms{
		TotalLeaseAmount: decimal.NewFromInt(90000),
		DownPayment:      decimal.NewFromInt(10000),
		PaymentTermYears: 4,
		StartDate:        &start,
	}})
	require.NoError(t, err)
	assert.Equal(t, entity.StepLease, saved.CurrentStep)

	got, err := f.o.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Parcel)
	assert.Equal(t, "P-100", got.Parcel.UPIN)
	require.NotNil(t, got.Lease)
	assert.True(t, got.Lease.TotalLeaseAmount.Equal(decimal.NewFromInt(90000)))

	_, err = f.o.GetSession(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSaveStep_RejectsInvalidData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.o.StartSession(ctx, maker)
	require.NoError(t, err)

	tests := []struct {
		name string
		data entity.StepData
	}{
		{"nil", nil},
		{"nil pointer", (*entity.ParcelDraft)(nil)},
		{"parcel without upin", entity.ParcelDraft{FileNumber: "FN", TotalAreaM2: 1, TenureType: "LEASE"}},
		{"placeholder upin", parcelDraft("NEW-1", "LEASE")},
		{"parcel without area", entity.ParcelDraft{UPIN: "P", FileNumber: "FN", TenureType: "LEASE"}},
		{"no owners", entity.OwnerStep{}},
		{"anonymous owner", entity.OwnerStep{Owners: []entity.OwnerDraft{{Phone: "0911"}}}},
		{"lease without start", entity.LeaseDraft{LeaseTerms: entity.LeaseTerms{TotalLeaseAmount: decimal.NewFromInt(1), PaymentTermYears: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.o.SaveStep(ctx, s.ID, tt.data)
			assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
		})
	}
}

func TestSaveStep_StatusGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.o.StartSession(ctx, maker)
	require.NoError(t, err)

	require.NoError(t, f.repos.Sessions.UpdateStatus(ctx, s.ID, entity.SessionApproved))
	_, err = f.o.SaveStep(ctx, s.ID, parcelDraft("P-1", "FREEHOLD"))
	assert.True(t, errors.Is(err, apperr.ErrInvalidState), "got %v", err)

	for _, status := range []entity.SessionStatus{entity.SessionPendingApproval, entity.SessionMerged, entity.SessionFailed} {
		require.NoError(t, f.repos.Sessions.UpdateStatus(ctx, s.ID, status))
		_, err = f.o.SaveStep(ctx, s.ID, parcelDraft("P-1", "FREEHOLD"))
		assert.True(t, errors.Is(err, apperr.ErrInvalidState), "%s: got %v", status, err)
	}

	require.NoError(t, f.repos.Sessions.UpdateStatus(ctx, s.ID, entity.SessionRejected))
	f.clock.advance(30 * time.Minute)
	saved, err := f.o.SaveStep(ctx, s.ID, parcelDraft("P-1", "FREEHOLD"))
	require.NoError(t, err)
	assert.Equal(t, entity.SessionDraft, saved.Status)
	reopened := f.clock.now()
	assert.WithinDuration(t, reopened.Add(time.Hour), saved.ExpiresAt, time.Second, "reopening a rejected session starts a new window")

	f.clock.advance(20 * time.Minute)
	saved, err = f.o.SaveStep(ctx, s.ID, newOwnerStep())
	require.NoError(t, err)
	assert.WithinDuration(t, reopened.Add(time.Hour), saved.ExpiresAt, time.Second, "draft edits keep the expiry")
}

func TestSaveStep_KeepsCreationExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.o.StartSession(ctx, maker)
	require.NoError(t, err)
	created := s.ExpiresAt

	f.clock.advance(50 * time.Minute)
	saved, err := f.o.SaveStep(ctx, s.ID, parcelDraft("P-1", "FREEHOLD"))
	require.NoError(t, err)
	assert.WithinDuration(t, created, saved.ExpiresAt, time.Second)

	_, err = f.o.AttachDocument(ctx, s.ID, entity.StepParcelDocs, "DEED", file("deed.pdf"))
	require.NoError(t, err)
	got, err := f.o.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, created, got.ExpiresAt, time.Second)

	f.clock.advance(20 * time.Minute)
	n, err := f.o.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "an edited draft still expires an hour after creation")

	_, err = f.o.GetSession(ctx, s.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)
}

func TestMissing(t *testing.T) {
	existingOwner := &entity.OwnerStep{Owners: []entity.OwnerDraft{{OwnerID: "owner-1"}}}
	newOwner := &entity.OwnerStep{Owners: []entity.OwnerDraft{{FullName: "New Owner"}}}
	doc := []entity.DocumentRef{{FileName: "a.pdf"}}
	residential := parcelDraft("P-1", "Residential")
	lease := parcelDraft("P-1", "lease")

	tests := []struct {
		name    string
		session entity.WizardSession
		want    []string
	}{
		{
			name:    "existing owner skips owner documents and lease steps",
			session: entity.WizardSession{Parcel: &residential, Owner: existingOwner},
			want:    []string{wizard.ReqParcelDocuments},
		},
		{
			name:    "empty session",
			session: entity.WizardSession{},
			want:    []string{wizard.ReqParcelInformation, wizard.ReqParcelDocuments, wizard.ReqOwnerInformation, wizard.ReqOwnerDocuments},
		},
		{
			name:    "new owner needs documents",
			session: entity.WizardSession{Parcel: &residential, ParcelDocs: doc, Owner: newOwner},
			want:    []string{wizard.ReqOwnerDocuments},
		},
		{
			name:    "lease tenure requires lease steps",
			session: entity.WizardSession{Parcel: &lease, ParcelDocs: doc, Owner: existingOwner},
			want:    []string{wizard.ReqLeaseInformation, wizard.ReqLeaseDocuments},
		},
		{
			name:    "complete lease session",
			session: entity.WizardSession{Parcel: &lease, ParcelDocs: doc, Owner: newOwner, OwnerDocs: doc, Lease: &entity.LeaseDraft{}, LeaseDocs: doc},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wizard.Missing(&tt.session))
		})
	}
}

func TestValidateSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.o.StartSession(ctx, maker)
	require.NoError(t, err)
	_, err = f.o.SaveStep(ctx, s.ID, parcelDraft("P-7", "Residential"))
	require.NoError(t, err)
	_, err = f.o.SaveStep(ctx, s.ID, entity.OwnerStep{Owners: []entity.OwnerDraft{{OwnerID: "owner-9"}}})
	require.NoError(t, err)

	missing, err := f.o.ValidateSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Parcel Documents"}, missing)
}

func TestAttachAndRemoveDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.o.StartSession(ctx, maker)
	require.NoError(t, err)

	_, err = f.o.AttachDocument(ctx, s.ID, entity.StepParcel, "DEED", file("deed.pdf"))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = f.o.AttachDocument(ctx, s.ID, entity.StepParcelDocs, "DEED", port.TemporaryFile{FileName: "empty.pdf"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	ref, err := f.o.AttachDocument(ctx, s.ID, entity.StepParcelDocs, "DEED", file("deed.pdf"))
	require.NoError(t, err)
	assert.Equal(t, entity.StepParcelDocs, ref.Step)
	assert.True(t, f.docs.has(s.ID, entity.StepParcelDocs, "deed.pdf"))

	// same name replaces the earlier reference
	_, err = f.o.AttachDocument(ctx, s.ID, entity.StepParcelDocs, "SURVEY", file("deed.pdf"))
	require.NoError(t, err)
	_, err = f.o.AttachDocument(ctx, s.ID, entity.StepParcelDocs, "SITE_PLAN", file("plan.pdf"))
	require.NoError(t, err)

	got, err := f.o.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, got.ParcelDocs, 2)
	assert.Equal(t, "SURVEY", got.ParcelDocs[0].DocType)
	assert.Equal(t, entity.StepParcelDocs, got.CurrentStep)

	require.NoError(t, f.o.RemoveDocument(ctx, s.ID, entity.StepParcelDocs, "deed.pdf"))
	assert.False(t, f.docs.has(s.ID, entity.StepParcelDocs, "deed.pdf"))

	err = f.o.RemoveDocument(ctx, s.ID, entity.StepParcelDocs, "deed.pdf")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	got, err = f.o.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, got.ParcelDocs, 1)
	assert.Equal(t, "plan.pdf", got.ParcelDocs[0].FileName)

	require.NoError(t, f.repos.Sessions.UpdateStatus(ctx, s.ID, entity.SessionPendingApproval))
	err = f.o.RemoveDocument(ctx, s.ID, entity.StepParcelDocs, "plan.pdf")
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	_, err = f.o.AttachDocument(ctx, s.ID, entity.StepParcelDocs, "DEED", file("late.pdf"))
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	assert.False(t, f.docs.has(s.ID, entity.StepParcelDocs, "late.pdf"))
}

func TestAttachDocument_NormalizesNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.o.StartSession(ctx, maker)
	require.NoError(t, err)

	ref, err := f.o.AttachDocument(ctx, s.ID, entity.StepParcelDocs, "DEED", file("my deed.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "my_deed.pdf", ref.FileName)
	assert.Equal(t, "my deed.pdf", ref.OriginalName)

	// a different upload that sanitizes to the same name is refused
	_, err = f.o.AttachDocument(ctx, s.ID, entity.StepParcelDocs, "DEED", port.TemporaryFile{FileName: "my_deed.pdf", Content: []byte("other")})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
	assert.Equal(t, "%PDF-1.4 my deed.pdf", f.docs.content(s.ID, entity.StepParcelDocs, "my_deed.pdf"), "the first upload is not overwritten")

	_, err = f.o.AttachDocument(ctx, s.ID, entity.StepParcelDocs, "DEED", file("   "))
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)

	require.NoError(t, f.o.RemoveDocument(ctx, s.ID, entity.StepParcelDocs, "my deed.pdf"))
	assert.False(t, f.docs.has(s.ID, entity.StepParcelDocs, "my_deed.pdf"))

	got, err := f.o.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ParcelDocs)
}

func TestAttachDocument_OwnerIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.o.StartSession(ctx, maker)
	require.NoError(t, err)
	_, err = f.o.SaveStep(ctx, s.ID, entity.OwnerStep{Owners: []entity.OwnerDraft{{FullName: "Abebe"}, {FullName: "Tigist"}}})
	require.NoError(t, err)

	first := file("abebe-id.pdf")
	second := file("tigist-id.pdf")
	second.OwnerIndex = 1
	_, err = f.o.AttachDocument(ctx, s.ID, entity.StepOwnerDocs, "NATIONAL_ID", first)
	require.NoError(t, err)
	ref, err := f.o.AttachDocument(ctx, s.ID, entity.StepOwnerDocs, "NATIONAL_ID", second)
	require.NoError(t, err)
	assert.Equal(t, 1, ref.OwnerIndex)

	third := file("other.pdf")
	third.OwnerIndex = 2
	_, err = f.o.AttachDocument(ctx, s.ID, entity.StepOwnerDocs, "NATIONAL_ID", third)
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)

	// the same name for another owner would share one stored file
	clash := file("abebe-id.pdf")
	clash.OwnerIndex = 1
	_, err = f.o.AttachDocument(ctx, s.ID, entity.StepOwnerDocs, "NATIONAL_ID", clash)
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)

	got, err := f.o.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, got.OwnerDocs, 2)
	assert.Len(t, got.OwnerDocuments(0), 1)
	assert.Len(t, got.OwnerDocuments(1), 1)
}

func TestSubmitForApproval_Incomplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.o.StartSession(ctx, maker)
	require.NoError(t, err)
	_, err = f.o.SaveStep(ctx, s.ID, parcelDraft("P-2", "LEASE"))
	require.NoError(t, err)

	_, err = f.o.SubmitForApproval(ctx, s.ID, maker)
	require.Error(t, err)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, []string{
		wizard.ReqParcelDocuments,
		wizard.ReqOwnerInformation,
		wizard.ReqOwnerDocuments,
		wizard.ReqLeaseInformation,
		wizard.ReqLeaseDocuments,
	}, appErr.Details)

	got, err := f.o.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionDraft, got.Status)
}

func TestSubmitForApproval_CreatesPendingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.completeSession(t, maker, "P-3")

	res, err := f.o.SubmitForApproval(ctx, s.ID, maker)
	require.NoError(t, err)
	assert.False(t, res.Executed)
	require.NotNil(t, res.Request)
	assert.Equal(t, entity.SessionPendingApproval, res.Session.Status)
	assert.Equal(t, res.Request.ID, res.Session.ApprovalRequestID)
	assert.NotNil(t, res.Session.SubmittedAt)

	req, err := f.requests.GetByID(ctx, res.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EntityWizardSession, req.EntityType)
	assert.Equal(t, s.ID, req.EntityID)
	assert.Equal(t, entity.RoleSubCityAdmin, req.ApproverRole)

	parcel, err := f.repos.Parcels.GetByUPIN(ctx, "P-3")
	require.NoError(t, err)
	assert.Nil(t, parcel, "nothing executes before approval")

	_, err = f.o.SubmitForApproval(ctx, s.ID, maker)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState), "got %v", err)
	_, err = f.o.SaveStep(ctx, s.ID, parcelDraft("P-3", "FREEHOLD"))
	assert.True(t, errors.Is(err, apperr.ErrInvalidState), "got %v", err)
}

func TestSubmitForApproval_SelfApproverExecutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.completeSession(t, admin, "P-4")

	res, err := f.o.SubmitForApproval(ctx, s.ID, admin)
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.Nil(t, res.Request)
	assert.Equal(t, entity.SessionApproved, res.Session.Status)
	assert.NotNil(t, res.Session.SubmittedAt)
	assert.Equal(t, "P-4", res.Result.EntityID)

	parcel, err := f.repos.Parcels.GetByUPIN(ctx, "P-4")
	require.NoError(t, err)
	require.NotNil(t, parcel)
	assert.Equal(t, "admin-1", parcel.CreatedBy)

	pending, err := f.requests.ListPending(ctx, port.PendingFilter{})
	require.NoError(t, err)
	assert.Empty(t, pending)

	promos, err := f.repos.Promotions.ListPendingBySession(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, promos, 2)
}

func TestSubmitForApproval_ConcurrentEditIsSerialized(t *testing.T) {
	var f *fixture
	var sessionID string
	editErr := make(chan error, 1)
	f = newFixtureWith(t, func(repo port.WizardSessionRepository) port.WizardSessionRepository {
		return &hookedSessions{WizardSessionRepository: repo, onRead: func() {
			go func() {
				_, err := f.o.SaveStep(context.Background(), sessionID, parcelDraft("P-20", "LEASE"))
				editErr <- err
			}()
		}}
	})
	ctx := context.Background()

	// build the session on the plain repository so the hook fires inside submit
	s := f.completeSessionDirect(t, maker, "P-20")
	sessionID = s.ID

	res, err := f.o.SubmitForApproval(ctx, s.ID, maker)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionPendingApproval, res.Session.Status)

	err = <-editErr
	assert.True(t, errors.Is(err, apperr.ErrInvalidState), "the edit runs after the submit and is refused, got %v", err)

	got, err := f.repos.Sessions.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionPendingApproval, got.Status)
	assert.Empty(t, wizard.Missing(got), "a pending session is complete")
}

func TestSubmitForApproval_SelfApproverRechecksAfterEdit(t *testing.T) {
	var f *fixture
	var sessionID string
	f = newFixtureWith(t, func(repo port.WizardSessionRepository) port.WizardSessionRepository {
		return &hookedSessions{WizardSessionRepository: repo, onRead: func() {
			_, err := f.o.SaveStep(context.Background(), sessionID, parcelDraft("P-21", "LEASE"))
			require.NoError(t, err)
		}}
	})
	ctx := context.Background()

	s := f.completeSessionDirect(t, admin, "P-21")
	sessionID = s.ID

	_, err := f.o.SubmitForApproval(ctx, s.ID, admin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
	assert.False(t, errors.Is(err, apperr.ErrExecutionFailed))

	got, err := f.repos.Sessions.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionDraft, got.Status, "the session stays editable")
	assert.Equal(t, []string{wizard.ReqLeaseInformation, wizard.ReqLeaseDocuments}, wizard.Missing(got))

	parcel, err := f.repos.Parcels.GetByUPIN(ctx, "P-21")
	require.NoError(t, err)
	assert.Nil(t, parcel)
}

func TestSubmitForApproval_OtherUserForbidden(t *testing.T) {
	f := newFixture(t)
	s := f.completeSession(t, maker, "P-5")

	_, err := f.o.SubmitForApproval(context.Background(), s.ID, entity.Actor{ID: "intruder", Role: entity.RoleSubCityNormal})
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.completeSession(t, maker, "P-6")
	submitted := f.completeSession(t, entity.Actor{ID: "maker-2", Role: entity.RoleSubCityNormal, SubJurisdictionID: "SC-01"}, "P-8")
	_, err := f.o.SubmitForApproval(ctx, submitted.ID, entity.Actor{ID: "maker-2", Role: entity.RoleSubCityNormal})
	require.NoError(t, err)

	f.clock.advance(2 * time.Hour)
	fresh, err := f.o.StartSession(ctx, entity.Actor{ID: "maker-3", Role: entity.RoleSubCityNormal})
	require.NoError(t, err)

	n, err := f.o.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{stale.ID}, f.docs.cleaned)
	assert.False(t, f.docs.has(stale.ID, entity.StepParcelDocs, "deed.pdf"))

	_, err = f.o.GetSession(ctx, stale.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	for _, id := range []string{submitted.ID, fresh.ID} {
		_, err = f.o.GetSession(ctx, id)
		assert.NoError(t, err)
	}

	n, err = f.o.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepExpired_CleanupFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.o.StartSession(ctx, maker)
	require.NoError(t, err)
	f.docs.cleanupErr = errors.New("storage offline")
	f.clock.advance(2 * time.Hour)

	n, err := f.o.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := f.o.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionDraft, got.Status)

	f.docs.cleanupErr = nil
	n, err = f.o.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
