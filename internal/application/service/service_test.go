package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/entity"
)

type mockLogger struct {
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  { m.infos = append(m.infos, msg) }
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) { m.errors = append(m.errors, msg) }

type mockAuditSink struct {
	recordFunc func(ctx context.Context, entry *entity.AuditEntry) error
	recorded   []*entity.AuditEntry
}

func (m *mockAuditSink) Record(ctx context.Context, entry *entity.AuditEntry) error {
	if m.recordFunc != nil {
		return m.recordFunc(ctx, entry)
	}
	m.recorded = append(m.recorded, entry)
	return nil
}

type mockPromotionRepo struct {
	rows        map[int64]*entity.PendingPromotion
	markDoneErr error
}

func newMockPromotionRepo(rows ...*entity.PendingPromotion) *mockPromotionRepo {
	m := &mockPromotionRepo{rows: make(map[int64]*entity.PendingPromotion)}
	for _, r := range rows {
		if r.Status == "" {
			r.Status = entity.PromotionPending
		}
		m.rows[r.ID] = r
	}
	return m
}

func (m *mockPromotionRepo) Create(ctx context.Context, p *entity.PendingPromotion) error {
	m.rows[p.ID] = p
	return nil
}

func (m *mockPromotionRepo) ListPendingBySession(ctx context.Context, sessionID string) ([]*entity.PendingPromotion, error) {
	var out []*entity.PendingPromotion
	for id := int64(1); id <= int64(len(m.rows)); id++ {
		if r, ok := m.rows[id]; ok && r.SessionID == sessionID && r.Status == entity.PromotionPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockPromotionRepo) ListPending(ctx context.Context, limit int) ([]*entity.PendingPromotion, error) {
	var out []*entity.PendingPromotion
	for id := int64(1); id <= int64(len(m.rows)) && len(out) < limit; id++ {
		if r, ok := m.rows[id]; ok && r.Status == entity.PromotionPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockPromotionRepo) MarkDone(ctx context.Context, id int64, permanentPath string) error {
	if m.markDoneErr != nil {
		return m.markDoneErr
	}
	r := m.rows[id]
	r.Status = entity.PromotionDone
	r.PermanentPath = permanentPath
	r.Attempts++
	return nil
}

func (m *mockPromotionRepo) MarkAttemptFailed(ctx context.Context, id int64, lastErr string, maxAttempts int) error {
	r := m.rows[id]
	r.Attempts++
	r.LastError = lastErr
	if r.Attempts >= maxAttempts {
		r.Status = entity.PromotionFailed
	}
	return nil
}

func (m *mockPromotionRepo) CountOutstandingBySession(ctx context.Context, sessionID string) (int, error) {
	n := 0
	for _, r := range m.rows {
		if r.SessionID == sessionID && r.Status != entity.PromotionDone {
			n++
		}
	}
	return n, nil
}

type mockDocuments struct {
	promoteFunc func(sessionID, fileName string) error
	cleaned     []string
}

func (m *mockDocuments) StoreTemporary(ctx context.Context, file port.TemporaryFile, sessionID string, step entity.WizardStep, docType string) (*entity.DocumentRef, error) {
	return nil, errors.New("not used")
}

func (m *mockDocuments) PromoteToPermanent(ctx context.Context, sessionID string, step entity.WizardStep, fileName string, entityType entity.EntityType, entityID string) (string, error) {
	if m.promoteFunc != nil {
		if err := m.promoteFunc(sessionID, fileName); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("permanent/%s/%s/%s", entityType, entityID, fileName), nil
}

func (m *mockDocuments) DeleteTemporary(ctx context.Context, sessionID string, step entity.WizardStep, fileName string) error {
	return nil
}

func (m *mockDocuments) CleanupSession(ctx context.Context, sessionID string) error {
	m.cleaned = append(m.cleaned, sessionID)
	return nil
}

func TestAuditRecorder_Emit(t *testing.T) {
	sink := &mockAuditSink{}
	logger := &mockLogger{}
	recorder := NewAuditRecorder(sink, logger)

	recorder.Emit(context.Background(), &entity.AuditEntry{ActorID: "u1", Action: entity.AuditRequestCreated, EntityID: "e1"})
	recorder.Emit(context.Background(), nil)

	if len(sink.recorded) != 1 {
		t.Fatalf("expected 1 recorded entry, got %d", len(sink.recorded))
	}
	if sink.recorded[0].CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}
	if len(logger.errors) != 0 {
		t.Errorf("expected no errors logged, got %v", logger.errors)
	}
}

func TestAuditRecorder_SwallowsSinkFailure(t *testing.T) {
	logger := &mockLogger{}
	recorder := NewAuditRecorder(&mockAuditSink{
		recordFunc: func(ctx context.Context, entry *entity.AuditEntry) error {
			return errors.New("disk full")
		},
	}, logger)

	recorder.Emit(context.Background(), &entity.AuditEntry{Action: entity.AuditRequestApproved})

	if len(logger.errors) != 1 || logger.errors[0] != "Failed to record audit entry" {
		t.Errorf("expected the failure to be logged, got %v", logger.errors)
	}
}

func TestAuditRecorder_RecoversSinkPanic(t *testing.T) {
	logger := &mockLogger{}
	recorder := NewAuditRecorder(&mockAuditSink{
		recordFunc: func(ctx context.Context, entry *entity.AuditEntry) error {
			panic("sink exploded")
		},
	}, logger)

	recorder.Emit(context.Background(), &entity.AuditEntry{Action: entity.AuditRequestRejected, CreatedAt: time.Now()})

	if len(logger.errors) != 1 || logger.errors[0] != "Audit sink panic recovered" {
		t.Errorf("expected the panic to be logged, got %v", logger.errors)
	}
}

func promotion(id int64, session, file string) *entity.PendingPromotion {
	return &entity.PendingPromotion{
		ID:         id,
		SessionID:  session,
		Step:       entity.StepParcelDocs,
		FileName:   file,
		EntityType: entity.EntityLandParcel,
		EntityID:   "P-1",
	}
}

func TestPromotionService_ProcessSession(t *testing.T) {
	repo := newMockPromotionRepo(promotion(1, "s1", "deed.pdf"), promotion(2, "s1", "plan.pdf"), promotion(3, "s2", "other.pdf"))
	docs := &mockDocuments{}
	svc := NewPromotionService(repo, docs, &mockLogger{}, 3)

	if err := svc.ProcessSession(context.Background(), "s1"); err != nil {
		t.Fatalf("ProcessSession failed: %v", err)
	}

	for _, id := range []int64{1, 2} {
		if repo.rows[id].Status != entity.PromotionDone {
			t.Errorf("row %d: expected DONE, got %s", id, repo.rows[id].Status)
		}
	}
	if repo.rows[1].PermanentPath != "permanent/LAND_PARCEL/P-1/deed.pdf" {
		t.Errorf("unexpected permanent path %q", repo.rows[1].PermanentPath)
	}
	if repo.rows[3].Status != entity.PromotionPending {
		t.Error("another session's row must not be touched")
	}
	if len(docs.cleaned) != 1 || docs.cleaned[0] != "s1" {
		t.Errorf("expected s1 to be cleaned, got %v", docs.cleaned)
	}
}

func TestPromotionService_FailureKeepsTemporaryArea(t *testing.T) {
	repo := newMockPromotionRepo(promotion(1, "s1", "deed.pdf"), promotion(2, "s1", "broken.pdf"))
	docs := &mockDocuments{
		promoteFunc: func(sessionID, fileName string) error {
			if fileName == "broken.pdf" {
				return errors.New("temporary file missing")
			}
			return nil
		},
	}
	svc := NewPromotionService(repo, docs, &mockLogger{}, 2)

	if err := svc.ProcessSession(context.Background(), "s1"); err == nil {
		t.Fatal("expected an error for the failed document")
	}
	if repo.rows[2].Attempts != 1 || repo.rows[2].Status != entity.PromotionPending {
		t.Errorf("expected one failed attempt still PENDING, got %d/%s", repo.rows[2].Attempts, repo.rows[2].Status)
	}
	if repo.rows[2].LastError != "temporary file missing" {
		t.Errorf("unexpected last error %q", repo.rows[2].LastError)
	}
	if len(docs.cleaned) != 0 {
		t.Error("temporary area must stay while a row is outstanding")
	}

	// second attempt exhausts the budget; FAILED rows still block cleanup
	_ = svc.ProcessSession(context.Background(), "s1")
	if repo.rows[2].Status != entity.PromotionFailed {
		t.Errorf("expected FAILED after max attempts, got %s", repo.rows[2].Status)
	}
	if len(docs.cleaned) != 0 {
		t.Error("FAILED rows keep the temporary area for reconciliation")
	}
}

func TestPromotionService_ProcessPending(t *testing.T) {
	repo := newMockPromotionRepo(promotion(1, "s1", "a.pdf"), promotion(2, "s2", "b.pdf"), promotion(3, "s3", "c.pdf"))
	docs := &mockDocuments{}
	logger := &mockLogger{}
	svc := NewPromotionService(repo, docs, logger, 0)

	n, err := svc.ProcessPending(context.Background(), 2)
	if err != nil {
		t.Fatalf("ProcessPending failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 promoted, got %d", n)
	}
	if repo.rows[3].Status != entity.PromotionPending {
		t.Error("limit must be honoured")
	}
	if len(docs.cleaned) != 2 {
		t.Errorf("expected 2 sessions cleaned, got %v", docs.cleaned)
	}

	n, err = svc.ProcessPending(context.Background(), 10)
	if err != nil || n != 1 {
		t.Errorf("expected the remaining row to be promoted, got %d, %v", n, err)
	}

	n, err = svc.ProcessPending(context.Background(), 10)
	if err != nil || n != 0 {
		t.Errorf("expected an empty outbox, got %d, %v", n, err)
	}
}

func TestPromotionService_MarkDoneFailureCountsAsFailed(t *testing.T) {
	repo := newMockPromotionRepo(promotion(1, "s1", "a.pdf"))
	repo.markDoneErr = errors.New("database is locked")
	docs := &mockDocuments{}
	svc := NewPromotionService(repo, docs, &mockLogger{}, 3)

	if err := svc.ProcessSession(context.Background(), "s1"); err == nil {
		t.Fatal("expected an error")
	}
	if repo.rows[1].Status != entity.PromotionPending {
		t.Error("row must stay PENDING for the worker")
	}
	if len(docs.cleaned) != 0 {
		t.Error("no cleanup while the row is outstanding")
	}
}
