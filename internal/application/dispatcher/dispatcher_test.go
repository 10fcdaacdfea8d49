package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu      sync.Mutex
	infos   []string
	errors  []string
	entries []map[string]interface{}
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)

	entry := map[string]interface{}{"msg": msg}
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			entry[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
		}
	}
	m.entries = append(m.entries, entry)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)

	entry := map[string]interface{}{"msg": msg, "level": "error"}
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			entry[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
		}
	}
	m.entries = append(m.entries, entry)
}

func (m *mockLogger) HasError(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.errors {
		if e == msg {
			return true
		}
	}
	return false
}

// passthroughTx runs fn directly and counts calls
type passthroughTx struct {
	calls int
}

func (p *passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

func newTestDispatcher(logger Logger, opts ...Option) (Dispatcher, *passthroughTx) {
	tx := &passthroughTx{}
	all := append([]Option{WithLogger(logger)}, opts...)
	return NewDispatcher(Repositories{}, nil, tx, all...), tx
}

func TestNewDispatcher(t *testing.T) {
	t.Run("registers built-in handlers", func(t *testing.T) {
		d, _ := newTestDispatcher(nil)

		keys := []entity.ActionKey{
			entity.KeyCreateOwner,
			entity.KeyUpdateOwner,
			entity.KeyTransferOwnership,
			entity.KeyAddParcelOwner,
			entity.KeySubdivideParcel,
			entity.KeyDeleteParcel,
			entity.KeyCreateEncumbrance,
			entity.KeyUpdateLease,
			entity.KeyExecuteWizard,
		}
		for _, k := range keys {
			if !d.Supports(k) {
				t.Errorf("expected handler for %s", k)
			}
		}
		if d.Supports(entity.ActionKey{Entity: entity.EntityLease, Action: entity.ActionDelete}) {
			t.Error("LEASE/DELETE should not be supported")
		}
	})

	t.Run("lists handlers sorted by key", func(t *testing.T) {
		d, _ := newTestDispatcher(nil)
		handlers := d.ListHandlers()
		if len(handlers) != 9 {
			t.Fatalf("expected 9 handlers, got %d", len(handlers))
		}
		for i := 1; i < len(handlers); i++ {
			if handlers[i-1].Key.String() > handlers[i].Key.String() {
				t.Errorf("handlers not sorted: %s before %s", handlers[i-1].Key, handlers[i].Key)
			}
			if handlers[i].Handler != nil {
				t.Error("expected Handler to be omitted from listing")
			}
		}
	})
}

func TestExecute_Unsupported(t *testing.T) {
	d, tx := newTestDispatcher(&mockLogger{})

	_, err := d.Execute(context.Background(), entity.EntityLease, entity.ActionDelete, "L-1",
		entity.DeleteParcelPayload{Reason: "x"}, "req-1", "actor-1")
	if apperr.KindOf(err) != apperr.KindUnsupportedAction {
		t.Fatalf("expected UNSUPPORTED_ACTION, got %v", err)
	}
	if tx.calls != 0 {
		t.Error("unsupported action must not open a transaction")
	}
}

func TestExecute_PayloadMismatch(t *testing.T) {
	d, _ := newTestDispatcher(nil)

	_, err := d.Execute(context.Background(), entity.EntityOwner, entity.ActionCreate, "NEW-1",
		entity.DeleteParcelPayload{Reason: "x"}, "req-1", "actor-1")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = d.Execute(context.Background(), entity.EntityOwner, entity.ActionCreate, "NEW-1", nil, "req-1", "actor-1")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for nil payload, got %v", err)
	}
}

func TestExecute_InvalidPayloadSkipsHandler(t *testing.T) {
	called := false
	d, _ := newTestDispatcher(nil, WithHandler(entity.KeyDeleteParcel, "stub", HandlerFunc(
		func(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
			called = true
			return nil, nil
		})))

	_, err := d.Execute(context.Background(), entity.EntityLandParcel, entity.ActionDelete, "P-1",
		entity.DeleteParcelPayload{}, "req-1", "actor-1")
	if !errors.Is(err, apperr.ErrExecutionFailed) {
		t.Fatalf("expected EXECUTION_FAILED, got %v", err)
	}
	if !errors.Is(err, apperr.ErrValidation) {
		t.Error("expected the validation cause to be preserved")
	}
	if called {
		t.Error("handler must not run on invalid payload")
	}
}

func TestExecute_HandlerResult(t *testing.T) {
	var got ExecutionRequest
	d, tx := newTestDispatcher(&mockLogger{}, WithHandler(entity.KeyDeleteParcel, "stub", HandlerFunc(
		func(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
			got = req
			return &ExecutionResult{Details: map[string]interface{}{"ok": true}}, nil
		})))

	result, err := d.Execute(context.Background(), entity.EntityLandParcel, entity.ActionDelete, "P-1",
		entity.DeleteParcelPayload{Reason: "duplicate"}, "req-1", "actor-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.calls != 1 {
		t.Errorf("expected one transaction, got %d", tx.calls)
	}
	if result.EntityID != "P-1" {
		t.Errorf("expected entity id to default to P-1, got %q", result.EntityID)
	}
	if result.Key != entity.KeyDeleteParcel {
		t.Errorf("unexpected key %s", result.Key)
	}
	if got.RequestID != "req-1" || got.ActorID != "actor-1" {
		t.Errorf("request ids not passed through: %+v", got)
	}
}

func TestExecute_PanicRecovery(t *testing.T) {
	logger := &mockLogger{}
	d, _ := newTestDispatcher(logger, WithHandler(entity.KeyDeleteParcel, "panicky", HandlerFunc(
		func(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
			panic("boom")
		})))

	_, err := d.Execute(context.Background(), entity.EntityLandParcel, entity.ActionDelete, "P-1",
		entity.DeleteParcelPayload{Reason: "x"}, "req-1", "actor-1")
	if !errors.Is(err, apperr.ErrExecutionFailed) {
		t.Fatalf("expected EXECUTION_FAILED, got %v", err)
	}
	if !logger.HasError("Handler panic recovered") {
		t.Error("expected panic to be logged")
	}
}

func TestExecute_WizardFailureCarriesFailedInstruction(t *testing.T) {
	d, _ := newTestDispatcher(nil, WithHandler(entity.KeyExecuteWizard, "failing", HandlerFunc(
		func(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
			return nil, errors.New("parcel insert failed")
		})))

	result, err := d.Execute(context.Background(), entity.EntityWizardSession, entity.ActionCreate, "s-1",
		entity.WizardPayload{SessionID: "s-1"}, "req-1", "checker-1")
	if !errors.Is(err, apperr.ErrExecutionFailed) {
		t.Fatalf("expected EXECUTION_FAILED, got %v", err)
	}
	if result == nil {
		t.Fatal("expected a result carrying the session instruction")
	}
	if result.SessionID != "s-1" || result.SessionStatus != entity.SessionFailed {
		t.Errorf("expected FAILED instruction for s-1, got %+v", result)
	}
}
