package service

import (
	"context"
	"time"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// AuditRecorder writes audit entries to a sink. Sink failures are logged
// and swallowed so an audit outage never blocks a business transition.
type AuditRecorder struct {
	sink   port.AuditSink
	logger Logger
	now    func() time.Time
}

// NewAuditRecorder creates a new AuditRecorder
func NewAuditRecorder(sink port.AuditSink, logger Logger) *AuditRecorder {
	return &AuditRecorder{
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Emit implements port.Auditor
func (r *AuditRecorder) Emit(ctx context.Context, entry *entity.AuditEntry) {
	if entry == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Audit sink panic recovered",
				"action", entry.Action,
				"entity_id", entry.EntityID,
				"panic", p,
			)
		}
	}()

	if err := r.sink.Record(ctx, entry); err != nil {
		r.logger.Error("Failed to record audit entry",
			"action", entry.Action,
			"actor_id", entry.ActorID,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"error", err,
		)
	}
}

// Verify interface compliance
var _ port.Auditor = (*AuditRecorder)(nil)
