package wizard

import (
	"context"

	"github.com/garyjia/landrecords/internal/domain/entity"
)

// SweepExpired implements Orchestrator. Each session is deleted together
// with its temporary documents in its own transaction, so one failure does
// not stop the rest. Re-running the sweep over a cleaned session is a no-op.
func (o *orchestrator) SweepExpired(ctx context.Context) (int, error) {
	now := o.now()
	expired, err := o.sessions.ListExpiredDrafts(ctx, now, o.sweepSize)
	if err != nil {
		o.logError("Failed to list expired sessions", "error", err)
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	swept := 0
	for _, session := range expired {
		if ctx.Err() != nil {
			return swept, ctx.Err()
		}

		var deleted bool
		err := o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			var err error
			deleted, err = o.sessions.DeleteExpiredDraft(txCtx, session.ID, now)
			if err != nil || !deleted {
				return err
			}
			return o.documents.CleanupSession(txCtx, session.ID)
		})
		if err != nil {
			o.logError("Failed to sweep session", "session_id", session.ID, "error", err)
			continue
		}
		if !deleted {
			continue
		}

		swept++
		o.audit(ctx, entity.Actor{ID: session.UserID}, entity.AuditSessionSwept, session.ID, map[string]interface{}{
			"expires_at": session.ExpiresAt,
			"documents":  len(session.AllDocuments()),
		})
	}

	o.logInfo("Expired sessions swept", "found", len(expired), "swept", swept)
	return swept, nil
}
