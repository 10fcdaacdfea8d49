package service

import (
	"context"
	"fmt"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/entity"
)

// DefaultPromotionMaxAttempts is how often a document is retried before it is left FAILED
const DefaultPromotionMaxAttempts = 5

// PromotionService drains the document promotion outbox
type PromotionService interface {
	// ProcessSession promotes the session's PENDING documents and cleans its
	// temporary area once nothing is outstanding.
	ProcessSession(ctx context.Context, sessionID string) error

	// ProcessPending promotes up to limit PENDING documents across sessions
	// and returns how many were promoted.
	ProcessPending(ctx context.Context, limit int) (int, error)
}

type promotionServiceImpl struct {
	promotions  port.PromotionRepository
	documents   port.DocumentLifecycle
	logger      Logger
	maxAttempts int
}

// NewPromotionService creates a new PromotionService
func NewPromotionService(
	promotions port.PromotionRepository,
	documents port.DocumentLifecycle,
	logger Logger,
	maxAttempts int,
) PromotionService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultPromotionMaxAttempts
	}
	return &promotionServiceImpl{
		promotions:  promotions,
		documents:   documents,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// ProcessSession implements PromotionService
func (s *promotionServiceImpl) ProcessSession(ctx context.Context, sessionID string) error {
	rows, err := s.promotions.ListPendingBySession(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to list pending promotions", "error", err, "session_id", sessionID)
		return fmt.Errorf("list pending promotions: %w", err)
	}

	_, failed := s.process(ctx, rows)
	s.cleanup(ctx, sessionID)

	if failed > 0 {
		return fmt.Errorf("%d of %d documents for session %s not promoted", failed, len(rows), sessionID)
	}
	return nil
}

// ProcessPending implements PromotionService
func (s *promotionServiceImpl) ProcessPending(ctx context.Context, limit int) (int, error) {
	rows, err := s.promotions.ListPending(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to list pending promotions", "error", err)
		return 0, fmt.Errorf("list pending promotions: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	done, failed := s.process(ctx, rows)

	seen := make(map[string]bool)
	for _, row := range rows {
		if !seen[row.SessionID] {
			seen[row.SessionID] = true
			s.cleanup(ctx, row.SessionID)
		}
	}

	s.logger.Info("Promotion batch processed",
		"total", len(rows),
		"promoted", done,
		"failed", failed,
	)
	return done, nil
}

func (s *promotionServiceImpl) process(ctx context.Context, rows []*entity.PendingPromotion) (done, failed int) {
	for _, row := range rows {
		if ctx.Err() != nil {
			failed += len(rows) - done - failed
			return done, failed
		}

		path, err := s.documents.PromoteToPermanent(ctx, row.SessionID, row.Step, row.FileName, row.EntityType, row.EntityID)
		if err != nil {
			failed++
			s.logger.Error("Document promotion failed",
				"error", err,
				"promotion_id", row.ID,
				"session_id", row.SessionID,
				"file_name", row.FileName,
				"attempt", row.Attempts+1,
			)
			if markErr := s.promotions.MarkAttemptFailed(ctx, row.ID, err.Error(), s.maxAttempts); markErr != nil {
				s.logger.Error("Failed to record promotion attempt", "error", markErr, "promotion_id", row.ID)
			}
			continue
		}

		if err := s.promotions.MarkDone(ctx, row.ID, path); err != nil {
			// the file is in place; the next run re-promotes idempotently
			failed++
			s.logger.Error("Failed to mark promotion done", "error", err, "promotion_id", row.ID)
			continue
		}
		done++
		s.logger.Info("Document promoted",
			"promotion_id", row.ID,
			"session_id", row.SessionID,
			"entity_type", row.EntityType,
			"entity_id", row.EntityID,
			"path", path,
		)
	}
	return done, failed
}

// cleanup removes the session's temporary area once no row is PENDING or FAILED
func (s *promotionServiceImpl) cleanup(ctx context.Context, sessionID string) {
	outstanding, err := s.promotions.CountOutstandingBySession(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to count outstanding promotions", "error", err, "session_id", sessionID)
		return
	}
	if outstanding > 0 {
		return
	}
	if err := s.documents.CleanupSession(ctx, sessionID); err != nil {
		s.logger.Error("Failed to clean up session documents", "error", err, "session_id", sessionID)
		return
	}
	s.logger.Info("Session temporary documents cleaned", "session_id", sessionID)
}

// Verify interface compliance
var _ port.Promoter = (*promotionServiceImpl)(nil)
