package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PendingPromoter drains the document promotion outbox
type PendingPromoter interface {
	ProcessPending(ctx context.Context, limit int) (int, error)
}

// PromotionWorkerConfig holds configuration for the promotion worker
type PromotionWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultPromotionWorkerConfig returns default configuration
func DefaultPromotionWorkerConfig() PromotionWorkerConfig {
	return PromotionWorkerConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    20,
	}
}

// PromotionWorker retries document promotions that did not complete
// right after approval.
type PromotionWorker struct {
	*poller
	config   PromotionWorkerConfig
	promoter PendingPromoter
	logger   *zap.Logger
}

// NewPromotionWorker creates a new promotion worker
func NewPromotionWorker(config PromotionWorkerConfig, promoter PendingPromoter, logger *zap.Logger) *PromotionWorker {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultPromotionWorkerConfig().BatchSize
	}
	w := &PromotionWorker{
		config:   config,
		promoter: promoter,
		logger:   logger,
	}
	w.poller = newPoller(w.Name(), config.PollInterval, w.drain, logger)
	return w
}

// Start begins the polling loop
func (w *PromotionWorker) Start(ctx context.Context) error {
	return w.start(ctx)
}

// Stop gracefully terminates the worker
func (w *PromotionWorker) Stop() error {
	return w.stop()
}

// Name returns the worker name for identification
func (w *PromotionWorker) Name() string {
	return "PromotionWorker"
}

// Stats returns the worker's counters
func (w *PromotionWorker) Stats() WorkerStats {
	return w.snapshot()
}

// drain processes full batches until the outbox is empty or a batch comes back short
func (w *PromotionWorker) drain(ctx context.Context) (int, error) {
	total := 0
	for ctx.Err() == nil {
		n, err := w.promoter.ProcessPending(ctx, w.config.BatchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < w.config.BatchSize {
			break
		}
	}

	if total > 0 {
		w.logger.Debug("Promotion outbox drained", zap.Int("promoted", total))
	}
	return total, nil
}
