package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SessionSweeper removes expired wizard drafts
type SessionSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SessionSweepWorkerConfig holds configuration for the session sweep worker
type SessionSweepWorkerConfig struct {
	PollInterval time.Duration
	RunTimeout   time.Duration
}

// DefaultSessionSweepWorkerConfig returns default configuration
func DefaultSessionSweepWorkerConfig() SessionSweepWorkerConfig {
	return SessionSweepWorkerConfig{
		PollInterval: 10 * time.Minute,
		RunTimeout:   2 * time.Minute,
	}
}

// SessionSweepWorker periodically deletes expired DRAFT sessions and their
// temporary documents.
type SessionSweepWorker struct {
	*poller
	config  SessionSweepWorkerConfig
	sweeper SessionSweeper
	logger  *zap.Logger
}

// NewSessionSweepWorker creates a new session sweep worker
func NewSessionSweepWorker(config SessionSweepWorkerConfig, sweeper SessionSweeper, logger *zap.Logger) *SessionSweepWorker {
	w := &SessionSweepWorker{
		config:  config,
		sweeper: sweeper,
		logger:  logger,
	}
	w.poller = newPoller(w.Name(), config.PollInterval, w.sweep, logger)
	return w
}

// Start begins the sweep loop
func (w *SessionSweepWorker) Start(ctx context.Context) error {
	return w.start(ctx)
}

// Stop gracefully terminates the worker
func (w *SessionSweepWorker) Stop() error {
	return w.stop()
}

// Name returns the worker name for identification
func (w *SessionSweepWorker) Name() string {
	return "SessionSweepWorker"
}

// Stats returns the worker's counters
func (w *SessionSweepWorker) Stats() WorkerStats {
	return w.snapshot()
}

func (w *SessionSweepWorker) sweep(ctx context.Context) (int, error) {
	if w.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.RunTimeout)
		defer cancel()
	}

	n, err := w.sweeper.SweepExpired(ctx)
	if err != nil {
		return n, err
	}
	if n > 0 {
		w.logger.Info("Expired sessions swept", zap.Int("count", n))
	}
	return n, nil
}
