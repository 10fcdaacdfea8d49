package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WorkerStats is a snapshot of a polling worker's counters
type WorkerStats struct {
	Running      bool
	Runs         int
	Processed    int
	Failures     int
	LastRun      time.Time
	LastError    string
	StartedAt    time.Time
	PollInterval time.Duration
}

// poller runs tick on a fixed interval until stopped
type poller struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context) (int, error)
	logger   *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	stats     WorkerStats
}

func newPoller(name string, interval time.Duration, tick func(ctx context.Context) (int, error), logger *zap.Logger) *poller {
	return &poller{
		name:     name,
		interval: interval,
		tick:     tick,
		logger:   logger,
		stats:    WorkerStats{PollInterval: interval},
	}
}

func (p *poller) start(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return fmt.Errorf("%s already running", p.name)
	}
	if p.interval <= 0 {
		p.mu.Unlock()
		return fmt.Errorf("%s: poll interval must be positive, got %s", p.name, p.interval)
	}

	var loopCtx context.Context
	loopCtx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.isRunning = true
	p.stats.StartedAt = time.Now()
	done := p.done
	p.mu.Unlock()

	p.logger.Info(p.name+" started", zap.Duration("poll_interval", p.interval))

	go p.loop(loopCtx, done)
	return nil
}

// stop cancels the loop and waits for an in-flight tick to return
func (p *poller) stop() error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done

	stats := p.snapshot()
	p.logger.Info(p.name+" stopped",
		zap.Int("runs", stats.Runs),
		zap.Int("processed", stats.Processed),
		zap.Int("failures", stats.Failures))
	return nil
}

func (p *poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Poll loop context cancelled", zap.String("worker_name", p.name))
			return

		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *poller) runOnce(ctx context.Context) {
	n, err := p.tick(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Runs++
	p.stats.LastRun = time.Now()
	p.stats.Processed += n
	if err != nil {
		p.stats.Failures++
		p.stats.LastError = err.Error()
		p.logger.Error(p.name+" run failed", zap.Error(err))
	}
}

func (p *poller) snapshot() WorkerStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.stats
	s.Running = p.isRunning
	return s
}
