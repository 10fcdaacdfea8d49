package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker is a background loop owned by the container
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// StatsReporter is implemented by workers that expose counters
type StatsReporter interface {
	Stats() WorkerStats
}

// WorkerManager starts the session sweeper and the promotion drainer in
// registration order and stops them in reverse.
type WorkerManager struct {
	logger *zap.Logger

	mu         sync.RWMutex
	registered []Worker
	// running is nil until StartAll and holds only the workers that started
	running []Worker
	active  bool
}

func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{logger: logger}
}

func (m *WorkerManager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, w)
}

// StartAll starts every registered worker. One that refuses to start is
// logged and left out; the rest keep running.
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return fmt.Errorf("workers already running")
	}
	m.active = true

	m.running = make([]Worker, 0, len(m.registered))
	for _, w := range m.registered {
		if err := w.Start(ctx); err != nil {
			m.logger.Error("Worker did not start", zap.String("worker", w.Name()), zap.Error(err))
			continue
		}
		m.running = append(m.running, w)
	}

	m.logger.Info("Workers started",
		zap.Int("running", len(m.running)),
		zap.Int("registered", len(m.registered)))
	return nil
}

// StopAll stops the running workers newest first. Calling it while stopped
// is a no-op.
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return nil
	}
	m.active = false

	var errs []error
	for i := len(m.running) - 1; i >= 0; i-- {
		w := m.running[i]
		if err := w.Stop(); err != nil {
			m.logger.Error("Worker did not stop cleanly", zap.String("worker", w.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
		}
	}
	m.running = nil

	m.logger.Info("Workers stopped", zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// GetWorkerCount counts registered workers, started or not
func (m *WorkerManager) GetWorkerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.registered)
}

func (m *WorkerManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Stats collects counters keyed by worker name
func (m *WorkerManager) Stats() map[string]WorkerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]WorkerStats, len(m.registered))
	for _, w := range m.registered {
		if r, ok := w.(StatsReporter); ok {
			out[w.Name()] = r.Stats()
		}
	}
	return out
}
