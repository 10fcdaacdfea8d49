package container

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type startStep struct {
	name string
	run  func() error
}

// Start opens components in dependency order: database, storage, services,
// workflow core, workers. If a step fails, whatever was opened is released.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed.Load():
		return fmt.Errorf("container has been closed")
	case c.ready.Load():
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	for _, step := range []startStep{
		{"database", c.openDatabase},
		{"storage", c.openStorage},
		{"services", c.buildServices},
		{"workflow", c.buildWorkflow},
		{"workers", c.startWorkers},
	} {
		if err := step.run(); err != nil {
			c.logger.Error("Container start aborted", zap.String("step", step.name), zap.Error(err))
			_ = c.release()
			return fmt.Errorf("start %s: %w", step.name, err)
		}
		c.logger.Debug("Container step done", zap.String("step", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started",
		zap.String("database", c.config.Database.Path),
		zap.String("storage", c.config.Storage.Backend))
	return nil
}

// Close stops workers and closes the database. It may be called once.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Swap(true) {
		return fmt.Errorf("container already closed")
	}
	c.ready.Store(false)

	if err := c.release(); err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed")
	return nil
}

// release undoes Start in reverse. Storage and the workflow core hold no
// resources of their own. Callers hold c.mu.
func (c *Container) release() error {
	if c.cancel != nil {
		c.cancel()
	}

	var errs []error
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.conn = nil
	}
	return errors.Join(errs...)
}

func (c *Container) openDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.conn, c.db = bundle.Conn, bundle.TransactionMgr

	c.repositories, err = ProvideRepositories(c.conn.DB, c.logger)
	return err
}

func (c *Container) openStorage() (err error) {
	c.storage, err = ProvideStorage(c.ctx, &c.config.Storage, c.logger)
	return err
}

func (c *Container) buildServices() (err error) {
	c.services, err = ProvideServices(&ServiceDeps{
		Repos:       c.repositories,
		TxManager:   c.db,
		Documents:   c.storage.Documents,
		WorkflowCfg: &c.config.Workflow,
		Logger:      c.logger,
	})
	return err
}

func (c *Container) buildWorkflow() (err error) {
	c.core, err = ProvideWorkflow(&WorkflowDeps{
		Repos:       c.repositories,
		Services:    c.services,
		TxManager:   c.db,
		Documents:   c.storage.Documents,
		WorkflowCfg: &c.config.Workflow,
		Logger:      c.logger,
	})
	return err
}

func (c *Container) startWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Sweeper:     c.core.Orchestrator,
		Promoter:    c.services.Promotion,
		WorkflowCfg: &c.config.Workflow,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers
	return c.workers.StartAll(c.ctx)
}
