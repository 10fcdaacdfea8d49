// Package container assembles the land-records core: SQLite, document
// storage, the approval engine, the wizard orchestrator and the workers.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/landrecords/internal/application/billing"
	"github.com/garyjia/landrecords/internal/application/dispatcher"
	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/application/service"
	"github.com/garyjia/landrecords/internal/application/wizard"
	"github.com/garyjia/landrecords/internal/application/workflow"
	"github.com/garyjia/landrecords/internal/infrastructure/persistence/repository"
	"github.com/garyjia/landrecords/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/landrecords/internal/infrastructure/worker"
	"github.com/garyjia/landrecords/pkg/database"
	"go.uber.org/zap"
)

// Container owns every long-lived component. Nothing is opened until Start.
type Container struct {
	config *Config
	logger *zap.Logger

	conn         *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle
	storage      *StorageBundle
	services     *ServiceBundle
	core         *WorkflowBundle
	workers      *worker.WorkerManager

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

type RepositoryBundle struct {
	Requests     port.ApprovalRequestRepository
	Logs         port.ApprovalLogRepository
	Sessions     port.WizardSessionRepository
	Parcels      port.ParcelRepository
	Owners       port.OwnerRepository
	Leases       port.LeaseRepository
	Bills        port.BillingRepository
	Encumbrances port.EncumbranceRepository
	Promotions   port.PromotionRepository
	Audit        *repository.AuditRepository
}

type ServiceBundle struct {
	Audit     *service.AuditRecorder
	Promotion service.PromotionService
	Billing   billing.Generator
}

// NewContainer validates cfg; call Start to open anything
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	switch {
	case cfg == nil:
		return nil, fmt.Errorf("config is required")
	case logger == nil:
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Container{config: cfg, logger: logger}, nil
}

// Ready is true between a successful Start and Close
func (c *Container) Ready() bool {
	return c.ready.Load()
}

func (c *Container) Dispatcher() dispatcher.Dispatcher {
	if c.core == nil {
		return nil
	}
	return c.core.Dispatcher
}

func (c *Container) WorkflowEngine() workflow.ApprovalWorkflowEngine {
	if c.core == nil {
		return nil
	}
	return c.core.Engine
}

func (c *Container) Orchestrator() wizard.Orchestrator {
	if c.core == nil {
		return nil
	}
	return c.core.Orchestrator
}

// Billing returns the lease bill generator used by lease handlers
func (c *Container) Billing() billing.Generator {
	if c.services == nil {
		return nil
	}
	return c.services.Billing
}

// Documents returns the temporary and permanent document store
func (c *Container) Documents() port.DocumentLifecycle {
	if c.storage == nil {
		return nil
	}
	return c.storage.Documents
}

func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}
