package container

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/landrecords/internal/application/billing"
	"github.com/garyjia/landrecords/internal/application/dispatcher"
	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/application/service"
	"github.com/garyjia/landrecords/internal/application/wizard"
	"github.com/garyjia/landrecords/internal/application/workflow"
	"github.com/garyjia/landrecords/internal/infrastructure/persistence/repository"
	"github.com/garyjia/landrecords/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/landrecords/internal/infrastructure/storage"
	"github.com/garyjia/landrecords/internal/infrastructure/worker"
	"github.com/garyjia/landrecords/migrations"
	"github.com/garyjia/landrecords/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	FileStorage port.FileStorage
	Documents   *storage.DocumentStore

	// Ping checks the backend; nil for the local backend
	Ping func(ctx context.Context) error
}

// WorkflowBundle holds the maker-checker core.
type WorkflowBundle struct {
	Dispatcher   dispatcher.Dispatcher
	Engine       workflow.ApprovalWorkflowEngine
	Orchestrator wizard.Orchestrator
}

// ProvideDatabase opens the SQLite database and applies the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(conn, logger).RunMigrations(migrations.FS); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Requests:     repository.NewApprovalRequestRepository(sqlDB, logger),
		Logs:         repository.NewApprovalLogRepository(sqlDB, logger),
		Sessions:     repository.NewWizardSessionRepository(sqlDB, logger),
		Parcels:      repository.NewParcelRepository(sqlDB, logger),
		Owners:       repository.NewOwnerRepository(sqlDB, logger),
		Leases:       repository.NewLeaseRepository(sqlDB, logger),
		Bills:        repository.NewBillingRepository(sqlDB, logger),
		Encumbrances: repository.NewEncumbranceRepository(sqlDB, logger),
		Promotions:   repository.NewPromotionRepository(sqlDB, logger),
		Audit:        repository.NewAuditRepository(sqlDB, logger),
	}, nil
}

// ProvideStorage creates the configured file storage backend and the
// document store on top of it.
func ProvideStorage(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &StorageBundle{}
	switch cfg.Backend {
	case StorageBackendMinIO:
		minioStorage, err := storage.NewMinIOFileStorage(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		}, logger)
		if err != nil {
			return nil, err
		}
		bundle.FileStorage = minioStorage
		bundle.Ping = minioStorage.Ping
	case StorageBackendLocal, "":
		bundle.FileStorage = storage.NewLocalFileStorage(cfg.BaseDir, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	bundle.Documents = storage.NewDocumentStore(bundle.FileStorage, logger)
	logger.Info("Document storage ready", zap.String("backend", cfg.Backend))
	return bundle, nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos       *RepositoryBundle
	TxManager   port.TransactionManager
	Documents   port.DocumentLifecycle
	WorkflowCfg *WorkflowConfig
	Logger      *zap.Logger
}

// ProvideServices creates the audit recorder, promotion service and billing generator.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil || deps.TxManager == nil || deps.Documents == nil || deps.WorkflowCfg == nil {
		return nil, fmt.Errorf("repositories, transaction manager, documents and workflow config are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	adapter := &zapLoggerAdapter{logger: deps.Logger}

	return &ServiceBundle{
		Audit:     service.NewAuditRecorder(deps.Repos.Audit, adapter),
		Promotion: service.NewPromotionService(deps.Repos.Promotions, deps.Documents, adapter, deps.WorkflowCfg.PromotionMaxAttempts),
		Billing:   billing.NewGenerator(deps.Repos.Bills, deps.TxManager, adapter),
	}, nil
}

// WorkflowDeps holds dependencies for the maker-checker core.
type WorkflowDeps struct {
	Repos       *RepositoryBundle
	Services    *ServiceBundle
	TxManager   port.TransactionManager
	Documents   port.DocumentLifecycle
	WorkflowCfg *WorkflowConfig
	Logger      *zap.Logger
}

// ProvideWorkflow wires the dispatcher, approval engine and wizard orchestrator.
func ProvideWorkflow(deps *WorkflowDeps) (*WorkflowBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Services == nil || deps.WorkflowCfg == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	adapter := &zapLoggerAdapter{logger: deps.Logger}

	d := dispatcher.NewDispatcher(dispatcher.Repositories{
		Parcels:      deps.Repos.Parcels,
		Owners:       deps.Repos.Owners,
		Leases:       deps.Repos.Leases,
		Encumbrances: deps.Repos.Encumbrances,
		Sessions:     deps.Repos.Sessions,
		Promotions:   deps.Repos.Promotions,
	}, deps.Services.Billing, deps.TxManager, dispatcher.WithLogger(adapter))

	for _, h := range d.ListHandlers() {
		deps.Logger.Debug("Action handler registered",
			zap.String("entity_type", string(h.Key.Entity)),
			zap.String("action_type", string(h.Key.Action)),
			zap.String("handler", h.Name))
	}

	engine := workflow.NewEngine(
		deps.Repos.Requests,
		deps.Repos.Logs,
		deps.Repos.Sessions,
		deps.TxManager,
		d,
		deps.Services.Audit,
		workflow.WithLogger(adapter),
		workflow.WithPromoter(deps.Services.Promotion),
	)

	orchestrator := wizard.NewOrchestrator(
		deps.Repos.Sessions,
		engine,
		deps.Documents,
		deps.TxManager,
		deps.Services.Audit,
		wizard.WithLogger(adapter),
		wizard.WithSessionTTL(deps.WorkflowCfg.SessionTTL),
		wizard.WithSweepBatchSize(deps.WorkflowCfg.SweepBatchSize),
	)

	return &WorkflowBundle{
		Dispatcher:   d,
		Engine:       engine,
		Orchestrator: orchestrator,
	}, nil
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Sweeper     worker.SessionSweeper
	Promoter    worker.PendingPromoter
	WorkflowCfg *WorkflowConfig
	Logger      *zap.Logger
}

// ProvideWorkers creates the worker manager with the sweep and promotion workers registered.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.Sweeper == nil || deps.Promoter == nil || deps.WorkflowCfg == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(deps.Logger)

	sweepCfg := worker.DefaultSessionSweepWorkerConfig()
	sweepCfg.PollInterval = deps.WorkflowCfg.SweepInterval
	manager.Register(worker.NewSessionSweepWorker(sweepCfg, deps.Sweeper, deps.Logger))

	manager.Register(worker.NewPromotionWorker(worker.PromotionWorkerConfig{
		PollInterval: deps.WorkflowCfg.PromotionInterval,
		BatchSize:    deps.WorkflowCfg.PromotionBatchSize,
	}, deps.Promoter, deps.Logger))

	return manager, nil
}
