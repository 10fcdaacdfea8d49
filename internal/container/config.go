// Package container provides dependency injection and lifecycle management
// for the land records service.
package container

import (
	"fmt"
	"time"
)

// Storage backends
const (
	StorageBackendLocal = "local"
	StorageBackendMinIO = "minio"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	Server   ServerConfig
	Workflow WorkflowConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a writer waits for the SQLite lock
	BusyTimeout time.Duration
}

// StorageConfig holds document storage settings.
type StorageConfig struct {
	// Backend is "local" or "minio"
	Backend string

	// BaseDir is the root directory of the local backend
	BaseDir string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
}

// ServerConfig holds the ops HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WorkflowConfig holds wizard and background worker settings.
type WorkflowConfig struct {
	// SessionTTL is how long a DRAFT wizard session lives from creation
	SessionTTL time.Duration

	SweepInterval  time.Duration
	SweepBatchSize int

	PromotionInterval    time.Duration
	PromotionBatchSize   int
	PromotionMaxAttempts int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/landrecords.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Storage: StorageConfig{
			Backend: StorageBackendLocal,
			BaseDir: "documents",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Workflow: WorkflowConfig{
			SessionTTL:           24 * time.Hour,
			SweepInterval:        10 * time.Minute,
			SweepBatchSize:       100,
			PromotionInterval:    30 * time.Second,
			PromotionBatchSize:   20,
			PromotionMaxAttempts: 5,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Storage.Backend {
	case StorageBackendLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	case StorageBackendMinIO:
		if c.Storage.MinIOEndpoint == "" {
			return fmt.Errorf("storage.minio.endpoint is required")
		}
		if c.Storage.MinIOAccessKey == "" || c.Storage.MinIOSecretKey == "" {
			return fmt.Errorf("storage.minio.access_key and storage.minio.secret_key are required")
		}
		if c.Storage.MinIOBucket == "" {
			return fmt.Errorf("storage.minio.bucket is required")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	if c.Workflow.SessionTTL <= 0 {
		return fmt.Errorf("workflow.session_ttl must be positive")
	}
	if c.Workflow.SweepInterval <= 0 {
		return fmt.Errorf("workflow.sweep_interval must be positive")
	}
	if c.Workflow.PromotionInterval <= 0 {
		return fmt.Errorf("workflow.promotion_interval must be positive")
	}
	if c.Workflow.PromotionBatchSize <= 0 {
		return fmt.Errorf("workflow.promotion_batch_size must be positive")
	}
	if c.Workflow.PromotionMaxAttempts <= 0 {
		return fmt.Errorf("workflow.promotion_max_attempts must be positive")
	}

	return nil
}
