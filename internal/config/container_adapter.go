package config

import (
	"github.com/garyjia/landrecords/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Storage: container.StorageConfig{
			Backend:        c.Storage.Backend,
			BaseDir:        c.Storage.BaseDir,
			MinIOEndpoint:  c.Storage.MinIO.Endpoint,
			MinIOAccessKey: c.Storage.MinIO.AccessKey,
			MinIOSecretKey: c.Storage.MinIO.SecretKey,
			MinIOBucket:    c.Storage.MinIO.Bucket,
			MinIOUseSSL:    c.Storage.MinIO.UseSSL,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Workflow: container.WorkflowConfig{
			SessionTTL:           c.Workflow.SessionTTL,
			SweepInterval:        c.Workflow.SweepInterval,
			SweepBatchSize:       c.Workflow.SweepBatchSize,
			PromotionInterval:    c.Workflow.PromotionInterval,
			PromotionBatchSize:   c.Workflow.PromotionBatchSize,
			PromotionMaxAttempts: c.Workflow.PromotionMaxAttempts,
		},
	}
}
