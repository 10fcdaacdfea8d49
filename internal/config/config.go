package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds ops HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// StorageConfig holds document storage configuration
type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	BaseDir string      `mapstructure:"base_dir"`
	MinIO   MinIOConfig `mapstructure:"minio"`
}

// MinIOConfig holds MinIO connection settings
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// WorkflowConfig holds wizard session and worker configuration
type WorkflowConfig struct {
	SessionTTL           time.Duration `mapstructure:"session_ttl"`
	SweepInterval        time.Duration `mapstructure:"sweep_interval"`
	SweepBatchSize       int           `mapstructure:"sweep_batch_size"`
	PromotionInterval    time.Duration `mapstructure:"promotion_interval"`
	PromotionBatchSize   int           `mapstructure:"promotion_batch_size"`
	PromotionMaxAttempts int           `mapstructure:"promotion_max_attempts"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional .env file, the yaml file at
// configPath and environment variables, in increasing precedence.
// An empty configPath skips the yaml file.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LANDRECORDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports the file's variables without overriding ones already set
func loadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/landrecords.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	// Storage defaults
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.base_dir", "documents")
	v.SetDefault("storage.minio.bucket", "land-documents")
	v.SetDefault("storage.minio.use_ssl", false)

	// Workflow defaults
	v.SetDefault("workflow.session_ttl", 24*time.Hour)
	v.SetDefault("workflow.sweep_interval", 10*time.Minute)
	v.SetDefault("workflow.sweep_batch_size", 100)
	v.SetDefault("workflow.promotion_interval", 30*time.Second)
	v.SetDefault("workflow.promotion_batch_size", 20)
	v.SetDefault("workflow.promotion_max_attempts", 5)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the conventional unprefixed names for credentials
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("storage.minio.endpoint", "LANDRECORDS_STORAGE_MINIO_ENDPOINT", "MINIO_ENDPOINT")
	_ = v.BindEnv("storage.minio.access_key", "LANDRECORDS_STORAGE_MINIO_ACCESS_KEY", "MINIO_ACCESS_KEY")
	_ = v.BindEnv("storage.minio.secret_key", "LANDRECORDS_STORAGE_MINIO_SECRET_KEY", "MINIO_SECRET_KEY")
	_ = v.BindEnv("database.path", "LANDRECORDS_DATABASE_PATH", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" {
			return fmt.Errorf("storage.minio.endpoint is required")
		}
		if c.Storage.MinIO.AccessKey == "" {
			return fmt.Errorf("storage.minio.access_key is required")
		}
		if c.Storage.MinIO.SecretKey == "" {
			return fmt.Errorf("storage.minio.secret_key is required")
		}
		if c.Storage.MinIO.Bucket == "" {
			return fmt.Errorf("storage.minio.bucket is required")
		}
	default:
		return fmt.Errorf("storage.backend must be local or minio, got %q", c.Storage.Backend)
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
