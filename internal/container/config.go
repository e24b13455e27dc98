// Package container provides dependency injection and lifecycle management
// for the assignment fulfillment service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	Lark     LarkConfig
	OpenAI   OpenAIConfig
	Kafka    KafkaConfig
	Workflow WorkflowConfig
	Report   ReportConfig
	Worker   WorkerConfig
	Server   ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration

	// BusyRetries is how many times BEGIN is retried when the writer lock is taken
	BusyRetries int

	// MigrationsDir, when set, replaces the embedded migrations
	MigrationsDir string
}

// StorageConfig holds deliverable storage settings.
type StorageConfig struct {
	// BaseDir is the root of the artifact store
	BaseDir string

	// MaxFileSize caps a single upload in bytes. Zero disables the cap.
	MaxFileSize int64
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string

	RequestTimeout time.Duration

	// EmailDomain completes bare student refs into addresses
	EmailDomain string
	Locale      string
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int

	// TemplatesPath optionally overrides the embedded notification templates
	TemplatesPath string
}

// KafkaConfig holds event stream settings. Publishing is disabled without brokers.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Enabled reports whether an event publisher should be wired
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// WorkflowConfig holds fulfillment engine settings.
type WorkflowConfig struct {
	// StrictPayment blocks start-work and the delivering upload until the payment is confirmed
	StrictPayment bool
}

// WorkerConfig holds background notification retry settings.
type WorkerConfig struct {
	RetryEnabled  bool
	RetryInterval time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryWindow   time.Duration
}

// ReportConfig holds export settings.
type ReportConfig struct {
	Formats []string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/fulfillment.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
			BusyRetries:     3,
		},
		Storage: StorageConfig{
			BaseDir:     "data/deliverables",
			MaxFileSize: 50 << 20,
		},
		Lark: LarkConfig{
			Locale:         "en_us",
			RequestTimeout: 10 * time.Second,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.4,
			MaxTokens:   600,
		},
		Kafka: KafkaConfig{
			Topic:        "assignment-events",
			WriteTimeout: 10 * time.Second,
		},
		Report: ReportConfig{
			Formats: []string{"xlsx", "csv"},
		},
		Worker: WorkerConfig{
			RetryEnabled:  false,
			RetryInterval: time.Minute,
			BatchSize:     20,
			MaxAttempts:   5,
			RetryWindow:   24 * time.Hour,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			MaxUploadBytes: 200 << 20,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	// Validate Lark configuration
	if c.Lark.AppID == "" {
		return fmt.Errorf("lark.app_id is required")
	}
	if c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required")
	}

	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}

	if c.Worker.RetryEnabled && c.Worker.RetryInterval <= 0 {
		return fmt.Errorf("worker.retry_interval must be positive")
	}

	return nil
}
