package config

import (
	"errors"
	"fmt"
	"os"
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
	Lark     LarkConfig     `mapstructure:"lark"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Report   ReportConfig   `mapstructure:"report"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	BusyRetries     int           `mapstructure:"busy_retries"`
	// MigrationsDir overrides the migrations compiled into the binary
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// StorageConfig holds deliverable storage configuration
type StorageConfig struct {
	BaseDir     string `mapstructure:"base_dir"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID          string        `mapstructure:"app_id"`
	AppSecret      string        `mapstructure:"app_secret"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	EmailDomain    string        `mapstructure:"email_domain"`
	Locale         string        `mapstructure:"locale"`
}

// OpenAIConfig holds OpenAI API configuration. An empty api key keeps template copy as is.
type OpenAIConfig struct {
	APIKey        string  `mapstructure:"api_key"`
	BaseURL       string  `mapstructure:"base_url"`
	Model         string  `mapstructure:"model"`
	Temperature   float32 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	TemplatesPath string  `mapstructure:"templates_path"`
}

// KafkaConfig holds event stream configuration. No brokers disables publishing.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// WorkflowConfig holds fulfillment engine configuration
type WorkflowConfig struct {
	StrictPayment bool `mapstructure:"strict_payment"`
}

// ReportConfig holds report export configuration
type ReportConfig struct {
	Formats []string `mapstructure:"formats"`
}

// WorkerConfig holds notification retry configuration
type WorkerConfig struct {
	RetryEnabled  bool          `mapstructure:"retry_enabled"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryWindow   time.Duration `mapstructure:"retry_window"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
	Sampling   bool   `mapstructure:"sampling"`
}

// Load loads configuration from file and environment variables.
// A .env file next to the working directory is read first when present;
// variables already set in the environment win over it.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
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

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := gotenv.Load(path); err != nil {
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
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_upload_bytes", 200<<20)

	// Database defaults
	v.SetDefault("database.path", "data/fulfillment.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.busy_retries", 3)
	v.SetDefault("database.migrations_dir", "")

	// Storage defaults
	v.SetDefault("storage.base_dir", "data/deliverables")
	v.SetDefault("storage.max_file_size", 50<<20)

	// Lark defaults
	v.SetDefault("lark.locale", "en_us")
	v.SetDefault("lark.request_timeout", 10*time.Second)

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.temperature", 0.4)
	v.SetDefault("openai.max_tokens", 600)

	// Kafka defaults
	v.SetDefault("kafka.topic", "assignment-events")
	v.SetDefault("kafka.write_timeout", 10*time.Second)

	// Workflow defaults
	v.SetDefault("workflow.strict_payment", false)

	// Report defaults
	v.SetDefault("report.formats", []string{"xlsx", "csv"})

	// Worker defaults
	v.SetDefault("worker.retry_enabled", false)
	v.SetDefault("worker.retry_interval", time.Minute)
	v.SetDefault("worker.batch_size", 20)
	v.SetDefault("worker.max_attempts", 5)
	v.SetDefault("worker.retry_window", 24*time.Hour)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.sampling", false)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.email_domain", "LARK_EMAIL_DOMAIN")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")

	// Deployment overrides
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("storage.base_dir", "STORAGE_BASE_DIR")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("workflow.strict_payment", "WORKFLOW_STRICT_PAYMENT")
	_ = v.BindEnv("worker.retry_enabled", "WORKER_RETRY_ENABLED")
	_ = v.BindEnv("logger.level", "LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	// Validate Lark credentials
	if c.Lark.AppID == "" {
		return fmt.Errorf("lark.app_id is required")
	}
	if c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required")
	}

	// Validate Kafka settings
	c.Kafka.Brokers = splitBrokers(c.Kafka.Brokers)
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}

	if len(c.Report.Formats) == 0 {
		return fmt.Errorf("report.formats must list at least one format")
	}
	for _, f := range c.Report.Formats {
		if f != "xlsx" && f != "csv" {
			return fmt.Errorf("report.formats: unsupported format %q", f)
		}
	}

	if c.Worker.RetryEnabled && c.Worker.RetryInterval <= 0 {
		return fmt.Errorf("worker.retry_interval must be positive")
	}

	return nil
}

// splitBrokers accepts both a YAML list and a comma separated env value
func splitBrokers(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, b := range strings.Split(entry, ",") {
			if b = strings.TrimSpace(b); b != "" {
				out = append(out, b)
			}
		}
	}
	return out
}
