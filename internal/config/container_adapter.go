package config

import (
	"github.com/garyjia/assignment-fulfillment/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			BusyRetries:     c.Database.BusyRetries,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Storage: container.StorageConfig{
			BaseDir:     c.Storage.BaseDir,
			MaxFileSize: c.Storage.MaxFileSize,
		},
		Lark: container.LarkConfig{
			AppID:          c.Lark.AppID,
			AppSecret:      c.Lark.AppSecret,
			BaseURL:        c.Lark.BaseURL,
			RequestTimeout: c.Lark.RequestTimeout,
			EmailDomain:    c.Lark.EmailDomain,
			Locale:         c.Lark.Locale,
		},
		OpenAI: container.OpenAIConfig{
			APIKey:        c.OpenAI.APIKey,
			BaseURL:       c.OpenAI.BaseURL,
			Model:         c.OpenAI.Model,
			Temperature:   c.OpenAI.Temperature,
			MaxTokens:     c.OpenAI.MaxTokens,
			TemplatesPath: c.OpenAI.TemplatesPath,
		},
		Kafka: container.KafkaConfig{
			Brokers:      append([]string(nil), c.Kafka.Brokers...),
			Topic:        c.Kafka.Topic,
			WriteTimeout: c.Kafka.WriteTimeout,
		},
		Workflow: container.WorkflowConfig{
			StrictPayment: c.Workflow.StrictPayment,
		},
		Report: container.ReportConfig{
			Formats: append([]string(nil), c.Report.Formats...),
		},
		Worker: container.WorkerConfig{
			RetryEnabled:  c.Worker.RetryEnabled,
			RetryInterval: c.Worker.RetryInterval,
			BatchSize:     c.Worker.BatchSize,
			MaxAttempts:   c.Worker.MaxAttempts,
			RetryWindow:   c.Worker.RetryWindow,
		},
		Server: container.ServerConfig{
			Host:           c.Server.Host,
			Port:           c.Server.Port,
			ReadTimeout:    c.Server.ReadTimeout,
			WriteTimeout:   c.Server.WriteTimeout,
			MaxUploadBytes: c.Server.MaxUploadBytes,
		},
	}
}
