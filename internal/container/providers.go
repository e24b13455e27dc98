package container

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/dispatcher"
	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/application/service"
	"github.com/garyjia/assignment-fulfillment/internal/application/workflow"
	"github.com/garyjia/assignment-fulfillment/internal/domain/event"
	infraKafka "github.com/garyjia/assignment-fulfillment/internal/infrastructure/external/kafka"
	infraLark "github.com/garyjia/assignment-fulfillment/internal/infrastructure/external/lark"
	"github.com/garyjia/assignment-fulfillment/internal/infrastructure/external/openai"
	"github.com/garyjia/assignment-fulfillment/internal/infrastructure/persistence/repository"
	"github.com/garyjia/assignment-fulfillment/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/assignment-fulfillment/internal/infrastructure/report"
	"github.com/garyjia/assignment-fulfillment/internal/infrastructure/storage"
	"github.com/garyjia/assignment-fulfillment/internal/infrastructure/worker"
	"github.com/garyjia/assignment-fulfillment/migrations"
	"github.com/garyjia/assignment-fulfillment/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.TxManager
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	Blobs     port.BlobStore
	Artifacts *storage.LocalArtifactStore
}

// NotificationBundle holds the outbound notification pipeline.
type NotificationBundle struct {
	SDK      *infraLark.SDKClient
	Gateway  port.NotificationGateway
	Composer port.MessageComposer
}

// ProvideDatabase opens the database, runs pending migrations and wraps it in a
// transaction manager.
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

	if _, err := database.NewMigrator(conn, logger).Up(context.Background(), migrationSource(cfg)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewTxManager(conn.DB, logger,
			sqlite.WithBusyRetry(cfg.BusyRetries, 50*time.Millisecond)),
	}, nil
}

// migrationSource prefers an on-disk directory when one is configured
func migrationSource(cfg *DatabaseConfig) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
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
		Assignment:      repository.NewAssignmentRepository(sqlDB, logger),
		History:         repository.NewHistoryRepository(sqlDB, logger),
		NotificationLog: repository.NewNotificationLogRepository(sqlDB, logger),
		Payments:        repository.NewPaymentLedgerRepository(sqlDB, logger),
	}, nil
}

// ProvideStorage creates the blob store and the artifact store on top of it.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	blobs := storage.NewLocalBlobStore(cfg.BaseDir, logger)

	return &StorageBundle{
		Blobs:     blobs,
		Artifacts: storage.NewLocalArtifactStore(blobs, logger, storage.WithMaxFileSize(cfg.MaxFileSize)),
	}, nil
}

// ProvideNotificationClients creates the Lark gateway and the message composer.
func ProvideNotificationClients(larkCfg *LarkConfig, openaiCfg *OpenAIConfig, logger *zap.Logger) (*NotificationBundle, error) {
	if larkCfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if openaiCfg == nil {
		return nil, fmt.Errorf("openai config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	sdk := infraLark.NewSDKClient(infraLark.Config{
		AppID:          larkCfg.AppID,
		AppSecret:      larkCfg.AppSecret,
		BaseURL:        larkCfg.BaseURL,
		RequestTimeout: larkCfg.RequestTimeout,
	}, logger)
	gateway := infraLark.NewEmailGateway(sdk, infraLark.GatewayConfig{
		EmailDomain: larkCfg.EmailDomain,
		Locale:      larkCfg.Locale,
	}, logger)

	templates, err := loadTemplates(openaiCfg.TemplatesPath)
	if err != nil {
		return nil, err
	}

	composer := openai.NewComposer(openai.ComposerConfig{
		APIKey:      openaiCfg.APIKey,
		BaseURL:     openaiCfg.BaseURL,
		Model:       openaiCfg.Model,
		Temperature: openaiCfg.Temperature,
		MaxTokens:   openaiCfg.MaxTokens,
	}, templates, logger)

	if openaiCfg.APIKey == "" {
		logger.Info("OpenAI api key not set, notifications use template copy only")
	}

	return &NotificationBundle{
		SDK:      sdk,
		Gateway:  gateway,
		Composer: composer,
	}, nil
}

func loadTemplates(path string) (*openai.TemplateSet, error) {
	if path == "" {
		templates, err := openai.DefaultTemplates()
		if err != nil {
			return nil, fmt.Errorf("failed to load default templates: %w", err)
		}
		return templates, nil
	}

	templates, err := openai.LoadTemplates(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates from %s: %w", path, err)
	}
	return templates, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(NewZapLogger(logger)),
	), nil
}

// ProvideEventPublisher creates the Kafka publisher and subscribes it to the dispatcher.
// It returns nil when no brokers are configured.
func ProvideEventPublisher(cfg *KafkaConfig, d dispatcher.Dispatcher, logger *zap.Logger) (*infraKafka.EventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("kafka config is required")
	}
	if d == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if !cfg.Enabled() {
		logger.Info("Kafka brokers not configured, event publishing disabled")
		return nil, nil
	}

	publisher := infraKafka.NewEventPublisher(infraKafka.Config{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		WriteTimeout: cfg.WriteTimeout,
	}, logger)
	publisher.Register(d)

	logger.Info("Kafka event publisher registered",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return publisher, nil
}

// EngineDeps holds dependencies required for creating the fulfillment engine.
type EngineDeps struct {
	Repos         *RepositoryBundle
	TxManager     port.TransactionManager
	Artifacts     port.ArtifactStore
	Notifier      workflow.Notifier
	Dispatcher    dispatcher.Dispatcher
	StrictPayment bool
	Logger        *zap.Logger
}

// ProvideEngine creates the fulfillment engine and registers the event audit log.
func ProvideEngine(deps *EngineDeps) (workflow.FulfillmentEngine, error) {
	if deps == nil {
		return nil, fmt.Errorf("engine dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Artifacts == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	engine := workflow.NewEngine(
		deps.Repos.Assignment,
		deps.Repos.History,
		deps.Repos.Payments,
		deps.Artifacts,
		deps.TxManager,
		deps.Notifier,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(NewZapLogger(deps.Logger)),
		workflow.WithStrictPaymentGating(deps.StrictPayment),
	)

	deps.Dispatcher.Subscribe(dispatcher.AnyEvent, "event_audit_log", eventAuditHandler(deps.Logger))

	return engine, nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos         *RepositoryBundle
	TxManager     port.TransactionManager
	Notifications *NotificationBundle
	Downloads     port.ArtifactReader
	Dispatcher    dispatcher.Dispatcher
	ReportFormats []string
	Logger        *zap.Logger
}

// ProvideNotificationService creates the notifier the engine calls after each commit.
func ProvideNotificationService(deps *ServiceDeps) (service.NotificationService, error) {
	if deps == nil || deps.Repos == nil || deps.Notifications == nil {
		return nil, fmt.Errorf("notification dependencies are required")
	}

	return service.NewNotificationService(
		deps.Repos.Assignment,
		deps.Repos.NotificationLog,
		deps.Notifications.Composer,
		deps.Notifications.Gateway,
		NewZapLogger(deps.Logger),
	), nil
}

// ProvideServices creates the remaining application services. Payment confirmations share
// the engine's locker.
func ProvideServices(deps *ServiceDeps, engine workflow.FulfillmentEngine, notifier service.NotificationService) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	serviceLogger := NewZapLogger(deps.Logger)

	exporters, err := provideExporters(deps.ReportFormats, deps.Logger)
	if err != nil {
		return nil, err
	}

	return &ServiceBundle{
		Assignment: service.NewAssignmentService(
			deps.Repos.Assignment,
			deps.Repos.History,
			deps.Repos.NotificationLog,
			deps.Repos.Payments,
			deps.Downloads,
			deps.TxManager,
			deps.Dispatcher,
			serviceLogger,
		),
		Notification: notifier,
		Payment: service.NewPaymentService(
			deps.Repos.Assignment,
			deps.Repos.Payments,
			deps.TxManager,
			engine.Locker(),
			deps.Dispatcher,
			serviceLogger,
		),
		Report: service.NewReportService(deps.Repos.Assignment, serviceLogger, exporters...),
	}, nil
}

// ProvideWorkers registers background workers. The retry worker shares the
// engine's lock so it never notifies for a state that is mid-transition.
func ProvideWorkers(cfg *WorkerConfig, repos *RepositoryBundle, notifier service.NotificationService, engine workflow.FulfillmentEngine, logger *zap.Logger) (*worker.Manager, error) {
	manager := worker.NewManager(logger)
	if !cfg.RetryEnabled {
		logger.Info("Notification retry worker disabled")
		return manager, nil
	}
	if repos == nil || notifier == nil || engine == nil {
		return nil, fmt.Errorf("retry worker dependencies are required")
	}

	manager.Register(worker.NewNotificationRetryWorker(
		worker.RetryWorkerConfig{
			PollInterval: cfg.RetryInterval,
			BatchSize:    cfg.BatchSize,
			MaxAttempts:  cfg.MaxAttempts,
			Window:       cfg.RetryWindow,
		},
		repos.NotificationLog,
		repos.Assignment,
		notifier,
		engine.Locker(),
		logger,
	))

	return manager, nil
}

func provideExporters(formats []string, logger *zap.Logger) ([]port.ReportExporter, error) {
	if len(formats) == 0 {
		formats = []string{"xlsx", "csv"}
	}

	exporters := make([]port.ReportExporter, 0, len(formats))
	for _, f := range formats {
		switch f {
		case "xlsx":
			exporters = append(exporters, report.NewXLSXExporter(logger))
		case "csv":
			exporters = append(exporters, report.NewCSVExporter())
		default:
			return nil, fmt.Errorf("unsupported report format %q", f)
		}
	}
	return exporters, nil
}

// eventAuditHandler writes every domain event to the structured log
func eventAuditHandler(logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		logger.Info("Domain event",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.String("assignment_id", evt.AssignmentID),
			zap.Any("payload", evt.Payload))
		return nil
	}
}
