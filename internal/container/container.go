package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/dispatcher"
	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/application/service"
	"github.com/garyjia/assignment-fulfillment/internal/application/workflow"
	"github.com/garyjia/assignment-fulfillment/internal/domain/event"
	infraKafka "github.com/garyjia/assignment-fulfillment/internal/infrastructure/external/kafka"
	"github.com/garyjia/assignment-fulfillment/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/assignment-fulfillment/internal/infrastructure/worker"
	"github.com/garyjia/assignment-fulfillment/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and are torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	conn         *database.DB
	db           *sqlite.TxManager
	repositories *RepositoryBundle

	// Infrastructure - External
	notifications *NotificationBundle
	publisher     *infraKafka.EventPublisher

	// Infrastructure - Storage
	storage *StorageBundle

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.FulfillmentEngine
	services   *ServiceBundle

	// Background
	workers *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Assignment      port.AssignmentRepository
	History         port.HistoryRepository
	NotificationLog port.NotificationLogRepository
	Payments        port.PaymentLedger
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Assignment   service.AssignmentService
	Notification service.NotificationService
	Payment      service.PaymentService
	Report       service.ReportService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// Healthy reports whether every component is healthy
func (s *HealthStatus) Healthy() bool {
	return s.Overall
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start brings components up in dependency order. On failure whatever
// already started is shut down again before the error is returned.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	steps := []struct {
		name string
		init func() error
	}{
		{"database", c.initDatabase},
		{"storage", c.initStorage},
		{"external clients", c.initExternalClients},
		{"dispatcher", c.initDispatcher},
		{"engine and services", c.initEngineAndServices},
		{"workers", c.initWorkers},
	}
	for _, step := range steps {
		if err := step.init(); err != nil {
			if shutdownErr := c.shutdown(); shutdownErr != nil {
				c.logger.Error("Cleanup after failed start", zap.Error(shutdownErr))
			}
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully", zap.Int("workers", c.workers.Count()))
	return nil
}

// Close shuts components down in reverse start order. A closed container cannot be restarted.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}
	c.logger.Info("Closing container")

	err := c.shutdown()
	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

// shutdown releases whatever has been started. Workers go first, then the
// dispatcher so in-flight async handlers finish before the publisher closes.
func (c *Container) shutdown() error {
	if c.cancel != nil {
		c.cancel()
	}

	var closers []struct {
		name  string
		close func() error
	}
	add := func(name string, fn func() error) {
		closers = append(closers, struct {
			name  string
			close func() error
		}{name, fn})
	}
	if c.workers != nil {
		add("workers", c.workers.Stop)
	}
	if c.dispatcher != nil {
		add("dispatcher", c.dispatcher.Close)
	}
	if c.publisher != nil {
		add("event publisher", c.publisher.Close)
	}
	if c.conn != nil {
		add("database", c.conn.Close)
	}

	var errs []error
	for _, cl := range closers {
		if err := cl.close(); err != nil {
			c.logger.Error("Failed to close component", zap.String("component", cl.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", cl.name, err))
			continue
		}
		c.logger.Info("Closed", zap.String("component", cl.name))
	}

	c.workers, c.dispatcher, c.publisher, c.conn = nil, nil, nil, nil
	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health checks every component. Overall is false when any of them is unhealthy;
// the Kafka publisher is optional and reports "disabled" when unset.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall: true,
		Components: map[string]ComponentHealth{
			"database":        c.databaseHealth(),
			"dispatcher":      c.dispatcherHealth(),
			"engine":          c.engineHealth(),
			"workers":         c.workersHealth(),
			"event_publisher": c.publisherHealth(),
		},
	}
	for _, h := range status.Components {
		if !h.Healthy {
			status.Overall = false
		}
	}
	return status
}

func (c *Container) databaseHealth() ComponentHealth {
	if c.conn == nil {
		return notInitialized()
	}
	if err := c.conn.Ping(); err != nil {
		return ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)}
	}
	version, err := database.NewMigrator(c.conn, c.logger).Version(context.Background())
	if err != nil {
		return ComponentHealth{Healthy: false, Message: err.Error()}
	}
	return ComponentHealth{Healthy: true, Message: fmt.Sprintf("schema v%d", version)}
}

func (c *Container) dispatcherHealth() ComponentHealth {
	if c.dispatcher == nil {
		return notInitialized()
	}
	stats := c.dispatcher.Stats()
	return ComponentHealth{
		Healthy: true,
		Message: fmt.Sprintf("delivered=%d failed=%d dropped=%d pending=%d status_subscribers=%d",
			stats.Delivered, stats.Failed, stats.Dropped, stats.Pending,
			len(c.dispatcher.ListHandlers(event.TypeStatusChanged))),
	}
}

func (c *Container) engineHealth() ComponentHealth {
	if c.engine == nil {
		return notInitialized()
	}
	return ComponentHealth{Healthy: true}
}

func (c *Container) publisherHealth() ComponentHealth {
	if c.publisher == nil {
		return ComponentHealth{Healthy: true, Message: "disabled"}
	}
	return ComponentHealth{Healthy: true}
}

func (c *Container) workersHealth() ComponentHealth {
	if c.workers == nil || c.workers.Count() == 0 {
		return ComponentHealth{Healthy: true, Message: "disabled"}
	}
	if !c.workers.IsRunning() {
		return ComponentHealth{Healthy: false, Message: "stopped"}
	}

	running := 0
	var failed []string
	for _, st := range c.workers.Statuses() {
		switch st.State {
		case worker.StateRunning:
			running++
		case worker.StateFailed:
			failed = append(failed, fmt.Sprintf("%s: %s", st.Name, st.Error))
		}
	}
	if len(failed) > 0 {
		return ComponentHealth{Healthy: false, Message: fmt.Sprintf("%d running, failed %s", running, strings.Join(failed, "; "))}
	}
	return ComponentHealth{Healthy: true, Message: fmt.Sprintf("%d running", running)}
}

func notInitialized() ComponentHealth {
	return ComponentHealth{Healthy: false, Message: "not initialized"}
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.conn = dbBundle.Conn
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.conn.DB, c.logger)
	if err != nil {
		return err
	}

	c.repositories = repos
	return nil
}

func (c *Container) initStorage() error {
	storageBundle, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return err
	}

	c.storage = storageBundle
	return nil
}

func (c *Container) initExternalClients() error {
	notifications, err := ProvideNotificationClients(&c.config.Lark, &c.config.OpenAI, c.logger)
	if err != nil {
		return err
	}

	c.notifications = notifications
	return nil
}

func (c *Container) initDispatcher() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	publisher, err := ProvideEventPublisher(&c.config.Kafka, c.dispatcher, c.logger)
	if err != nil {
		return err
	}
	c.publisher = publisher

	return nil
}

func (c *Container) initEngineAndServices() error {
	deps := &ServiceDeps{
		Repos:         c.repositories,
		TxManager:     c.db,
		Notifications: c.notifications,
		Downloads:     c.storage.Artifacts,
		Dispatcher:    c.dispatcher,
		ReportFormats: c.config.Report.Formats,
		Logger:        c.logger,
	}

	notifier, err := ProvideNotificationService(deps)
	if err != nil {
		return err
	}

	engine, err := ProvideEngine(&EngineDeps{
		Repos:         c.repositories,
		TxManager:     c.db,
		Artifacts:     c.storage.Artifacts,
		Notifier:      notifier,
		Dispatcher:    c.dispatcher,
		StrictPayment: c.config.Workflow.StrictPayment,
		Logger:        c.logger,
	})
	if err != nil {
		return err
	}
	c.engine = engine

	services, err := ProvideServices(deps, engine, notifier)
	if err != nil {
		return err
	}
	c.services = services

	return nil
}

func (c *Container) initWorkers() error {
	manager, err := ProvideWorkers(&c.config.Worker, c.repositories, c.services.Notification, c.engine, c.logger)
	if err != nil {
		return err
	}
	c.workers = manager

	return c.workers.Start(c.ctx)
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Storage returns the blob and artifact stores.
func (c *Container) Storage() *StorageBundle {
	return c.storage
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Engine returns the fulfillment engine.
func (c *Container) Engine() workflow.FulfillmentEngine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// ZapLogger adapts zap.Logger to the narrow Logger interfaces of the
// application and interface layers.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger wraps a zap logger
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: logger}
}

func (a *ZapLogger) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *ZapLogger) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
