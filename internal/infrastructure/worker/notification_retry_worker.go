package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/application/service"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	domainwf "github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

// RetryWorkerConfig holds configuration for the notification retry worker
type RetryWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int

	// MaxAttempts caps automatic tries per dedupe key, the first send included
	MaxAttempts int

	// Window bounds how far back failed attempts are considered
	Window time.Duration
}

// DefaultRetryWorkerConfig returns default configuration
func DefaultRetryWorkerConfig() RetryWorkerConfig {
	return RetryWorkerConfig{
		PollInterval: time.Minute,
		BatchSize:    20,
		MaxAttempts:  5,
		Window:       24 * time.Hour,
	}
}

// Notifier sends the template for an assignment's current status
type Notifier interface {
	NotifyState(ctx context.Context, assignment *entity.Assignment, resend bool) (bool, error)
}

// Locker serializes writers of one assignment
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// RetryStats is a snapshot of worker progress
type RetryStats struct {
	Running   bool
	Sent      int
	Failed    int
	Skipped   int
	LastRun   time.Time
	LastError error
}

// NotificationRetryWorker re-sends state notifications whose last attempt failed
type NotificationRetryWorker struct {
	config RetryWorkerConfig

	notificationLog port.NotificationLogRepository
	assignmentRepo  port.AssignmentRepository
	notifier        Notifier
	locker          Locker
	logger          *zap.Logger
	now             func() time.Time

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	sent      int
	failed    int
	skipped   int
	lastRun   time.Time
	lastError error
}

// NewNotificationRetryWorker creates a new retry worker
func NewNotificationRetryWorker(
	config RetryWorkerConfig,
	notificationLog port.NotificationLogRepository,
	assignmentRepo port.AssignmentRepository,
	notifier Notifier,
	locker Locker,
	logger *zap.Logger,
) *NotificationRetryWorker {
	defaults := DefaultRetryWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}

	return &NotificationRetryWorker{
		config:          config,
		notificationLog: notificationLog,
		assignmentRepo:  assignmentRepo,
		notifier:        notifier,
		locker:          locker,
		logger:          logger,
		now:             time.Now,
	}
}

// Start begins the polling loop
func (w *NotificationRetryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("notification retry worker already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("NotificationRetryWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Int("max_attempts", w.config.MaxAttempts))

	go w.pollLoop(loopCtx, w.done)

	return nil
}

// Stop cancels the loop and waits for the current batch to finish
func (w *NotificationRetryWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("NotificationRetryWorker stopped",
		zap.Int("sent", stats.Sent),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped))

	return nil
}

// Name returns the worker name for identification
func (w *NotificationRetryWorker) Name() string {
	return "NotificationRetryWorker"
}

// Stats returns the current counters
func (w *NotificationRetryWorker) Stats() RetryStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return RetryStats{
		Running:   w.isRunning,
		Sent:      w.sent,
		Failed:    w.failed,
		Skipped:   w.skipped,
		LastRun:   w.lastRun,
		LastError: w.lastError,
	}
}

func (w *NotificationRetryWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Retry loop context cancelled")
			return

		case <-ticker.C:
			if err := w.RetryPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("Failed to retry pending notifications", zap.Error(err))
			}
		}
	}
}

// RetryPending runs one batch. Per-assignment failures are counted, not returned.
func (w *NotificationRetryWorker) RetryPending(ctx context.Context) error {
	since := w.now().Add(-w.config.Window)
	pending, err := w.notificationLog.ListFailedPending(ctx, since, w.config.MaxAttempts, w.config.BatchSize)

	w.mu.Lock()
	w.lastRun = w.now()
	w.lastError = err
	w.mu.Unlock()

	if err != nil {
		return fmt.Errorf("list pending notifications: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	w.logger.Info("Retrying failed notifications", zap.Int("count", len(pending)))

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.retry(ctx, p)
	}

	return nil
}

func (w *NotificationRetryWorker) retry(ctx context.Context, p *entity.PendingNotification) {
	unlock, err := w.locker.Lock(ctx, p.AssignmentID)
	if err != nil {
		w.count(&w.failed)
		return
	}
	defer unlock()

	// Re-read under the lock: the assignment may have moved on since the failure
	assignment, err := w.assignmentRepo.GetByID(ctx, p.AssignmentID)
	if err != nil {
		if errors.Is(err, domainwf.ErrNotFound) {
			w.count(&w.skipped)
			return
		}
		w.logger.Error("Failed to load assignment for retry",
			zap.String("assignment_id", p.AssignmentID),
			zap.Error(err))
		w.count(&w.failed)
		return
	}

	if service.TemplateForState(assignment.Status) != p.Template {
		w.logger.Debug("Skipping stale notification",
			zap.String("assignment_id", p.AssignmentID),
			zap.String("template", p.Template),
			zap.String("status", assignment.Status.String()))
		w.count(&w.skipped)
		return
	}

	sent, err := w.notifier.NotifyState(ctx, assignment, false)
	if err != nil {
		w.logger.Warn("Notification retry failed",
			zap.String("assignment_id", p.AssignmentID),
			zap.String("template", p.Template),
			zap.Int("attempts", p.Attempts+1),
			zap.Error(err))
		w.count(&w.failed)
		return
	}

	if !sent {
		w.count(&w.skipped)
		return
	}

	w.logger.Info("Notification retry succeeded",
		zap.String("assignment_id", p.AssignmentID),
		zap.String("template", p.Template),
		zap.Int("attempts", p.Attempts+1))
	w.count(&w.sent)
}

func (w *NotificationRetryWorker) count(counter *int) {
	w.mu.Lock()
	*counter++
	w.mu.Unlock()
}

var _ Worker = (*NotificationRetryWorker)(nil)
