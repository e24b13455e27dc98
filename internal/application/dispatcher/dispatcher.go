// Package dispatcher fans assignment events out to in-process subscribers
// such as the audit log and the Kafka publisher.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/assignment-fulfillment/internal/domain/event"
)

const defaultQueueSize = 256

// Dispatcher routes events to registered handlers
type Dispatcher interface {
	// Subscribe registers a named handler for an event type, or AnyEvent
	Subscribe(eventType event.Type, name string, handler Handler)

	// SubscribeMany registers one named handler for several event types
	SubscribeMany(eventTypes []event.Type, name string, handler Handler)

	// Dispatch runs the handlers in registration order and stops at the first error
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync queues the event for background delivery and returns immediately.
	// Queued events are delivered one at a time in the order they were queued.
	// When the queue is full the event is dropped and counted.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// ListHandlers returns the subscriptions that receive an event type
	ListHandlers(eventType event.Type) []Subscription

	// Stats returns delivery counters
	Stats() Stats

	// Close stops accepting events and drains the queue
	Close() error
}

// Stats counts background deliveries
type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
	Pending   int
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type queuedEvent struct {
	ctx context.Context
	evt *event.Event
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]subscription
	logger   Logger

	queueSize int
	queue     chan queuedEvent
	done      chan struct{}

	// sendMu orders DispatchAsync sends against closing the queue
	sendMu sync.RWMutex
	closed bool

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithQueueSize bounds the number of events waiting for background delivery
func WithQueueSize(n int) Option {
	return func(d *eventDispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// NewDispatcher creates a dispatcher and starts its delivery goroutine
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers:  make(map[event.Type][]subscription),
		queueSize: defaultQueueSize,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.queue = make(chan queuedEvent, d.queueSize)
	go d.run()

	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], subscription{
		Subscription: Subscription{Name: name, EventType: eventType},
		handler:      handler,
	})

	d.logInfo("Handler registered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) SubscribeMany(eventTypes []event.Type, name string, handler Handler) {
	for _, t := range eventTypes {
		d.Subscribe(t, name, handler)
	}
}

// subscribers returns the handlers for a type followed by the wildcard ones
func (d *eventDispatcher) subscribers(eventType event.Type) []subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()

	subs := make([]subscription, 0, len(d.handlers[eventType])+len(d.handlers[AnyEvent]))
	subs = append(subs, d.handlers[eventType]...)
	if eventType != AnyEvent {
		subs = append(subs, d.handlers[AnyEvent]...)
	}
	return subs
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.sendMu.RLock()
	closed := d.closed
	d.sendMu.RUnlock()
	if closed {
		return fmt.Errorf("dispatcher is closed")
	}

	for _, sub := range d.subscribers(evt.Type) {
		if err := d.safeExecute(ctx, evt, sub); err != nil {
			d.logError("Handler error",
				"event_type", evt.Type,
				"assignment_id", evt.AssignmentID,
				"handler_name", sub.Name,
				"error", err,
			)
			return fmt.Errorf("handler %s failed: %w", sub.Name, err)
		}
	}

	return nil
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()

	if d.closed {
		d.logError("Dropping event, dispatcher is closed",
			"event_type", evt.Type,
			"assignment_id", evt.AssignmentID,
		)
		d.dropped.Add(1)
		return
	}

	select {
	case d.queue <- queuedEvent{ctx: ctx, evt: evt}:
	default:
		d.dropped.Add(1)
		d.logError("Dropping event, delivery queue is full",
			"event_type", evt.Type,
			"assignment_id", evt.AssignmentID,
			"queue_size", d.queueSize,
		)
	}
}

// run delivers queued events until the queue is closed
func (d *eventDispatcher) run() {
	defer close(d.done)

	for q := range d.queue {
		for _, sub := range d.subscribers(q.evt.Type) {
			if err := d.safeExecute(q.ctx, q.evt, sub); err != nil {
				d.failed.Add(1)
				d.logError("Async handler error",
					"event_type", q.evt.Type,
					"event_id", q.evt.ID,
					"assignment_id", q.evt.AssignmentID,
					"handler_name", sub.Name,
					"error", err,
				)
				continue
			}
			d.delivered.Add(1)
		}
	}
}

func (d *eventDispatcher) ListHandlers(eventType event.Type) []Subscription {
	subs := d.subscribers(eventType)
	out := make([]Subscription, len(subs))
	for i, s := range subs {
		out[i] = s.Subscription
	}
	return out
}

func (d *eventDispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
		Pending:   len(d.queue),
	}
}

func (d *eventDispatcher) Close() error {
	d.sendMu.Lock()
	if d.closed {
		d.sendMu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true
	close(d.queue)
	d.sendMu.Unlock()

	d.logInfo("Closing dispatcher, draining queue", "pending", len(d.queue))
	<-d.done

	stats := d.Stats()
	d.logInfo("Dispatcher closed",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)
	return nil
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return sub.handler(ctx, evt)
}

func (d *eventDispatcher) logInfo(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, keysAndValues...)
	}
}

func (d *eventDispatcher) logError(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, keysAndValues...)
	}
}
