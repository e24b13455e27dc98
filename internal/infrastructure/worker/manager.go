// Package worker runs background jobs next to the HTTP server.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker is a background job with its own loop
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// State of one registered worker
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateFailed  State = "failed"
)

// Status is a point-in-time view of one worker for health reporting
type Status struct {
	Name  string `json:"name"`
	State State  `json:"state"`
	Error string `json:"error,omitempty"`
}

type slot struct {
	worker Worker
	state  State
	err    error
}

// Manager starts registered workers in order and stops them in reverse.
// A worker that fails to start is marked failed; the others still run.
type Manager struct {
	mu      sync.RWMutex
	slots   []*slot
	running bool
	logger  *zap.Logger
}

// NewManager creates an empty manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger.Named("workers")}
}

// Register adds w. It takes effect on the next Start.
func (m *Manager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = append(m.slots, &slot{worker: w, state: StateIdle})
}

// Start runs every registered worker
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("workers already running")
	}
	m.running = true

	for _, s := range m.slots {
		if err := s.worker.Start(ctx); err != nil {
			s.state, s.err = StateFailed, err
			m.logger.Error("Worker failed to start", zap.String("worker", s.worker.Name()), zap.Error(err))
			continue
		}
		s.state, s.err = StateRunning, nil
		m.logger.Info("Worker started", zap.String("worker", s.worker.Name()))
	}
	return nil
}

// Stop stops running workers in reverse start order and joins their errors
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	var errs []error
	for i := len(m.slots) - 1; i >= 0; i-- {
		s := m.slots[i]
		if s.state != StateRunning {
			continue
		}
		s.state = StateIdle
		if err := s.worker.Stop(); err != nil {
			m.logger.Error("Worker failed to stop", zap.String("worker", s.worker.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.worker.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to stop %d workers: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Name identifies the manager itself as a Worker
func (m *Manager) Name() string { return "workers" }

// Count returns the number of registered workers
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}

// IsRunning reports whether Start has run without a matching Stop
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Statuses lists every registered worker in registration order
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.slots))
	for _, s := range m.slots {
		st := Status{Name: s.worker.Name(), State: s.state}
		if s.err != nil {
			st.Error = s.err.Error()
		}
		out = append(out, st)
	}
	return out
}

var _ Worker = (*Manager)(nil)
