package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/garyjia/assignment-fulfillment/internal/application/dispatcher"
	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/domain/event"
	domainwf "github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

// Mock implementations

type mockAssignmentRepo struct {
	mu          sync.Mutex
	assignments map[string]*entity.Assignment
	updateErr   error
	getDelay    time.Duration
}

func newMockAssignmentRepo(seed ...*entity.Assignment) *mockAssignmentRepo {
	r := &mockAssignmentRepo{assignments: make(map[string]*entity.Assignment)}
	for _, a := range seed {
		r.assignments[a.ID] = a.Clone()
	}
	return r
}

func (m *mockAssignmentRepo) Create(ctx context.Context, a *entity.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[a.ID] = a.Clone()
	return nil
}

func (m *mockAssignmentRepo) GetByID(ctx context.Context, id string) (*entity.Assignment, error) {
	if m.getDelay > 0 {
		time.Sleep(m.getDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, domainwf.ErrNotFound
	}
	return a.Clone(), nil
}

func (m *mockAssignmentRepo) Update(ctx context.Context, a *entity.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.assignments[a.ID]
	if !ok {
		return domainwf.ErrNotFound
	}
	if stored.Version != a.Version {
		return port.ErrConcurrentModification
	}
	a.Version++
	m.assignments[a.ID] = a.Clone()
	return nil
}

func (m *mockAssignmentRepo) SetLastNotified(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.assignments[id]; ok {
		a.LastNotifiedAt = &at
	}
	return nil
}

func (m *mockAssignmentRepo) List(ctx context.Context, bucket string) ([]*entity.Assignment, error) {
	return nil, nil
}

// snapshot returns the stored record serialized, for byte-for-byte comparisons
func (m *mockAssignmentRepo) snapshot(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, _ := json.Marshal(m.assignments[id])
	return string(b)
}

func (m *mockAssignmentRepo) set(a *entity.Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[a.ID] = a.Clone()
}

type mockHistoryRepo struct {
	mu        sync.Mutex
	histories []*entity.AssignmentHistory
	createErr error
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.AssignmentHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.histories = append(m.histories, history)
	return nil
}

func (m *mockHistoryRepo) GetByAssignmentID(ctx context.Context, assignmentID string) ([]*entity.AssignmentHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*entity.AssignmentHistory
	for _, h := range m.histories {
		if h.AssignmentID == assignmentID {
			result = append(result, h)
		}
	}
	return result, nil
}

type mockLedger struct {
	mu       sync.Mutex
	requests []*entity.PaymentRequest
}

func (m *mockLedger) RecordRequest(ctx context.Context, req *entity.PaymentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return nil
}

func (m *mockLedger) Confirm(ctx context.Context, assignmentID string, kind entity.PaymentKind, at time.Time) error {
	return nil
}

func (m *mockLedger) GetByAssignmentID(ctx context.Context, assignmentID string) ([]*entity.PaymentRequest, error) {
	return nil, nil
}

type mockArtifactStore struct {
	mu       sync.Mutex
	stored   []entity.ArtifactRef
	deleted  []entity.ArtifactRef
	failOn   string
	storeErr error
}

func (m *mockArtifactStore) Store(ctx context.Context, assignmentID string, upload entity.FileUpload, fileType string) (entity.ArtifactRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && upload.FileName == m.failOn {
		return entity.ArtifactRef{}, m.storeErr
	}
	ref := entity.ArtifactRef{
		FileName: upload.FileName,
		FilePath: assignmentID + "/" + upload.FileName,
		FileType: fileType,
		Size:     int64(len(upload.Content)),
	}
	m.stored = append(m.stored, ref)
	return ref, nil
}

func (m *mockArtifactStore) Delete(ctx context.Context, ref entity.ArtifactRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ref)
	return nil
}

// mockTxManager restores the assignment store when fn fails
type mockTxManager struct {
	repo      *mockAssignmentRepo
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	var backup map[string]*entity.Assignment
	if m.repo != nil {
		m.repo.mu.Lock()
		backup = make(map[string]*entity.Assignment, len(m.repo.assignments))
		for k, v := range m.repo.assignments {
			backup[k] = v.Clone()
		}
		m.repo.mu.Unlock()
	}
	if err := fn(ctx); err != nil {
		if m.repo != nil {
			m.repo.mu.Lock()
			m.repo.assignments = backup
			m.repo.mu.Unlock()
		}
		return err
	}
	return nil
}

type mockNotifier struct {
	mu      sync.Mutex
	calls   []notifyCall
	sendErr error
}

type notifyCall struct {
	status domainwf.State
	resend bool
}

func (m *mockNotifier) NotifyState(ctx context.Context, a *entity.Assignment, resend bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, notifyCall{status: a.Status, resend: resend})
	if m.sendErr != nil {
		return false, m.sendErr
	}
	return true, nil
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeMany(eventTypes []event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.Subscription {
	return nil
}

func (m *mockDispatcher) Stats() dispatcher.Stats {
	return dispatcher.Stats{}
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) ofType(t event.Type) []*event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fixture wires an engine over in-memory collaborators
type fixture struct {
	repo       *mockAssignmentRepo
	history    *mockHistoryRepo
	ledger     *mockLedger
	artifacts  *mockArtifactStore
	notifier   *mockNotifier
	dispatcher *mockDispatcher
	engine     FulfillmentEngine
}

func newFixture(opts ...EngineOption) *fixture {
	f := &fixture{
		repo:       newMockAssignmentRepo(),
		history:    &mockHistoryRepo{},
		ledger:     &mockLedger{},
		artifacts:  &mockArtifactStore{},
		notifier:   &mockNotifier{},
		dispatcher: &mockDispatcher{},
	}
	opts = append([]EngineOption{WithDispatcher(f.dispatcher)}, opts...)
	f.engine = NewEngine(f.repo, f.history, f.ledger, f.artifacts, &mockTxManager{repo: f.repo}, f.notifier, opts...)
	return f
}

// seed stores a project assignment in the given status
func (f *fixture) seed(status domainwf.State) *entity.Assignment {
	return f.seedKind(status, entity.ItemKindProject)
}

func (f *fixture) seedKind(status domainwf.State, kind entity.ItemKind) *entity.Assignment {
	a := entity.NewAssignment("student-1", "item-"+string(status), kind, "admin", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	a.Status = status
	f.repo.set(a)
	return a
}

var errSMTP = errors.New("smtp: connection refused")
