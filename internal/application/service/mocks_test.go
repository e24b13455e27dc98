package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/assignment-fulfillment/internal/application/dispatcher"
	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/domain/event"
	domainwf "github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

// Mock repositories
type mockAssignmentRepo struct {
	createFunc          func(ctx context.Context, a *entity.Assignment) error
	getByIDFunc         func(ctx context.Context, id string) (*entity.Assignment, error)
	updateFunc          func(ctx context.Context, a *entity.Assignment) error
	setLastNotifiedFunc func(ctx context.Context, id string, at time.Time) error
	listFunc            func(ctx context.Context, bucket string) ([]*entity.Assignment, error)
}

func (m *mockAssignmentRepo) Create(ctx context.Context, a *entity.Assignment) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, a)
	}
	return nil
}

func (m *mockAssignmentRepo) GetByID(ctx context.Context, id string) (*entity.Assignment, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, domainwf.ErrNotFound
}

func (m *mockAssignmentRepo) Update(ctx context.Context, a *entity.Assignment) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, a)
	}
	a.Version++
	return nil
}

func (m *mockAssignmentRepo) SetLastNotified(ctx context.Context, id string, at time.Time) error {
	if m.setLastNotifiedFunc != nil {
		return m.setLastNotifiedFunc(ctx, id, at)
	}
	return nil
}

func (m *mockAssignmentRepo) List(ctx context.Context, bucket string) ([]*entity.Assignment, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, bucket)
	}
	return []*entity.Assignment{}, nil
}

type mockHistoryRepo struct {
	createFunc func(ctx context.Context, h *entity.AssignmentHistory) error
	created    []*entity.AssignmentHistory
}

func (m *mockHistoryRepo) Create(ctx context.Context, h *entity.AssignmentHistory) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, h)
	}
	m.created = append(m.created, h)
	return nil
}

func (m *mockHistoryRepo) GetByAssignmentID(ctx context.Context, assignmentID string) ([]*entity.AssignmentHistory, error) {
	return m.created, nil
}

type mockNotificationLog struct {
	findSentFunc func(ctx context.Context, key string) (*entity.NotificationRecord, error)
	createFunc   func(ctx context.Context, r *entity.NotificationRecord) error
	records      []*entity.NotificationRecord
}

func (m *mockNotificationLog) Create(ctx context.Context, r *entity.NotificationRecord) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, r)
	}
	m.records = append(m.records, r)
	return nil
}

func (m *mockNotificationLog) FindSent(ctx context.Context, key string) (*entity.NotificationRecord, error) {
	if m.findSentFunc != nil {
		return m.findSentFunc(ctx, key)
	}
	for _, r := range m.records {
		if r.DedupeKey == key && r.Status == entity.NotificationStatusSent {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockNotificationLog) GetByAssignmentID(ctx context.Context, assignmentID string) ([]*entity.NotificationRecord, error) {
	return m.records, nil
}

func (m *mockNotificationLog) ListFailedPending(ctx context.Context, since time.Time, maxAttempts, limit int) ([]*entity.PendingNotification, error) {
	return []*entity.PendingNotification{}, nil
}

type mockLedger struct {
	confirmFunc func(ctx context.Context, id string, kind entity.PaymentKind, at time.Time) error
	confirmed   []entity.PaymentKind
}

func (m *mockLedger) RecordRequest(ctx context.Context, req *entity.PaymentRequest) error {
	return nil
}

func (m *mockLedger) Confirm(ctx context.Context, id string, kind entity.PaymentKind, at time.Time) error {
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, id, kind, at)
	}
	m.confirmed = append(m.confirmed, kind)
	return nil
}

func (m *mockLedger) GetByAssignmentID(ctx context.Context, assignmentID string) ([]*entity.PaymentRequest, error) {
	return []*entity.PaymentRequest{}, nil
}

type mockArtifactReader struct {
	blobs map[string]string
	err   error
}

func (m *mockArtifactReader) Open(ctx context.Context, filePath string) (io.ReadCloser, error) {
	if m.err != nil {
		return nil, m.err
	}
	content, ok := m.blobs[filePath]
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrBlobNotFound, filePath)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockComposer struct {
	composeFunc func(ctx context.Context, a *entity.Assignment, template string) (*entity.NotificationMessage, error)
}

func (m *mockComposer) Compose(ctx context.Context, a *entity.Assignment, template string) (*entity.NotificationMessage, error) {
	if m.composeFunc != nil {
		return m.composeFunc(ctx, a, template)
	}
	return &entity.NotificationMessage{
		AssignmentID: a.ID,
		Recipient:    a.StudentRef,
		Template:     template,
		Subject:      template,
		Body:         "body",
	}, nil
}

type mockGateway struct {
	sendFunc func(ctx context.Context, msg *entity.NotificationMessage) error
	sent     []*entity.NotificationMessage
}

func (m *mockGateway) Send(ctx context.Context, msg *entity.NotificationMessage) error {
	if m.sendFunc != nil {
		return m.sendFunc(ctx, msg)
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockExporter struct {
	format     string
	exportFunc func(ctx context.Context, assignments []*entity.Assignment, w io.Writer) error
}

func (m *mockExporter) Format() string      { return m.format }
func (m *mockExporter) ContentType() string { return "text/" + m.format }

func (m *mockExporter) Export(ctx context.Context, assignments []*entity.Assignment, w io.Writer) error {
	if m.exportFunc != nil {
		return m.exportFunc(ctx, assignments, w)
	}
	_, err := io.WriteString(w, m.format)
	return err
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// eventRecorder subscribes to every event type and keeps what it saw
type eventRecorder struct {
	mu     sync.Mutex
	events []*event.Event
}

func newRecordingDispatcher() (dispatcher.Dispatcher, *eventRecorder) {
	rec := &eventRecorder{}
	d := dispatcher.NewDispatcher()
	d.Subscribe(dispatcher.AnyEvent, "recorder", func(ctx context.Context, evt *event.Event) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.events = append(rec.events, evt)
		return nil
	})
	return d, rec
}

func (r *eventRecorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
