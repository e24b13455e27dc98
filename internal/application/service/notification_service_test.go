package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	domainwf "github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

func testAssignment(status domainwf.State, version int64) *entity.Assignment {
	return &entity.Assignment{
		ID:         "asg-1",
		StudentRef: "stu@example.com",
		ItemRef:    "proj-1",
		ItemKind:   entity.ItemKindProject,
		Status:     status,
		Version:    version,
	}
}

func TestTemplateForState(t *testing.T) {
	for _, s := range domainwf.AllStates() {
		assert.NotEmpty(t, TemplateForState(s), "state %s has no template", s)
	}
	assert.Equal(t, entity.TemplateFilesReady, TemplateForState(domainwf.StateReadyForDownload))
	assert.Empty(t, TemplateForState(domainwf.State("bogus")))
}

func TestNotificationService_NotifyState(t *testing.T) {
	log := &mockNotificationLog{}
	gateway := &mockGateway{}
	var notifiedAt time.Time
	repo := &mockAssignmentRepo{
		setLastNotifiedFunc: func(ctx context.Context, id string, at time.Time) error {
			notifiedAt = at
			return nil
		},
	}
	svc := NewNotificationService(repo, log, &mockComposer{}, gateway, &mockLogger{})
	a := testAssignment(domainwf.StateInProgress, 4)

	sent, err := svc.NotifyState(context.Background(), a, false)
	require.NoError(t, err)
	assert.True(t, sent)

	require.Len(t, gateway.sent, 1)
	assert.Equal(t, entity.TemplateWorkStarted, gateway.sent[0].Template)

	require.Len(t, log.records, 1)
	rec := log.records[0]
	assert.Equal(t, "asg-1:work-started:v4", rec.DedupeKey)
	assert.Equal(t, entity.NotificationStatusSent, rec.Status)
	assert.False(t, rec.Resend)
	require.NotNil(t, rec.SentAt)
	assert.Equal(t, *rec.SentAt, notifiedAt)
	assert.Equal(t, rec.SentAt, a.LastNotifiedAt)
}

func TestNotificationService_DeduplicatesSameVersion(t *testing.T) {
	log := &mockNotificationLog{}
	gateway := &mockGateway{}
	svc := NewNotificationService(&mockAssignmentRepo{}, log, &mockComposer{}, gateway, &mockLogger{})
	a := testAssignment(domainwf.StateReadyForDemo, 6)

	first, err := svc.NotifyState(context.Background(), a, false)
	require.NoError(t, err)
	second, err := svc.NotifyState(context.Background(), a, false)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Len(t, gateway.sent, 1)
	assert.Len(t, log.records, 1)
}

func TestNotificationService_ResendAlwaysSends(t *testing.T) {
	log := &mockNotificationLog{}
	gateway := &mockGateway{}
	svc := NewNotificationService(&mockAssignmentRepo{}, log, &mockComposer{}, gateway, &mockLogger{})
	a := testAssignment(domainwf.StateReadyForDemo, 6)

	_, err := svc.NotifyState(context.Background(), a, false)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		sent, err := svc.NotifyState(context.Background(), a, true)
		require.NoError(t, err)
		assert.True(t, sent)
	}

	assert.Len(t, gateway.sent, 3)
	require.Len(t, log.records, 3)
	assert.True(t, log.records[1].Resend)
	assert.NotEqual(t, log.records[1].DedupeKey, log.records[2].DedupeKey)
}

func TestNotificationService_Failures(t *testing.T) {
	tests := []struct {
		name       string
		composeErr error
		sendErr    error
		wantMsg    string
	}{
		{name: "gateway error", sendErr: errors.New("smtp down"), wantMsg: "smtp down"},
		{name: "composer error", composeErr: errors.New("template missing"), wantMsg: "template missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &mockNotificationLog{}
			lastNotifiedCalled := false
			repo := &mockAssignmentRepo{
				setLastNotifiedFunc: func(ctx context.Context, id string, at time.Time) error {
					lastNotifiedCalled = true
					return nil
				},
			}
			composer := &mockComposer{}
			if tt.composeErr != nil {
				composer.composeFunc = func(ctx context.Context, a *entity.Assignment, template string) (*entity.NotificationMessage, error) {
					return nil, tt.composeErr
				}
			}
			gateway := &mockGateway{}
			if tt.sendErr != nil {
				gateway.sendFunc = func(ctx context.Context, msg *entity.NotificationMessage) error {
					return tt.sendErr
				}
			}
			svc := NewNotificationService(repo, log, composer, gateway, &mockLogger{})
			a := testAssignment(domainwf.StateDelivered, 9)

			sent, err := svc.NotifyState(context.Background(), a, false)
			require.Error(t, err)
			assert.False(t, sent)
			assert.ErrorIs(t, err, domainwf.ErrDependencyFailure)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.False(t, lastNotifiedCalled)
			assert.Nil(t, a.LastNotifiedAt)

			require.Len(t, log.records, 1)
			assert.Equal(t, entity.NotificationStatusFailed, log.records[0].Status)
			assert.Contains(t, log.records[0].ErrorMessage, tt.wantMsg)
			assert.Nil(t, log.records[0].SentAt)
		})
	}
}

func TestNotificationService_FailedAttemptIsRetried(t *testing.T) {
	log := &mockNotificationLog{}
	calls := 0
	gateway := &mockGateway{sendFunc: func(ctx context.Context, msg *entity.NotificationMessage) error {
		calls++
		if calls == 1 {
			return errors.New("timeout")
		}
		return nil
	}}
	svc := NewNotificationService(&mockAssignmentRepo{}, log, &mockComposer{}, gateway, &mockLogger{})
	a := testAssignment(domainwf.StateCompleted, 3)

	_, err := svc.NotifyState(context.Background(), a, false)
	require.Error(t, err)

	sent, err := svc.NotifyState(context.Background(), a, false)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 2, calls)
}

func TestNotificationService_LogLookupFailure(t *testing.T) {
	log := &mockNotificationLog{findSentFunc: func(ctx context.Context, key string) (*entity.NotificationRecord, error) {
		return nil, errors.New("db locked")
	}}
	gateway := &mockGateway{}
	svc := NewNotificationService(&mockAssignmentRepo{}, log, &mockComposer{}, gateway, &mockLogger{})

	_, err := svc.NotifyState(context.Background(), testAssignment(domainwf.StateAssigned, 1), false)
	assert.ErrorIs(t, err, domainwf.ErrDependencyFailure)
	assert.Empty(t, gateway.sent)
}
