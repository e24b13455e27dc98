package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/domain/event"
	domainwf "github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

func newAssignmentService(repo *mockAssignmentRepo, history *mockHistoryRepo) AssignmentService {
	return NewAssignmentService(repo, history, &mockNotificationLog{}, &mockLedger{}, &mockArtifactReader{}, &mockTxManager{}, nil, &mockLogger{})
}

func TestAssignmentService_Assign(t *testing.T) {
	tests := []struct {
		name      string
		input     AssignInput
		createErr error
		wantErr   error
		wantKind  entity.ItemKind
	}{
		{
			name:     "project assignment",
			input:    AssignInput{StudentRef: "stu@example.com", ItemRef: "proj-1", ItemKind: entity.ItemKindProject, AssignedBy: "admin"},
			wantKind: entity.ItemKindProject,
		},
		{
			name:     "kind defaults to project",
			input:    AssignInput{StudentRef: "stu-1", ItemRef: "proj-1"},
			wantKind: entity.ItemKindProject,
		},
		{
			name:     "course assignment",
			input:    AssignInput{StudentRef: "stu-1", ItemRef: "course-9", ItemKind: entity.ItemKindCourse},
			wantKind: entity.ItemKindCourse,
		},
		{
			name:    "missing student",
			input:   AssignInput{ItemRef: "proj-1"},
			wantErr: domainwf.ErrInvalidInput,
		},
		{
			name:    "blank item",
			input:   AssignInput{StudentRef: "stu-1", ItemRef: "   "},
			wantErr: domainwf.ErrInvalidInput,
		},
		{
			name:    "unknown kind",
			input:   AssignInput{StudentRef: "stu-1", ItemRef: "x", ItemKind: "bootcamp"},
			wantErr: domainwf.ErrInvalidInput,
		},
		{
			name:      "duplicate",
			input:     AssignInput{StudentRef: "stu-1", ItemRef: "proj-1"},
			createErr: port.ErrDuplicateAssignment,
			wantErr:   port.ErrDuplicateAssignment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := &mockHistoryRepo{}
			repo := &mockAssignmentRepo{
				createFunc: func(ctx context.Context, a *entity.Assignment) error {
					return tt.createErr
				},
			}
			svc := newAssignmentService(repo, history)

			got, err := svc.Assign(context.Background(), tt.input)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, domainwf.StateAssigned, got.Status)
			assert.Equal(t, tt.wantKind, got.ItemKind)
			assert.Equal(t, int64(1), got.Version)
			assert.Equal(t, entity.PaymentStatusNone, got.Payment.Status)
			assert.Nil(t, got.LastNotifiedAt)

			require.Len(t, history.created, 1)
			assert.Equal(t, "assign", history.created[0].Action)
			assert.Equal(t, "assigned", history.created[0].NewStatus)
		})
	}
}

func TestAssignmentService_AssignEmitsCreated(t *testing.T) {
	d, rec := newRecordingDispatcher()
	svc := NewAssignmentService(&mockAssignmentRepo{}, &mockHistoryRepo{}, &mockNotificationLog{}, &mockLedger{}, &mockArtifactReader{}, &mockTxManager{}, d, &mockLogger{})

	_, err := svc.Assign(context.Background(), AssignInput{StudentRef: "stu-1", ItemRef: "proj-1"})
	require.NoError(t, err)
	require.NoError(t, d.Close())

	assert.Equal(t, []event.Type{event.TypeAssignmentCreated}, rec.types())
}

func TestAssignmentService_AssignRollsBackOnHistoryFailure(t *testing.T) {
	history := &mockHistoryRepo{
		createFunc: func(ctx context.Context, h *entity.AssignmentHistory) error {
			return errors.New("disk full")
		},
	}
	svc := newAssignmentService(&mockAssignmentRepo{}, history)

	_, err := svc.Assign(context.Background(), AssignInput{StudentRef: "stu-1", ItemRef: "proj-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create history")
}

func TestAssignmentService_ListByFilter(t *testing.T) {
	var gotBucket string
	repo := &mockAssignmentRepo{
		listFunc: func(ctx context.Context, bucket string) ([]*entity.Assignment, error) {
			gotBucket = bucket
			return []*entity.Assignment{{ID: "a"}}, nil
		},
	}
	svc := newAssignmentService(repo, &mockHistoryRepo{})

	list, err := svc.ListByFilter(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, entity.BucketAll, gotBucket)

	_, err = svc.ListByFilter(context.Background(), entity.BucketDelivered)
	require.NoError(t, err)
	assert.Equal(t, entity.BucketDelivered, gotBucket)

	_, err = svc.ListByFilter(context.Background(), "archived")
	assert.ErrorIs(t, err, domainwf.ErrInvalidInput)
}

func TestAssignmentService_ReadViewsRequireAssignment(t *testing.T) {
	svc := newAssignmentService(&mockAssignmentRepo{}, &mockHistoryRepo{})
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
	_, err = svc.ListFiles(ctx, "missing")
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
	_, err = svc.History(ctx, "missing")
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
	_, err = svc.Notifications(ctx, "missing")
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
	_, err = svc.Payments(ctx, "missing")
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
}

func TestAssignmentService_ListFiles(t *testing.T) {
	files := []entity.DeliveryFile{
		{FileName: "report.pdf", FilePath: "a/report.pdf", FileType: "report"},
		{FileName: "code.zip", FilePath: "a/code.zip", FileType: "source"},
	}
	repo := &mockAssignmentRepo{
		getByIDFunc: func(ctx context.Context, id string) (*entity.Assignment, error) {
			return &entity.Assignment{ID: id, DeliveryFiles: files}, nil
		},
	}
	svc := newAssignmentService(repo, &mockHistoryRepo{})

	got, err := svc.ListFiles(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, files, got)
}

func TestAssignmentService_OpenFile(t *testing.T) {
	a := entity.NewAssignment("stu-1", "proj-1", entity.ItemKindProject, "admin", time.Now())
	a.ID = "asg-1"
	a.DeliveryFiles = []entity.DeliveryFile{
		{FileName: "site.zip", FilePath: "asg-1/aa_site.zip", FileType: "source-code"},
		{FileName: "notes.pdf", FilePath: "asg-1/bb_notes.pdf", FileType: "report"},
	}
	repo := &mockAssignmentRepo{getByIDFunc: func(ctx context.Context, id string) (*entity.Assignment, error) {
		if id != a.ID {
			return nil, domainwf.ErrNotFound
		}
		return a, nil
	}}
	reader := &mockArtifactReader{blobs: map[string]string{"asg-1/aa_site.zip": "PK"}}
	svc := NewAssignmentService(repo, &mockHistoryRepo{}, &mockNotificationLog{}, &mockLedger{}, reader, &mockTxManager{}, nil, &mockLogger{})
	ctx := context.Background()

	file, rc, err := svc.OpenFile(ctx, "asg-1", 0)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "site.zip", file.FileName)
	assert.Equal(t, "PK", string(content))

	_, _, err = svc.OpenFile(ctx, "asg-1", 2)
	assert.ErrorIs(t, err, domainwf.ErrNotFound)

	_, _, err = svc.OpenFile(ctx, "asg-1", -1)
	assert.ErrorIs(t, err, domainwf.ErrNotFound)

	// Recorded but missing from storage
	_, _, err = svc.OpenFile(ctx, "asg-1", 1)
	assert.ErrorIs(t, err, domainwf.ErrNotFound)

	_, _, err = svc.OpenFile(ctx, "asg-9", 0)
	assert.ErrorIs(t, err, domainwf.ErrNotFound)

	reader.err = errors.New("permission denied")
	_, _, err = svc.OpenFile(ctx, "asg-1", 0)
	assert.ErrorIs(t, err, domainwf.ErrDependencyFailure)
}
