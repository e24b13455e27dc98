package http

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/assignment-fulfillment/internal/application/service"
	appwf "github.com/garyjia/assignment-fulfillment/internal/application/workflow"
	"github.com/garyjia/assignment-fulfillment/internal/domain/action"
	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

type mockEngine struct {
	executeFunc     func(ctx context.Context, id string, act action.Action) (*appwf.Result, error)
	uploadFilesFunc func(ctx context.Context, id string, files []entity.FileUpload, fileTypes []string) (*appwf.Result, error)
}

func (m *mockEngine) SubmitRequirement(ctx context.Context, id string, req entity.Requirement) (*appwf.Result, error) {
	return m.Execute(ctx, id, action.SubmitRequirement{ProjectType: req.ProjectType})
}

func (m *mockEngine) RequestAdvance(ctx context.Context, id string, amount float64, notes string) (*appwf.Result, error) {
	return m.Execute(ctx, id, action.RequestPayment{Kind: entity.PaymentKindAdvance, Amount: amount, Notes: notes})
}

func (m *mockEngine) StartWork(ctx context.Context, id string) (*appwf.Result, error) {
	return m.Execute(ctx, id, action.StartWork{})
}

func (m *mockEngine) ReadyForDemo(ctx context.Context, id string) (*appwf.Result, error) {
	return m.Execute(ctx, id, action.ReadyForDemo{})
}

func (m *mockEngine) RequestFinal(ctx context.Context, id string, amount float64, notes string) (*appwf.Result, error) {
	return m.Execute(ctx, id, action.RequestPayment{Kind: entity.PaymentKindFinal, Amount: amount, Notes: notes})
}

func (m *mockEngine) UploadFiles(ctx context.Context, id string, files []entity.FileUpload, fileTypes []string) (*appwf.Result, error) {
	if m.uploadFilesFunc != nil {
		return m.uploadFilesFunc(ctx, id, files, fileTypes)
	}
	return &appwf.Result{}, nil
}

func (m *mockEngine) MarkDelivered(ctx context.Context, id string) (*appwf.Result, error) {
	return m.Execute(ctx, id, action.MarkDelivered{})
}

func (m *mockEngine) Complete(ctx context.Context, id string) (*appwf.Result, error) {
	return m.Execute(ctx, id, action.Complete{})
}

func (m *mockEngine) ResendEmail(ctx context.Context, id string) (*appwf.Result, error) {
	return m.Execute(ctx, id, action.ResendEmail{})
}

func (m *mockEngine) TriggerEmail(ctx context.Context, id string) (*appwf.Result, error) {
	return m.Execute(ctx, id, action.TriggerEmail{})
}

func (m *mockEngine) Execute(ctx context.Context, id string, act action.Action) (*appwf.Result, error) {
	if m.executeFunc != nil {
		return m.executeFunc(ctx, id, act)
	}
	return &appwf.Result{}, nil
}

func (m *mockEngine) Locker() *appwf.KeyedLocker {
	return appwf.NewKeyedLocker()
}

type mockAssignmentService struct {
	assignFunc func(ctx context.Context, in service.AssignInput) (*entity.Assignment, error)
	getFunc    func(ctx context.Context, id string) (*entity.Assignment, error)
	listFunc   func(ctx context.Context, bucket string) ([]*entity.Assignment, error)
	history    []*entity.AssignmentHistory
}

func (m *mockAssignmentService) Assign(ctx context.Context, in service.AssignInput) (*entity.Assignment, error) {
	return m.assignFunc(ctx, in)
}

func (m *mockAssignmentService) Get(ctx context.Context, id string) (*entity.Assignment, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, workflow.ErrNotFound
}

func (m *mockAssignmentService) ListByFilter(ctx context.Context, bucket string) ([]*entity.Assignment, error) {
	return m.listFunc(ctx, bucket)
}

func (m *mockAssignmentService) ListFiles(ctx context.Context, id string) ([]entity.DeliveryFile, error) {
	a, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.DeliveryFiles, nil
}

func (m *mockAssignmentService) OpenFile(ctx context.Context, id string, index int) (entity.DeliveryFile, io.ReadCloser, error) {
	files, err := m.ListFiles(ctx, id)
	if err != nil {
		return entity.DeliveryFile{}, nil, err
	}
	if index < 0 || index >= len(files) {
		return entity.DeliveryFile{}, nil, fmt.Errorf("%w: no file #%d", workflow.ErrNotFound, index)
	}
	return files[index], io.NopCloser(strings.NewReader("content of " + files[index].FileName)), nil
}

func (m *mockAssignmentService) History(ctx context.Context, id string) ([]*entity.AssignmentHistory, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	return append([]*entity.AssignmentHistory{}, m.history...), nil
}

func (m *mockAssignmentService) Notifications(ctx context.Context, id string) ([]*entity.NotificationRecord, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	return []*entity.NotificationRecord{}, nil
}

func (m *mockAssignmentService) Payments(ctx context.Context, id string) ([]*entity.PaymentRequest, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	return []*entity.PaymentRequest{}, nil
}

type mockPaymentService struct {
	confirmFunc func(ctx context.Context, id string, kind entity.PaymentKind) (*entity.Assignment, error)
}

func (m *mockPaymentService) ConfirmPayment(ctx context.Context, id string, kind entity.PaymentKind) (*entity.Assignment, error) {
	return m.confirmFunc(ctx, id, kind)
}

type mockReportService struct {
	exportFunc func(ctx context.Context, bucket, format string, w io.Writer) (string, error)
	formats    []string
}

func (m *mockReportService) Export(ctx context.Context, bucket, format string, w io.Writer) (string, error) {
	return m.exportFunc(ctx, bucket, format, w)
}

func (m *mockReportService) Formats() []string {
	if m.formats != nil {
		return m.formats
	}
	return []string{"csv", "xlsx"}
}

type mockLogger struct{}

func (mockLogger) Info(string, ...interface{})  {}
func (mockLogger) Error(string, ...interface{}) {}
