package port

import (
	"context"
	"io"

	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/domain/event"
)

// NotificationGateway delivers a rendered message. It may be called repeatedly for the same content.
type NotificationGateway interface {
	Send(ctx context.Context, msg *entity.NotificationMessage) error
}

// MessageComposer renders the message for a template and the current assignment snapshot
type MessageComposer interface {
	Compose(ctx context.Context, assignment *entity.Assignment, template string) (*entity.NotificationMessage, error)
}

// EventPublisher forwards domain events outside the process
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
	Close() error
}

// ReportExporter renders assignments into one document format
type ReportExporter interface {
	Format() string
	ContentType() string
	Export(ctx context.Context, assignments []*entity.Assignment, w io.Writer) error
}
