package dispatcher

import (
	"context"

	"github.com/garyjia/assignment-fulfillment/internal/domain/event"
)

// AnyEvent subscribes a handler to every event type
const AnyEvent event.Type = "*"

// Handler reacts to one assignment event. Handlers run after the change
// is committed, so an error never rolls anything back.
type Handler func(ctx context.Context, evt *event.Event) error

// Subscription describes a registered handler
type Subscription struct {
	Name      string
	EventType event.Type
}

type subscription struct {
	Subscription
	handler Handler
}
