package notifier

import (
	"context"

	"github.com/carelane/careflow/pkg/eventbus"
	"github.com/carelane/careflow/pkg/events"
)

// EventBusNotifier queues notifications on the event bus for an external
// delivery service to pick up. Publishing is the hand-over point; delivery
// guarantees beyond that belong to the consumer.
type EventBusNotifier struct {
	publisher eventbus.EventPublisher
}

func NewEventBusNotifier(publisher eventbus.EventPublisher) *EventBusNotifier {
	return &EventBusNotifier{publisher: publisher}
}

func (n *EventBusNotifier) Send(ctx context.Context, notification Notification) error {
	return n.publish(ctx, KindNotification, notification)
}

func (n *EventBusNotifier) SendEmail(ctx context.Context, notification Notification) error {
	return n.publish(ctx, KindEmail, notification)
}

func (n *EventBusNotifier) SendSMS(ctx context.Context, notification Notification) error {
	return n.publish(ctx, KindSMS, notification)
}

func (n *EventBusNotifier) publish(ctx context.Context, kind Kind, notification Notification) error {
	event := events.NotificationQueued{
		BaseEvent: events.NewBaseEvent(events.NotificationQueuedEvent),
		UserID:    notification.UserID,
		Title:     notification.Title,
		Message:   notification.Message,
		Kind:      string(kind),
	}
	event.Metadata = notification.Metadata

	return n.publisher.Publish(ctx, notification.UserID, event)
}
