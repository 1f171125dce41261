// Package notifier defines the delivery boundary for user-facing messages.
// Delivery itself is an external collaborator; the core only hands messages
// over and never treats a delivery failure as fatal.
package notifier

import (
	"context"
	"log/slog"
)

// Kind distinguishes the delivery channels a notification can take.
type Kind string

const (
	KindNotification Kind = "notification"
	KindEmail        Kind = "email"
	KindSMS          Kind = "sms"
)

// Notification is the payload handed to the delivery collaborator.
type Notification struct {
	UserID   string         `json:"user_id"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Type     string         `json:"type,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Notifier is the external delivery collaborator.
type Notifier interface {
	Send(ctx context.Context, notification Notification) error
	SendEmail(ctx context.Context, notification Notification) error
	SendSMS(ctx context.Context, notification Notification) error
}

// LogNotifier writes notifications to the structured log. It stands in for a
// real delivery integration in development and as a last-resort fallback.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notifier")}
}

func (n *LogNotifier) Send(ctx context.Context, notification Notification) error {
	return n.log(ctx, KindNotification, notification)
}

func (n *LogNotifier) SendEmail(ctx context.Context, notification Notification) error {
	return n.log(ctx, KindEmail, notification)
}

func (n *LogNotifier) SendSMS(ctx context.Context, notification Notification) error {
	return n.log(ctx, KindSMS, notification)
}

func (n *LogNotifier) log(ctx context.Context, kind Kind, notification Notification) error {
	n.logger.InfoContext(ctx, "Dispatching notification",
		"kind", kind,
		"user_id", notification.UserID,
		"title", notification.Title,
	)

	return nil
}
