package notifier

import (
	"context"
	"errors"
	"sync"
)

// Recorder is a Notifier for tests: it captures every dispatched message and
// can be told to fail.
type Recorder struct {
	mu       sync.Mutex
	sent     []RecordedNotification
	failWith error
}

// RecordedNotification pairs a captured notification with its channel kind.
type RecordedNotification struct {
	Kind         Kind
	Notification Notification
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every subsequent dispatch return the given error. Pass nil
// to restore normal behavior.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failWith = err
}

// Sent returns a copy of everything dispatched so far.
func (r *Recorder) Sent() []RecordedNotification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RecordedNotification, len(r.sent))
	copy(out, r.sent)

	return out
}

func (r *Recorder) Send(_ context.Context, notification Notification) error {
	return r.record(KindNotification, notification)
}

func (r *Recorder) SendEmail(_ context.Context, notification Notification) error {
	return r.record(KindEmail, notification)
}

func (r *Recorder) SendSMS(_ context.Context, notification Notification) error {
	return r.record(KindSMS, notification)
}

func (r *Recorder) record(kind Kind, notification Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWith != nil {
		return r.failWith
	}

	r.sent = append(r.sent, RecordedNotification{Kind: kind, Notification: notification})

	return nil
}

// ErrDeliveryFailed is a ready-made failure for tests.
var ErrDeliveryFailed = errors.New("notification delivery failed")
