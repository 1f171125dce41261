// Package audit defines the write-only audit sink boundary. Recording is
// best-effort: callers log and continue when the sink fails.
package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/carelane/careflow/pkg/eventbus"
	"github.com/carelane/careflow/pkg/events"
)

// Sink receives one record per create or state-transition operation.
type Sink interface {
	Record(ctx context.Context, action string, data map[string]any) error
}

// SlogSink writes audit records to the structured log.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger.With("module", "audit")}
}

func (s *SlogSink) Record(ctx context.Context, action string, data map[string]any) error {
	s.logger.InfoContext(ctx, "Audit record", "action", action, "data", data)

	return nil
}

// EventBusSink publishes audit records for an external audit-log service.
type EventBusSink struct {
	publisher eventbus.EventPublisher
}

func NewEventBusSink(publisher eventbus.EventPublisher) *EventBusSink {
	return &EventBusSink{publisher: publisher}
}

func (s *EventBusSink) Record(ctx context.Context, action string, data map[string]any) error {
	event := events.AuditRecorded{
		BaseEvent: events.NewBaseEvent(events.AuditRecordedEvent),
		Action:    action,
		Data:      data,
	}

	return s.publisher.Publish(ctx, action, event)
}

// NopSink drops every record.
type NopSink struct{}

func (NopSink) Record(context.Context, string, map[string]any) error { return nil }

// MemorySink captures records for tests.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// Record is one captured audit entry.
type Record struct {
	Action string
	Data   map[string]any
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Record(_ context.Context, action string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, Record{Action: action, Data: data})

	return nil
}

// Records returns a copy of everything captured so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)

	return out
}
