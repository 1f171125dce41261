// Package scheduler drives the timer-based part of the execution core: the
// reminder sweep and the schedule sweep, running on independent intervals.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"

	"github.com/carelane/careflow/pkg/audit"
	"github.com/carelane/careflow/pkg/dispatch"
	"github.com/carelane/careflow/pkg/eventbus"
	"github.com/carelane/careflow/pkg/events"
	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/notifier"
	"github.com/carelane/careflow/pkg/otelhelper"
	"github.com/carelane/careflow/pkg/persistence"
)

const (
	// DefaultReminderInterval and DefaultScheduleInterval keep the 1:5 sweep
	// cadence: reminders are latency-sensitive, schedules are coarse.
	DefaultReminderInterval = time.Minute
	DefaultScheduleInterval = 5 * time.Minute

	// DefaultRetention is how long sent reminders and terminal executions
	// are kept before a cleanup schedule removes them.
	DefaultRetention = 30 * 24 * time.Hour
)

// Sweeper periodically dispatches due reminders and fires due schedules.
// Each due item is processed in isolation: one failure is logged and the
// sweep moves on.
type Sweeper struct {
	schedules  persistence.ScheduleRepository
	reminders  persistence.ReminderRepository
	executions persistence.ExecutionRepository
	dispatcher *dispatch.Dispatcher
	notifier   notifier.Notifier
	audit      audit.Sink
	publisher  eventbus.EventPublisher
	tracer     trace.Tracer
	clock      clockwork.Clock
	logger     *slog.Logger

	reminderInterval time.Duration
	scheduleInterval time.Duration
	retention        time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

type Option func(*Sweeper)

// WithIntervals overrides the sweep cadence. Callers should keep the
// reminder interval the shorter of the two.
func WithIntervals(reminder, schedule time.Duration) Option {
	return func(s *Sweeper) {
		s.reminderInterval = reminder
		s.scheduleInterval = schedule
	}
}

// WithRetention overrides how far back cleanup schedules reach.
func WithRetention(retention time.Duration) Option {
	return func(s *Sweeper) {
		s.retention = retention
	}
}

// WithPublisher enables sweep events on the bus.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(s *Sweeper) {
		s.publisher = publisher
	}
}

// WithTracer enables a span per sweep pass.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Sweeper) {
		s.tracer = tracer
	}
}

func NewSweeper(
	store persistence.Persistence,
	dispatcher *dispatch.Dispatcher,
	notify notifier.Notifier,
	auditSink audit.Sink,
	clock clockwork.Clock,
	logger *slog.Logger,
	opts ...Option,
) *Sweeper {
	sweeper := &Sweeper{
		schedules:        store.Schedules(),
		reminders:        store.Reminders(),
		executions:       store.Executions(),
		dispatcher:       dispatcher,
		notifier:         notify,
		audit:            auditSink,
		clock:            clock,
		logger:           logger.With("module", "scheduler"),
		reminderInterval: DefaultReminderInterval,
		scheduleInterval: DefaultScheduleInterval,
		retention:        DefaultRetention,
	}

	for _, opt := range opts {
		opt(sweeper)
	}

	return sweeper
}

// Start launches both sweep loops. They run until Stop is called or the
// given context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("sweeper already started")
	}

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.loop(ctx, s.reminderInterval, "reminders", s.sweepRemindersPass)
	go s.loop(ctx, s.scheduleInterval, "schedules", s.sweepSchedulesPass)

	s.logger.InfoContext(ctx, "Sweeper started",
		"reminder_interval", s.reminderInterval,
		"schedule_interval", s.scheduleInterval,
	)

	return nil
}

// Stop cancels the sweep loops and waits for in-flight passes to finish or
// the given context to expire.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sweeper shutdown timed out: %w", ctx.Err())
	}
}

func (s *Sweeper) loop(ctx context.Context, interval time.Duration, name string, pass func(context.Context) (int, error)) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if _, err := pass(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Sweep pass failed", "sweep", name, "error", err)
			}
		}
	}
}

func (s *Sweeper) sweepRemindersPass(ctx context.Context) (int, error) {
	return s.SweepReminders(ctx)
}

func (s *Sweeper) sweepSchedulesPass(ctx context.Context) (int, error) {
	return s.SweepSchedules(ctx)
}

// SweepReminders dispatches every pending reminder whose trigger date has
// passed. Each reminder is claimed with a compare-and-set before anything is
// sent, so concurrent sweeps dispatch it at most once.
func (s *Sweeper) SweepReminders(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()

	if s.tracer != nil {
		var span trace.Span
		ctx, span = otelhelper.StartSpan(ctx, s.tracer, "scheduler.sweep", otelhelper.SweepKey.String("reminders"))
		defer span.End()
	}

	due, err := s.reminders.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due reminders: %w", err)
	}

	dispatched := 0

	for _, reminder := range due {
		if err := ctx.Err(); err != nil {
			return dispatched, err
		}

		claimed, err := s.reminders.MarkSent(ctx, reminder.ID, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to claim reminder", "reminder_id", reminder.ID, "error", err)

			continue
		}

		if !claimed {
			// Another sweep got there first.
			continue
		}

		err = s.notifier.Send(ctx, notifier.Notification{
			UserID:  reminder.UserID,
			Title:   reminder.Title,
			Message: reminder.Message,
			Type:    "reminder",
			Metadata: map[string]any{
				"reminder_id": reminder.ID,
				"entity_id":   reminder.EntityID,
				"entity_type": reminder.EntityType,
			},
		})
		if err != nil {
			// The claim stands: delivery is at-most-once, not retried.
			s.logger.ErrorContext(ctx, "Failed to deliver reminder", "reminder_id", reminder.ID, "error", err)
		}

		dispatched++

		s.record(ctx, "reminder.sent", map[string]any{"reminder_id": reminder.ID, "user_id": reminder.UserID})
		s.publish(ctx, reminder.ID, events.ReminderSent{
			BaseEvent:  events.NewBaseEvent(events.ReminderSentEvent),
			ReminderID: reminder.ID,
			UserID:     reminder.UserID,
		})
	}

	if dispatched > 0 {
		s.logger.InfoContext(ctx, "Reminder sweep finished", "due", len(due), "dispatched", dispatched)
	}

	return dispatched, nil
}

// SweepSchedules fires every active schedule whose next run has passed. A
// firing always advances the schedule's next run strictly forward, even when
// the scheduled work itself failed, so a broken schedule cannot hot-loop the
// sweep.
func (s *Sweeper) SweepSchedules(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()

	if s.tracer != nil {
		var span trace.Span
		ctx, span = otelhelper.StartSpan(ctx, s.tracer, "scheduler.sweep", otelhelper.SweepKey.String("schedules"))
		defer span.End()
	}

	due, err := s.schedules.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due schedules: %w", err)
	}

	fired := 0

	for _, schedule := range due {
		if err := ctx.Err(); err != nil {
			return fired, err
		}

		logger := s.logger.With("schedule_id", schedule.ID, "schedule_type", schedule.Type)

		if err := s.fire(ctx, schedule); err != nil {
			logger.ErrorContext(ctx, "Schedule action failed", "error", err)
		}

		nextRun, err := schedule.NextAfter(now)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to compute next run", "error", err)

			continue
		}

		lastRun := now
		schedule.LastRun = &lastRun
		schedule.RunCount++
		schedule.NextRun = nextRun
		schedule.UpdatedAt = now

		if err := s.schedules.Save(ctx, schedule); err != nil {
			logger.ErrorContext(ctx, "Failed to persist schedule", "error", err)

			continue
		}

		fired++

		s.record(ctx, "schedule.executed", map[string]any{
			"schedule_id": schedule.ID,
			"run_count":   schedule.RunCount,
			"next_run":    schedule.NextRun,
		})
		s.publish(ctx, schedule.ID, events.ScheduleFired{
			BaseEvent:  events.NewBaseEvent(events.ScheduleFiredEvent),
			ScheduleID: schedule.ID,
			RunCount:   schedule.RunCount,
			NextRun:    schedule.NextRun,
		})
	}

	if fired > 0 {
		s.logger.InfoContext(ctx, "Schedule sweep finished", "due", len(due), "fired", fired)
	}

	return fired, nil
}

// fire runs the work a due schedule stands for: the built-in types are
// handled by the sweeper itself, anything else dispatches the schedule's
// action.
func (s *Sweeper) fire(ctx context.Context, schedule *models.Schedule) error {
	switch schedule.Type {
	case models.ScheduleTypeReminderProcessing:
		_, err := s.SweepReminders(ctx)

		return err
	case models.ScheduleTypeCleanup:
		return s.cleanup(ctx)
	default:
		_, err := s.dispatcher.Execute(ctx, schedule.Action, models.ExecutionScope{
			Context: map[string]any{"schedule_id": schedule.ID, "schedule_name": schedule.Name},
		})

		return err
	}
}

func (s *Sweeper) cleanup(ctx context.Context) error {
	cutoff := s.clock.Now().UTC().Add(-s.retention)

	remindersRemoved, err := s.reminders.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean up reminders: %w", err)
	}

	executionsRemoved, err := s.executions.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean up executions: %w", err)
	}

	if remindersRemoved > 0 || executionsRemoved > 0 {
		s.logger.InfoContext(ctx, "Cleanup finished",
			"reminders_removed", remindersRemoved,
			"executions_removed", executionsRemoved,
		)
	}

	return nil
}

// CreateSchedule stores a new schedule. An unset next run falls back to the
// start date when that is in the future, otherwise to the first offset from
// now.
func (s *Sweeper) CreateSchedule(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}

	if schedule.Status == "" {
		schedule.Status = models.ScheduleStatusActive
	}

	now := s.clock.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	if schedule.StartDate.IsZero() {
		schedule.StartDate = now
	}

	if schedule.NextRun.IsZero() {
		if schedule.StartDate.After(now) {
			schedule.NextRun = schedule.StartDate
		} else {
			nextRun, err := schedule.NextAfter(now)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", models.ErrInvalidSchedule, err)
			}

			schedule.NextRun = nextRun
		}
	}

	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	if err := s.schedules.Save(ctx, schedule); err != nil {
		return nil, err
	}

	s.record(ctx, "schedule.created", map[string]any{"schedule_id": schedule.ID, "name": schedule.Name})

	return schedule, nil
}

func (s *Sweeper) record(ctx context.Context, action string, data map[string]any) {
	if err := s.audit.Record(ctx, action, data); err != nil {
		s.logger.WarnContext(ctx, "Failed to write audit record", "action", action, "error", err)
	}
}

func (s *Sweeper) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(context.WithoutCancel(ctx), key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
