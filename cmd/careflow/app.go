package main

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"
	cli "github.com/urfave/cli/v3"

	"github.com/carelane/careflow/pkg/audit"
	"github.com/carelane/careflow/pkg/automation"
	"github.com/carelane/careflow/pkg/cmd"
	"github.com/carelane/careflow/pkg/dispatch"
	"github.com/carelane/careflow/pkg/eventbus"
	"github.com/carelane/careflow/pkg/notifier"
	"github.com/carelane/careflow/pkg/otelhelper"
	"github.com/carelane/careflow/pkg/persistence"
	"github.com/carelane/careflow/pkg/registry"
	"github.com/carelane/careflow/pkg/scheduler"
	"github.com/carelane/careflow/pkg/workflow"
	"github.com/carelane/careflow/pkg/workitems"
)

// app bundles the wired execution core for one process.
type app struct {
	store     persistence.Persistence
	bus       eventbus.EventBus
	workflows *workflow.Repository
	executor  *workflow.Executor
	workitems *workitems.Service
	engine    *automation.Engine
	sweeper   *scheduler.Sweeper
	logger    *slog.Logger
}

// buildApp wires the execution core from CLI configuration. The returned
// cleanup closes the event bus and the store.
func buildApp(ctx context.Context, command *cli.Command, logger *slog.Logger) (*app, func(), error) {
	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, nil, err
	}

	bus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		_ = store.Close(ctx)

		return nil, nil, err
	}

	cleanup := func() {
		if bus != nil {
			if err := bus.Close(); err != nil {
				logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
			}
		}

		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}

	clock := clockwork.NewRealClock()
	auditSink := audit.Sink(audit.NewSlogSink(logger))

	var notify notifier.Notifier = notifier.NewLogNotifier(logger)
	if bus != nil {
		notify = notifier.NewEventBusNotifier(bus)
		auditSink = audit.NewEventBusSink(bus)
	}

	reg := registry.NewRegistry(logger)
	registry.RegisterDefaults(reg, registry.Deps{
		Persistence: store,
		Notifier:    notify,
		Audit:       auditSink,
		Publisher:   bus,
		Clock:       clock,
	})

	var dispatchOpts []dispatch.Option
	if command.Bool("legacy-unknown-action-types") {
		dispatchOpts = append(dispatchOpts, dispatch.WithLegacyUnknownTypes(true))
	}

	dispatcher := dispatch.NewDispatcher(reg, logger, dispatchOpts...)

	executorOpts := []workflow.ExecutorOption{}
	sweeperOpts := []scheduler.Option{
		scheduler.WithIntervals(
			command.Duration("reminder-interval"),
			command.Duration("schedule-interval"),
		),
	}
	engineOpts := []automation.Option{}
	serviceOpts := []workitems.ServiceOption{}

	if bus != nil {
		executorOpts = append(executorOpts, workflow.WithPublisher(bus))
		sweeperOpts = append(sweeperOpts, scheduler.WithPublisher(bus))
		engineOpts = append(engineOpts, automation.WithPublisher(bus))
		serviceOpts = append(serviceOpts, workitems.WithPublisher(bus))
	}

	if command.Bool("tracing") {
		tracer, err := otelhelper.NewTracer(ctx, "careflow")
		if err != nil {
			cleanup()

			return nil, nil, err
		}

		executorOpts = append(executorOpts, workflow.WithTracer(tracer))
		sweeperOpts = append(sweeperOpts, scheduler.WithTracer(tracer))
	}

	if command.Bool("legacy-miss-accounting") {
		engineOpts = append(engineOpts, automation.WithLegacyMissAccounting(true))
	}

	return &app{
		store:     store,
		bus:       bus,
		workflows: workflow.NewRepository(store.Workflows(), auditSink, clock, logger),
		executor:  workflow.NewExecutor(store.Workflows(), store.Executions(), dispatcher, clock, logger, executorOpts...),
		workitems: workitems.NewService(store, notify, auditSink, clock, logger, serviceOpts...),
		engine:    automation.NewEngine(store.Rules(), dispatcher, auditSink, clock, logger, engineOpts...),
		sweeper:   scheduler.NewSweeper(store, dispatcher, notify, auditSink, clock, logger, sweeperOpts...),
		logger:    logger,
	}, cleanup, nil
}
