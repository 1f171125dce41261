package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"

	"github.com/carelane/careflow/pkg/log"
	"github.com/carelane/careflow/pkg/scheduler"
	"github.com/carelane/careflow/pkg/triggers/queue"
	"github.com/carelane/careflow/pkg/workflow"
)

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL (postgres://... or empty for in-memory)",
			Value:   "",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus provider (kafka, gochannel, none)",
			Value:   "none",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
		&cli.DurationFlag{
			Name:    "reminder-interval",
			Usage:   "How often the reminder sweep runs",
			Value:   scheduler.DefaultReminderInterval,
			Sources: cli.EnvVars("REMINDER_INTERVAL"),
		},
		&cli.DurationFlag{
			Name:    "schedule-interval",
			Usage:   "How often the schedule sweep runs",
			Value:   scheduler.DefaultScheduleInterval,
			Sources: cli.EnvVars("SCHEDULE_INTERVAL"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Enable OpenTelemetry tracing",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
		&cli.BoolFlag{
			Name:  "legacy-unknown-action-types",
			Usage: "Treat unknown action types as successful no-ops",
		},
		&cli.BoolFlag{
			Name:  "legacy-miss-accounting",
			Usage: "Bump rule execution stats even when conditions do not match",
		},
	}
}

func setup(command *cli.Command) {
	log.Setup(command.String("log-level"), command.String("log-format"))
}

// runCommand starts the long-running process: the sweeper plus, when
// configured, the queue trigger feeding the rule engine.
func runCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.StringFlag{
			Name:    "queue",
			Usage:   "Queue name to consume trigger events from (empty disables the queue trigger)",
			Value:   "",
			Sources: cli.EnvVars("TRIGGER_QUEUE"),
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "Redis address for the queue trigger",
			Value:   "localhost:6379",
			Sources: cli.EnvVars("REDIS_ADDR"),
		},
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Run the sweeper and trigger listeners",
		Flags: flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			setup(command)
			logger := log.WithModule("careflow")

			application, cleanup, err := buildApp(ctx, command, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := application.engine.SeedDefaults(ctx); err != nil {
				return fmt.Errorf("failed to seed default rules: %w", err)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.sweeper.Start(ctx); err != nil {
				return err
			}

			var trigger *queue.Trigger

			if queueName := command.String("queue"); queueName != "" {
				trigger, err = queue.NewTrigger(ctx, map[string]any{
					"queue": queueName,
					"connection": map[string]any{
						"addr": command.String("redis-addr"),
					},
				}, logger)
				if err != nil {
					return err
				}

				err = trigger.Start(ctx, func(ctx context.Context, name string, contextData map[string]any) error {
					_, err := application.engine.HandleTrigger(ctx, name, contextData)

					return err
				})
				if err != nil {
					return err
				}
			}

			logger.InfoContext(ctx, "Careflow running")
			<-ctx.Done()
			logger.Info("Shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if trigger != nil {
				if err := trigger.Stop(shutdownCtx); err != nil {
					logger.Error("Failed to stop queue trigger", "error", err)
				}
			}

			return application.sweeper.Stop(shutdownCtx)
		},
	}
}

// executeCommand runs one workflow to completion and prints the execution
// record.
func executeCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.StringFlag{
			Name:  "context",
			Usage: "Run context as a JSON object",
			Value: "{}",
		},
	)

	return &cli.Command{
		Name:      "execute",
		Usage:     "Execute a workflow by id",
		ArgsUsage: "<workflow-id>",
		Flags:     flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			setup(command)
			logger := log.WithModule("careflow")

			workflowID := command.Args().First()
			if workflowID == "" {
				return errors.New("workflow id is required")
			}

			contextData, err := parseContext(command.String("context"))
			if err != nil {
				return err
			}

			application, cleanup, err := buildApp(ctx, command, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			execution, runErr := application.executor.Execute(ctx, workflowID, contextData)
			if execution != nil {
				printJSON(execution)
			}

			return runErr
		},
	}
}

// triggerCommand fires one trigger through the rule engine, mainly for local
// testing without a queue.
func triggerCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.StringFlag{
			Name:  "context",
			Usage: "Trigger context as a JSON object",
			Value: "{}",
		},
	)

	return &cli.Command{
		Name:      "trigger",
		Usage:     "Fire a trigger through the automation rules",
		ArgsUsage: "<trigger-name>",
		Flags:     flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			setup(command)
			logger := log.WithModule("careflow")

			name := command.Args().First()
			if name == "" {
				return errors.New("trigger name is required")
			}

			contextData, err := parseContext(command.String("context"))
			if err != nil {
				return err
			}

			application, cleanup, err := buildApp(ctx, command, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			results, err := application.engine.HandleTrigger(ctx, name, contextData)
			if err != nil {
				return err
			}

			printJSON(results)

			return nil
		},
	}
}

// seedCommand installs the built-in automation rules and, optionally, a
// workflow template.
func seedCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.StringFlag{
			Name:  "template",
			Usage: "Also create a workflow from a built-in template " + fmt.Sprintf("%v", workflow.TemplateNames()),
			Value: "",
		},
		&cli.StringFlag{
			Name:  "created-by",
			Usage: "Owner recorded on seeded workflows",
			Value: "system",
		},
	)

	return &cli.Command{
		Name:  "seed",
		Usage: "Install built-in automation rules and workflow templates",
		Flags: flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			setup(command)
			logger := log.WithModule("careflow")

			application, cleanup, err := buildApp(ctx, command, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := application.engine.SeedDefaults(ctx); err != nil {
				return err
			}

			if template := command.String("template"); template != "" {
				created, err := application.workflows.CreateFromTemplate(ctx, template, command.String("created-by"))
				if err != nil {
					return err
				}

				logger.InfoContext(ctx, "Workflow created from template", "workflow_id", created.ID, "template", template)
			}

			logger.InfoContext(ctx, "Seeding complete")

			return nil
		},
	}
}

// validateCommand checks every stored workflow, rule, and schedule against
// the current validation rules. Useful after migrating data in from the
// legacy system.
func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate stored workflows, automation rules, and schedules",
		Flags: commonFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			setup(command)
			logger := log.WithModule("careflow")

			application, cleanup, err := buildApp(ctx, command, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			validate := validator.New(validator.WithRequiredStructEnabled())
			problems := 0

			workflows, err := application.store.Workflows().List(ctx)
			if err != nil {
				return err
			}

			for _, wf := range workflows {
				if err := validate.Struct(wf); err != nil {
					logger.WarnContext(ctx, "Invalid workflow", "workflow_id", wf.ID, "error", err)

					problems++

					continue
				}

				for _, condition := range wf.Conditions {
					if err := condition.Validate(); err != nil {
						logger.WarnContext(ctx, "Invalid workflow condition", "workflow_id", wf.ID, "error", err)

						problems++
					}
				}
			}

			rules, err := application.store.Rules().List(ctx)
			if err != nil {
				return err
			}

			for _, rule := range rules {
				err := validate.Struct(rule)
				if err == nil {
					err = rule.Validate()
				}

				if err != nil {
					logger.WarnContext(ctx, "Invalid automation rule", "rule_id", rule.ID, "error", err)

					problems++
				}
			}

			schedules, err := application.store.Schedules().List(ctx)
			if err != nil {
				return err
			}

			for _, schedule := range schedules {
				if err := schedule.Validate(); err != nil {
					logger.WarnContext(ctx, "Invalid schedule", "schedule_id", schedule.ID, "error", err)

					problems++
				}
			}

			if problems > 0 {
				return fmt.Errorf("validation found %d problem(s)", problems)
			}

			logger.InfoContext(ctx, "Validation passed",
				"workflows", len(workflows), "rules", len(rules), "schedules", len(schedules))

			return nil
		},
	}
}

func parseContext(raw string) (map[string]any, error) {
	contextData := map[string]any{}

	if err := json.Unmarshal([]byte(raw), &contextData); err != nil {
		return nil, fmt.Errorf("invalid context JSON: %w", err)
	}

	return contextData, nil
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}
