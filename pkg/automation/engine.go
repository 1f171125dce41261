// Package automation evaluates condition-driven rules and runs their actions.
package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/carelane/careflow/pkg/audit"
	"github.com/carelane/careflow/pkg/dispatch"
	"github.com/carelane/careflow/pkg/eventbus"
	"github.com/carelane/careflow/pkg/events"
	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/persistence"
)

// ReasonConditionsNotMet is the miss reason on a rule whose conditions did
// not all hold.
const ReasonConditionsNotMet = "conditions not met"

// Result is the outcome of one evaluate-and-run pass over one rule.
type Result struct {
	RuleID   string         `json:"rule_id"`
	Executed bool           `json:"executed"`
	Reason   string         `json:"reason,omitempty"`
	Results  []ActionResult `json:"results,omitempty"`
}

// ActionResult is the per-action outcome. Actions are independent, so a
// failed one records its error here while the rest still run.
type ActionResult struct {
	Index  int               `json:"index"`
	Type   models.ActionType `json:"type"`
	Result any               `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Failures counts the actions that errored.
func (r *Result) Failures() int {
	failures := 0

	for _, action := range r.Results {
		if action.Error != "" {
			failures++
		}
	}

	return failures
}

// Engine runs automation rules: condition evaluation with AND semantics,
// then fan-out action execution with per-action failure isolation.
type Engine struct {
	rules      persistence.RuleRepository
	dispatcher *dispatch.Dispatcher
	audit      audit.Sink
	publisher  eventbus.EventPublisher
	validate   *validator.Validate
	clock      clockwork.Clock
	logger     *slog.Logger

	// legacyMissAccounting restores the historical behavior of bumping
	// execution stats even when conditions did not match.
	legacyMissAccounting bool
}

type Option func(*Engine)

// WithPublisher enables rule lifecycle events on the bus.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// WithLegacyMissAccounting makes a conditions-not-met pass still stamp
// lastExecuted and increment executionCount. Off by default: a miss leaves
// the rule's stats untouched.
func WithLegacyMissAccounting(enabled bool) Option {
	return func(e *Engine) {
		e.legacyMissAccounting = enabled
	}
}

func NewEngine(
	rules persistence.RuleRepository,
	dispatcher *dispatch.Dispatcher,
	auditSink audit.Sink,
	clock clockwork.Clock,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	engine := &Engine{
		rules:      rules,
		dispatcher: dispatcher,
		audit:      auditSink,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		clock:      clock,
		logger:     logger.With("module", "automation"),
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// CreateRule stores a new rule. Conditions are validated up front so an
// unknown operator fails here instead of evaluating to false at trigger
// time.
func (e *Engine) CreateRule(ctx context.Context, rule *models.AutomationRule) (*models.AutomationRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	if rule.Status == "" {
		rule.Status = models.RuleStatusActive
	}

	now := e.clock.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := e.validate.Struct(rule); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}

	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}

	if err := e.rules.Save(ctx, rule); err != nil {
		return nil, err
	}

	if err := e.audit.Record(ctx, "rule.created", map[string]any{"rule_id": rule.ID, "name": rule.Name}); err != nil {
		e.logger.WarnContext(ctx, "Failed to write audit record", "rule_id", rule.ID, "error", err)
	}

	return rule, nil
}

// EvaluateAndRun loads the rule and runs one evaluation pass against the
// given context. A missing rule is a hard failure; a condition evaluation
// error (operator inapplicable to the field's value type) surfaces here as
// an error rather than a silent miss.
func (e *Engine) EvaluateAndRun(ctx context.Context, ruleID string, contextData map[string]any) (*Result, error) {
	rule, err := e.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule %s: %w", ruleID, err)
	}

	return e.run(ctx, rule, contextData)
}

// HandleTrigger runs every active rule registered for the trigger. Rules are
// isolated from each other: one rule's evaluation error does not stop the
// rest.
func (e *Engine) HandleTrigger(ctx context.Context, trigger string, contextData map[string]any) ([]*Result, error) {
	rules, err := e.rules.ListByTrigger(ctx, trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules for trigger %s: %w", trigger, err)
	}

	results := make([]*Result, 0, len(rules))

	for _, rule := range rules {
		result, err := e.run(ctx, rule, contextData)
		if err != nil {
			e.logger.ErrorContext(ctx, "Rule evaluation failed",
				"trigger", trigger,
				"rule_id", rule.ID,
				"error", err,
			)

			continue
		}

		results = append(results, result)
	}

	return results, nil
}

func (e *Engine) run(ctx context.Context, rule *models.AutomationRule, contextData map[string]any) (*Result, error) {
	logger := e.logger.With("rule_id", rule.ID, "rule_name", rule.Name)

	matched, err := models.EvaluateAll(rule.Conditions, contextData)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate rule %s: %w", rule.ID, err)
	}

	if !matched {
		logger.DebugContext(ctx, "Rule conditions not met")

		if e.legacyMissAccounting {
			e.bumpStats(ctx, rule, logger)
		}

		return &Result{RuleID: rule.ID, Executed: false, Reason: ReasonConditionsNotMet}, nil
	}

	result := &Result{
		RuleID:   rule.ID,
		Executed: true,
		Results:  make([]ActionResult, 0, len(rule.Actions)),
	}

	scope := models.ExecutionScope{Context: contextData}

	for i, action := range rule.Actions {
		actionResult := ActionResult{Index: i, Type: action.Type}

		out, err := e.dispatcher.Execute(ctx, action, scope)
		if err != nil {
			actionResult.Error = err.Error()
			logger.ErrorContext(ctx, "Rule action failed", "action_index", i, "action_type", action.Type, "error", err)
		} else {
			actionResult.Result = out
		}

		result.Results = append(result.Results, actionResult)
	}

	e.bumpStats(ctx, rule, logger)

	if err := e.audit.Record(ctx, "rule.executed", map[string]any{
		"rule_id":  rule.ID,
		"actions":  len(result.Results),
		"failures": result.Failures(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to write audit record", "error", err)
	}

	e.publish(ctx, rule.ID, events.RuleExecuted{
		BaseEvent: events.NewBaseEvent(events.RuleExecutedEvent),
		RuleID:    rule.ID,
		Executed:  true,
		Actions:   len(result.Results),
		Failures:  result.Failures(),
	})

	logger.InfoContext(ctx, "Rule executed", "actions", len(result.Results), "failures", result.Failures())

	return result, nil
}

func (e *Engine) bumpStats(ctx context.Context, rule *models.AutomationRule, logger *slog.Logger) {
	now := e.clock.Now().UTC()
	rule.ExecutionCount++
	rule.LastExecuted = &now
	rule.UpdatedAt = now

	if err := e.rules.Save(ctx, rule); err != nil {
		logger.ErrorContext(ctx, "Failed to persist rule stats", "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(context.WithoutCancel(ctx), key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
