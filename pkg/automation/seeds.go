package automation

import (
	"context"

	"github.com/carelane/careflow/pkg/models"
)

// Built-in rules covering the two automations every clinic deployment
// starts with. SeedDefaults installs them idempotently under fixed ids.
var seedRules = []models.AutomationRule{
	{
		ID:      "seed-critical-lab-value",
		Name:    "Critical lab value escalation",
		Trigger: "lab.result.recorded",
		Conditions: []models.Condition{
			{Field: "flag", Operator: models.OperatorEquals, Value: "critical"},
		},
		Actions: []models.ActionSpec{
			{
				Type: models.ActionCreateTask,
				Data: map[string]any{
					"title":    "Review critical lab result for {{.context.patient_name}}",
					"priority": "urgent",
				},
			},
			{
				Type: models.ActionSendNotification,
				Data: map[string]any{
					"title":   "Critical lab value",
					"message": "Critical result recorded for {{.context.patient_name}}",
				},
			},
		},
		Status: models.RuleStatusActive,
	},
	{
		ID:      "seed-missed-appointment-followup",
		Name:    "Missed appointment follow-up",
		Trigger: "appointment.missed",
		Conditions: []models.Condition{
			{Field: "status", Operator: models.OperatorEquals, Value: "no_show"},
		},
		Actions: []models.ActionSpec{
			{
				Type: models.ActionCreateTask,
				Data: map[string]any{
					"title": "Reschedule missed appointment for {{.context.patient_name}}",
				},
			},
			{
				Type: models.ActionReminder,
				Data: map[string]any{
					"title": "Confirm rescheduled appointment for {{.context.patient_name}}",
					"delay": "72h",
				},
			},
		},
		Status: models.RuleStatusActive,
	},
}

// SeedDefaults installs the built-in rules, skipping any id that already
// exists so local edits survive restarts.
func (e *Engine) SeedDefaults(ctx context.Context) error {
	for _, seed := range seedRules {
		if _, err := e.rules.GetByID(ctx, seed.ID); err == nil {
			continue
		}

		rule := seed
		rule.Conditions = make([]models.Condition, len(seed.Conditions))
		copy(rule.Conditions, seed.Conditions)
		rule.Actions = make([]models.ActionSpec, len(seed.Actions))
		copy(rule.Actions, seed.Actions)

		if _, err := e.CreateRule(ctx, &rule); err != nil {
			return err
		}
	}

	return nil
}
