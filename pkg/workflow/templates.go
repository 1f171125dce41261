package workflow

import (
	"context"
	"fmt"

	"github.com/carelane/careflow/pkg/models"
)

// Built-in workflow templates for common clinic processes. A template is a
// ready-made step list; CreateFromTemplate instantiates it as a regular
// workflow owned by the caller.
var templates = map[string]models.Workflow{
	"patient-intake": {
		Name: "Patient Intake",
		Type: "intake",
		Steps: []models.WorkflowStep{
			{
				Name: "Collect intake forms",
				Type: models.ActionCreateTask,
				Data: map[string]any{
					"title":    "Collect intake forms for {{.context.patient_name}}",
					"priority": "high",
				},
			},
			{
				Name: "Verify insurance",
				Type: models.ActionCreateTask,
				Data: map[string]any{
					"title": "Verify insurance for {{.context.patient_name}}",
				},
			},
			{
				Name: "Welcome message",
				Type: models.ActionSendNotification,
				Data: map[string]any{
					"title":   "Welcome",
					"message": "Intake started for {{.context.patient_name}}",
				},
			},
		},
	},
	"lab-result-followup": {
		Name: "Lab Result Follow-up",
		Type: "followup",
		Steps: []models.WorkflowStep{
			{
				Name: "Review results",
				Type: models.ActionCreateTask,
				Data: map[string]any{
					"title":    "Review lab results for {{.context.patient_name}}",
					"priority": "urgent",
				},
			},
			{
				Name: "Schedule follow-up call",
				Type: models.ActionReminder,
				Data: map[string]any{
					"title": "Call {{.context.patient_name}} about lab results",
					"delay": "24h",
				},
			},
		},
	},
	"discharge-followup": {
		Name: "Discharge Follow-up",
		Type: "followup",
		Steps: []models.WorkflowStep{
			{
				Name: "Discharge summary",
				Type: models.ActionCreateTask,
				Data: map[string]any{
					"title": "Prepare discharge summary for {{.context.patient_name}}",
				},
			},
			{
				Name: "Check-in reminder",
				Type: models.ActionReminder,
				Data: map[string]any{
					"title": "48h post-discharge check-in for {{.context.patient_name}}",
					"delay": "48h",
				},
			},
			{
				Name: "Notify care team",
				Type: models.ActionSendNotification,
				Data: map[string]any{
					"title":   "Discharge follow-up started",
					"message": "Follow-up workflow running for {{.context.patient_name}}",
				},
			},
		},
	},
}

// TemplateNames lists the available built-in templates.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}

	return names
}

// CreateFromTemplate instantiates a built-in template as a new workflow.
func (r *Repository) CreateFromTemplate(ctx context.Context, templateName, createdBy string) (*models.Workflow, error) {
	template, ok := templates[templateName]
	if !ok {
		return nil, fmt.Errorf("unknown workflow template %q", templateName)
	}

	workflow := template
	workflow.Steps = make([]models.WorkflowStep, len(template.Steps))
	copy(workflow.Steps, template.Steps)
	workflow.CreatedBy = createdBy
	workflow.Status = models.WorkflowStatusActive

	return r.Create(ctx, &workflow)
}
