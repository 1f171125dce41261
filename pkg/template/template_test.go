package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/careflow/pkg/models"
)

func TestRenderScope(t *testing.T) {
	scope := models.ExecutionScope{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		Context: map[string]any{
			"patient": "p-42",
			"count":   3,
		},
	}

	tests := []struct {
		name  string
		input string
		want  any
	}{
		{
			name:  "context field",
			input: "Follow up for {{.context.patient}}",
			want:  "Follow up for p-42",
		},
		{
			name:  "execution identity",
			input: "{{.execution.workflow_id}}",
			want:  "wf-1",
		},
		{
			name:  "numeric coercion",
			input: "{{.context.count}}",
			want:  float64(3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderScope(tt.input, scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderData(t *testing.T) {
	scope := models.ExecutionScope{Context: map[string]any{"name": "Ada"}}

	rendered, err := RenderData(map[string]any{
		"title":    "Call {{.context.name}}",
		"priority": "high",
		"count":    2,
	}, scope)
	require.NoError(t, err)

	assert.Equal(t, "Call Ada", rendered["title"])
	assert.Equal(t, "high", rendered["priority"])
	assert.Equal(t, 2, rendered["count"])
}

func TestRenderData_Nil(t *testing.T) {
	rendered, err := RenderData(nil, models.ExecutionScope{})
	require.NoError(t, err)
	assert.Nil(t, rendered)
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := Render("{{.broken", nil)
	assert.Error(t, err)
}
