// Package template renders dynamic action configuration against the data of
// a running execution.
package template

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/carelane/careflow/pkg/models"
)

// RenderScope renders one templated string against an execution scope. The
// scope's context map is exposed as .context, the run identity as .execution
// and process environment as .env.
func RenderScope(input string, scope models.ExecutionScope) (any, error) {
	data := map[string]any{
		"context": scope.Context,
		"env":     getEnvVars(),
		"execution": map[string]any{
			"id":          scope.ExecutionID,
			"workflow_id": scope.WorkflowID,
		},
	}

	return Render(input, data)
}

// RenderData renders every templated string value of an action's data map
// against the execution scope, leaving non-string values untouched.
func RenderData(data map[string]any, scope models.ExecutionScope) (map[string]any, error) {
	if data == nil {
		return nil, nil
	}

	rendered := make(map[string]any, len(data))

	for key, value := range data {
		str, ok := value.(string)
		if !ok || !NeedsTemplating(str) {
			rendered[key] = value

			continue
		}

		result, err := RenderScope(str, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to render %q: %w", key, err)
		}

		rendered[key] = result
	}

	return rendered, nil
}

// NeedsTemplating reports whether a string contains template syntax.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// Render executes a text/template string and coerces the output back to JSON,
// number or boolean when it parses as one.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("render").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
			return jsonResult, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

func getEnvVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
