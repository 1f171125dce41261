package queue

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrigger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	tests := []struct {
		name        string
		config      map[string]any
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid_redis_config",
			config: map[string]any{
				"provider": "redis",
				"queue":    "careflow_triggers",
				"connection": map[string]any{
					"addr":     "localhost:6379",
					"password": "",
					"db":       "0",
				},
			},
			expectError: false,
		},
		{
			name: "missing_queue",
			config: map[string]any{
				"provider": "redis",
			},
			expectError: true,
			errorMsg:    "queue trigger queue name is required",
		},
		{
			name: "unsupported_provider",
			config: map[string]any{
				"provider": "rabbitmq",
				"queue":    "careflow_triggers",
			},
			expectError: true,
			errorMsg:    "unsupported queue provider: rabbitmq",
		},
		{
			name: "default_provider",
			config: map[string]any{
				"queue": "careflow_triggers",
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := NewTrigger(t.Context(), tt.config, logger)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.Nil(t, trigger)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, trigger)
				assert.Equal(t, tt.config["queue"], trigger.Queue)
				assert.Equal(t, RedisProvider, trigger.Provider)
			}
		})
	}
}

func TestNewTrigger_ConnectionConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	trigger, err := NewTrigger(t.Context(), map[string]any{
		"queue": "careflow_triggers",
		"connection": map[string]any{
			"addr": "redis.internal:6380",
			"db":   "2",
			// Non-string values are ignored.
			"pool": 10,
		},
	}, logger)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", trigger.Connection["addr"])
	assert.Equal(t, "2", trigger.Connection["db"])
	assert.NotContains(t, trigger.Connection, "pool")
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name            string
		message         string
		expectedTrigger string
		expectedContext map[string]any
	}{
		{
			name:            "full_envelope",
			message:         `{"trigger":"lab.result.recorded","context":{"flag":"critical"}}`,
			expectedTrigger: "lab.result.recorded",
			expectedContext: map[string]any{"flag": "critical"},
		},
		{
			name:            "missing_context",
			message:         `{"trigger":"appointment.missed"}`,
			expectedTrigger: "appointment.missed",
			expectedContext: map[string]any{},
		},
		{
			name:            "bare_string",
			message:         "appointment.missed",
			expectedTrigger: "appointment.missed",
			expectedContext: map[string]any{},
		},
		{
			name:            "object_without_trigger",
			message:         `{"context":{"flag":"critical"}}`,
			expectedTrigger: "",
			expectedContext: map[string]any{"flag": "critical"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, contextData := parseMessage(tt.message)

			assert.Equal(t, tt.expectedTrigger, trigger)
			assert.Equal(t, tt.expectedContext, contextData)
		})
	}
}
