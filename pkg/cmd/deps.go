// Package cmd provides the shared wiring helpers the careflow binaries use
// to build their collaborators from CLI configuration.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/carelane/careflow/pkg/channels/gochannel"
	"github.com/carelane/careflow/pkg/channels/kafka"
	"github.com/carelane/careflow/pkg/eventbus"
	"github.com/carelane/careflow/pkg/persistence"
	"github.com/carelane/careflow/pkg/persistence/memory"
	"github.com/carelane/careflow/pkg/persistence/postgresql"
)

// NewPersistence builds a persistence layer from a database URL. An empty
// URL or the "memory" scheme selects the in-memory store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case databaseURL == "", strings.HasPrefix(databaseURL, "memory"):
		logger.InfoContext(ctx, "Using in-memory persistence")

		return memory.NewPersistence(), nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database URL: %s", databaseURL)
	}
}

// NewEventBus builds an event bus from a provider name. "none" disables
// event publishing.
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "careflow")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create go channel pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
