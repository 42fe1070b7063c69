package services

import (
	"context"
	"log/slog"
	"time"

	"cashplan/internal/core"
)

// EventPublisher delivers lifecycle events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, e core.Event) error
}

// Clock returns the current time; tests substitute a fixed one.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// emit publishes e without failing the caller; the write already succeeded.
func emit(ctx context.Context, events EventPublisher, e core.Event) {
	if events == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping event", "event", e.Type)
		return
	}
	if err := events.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event",
			"event", e.Type,
			"company_id", e.CompanyID,
			"scenario_id", e.ScenarioID,
			"error", err)
	}
}
