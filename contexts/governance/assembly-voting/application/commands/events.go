package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "bureausocial/contexts/governance/assembly-voting/application"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

const (
	EventDelegationCreated        = "delegation.created"
	EventDelegationRevoked        = "delegation.revoked"
	EventAssemblyStatusChanged    = "assembly.status_changed"
	EventVotingItemClosed         = "voting_item.closed"
	EventAssemblyMinutesGenerated = "assembly.minutes_generated"
)

func newAssemblyEnvelope(
	eventID string,
	eventType string,
	assemblyID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Events are partitioned by assembly so consumers see each assembly's
	// lifecycle in order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "assembly-voting",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "assembly_id",
		PartitionKey:     assemblyID,
		Data:             payload,
	}, nil
}

// eventAppender writes notification events to the outbox. Failures are
// logged and swallowed: the state change that triggered the event has
// already been committed and must not be rolled back.
type eventAppender struct {
	outbox ports.OutboxWriter
	idGen  ports.IDGenerator
	logger *slog.Logger
}

func (a eventAppender) append(
	ctx context.Context,
	eventType string,
	assemblyID string,
	occurredAt time.Time,
	data map[string]any,
) {
	if a.outbox == nil || a.idGen == nil {
		return
	}
	logger := application.ResolveLogger(a.logger)
	eventID, err := a.idGen.NewID(ctx)
	if err == nil {
		var envelope ports.EventEnvelope
		envelope, err = newAssemblyEnvelope(eventID, eventType, assemblyID, occurredAt, data)
		if err == nil {
			err = a.outbox.AppendOutbox(ctx, envelope)
		}
	}
	if err != nil {
		logger.Warn("assembly event append failed",
			"event", "assembly_event_append_failed",
			"module", application.ModuleName,
			"layer", "application",
			"event_type", eventType,
			"assembly_id", assemblyID,
			"error", err.Error(),
		)
	}
}

func resolveNow(clock ports.Clock) time.Time {
	if clock != nil {
		return clock.Now().UTC()
	}
	return time.Now().UTC()
}
