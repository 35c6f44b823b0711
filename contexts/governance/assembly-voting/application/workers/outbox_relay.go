package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "bureausocial/contexts/governance/assembly-voting/application"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

// OutboxRelay publishes pending outbox rows to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes one batch and marks a row published only after the
// bus accepted it. A row whose payload cannot be decoded is parked as
// failed and skipped. It stops on the first publish failure; remaining
// rows are retried on the next cycle.
func (r OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("assembly outbox list failed",
			"event", "assembly_outbox_list_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}
	if len(pending) == 0 {
		logger.Debug("assembly outbox relay found no pending rows",
			"event", "assembly_outbox_relay_noop",
			"module", application.ModuleName,
			"layer", "worker",
			"batch_size", limit,
		)
		return 0, nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	published, parked := 0, 0
	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("assembly outbox decode failed",
				"event", "assembly_outbox_decode_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			if markErr := r.Outbox.MarkOutboxFailed(ctx, row.OutboxID, err.Error(), now); markErr != nil {
				logger.Error("assembly outbox mark failed failed",
					"event", "assembly_outbox_mark_failed_failed",
					"module", application.ModuleName,
					"layer", "worker",
					"outbox_id", row.OutboxID,
					"error", markErr.Error(),
				)
				return published, markErr
			}
			parked++
			continue
		}
		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("assembly outbox publish failed",
				"event", "assembly_outbox_publish_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return published, err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("assembly outbox mark published failed",
				"event", "assembly_outbox_mark_published_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return published, err
		}
		published++
	}

	logger.Info("assembly outbox relay cycle completed",
		"event", "assembly_outbox_relay_completed",
		"module", application.ModuleName,
		"layer", "worker",
		"published_count", published,
		"failed_count", parked,
	)
	return published, nil
}

// Run polls RunOnce every interval until ctx is cancelled. Cycle errors
// are logged by RunOnce and do not stop the loop.
func (r OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		_, _ = r.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
