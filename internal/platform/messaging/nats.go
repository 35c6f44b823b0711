package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bureausocial/internal/shared/events"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "bureausocial.events."

// NATS publishes envelopes as JSON on core NATS subjects. Consumer groups
// map to queue groups.
type NATS struct {
	conn   *nats.Conn
	logger *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

func ConnectNATS(url string, name string, logger *slog.Logger) (*NATS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected",
					"event", "nats_disconnected",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logger.Info("nats reconnected",
				"event", "nats_reconnected",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"url", conn.ConnectedUrl(),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATS{conn: conn, logger: logger}, nil
}

func Subject(topic string) string {
	return subjectPrefix + strings.TrimSpace(topic)
}

func (n *NATS) Publish(ctx context.Context, topic string, event events.Envelope) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.conn.Publish(Subject(topic), data); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	// Flush so a relay only marks a row published once the server has it.
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", topic, err)
	}
	return nil
}

func (n *NATS) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) error {
	sub, err := n.conn.QueueSubscribe(Subject(topic), consumerGroup, func(msg *nats.Msg) {
		var event events.Envelope
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			n.logger.Error("nats event decode failed",
				"event", "nats_decode_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"subject", msg.Subject,
				"error", err.Error(),
			)
			return
		}
		if err := handler(ctx, event); err != nil {
			n.logger.Error("consumer handler failed",
				"event", "nats_consume_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"consumer_group", consumerGroup,
				"event_id", event.EventID,
				"error", err.Error(),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

// Close drains subscriptions and closes the connection.
func (n *NATS) Close() error {
	if n == nil || n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
