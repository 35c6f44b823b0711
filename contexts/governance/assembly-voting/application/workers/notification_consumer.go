package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "bureausocial/contexts/governance/assembly-voting/application"
	"bureausocial/contexts/governance/assembly-voting/application/commands"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

const defaultNotificationCG = "assembly-voting-notification-cg"

// NotificationConsumer turns delegation and minutes events into member
// notifications. Delivery failures are logged and acknowledged so a broken
// notifier never blocks the bus.
type NotificationConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Members       ports.MemberRepository
	Notifier      ports.Notifier
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Logger        *slog.Logger
}

func (c NotificationConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultNotificationCG
	}
	subscriptions := []struct {
		topic   string
		handler func(context.Context, ports.EventEnvelope) error
	}{
		{topic: commands.EventDelegationCreated, handler: c.handleDelegationCreated},
		{topic: commands.EventAssemblyMinutesGenerated, handler: c.handleMinutesGenerated},
	}
	for _, subscription := range subscriptions {
		if err := c.Subscriber.Subscribe(ctx, subscription.topic, group, subscription.handler); err != nil {
			logger.Error("notification consumer subscribe failed",
				"event", "assembly_notification_subscribe_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"topic", subscription.topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("notification consumer subscriptions active",
		"event", "assembly_notification_consumer_started",
		"module", application.ModuleName,
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (c NotificationConsumer) handleDelegationCreated(ctx context.Context, event ports.EventEnvelope) error {
	if replayed, err := c.reserveEvent(ctx, event); err != nil || replayed {
		return err
	}
	var payload struct {
		AssemblyID string `json:"assembly_id"`
		GiverID    string `json:"giver_id"`
		ReceiverID string `json:"receiver_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return c.decodeFailed(event, err)
	}

	giverName := payload.GiverID
	if giver, found, err := c.Members.GetMember(ctx, payload.GiverID); err == nil && found {
		giverName = giver.Name
	}
	c.notify(ctx, event, ports.Notification{
		Kind:       commands.EventDelegationCreated,
		MemberIDs:  []string{payload.ReceiverID},
		AssemblyID: payload.AssemblyID,
		Subject:    "You received a voting proxy",
		Body:       fmt.Sprintf("%s delegated their vote to you for assembly %s.", giverName, payload.AssemblyID),
	})
	return nil
}

func (c NotificationConsumer) handleMinutesGenerated(ctx context.Context, event ports.EventEnvelope) error {
	if replayed, err := c.reserveEvent(ctx, event); err != nil || replayed {
		return err
	}
	var payload struct {
		AssemblyID string   `json:"assembly_id"`
		Title      string   `json:"title"`
		MemberIDs  []string `json:"member_ids"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return c.decodeFailed(event, err)
	}
	if len(payload.MemberIDs) == 0 {
		return nil
	}
	c.notify(ctx, event, ports.Notification{
		Kind:       commands.EventAssemblyMinutesGenerated,
		MemberIDs:  payload.MemberIDs,
		AssemblyID: payload.AssemblyID,
		Subject:    "Assembly minutes available",
		Body:       fmt.Sprintf("The minutes of %q are now available.", payload.Title),
	})
	return nil
}

func (c NotificationConsumer) notify(ctx context.Context, event ports.EventEnvelope, notification ports.Notification) {
	logger := application.ResolveLogger(c.Logger)
	if c.Notifier == nil {
		return
	}
	if err := c.Notifier.Notify(ctx, notification); err != nil {
		logger.Warn("member notification failed",
			"event", "assembly_notification_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return
	}
	logger.Info("member notification sent",
		"event", "assembly_notification_sent",
		"module", application.ModuleName,
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"recipients", len(notification.MemberIDs),
	)
}

func (c NotificationConsumer) decodeFailed(event ports.EventEnvelope, err error) error {
	application.ResolveLogger(c.Logger).Error("notification payload decode failed",
		"event", "assembly_notification_decode_failed",
		"module", application.ModuleName,
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"error", err.Error(),
	)
	return err
}

func (c NotificationConsumer) reserveEvent(ctx context.Context, event ports.EventEnvelope) (bool, error) {
	if c.Dedup == nil {
		return false, nil
	}
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	ttl := c.DedupTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	replayed, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), now.Add(ttl))
	if err != nil {
		application.ResolveLogger(c.Logger).Error("notification event dedupe failed",
			"event", "assembly_notification_dedupe_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return false, err
	}
	return replayed, nil
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
