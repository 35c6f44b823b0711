package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"bureausocial/internal/shared/events"
)

var ErrBusClosed = errors.New("event bus closed")

// Bus is the in-process event bus used when no broker is configured.
// Every consumer group of a topic receives each event once; members of a
// group take turns.
type Bus struct {
	mu     sync.Mutex
	topics map[string]map[string]*group
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

type group struct {
	members []*subscriber
	next    int
}

// subscriber is one group member. gate orders sends against leave so no
// event is parked in ch after the member stopped reading it.
type subscriber struct {
	ch   chan events.Envelope
	done chan struct{}
	gate sync.RWMutex
	gone bool
}

// send reports false when the member left before accepting the event.
func (s *subscriber) send(ctx context.Context, busDone <-chan struct{}, event events.Envelope) (bool, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	if s.gone {
		return false, nil
	}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-busDone:
		return false, ErrBusClosed
	case <-s.done:
		return false, nil
	case s.ch <- event:
		return true, nil
	}
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		topics: make(map[string]map[string]*group),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Publish blocks until every consumer group accepted the event or ctx is
// done.
func (b *Bus) Publish(ctx context.Context, topic string, event events.Envelope) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	names := make([]string, 0, len(b.topics[topic]))
	for name := range b.topics[topic] {
		names = append(names, name)
	}
	b.mu.Unlock()

	for _, name := range names {
		if err := b.deliver(ctx, topic, name, event); err != nil {
			return err
		}
	}

	b.logger.Debug("event published",
		"event", "bus_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"consumer_groups", len(names),
	)
	return nil
}

// deliver hands event to one member of the group, moving on to the next
// member when the chosen one leaves first.
func (b *Bus) deliver(ctx context.Context, topic string, consumerGroup string, event events.Envelope) error {
	for {
		sub := b.pick(topic, consumerGroup)
		if sub == nil {
			b.logger.Warn("event dropped, consumer group has no members",
				"event", "bus_publish_dropped",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"consumer_group", consumerGroup,
				"event_id", event.EventID,
			)
			return nil
		}
		delivered, err := sub.send(ctx, b.done, event)
		if err != nil {
			return err
		}
		if delivered {
			return nil
		}
	}
}

func (b *Bus) pick(topic string, consumerGroup string) *subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := b.topics[topic][consumerGroup]
	if g == nil || len(g.members) == 0 {
		return nil
	}
	sub := g.members[g.next%len(g.members)]
	g.next++
	return sub
}

func (b *Bus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) error {
	sub := &subscriber{
		ch:   make(chan events.Envelope, 128),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	groups, ok := b.topics[topic]
	if !ok {
		groups = make(map[string]*group)
		b.topics[topic] = groups
	}
	g, ok := groups[consumerGroup]
	if !ok {
		g = &group{}
		groups[consumerGroup] = g
	}
	g.members = append(g.members, sub)
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				b.leave(topic, consumerGroup, sub)
				return
			case <-b.done:
				b.removeSubscriber(topic, consumerGroup, sub)
				return
			case event := <-sub.ch:
				if err := handler(ctx, event); err != nil {
					b.logger.Error("consumer handler failed",
						"event", "bus_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

// Close stops every subscriber goroutine and waits for them to return.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}

// leave detaches a member whose context ended and hands the events still
// buffered for it to the rest of its group.
func (b *Bus) leave(topic string, consumerGroup string, sub *subscriber) {
	b.removeSubscriber(topic, consumerGroup, sub)
	close(sub.done)
	sub.gate.Lock()
	sub.gone = true
	sub.gate.Unlock()

	for {
		select {
		case event := <-sub.ch:
			if err := b.deliver(context.Background(), topic, consumerGroup, event); err != nil {
				b.logger.Error("buffered event redelivery failed",
					"event", "bus_redeliver_failed",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"topic", topic,
					"consumer_group", consumerGroup,
					"event_id", event.EventID,
					"error", err.Error(),
				)
			}
		default:
			return
		}
	}
}

func (b *Bus) removeSubscriber(topic string, consumerGroup string, target *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	g := b.topics[topic][consumerGroup]
	if g == nil {
		return
	}
	filtered := make([]*subscriber, 0, len(g.members))
	for _, member := range g.members {
		if member != target {
			filtered = append(filtered, member)
		}
	}
	g.members = filtered
}
