package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"bureausocial/internal/shared/events"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type collector struct {
	mu     sync.Mutex
	events []events.Envelope
	seen   chan struct{}
}

func newCollector() *collector {
	return &collector{seen: make(chan struct{}, 16)}
}

func (c *collector) handle(_ context.Context, event events.Envelope) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	c.seen <- struct{}{}
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func waitFor(t *testing.T, c *collector, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i+1)
		}
	}
}

func TestBusDeliversOncePerConsumerGroup(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()
	ctx := context.Background()

	notifications := newCollector()
	audit := newCollector()
	require.NoError(t, bus.Subscribe(ctx, "delegation.created", "notifications", notifications.handle))
	require.NoError(t, bus.Subscribe(ctx, "delegation.created", "notifications", notifications.handle))
	require.NoError(t, bus.Subscribe(ctx, "delegation.created", "audit", audit.handle))

	for _, id := range []string{"evt-1", "evt-2"} {
		require.NoError(t, bus.Publish(ctx, "delegation.created", events.Envelope{EventID: id}))
	}
	waitFor(t, notifications, 2)
	waitFor(t, audit, 2)
	require.Equal(t, 2, notifications.count())
	require.Equal(t, 2, audit.count())
}

func TestBusIgnoresOtherTopics(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()
	ctx := context.Background()

	c := newCollector()
	require.NoError(t, bus.Subscribe(ctx, "assembly.minutes_generated", "notifications", c.handle))
	require.NoError(t, bus.Publish(ctx, "delegation.created", events.Envelope{EventID: "evt-1"}))
	require.NoError(t, bus.Publish(ctx, "assembly.minutes_generated", events.Envelope{EventID: "evt-2"}))
	waitFor(t, c, 1)
	require.Equal(t, "evt-2", c.events[0].EventID)
}

func TestBusStopsSubscribersOnContextCancelAndClose(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Subscribe(ctx, "delegation.created", "notifications", newCollector().handle))
	require.NoError(t, bus.Subscribe(context.Background(), "delegation.revoked", "notifications", newCollector().handle))
	cancel()

	require.NoError(t, bus.Close())
	require.ErrorIs(t, bus.Publish(context.Background(), "delegation.created", events.Envelope{}), ErrBusClosed)
	require.ErrorIs(t, bus.Subscribe(context.Background(), "x", "y", newCollector().handle), ErrBusClosed)
}

func TestBusHandsBufferedEventsToRemainingMembers(t *testing.T) {
	for i := 0; i < 20; i++ {
		bus := NewBus(nil)
		all := newCollector()
		started := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		stalled := func(ctx context.Context, event events.Envelope) error {
			once.Do(func() {
				close(started)
				<-release
			})
			return all.handle(ctx, event)
		}

		leaving, cancel := context.WithCancel(context.Background())
		require.NoError(t, bus.Subscribe(leaving, "delegation.created", "notifications", stalled))
		require.NoError(t, bus.Subscribe(context.Background(), "delegation.created", "notifications", all.handle))

		// Round robin parks evt-1 in the stalled handler and evt-3 in its buffer.
		for _, id := range []string{"evt-1", "evt-2", "evt-3", "evt-4"} {
			require.NoError(t, bus.Publish(context.Background(), "delegation.created", events.Envelope{EventID: id}))
		}
		<-started
		cancel()
		close(release)

		waitFor(t, all, 4)
		require.Equal(t, 4, all.count())
		require.NoError(t, bus.Close())
	}
}

func TestSubject(t *testing.T) {
	require.Equal(t, "bureausocial.events.delegation.created", Subject(" delegation.created "))
}
