package commands

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"bureausocial/contexts/governance/assembly-voting/adapters/memory"
	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingMetrics struct {
	mu       sync.Mutex
	cast     int
	rejected []string
	closed   []bool
}

func (m *recordingMetrics) VoteCast(entities.VoteChoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cast++
}

func (m *recordingMetrics) VoteRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = append(m.rejected, reason)
}

func (m *recordingMetrics) DelegationCreated() {}
func (m *recordingMetrics) DelegationRevoked() {}
func (m *recordingMetrics) ResultsComputed()   {}

func (m *recordingMetrics) VotingItemClosed(approved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, approved)
}

type stubRenderer struct {
	input ports.MinutesInput
}

func (r *stubRenderer) Render(_ context.Context, input ports.MinutesInput) (entities.MinutesDocument, error) {
	r.input = input
	return entities.MinutesDocument{
		AssemblyID:  input.Assembly.AssemblyID,
		FileName:    "minutes.md",
		ContentType: "text/markdown",
		Content:     []byte("# minutes"),
	}, nil
}

var (
	admin = entities.Actor{MemberID: "admin", IsAdmin: true}
	board = entities.Actor{MemberID: "board", IsBoard: true}
)

type fixture struct {
	store       *memory.Store
	metrics     *recordingMetrics
	renderer    *stubRenderer
	assemblies  AssemblyUseCase
	votes       VoteUseCase
	delegations DelegationUseCase
	members     MemberUseCase
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clock := &fixedClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	member := func(id string, category entities.MemberCategory, active bool) entities.Member {
		return entities.Member{MemberID: id, Name: id, Email: id + "@example.org", Category: category, Active: active}
	}
	store := memory.NewStore([]entities.Member{
		{MemberID: "admin", Name: "admin", Email: "admin@example.org", Category: entities.MemberCategoryFounder, Active: true, IsAdmin: true},
		member("ana", entities.MemberCategoryFounder, true),
		member("bruno", entities.MemberCategoryEffective, true),
		member("carla", entities.MemberCategoryEffective, true),
		member("duarte", entities.MemberCategoryContributor, true),
		member("eva", entities.MemberCategoryHonorary, true),
		member("filipe", entities.MemberCategoryFounder, false),
	})
	metrics := &recordingMetrics{}
	renderer := &stubRenderer{}
	return fixture{
		store:    store,
		metrics:  metrics,
		renderer: renderer,
		assemblies: AssemblyUseCase{
			Members:     store,
			Assemblies:  store,
			Items:       store,
			Votes:       store,
			Delegations: store,
			Outbox:      store,
			Minutes:     renderer,
			Clock:       clock,
			IDGen:       store,
			Metrics:     metrics,
		},
		votes: VoteUseCase{
			Members:     store,
			Assemblies:  store,
			Items:       store,
			Votes:       store,
			Delegations: store,
			Clock:       clock,
			IDGen:       store,
			Metrics:     metrics,
		},
		delegations: DelegationUseCase{
			Members:     store,
			Assemblies:  store,
			Delegations: store,
			Outbox:      store,
			Clock:       clock,
			IDGen:       store,
			Metrics:     metrics,
		},
		members: MemberUseCase{
			Members: store,
			Clock:   clock,
			IDGen:   store,
		},
	}
}

func (f fixture) createAssembly(t *testing.T, rule entities.EligibilityRule, quorum int) entities.Assembly {
	t.Helper()
	assembly, err := f.assemblies.CreateAssembly(context.Background(), CreateAssemblyCommand{
		Actor:            admin,
		Title:            "General assembly",
		Type:             entities.AssemblyTypeOrdinary,
		ScheduledAt:      time.Date(2026, 4, 20, 18, 0, 0, 0, time.UTC),
		Location:         "Hall",
		QuorumPercentage: quorum,
		EligibilityRule:  rule,
	})
	if err != nil {
		t.Fatalf("create assembly failed: %v", err)
	}
	return assembly
}

func (f fixture) openItem(t *testing.T, assemblyID string, majority entities.MajorityType) entities.VotingItem {
	t.Helper()
	ctx := context.Background()
	item, err := f.assemblies.CreateVotingItem(ctx, CreateVotingItemCommand{
		Actor:        admin,
		AssemblyID:   assemblyID,
		Title:        "Item",
		MajorityType: majority,
	})
	if err != nil {
		t.Fatalf("create voting item failed: %v", err)
	}
	assembly, _, _ := f.store.GetAssembly(ctx, assemblyID)
	if assembly.Status == entities.AssemblyStatusScheduled {
		if _, err := f.assemblies.StartAssembly(ctx, admin, assemblyID); err != nil {
			t.Fatalf("start assembly failed: %v", err)
		}
	}
	item, err = f.assemblies.OpenVotingItem(ctx, admin, item.VotingItemID)
	if err != nil {
		t.Fatalf("open voting item failed: %v", err)
	}
	return item
}

func (f fixture) cast(memberID string, itemID string, choice entities.VoteChoice) error {
	_, err := f.votes.CastVote(context.Background(), CastVoteCommand{
		Actor:        entities.Actor{MemberID: memberID},
		VotingItemID: itemID,
		Choice:       choice,
	})
	return err
}

func (f fixture) delegate(assemblyID string, giverID string, receiverID string) error {
	_, err := f.delegations.CreateDelegation(context.Background(), CreateDelegationCommand{
		Actor:      entities.Actor{MemberID: giverID},
		AssemblyID: assemblyID,
		ReceiverID: receiverID,
	})
	return err
}

func pendingEventTypes(t *testing.T, store *memory.Store) []string {
	t.Helper()
	rows, err := store.ListPendingOutbox(context.Background(), 1000)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	types := make([]string, 0, len(rows))
	for _, row := range rows {
		types = append(types, row.EventType)
	}
	return types
}

// eventData decodes the data of the first pending outbox row of eventType.
func eventData(t *testing.T, store *memory.Store, eventType string) map[string]any {
	t.Helper()
	rows, err := store.ListPendingOutbox(context.Background(), 1000)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	for _, row := range rows {
		if row.EventType != eventType {
			continue
		}
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			t.Fatalf("decode envelope failed: %v", err)
		}
		var data map[string]any
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			t.Fatalf("decode event data failed: %v", err)
		}
		return data
	}
	t.Fatalf("no %s event in outbox", eventType)
	return nil
}

func containsString(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}
