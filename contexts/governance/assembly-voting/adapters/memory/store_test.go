package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

func openItem(t *testing.T, store *Store, itemID string) {
	t.Helper()
	if err := store.CreateVotingItem(context.Background(), entities.VotingItem{
		VotingItemID: itemID,
		AssemblyID:   "assembly-1",
		Title:        "Budget",
		MajorityType: entities.MajoritySimple,
		Status:       entities.VotingItemStatusOpen,
	}); err != nil {
		t.Fatalf("create item failed: %v", err)
	}
}

func countBallots(votes []entities.Vote) entities.Results {
	return entities.Results{VotingItemID: "item-1", Ballots: len(votes)}
}

func TestInsertVoteRejectsConcurrentDuplicates(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	openItem(t, store, "item-1")

	const attempts = 16
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _ := store.NewID(ctx)
			errs <- store.InsertVote(ctx, entities.Vote{
				VoteID:       id,
				VotingItemID: "item-1",
				AssemblyID:   "assembly-1",
				MemberID:     "member-1",
				Choice:       entities.VoteChoiceInFavor,
				CreatedAt:    time.Now().UTC(),
			})
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domainerrors.ErrDuplicateVote):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted ballot, got %d", accepted)
	}
	votes, err := store.ListVotesByItem(ctx, "item-1")
	if err != nil {
		t.Fatalf("list votes failed: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("expected one stored vote, got %d", len(votes))
	}
}

func TestInsertVoteRequiresOpenItem(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	vote := entities.Vote{VoteID: "v1", VotingItemID: "item-1", MemberID: "member-1", Choice: entities.VoteChoiceAgainst}

	if err := store.InsertVote(ctx, vote); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found for unknown item, got %v", err)
	}
	if err := store.CreateVotingItem(ctx, entities.VotingItem{VotingItemID: "item-1", Status: entities.VotingItemStatusPending}); err != nil {
		t.Fatalf("create item failed: %v", err)
	}
	if err := store.InsertVote(ctx, vote); !errors.Is(err, domainerrors.ErrItemNotOpen) {
		t.Fatalf("expected item not open for pending item, got %v", err)
	}
}

func TestFreezeVotingItemOrdersAgainstBallots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	openItem(t, store, "item-1")

	const voters = 32
	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.InsertVote(ctx, entities.Vote{
				VoteID:       fmt.Sprintf("v-%d", i),
				VotingItemID: "item-1",
				MemberID:     fmt.Sprintf("member-%d", i),
				Choice:       entities.VoteChoiceInFavor,
			})
		}(i)
	}
	frozen, err := store.FreezeVotingItem(ctx, "item-1", time.Now(), countBallots)
	wg.Wait()
	close(errs)
	if err != nil {
		t.Fatalf("freeze failed: %v", err)
	}
	for err := range errs {
		if err != nil && !errors.Is(err, domainerrors.ErrItemNotOpen) {
			t.Fatalf("unexpected insert error: %v", err)
		}
	}

	votes, _ := store.ListVotesByItem(ctx, "item-1")
	if frozen.Result == nil || frozen.Result.Ballots != len(votes) {
		t.Fatalf("frozen result counts %+v ballots, store holds %d", frozen.Result, len(votes))
	}
	if frozen.Status != entities.VotingItemStatusClosed || frozen.ClosedAt == nil {
		t.Fatalf("expected closed item, got %+v", frozen)
	}
	if _, err := store.FreezeVotingItem(ctx, "item-1", time.Now(), countBallots); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected second freeze to fail, got %v", err)
	}
	if _, err := store.FreezeVotingItem(ctx, "missing", time.Now(), countBallots); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDelegationUniquePerAssemblyAndGiver(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	first := entities.ProxyDelegation{DelegationID: "d1", AssemblyID: "a1", GiverID: "m1", ReceiverID: "m2"}
	if err := store.InsertDelegation(ctx, first); err != nil {
		t.Fatalf("insert delegation failed: %v", err)
	}
	err := store.InsertDelegation(ctx, entities.ProxyDelegation{DelegationID: "d2", AssemblyID: "a1", GiverID: "m1", ReceiverID: "m3"})
	if !errors.Is(err, domainerrors.ErrInvalidDelegation) {
		t.Fatalf("expected invalid delegation, got %v", err)
	}
	// Same giver, different assembly is a separate slot.
	if err := store.InsertDelegation(ctx, entities.ProxyDelegation{DelegationID: "d3", AssemblyID: "a2", GiverID: "m1", ReceiverID: "m3"}); err != nil {
		t.Fatalf("insert delegation for other assembly failed: %v", err)
	}

	received, err := store.ListDelegationsByReceiver(ctx, "a1", "m2")
	if err != nil {
		t.Fatalf("list received failed: %v", err)
	}
	if len(received) != 1 || received[0].GiverID != "m1" {
		t.Fatalf("unexpected received delegations: %+v", received)
	}

	removed, err := store.DeleteDelegation(ctx, "a1", "m1")
	if err != nil || !removed {
		t.Fatalf("expected delegation removed, got removed=%v err=%v", removed, err)
	}
	removed, err = store.DeleteDelegation(ctx, "a1", "m1")
	if err != nil || removed {
		t.Fatalf("expected second delete to be a no-op, got removed=%v err=%v", removed, err)
	}
}

func TestClosedVotingItemIsFrozen(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	now := time.Now().UTC()

	item := entities.VotingItem{
		VotingItemID: "item-1",
		AssemblyID:   "a1",
		Title:        "Budget",
		MajorityType: entities.MajoritySimple,
		Status:       entities.VotingItemStatusOpen,
	}
	if err := store.CreateVotingItem(ctx, item); err != nil {
		t.Fatalf("create item failed: %v", err)
	}
	item.Status = entities.VotingItemStatusClosed
	item.Result = &entities.Results{VotingItemID: "item-1", Tally: entities.Tally{InFavor: 3, TotalWeightedVotes: 3}}
	item.ClosedAt = &now
	if err := store.UpdateVotingItem(ctx, item); err != nil {
		t.Fatalf("close item failed: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	item.Result.Tally.InFavor = 99
	stored, found, err := store.GetVotingItem(ctx, "item-1")
	if err != nil || !found {
		t.Fatalf("get item failed: found=%v err=%v", found, err)
	}
	if stored.Result.Tally.InFavor != 3 {
		t.Fatalf("expected frozen tally 3, got %d", stored.Result.Tally.InFavor)
	}

	stored.Status = entities.VotingItemStatusOpen
	if err := store.UpdateVotingItem(ctx, stored); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected closed item update to fail, got %v", err)
	}
}

func TestOutboxPendingAndPublished(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"evt-2", "evt-1"} {
		if err := store.AppendOutbox(ctx, ports.EventEnvelope{
			EventID:    id,
			EventType:  "delegation.created",
			OccurredAt: base.Add(time.Duration(1-i) * time.Minute),
		}); err != nil {
			t.Fatalf("append outbox failed: %v", err)
		}
	}
	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 2 || pending[0].OutboxID != "evt-1" {
		t.Fatalf("expected oldest first, got %+v", pending)
	}
	if err := store.MarkOutboxPublished(ctx, "evt-1", base); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, _ = store.ListPendingOutbox(ctx, 10)
	if len(pending) != 1 || pending[0].OutboxID != "evt-2" {
		t.Fatalf("expected evt-2 pending, got %+v", pending)
	}

	if err := store.MarkOutboxFailed(ctx, "evt-2", "decode envelope", base); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}
	pending, _ = store.ListPendingOutbox(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected parked row to leave the pending list, got %+v", pending)
	}
	if reason, failed := store.OutboxError("evt-2"); !failed || reason != "decode envelope" {
		t.Fatalf("expected parked reason, got %q failed=%v", reason, failed)
	}
	if err := store.MarkOutboxFailed(ctx, "missing", "x", base); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected conflict for unknown row, got %v", err)
	}
}

func TestReserveEventDetectsReplay(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	expires := time.Now().UTC().Add(time.Hour)

	replayed, err := store.ReserveEvent(ctx, "evt-1", "hash", expires)
	if err != nil || replayed {
		t.Fatalf("expected first reservation, got replayed=%v err=%v", replayed, err)
	}
	replayed, err = store.ReserveEvent(ctx, "evt-1", "hash", expires)
	if err != nil || !replayed {
		t.Fatalf("expected replay, got replayed=%v err=%v", replayed, err)
	}
	if _, err := store.ReserveEvent(ctx, "evt-1", "other", expires); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected conflict on payload mismatch, got %v", err)
	}
}

func TestCreateMemberRejectsDuplicateEmail(t *testing.T) {
	store := NewStore([]entities.Member{{MemberID: "m1", Name: "Ana", Email: "ana@example.org", Active: true}})
	err := store.CreateMember(context.Background(), entities.Member{MemberID: "m2", Name: "Ana B", Email: "ANA@example.org"})
	if !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
