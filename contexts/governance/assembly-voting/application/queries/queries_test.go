package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"bureausocial/contexts/governance/assembly-voting/adapters/memory"
	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
)

var scheduled = time.Date(2026, 5, 2, 18, 0, 0, 0, time.UTC)

func seedAssembly(t *testing.T) (*memory.Store, entities.VotingItem) {
	t.Helper()
	ctx := context.Background()
	member := func(id string, category entities.MemberCategory, active bool) entities.Member {
		return entities.Member{MemberID: id, Name: id, Email: id + "@example.org", Category: category, Active: active}
	}
	store := memory.NewStore([]entities.Member{
		member("ana", entities.MemberCategoryFounder, true),
		member("bruno", entities.MemberCategoryEffective, true),
		member("carla", entities.MemberCategoryEffective, true),
		member("duarte", entities.MemberCategoryContributor, true),
		member("filipe", entities.MemberCategoryFounder, false),
	})
	assembly := entities.Assembly{
		AssemblyID:       "asm-1",
		Title:            "Spring assembly",
		Type:             entities.AssemblyTypeOrdinary,
		ScheduledAt:      scheduled,
		QuorumPercentage: 50,
		Status:           entities.AssemblyStatusInProgress,
		EligibilityRule:  entities.EligibilityFoundersEffective,
	}
	if err := store.CreateAssembly(ctx, assembly); err != nil {
		t.Fatalf("create assembly: %v", err)
	}
	item := entities.VotingItem{
		VotingItemID:     "item-1",
		AssemblyID:       assembly.AssemblyID,
		Title:            "Budget",
		MajorityType:     entities.MajoritySimple,
		Status:           entities.VotingItemStatusOpen,
		QuorumPercentage: 50,
		Position:         1,
	}
	if err := store.CreateVotingItem(ctx, item); err != nil {
		t.Fatalf("create voting item: %v", err)
	}
	return store, item
}

func newResults(store *memory.Store) ResultsUseCase {
	return ResultsUseCase{
		Members:     store,
		Assemblies:  store,
		Items:       store,
		Votes:       store,
		Delegations: store,
		Clock:       store,
	}
}

func TestComputeResultsAppliesProxyWeight(t *testing.T) {
	ctx := context.Background()
	store, item := seedAssembly(t)

	if err := store.InsertDelegation(ctx, entities.ProxyDelegation{
		DelegationID: "d-1", AssemblyID: item.AssemblyID, GiverID: "ana", ReceiverID: "bruno",
	}); err != nil {
		t.Fatalf("insert delegation: %v", err)
	}
	for i, ballot := range []struct {
		member string
		choice entities.VoteChoice
	}{
		{member: "bruno", choice: entities.VoteChoiceInFavor},
		{member: "carla", choice: entities.VoteChoiceAgainst},
	} {
		if err := store.InsertVote(ctx, entities.Vote{
			VoteID:       "v-" + ballot.member,
			VotingItemID: item.VotingItemID,
			AssemblyID:   item.AssemblyID,
			MemberID:     ballot.member,
			Choice:       ballot.choice,
			CreatedAt:    scheduled.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("insert vote: %v", err)
		}
	}

	results, err := newResults(store).ComputeResults(ctx, item.VotingItemID)
	if err != nil {
		t.Fatalf("compute results failed: %v", err)
	}
	want := entities.Tally{InFavor: 2, Against: 1, TotalWeightedVotes: 3}
	if results.Tally != want {
		t.Fatalf("unexpected tally %+v", results.Tally)
	}
	if results.Ballots != 2 || results.EligibleMembers != 3 {
		t.Fatalf("unexpected ballots=%d eligible=%d", results.Ballots, results.EligibleMembers)
	}
	if !results.QuorumMet || !results.MajorityReached || !results.Approved {
		t.Fatalf("expected an approved result, got %+v", results)
	}
}

func TestComputeResultsIgnoresProxiesFromIneligibleGivers(t *testing.T) {
	ctx := context.Background()
	store, item := seedAssembly(t)

	// Stored before the rule was enforced, or the giver lost eligibility since.
	for _, delegation := range []entities.ProxyDelegation{
		{DelegationID: "d-1", AssemblyID: item.AssemblyID, GiverID: "duarte", ReceiverID: "bruno"},
		{DelegationID: "d-2", AssemblyID: item.AssemblyID, GiverID: "filipe", ReceiverID: "bruno"},
	} {
		if err := store.InsertDelegation(ctx, delegation); err != nil {
			t.Fatalf("insert delegation: %v", err)
		}
	}
	if err := store.InsertVote(ctx, entities.Vote{
		VoteID: "v-bruno", VotingItemID: item.VotingItemID, AssemblyID: item.AssemblyID,
		MemberID: "bruno", Choice: entities.VoteChoiceInFavor, CreatedAt: scheduled,
	}); err != nil {
		t.Fatalf("insert vote: %v", err)
	}

	results, err := newResults(store).ComputeResults(ctx, item.VotingItemID)
	if err != nil {
		t.Fatalf("compute results failed: %v", err)
	}
	if results.EligibleMembers != 3 || results.Tally.TotalWeightedVotes != 1 || results.Tally.InFavor != 1 {
		t.Fatalf("expected bruno's own weight only, got eligible=%d tally=%+v", results.EligibleMembers, results.Tally)
	}
	if results.QuorumMet {
		t.Fatal("one of three eligible members cannot meet a 50% quorum")
	}
}

func TestComputeResultsWithoutBallots(t *testing.T) {
	store, item := seedAssembly(t)
	results, err := newResults(store).ComputeResults(context.Background(), item.VotingItemID)
	if err != nil {
		t.Fatalf("compute results failed: %v", err)
	}
	if results.Tally.TotalWeightedVotes != 0 || results.QuorumMet || results.Approved {
		t.Fatalf("expected an empty, unapproved result, got %+v", results)
	}
}

func TestComputeResultsUnknownItem(t *testing.T) {
	store, _ := seedAssembly(t)
	uc := newResults(store)
	if _, err := uc.ComputeResults(context.Background(), "missing"); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := uc.ComputeResults(context.Background(), "  "); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestGetDelegationsFor(t *testing.T) {
	ctx := context.Background()
	store, item := seedAssembly(t)
	for _, delegation := range []entities.ProxyDelegation{
		{DelegationID: "d-1", AssemblyID: item.AssemblyID, GiverID: "ana", ReceiverID: "bruno"},
		{DelegationID: "d-2", AssemblyID: item.AssemblyID, GiverID: "carla", ReceiverID: "bruno"},
	} {
		if err := store.InsertDelegation(ctx, delegation); err != nil {
			t.Fatalf("insert delegation: %v", err)
		}
	}
	q := DelegationQueries{Assemblies: store, Delegations: store}

	bruno, err := q.GetDelegationsFor(ctx, item.AssemblyID, "bruno")
	if err != nil {
		t.Fatalf("get delegations failed: %v", err)
	}
	if bruno.Given != nil || len(bruno.Received) != 2 {
		t.Fatalf("unexpected view for receiver: %+v", bruno)
	}

	ana, err := q.GetDelegationsFor(ctx, item.AssemblyID, "ana")
	if err != nil {
		t.Fatalf("get delegations failed: %v", err)
	}
	if ana.Given == nil || ana.Given.ReceiverID != "bruno" || len(ana.Received) != 0 {
		t.Fatalf("unexpected view for giver: %+v", ana)
	}

	if _, err := q.GetDelegationsFor(ctx, "missing", "ana"); !errors.Is(err, domainerrors.ErrAssemblyNotFound) {
		t.Fatalf("expected assembly not found, got %v", err)
	}
}

func TestReadsReturnTypedNotFound(t *testing.T) {
	ctx := context.Background()
	store, item := seedAssembly(t)
	reads := ReadUseCase{Members: store, Assemblies: store, Items: store}

	if _, err := reads.GetMember(ctx, "nobody"); !errors.Is(err, domainerrors.ErrMemberNotFound) {
		t.Fatalf("expected member not found, got %v", err)
	}
	if _, err := reads.ListVotingItems(ctx, "missing"); !errors.Is(err, domainerrors.ErrAssemblyNotFound) {
		t.Fatalf("expected assembly not found, got %v", err)
	}
	items, err := reads.ListVotingItems(ctx, item.AssemblyID)
	if err != nil || len(items) != 1 || items[0].VotingItemID != item.VotingItemID {
		t.Fatalf("unexpected items %+v err=%v", items, err)
	}
}
