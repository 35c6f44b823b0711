package commands

import (
	"context"
	"errors"
	"testing"

	"bureausocial/contexts/governance/assembly-voting/application/queries"
	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
)

func TestDelegationScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assembly := f.createAssembly(t, entities.EligibilityAllActive, 50)
	reads := queries.DelegationQueries{Assemblies: f.store, Delegations: f.store}

	if err := f.delegate(assembly.AssemblyID, "ana", "bruno"); err != nil {
		t.Fatalf("create delegation failed: %v", err)
	}
	view, err := reads.GetDelegationsFor(ctx, assembly.AssemblyID, "bruno")
	if err != nil {
		t.Fatalf("get delegations failed: %v", err)
	}
	if len(view.Received) != 1 || view.Received[0].GiverID != "ana" {
		t.Fatalf("expected bruno to hold ana's proxy, got %+v", view.Received)
	}

	err = f.delegate(assembly.AssemblyID, "ana", "carla")
	if !errors.Is(err, domainerrors.ErrInvalidDelegation) {
		t.Fatalf("expected invalid delegation for second delegation, got %v", err)
	}

	revoked, err := f.delegations.RevokeDelegation(ctx, RevokeDelegationCommand{
		Actor:      entities.Actor{MemberID: "ana"},
		AssemblyID: assembly.AssemblyID,
	})
	if err != nil || !revoked {
		t.Fatalf("expected revoke to succeed, got revoked=%v err=%v", revoked, err)
	}
	view, err = reads.GetDelegationsFor(ctx, assembly.AssemblyID, "ana")
	if err != nil {
		t.Fatalf("get delegations failed: %v", err)
	}
	if view.Given != nil {
		t.Fatalf("expected no outgoing delegation after revoke, got %+v", view.Given)
	}

	types := pendingEventTypes(t, f.store)
	if !containsString(types, EventDelegationCreated) || !containsString(types, EventDelegationRevoked) {
		t.Fatalf("expected delegation events in outbox, got %v", types)
	}
}

func TestCreateDelegationValidation(t *testing.T) {
	f := newFixture(t)
	assembly := f.createAssembly(t, entities.EligibilityAllActive, 50)

	cases := []struct {
		name     string
		giver    string
		receiver string
		want     error
	}{
		{name: "self delegation", giver: "ana", receiver: "ana", want: domainerrors.ErrSelfDelegation},
		{name: "unknown receiver", giver: "ana", receiver: "nobody", want: domainerrors.ErrNotFound},
		{name: "inactive receiver", giver: "ana", receiver: "filipe", want: domainerrors.ErrReceiverInactive},
		{name: "inactive giver", giver: "filipe", receiver: "ana", want: domainerrors.ErrGiverInactive},
		{name: "honorary giver", giver: "eva", receiver: "ana", want: domainerrors.ErrGiverNotEligible},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.delegate(assembly.AssemblyID, tc.giver, tc.receiver)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if err := f.delegate("missing", "ana", "bruno"); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found for unknown assembly, got %v", err)
	}
}

func TestGiverMustBeEligibleUnderAssemblyRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assembly := f.createAssembly(t, entities.EligibilityFoundersOnly, 50)

	for _, giver := range []string{"eva", "duarte", "bruno"} {
		err := f.delegate(assembly.AssemblyID, giver, "ana")
		if !errors.Is(err, domainerrors.ErrGiverNotEligible) || !errors.Is(err, domainerrors.ErrInvalidDelegation) {
			t.Fatalf("expected %s to be refused as giver, got %v", giver, err)
		}
	}
	// Any active member may still receive.
	if err := f.delegate(assembly.AssemblyID, "admin", "duarte"); err != nil {
		t.Fatalf("founder delegating to a contributor failed: %v", err)
	}

	item := f.openItem(t, assembly.AssemblyID, entities.MajoritySimple)
	if err := f.cast("ana", item.VotingItemID, entities.VoteChoiceInFavor); err != nil {
		t.Fatalf("ana vote failed: %v", err)
	}
	results, err := f.assemblies.results().ComputeResults(ctx, item.VotingItemID)
	if err != nil {
		t.Fatalf("compute results failed: %v", err)
	}
	// admin and ana are the only eligible founders; duarte holds admin's
	// proxy but cannot cast it.
	if results.EligibleMembers != 2 || results.Tally.TotalWeightedVotes != 1 {
		t.Fatalf("unexpected results eligible=%d total=%d", results.EligibleMembers, results.Tally.TotalWeightedVotes)
	}
}

func TestDelegationsLockOnceAssemblyStarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assembly := f.createAssembly(t, entities.EligibilityAllActive, 50)
	if err := f.delegate(assembly.AssemblyID, "ana", "bruno"); err != nil {
		t.Fatalf("create delegation failed: %v", err)
	}
	if _, err := f.assemblies.StartAssembly(ctx, admin, assembly.AssemblyID); err != nil {
		t.Fatalf("start assembly failed: %v", err)
	}

	if err := f.delegate(assembly.AssemblyID, "carla", "bruno"); !errors.Is(err, domainerrors.ErrDelegationPhaseClosed) {
		t.Fatalf("expected phase closed on create, got %v", err)
	}
	_, err := f.delegations.RevokeDelegation(ctx, RevokeDelegationCommand{
		Actor:      entities.Actor{MemberID: "ana"},
		AssemblyID: assembly.AssemblyID,
	})
	if !errors.Is(err, domainerrors.ErrInvalidDelegation) {
		t.Fatalf("expected invalid delegation on late revoke, got %v", err)
	}

	// Revoking nothing stays a no-op in every phase.
	revoked, err := f.delegations.RevokeDelegation(ctx, RevokeDelegationCommand{
		Actor:      entities.Actor{MemberID: "carla"},
		AssemblyID: assembly.AssemblyID,
	})
	if err != nil || revoked {
		t.Fatalf("expected no-op revoke, got revoked=%v err=%v", revoked, err)
	}
}
