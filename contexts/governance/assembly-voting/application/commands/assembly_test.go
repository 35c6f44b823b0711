package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

type failingOutbox struct {
	calls int
}

func (o *failingOutbox) AppendOutbox(context.Context, ports.EventEnvelope) error {
	o.calls++
	return errors.New("outbox unavailable")
}

func TestCreateAssemblyValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	valid := CreateAssemblyCommand{
		Actor:            board,
		Title:            "Annual accounts",
		Type:             entities.AssemblyTypeOrdinary,
		ScheduledAt:      time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC),
		QuorumPercentage: 50,
		EligibilityRule:  entities.EligibilityFoundersEffective,
	}
	assembly, err := f.assemblies.CreateAssembly(ctx, valid)
	if err != nil {
		t.Fatalf("board should create assemblies: %v", err)
	}
	if assembly.Status != entities.AssemblyStatusScheduled || assembly.CreatedBy != "board" {
		t.Fatalf("unexpected assembly: %+v", assembly)
	}

	forbidden := valid
	forbidden.Actor = entities.Actor{MemberID: "ana"}
	if _, err := f.assemblies.CreateAssembly(ctx, forbidden); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	invalid := []func(cmd *CreateAssemblyCommand){
		func(cmd *CreateAssemblyCommand) { cmd.Title = "   " },
		func(cmd *CreateAssemblyCommand) { cmd.Type = "annual" },
		func(cmd *CreateAssemblyCommand) { cmd.EligibilityRule = "everyone" },
		func(cmd *CreateAssemblyCommand) { cmd.ScheduledAt = time.Time{} },
		func(cmd *CreateAssemblyCommand) { cmd.QuorumPercentage = 101 },
		func(cmd *CreateAssemblyCommand) { cmd.QuorumPercentage = -1 },
	}
	for i, mutate := range invalid {
		cmd := valid
		mutate(&cmd)
		if _, err := f.assemblies.CreateAssembly(ctx, cmd); !errors.Is(err, domainerrors.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
}

func TestAssemblyStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assembly := f.createAssembly(t, entities.EligibilityAllActive, 50)

	if _, err := f.assemblies.CloseAssembly(ctx, admin, assembly.AssemblyID); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected scheduled assembly close to fail, got %v", err)
	}
	if _, err := f.assemblies.StartAssembly(ctx, entities.Actor{MemberID: "ana"}, assembly.AssemblyID); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden start, got %v", err)
	}
	started, err := f.assemblies.StartAssembly(ctx, admin, assembly.AssemblyID)
	if err != nil || started.Status != entities.AssemblyStatusInProgress {
		t.Fatalf("expected em_curso, got %+v err=%v", started, err)
	}
	if _, err := f.assemblies.StartAssembly(ctx, admin, assembly.AssemblyID); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected second start to fail, got %v", err)
	}
	closed, err := f.assemblies.CloseAssembly(ctx, admin, assembly.AssemblyID)
	if err != nil || closed.Status != entities.AssemblyStatusClosed {
		t.Fatalf("expected encerrada, got %+v err=%v", closed, err)
	}
	_, err = f.assemblies.CreateVotingItem(ctx, CreateVotingItemCommand{
		Actor:        admin,
		AssemblyID:   assembly.AssemblyID,
		Title:        "Too late",
		MajorityType: entities.MajoritySimple,
	})
	if !errors.Is(err, domainerrors.ErrAssemblyClosed) {
		t.Fatalf("expected assembly closed, got %v", err)
	}

	types := pendingEventTypes(t, f.store)
	count := 0
	for _, eventType := range types {
		if eventType == EventAssemblyStatusChanged {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("expected two status change events, got %v", types)
	}
}

func TestVotingItemDefaultsAndPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assembly := f.createAssembly(t, entities.EligibilityAllActive, 40)
	override := 75

	first, err := f.assemblies.CreateVotingItem(ctx, CreateVotingItemCommand{
		Actor: admin, AssemblyID: assembly.AssemblyID, Title: "Budget", MajorityType: entities.MajoritySimple,
	})
	if err != nil {
		t.Fatalf("create first item failed: %v", err)
	}
	second, err := f.assemblies.CreateVotingItem(ctx, CreateVotingItemCommand{
		Actor: admin, AssemblyID: assembly.AssemblyID, Title: "Statutes", MajorityType: entities.MajorityQualified,
		QuorumPercentage: &override,
	})
	if err != nil {
		t.Fatalf("create second item failed: %v", err)
	}
	if first.QuorumPercentage != 40 || second.QuorumPercentage != 75 {
		t.Fatalf("unexpected quorum: %d, %d", first.QuorumPercentage, second.QuorumPercentage)
	}
	if first.Position != 1 || second.Position != 2 {
		t.Fatalf("unexpected positions: %d, %d", first.Position, second.Position)
	}
	if first.Status != entities.VotingItemStatusPending {
		t.Fatalf("expected pending item, got %s", first.Status)
	}
	if _, err := f.assemblies.OpenVotingItem(ctx, admin, first.VotingItemID); !errors.Is(err, domainerrors.ErrAssemblyNotInProgress) {
		t.Fatalf("expected open before start to fail, got %v", err)
	}
}

func TestCloseAssemblyFreezesOpenItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assembly := f.createAssembly(t, entities.EligibilityFoundersOnly, 50)
	item := f.openItem(t, assembly.AssemblyID, entities.MajoritySimple)
	if err := f.cast("ana", item.VotingItemID, entities.VoteChoiceInFavor); err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	if _, err := f.assemblies.CloseAssembly(ctx, admin, assembly.AssemblyID); err != nil {
		t.Fatalf("close assembly failed: %v", err)
	}
	frozen, found, err := f.store.GetVotingItem(ctx, item.VotingItemID)
	if err != nil || !found {
		t.Fatalf("get item failed: found=%v err=%v", found, err)
	}
	if frozen.Status != entities.VotingItemStatusClosed || frozen.Result == nil {
		t.Fatalf("expected frozen item, got %+v", frozen)
	}
	if frozen.Result.EligibleMembers != 2 || frozen.Result.Tally.InFavor != 1 || !frozen.Result.Approved {
		t.Fatalf("unexpected frozen result: %+v", frozen.Result)
	}
	if err := f.cast("admin", item.VotingItemID, entities.VoteChoiceAgainst); !errors.Is(err, domainerrors.ErrItemNotOpen) {
		t.Fatalf("expected closed item to reject votes, got %v", err)
	}
}

func TestGenerateMinutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assembly := f.createAssembly(t, entities.EligibilityAllActive, 50)
	if err := f.delegate(assembly.AssemblyID, "ana", "bruno"); err != nil {
		t.Fatalf("delegate failed: %v", err)
	}
	item := f.openItem(t, assembly.AssemblyID, entities.MajoritySimple)
	if err := f.cast("bruno", item.VotingItemID, entities.VoteChoiceInFavor); err != nil {
		t.Fatalf("bruno vote failed: %v", err)
	}
	if err := f.cast("carla", item.VotingItemID, entities.VoteChoiceAbstain); err != nil {
		t.Fatalf("carla vote failed: %v", err)
	}

	if _, err := f.assemblies.GenerateMinutes(ctx, admin, assembly.AssemblyID); !errors.Is(err, domainerrors.ErrAssemblyNotClosed) {
		t.Fatalf("expected assembly not closed, got %v", err)
	}
	if _, err := f.assemblies.CloseAssembly(ctx, admin, assembly.AssemblyID); err != nil {
		t.Fatalf("close assembly failed: %v", err)
	}
	if _, err := f.assemblies.GenerateMinutes(ctx, entities.Actor{MemberID: "ana"}, assembly.AssemblyID); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	document, err := f.assemblies.GenerateMinutes(ctx, admin, assembly.AssemblyID)
	if err != nil {
		t.Fatalf("generate minutes failed: %v", err)
	}
	if document.AssemblyID != assembly.AssemblyID || len(document.Content) == 0 {
		t.Fatalf("unexpected document: %+v", document)
	}
	attendees := f.renderer.input.Attendees
	if len(attendees) != 2 || attendees[0].MemberID != "bruno" || attendees[1].MemberID != "carla" {
		t.Fatalf("unexpected attendees: %+v", attendees)
	}
	if len(attendees[0].ProxiesHeld) != 1 || attendees[0].ProxiesHeld[0] != "ana" {
		t.Fatalf("expected bruno to hold ana's proxy, got %+v", attendees[0].ProxiesHeld)
	}
	if len(f.renderer.input.Items) != 1 || f.renderer.input.Items[0].Result == nil {
		t.Fatalf("expected frozen item in minutes input, got %+v", f.renderer.input.Items)
	}

	stored, _, _ := f.store.GetAssembly(ctx, assembly.AssemblyID)
	if !stored.MinutesGenerated {
		t.Fatal("expected minutes flag to be set")
	}
	data := eventData(t, f.store, EventAssemblyMinutesGenerated)
	recipients, _ := data["member_ids"].([]any)
	got := make([]string, 0, len(recipients))
	for _, id := range recipients {
		got = append(got, id.(string))
	}
	if want := []string{"ana", "bruno", "carla"}; !equalStrings(got, want) {
		t.Fatalf("expected minutes recipients %v including the proxy giver, got %v", want, got)
	}
}

func equalStrings(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOutboxFailureDoesNotFailCommand(t *testing.T) {
	f := newFixture(t)
	outbox := &failingOutbox{}
	f.assemblies.Outbox = outbox
	f.delegations.Outbox = outbox

	assembly := f.createAssembly(t, entities.EligibilityAllActive, 50)
	if err := f.delegate(assembly.AssemblyID, "ana", "bruno"); err != nil {
		t.Fatalf("delegation should survive outbox failure: %v", err)
	}
	item := f.openItem(t, assembly.AssemblyID, entities.MajoritySimple)
	if _, err := f.assemblies.CloseVotingItem(context.Background(), admin, item.VotingItemID); err != nil {
		t.Fatalf("close should survive outbox failure: %v", err)
	}
	if outbox.calls == 0 {
		t.Fatal("expected outbox to be attempted")
	}
}
