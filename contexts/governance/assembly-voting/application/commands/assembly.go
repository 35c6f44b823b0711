package commands

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "bureausocial/contexts/governance/assembly-voting/application"
	"bureausocial/contexts/governance/assembly-voting/application/queries"
	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
	"bureausocial/contexts/governance/assembly-voting/domain/services"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

type CreateAssemblyCommand struct {
	Actor            entities.Actor
	Title            string
	Description      string
	Type             entities.AssemblyType
	ScheduledAt      time.Time
	Location         string
	QuorumPercentage int
	EligibilityRule  entities.EligibilityRule
}

type CreateVotingItemCommand struct {
	Actor        entities.Actor
	AssemblyID   string
	Title        string
	Description  string
	MajorityType entities.MajorityType
	// QuorumPercentage overrides the assembly quorum when set.
	QuorumPercentage *int
}

// AssemblyUseCase drives the assembly and voting-item state machines.
// Every operation is restricted to admin or board actors.
type AssemblyUseCase struct {
	Members     ports.MemberRepository
	Assemblies  ports.AssemblyRepository
	Items       ports.VotingItemRepository
	Votes       ports.VoteRepository
	Delegations ports.DelegationRepository
	Outbox      ports.OutboxWriter
	Minutes     ports.MinutesRenderer
	Sanitizer   ports.TextSanitizer
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Metrics     ports.Metrics
	Logger      *slog.Logger
}

func (uc AssemblyUseCase) CreateAssembly(ctx context.Context, cmd CreateAssemblyCommand) (entities.Assembly, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Actor.CanManageAssemblies() {
		return entities.Assembly{}, domainerrors.ErrForbidden
	}
	title := uc.sanitize(cmd.Title)
	if title == "" ||
		!cmd.Type.Valid() ||
		!cmd.EligibilityRule.Valid() ||
		cmd.ScheduledAt.IsZero() ||
		!validQuorum(cmd.QuorumPercentage) {
		return entities.Assembly{}, domainerrors.ErrInvalidInput
	}

	assemblyID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Assembly{}, err
	}
	now := resolveNow(uc.Clock)
	assembly := entities.Assembly{
		AssemblyID:       assemblyID,
		Title:            title,
		Description:      uc.sanitize(cmd.Description),
		Type:             cmd.Type,
		ScheduledAt:      cmd.ScheduledAt.UTC(),
		Location:         uc.sanitize(cmd.Location),
		QuorumPercentage: cmd.QuorumPercentage,
		Status:           entities.AssemblyStatusScheduled,
		EligibilityRule:  cmd.EligibilityRule,
		CreatedBy:        strings.TrimSpace(cmd.Actor.MemberID),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := uc.Assemblies.CreateAssembly(ctx, assembly); err != nil {
		return entities.Assembly{}, err
	}
	logger.Info("assembly created",
		"event", "assembly_created",
		"module", application.ModuleName,
		"layer", "application",
		"assembly_id", assembly.AssemblyID,
		"type", string(assembly.Type),
		"eligibility_rule", string(assembly.EligibilityRule),
	)
	return assembly, nil
}

func (uc AssemblyUseCase) StartAssembly(ctx context.Context, actor entities.Actor, assemblyID string) (entities.Assembly, error) {
	assembly, err := uc.loadManagedAssembly(ctx, actor, assemblyID)
	if err != nil {
		return entities.Assembly{}, err
	}
	return uc.transitionAssembly(ctx, assembly, entities.AssemblyStatusInProgress)
}

// CloseAssembly moves the assembly to encerrada and freezes every item
// still open with its final results.
func (uc AssemblyUseCase) CloseAssembly(ctx context.Context, actor entities.Actor, assemblyID string) (entities.Assembly, error) {
	assembly, err := uc.loadManagedAssembly(ctx, actor, assemblyID)
	if err != nil {
		return entities.Assembly{}, err
	}
	if !assembly.Status.CanTransitionTo(entities.AssemblyStatusClosed) {
		return entities.Assembly{}, domainerrors.ErrAssemblyNotInProgress
	}

	items, err := uc.Items.ListVotingItemsByAssembly(ctx, assembly.AssemblyID)
	if err != nil {
		return entities.Assembly{}, err
	}
	for _, item := range items {
		if item.Status != entities.VotingItemStatusOpen {
			continue
		}
		if _, err := uc.freezeVotingItem(ctx, item); err != nil {
			return entities.Assembly{}, err
		}
	}
	return uc.transitionAssembly(ctx, assembly, entities.AssemblyStatusClosed)
}

func (uc AssemblyUseCase) CreateVotingItem(ctx context.Context, cmd CreateVotingItemCommand) (entities.VotingItem, error) {
	logger := application.ResolveLogger(uc.Logger)
	assembly, err := uc.loadManagedAssembly(ctx, cmd.Actor, cmd.AssemblyID)
	if err != nil {
		return entities.VotingItem{}, err
	}
	title := uc.sanitize(cmd.Title)
	if title == "" || !cmd.MajorityType.Valid() {
		return entities.VotingItem{}, domainerrors.ErrInvalidInput
	}
	quorum := assembly.QuorumPercentage
	if cmd.QuorumPercentage != nil {
		quorum = *cmd.QuorumPercentage
	}
	if !validQuorum(quorum) {
		return entities.VotingItem{}, domainerrors.ErrInvalidInput
	}
	if assembly.Status == entities.AssemblyStatusClosed {
		return entities.VotingItem{}, domainerrors.ErrAssemblyClosed
	}

	existing, err := uc.Items.ListVotingItemsByAssembly(ctx, assembly.AssemblyID)
	if err != nil {
		return entities.VotingItem{}, err
	}
	itemID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.VotingItem{}, err
	}
	now := resolveNow(uc.Clock)
	item := entities.VotingItem{
		VotingItemID:     itemID,
		AssemblyID:       assembly.AssemblyID,
		Title:            title,
		Description:      uc.sanitize(cmd.Description),
		MajorityType:     cmd.MajorityType,
		Status:           entities.VotingItemStatusPending,
		QuorumPercentage: quorum,
		Position:         len(existing) + 1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := uc.Items.CreateVotingItem(ctx, item); err != nil {
		return entities.VotingItem{}, err
	}
	logger.Info("voting item created",
		"event", "assembly_voting_item_created",
		"module", application.ModuleName,
		"layer", "application",
		"voting_item_id", item.VotingItemID,
		"assembly_id", item.AssemblyID,
		"majority_type", string(item.MajorityType),
	)
	return item, nil
}

func (uc AssemblyUseCase) OpenVotingItem(ctx context.Context, actor entities.Actor, votingItemID string) (entities.VotingItem, error) {
	logger := application.ResolveLogger(uc.Logger)
	item, assembly, err := uc.loadManagedItem(ctx, actor, votingItemID)
	if err != nil {
		return entities.VotingItem{}, err
	}
	if assembly.Status != entities.AssemblyStatusInProgress {
		return entities.VotingItem{}, domainerrors.ErrAssemblyNotInProgress
	}
	if !item.Status.CanTransitionTo(entities.VotingItemStatusOpen) {
		return entities.VotingItem{}, domainerrors.ErrInvalidTransition
	}
	item.Status = entities.VotingItemStatusOpen
	item.UpdatedAt = resolveNow(uc.Clock)
	if err := uc.Items.UpdateVotingItem(ctx, item); err != nil {
		return entities.VotingItem{}, err
	}
	logger.Info("voting item opened",
		"event", "assembly_voting_item_opened",
		"module", application.ModuleName,
		"layer", "application",
		"voting_item_id", item.VotingItemID,
		"assembly_id", item.AssemblyID,
	)
	return item, nil
}

// CloseVotingItem computes the item's results and freezes them on the
// item together with the closed status.
func (uc AssemblyUseCase) CloseVotingItem(ctx context.Context, actor entities.Actor, votingItemID string) (entities.VotingItem, error) {
	item, _, err := uc.loadManagedItem(ctx, actor, votingItemID)
	if err != nil {
		return entities.VotingItem{}, err
	}
	if !item.Status.CanTransitionTo(entities.VotingItemStatusClosed) {
		return entities.VotingItem{}, domainerrors.ErrInvalidTransition
	}
	return uc.freezeVotingItem(ctx, item)
}

// GenerateMinutes renders the minutes of a closed assembly. It may be
// called again to re-render; the stored snapshots never change.
func (uc AssemblyUseCase) GenerateMinutes(
	ctx context.Context,
	actor entities.Actor,
	assemblyID string,
) (entities.MinutesDocument, error) {
	logger := application.ResolveLogger(uc.Logger)
	assembly, err := uc.loadManagedAssembly(ctx, actor, assemblyID)
	if err != nil {
		return entities.MinutesDocument{}, err
	}
	if assembly.Status != entities.AssemblyStatusClosed {
		return entities.MinutesDocument{}, domainerrors.ErrAssemblyNotClosed
	}
	if uc.Minutes == nil {
		return entities.MinutesDocument{}, domainerrors.ErrInvalidInput
	}

	items, err := uc.Items.ListVotingItemsByAssembly(ctx, assembly.AssemblyID)
	if err != nil {
		return entities.MinutesDocument{}, err
	}
	attendees, delegations, err := uc.attendees(ctx, assembly)
	if err != nil {
		return entities.MinutesDocument{}, err
	}
	now := resolveNow(uc.Clock)
	document, err := uc.Minutes.Render(ctx, ports.MinutesInput{
		Assembly:    assembly,
		Attendees:   attendees,
		Items:       items,
		GeneratedAt: now,
	})
	if err != nil {
		logger.Error("minutes rendering failed",
			"event", "assembly_minutes_render_failed",
			"module", application.ModuleName,
			"layer", "application",
			"assembly_id", assembly.AssemblyID,
			"error", err.Error(),
		)
		return entities.MinutesDocument{}, err
	}

	if !assembly.MinutesGenerated {
		assembly.MinutesGenerated = true
		assembly.UpdatedAt = now
		if err := uc.Assemblies.UpdateAssembly(ctx, assembly); err != nil {
			return entities.MinutesDocument{}, err
		}
	}
	memberIDs := minutesRecipients(attendees, delegations)
	uc.appender().append(ctx, EventAssemblyMinutesGenerated, assembly.AssemblyID, now, map[string]any{
		"assembly_id": assembly.AssemblyID,
		"title":       assembly.Title,
		"file_name":   document.FileName,
		"member_ids":  memberIDs,
	})
	logger.Info("assembly minutes generated",
		"event", "assembly_minutes_generated",
		"module", application.ModuleName,
		"layer", "application",
		"assembly_id", assembly.AssemblyID,
		"attendees", len(attendees),
		"items", len(items),
	)
	return document, nil
}

// attendees lists ballot holders with the proxies they carried. Only
// delegations whose giver is still eligible are reported.
func (uc AssemblyUseCase) attendees(
	ctx context.Context,
	assembly entities.Assembly,
) ([]entities.Attendee, []entities.ProxyDelegation, error) {
	votes, err := uc.Votes.ListVotesByAssembly(ctx, assembly.AssemblyID)
	if err != nil {
		return nil, nil, err
	}
	delegations, err := uc.Delegations.ListDelegationsByAssembly(ctx, assembly.AssemblyID)
	if err != nil {
		return nil, nil, err
	}
	members, err := uc.Members.ListMembers(ctx)
	if err != nil {
		return nil, nil, err
	}
	delegations = services.EffectiveDelegations(assembly.EligibilityRule, members, delegations)
	roster := make(map[string]entities.Member, len(members))
	for _, member := range members {
		roster[member.MemberID] = member
	}

	ballots := make(map[string]int, len(votes))
	for _, vote := range votes {
		ballots[vote.MemberID]++
	}
	proxies := make(map[string][]string, len(delegations))
	for _, delegation := range delegations {
		proxies[delegation.ReceiverID] = append(proxies[delegation.ReceiverID], delegation.GiverID)
	}

	attendees := make([]entities.Attendee, 0, len(ballots))
	for memberID, count := range ballots {
		attendee := entities.Attendee{MemberID: memberID, BallotsInItems: count}
		if member, found := roster[memberID]; found {
			attendee.Name = member.Name
			attendee.Category = member.Category
		}
		held := append([]string(nil), proxies[memberID]...)
		sort.Strings(held)
		attendee.ProxiesHeld = held
		attendees = append(attendees, attendee)
	}
	sort.Slice(attendees, func(i, j int) bool {
		if attendees[i].Name != attendees[j].Name {
			return attendees[i].Name < attendees[j].Name
		}
		return attendees[i].MemberID < attendees[j].MemberID
	})
	return attendees, delegations, nil
}

// minutesRecipients is every attendee plus every member represented by one.
func minutesRecipients(attendees []entities.Attendee, delegations []entities.ProxyDelegation) []string {
	seen := make(map[string]struct{}, len(attendees)+len(delegations))
	for _, attendee := range attendees {
		seen[attendee.MemberID] = struct{}{}
	}
	for _, delegation := range delegations {
		seen[delegation.GiverID] = struct{}{}
	}
	memberIDs := make([]string, 0, len(seen))
	for memberID := range seen {
		memberIDs = append(memberIDs, memberID)
	}
	sort.Strings(memberIDs)
	return memberIDs
}

func (uc AssemblyUseCase) freezeVotingItem(ctx context.Context, item entities.VotingItem) (entities.VotingItem, error) {
	logger := application.ResolveLogger(uc.Logger)
	resultsUC := uc.results()
	evaluator, err := resultsUC.LoadEvaluator(ctx, item.VotingItemID)
	if err != nil {
		return entities.VotingItem{}, err
	}
	now := resolveNow(uc.Clock)
	item, err = uc.Items.FreezeVotingItem(ctx, item.VotingItemID, now, func(votes []entities.Vote) entities.Results {
		return evaluator.Evaluate(votes, now)
	})
	if err != nil {
		return entities.VotingItem{}, err
	}
	results := *item.Result
	resultsUC.Observe(results)

	application.ResolveMetrics(uc.Metrics).VotingItemClosed(results.Approved)
	uc.appender().append(ctx, EventVotingItemClosed, item.AssemblyID, now, map[string]any{
		"voting_item_id":       item.VotingItemID,
		"assembly_id":          item.AssemblyID,
		"in_favor":             results.Tally.InFavor,
		"against":              results.Tally.Against,
		"abstain":              results.Tally.Abstain,
		"total_weighted_votes": results.Tally.TotalWeightedVotes,
		"quorum_met":           results.QuorumMet,
		"approved":             results.Approved,
	})
	logger.Info("voting item closed",
		"event", "assembly_voting_item_closed",
		"module", application.ModuleName,
		"layer", "application",
		"voting_item_id", item.VotingItemID,
		"assembly_id", item.AssemblyID,
		"quorum_met", results.QuorumMet,
		"approved", results.Approved,
	)
	return item, nil
}

func (uc AssemblyUseCase) transitionAssembly(
	ctx context.Context,
	assembly entities.Assembly,
	next entities.AssemblyStatus,
) (entities.Assembly, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !assembly.Status.CanTransitionTo(next) {
		return entities.Assembly{}, domainerrors.ErrInvalidTransition
	}
	previous := assembly.Status
	now := resolveNow(uc.Clock)
	assembly.Status = next
	assembly.UpdatedAt = now
	if err := uc.Assemblies.UpdateAssembly(ctx, assembly); err != nil {
		return entities.Assembly{}, err
	}
	uc.appender().append(ctx, EventAssemblyStatusChanged, assembly.AssemblyID, now, map[string]any{
		"assembly_id": assembly.AssemblyID,
		"from":        string(previous),
		"to":          string(next),
	})
	logger.Info("assembly status changed",
		"event", "assembly_status_changed",
		"module", application.ModuleName,
		"layer", "application",
		"assembly_id", assembly.AssemblyID,
		"from", string(previous),
		"to", string(next),
	)
	return assembly, nil
}

func (uc AssemblyUseCase) loadManagedAssembly(
	ctx context.Context,
	actor entities.Actor,
	assemblyID string,
) (entities.Assembly, error) {
	if !actor.CanManageAssemblies() {
		return entities.Assembly{}, domainerrors.ErrForbidden
	}
	assemblyID = strings.TrimSpace(assemblyID)
	if assemblyID == "" {
		return entities.Assembly{}, domainerrors.ErrInvalidInput
	}
	assembly, found, err := uc.Assemblies.GetAssembly(ctx, assemblyID)
	if err != nil {
		return entities.Assembly{}, err
	}
	if !found {
		return entities.Assembly{}, domainerrors.ErrAssemblyNotFound
	}
	return assembly, nil
}

func (uc AssemblyUseCase) loadManagedItem(
	ctx context.Context,
	actor entities.Actor,
	votingItemID string,
) (entities.VotingItem, entities.Assembly, error) {
	if !actor.CanManageAssemblies() {
		return entities.VotingItem{}, entities.Assembly{}, domainerrors.ErrForbidden
	}
	votingItemID = strings.TrimSpace(votingItemID)
	if votingItemID == "" {
		return entities.VotingItem{}, entities.Assembly{}, domainerrors.ErrInvalidInput
	}
	item, found, err := uc.Items.GetVotingItem(ctx, votingItemID)
	if err != nil {
		return entities.VotingItem{}, entities.Assembly{}, err
	}
	if !found {
		return entities.VotingItem{}, entities.Assembly{}, domainerrors.ErrVotingItemNotFound
	}
	assembly, found, err := uc.Assemblies.GetAssembly(ctx, item.AssemblyID)
	if err != nil {
		return entities.VotingItem{}, entities.Assembly{}, err
	}
	if !found {
		return entities.VotingItem{}, entities.Assembly{}, domainerrors.ErrAssemblyNotFound
	}
	return item, assembly, nil
}

func (uc AssemblyUseCase) results() queries.ResultsUseCase {
	return queries.ResultsUseCase{
		Members:     uc.Members,
		Assemblies:  uc.Assemblies,
		Items:       uc.Items,
		Votes:       uc.Votes,
		Delegations: uc.Delegations,
		Clock:       uc.Clock,
		Metrics:     uc.Metrics,
		Logger:      uc.Logger,
	}
}

func (uc AssemblyUseCase) appender() eventAppender {
	return eventAppender{outbox: uc.Outbox, idGen: uc.IDGen, logger: uc.Logger}
}

func (uc AssemblyUseCase) sanitize(value string) string {
	value = strings.TrimSpace(value)
	if uc.Sanitizer == nil {
		return value
	}
	return strings.TrimSpace(uc.Sanitizer.Sanitize(value))
}

func validQuorum(percentage int) bool {
	return percentage >= 0 && percentage <= 100
}
