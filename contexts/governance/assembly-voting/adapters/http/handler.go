package httpadapter

import (
	"context"
	"log/slog"
	"strings"

	"bureausocial/contexts/governance/assembly-voting/application/commands"
	"bureausocial/contexts/governance/assembly-voting/application/queries"
	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
	httptransport "bureausocial/contexts/governance/assembly-voting/transport/http"
)

// Handler maps transport DTOs onto use cases. It is free of net/http so
// the server and tests can drive it directly.
type Handler struct {
	Members         commands.MemberUseCase
	Assemblies      commands.AssemblyUseCase
	Votes           commands.VoteUseCase
	Delegations     commands.DelegationUseCase
	Results         queries.ResultsUseCase
	DelegationReads queries.DelegationQueries
	Reads           queries.ReadUseCase
	Logger          *slog.Logger
}

func (h Handler) CreateMemberHandler(
	ctx context.Context,
	actor entities.Actor,
	req httptransport.CreateMemberRequest,
) (httptransport.MemberResponse, error) {
	member, err := h.Members.CreateMember(ctx, commands.CreateMemberCommand{
		Actor:    actor,
		Name:     req.Name,
		Email:    req.Email,
		Category: entities.MemberCategory(strings.TrimSpace(req.Category)),
		IsAdmin:  req.IsAdmin,
		IsBoard:  req.IsBoard,
	})
	if err != nil {
		return httptransport.MemberResponse{}, err
	}
	return mapMember(member), nil
}

func (h Handler) UpdateMemberHandler(
	ctx context.Context,
	actor entities.Actor,
	memberID string,
	req httptransport.UpdateMemberRequest,
) (httptransport.MemberResponse, error) {
	cmd := commands.UpdateMemberCommand{
		Actor:    actor,
		MemberID: memberID,
		Name:     req.Name,
		IsAdmin:  req.IsAdmin,
		IsBoard:  req.IsBoard,
	}
	if req.Category != nil {
		category := entities.MemberCategory(strings.TrimSpace(*req.Category))
		cmd.Category = &category
	}
	member, err := h.Members.UpdateMember(ctx, cmd)
	if err != nil {
		return httptransport.MemberResponse{}, err
	}
	return mapMember(member), nil
}

func (h Handler) DeactivateMemberHandler(
	ctx context.Context,
	actor entities.Actor,
	memberID string,
) (httptransport.MemberResponse, error) {
	member, err := h.Members.DeactivateMember(ctx, actor, memberID)
	if err != nil {
		return httptransport.MemberResponse{}, err
	}
	return mapMember(member), nil
}

func (h Handler) GetMemberHandler(ctx context.Context, memberID string) (httptransport.MemberResponse, error) {
	member, err := h.Reads.GetMember(ctx, memberID)
	if err != nil {
		return httptransport.MemberResponse{}, err
	}
	return mapMember(member), nil
}

func (h Handler) ListMembersHandler(ctx context.Context) (httptransport.MemberListResponse, error) {
	members, err := h.Reads.ListMembers(ctx)
	if err != nil {
		return httptransport.MemberListResponse{}, err
	}
	items := make([]httptransport.MemberResponse, 0, len(members))
	for _, member := range members {
		items = append(items, mapMember(member))
	}
	return httptransport.MemberListResponse{Items: items}, nil
}

func (h Handler) CreateAssemblyHandler(
	ctx context.Context,
	actor entities.Actor,
	req httptransport.CreateAssemblyRequest,
) (httptransport.AssemblyResponse, error) {
	assembly, err := h.Assemblies.CreateAssembly(ctx, commands.CreateAssemblyCommand{
		Actor:            actor,
		Title:            req.Title,
		Description:      req.Description,
		Type:             entities.AssemblyType(strings.TrimSpace(req.Type)),
		ScheduledAt:      req.ScheduledAt,
		Location:         req.Location,
		QuorumPercentage: req.QuorumPercentage,
		EligibilityRule:  entities.EligibilityRule(strings.TrimSpace(req.EligibilityRule)),
	})
	if err != nil {
		return httptransport.AssemblyResponse{}, err
	}
	return mapAssembly(assembly), nil
}

func (h Handler) GetAssemblyHandler(ctx context.Context, assemblyID string) (httptransport.AssemblyResponse, error) {
	assembly, err := h.Reads.GetAssembly(ctx, assemblyID)
	if err != nil {
		return httptransport.AssemblyResponse{}, err
	}
	return mapAssembly(assembly), nil
}

func (h Handler) ListAssembliesHandler(ctx context.Context) (httptransport.AssemblyListResponse, error) {
	assemblies, err := h.Reads.ListAssemblies(ctx)
	if err != nil {
		return httptransport.AssemblyListResponse{}, err
	}
	items := make([]httptransport.AssemblyResponse, 0, len(assemblies))
	for _, assembly := range assemblies {
		items = append(items, mapAssembly(assembly))
	}
	return httptransport.AssemblyListResponse{Items: items}, nil
}

func (h Handler) StartAssemblyHandler(
	ctx context.Context,
	actor entities.Actor,
	assemblyID string,
) (httptransport.AssemblyResponse, error) {
	assembly, err := h.Assemblies.StartAssembly(ctx, actor, assemblyID)
	if err != nil {
		return httptransport.AssemblyResponse{}, err
	}
	return mapAssembly(assembly), nil
}

func (h Handler) CloseAssemblyHandler(
	ctx context.Context,
	actor entities.Actor,
	assemblyID string,
) (httptransport.AssemblyResponse, error) {
	assembly, err := h.Assemblies.CloseAssembly(ctx, actor, assemblyID)
	if err != nil {
		return httptransport.AssemblyResponse{}, err
	}
	return mapAssembly(assembly), nil
}

func (h Handler) GenerateMinutesHandler(
	ctx context.Context,
	actor entities.Actor,
	assemblyID string,
) (httptransport.MinutesResponse, error) {
	document, err := h.Assemblies.GenerateMinutes(ctx, actor, assemblyID)
	if err != nil {
		return httptransport.MinutesResponse{}, err
	}
	return httptransport.MinutesResponse{
		AssemblyID:  document.AssemblyID,
		FileName:    document.FileName,
		ContentType: document.ContentType,
		Content:     document.Content,
	}, nil
}

func (h Handler) CreateVotingItemHandler(
	ctx context.Context,
	actor entities.Actor,
	assemblyID string,
	req httptransport.CreateVotingItemRequest,
) (httptransport.VotingItemResponse, error) {
	item, err := h.Assemblies.CreateVotingItem(ctx, commands.CreateVotingItemCommand{
		Actor:            actor,
		AssemblyID:       assemblyID,
		Title:            req.Title,
		Description:      req.Description,
		MajorityType:     entities.MajorityType(strings.TrimSpace(req.MajorityType)),
		QuorumPercentage: req.QuorumPercentage,
	})
	if err != nil {
		return httptransport.VotingItemResponse{}, err
	}
	return mapVotingItem(item), nil
}

func (h Handler) ListVotingItemsHandler(ctx context.Context, assemblyID string) (httptransport.VotingItemListResponse, error) {
	items, err := h.Reads.ListVotingItems(ctx, assemblyID)
	if err != nil {
		return httptransport.VotingItemListResponse{}, err
	}
	response := make([]httptransport.VotingItemResponse, 0, len(items))
	for _, item := range items {
		response = append(response, mapVotingItem(item))
	}
	return httptransport.VotingItemListResponse{Items: response}, nil
}

func (h Handler) GetVotingItemHandler(ctx context.Context, votingItemID string) (httptransport.VotingItemResponse, error) {
	item, err := h.Reads.GetVotingItem(ctx, votingItemID)
	if err != nil {
		return httptransport.VotingItemResponse{}, err
	}
	return mapVotingItem(item), nil
}

func (h Handler) OpenVotingItemHandler(
	ctx context.Context,
	actor entities.Actor,
	votingItemID string,
) (httptransport.VotingItemResponse, error) {
	item, err := h.Assemblies.OpenVotingItem(ctx, actor, votingItemID)
	if err != nil {
		return httptransport.VotingItemResponse{}, err
	}
	return mapVotingItem(item), nil
}

func (h Handler) CloseVotingItemHandler(
	ctx context.Context,
	actor entities.Actor,
	votingItemID string,
) (httptransport.VotingItemResponse, error) {
	item, err := h.Assemblies.CloseVotingItem(ctx, actor, votingItemID)
	if err != nil {
		return httptransport.VotingItemResponse{}, err
	}
	return mapVotingItem(item), nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	actor entities.Actor,
	votingItemID string,
	req httptransport.CastVoteRequest,
) (httptransport.VoteResponse, error) {
	vote, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		Actor:        actor,
		VotingItemID: votingItemID,
		Choice:       entities.VoteChoice(strings.TrimSpace(req.Choice)),
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return httptransport.VoteResponse{
		VoteID:       vote.VoteID,
		VotingItemID: vote.VotingItemID,
		AssemblyID:   vote.AssemblyID,
		MemberID:     vote.MemberID,
		CreatedAt:    vote.CreatedAt,
	}, nil
}

// ResultsHandler returns the frozen snapshot of a closed item and a live
// computation otherwise.
func (h Handler) ResultsHandler(ctx context.Context, votingItemID string) (httptransport.ResultsResponse, error) {
	item, err := h.Reads.GetVotingItem(ctx, votingItemID)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	if item.Status == entities.VotingItemStatusClosed && item.Result != nil {
		return mapResults(*item.Result, true), nil
	}
	results, err := h.Results.ComputeResults(ctx, item.VotingItemID)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	return mapResults(results, false), nil
}

func (h Handler) CreateDelegationHandler(
	ctx context.Context,
	actor entities.Actor,
	assemblyID string,
	req httptransport.CreateDelegationRequest,
) (httptransport.DelegationResponse, error) {
	delegation, err := h.Delegations.CreateDelegation(ctx, commands.CreateDelegationCommand{
		Actor:      actor,
		AssemblyID: assemblyID,
		ReceiverID: req.ReceiverID,
	})
	if err != nil {
		return httptransport.DelegationResponse{}, err
	}
	return mapDelegation(delegation), nil
}

func (h Handler) RevokeDelegationHandler(
	ctx context.Context,
	actor entities.Actor,
	assemblyID string,
) (httptransport.RevokeDelegationResponse, error) {
	revoked, err := h.Delegations.RevokeDelegation(ctx, commands.RevokeDelegationCommand{
		Actor:      actor,
		AssemblyID: assemblyID,
	})
	if err != nil {
		return httptransport.RevokeDelegationResponse{}, err
	}
	return httptransport.RevokeDelegationResponse{
		AssemblyID: strings.TrimSpace(assemblyID),
		Revoked:    revoked,
	}, nil
}

// DelegationsForHandler shows the actor's own delegations. Looking at
// another member requires admin or board rights.
func (h Handler) DelegationsForHandler(
	ctx context.Context,
	actor entities.Actor,
	assemblyID string,
	memberID string,
) (httptransport.DelegationsForResponse, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		memberID = strings.TrimSpace(actor.MemberID)
	}
	if memberID != strings.TrimSpace(actor.MemberID) && !actor.CanManageAssemblies() {
		return httptransport.DelegationsForResponse{}, domainerrors.ErrForbidden
	}
	view, err := h.DelegationReads.GetDelegationsFor(ctx, assemblyID, memberID)
	if err != nil {
		return httptransport.DelegationsForResponse{}, err
	}
	response := httptransport.DelegationsForResponse{
		AssemblyID: view.AssemblyID,
		MemberID:   view.MemberID,
		Received:   make([]httptransport.DelegationResponse, 0, len(view.Received)),
		VoteWeight: 1 + len(view.Received),
	}
	if view.Given != nil {
		given := mapDelegation(*view.Given)
		response.Given = &given
		response.VoteWeight = 0
	}
	for _, delegation := range view.Received {
		response.Received = append(response.Received, mapDelegation(delegation))
	}
	return response, nil
}

func mapMember(member entities.Member) httptransport.MemberResponse {
	return httptransport.MemberResponse{
		MemberID:  member.MemberID,
		Name:      member.Name,
		Email:     member.Email,
		Category:  string(member.Category),
		Active:    member.Active,
		IsAdmin:   member.IsAdmin,
		IsBoard:   member.IsBoard,
		CreatedAt: member.CreatedAt,
		UpdatedAt: member.UpdatedAt,
	}
}

func mapAssembly(assembly entities.Assembly) httptransport.AssemblyResponse {
	return httptransport.AssemblyResponse{
		AssemblyID:       assembly.AssemblyID,
		Title:            assembly.Title,
		Description:      assembly.Description,
		Type:             string(assembly.Type),
		ScheduledAt:      assembly.ScheduledAt,
		Location:         assembly.Location,
		QuorumPercentage: assembly.QuorumPercentage,
		Status:           string(assembly.Status),
		EligibilityRule:  string(assembly.EligibilityRule),
		MinutesGenerated: assembly.MinutesGenerated,
		CreatedBy:        assembly.CreatedBy,
		CreatedAt:        assembly.CreatedAt,
		UpdatedAt:        assembly.UpdatedAt,
	}
}

func mapVotingItem(item entities.VotingItem) httptransport.VotingItemResponse {
	response := httptransport.VotingItemResponse{
		VotingItemID:     item.VotingItemID,
		AssemblyID:       item.AssemblyID,
		Title:            item.Title,
		Description:      item.Description,
		MajorityType:     string(item.MajorityType),
		Status:           string(item.Status),
		QuorumPercentage: item.QuorumPercentage,
		Position:         item.Position,
		ClosedAt:         item.ClosedAt,
		CreatedAt:        item.CreatedAt,
		UpdatedAt:        item.UpdatedAt,
	}
	if item.Result != nil {
		result := mapResults(*item.Result, item.Status == entities.VotingItemStatusClosed)
		response.Result = &result
	}
	return response
}

func mapResults(results entities.Results, final bool) httptransport.ResultsResponse {
	return httptransport.ResultsResponse{
		VotingItemID: results.VotingItemID,
		Tally: httptransport.TallyResponse{
			InFavor:            results.Tally.InFavor,
			Against:            results.Tally.Against,
			Abstain:            results.Tally.Abstain,
			TotalWeightedVotes: results.Tally.TotalWeightedVotes,
		},
		Ballots:          results.Ballots,
		EligibleMembers:  results.EligibleMembers,
		QuorumPercentage: results.QuorumPercentage,
		QuorumMet:        results.QuorumMet,
		MajorityType:     string(results.MajorityType),
		MajorityReached:  results.MajorityReached,
		Approved:         results.Approved,
		Final:            final,
		ComputedAt:       results.ComputedAt,
	}
}

func mapDelegation(delegation entities.ProxyDelegation) httptransport.DelegationResponse {
	return httptransport.DelegationResponse{
		DelegationID: delegation.DelegationID,
		AssemblyID:   delegation.AssemblyID,
		GiverID:      delegation.GiverID,
		ReceiverID:   delegation.ReceiverID,
		CreatedAt:    delegation.CreatedAt,
	}
}
