package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	application "bureausocial/contexts/governance/assembly-voting/application"
	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
	"bureausocial/contexts/governance/assembly-voting/domain/services"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

// CastVoteCommand is the write-model input for a ballot. The voter is the
// authenticated actor; nobody casts on behalf of another member.
type CastVoteCommand struct {
	Actor        entities.Actor
	VotingItemID string
	Choice       entities.VoteChoice
}

// VoteUseCase accepts one ballot per eligible member per voting item.
// Ballots are permanent: there is no update or retraction.
type VoteUseCase struct {
	Members     ports.MemberRepository
	Assemblies  ports.AssemblyRepository
	Items       ports.VotingItemRepository
	Votes       ports.VoteRepository
	Delegations ports.DelegationRepository
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Metrics     ports.Metrics
	Logger      *slog.Logger
}

// CastVote validates item state, eligibility and delegation status, then
// stores the raw choice. A concurrent double submission loses at the
// store's uniqueness constraint with ErrDuplicateVote, and a ballot racing
// a close is refused by the store with ErrItemNotOpen.
func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (entities.Vote, error) {
	logger := application.ResolveLogger(uc.Logger)
	metrics := application.ResolveMetrics(uc.Metrics)
	memberID := strings.TrimSpace(cmd.Actor.MemberID)
	votingItemID := strings.TrimSpace(cmd.VotingItemID)
	logger.Info("vote cast processing started",
		"event", "assembly_vote_cast_started",
		"module", application.ModuleName,
		"layer", "application",
		"member_id", memberID,
		"voting_item_id", votingItemID,
	)
	if memberID == "" || votingItemID == "" || !cmd.Choice.Valid() {
		logger.Warn("vote cast validation failed",
			"event", "assembly_vote_cast_validation_failed",
			"module", application.ModuleName,
			"layer", "application",
			"member_id", memberID,
			"voting_item_id", votingItemID,
			"choice", string(cmd.Choice),
		)
		return entities.Vote{}, domainerrors.ErrInvalidInput
	}

	vote, err := uc.castVote(ctx, memberID, votingItemID, cmd.Choice)
	if err != nil {
		metrics.VoteRejected(rejectionReason(err))
		logger.Warn("vote cast rejected",
			"event", "assembly_vote_cast_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"member_id", memberID,
			"voting_item_id", votingItemID,
			"error", err.Error(),
		)
		return entities.Vote{}, err
	}

	metrics.VoteCast(vote.Choice)
	logger.Info("vote cast",
		"event", "assembly_vote_cast",
		"module", application.ModuleName,
		"layer", "application",
		"vote_id", vote.VoteID,
		"voting_item_id", vote.VotingItemID,
		"assembly_id", vote.AssemblyID,
		"member_id", vote.MemberID,
	)
	return vote, nil
}

func (uc VoteUseCase) castVote(
	ctx context.Context,
	memberID string,
	votingItemID string,
	choice entities.VoteChoice,
) (entities.Vote, error) {
	item, found, err := uc.Items.GetVotingItem(ctx, votingItemID)
	if err != nil {
		return entities.Vote{}, err
	}
	if !found {
		return entities.Vote{}, domainerrors.ErrVotingItemNotFound
	}
	if _, found, err := uc.Votes.GetVoteByIdentity(ctx, item.VotingItemID, memberID); err != nil {
		return entities.Vote{}, err
	} else if found {
		return entities.Vote{}, domainerrors.ErrDuplicateVote
	}
	if item.Status != entities.VotingItemStatusOpen {
		return entities.Vote{}, domainerrors.ErrItemNotOpen
	}

	assembly, found, err := uc.Assemblies.GetAssembly(ctx, item.AssemblyID)
	if err != nil {
		return entities.Vote{}, err
	}
	if !found {
		return entities.Vote{}, domainerrors.ErrAssemblyNotFound
	}
	if assembly.Status != entities.AssemblyStatusInProgress {
		return entities.Vote{}, domainerrors.ErrItemNotOpen
	}

	member, found, err := uc.Members.GetMember(ctx, memberID)
	if err != nil {
		return entities.Vote{}, err
	}
	if !found {
		return entities.Vote{}, domainerrors.ErrMemberNotFound
	}
	if !member.Active {
		return entities.Vote{}, domainerrors.ErrInactiveMember
	}
	if !services.IsEligible(assembly.EligibilityRule, member) {
		return entities.Vote{}, domainerrors.ErrNotEligible
	}
	if _, delegated, err := uc.Delegations.GetDelegationByGiver(ctx, assembly.AssemblyID, member.MemberID); err != nil {
		return entities.Vote{}, err
	} else if delegated {
		return entities.Vote{}, domainerrors.ErrDelegatedVote
	}

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Vote{}, err
	}
	vote := entities.Vote{
		VoteID:       voteID,
		VotingItemID: item.VotingItemID,
		AssemblyID:   assembly.AssemblyID,
		MemberID:     member.MemberID,
		Choice:       choice,
		CreatedAt:    resolveNow(uc.Clock),
	}
	if err := uc.Votes.InsertVote(ctx, vote); err != nil {
		return entities.Vote{}, err
	}
	return vote, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domainerrors.ErrDuplicateVote):
		return "duplicate_vote"
	case errors.Is(err, domainerrors.ErrItemNotOpen):
		return "item_not_open"
	case errors.Is(err, domainerrors.ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, domainerrors.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
