package queries

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "bureausocial/contexts/governance/assembly-voting/application"
	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
	"bureausocial/contexts/governance/assembly-voting/domain/services"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

// ResultsUseCase aggregates ballots for a voting item. It only reads and is
// safe to run concurrently; freezing the output is the caller's decision.
type ResultsUseCase struct {
	Members     ports.MemberRepository
	Assemblies  ports.AssemblyRepository
	Items       ports.VotingItemRepository
	Votes       ports.VoteRepository
	Delegations ports.DelegationRepository
	Clock       ports.Clock
	Metrics     ports.Metrics
	Logger      *slog.Logger
}

// Evaluator holds everything a result depends on except the ballots.
type Evaluator struct {
	Item        entities.VotingItem
	Assembly    entities.Assembly
	Delegations []entities.ProxyDelegation
	Eligible    int
}

// Evaluate is pure and may run while a store holds its lock.
func (e Evaluator) Evaluate(votes []entities.Vote, at time.Time) entities.Results {
	return services.Evaluate(e.Item, votes, e.Delegations, e.Eligible, at)
}

// LoadEvaluator resolves the item, its assembly, the eligible headcount and
// the delegations whose giver is still eligible.
func (uc ResultsUseCase) LoadEvaluator(ctx context.Context, votingItemID string) (Evaluator, error) {
	votingItemID = strings.TrimSpace(votingItemID)
	if votingItemID == "" {
		return Evaluator{}, domainerrors.ErrInvalidInput
	}

	item, found, err := uc.Items.GetVotingItem(ctx, votingItemID)
	if err != nil {
		return Evaluator{}, err
	}
	if !found {
		return Evaluator{}, domainerrors.ErrVotingItemNotFound
	}
	assembly, found, err := uc.Assemblies.GetAssembly(ctx, item.AssemblyID)
	if err != nil {
		return Evaluator{}, err
	}
	if !found {
		return Evaluator{}, domainerrors.ErrAssemblyNotFound
	}

	delegations, err := uc.Delegations.ListDelegationsByAssembly(ctx, assembly.AssemblyID)
	if err != nil {
		return Evaluator{}, err
	}
	members, err := uc.Members.ListMembers(ctx)
	if err != nil {
		return Evaluator{}, err
	}
	return Evaluator{
		Item:        item,
		Assembly:    assembly,
		Delegations: services.EffectiveDelegations(assembly.EligibilityRule, members, delegations),
		Eligible:    services.CountEligible(assembly.EligibilityRule, members),
	}, nil
}

// ComputeResults loads every ballot of the item and the effective delegations
// of its assembly, then evaluates weighted tally, quorum and majority.
func (uc ResultsUseCase) ComputeResults(ctx context.Context, votingItemID string) (entities.Results, error) {
	evaluator, err := uc.LoadEvaluator(ctx, votingItemID)
	if err != nil {
		return entities.Results{}, err
	}
	votes, err := uc.Votes.ListVotesByItem(ctx, evaluator.Item.VotingItemID)
	if err != nil {
		return entities.Results{}, err
	}
	results := evaluator.Evaluate(votes, uc.now())
	uc.Observe(results)
	return results, nil
}

// Observe records metrics and a debug line for a computed result.
func (uc ResultsUseCase) Observe(results entities.Results) {
	application.ResolveMetrics(uc.Metrics).ResultsComputed()
	application.ResolveLogger(uc.Logger).Debug("voting item results computed",
		"event", "assembly_results_computed",
		"module", application.ModuleName,
		"layer", "application",
		"voting_item_id", results.VotingItemID,
		"ballots", results.Ballots,
		"total_weighted_votes", results.Tally.TotalWeightedVotes,
		"eligible_members", results.EligibleMembers,
		"quorum_met", results.QuorumMet,
	)
}

func (uc ResultsUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
