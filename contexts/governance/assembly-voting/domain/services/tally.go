package services

import (
	"time"

	"bureausocial/contexts/governance/assembly-voting/domain/entities"
)

// ProxyWeights maps each receiver to 1 + the number of delegations it holds.
// Members without incoming delegations are absent and weigh 1.
func ProxyWeights(delegations []entities.ProxyDelegation) map[string]int {
	weights := make(map[string]int, len(delegations))
	for _, delegation := range delegations {
		if _, ok := weights[delegation.ReceiverID]; !ok {
			weights[delegation.ReceiverID] = 1
		}
		weights[delegation.ReceiverID]++
	}
	return weights
}

func weightOf(weights map[string]int, memberID string) int {
	if weight, ok := weights[memberID]; ok {
		return weight
	}
	return 1
}

// Tally sums ballots weighted by the proxies each voter holds.
func Tally(votes []entities.Vote, delegations []entities.ProxyDelegation) entities.Tally {
	weights := ProxyWeights(delegations)
	var tally entities.Tally
	for _, vote := range votes {
		weight := weightOf(weights, vote.MemberID)
		switch vote.Choice {
		case entities.VoteChoiceInFavor:
			tally.InFavor += weight
		case entities.VoteChoiceAgainst:
			tally.Against += weight
		case entities.VoteChoiceAbstain:
			tally.Abstain += weight
		default:
			continue
		}
		tally.TotalWeightedVotes += weight
	}
	return tally
}

// QuorumMet compares attendance against the required percentage of eligible
// members. Abstentions count as attendance. Zero eligible members never
// reaches quorum.
func QuorumMet(totalWeightedVotes int, eligibleMembers int, quorumPercentage int) bool {
	if eligibleMembers <= 0 {
		return false
	}
	return totalWeightedVotes*100 >= quorumPercentage*eligibleMembers
}

// MajorityReached evaluates in-favor against against; abstentions are
// excluded from the denominator.
func MajorityReached(majority entities.MajorityType, tally entities.Tally) bool {
	switch majority {
	case entities.MajorityQualified:
		if tally.InFavor == 0 {
			return false
		}
		return tally.InFavor*3 >= 2*(tally.InFavor+tally.Against)
	case entities.MajoritySimple, entities.MajoritySecret:
		return tally.InFavor > tally.Against
	default:
		return false
	}
}

// Evaluate produces the full result for one voting item. It is pure: the
// same inputs always yield the same output apart from computedAt.
func Evaluate(
	item entities.VotingItem,
	votes []entities.Vote,
	delegations []entities.ProxyDelegation,
	eligibleMembers int,
	computedAt time.Time,
) entities.Results {
	tally := Tally(votes, delegations)
	quorum := QuorumMet(tally.TotalWeightedVotes, eligibleMembers, item.QuorumPercentage)
	majority := MajorityReached(item.MajorityType, tally)
	return entities.Results{
		VotingItemID:     item.VotingItemID,
		Tally:            tally,
		Ballots:          len(votes),
		EligibleMembers:  eligibleMembers,
		QuorumPercentage: item.QuorumPercentage,
		QuorumMet:        quorum,
		MajorityType:     item.MajorityType,
		MajorityReached:  majority,
		Approved:         quorum && majority,
		ComputedAt:       computedAt.UTC(),
	}
}
