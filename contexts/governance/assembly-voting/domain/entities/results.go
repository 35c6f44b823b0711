package entities

import "time"

// Tally holds proxy-weighted counts.
type Tally struct {
	InFavor            int
	Against            int
	Abstain            int
	TotalWeightedVotes int
}

// Results is the evaluated outcome of a voting item. It is the shape
// frozen onto a closed item.
type Results struct {
	VotingItemID     string
	Tally            Tally
	Ballots          int
	EligibleMembers  int
	QuorumPercentage int
	QuorumMet        bool
	MajorityType     MajorityType
	MajorityReached  bool
	Approved         bool
	ComputedAt       time.Time
}
