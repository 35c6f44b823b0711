package entities

import "time"

type VoteChoice string

const (
	VoteChoiceInFavor VoteChoice = "in_favor"
	VoteChoiceAgainst VoteChoice = "against"
	VoteChoiceAbstain VoteChoice = "abstain"
)

func (c VoteChoice) Valid() bool {
	switch c {
	case VoteChoiceInFavor, VoteChoiceAgainst, VoteChoiceAbstain:
		return true
	default:
		return false
	}
}

// Vote is immutable once stored. Proxy weight is applied at aggregation
// time and never persisted on the ballot.
type Vote struct {
	VoteID       string
	VotingItemID string
	AssemblyID   string
	MemberID     string
	Choice       VoteChoice
	CreatedAt    time.Time
}
