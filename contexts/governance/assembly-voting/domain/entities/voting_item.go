package entities

import "time"

type MajorityType string

const (
	MajoritySimple    MajorityType = "simple"
	MajorityQualified MajorityType = "qualified"
	MajoritySecret    MajorityType = "secret"
)

func (m MajorityType) Valid() bool {
	switch m {
	case MajoritySimple, MajorityQualified, MajoritySecret:
		return true
	default:
		return false
	}
}

type VotingItemStatus string

const (
	VotingItemStatusPending VotingItemStatus = "pending"
	VotingItemStatusOpen    VotingItemStatus = "open"
	VotingItemStatusClosed  VotingItemStatus = "closed"
)

func (s VotingItemStatus) CanTransitionTo(next VotingItemStatus) bool {
	switch s {
	case VotingItemStatusPending:
		return next == VotingItemStatusOpen
	case VotingItemStatusOpen:
		return next == VotingItemStatusClosed
	default:
		return false
	}
}

// VotingItem belongs to exactly one assembly. Once closed, Status and
// Result are frozen.
type VotingItem struct {
	VotingItemID     string
	AssemblyID       string
	Title            string
	Description      string
	MajorityType     MajorityType
	Status           VotingItemStatus
	QuorumPercentage int
	Result           *Results
	Position         int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ClosedAt         *time.Time
}
