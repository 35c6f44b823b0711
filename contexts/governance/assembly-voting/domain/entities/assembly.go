package entities

import "time"

type AssemblyType string

const (
	AssemblyTypeOrdinary      AssemblyType = "ordinary"
	AssemblyTypeExtraordinary AssemblyType = "extraordinary"
)

func (t AssemblyType) Valid() bool {
	return t == AssemblyTypeOrdinary || t == AssemblyTypeExtraordinary
}

type AssemblyStatus string

const (
	AssemblyStatusScheduled  AssemblyStatus = "scheduled"
	AssemblyStatusInProgress AssemblyStatus = "em_curso"
	AssemblyStatusClosed     AssemblyStatus = "encerrada"
)

// CanTransitionTo reports whether the assembly may move to next.
// Transitions are strictly forward and never skip a state.
func (s AssemblyStatus) CanTransitionTo(next AssemblyStatus) bool {
	switch s {
	case AssemblyStatusScheduled:
		return next == AssemblyStatusInProgress
	case AssemblyStatusInProgress:
		return next == AssemblyStatusClosed
	default:
		return false
	}
}

type EligibilityRule string

const (
	EligibilityAllActive         EligibilityRule = "all"
	EligibilityFoundersEffective EligibilityRule = "founders_effective"
	EligibilityFoundersOnly      EligibilityRule = "founders_only"
)

func (r EligibilityRule) Valid() bool {
	switch r {
	case EligibilityAllActive, EligibilityFoundersEffective, EligibilityFoundersOnly:
		return true
	default:
		return false
	}
}

type Assembly struct {
	AssemblyID       string
	Title            string
	Description      string
	Type             AssemblyType
	ScheduledAt      time.Time
	Location         string
	QuorumPercentage int
	Status           AssemblyStatus
	EligibilityRule  EligibilityRule
	MinutesGenerated bool
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
