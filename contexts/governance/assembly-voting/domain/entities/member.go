package entities

import "time"

type MemberCategory string

const (
	MemberCategoryFounder     MemberCategory = "founder"
	MemberCategoryEffective   MemberCategory = "effective"
	MemberCategoryContributor MemberCategory = "contributor"
	MemberCategoryHonorary    MemberCategory = "honorary"
)

func (c MemberCategory) Valid() bool {
	switch c {
	case MemberCategoryFounder, MemberCategoryEffective, MemberCategoryContributor, MemberCategoryHonorary:
		return true
	default:
		return false
	}
}

// Member is never deleted; deactivation clears Active.
type Member struct {
	MemberID  string
	Name      string
	Email     string
	Category  MemberCategory
	Active    bool
	IsAdmin   bool
	IsBoard   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Actor is the authenticated caller as supplied by the identity provider.
type Actor struct {
	MemberID string
	IsAdmin  bool
	IsBoard  bool
}

func (a Actor) CanManageAssemblies() bool {
	return a.IsAdmin || a.IsBoard
}
