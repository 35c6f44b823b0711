package services

import "bureausocial/contexts/governance/assembly-voting/domain/entities"

// IsEligible applies an assembly voting-eligibility rule to a member.
// Inactive and honorary members are never eligible.
func IsEligible(rule entities.EligibilityRule, member entities.Member) bool {
	if !member.Active {
		return false
	}
	switch rule {
	case entities.EligibilityAllActive:
		return member.Category != entities.MemberCategoryHonorary
	case entities.EligibilityFoundersEffective:
		return member.Category == entities.MemberCategoryFounder ||
			member.Category == entities.MemberCategoryEffective
	case entities.EligibilityFoundersOnly:
		return member.Category == entities.MemberCategoryFounder
	default:
		return false
	}
}

// CountEligible returns how many members satisfy rule.
func CountEligible(rule entities.EligibilityRule, members []entities.Member) int {
	count := 0
	for _, member := range members {
		if IsEligible(rule, member) {
			count++
		}
	}
	return count
}

// EffectiveDelegations drops delegations whose giver is unknown or no longer
// satisfies rule. A proxy carries no weight its giver could not cast.
func EffectiveDelegations(
	rule entities.EligibilityRule,
	members []entities.Member,
	delegations []entities.ProxyDelegation,
) []entities.ProxyDelegation {
	eligible := make(map[string]bool, len(members))
	for _, member := range members {
		if IsEligible(rule, member) {
			eligible[member.MemberID] = true
		}
	}
	out := make([]entities.ProxyDelegation, 0, len(delegations))
	for _, delegation := range delegations {
		if eligible[delegation.GiverID] {
			out = append(out, delegation)
		}
	}
	return out
}
