package services

import (
	"testing"

	"bureausocial/contexts/governance/assembly-voting/domain/entities"
)

func TestIsEligible(t *testing.T) {
	founder := entities.Member{Category: entities.MemberCategoryFounder, Active: true}
	effective := entities.Member{Category: entities.MemberCategoryEffective, Active: true}
	contributor := entities.Member{Category: entities.MemberCategoryContributor, Active: true}
	honorary := entities.Member{Category: entities.MemberCategoryHonorary, Active: true}
	inactiveFounder := entities.Member{Category: entities.MemberCategoryFounder}

	cases := []struct {
		rule   entities.EligibilityRule
		member entities.Member
		want   bool
	}{
		{entities.EligibilityAllActive, founder, true},
		{entities.EligibilityAllActive, contributor, true},
		{entities.EligibilityAllActive, honorary, false},
		{entities.EligibilityAllActive, inactiveFounder, false},
		{entities.EligibilityFoundersEffective, effective, true},
		{entities.EligibilityFoundersEffective, contributor, false},
		{entities.EligibilityFoundersOnly, founder, true},
		{entities.EligibilityFoundersOnly, effective, false},
		{entities.EligibilityRule("unknown"), founder, false},
	}
	for _, tc := range cases {
		if got := IsEligible(tc.rule, tc.member); got != tc.want {
			t.Fatalf("IsEligible(%s, %s active=%v) = %v, want %v",
				tc.rule, tc.member.Category, tc.member.Active, got, tc.want)
		}
	}

	members := []entities.Member{founder, effective, contributor, honorary, inactiveFounder}
	if got := CountEligible(entities.EligibilityAllActive, members); got != 3 {
		t.Fatalf("expected 3 eligible members, got %d", got)
	}
}

func TestEffectiveDelegationsDropsIneligibleGivers(t *testing.T) {
	members := []entities.Member{
		{MemberID: "ana", Category: entities.MemberCategoryFounder, Active: true},
		{MemberID: "eva", Category: entities.MemberCategoryHonorary, Active: true},
		{MemberID: "filipe", Category: entities.MemberCategoryFounder},
		{MemberID: "bruno", Category: entities.MemberCategoryEffective, Active: true},
	}
	delegations := []entities.ProxyDelegation{
		{DelegationID: "d-1", GiverID: "ana", ReceiverID: "bruno"},
		{DelegationID: "d-2", GiverID: "eva", ReceiverID: "bruno"},
		{DelegationID: "d-3", GiverID: "filipe", ReceiverID: "bruno"},
		{DelegationID: "d-4", GiverID: "ghost", ReceiverID: "bruno"},
	}

	got := EffectiveDelegations(entities.EligibilityFoundersOnly, members, delegations)
	if len(got) != 1 || got[0].DelegationID != "d-1" {
		t.Fatalf("expected only ana's delegation to count, got %+v", got)
	}
	if got := EffectiveDelegations(entities.EligibilityAllActive, members, delegations); len(got) != 1 {
		t.Fatalf("honorary and inactive givers never count, got %+v", got)
	}
}
