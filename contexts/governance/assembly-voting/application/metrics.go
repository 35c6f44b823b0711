package application

import (
	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

type nopMetrics struct{}

func (nopMetrics) VoteCast(entities.VoteChoice) {}
func (nopMetrics) VoteRejected(string)          {}
func (nopMetrics) DelegationCreated()           {}
func (nopMetrics) DelegationRevoked()           {}
func (nopMetrics) ResultsComputed()             {}
func (nopMetrics) VotingItemClosed(bool)        {}

// ResolveMetrics returns a no-op recorder when metrics are not wired.
func ResolveMetrics(metrics ports.Metrics) ports.Metrics {
	if metrics == nil {
		return nopMetrics{}
	}
	return metrics
}
