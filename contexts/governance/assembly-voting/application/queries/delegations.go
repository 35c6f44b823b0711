package queries

import (
	"context"
	"strings"

	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

type DelegationQueries struct {
	Assemblies  ports.AssemblyRepository
	Delegations ports.DelegationRepository
}

// GetDelegationsFor returns the member's outgoing delegation (if any) and
// every delegation the member received for the assembly.
func (q DelegationQueries) GetDelegationsFor(
	ctx context.Context,
	assemblyID string,
	memberID string,
) (entities.DelegationView, error) {
	assemblyID = strings.TrimSpace(assemblyID)
	memberID = strings.TrimSpace(memberID)
	if assemblyID == "" || memberID == "" {
		return entities.DelegationView{}, domainerrors.ErrInvalidInput
	}
	if _, found, err := q.Assemblies.GetAssembly(ctx, assemblyID); err != nil {
		return entities.DelegationView{}, err
	} else if !found {
		return entities.DelegationView{}, domainerrors.ErrAssemblyNotFound
	}

	view := entities.DelegationView{
		AssemblyID: assemblyID,
		MemberID:   memberID,
		Received:   []entities.ProxyDelegation{},
	}
	given, found, err := q.Delegations.GetDelegationByGiver(ctx, assemblyID, memberID)
	if err != nil {
		return entities.DelegationView{}, err
	}
	if found {
		view.Given = &given
	}
	received, err := q.Delegations.ListDelegationsByReceiver(ctx, assemblyID, memberID)
	if err != nil {
		return entities.DelegationView{}, err
	}
	view.Received = append(view.Received, received...)
	return view, nil
}
