package queries

import (
	"context"
	"strings"

	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

type ReadUseCase struct {
	Members    ports.MemberRepository
	Assemblies ports.AssemblyRepository
	Items      ports.VotingItemRepository
}

func (uc ReadUseCase) GetMember(ctx context.Context, memberID string) (entities.Member, error) {
	member, found, err := uc.Members.GetMember(ctx, strings.TrimSpace(memberID))
	if err != nil {
		return entities.Member{}, err
	}
	if !found {
		return entities.Member{}, domainerrors.ErrMemberNotFound
	}
	return member, nil
}

func (uc ReadUseCase) ListMembers(ctx context.Context) ([]entities.Member, error) {
	return uc.Members.ListMembers(ctx)
}

func (uc ReadUseCase) GetAssembly(ctx context.Context, assemblyID string) (entities.Assembly, error) {
	assembly, found, err := uc.Assemblies.GetAssembly(ctx, strings.TrimSpace(assemblyID))
	if err != nil {
		return entities.Assembly{}, err
	}
	if !found {
		return entities.Assembly{}, domainerrors.ErrAssemblyNotFound
	}
	return assembly, nil
}

func (uc ReadUseCase) ListAssemblies(ctx context.Context) ([]entities.Assembly, error) {
	return uc.Assemblies.ListAssemblies(ctx)
}

func (uc ReadUseCase) GetVotingItem(ctx context.Context, votingItemID string) (entities.VotingItem, error) {
	item, found, err := uc.Items.GetVotingItem(ctx, strings.TrimSpace(votingItemID))
	if err != nil {
		return entities.VotingItem{}, err
	}
	if !found {
		return entities.VotingItem{}, domainerrors.ErrVotingItemNotFound
	}
	return item, nil
}

func (uc ReadUseCase) ListVotingItems(ctx context.Context, assemblyID string) ([]entities.VotingItem, error) {
	if _, err := uc.GetAssembly(ctx, assemblyID); err != nil {
		return nil, err
	}
	return uc.Items.ListVotingItemsByAssembly(ctx, strings.TrimSpace(assemblyID))
}
