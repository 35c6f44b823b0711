package commands

import (
	"context"
	"log/slog"
	"strings"

	application "bureausocial/contexts/governance/assembly-voting/application"
	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
	"bureausocial/contexts/governance/assembly-voting/domain/services"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

type CreateDelegationCommand struct {
	Actor      entities.Actor
	AssemblyID string
	ReceiverID string
}

type RevokeDelegationCommand struct {
	Actor      entities.Actor
	AssemblyID string
}

// DelegationUseCase manages proxy delegations. The giver is always the
// authenticated actor. Delegations can only change while the assembly is
// scheduled.
type DelegationUseCase struct {
	Members     ports.MemberRepository
	Assemblies  ports.AssemblyRepository
	Delegations ports.DelegationRepository
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Metrics     ports.Metrics
	Logger      *slog.Logger
}

func (uc DelegationUseCase) CreateDelegation(
	ctx context.Context,
	cmd CreateDelegationCommand,
) (entities.ProxyDelegation, error) {
	logger := application.ResolveLogger(uc.Logger)
	giverID := strings.TrimSpace(cmd.Actor.MemberID)
	receiverID := strings.TrimSpace(cmd.ReceiverID)
	assemblyID := strings.TrimSpace(cmd.AssemblyID)
	if giverID == "" || receiverID == "" || assemblyID == "" {
		return entities.ProxyDelegation{}, domainerrors.ErrInvalidInput
	}

	delegation, err := uc.createDelegation(ctx, assemblyID, giverID, receiverID)
	if err != nil {
		logger.Warn("delegation create rejected",
			"event", "assembly_delegation_create_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"assembly_id", assemblyID,
			"giver_id", giverID,
			"receiver_id", receiverID,
			"error", err.Error(),
		)
		return entities.ProxyDelegation{}, err
	}

	application.ResolveMetrics(uc.Metrics).DelegationCreated()
	eventAppender{outbox: uc.Outbox, idGen: uc.IDGen, logger: uc.Logger}.append(
		ctx,
		EventDelegationCreated,
		delegation.AssemblyID,
		delegation.CreatedAt,
		map[string]any{
			"delegation_id": delegation.DelegationID,
			"assembly_id":   delegation.AssemblyID,
			"giver_id":      delegation.GiverID,
			"receiver_id":   delegation.ReceiverID,
		},
	)
	logger.Info("delegation created",
		"event", "assembly_delegation_created",
		"module", application.ModuleName,
		"layer", "application",
		"delegation_id", delegation.DelegationID,
		"assembly_id", delegation.AssemblyID,
		"giver_id", delegation.GiverID,
		"receiver_id", delegation.ReceiverID,
	)
	return delegation, nil
}

func (uc DelegationUseCase) createDelegation(
	ctx context.Context,
	assemblyID string,
	giverID string,
	receiverID string,
) (entities.ProxyDelegation, error) {
	if giverID == receiverID {
		return entities.ProxyDelegation{}, domainerrors.ErrSelfDelegation
	}
	assembly, found, err := uc.Assemblies.GetAssembly(ctx, assemblyID)
	if err != nil {
		return entities.ProxyDelegation{}, err
	}
	if !found {
		return entities.ProxyDelegation{}, domainerrors.ErrAssemblyNotFound
	}
	if assembly.Status != entities.AssemblyStatusScheduled {
		return entities.ProxyDelegation{}, domainerrors.ErrDelegationPhaseClosed
	}

	giver, found, err := uc.Members.GetMember(ctx, giverID)
	if err != nil {
		return entities.ProxyDelegation{}, err
	}
	if !found {
		return entities.ProxyDelegation{}, domainerrors.ErrMemberNotFound
	}
	if !giver.Active {
		return entities.ProxyDelegation{}, domainerrors.ErrGiverInactive
	}
	if !services.IsEligible(assembly.EligibilityRule, giver) {
		return entities.ProxyDelegation{}, domainerrors.ErrGiverNotEligible
	}
	receiver, found, err := uc.Members.GetMember(ctx, receiverID)
	if err != nil {
		return entities.ProxyDelegation{}, err
	}
	if !found {
		return entities.ProxyDelegation{}, domainerrors.ErrMemberNotFound
	}
	if !receiver.Active {
		return entities.ProxyDelegation{}, domainerrors.ErrReceiverInactive
	}

	if _, exists, err := uc.Delegations.GetDelegationByGiver(ctx, assembly.AssemblyID, giver.MemberID); err != nil {
		return entities.ProxyDelegation{}, err
	} else if exists {
		return entities.ProxyDelegation{}, domainerrors.ErrDelegationExists
	}

	delegationID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.ProxyDelegation{}, err
	}
	delegation := entities.ProxyDelegation{
		DelegationID: delegationID,
		AssemblyID:   assembly.AssemblyID,
		GiverID:      giver.MemberID,
		ReceiverID:   receiver.MemberID,
		CreatedAt:    resolveNow(uc.Clock),
	}
	// The store's (assembly, giver) uniqueness settles concurrent creates.
	if err := uc.Delegations.InsertDelegation(ctx, delegation); err != nil {
		return entities.ProxyDelegation{}, err
	}
	return delegation, nil
}

// RevokeDelegation removes the actor's delegation for the assembly. It
// reports whether a delegation was removed; revoking nothing is not an
// error.
func (uc DelegationUseCase) RevokeDelegation(ctx context.Context, cmd RevokeDelegationCommand) (bool, error) {
	logger := application.ResolveLogger(uc.Logger)
	giverID := strings.TrimSpace(cmd.Actor.MemberID)
	assemblyID := strings.TrimSpace(cmd.AssemblyID)
	if giverID == "" || assemblyID == "" {
		return false, domainerrors.ErrInvalidInput
	}

	assembly, found, err := uc.Assemblies.GetAssembly(ctx, assemblyID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, domainerrors.ErrAssemblyNotFound
	}
	current, exists, err := uc.Delegations.GetDelegationByGiver(ctx, assembly.AssemblyID, giverID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if assembly.Status != entities.AssemblyStatusScheduled {
		logger.Warn("delegation revoke rejected",
			"event", "assembly_delegation_revoke_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"assembly_id", assembly.AssemblyID,
			"giver_id", giverID,
			"status", string(assembly.Status),
		)
		return false, domainerrors.ErrDelegationPhaseClosed
	}

	removed, err := uc.Delegations.DeleteDelegation(ctx, assembly.AssemblyID, giverID)
	if err != nil {
		return false, err
	}
	if !removed {
		// Lost a race with another revoke; the outcome is the same.
		return false, nil
	}

	application.ResolveMetrics(uc.Metrics).DelegationRevoked()
	now := resolveNow(uc.Clock)
	eventAppender{outbox: uc.Outbox, idGen: uc.IDGen, logger: uc.Logger}.append(
		ctx,
		EventDelegationRevoked,
		assembly.AssemblyID,
		now,
		map[string]any{
			"delegation_id": current.DelegationID,
			"assembly_id":   assembly.AssemblyID,
			"giver_id":      current.GiverID,
			"receiver_id":   current.ReceiverID,
		},
	)
	logger.Info("delegation revoked",
		"event", "assembly_delegation_revoked",
		"module", application.ModuleName,
		"layer", "application",
		"delegation_id", current.DelegationID,
		"assembly_id", assembly.AssemblyID,
		"giver_id", giverID,
	)
	return true, nil
}
