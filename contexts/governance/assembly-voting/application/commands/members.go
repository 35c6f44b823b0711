package commands

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	application "bureausocial/contexts/governance/assembly-voting/application"
	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

type CreateMemberCommand struct {
	Actor    entities.Actor
	Name     string
	Email    string
	Category entities.MemberCategory
	IsAdmin  bool
	IsBoard  bool
}

// UpdateMemberCommand changes only the fields that are set.
type UpdateMemberCommand struct {
	Actor    entities.Actor
	MemberID string
	Name     *string
	Category *entities.MemberCategory
	IsAdmin  *bool
	IsBoard  *bool
}

// MemberUseCase is admin-only member administration. Members are never
// deleted.
type MemberUseCase struct {
	Members   ports.MemberRepository
	Sanitizer ports.TextSanitizer
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (uc MemberUseCase) CreateMember(ctx context.Context, cmd CreateMemberCommand) (entities.Member, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Actor.IsAdmin {
		return entities.Member{}, domainerrors.ErrForbidden
	}
	name := uc.sanitize(cmd.Name)
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if name == "" || !cmd.Category.Valid() || !validEmail(email) {
		return entities.Member{}, domainerrors.ErrInvalidInput
	}

	memberID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Member{}, err
	}
	now := resolveNow(uc.Clock)
	member := entities.Member{
		MemberID:  memberID,
		Name:      name,
		Email:     email,
		Category:  cmd.Category,
		Active:    true,
		IsAdmin:   cmd.IsAdmin,
		IsBoard:   cmd.IsBoard,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.Members.CreateMember(ctx, member); err != nil {
		return entities.Member{}, err
	}
	logger.Info("member created",
		"event", "assembly_member_created",
		"module", application.ModuleName,
		"layer", "application",
		"member_id", member.MemberID,
		"category", string(member.Category),
	)
	return member, nil
}

func (uc MemberUseCase) UpdateMember(ctx context.Context, cmd UpdateMemberCommand) (entities.Member, error) {
	logger := application.ResolveLogger(uc.Logger)
	member, err := uc.loadMember(ctx, cmd.Actor, cmd.MemberID)
	if err != nil {
		return entities.Member{}, err
	}
	if cmd.Name != nil {
		name := uc.sanitize(*cmd.Name)
		if name == "" {
			return entities.Member{}, domainerrors.ErrInvalidInput
		}
		member.Name = name
	}
	if cmd.Category != nil {
		if !cmd.Category.Valid() {
			return entities.Member{}, domainerrors.ErrInvalidInput
		}
		member.Category = *cmd.Category
	}
	if cmd.IsAdmin != nil {
		member.IsAdmin = *cmd.IsAdmin
	}
	if cmd.IsBoard != nil {
		member.IsBoard = *cmd.IsBoard
	}
	member.UpdatedAt = resolveNow(uc.Clock)
	if err := uc.Members.UpdateMember(ctx, member); err != nil {
		return entities.Member{}, err
	}
	logger.Info("member updated",
		"event", "assembly_member_updated",
		"module", application.ModuleName,
		"layer", "application",
		"member_id", member.MemberID,
	)
	return member, nil
}

// DeactivateMember clears the active flag. Deactivating an inactive
// member is a no-op.
func (uc MemberUseCase) DeactivateMember(ctx context.Context, actor entities.Actor, memberID string) (entities.Member, error) {
	logger := application.ResolveLogger(uc.Logger)
	member, err := uc.loadMember(ctx, actor, memberID)
	if err != nil {
		return entities.Member{}, err
	}
	if !member.Active {
		return member, nil
	}
	member.Active = false
	member.UpdatedAt = resolveNow(uc.Clock)
	if err := uc.Members.UpdateMember(ctx, member); err != nil {
		return entities.Member{}, err
	}
	logger.Info("member deactivated",
		"event", "assembly_member_deactivated",
		"module", application.ModuleName,
		"layer", "application",
		"member_id", member.MemberID,
	)
	return member, nil
}

func (uc MemberUseCase) loadMember(ctx context.Context, actor entities.Actor, memberID string) (entities.Member, error) {
	if !actor.IsAdmin {
		return entities.Member{}, domainerrors.ErrForbidden
	}
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return entities.Member{}, domainerrors.ErrInvalidInput
	}
	member, found, err := uc.Members.GetMember(ctx, memberID)
	if err != nil {
		return entities.Member{}, err
	}
	if !found {
		return entities.Member{}, domainerrors.ErrMemberNotFound
	}
	return member, nil
}

func (uc MemberUseCase) sanitize(value string) string {
	value = strings.TrimSpace(value)
	if uc.Sanitizer == nil {
		return value
	}
	return strings.TrimSpace(uc.Sanitizer.Sanitize(value))
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	address, err := mail.ParseAddress(email)
	return err == nil && address.Address == email
}
