package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "bureausocial/contexts/governance/assembly-voting/application"
	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
	"bureausocial/contexts/governance/assembly-voting/ports"
	"bureausocial/internal/shared/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the gorm-backed data store. It runs on Postgres in
// production and on SQLite locally and in tests; uniqueness of ballots
// and delegations is enforced by database indexes.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateMember(ctx context.Context, member entities.Member) error {
	row := memberModelFromEntity(member)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			var count int64
			if countErr := r.db.WithContext(ctx).Model(&memberModel{}).
				Where("email = ?", row.Email).
				Count(&count).Error; countErr == nil && count > 0 {
				return domainerrors.ErrMemberEmailTaken
			}
			return domainerrors.ErrConflict
		}
		return r.logError("assembly_repo_create_member_failed", err, "member_id", row.ID)
	}
	return nil
}

func (r *Repository) UpdateMember(ctx context.Context, member entities.Member) error {
	row := memberModelFromEntity(member)
	result := r.db.WithContext(ctx).
		Model(&memberModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"name":       row.Name,
			"category":   row.Category,
			"active":     row.Active,
			"is_admin":   row.IsAdmin,
			"is_board":   row.IsBoard,
			"updated_at": row.UpdatedAt,
		})
	if result.Error != nil {
		return r.logError("assembly_repo_update_member_failed", result.Error, "member_id", row.ID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrMemberNotFound
	}
	return nil
}

func (r *Repository) GetMember(ctx context.Context, memberID string) (entities.Member, bool, error) {
	var row memberModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(memberID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Member{}, false, nil
		}
		return entities.Member{}, false, r.logError("assembly_repo_get_member_failed", err,
			"member_id", strings.TrimSpace(memberID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListMembers(ctx context.Context) ([]entities.Member, error) {
	var rows []memberModel
	if err := r.db.WithContext(ctx).
		Order("name ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("assembly_repo_list_members_failed", err)
	}
	items := make([]entities.Member, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CreateAssembly(ctx context.Context, assembly entities.Assembly) error {
	row := assemblyModelFromEntity(assembly)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("assembly_repo_create_assembly_failed", err, "assembly_id", row.ID)
	}
	return nil
}

func (r *Repository) UpdateAssembly(ctx context.Context, assembly entities.Assembly) error {
	row := assemblyModelFromEntity(assembly)
	result := r.db.WithContext(ctx).
		Model(&assemblyModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"title":             row.Title,
			"description":       row.Description,
			"type":              row.Type,
			"scheduled_at":      row.ScheduledAt,
			"location":          row.Location,
			"quorum_percentage": row.QuorumPercentage,
			"status":            row.Status,
			"eligibility_rule":  row.EligibilityRule,
			"minutes_generated": row.MinutesGenerated,
			"updated_at":        row.UpdatedAt,
		})
	if result.Error != nil {
		return r.logError("assembly_repo_update_assembly_failed", result.Error, "assembly_id", row.ID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAssemblyNotFound
	}
	return nil
}

func (r *Repository) GetAssembly(ctx context.Context, assemblyID string) (entities.Assembly, bool, error) {
	var row assemblyModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(assemblyID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Assembly{}, false, nil
		}
		return entities.Assembly{}, false, r.logError("assembly_repo_get_assembly_failed", err,
			"assembly_id", strings.TrimSpace(assemblyID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListAssemblies(ctx context.Context) ([]entities.Assembly, error) {
	var rows []assemblyModel
	if err := r.db.WithContext(ctx).
		Order("scheduled_at DESC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("assembly_repo_list_assemblies_failed", err)
	}
	items := make([]entities.Assembly, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CreateVotingItem(ctx context.Context, item entities.VotingItem) error {
	row := votingItemModelFromEntity(item)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("assembly_repo_create_voting_item_failed", err,
			"voting_item_id", row.ID,
			"assembly_id", row.AssemblyID,
		)
	}
	return nil
}

// UpdateVotingItem refuses to touch a closed row so a frozen result can
// never be overwritten, even by a racing close.
func (r *Repository) UpdateVotingItem(ctx context.Context, item entities.VotingItem) error {
	row := votingItemModelFromEntity(item)
	result := r.db.WithContext(ctx).
		Model(&votingItemModel{}).
		Where("id = ?", row.ID).
		Where("status <> ?", string(entities.VotingItemStatusClosed)).
		Select("title", "description", "majority_type", "status", "quorum_percentage",
			"result", "position", "updated_at", "closed_at").
		Updates(&row)
	if result.Error != nil {
		return r.logError("assembly_repo_update_voting_item_failed", result.Error, "voting_item_id", row.ID)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, found, err := r.GetVotingItem(ctx, row.ID); err != nil {
		return err
	} else if !found {
		return domainerrors.ErrVotingItemNotFound
	}
	return domainerrors.ErrInvalidTransition
}

// FreezeVotingItem closes an open item with the result evaluated over the
// ballots read under the item lock.
func (r *Repository) FreezeVotingItem(
	ctx context.Context,
	votingItemID string,
	closedAt time.Time,
	evaluate func(votes []entities.Vote) entities.Results,
) (entities.VotingItem, error) {
	votingItemID = strings.TrimSpace(votingItemID)
	closedAt = closedAt.UTC()
	var frozen entities.VotingItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, found, err := lockVotingItem(tx, votingItemID, "UPDATE")
		if err != nil {
			return err
		}
		if !found {
			return domainerrors.ErrVotingItemNotFound
		}
		if row.Status != string(entities.VotingItemStatusOpen) {
			return domainerrors.ErrInvalidTransition
		}

		var votes []voteModel
		if err := tx.
			Where("voting_item_id = ?", votingItemID).
			Order("created_at ASC").
			Order("id ASC").
			Find(&votes).Error; err != nil {
			return err
		}
		results := evaluate(toVoteEntities(votes))

		item := row.toEntity()
		item.Status = entities.VotingItemStatusClosed
		item.Result = &results
		item.ClosedAt = &closedAt
		item.UpdatedAt = closedAt
		update := votingItemModelFromEntity(item)
		if err := tx.Model(&votingItemModel{}).
			Where("id = ?", votingItemID).
			Where("status = ?", string(entities.VotingItemStatusOpen)).
			Select("status", "result", "updated_at", "closed_at").
			Updates(&update).Error; err != nil {
			return err
		}
		frozen = item
		return nil
	})
	switch {
	case err == nil:
		return frozen, nil
	case errors.Is(err, domainerrors.ErrNotFound), errors.Is(err, domainerrors.ErrInvalidTransition):
		return entities.VotingItem{}, err
	default:
		return entities.VotingItem{}, r.logError("assembly_repo_freeze_voting_item_failed", err,
			"voting_item_id", votingItemID,
		)
	}
}

func (r *Repository) GetVotingItem(ctx context.Context, votingItemID string) (entities.VotingItem, bool, error) {
	var row votingItemModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(votingItemID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VotingItem{}, false, nil
		}
		return entities.VotingItem{}, false, r.logError("assembly_repo_get_voting_item_failed", err,
			"voting_item_id", strings.TrimSpace(votingItemID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListVotingItemsByAssembly(ctx context.Context, assemblyID string) ([]entities.VotingItem, error) {
	var rows []votingItemModel
	if err := r.db.WithContext(ctx).
		Where("assembly_id = ?", strings.TrimSpace(assemblyID)).
		Order("position ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("assembly_repo_list_voting_items_failed", err,
			"assembly_id", strings.TrimSpace(assemblyID),
		)
	}
	items := make([]entities.VotingItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// InsertVote stores a ballot only while its item is open. On Postgres the
// item row is share-locked so a concurrent FreezeVotingItem waits for the
// ballot, or the ballot sees the closed row; SQLite runs on one connection
// and serializes both transactions.
func (r *Repository) InsertVote(ctx context.Context, vote entities.Vote) error {
	row := voteModelFromEntity(vote)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, found, err := lockVotingItem(tx, row.VotingItemID, "SHARE")
		if err != nil {
			return err
		}
		if !found {
			return domainerrors.ErrVotingItemNotFound
		}
		if item.Status != string(entities.VotingItemStatusOpen) {
			return domainerrors.ErrItemNotOpen
		}
		return tx.Create(&row).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domainerrors.ErrNotFound), errors.Is(err, domainerrors.ErrItemNotOpen):
		return err
	case isUniqueViolation(err):
		return domainerrors.ErrDuplicateVote
	default:
		return r.logError("assembly_repo_insert_vote_failed", err,
			"vote_id", row.ID,
			"voting_item_id", row.VotingItemID,
			"member_id", row.MemberID,
		)
	}
}

func (r *Repository) GetVoteByIdentity(
	ctx context.Context,
	votingItemID string,
	memberID string,
) (entities.Vote, bool, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("voting_item_id = ?", strings.TrimSpace(votingItemID)).
		Where("member_id = ?", strings.TrimSpace(memberID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, false, nil
		}
		return entities.Vote{}, false, r.logError("assembly_repo_get_vote_by_identity_failed", err,
			"voting_item_id", strings.TrimSpace(votingItemID),
			"member_id", strings.TrimSpace(memberID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListVotesByItem(ctx context.Context, votingItemID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("voting_item_id = ?", strings.TrimSpace(votingItemID)).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("assembly_repo_list_votes_by_item_failed", err,
			"voting_item_id", strings.TrimSpace(votingItemID),
		)
	}
	return toVoteEntities(rows), nil
}

func (r *Repository) ListVotesByAssembly(ctx context.Context, assemblyID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("assembly_id = ?", strings.TrimSpace(assemblyID)).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("assembly_repo_list_votes_by_assembly_failed", err,
			"assembly_id", strings.TrimSpace(assemblyID),
		)
	}
	return toVoteEntities(rows), nil
}

func (r *Repository) InsertDelegation(ctx context.Context, delegation entities.ProxyDelegation) error {
	row := delegationModelFromEntity(delegation)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDelegationExists
		}
		return r.logError("assembly_repo_insert_delegation_failed", err,
			"assembly_id", row.AssemblyID,
			"giver_id", row.GiverID,
		)
	}
	return nil
}

func (r *Repository) DeleteDelegation(ctx context.Context, assemblyID string, giverID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("assembly_id = ?", strings.TrimSpace(assemblyID)).
		Where("giver_id = ?", strings.TrimSpace(giverID)).
		Delete(&delegationModel{})
	if result.Error != nil {
		return false, r.logError("assembly_repo_delete_delegation_failed", result.Error,
			"assembly_id", strings.TrimSpace(assemblyID),
			"giver_id", strings.TrimSpace(giverID),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) GetDelegationByGiver(
	ctx context.Context,
	assemblyID string,
	giverID string,
) (entities.ProxyDelegation, bool, error) {
	var row delegationModel
	err := r.db.WithContext(ctx).
		Where("assembly_id = ?", strings.TrimSpace(assemblyID)).
		Where("giver_id = ?", strings.TrimSpace(giverID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ProxyDelegation{}, false, nil
		}
		return entities.ProxyDelegation{}, false, r.logError("assembly_repo_get_delegation_failed", err,
			"assembly_id", strings.TrimSpace(assemblyID),
			"giver_id", strings.TrimSpace(giverID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListDelegationsByAssembly(ctx context.Context, assemblyID string) ([]entities.ProxyDelegation, error) {
	var rows []delegationModel
	if err := r.db.WithContext(ctx).
		Where("assembly_id = ?", strings.TrimSpace(assemblyID)).
		Order("created_at ASC").
		Order("giver_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("assembly_repo_list_delegations_failed", err,
			"assembly_id", strings.TrimSpace(assemblyID),
		)
	}
	return toDelegationEntities(rows), nil
}

func (r *Repository) ListDelegationsByReceiver(
	ctx context.Context,
	assemblyID string,
	receiverID string,
) ([]entities.ProxyDelegation, error) {
	var rows []delegationModel
	if err := r.db.WithContext(ctx).
		Where("assembly_id = ?", strings.TrimSpace(assemblyID)).
		Where("receiver_id = ?", strings.TrimSpace(receiverID)).
		Order("created_at ASC").
		Order("giver_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("assembly_repo_list_received_delegations_failed", err,
			"assembly_id", strings.TrimSpace(assemblyID),
			"receiver_id", strings.TrimSpace(receiverID),
		)
	}
	return toDelegationEntities(rows), nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("assembly_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outbox.StatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("assembly_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("assembly_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Order("outbox_id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("assembly_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("assembly_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) MarkOutboxFailed(ctx context.Context, outboxID string, reason string, failedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":     outbox.StatusFailed,
			"last_error": reason,
			"failed_at":  failedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("assembly_repo_mark_outbox_failed_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("assembly_repo_reserve_event_failed", create.Error,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("assembly_repo_reserve_event_load_existing_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrConflict
	}
	return true, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", application.ModuleName,
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("assembly repository operation failed", fields...)
	return err
}

// lockVotingItem reads an item row inside tx, row-locked on Postgres.
func lockVotingItem(tx *gorm.DB, votingItemID string, strength string) (votingItemModel, bool, error) {
	query := tx.Where("id = ?", strings.TrimSpace(votingItemID))
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: strength})
	}
	var row votingItemModel
	if err := query.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return votingItemModel{}, false, nil
		}
		return votingItemModel{}, false, err
	}
	return row, true, nil
}

func toVoteEntities(rows []voteModel) []entities.Vote {
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func toDelegationEntities(rows []delegationModel) []entities.ProxyDelegation {
	items := make([]entities.ProxyDelegation, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

// isUniqueViolation covers gorm's translated error, raw pgconn errors and
// the SQLite driver when error translation is off.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ ports.MemberRepository = (*Repository)(nil)
var _ ports.AssemblyRepository = (*Repository)(nil)
var _ ports.VotingItemRepository = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.DelegationRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
