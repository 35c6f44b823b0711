package postgresadapter

import (
	"strings"
	"time"

	"bureausocial/contexts/governance/assembly-voting/domain/entities"
)

// Models lists every table owned by this module, in migration order.
func Models() []any {
	return []any{
		&memberModel{},
		&assemblyModel{},
		&votingItemModel{},
		&voteModel{},
		&delegationModel{},
		&outboxModel{},
		&eventDedupModel{},
	}
}

type memberModel struct {
	ID        string    `gorm:"column:id;primaryKey;size:64"`
	Name      string    `gorm:"column:name;not null"`
	Email     string    `gorm:"column:email;uniqueIndex:idx_members_email;not null"`
	Category  string    `gorm:"column:category;size:32;not null"`
	Active    bool      `gorm:"column:active;not null"`
	IsAdmin   bool      `gorm:"column:is_admin;not null"`
	IsBoard   bool      `gorm:"column:is_board;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (memberModel) TableName() string {
	return "members"
}

func memberModelFromEntity(member entities.Member) memberModel {
	row := memberModel{
		ID:        strings.TrimSpace(member.MemberID),
		Name:      member.Name,
		Email:     strings.ToLower(strings.TrimSpace(member.Email)),
		Category:  string(member.Category),
		Active:    member.Active,
		IsAdmin:   member.IsAdmin,
		IsBoard:   member.IsBoard,
		CreatedAt: member.CreatedAt.UTC(),
		UpdatedAt: member.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m memberModel) toEntity() entities.Member {
	return entities.Member{
		MemberID:  m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Category:  entities.MemberCategory(m.Category),
		Active:    m.Active,
		IsAdmin:   m.IsAdmin,
		IsBoard:   m.IsBoard,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type assemblyModel struct {
	ID               string    `gorm:"column:id;primaryKey;size:64"`
	Title            string    `gorm:"column:title;not null"`
	Description      string    `gorm:"column:description"`
	Type             string    `gorm:"column:type;size:32;not null"`
	ScheduledAt      time.Time `gorm:"column:scheduled_at;index"`
	Location         string    `gorm:"column:location"`
	QuorumPercentage int       `gorm:"column:quorum_percentage;not null"`
	Status           string    `gorm:"column:status;size:32;not null"`
	EligibilityRule  string    `gorm:"column:eligibility_rule;size:32;not null"`
	MinutesGenerated bool      `gorm:"column:minutes_generated;not null"`
	CreatedBy        string    `gorm:"column:created_by"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (assemblyModel) TableName() string {
	return "assemblies"
}

func assemblyModelFromEntity(assembly entities.Assembly) assemblyModel {
	row := assemblyModel{
		ID:               strings.TrimSpace(assembly.AssemblyID),
		Title:            assembly.Title,
		Description:      assembly.Description,
		Type:             string(assembly.Type),
		ScheduledAt:      assembly.ScheduledAt.UTC(),
		Location:         assembly.Location,
		QuorumPercentage: assembly.QuorumPercentage,
		Status:           string(assembly.Status),
		EligibilityRule:  string(assembly.EligibilityRule),
		MinutesGenerated: assembly.MinutesGenerated,
		CreatedBy:        strings.TrimSpace(assembly.CreatedBy),
		CreatedAt:        assembly.CreatedAt.UTC(),
		UpdatedAt:        assembly.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m assemblyModel) toEntity() entities.Assembly {
	return entities.Assembly{
		AssemblyID:       m.ID,
		Title:            m.Title,
		Description:      m.Description,
		Type:             entities.AssemblyType(m.Type),
		ScheduledAt:      m.ScheduledAt.UTC(),
		Location:         m.Location,
		QuorumPercentage: m.QuorumPercentage,
		Status:           entities.AssemblyStatus(m.Status),
		EligibilityRule:  entities.EligibilityRule(m.EligibilityRule),
		MinutesGenerated: m.MinutesGenerated,
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

// resultSnapshot is the frozen result stored as JSON on a closed item.
type resultSnapshot struct {
	InFavor            int       `json:"in_favor"`
	Against            int       `json:"against"`
	Abstain            int       `json:"abstain"`
	TotalWeightedVotes int       `json:"total_weighted_votes"`
	Ballots            int       `json:"ballots"`
	EligibleMembers    int       `json:"eligible_members"`
	QuorumPercentage   int       `json:"quorum_percentage"`
	QuorumMet          bool      `json:"quorum_met"`
	MajorityType       string    `json:"majority_type"`
	MajorityReached    bool      `json:"majority_reached"`
	Approved           bool      `json:"approved"`
	ComputedAt         time.Time `json:"computed_at"`
}

type votingItemModel struct {
	ID               string          `gorm:"column:id;primaryKey;size:64"`
	AssemblyID       string          `gorm:"column:assembly_id;size:64;index;not null"`
	Title            string          `gorm:"column:title;not null"`
	Description      string          `gorm:"column:description"`
	MajorityType     string          `gorm:"column:majority_type;size:32;not null"`
	Status           string          `gorm:"column:status;size:32;not null"`
	QuorumPercentage int             `gorm:"column:quorum_percentage;not null"`
	Result           *resultSnapshot `gorm:"column:result;serializer:json"`
	Position         int             `gorm:"column:position"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
	ClosedAt         *time.Time      `gorm:"column:closed_at"`
}

func (votingItemModel) TableName() string {
	return "voting_items"
}

func votingItemModelFromEntity(item entities.VotingItem) votingItemModel {
	row := votingItemModel{
		ID:               strings.TrimSpace(item.VotingItemID),
		AssemblyID:       strings.TrimSpace(item.AssemblyID),
		Title:            item.Title,
		Description:      item.Description,
		MajorityType:     string(item.MajorityType),
		Status:           string(item.Status),
		QuorumPercentage: item.QuorumPercentage,
		Position:         item.Position,
		CreatedAt:        item.CreatedAt.UTC(),
		UpdatedAt:        item.UpdatedAt.UTC(),
		ClosedAt:         normalizeOptionalTime(item.ClosedAt),
	}
	if item.Result != nil {
		row.Result = &resultSnapshot{
			InFavor:            item.Result.Tally.InFavor,
			Against:            item.Result.Tally.Against,
			Abstain:            item.Result.Tally.Abstain,
			TotalWeightedVotes: item.Result.Tally.TotalWeightedVotes,
			Ballots:            item.Result.Ballots,
			EligibleMembers:    item.Result.EligibleMembers,
			QuorumPercentage:   item.Result.QuorumPercentage,
			QuorumMet:          item.Result.QuorumMet,
			MajorityType:       string(item.Result.MajorityType),
			MajorityReached:    item.Result.MajorityReached,
			Approved:           item.Result.Approved,
			ComputedAt:         item.Result.ComputedAt.UTC(),
		}
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m votingItemModel) toEntity() entities.VotingItem {
	item := entities.VotingItem{
		VotingItemID:     m.ID,
		AssemblyID:       m.AssemblyID,
		Title:            m.Title,
		Description:      m.Description,
		MajorityType:     entities.MajorityType(m.MajorityType),
		Status:           entities.VotingItemStatus(m.Status),
		QuorumPercentage: m.QuorumPercentage,
		Position:         m.Position,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
		ClosedAt:         normalizeOptionalTime(m.ClosedAt),
	}
	if m.Result != nil {
		item.Result = &entities.Results{
			VotingItemID: m.ID,
			Tally: entities.Tally{
				InFavor:            m.Result.InFavor,
				Against:            m.Result.Against,
				Abstain:            m.Result.Abstain,
				TotalWeightedVotes: m.Result.TotalWeightedVotes,
			},
			Ballots:          m.Result.Ballots,
			EligibleMembers:  m.Result.EligibleMembers,
			QuorumPercentage: m.Result.QuorumPercentage,
			QuorumMet:        m.Result.QuorumMet,
			MajorityType:     entities.MajorityType(m.Result.MajorityType),
			MajorityReached:  m.Result.MajorityReached,
			Approved:         m.Result.Approved,
			ComputedAt:       m.Result.ComputedAt.UTC(),
		}
	}
	return item
}

type voteModel struct {
	ID           string    `gorm:"column:id;primaryKey;size:64"`
	VotingItemID string    `gorm:"column:voting_item_id;size:64;not null;uniqueIndex:idx_votes_item_member,priority:1"`
	MemberID     string    `gorm:"column:member_id;size:64;not null;uniqueIndex:idx_votes_item_member,priority:2"`
	AssemblyID   string    `gorm:"column:assembly_id;size:64;not null;index"`
	Choice       string    `gorm:"column:choice;size:16;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	row := voteModel{
		ID:           strings.TrimSpace(vote.VoteID),
		VotingItemID: strings.TrimSpace(vote.VotingItemID),
		MemberID:     strings.TrimSpace(vote.MemberID),
		AssemblyID:   strings.TrimSpace(vote.AssemblyID),
		Choice:       string(vote.Choice),
		CreatedAt:    vote.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		VoteID:       m.ID,
		VotingItemID: m.VotingItemID,
		AssemblyID:   m.AssemblyID,
		MemberID:     m.MemberID,
		Choice:       entities.VoteChoice(m.Choice),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type delegationModel struct {
	ID         string    `gorm:"column:id;primaryKey;size:64"`
	AssemblyID string    `gorm:"column:assembly_id;size:64;not null;uniqueIndex:idx_delegations_assembly_giver,priority:1"`
	GiverID    string    `gorm:"column:giver_id;size:64;not null;uniqueIndex:idx_delegations_assembly_giver,priority:2"`
	ReceiverID string    `gorm:"column:receiver_id;size:64;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (delegationModel) TableName() string {
	return "proxy_delegations"
}

func delegationModelFromEntity(delegation entities.ProxyDelegation) delegationModel {
	row := delegationModel{
		ID:         strings.TrimSpace(delegation.DelegationID),
		AssemblyID: strings.TrimSpace(delegation.AssemblyID),
		GiverID:    strings.TrimSpace(delegation.GiverID),
		ReceiverID: strings.TrimSpace(delegation.ReceiverID),
		CreatedAt:  delegation.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func (m delegationModel) toEntity() entities.ProxyDelegation {
	return entities.ProxyDelegation{
		DelegationID: m.ID,
		AssemblyID:   m.AssemblyID,
		GiverID:      m.GiverID,
		ReceiverID:   m.ReceiverID,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey;size:64"`
	EventType    string     `gorm:"column:event_type;not null"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;size:16;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	FailedAt     *time.Time `gorm:"column:failed_at"`
	LastError    string     `gorm:"column:last_error"`
}

func (outboxModel) TableName() string {
	return "assembly_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey;size:64"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "assembly_event_dedup"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
