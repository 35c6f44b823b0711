package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	domainerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
	"bureausocial/contexts/governance/assembly-voting/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
	failed    bool
	lastError string
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

type voteKey struct {
	votingItemID string
	memberID     string
}

type delegationKey struct {
	assemblyID string
	giverID    string
}

// Store is the in-memory data store. Uniqueness of ballots and
// delegations is checked and written under one lock, which gives the
// same outcome as a unique index. The same lock orders ballots against
// FreezeVotingItem.
type Store struct {
	mu sync.RWMutex

	members     map[string]entities.Member
	assemblies  map[string]entities.Assembly
	items       map[string]entities.VotingItem
	votes       map[voteKey]entities.Vote
	delegations map[delegationKey]entities.ProxyDelegation
	outbox      map[string]outboxRecord
	eventDedup  map[string]dedupRecord
}

func NewStore(seed []entities.Member) *Store {
	members := make(map[string]entities.Member, len(seed))
	for _, member := range seed {
		members[strings.TrimSpace(member.MemberID)] = member
	}
	return &Store{
		members:     members,
		assemblies:  make(map[string]entities.Assembly),
		items:       make(map[string]entities.VotingItem),
		votes:       make(map[voteKey]entities.Vote),
		delegations: make(map[delegationKey]entities.ProxyDelegation),
		outbox:      make(map[string]outboxRecord),
		eventDedup:  make(map[string]dedupRecord),
	}
}

func (s *Store) CreateMember(_ context.Context, member entities.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	memberID := strings.TrimSpace(member.MemberID)
	if _, ok := s.members[memberID]; ok {
		return domainerrors.ErrConflict
	}
	for _, existing := range s.members {
		if member.Email != "" && strings.EqualFold(existing.Email, member.Email) {
			return domainerrors.ErrMemberEmailTaken
		}
	}
	s.members[memberID] = member
	return nil
}

func (s *Store) UpdateMember(_ context.Context, member entities.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	memberID := strings.TrimSpace(member.MemberID)
	if _, ok := s.members[memberID]; !ok {
		return domainerrors.ErrMemberNotFound
	}
	s.members[memberID] = member
	return nil
}

func (s *Store) GetMember(_ context.Context, memberID string) (entities.Member, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	member, ok := s.members[strings.TrimSpace(memberID)]
	return member, ok, nil
}

func (s *Store) ListMembers(_ context.Context) ([]entities.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Member, 0, len(s.members))
	for _, member := range s.members {
		items = append(items, member)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].MemberID < items[j].MemberID
	})
	return items, nil
}

func (s *Store) CreateAssembly(_ context.Context, assembly entities.Assembly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	assemblyID := strings.TrimSpace(assembly.AssemblyID)
	if _, ok := s.assemblies[assemblyID]; ok {
		return domainerrors.ErrConflict
	}
	s.assemblies[assemblyID] = assembly
	return nil
}

func (s *Store) UpdateAssembly(_ context.Context, assembly entities.Assembly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	assemblyID := strings.TrimSpace(assembly.AssemblyID)
	if _, ok := s.assemblies[assemblyID]; !ok {
		return domainerrors.ErrAssemblyNotFound
	}
	s.assemblies[assemblyID] = assembly
	return nil
}

func (s *Store) GetAssembly(_ context.Context, assemblyID string) (entities.Assembly, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assembly, ok := s.assemblies[strings.TrimSpace(assemblyID)]
	return assembly, ok, nil
}

func (s *Store) ListAssemblies(_ context.Context) ([]entities.Assembly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Assembly, 0, len(s.assemblies))
	for _, assembly := range s.assemblies {
		items = append(items, assembly)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].ScheduledAt.Equal(items[j].ScheduledAt) {
			return items[i].ScheduledAt.After(items[j].ScheduledAt)
		}
		return items[i].AssemblyID < items[j].AssemblyID
	})
	return items, nil
}

func (s *Store) CreateVotingItem(_ context.Context, item entities.VotingItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	itemID := strings.TrimSpace(item.VotingItemID)
	if _, ok := s.items[itemID]; ok {
		return domainerrors.ErrConflict
	}
	s.items[itemID] = cloneVotingItem(item)
	return nil
}

func (s *Store) UpdateVotingItem(_ context.Context, item entities.VotingItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	itemID := strings.TrimSpace(item.VotingItemID)
	current, ok := s.items[itemID]
	if !ok {
		return domainerrors.ErrVotingItemNotFound
	}
	if current.Status == entities.VotingItemStatusClosed {
		return domainerrors.ErrInvalidTransition
	}
	s.items[itemID] = cloneVotingItem(item)
	return nil
}

func (s *Store) FreezeVotingItem(
	_ context.Context,
	votingItemID string,
	closedAt time.Time,
	evaluate func(votes []entities.Vote) entities.Results,
) (entities.VotingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	votingItemID = strings.TrimSpace(votingItemID)
	item, ok := s.items[votingItemID]
	if !ok {
		return entities.VotingItem{}, domainerrors.ErrVotingItemNotFound
	}
	if item.Status != entities.VotingItemStatusOpen {
		return entities.VotingItem{}, domainerrors.ErrInvalidTransition
	}

	votes := make([]entities.Vote, 0)
	for key, vote := range s.votes {
		if key.votingItemID == votingItemID {
			votes = append(votes, vote)
		}
	}
	sortVotesByCreation(votes)
	results := evaluate(votes)
	closedAt = closedAt.UTC()
	item.Status = entities.VotingItemStatusClosed
	item.Result = &results
	item.ClosedAt = &closedAt
	item.UpdatedAt = closedAt
	s.items[votingItemID] = cloneVotingItem(item)
	return cloneVotingItem(item), nil
}

func (s *Store) GetVotingItem(_ context.Context, votingItemID string) (entities.VotingItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[strings.TrimSpace(votingItemID)]
	if !ok {
		return entities.VotingItem{}, false, nil
	}
	return cloneVotingItem(item), true, nil
}

func (s *Store) ListVotingItemsByAssembly(_ context.Context, assemblyID string) ([]entities.VotingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assemblyID = strings.TrimSpace(assemblyID)
	items := make([]entities.VotingItem, 0)
	for _, item := range s.items {
		if item.AssemblyID == assemblyID {
			items = append(items, cloneVotingItem(item))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].VotingItemID < items[j].VotingItemID
	})
	return items, nil
}

func (s *Store) InsertVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := voteKey{
		votingItemID: strings.TrimSpace(vote.VotingItemID),
		memberID:     strings.TrimSpace(vote.MemberID),
	}
	item, ok := s.items[key.votingItemID]
	if !ok {
		return domainerrors.ErrVotingItemNotFound
	}
	if item.Status != entities.VotingItemStatusOpen {
		return domainerrors.ErrItemNotOpen
	}
	if _, ok := s.votes[key]; ok {
		return domainerrors.ErrDuplicateVote
	}
	s.votes[key] = vote
	return nil
}

func (s *Store) GetVoteByIdentity(_ context.Context, votingItemID string, memberID string) (entities.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[voteKey{
		votingItemID: strings.TrimSpace(votingItemID),
		memberID:     strings.TrimSpace(memberID),
	}]
	return vote, ok, nil
}

func (s *Store) ListVotesByItem(_ context.Context, votingItemID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	votingItemID = strings.TrimSpace(votingItemID)
	items := make([]entities.Vote, 0)
	for key, vote := range s.votes {
		if key.votingItemID == votingItemID {
			items = append(items, vote)
		}
	}
	sortVotesByCreation(items)
	return items, nil
}

func (s *Store) ListVotesByAssembly(_ context.Context, assemblyID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assemblyID = strings.TrimSpace(assemblyID)
	items := make([]entities.Vote, 0)
	for _, vote := range s.votes {
		if vote.AssemblyID == assemblyID {
			items = append(items, vote)
		}
	}
	sortVotesByCreation(items)
	return items, nil
}

func (s *Store) InsertDelegation(_ context.Context, delegation entities.ProxyDelegation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := delegationKey{
		assemblyID: strings.TrimSpace(delegation.AssemblyID),
		giverID:    strings.TrimSpace(delegation.GiverID),
	}
	if _, ok := s.delegations[key]; ok {
		return domainerrors.ErrDelegationExists
	}
	s.delegations[key] = delegation
	return nil
}

func (s *Store) DeleteDelegation(_ context.Context, assemblyID string, giverID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := delegationKey{assemblyID: strings.TrimSpace(assemblyID), giverID: strings.TrimSpace(giverID)}
	if _, ok := s.delegations[key]; !ok {
		return false, nil
	}
	delete(s.delegations, key)
	return true, nil
}

func (s *Store) GetDelegationByGiver(
	_ context.Context,
	assemblyID string,
	giverID string,
) (entities.ProxyDelegation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	delegation, ok := s.delegations[delegationKey{
		assemblyID: strings.TrimSpace(assemblyID),
		giverID:    strings.TrimSpace(giverID),
	}]
	return delegation, ok, nil
}

func (s *Store) ListDelegationsByAssembly(_ context.Context, assemblyID string) ([]entities.ProxyDelegation, error) {
	return s.listDelegations(assemblyID, func(entities.ProxyDelegation) bool { return true }), nil
}

func (s *Store) ListDelegationsByReceiver(
	_ context.Context,
	assemblyID string,
	receiverID string,
) ([]entities.ProxyDelegation, error) {
	receiverID = strings.TrimSpace(receiverID)
	return s.listDelegations(assemblyID, func(delegation entities.ProxyDelegation) bool {
		return delegation.ReceiverID == receiverID
	}), nil
}

func (s *Store) listDelegations(assemblyID string, keep func(entities.ProxyDelegation) bool) []entities.ProxyDelegation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assemblyID = strings.TrimSpace(assemblyID)
	items := make([]entities.ProxyDelegation, 0)
	for key, delegation := range s.delegations {
		if key.assemblyID == assemblyID && keep(delegation) {
			items = append(items, delegation)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].GiverID < items[j].GiverID
	})
	return items
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published || row.failed {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].OutboxID < items[j].OutboxID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) MarkOutboxFailed(_ context.Context, outboxID string, reason string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	outboxID = strings.TrimSpace(outboxID)
	row, ok := s.outbox[outboxID]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.failed = true
	row.lastError = reason
	s.outbox[outboxID] = row
	return nil
}

// OutboxError reports why a row was parked, if it was.
func (s *Store) OutboxError(outboxID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok || !row.failed {
		return "", false
	}
	return row.lastError, true
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrConflict
			}
			return true, nil
		}
	}

	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func cloneVotingItem(item entities.VotingItem) entities.VotingItem {
	if item.Result != nil {
		result := *item.Result
		item.Result = &result
	}
	if item.ClosedAt != nil {
		closedAt := *item.ClosedAt
		item.ClosedAt = &closedAt
	}
	return item
}

func sortVotesByCreation(items []entities.Vote) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].VoteID < items[j].VoteID
	})
}
