package ports

import (
	"context"
	"time"

	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	"bureausocial/internal/shared/events"
	"bureausocial/internal/shared/outbox"
)

// Lookups return found=false for unknown ids instead of an error.

type MemberRepository interface {
	CreateMember(ctx context.Context, member entities.Member) error
	UpdateMember(ctx context.Context, member entities.Member) error
	GetMember(ctx context.Context, memberID string) (entities.Member, bool, error)
	ListMembers(ctx context.Context) ([]entities.Member, error)
}

type AssemblyRepository interface {
	CreateAssembly(ctx context.Context, assembly entities.Assembly) error
	UpdateAssembly(ctx context.Context, assembly entities.Assembly) error
	GetAssembly(ctx context.Context, assemblyID string) (entities.Assembly, bool, error)
	ListAssemblies(ctx context.Context) ([]entities.Assembly, error)
}

// VotingItemRepository stores agenda items. FreezeVotingItem closes an open
// item and stores evaluate's result atomically with respect to InsertVote:
// no ballot lands after the votes passed to evaluate were read. evaluate must
// not call back into the repository.
type VotingItemRepository interface {
	CreateVotingItem(ctx context.Context, item entities.VotingItem) error
	UpdateVotingItem(ctx context.Context, item entities.VotingItem) error
	FreezeVotingItem(
		ctx context.Context,
		votingItemID string,
		closedAt time.Time,
		evaluate func(votes []entities.Vote) entities.Results,
	) (entities.VotingItem, error)
	GetVotingItem(ctx context.Context, votingItemID string) (entities.VotingItem, bool, error)
	ListVotingItemsByAssembly(ctx context.Context, assemblyID string) ([]entities.VotingItem, error)
}

// VoteRepository stores immutable ballots. InsertVote must reject a second
// ballot for the same (VotingItemID, MemberID) with ErrDuplicateVote and a
// ballot for an item that is not open with ErrItemNotOpen.
type VoteRepository interface {
	InsertVote(ctx context.Context, vote entities.Vote) error
	GetVoteByIdentity(ctx context.Context, votingItemID string, memberID string) (entities.Vote, bool, error)
	ListVotesByItem(ctx context.Context, votingItemID string) ([]entities.Vote, error)
	ListVotesByAssembly(ctx context.Context, assemblyID string) ([]entities.Vote, error)
}

// DelegationRepository stores proxy delegations. InsertDelegation must
// reject a second row for the same (AssemblyID, GiverID) with
// ErrDelegationExists.
type DelegationRepository interface {
	InsertDelegation(ctx context.Context, delegation entities.ProxyDelegation) error
	DeleteDelegation(ctx context.Context, assemblyID string, giverID string) (bool, error)
	GetDelegationByGiver(ctx context.Context, assemblyID string, giverID string) (entities.ProxyDelegation, bool, error)
	ListDelegationsByAssembly(ctx context.Context, assemblyID string) ([]entities.ProxyDelegation, error)
	ListDelegationsByReceiver(ctx context.Context, assemblyID string, receiverID string) ([]entities.ProxyDelegation, error)
}

type EventEnvelope = events.Envelope

type OutboxMessage = outbox.Message

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
	// MarkOutboxFailed parks a row that can never be relayed.
	MarkOutboxFailed(ctx context.Context, outboxID string, reason string, failedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// EventDedupStore guards consumers against at-least-once redelivery.
// ReserveEvent reports true when the event id was already reserved.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// TextSanitizer strips unsafe markup from member-supplied free text.
type TextSanitizer interface {
	Sanitize(value string) string
}

// Metrics receives counters for the voting workflow. A nil Metrics is a no-op.
type Metrics interface {
	VoteCast(choice entities.VoteChoice)
	VoteRejected(reason string)
	DelegationCreated()
	DelegationRevoked()
	ResultsComputed()
	VotingItemClosed(approved bool)
}

type MinutesInput struct {
	Assembly    entities.Assembly
	Attendees   []entities.Attendee
	Items       []entities.VotingItem
	GeneratedAt time.Time
}

type MinutesRenderer interface {
	Render(ctx context.Context, input MinutesInput) (entities.MinutesDocument, error)
}

type Notification struct {
	Kind       string
	MemberIDs  []string
	AssemblyID string
	Subject    string
	Body       string
}

type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}
