package assemblyvoting

import (
	"log/slog"

	httpadapter "bureausocial/contexts/governance/assembly-voting/adapters/http"
	"bureausocial/contexts/governance/assembly-voting/adapters/memory"
	"bureausocial/contexts/governance/assembly-voting/adapters/minutes"
	"bureausocial/contexts/governance/assembly-voting/adapters/sanitize"
	"bureausocial/contexts/governance/assembly-voting/application/commands"
	"bureausocial/contexts/governance/assembly-voting/application/queries"
	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Members     ports.MemberRepository
	Assemblies  ports.AssemblyRepository
	Items       ports.VotingItemRepository
	Votes       ports.VoteRepository
	Delegations ports.DelegationRepository
	Outbox      ports.OutboxWriter
	Minutes     ports.MinutesRenderer
	Sanitizer   ports.TextSanitizer
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Metrics     ports.Metrics
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	results := queries.ResultsUseCase{
		Members:     deps.Members,
		Assemblies:  deps.Assemblies,
		Items:       deps.Items,
		Votes:       deps.Votes,
		Delegations: deps.Delegations,
		Clock:       deps.Clock,
		Metrics:     deps.Metrics,
		Logger:      deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Members: commands.MemberUseCase{
				Members:   deps.Members,
				Sanitizer: deps.Sanitizer,
				Clock:     deps.Clock,
				IDGen:     deps.IDGen,
				Logger:    deps.Logger,
			},
			Assemblies: commands.AssemblyUseCase{
				Members:     deps.Members,
				Assemblies:  deps.Assemblies,
				Items:       deps.Items,
				Votes:       deps.Votes,
				Delegations: deps.Delegations,
				Outbox:      deps.Outbox,
				Minutes:     deps.Minutes,
				Sanitizer:   deps.Sanitizer,
				Clock:       deps.Clock,
				IDGen:       deps.IDGen,
				Metrics:     deps.Metrics,
				Logger:      deps.Logger,
			},
			Votes: commands.VoteUseCase{
				Members:     deps.Members,
				Assemblies:  deps.Assemblies,
				Items:       deps.Items,
				Votes:       deps.Votes,
				Delegations: deps.Delegations,
				Clock:       deps.Clock,
				IDGen:       deps.IDGen,
				Metrics:     deps.Metrics,
				Logger:      deps.Logger,
			},
			Delegations: commands.DelegationUseCase{
				Members:     deps.Members,
				Assemblies:  deps.Assemblies,
				Delegations: deps.Delegations,
				Outbox:      deps.Outbox,
				Clock:       deps.Clock,
				IDGen:       deps.IDGen,
				Metrics:     deps.Metrics,
				Logger:      deps.Logger,
			},
			Results: results,
			DelegationReads: queries.DelegationQueries{
				Assemblies:  deps.Assemblies,
				Delegations: deps.Delegations,
			},
			Reads: queries.ReadUseCase{
				Members:    deps.Members,
				Assemblies: deps.Assemblies,
				Items:      deps.Items,
			},
			Logger: deps.Logger,
		},
	}
}

// NewInMemoryModule wires every port to one memory store. seed members
// are available immediately, which lets tests bootstrap an admin.
func NewInMemoryModule(seed []entities.Member, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Members:     store,
		Assemblies:  store,
		Items:       store,
		Votes:       store,
		Delegations: store,
		Outbox:      store,
		Minutes:     minutes.NewRenderer(minutes.FormatMarkdown),
		Sanitizer:   sanitize.New(),
		Clock:       store,
		IDGen:       store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
