package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	assemblyvoting "bureausocial/contexts/governance/assembly-voting"
	"bureausocial/contexts/governance/assembly-voting/adapters/minutes"
	"bureausocial/contexts/governance/assembly-voting/adapters/notify"
	postgresadapter "bureausocial/contexts/governance/assembly-voting/adapters/postgres"
	"bureausocial/contexts/governance/assembly-voting/adapters/sanitize"
	"bureausocial/contexts/governance/assembly-voting/application/commands"
	"bureausocial/contexts/governance/assembly-voting/application/workers"
	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	"bureausocial/contexts/governance/assembly-voting/ports"
	"bureausocial/internal/platform/config"
	"bureausocial/internal/platform/db"
	"bureausocial/internal/platform/httpserver"
	"bureausocial/internal/platform/identity"
	"bureausocial/internal/platform/messaging"
	"bureausocial/internal/platform/metrics"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const shutdownTimeout = 10 * time.Second

type eventBus interface {
	ports.EventPublisher
	ports.EventSubscriber
	Close() error
}

type APIApp struct {
	server   *httpserver.Server
	database *db.Database
	// worker is set when no broker is configured.
	worker *WorkerApp
	logger *slog.Logger
}

type WorkerApp struct {
	database      *db.Database
	bus           eventBus
	outboxRelay   workers.OutboxRelay
	notifications workers.NotificationConsumer
	pollInterval  time.Duration
	logger        *slog.Logger
}

func BuildAPI(cfg config.Config, logger *slog.Logger) (*APIApp, error) {
	logger = processLogger(logger, cfg, "api")

	database, err := openDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}
	repo := postgresadapter.NewRepository(database.DB, logger)
	recorder := metrics.New()
	module := newModule(cfg, repo, recorder, logger)

	app := &APIApp{
		database: database,
		logger:   logger,
	}
	if strings.TrimSpace(cfg.NATSURL) == "" {
		app.worker = newWorkerApp(cfg, database, repo, messaging.NewBus(logger), logger)
	}
	app.server = httpserver.New(module, httpserver.Options{
		Addr:           cfg.HTTPAddr(),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Verifier:       identity.NewVerifier(cfg.JWTSecret, cfg.ServiceName),
		Metrics:        recorder,
		Logger:         logger,
	})
	return app, nil
}

func BuildWorker(cfg config.Config, logger *slog.Logger) (*WorkerApp, error) {
	logger = processLogger(logger, cfg, "worker")

	database, err := openDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	var bus eventBus
	if url := strings.TrimSpace(cfg.NATSURL); url != "" {
		conn, err := messaging.ConnectNATS(url, cfg.ServiceName+"-worker", logger)
		if err != nil {
			_ = database.Close()
			return nil, err
		}
		bus = conn
	} else {
		logger.Warn("no broker configured, using in-process event bus",
			"event", "bootstrap_worker_inprocess_bus",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		bus = messaging.NewBus(logger)
	}

	repo := postgresadapter.NewRepository(database.DB, logger)
	return newWorkerApp(cfg, database, repo, bus, logger), nil
}

// SeedAdmin creates the first administrator so a fresh deployment can
// issue tokens and manage the roster.
func SeedAdmin(ctx context.Context, cfg config.Config, logger *slog.Logger, name string, email string) (entities.Member, error) {
	logger = processLogger(logger, cfg, "seed")
	database, err := openDatabase(cfg, logger)
	if err != nil {
		return entities.Member{}, err
	}
	defer func() { _ = database.Close() }()

	repo := postgresadapter.NewRepository(database.DB, logger)
	members := commands.MemberUseCase{
		Members:   repo,
		Sanitizer: sanitize.New(),
		Clock:     postgresadapter.SystemClock{},
		IDGen:     postgresadapter.UUIDGenerator{},
		Logger:    logger,
	}
	return members.CreateMember(ctx, commands.CreateMemberCommand{
		Actor:    entities.Actor{MemberID: "bootstrap", IsAdmin: true},
		Name:     name,
		Email:    email,
		Category: entities.MemberCategoryFounder,
		IsAdmin:  true,
	})
}

func (a *APIApp) Handler() http.Handler {
	return a.server.Handler()
}

// Run serves HTTP until ctx is cancelled, then shuts the server down
// gracefully. The in-process worker, if any, stops with it.
func (a *APIApp) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.worker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.worker.Run(ctx); err != nil {
				a.logger.Error("in-process worker stopped",
					"event", "bootstrap_inprocess_worker_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Start()
	}()

	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"inprocess_worker", a.worker != nil,
	)

	var err error
	select {
	case err = <-serveErr:
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if shutdownErr := a.server.Shutdown(shutdownCtx); shutdownErr != nil {
			err = fmt.Errorf("shutdown http server: %w", shutdownErr)
		}
	}
	cancel()
	wg.Wait()
	return err
}

func (a *APIApp) Close() error {
	var errs []error
	if a.worker != nil && a.worker.bus != nil {
		errs = append(errs, a.worker.bus.Close())
	}
	if a.database != nil {
		errs = append(errs, a.database.Close())
	}
	return errors.Join(errs...)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.notifications.Start(ctx); err != nil {
		return err
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)
	return w.outboxRelay.Run(ctx, w.pollInterval)
}

// RunOnce relays one outbox batch.
func (w *WorkerApp) RunOnce(ctx context.Context) (int, error) {
	return w.outboxRelay.RunOnce(ctx)
}

func (w *WorkerApp) Close() error {
	var errs []error
	if w.bus != nil {
		errs = append(errs, w.bus.Close())
	}
	if w.database != nil {
		errs = append(errs, w.database.Close())
	}
	return errors.Join(errs...)
}

func newModule(
	cfg config.Config,
	repo *postgresadapter.Repository,
	recorder *metrics.Recorder,
	logger *slog.Logger,
) assemblyvoting.Module {
	return assemblyvoting.NewModule(assemblyvoting.Dependencies{
		Members:     repo,
		Assemblies:  repo,
		Items:       repo,
		Votes:       repo,
		Delegations: repo,
		Outbox:      repo,
		Minutes:     minutes.NewRenderer(minutes.Format(cfg.MinutesFormat)),
		Sanitizer:   sanitize.New(),
		Clock:       postgresadapter.SystemClock{},
		IDGen:       postgresadapter.UUIDGenerator{},
		Metrics:     recorder,
		Logger:      logger,
	})
}

func newWorkerApp(
	cfg config.Config,
	database *db.Database,
	repo *postgresadapter.Repository,
	bus eventBus,
	logger *slog.Logger,
) *WorkerApp {
	return &WorkerApp{
		database: database,
		bus:      bus,
		outboxRelay: workers.OutboxRelay{
			Outbox:    repo,
			Publisher: bus,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		notifications: workers.NotificationConsumer{
			Subscriber:    bus,
			Dedup:         repo,
			Members:       repo,
			Notifier:      notify.LogNotifier{Logger: logger},
			Clock:         postgresadapter.SystemClock{},
			ConsumerGroup: cfg.ServiceName + "-notification-cg",
			DedupTTL:      cfg.DedupTTL,
			Logger:        logger,
		},
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}
}

func openDatabase(cfg config.Config, logger *slog.Logger) (*db.Database, error) {
	database, err := db.Open(db.Options{
		Driver:      cfg.DatabaseDriver,
		PostgresDSN: cfg.PostgresDSN,
		SQLitePath:  cfg.SQLitePath,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(postgresadapter.Models()...); err != nil {
			_ = database.Close()
			return nil, err
		}
	}
	return database, nil
}

func processLogger(logger *slog.Logger, cfg config.Config, process string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("service", cfg.ServiceName, "process", process)
}
