package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Options struct {
	Driver      string
	PostgresDSN string
	// SQLitePath empty opens a private shared-cache in-memory database.
	SQLitePath string
	Logger     *slog.Logger
}

// Database wraps DB connectivity.
// Keep transaction helpers here to support outbox + state consistency.
type Database struct {
	DB     *gorm.DB
	Driver string
}

func Open(opts Options) (*Database, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var dialector gorm.Dialector
	switch strings.TrimSpace(opts.Driver) {
	case DriverPostgres:
		if strings.TrimSpace(opts.PostgresDSN) == "" {
			return nil, errors.New("postgres dsn is required")
		}
		dialector = postgres.Open(opts.PostgresDSN)
	case DriverSQLite, "":
		dialector = sqlite.Open(sqliteDSN(opts.SQLitePath))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
	driver := dialector.Name()

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm %s: %w", driver, err)
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("register gorm tracing: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve %s sql db handle: %w", driver, err)
	}
	if driver == "sqlite" {
		// Single writer; in-memory databases also live only while a
		// connection holds them.
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	logger.Info("database connected",
		"event", "database_connected",
		"module", "internal/platform/db",
		"layer", "platform",
		"driver", driver,
	)
	return &Database{DB: db, Driver: driver}, nil
}

// Migrate creates or updates the tables backing models.
func (d *Database) Migrate(models ...any) error {
	if d == nil || d.DB == nil {
		return errors.New("database is not open")
	}
	if err := d.DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func sqliteDSN(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "file:bureau-" + uuid.NewString() + "?mode=memory&cache=shared"
	}
	return path
}
