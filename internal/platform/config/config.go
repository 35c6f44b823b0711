package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "bureau"

const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverSQLite   = "sqlite"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName    string `yaml:"serviceName"    split_words:"true"`
	HTTPPort       string `yaml:"httpPort"       envconfig:"HTTP_PORT"`
	DatabaseDriver string `yaml:"databaseDriver" split_words:"true"`
	PostgresDSN    string `yaml:"postgresDsn"    envconfig:"POSTGRES_DSN"`
	// SQLitePath empty means a private in-memory database.
	SQLitePath  string `yaml:"sqlitePath"  envconfig:"SQLITE_PATH"`
	AutoMigrate bool   `yaml:"autoMigrate" split_words:"true"`
	// NATSURL empty selects the in-process bus.
	NATSURL string `yaml:"natsUrl" envconfig:"NATS_URL"`
	// JWTSecret empty trusts the X-User-* headers.
	JWTSecret          string        `yaml:"jwtSecret"          envconfig:"JWT_SECRET"`
	CORSAllowedOrigins []string      `yaml:"corsAllowedOrigins" envconfig:"CORS_ALLOWED_ORIGINS"`
	MinutesFormat      string        `yaml:"minutesFormat"      split_words:"true"`
	OutboxPollInterval time.Duration `yaml:"outboxPollInterval" split_words:"true"`
	OutboxBatchSize    int           `yaml:"outboxBatchSize"    split_words:"true"`
	DedupTTL           time.Duration `yaml:"dedupTtl"           envconfig:"DEDUP_TTL"`
}

func Default() Config {
	return Config{
		ServiceName:        "bureausocial",
		HTTPPort:           "8080",
		DatabaseDriver:     DatabaseDriverSQLite,
		AutoMigrate:        true,
		CORSAllowedOrigins: []string{"*"},
		MinutesFormat:      "markdown",
		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		DedupTTL:           7 * 24 * time.Hour,
	}
}

// Load reads the optional YAML file at path over the defaults, then applies
// BUREAU_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite:
	case DatabaseDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("postgres dsn is required when databaseDriver is postgres")
		}
	default:
		return fmt.Errorf("invalid databaseDriver %q (must be %q or %q)",
			c.DatabaseDriver, DatabaseDriverPostgres, DatabaseDriverSQLite)
	}
	if c.MinutesFormat != "markdown" && c.MinutesFormat != "html" {
		return fmt.Errorf("invalid minutesFormat %q (must be \"markdown\" or \"html\")", c.MinutesFormat)
	}
	if c.OutboxBatchSize <= 0 {
		return errors.New("outboxBatchSize must be positive")
	}
	if c.OutboxPollInterval <= 0 {
		return errors.New("outboxPollInterval must be positive")
	}
	return nil
}

func (c Config) HTTPAddr() string {
	port := strings.TrimSpace(c.HTTPPort)
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}
