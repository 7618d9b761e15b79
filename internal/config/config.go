// Package config loads tally.yaml, an optional .env beside it, and TALLY_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/tally/internal/logging"
	"github.com/cleared-dev/tally/internal/resilience"
	"github.com/cleared-dev/tally/internal/store/postgres"
)

// FileName is the config file name at the project root.
const FileName = "tally.yaml"

// Storage backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Environment overrides.
const (
	EnvOwner       = "TALLY_OWNER"
	EnvStorage     = "TALLY_STORAGE"
	EnvPostgresDSN = "TALLY_POSTGRES_DSN"
	EnvLogLevel    = "TALLY_LOG_LEVEL"
)

// Config represents the top-level tally.yaml configuration.
type Config struct {
	Owner   string         `yaml:"owner"`
	Storage StorageConfig  `yaml:"storage"`
	Ledger  LedgerConfig   `yaml:"ledger"`
	Logging logging.Config `yaml:"logging"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Git     GitConfig      `yaml:"git"`
}

// StorageConfig selects where statements, transactions and rules live.
type StorageConfig struct {
	Backend  string          `yaml:"backend"` // file, postgres or memory
	Postgres postgres.Config `yaml:"postgres"`
}

// LedgerConfig selects where ledger entries are posted. An empty backend
// follows Storage.Backend.
type LedgerConfig struct {
	Backend string                   `yaml:"backend,omitempty"`
	Breaker resilience.BreakerConfig `yaml:"breaker"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Textfile  string `yaml:"textfile"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// LedgerBackend returns the effective ledger backend.
func (c *Config) LedgerBackend() string {
	if c.Ledger.Backend != "" {
		return c.Ledger.Backend
	}
	if c.Storage.Backend == BackendPostgres {
		return BackendPostgres
	}
	return BackendFile
}

// Load reads a tally.yaml file, loads a .env from the same directory if
// present and applies environment overrides. Variables already set in the
// environment win over .env values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envPath, err)
	}
	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TALLY_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvOwner); ok && v != "" {
		c.Owner = v
	}
	if v, ok := lookup(EnvStorage); ok && v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v, ok := lookup(EnvPostgresDSN); ok && v != "" {
		c.Storage.Postgres.DSN = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the values Load cannot default.
func (c *Config) Validate() error {
	if c.Owner == "" {
		return errors.New("config: owner is required")
	}
	if strings.ContainsAny(c.Owner, `/\`) || c.Owner == "." || c.Owner == ".." {
		return fmt.Errorf("config: invalid owner %q", c.Owner)
	}
	switch c.Storage.Backend {
	case BackendFile, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	switch c.LedgerBackend() {
	case BackendFile, BackendPostgres:
	default:
		return fmt.Errorf("config: unknown ledger backend %q", c.Ledger.Backend)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(owner string) *Config {
	return &Config{
		Owner: owner,
		Storage: StorageConfig{
			Backend:  BackendFile,
			Postgres: postgres.DefaultConfig(),
		},
		Ledger: LedgerConfig{
			Breaker: resilience.DefaultBreakerConfig(),
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Namespace: "tally",
			Textfile:  "logs/metrics.prom",
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Tally",
			AuthorEmail: "tally@localhost",
		},
	}
}
