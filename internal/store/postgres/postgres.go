// Package postgres is the remote store.Store and ledger.Ledger backend on
// PostgreSQL through database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/cleared-dev/tally/internal/store"
)

// Config holds connection settings. DSN wins over the discrete fields.
type Config struct {
	DSN             string        `yaml:"dsn,omitempty"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password,omitempty"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns local development settings.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Database:        "tally",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

// ConnString returns the lib/pq connection string for cfg.
func (c Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", c.Port),
		fmt.Sprintf("user=%s", c.User),
		fmt.Sprintf("dbname=%s", c.Database),
		fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	if c.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.Password))
	}
	return strings.Join(parts, " ")
}

// Store implements store.Store and ledger.Ledger.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open connects, pings and creates the schema if missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("postgres", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS statements (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		institution_name TEXT NOT NULL,
		account_id TEXT NOT NULL,
		statement_date DATE NOT NULL,
		balance NUMERIC(15,2) NOT NULL,
		source_file_name TEXT NOT NULL,
		imported_at TIMESTAMP WITH TIME ZONE NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_statements_owner ON statements(owner_id, imported_at DESC)`,
	`CREATE TABLE IF NOT EXISTS bank_transactions (
		id TEXT PRIMARY KEY,
		statement_id TEXT NOT NULL REFERENCES statements(id) ON DELETE CASCADE,
		owner_id TEXT NOT NULL,
		date DATE NOT NULL,
		description TEXT NOT NULL,
		amount NUMERIC(15,2) NOT NULL CHECK (amount >= 0),
		polarity TEXT NOT NULL CHECK (polarity IN ('credit', 'debit')),
		reference_id TEXT NOT NULL DEFAULT '',
		consumed BOOLEAN NOT NULL DEFAULT FALSE,
		posted_ledger_entry_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bank_transactions_owner ON bank_transactions(owner_id, consumed, date DESC)`,
	`CREATE TABLE IF NOT EXISTS reconciliation_rules (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		match_pattern TEXT NOT NULL DEFAULT '',
		target_description TEXT NOT NULL DEFAULT '',
		target_category TEXT NOT NULL CHECK (target_category IN ('income', 'expense')),
		auto_apply BOOLEAN NOT NULL,
		active BOOLEAN NOT NULL,
		use_original_description BOOLEAN NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reconciliation_rules_owner ON reconciliation_rules(owner_id)`,
	`CREATE TABLE IF NOT EXISTS rule_seeds (
		owner_id TEXT PRIMARY KEY,
		seeded_at TIMESTAMP WITH TIME ZONE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		month_bucket TEXT NOT NULL,
		seq INTEGER NOT NULL,
		date DATE NOT NULL,
		description TEXT NOT NULL,
		amount NUMERIC(15,2) NOT NULL CHECK (amount >= 0),
		category TEXT NOT NULL CHECK (category IN ('income', 'expense')),
		bank_transaction_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		PRIMARY KEY (owner_id, id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_bank_txn
		ON ledger_entries(owner_id, bank_transaction_id) WHERE bank_transaction_id <> ''`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, q := range schema {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// rollback is deferred after BeginTx; it is a no-op once the tx committed.
func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
