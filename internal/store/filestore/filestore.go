// Package filestore is the local fallback store.Store: one directory per
// owner under <root>/data holding CSV files. Each file is rewritten whole
// through a temp file and rename.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

const (
	dataDir        = "data"
	statementsFile = "statements.csv"
	txnsFile       = "bank-transactions.csv"
	rulesFile      = "rules.csv"
	seededFile     = ".seeded"
)

// Store keeps per-owner CSV files under root/data.
type Store struct {
	root string
	mu   sync.Mutex

	// beforeWrite, when set, runs before each file write; tests use it to
	// inject failures.
	beforeWrite func(name string) error
}

var _ store.Store = (*Store)(nil)

// New creates a Store rooted at root, creating root/data if needed.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, dataDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) ownerDir(ownerID string) (string, error) {
	if ownerID == "" || ownerID == "." || ownerID == ".." || strings.ContainsAny(ownerID, `/\`) {
		return "", fmt.Errorf("invalid owner ID %q", ownerID)
	}
	return filepath.Join(s.root, dataDir, ownerID), nil
}

func (s *Store) path(ownerID, name string) (string, error) {
	dir, err := s.ownerDir(ownerID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func readFile[T any](path string, header []string, unmarshal func([]string) (T, error)) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	rows, err := readRows(f, header, unmarshal)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

func writeFile[T any](s *Store, path string, header []string, items []T, marshal func(T) []string) error {
	if s.beforeWrite != nil {
		if err := s.beforeWrite(filepath.Base(path)); err != nil {
			return err
		}
	}
	return writeAtomic(path, func(w io.Writer) error {
		return writeRows(w, header, items, marshal)
	})
}

// writeAtomic writes through a temp file in the same directory, then renames.
func writeAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) loadStatements(ownerID string) (string, []model.Statement, error) {
	path, err := s.path(ownerID, statementsFile)
	if err != nil {
		return "", nil, err
	}
	rows, err := readFile(path, statementHeader, UnmarshalStatement)
	return path, rows, err
}

func (s *Store) loadTransactions(ownerID string) (string, []model.BankTransaction, error) {
	path, err := s.path(ownerID, txnsFile)
	if err != nil {
		return "", nil, err
	}
	rows, err := readFile(path, txnHeader, UnmarshalTransaction)
	return path, rows, err
}

func (s *Store) loadRules(ownerID string) (string, []model.Rule, error) {
	path, err := s.path(ownerID, rulesFile)
	if err != nil {
		return "", nil, err
	}
	rows, err := readFile(path, ruleHeader, UnmarshalRule)
	return path, rows, err
}

// InsertStatement appends the transactions, then the statement header. If
// the header write fails, the previous transactions file is restored.
func (s *Store) InsertStatement(ctx context.Context, stmt model.Statement, txns []model.BankTransaction) error {
	if err := ctx.Err(); err != nil {
		return store.Wrap("insert statement", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stPath, stmts, err := s.loadStatements(stmt.OwnerID)
	if err != nil {
		return store.Wrap("insert statement", err)
	}
	for _, existing := range stmts {
		if existing.ID == stmt.ID {
			return store.Wrap("insert statement", fmt.Errorf("duplicate statement ID %s", stmt.ID))
		}
	}
	txPath, existingTxns, err := s.loadTransactions(stmt.OwnerID)
	if err != nil {
		return store.Wrap("insert statement", err)
	}

	if err := writeFile(s, txPath, txnHeader, append(existingTxns, txns...), MarshalTransaction); err != nil {
		return store.Wrap("insert transactions", err)
	}
	if err := writeFile(s, stPath, statementHeader, append(stmts, stmt), MarshalStatement); err != nil {
		if rbErr := writeAtomic(txPath, func(w io.Writer) error {
			return writeRows(w, txnHeader, existingTxns, MarshalTransaction)
		}); rbErr != nil {
			return store.Wrap("insert statement", fmt.Errorf("%w (rollback failed: %v)", err, rbErr))
		}
		return store.Wrap("insert statement", err)
	}
	return nil
}

// ListStatements returns the owner's statements, newest import first.
func (s *Store) ListStatements(ctx context.Context, ownerID string) ([]model.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, stmts, err := s.loadStatements(ownerID)
	if err != nil {
		return nil, store.Wrap("list statements", err)
	}
	store.SortStatements(stmts)
	return stmts, nil
}

// DeleteStatement removes the statement's transactions first, then the
// statement itself, so an interrupted delete never leaves orphans.
func (s *Store) DeleteStatement(ctx context.Context, ownerID, statementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stPath, stmts, err := s.loadStatements(ownerID)
	if err != nil {
		return store.Wrap("delete statement", err)
	}
	var keptStmts []model.Statement
	for _, st := range stmts {
		if st.ID != statementID {
			keptStmts = append(keptStmts, st)
		}
	}
	if len(keptStmts) == len(stmts) {
		return store.ErrNotFound
	}

	txPath, txns, err := s.loadTransactions(ownerID)
	if err != nil {
		return store.Wrap("delete statement", err)
	}
	var keptTxns []model.BankTransaction
	for _, txn := range txns {
		if txn.StatementID != statementID {
			keptTxns = append(keptTxns, txn)
		}
	}

	if err := writeFile(s, txPath, txnHeader, keptTxns, MarshalTransaction); err != nil {
		return store.Wrap("delete transactions", err)
	}
	if err := writeFile(s, stPath, statementHeader, keptStmts, MarshalStatement); err != nil {
		return store.Wrap("delete statement", err)
	}
	return nil
}

// DeleteAllStatements removes the owner's statement and transaction files.
func (s *Store) DeleteAllStatements(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range []string{txnsFile, statementsFile} {
		path, err := s.path(ownerID, name)
		if err != nil {
			return store.Wrap("reset statements", err)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return store.Wrap("reset statements", err)
		}
	}
	return nil
}

// ListTransactions returns matching transactions, newest date first.
func (s *Store) ListTransactions(ctx context.Context, ownerID string, filter store.TxnFilter) ([]model.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, txns, err := s.loadTransactions(ownerID)
	if err != nil {
		return nil, store.Wrap("list transactions", err)
	}
	var out []model.BankTransaction
	for _, txn := range txns {
		if filter.Matches(txn) {
			out = append(out, txn)
		}
	}
	store.SortTransactions(out)
	return out, nil
}

// MarkConsumed flips the consumed flag under the store lock.
func (s *Store) MarkConsumed(ctx context.Context, ownerID, txnID, ledgerEntryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, txns, err := s.loadTransactions(ownerID)
	if err != nil {
		return store.Wrap("mark consumed", err)
	}
	for i := range txns {
		if txns[i].ID != txnID {
			continue
		}
		if txns[i].Consumed {
			return store.ErrAlreadyConsumed
		}
		txns[i].Consumed = true
		txns[i].PostedLedgerEntryID = ledgerEntryID
		return store.Wrap("mark consumed", writeFile(s, path, txnHeader, txns, MarshalTransaction))
	}
	return store.ErrNotFound
}

// ListRules returns the owner's rules ordered by name.
func (s *Store) ListRules(ctx context.Context, ownerID string) ([]model.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, rules, err := s.loadRules(ownerID)
	if err != nil {
		return nil, store.Wrap("list rules", err)
	}
	store.SortRules(rules)
	return rules, nil
}

// InsertRules appends rules for the owner.
func (s *Store) InsertRules(ctx context.Context, ownerID string, rules []model.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, existing, err := s.loadRules(ownerID)
	if err != nil {
		return store.Wrap("insert rules", err)
	}
	for _, r := range rules {
		r.OwnerID = ownerID
		existing = append(existing, r)
	}
	return store.Wrap("insert rules", writeFile(s, path, ruleHeader, existing, MarshalRule))
}

// ReplaceRules rewrites the owner's rule file.
func (s *Store) ReplaceRules(ctx context.Context, ownerID string, rules []model.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(ownerID, rulesFile)
	if err != nil {
		return store.Wrap("replace rules", err)
	}
	replaced := make([]model.Rule, 0, len(rules))
	for _, r := range rules {
		r.OwnerID = ownerID
		replaced = append(replaced, r)
	}
	return store.Wrap("replace rules", writeFile(s, path, ruleHeader, replaced, MarshalRule))
}

// MarkSeeded writes the owner's seed marker file.
func (s *Store) MarkSeeded(ctx context.Context, ownerID string) error {
	path, err := s.path(ownerID, seededFile)
	if err != nil {
		return store.Wrap("mark seeded", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return store.Wrap("mark seeded", err)
	}
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	return store.Wrap("mark seeded", os.WriteFile(path, []byte(stamp), 0o644))
}

// IsSeeded reports whether the seed marker exists.
func (s *Store) IsSeeded(ctx context.Context, ownerID string) (bool, error) {
	path, err := s.path(ownerID, seededFile)
	if err != nil {
		return false, store.Wrap("check seeded", err)
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, store.Wrap("check seeded", err)
	}
	return true, nil
}

// Close is a no-op; every call opens and closes its own files.
func (s *Store) Close() error { return nil }
