// Package memory is an in-process store.Store. Data is lost when the
// process exits; it backs tests and the "memory" storage setting.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

// Store is a mutex-guarded map-backed store.Store.
type Store struct {
	mu         sync.RWMutex
	statements map[string][]model.Statement
	txns       map[string][]model.BankTransaction
	rules      map[string][]model.Rule
	seeded     map[string]bool
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		statements: make(map[string][]model.Statement),
		txns:       make(map[string][]model.BankTransaction),
		rules:      make(map[string][]model.Rule),
		seeded:     make(map[string]bool),
	}
}

var _ store.Store = (*Store)(nil)

// InsertStatement stores the statement and its transactions together.
func (s *Store) InsertStatement(ctx context.Context, stmt model.Statement, txns []model.BankTransaction) error {
	if err := ctx.Err(); err != nil {
		return store.Wrap("insert statement", err)
	}
	if stmt.ID == "" {
		return store.Wrap("insert statement", fmt.Errorf("statement ID is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.statements[stmt.OwnerID] {
		if existing.ID == stmt.ID {
			return store.Wrap("insert statement", fmt.Errorf("duplicate statement ID %s", stmt.ID))
		}
	}
	for _, txn := range txns {
		if txn.StatementID != stmt.ID {
			return store.Wrap("insert statement", fmt.Errorf("transaction %s belongs to statement %s", txn.ID, txn.StatementID))
		}
	}

	s.statements[stmt.OwnerID] = append(s.statements[stmt.OwnerID], stmt)
	s.txns[stmt.OwnerID] = append(s.txns[stmt.OwnerID], txns...)
	return nil
}

// ListStatements returns the owner's statements, newest import first.
func (s *Store) ListStatements(ctx context.Context, ownerID string) ([]model.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]model.Statement(nil), s.statements[ownerID]...)
	store.SortStatements(out)
	return out, nil
}

// DeleteStatement removes a statement and cascades to its transactions.
func (s *Store) DeleteStatement(ctx context.Context, ownerID, statementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := s.statements[ownerID]
	idx := -1
	for i, st := range stmts {
		if st.ID == statementID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return store.ErrNotFound
	}
	s.statements[ownerID] = append(stmts[:idx:idx], stmts[idx+1:]...)

	var kept []model.BankTransaction
	for _, txn := range s.txns[ownerID] {
		if txn.StatementID != statementID {
			kept = append(kept, txn)
		}
	}
	s.txns[ownerID] = kept
	return nil
}

// DeleteAllStatements removes all statements and transactions of the owner.
func (s *Store) DeleteAllStatements(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.statements, ownerID)
	delete(s.txns, ownerID)
	return nil
}

// ListTransactions returns matching transactions, newest date first.
func (s *Store) ListTransactions(ctx context.Context, ownerID string, filter store.TxnFilter) ([]model.BankTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.BankTransaction
	for _, txn := range s.txns[ownerID] {
		if filter.Matches(txn) {
			out = append(out, txn)
		}
	}
	store.SortTransactions(out)
	return out, nil
}

// MarkConsumed is a compare-and-set on the consumed flag.
func (s *Store) MarkConsumed(ctx context.Context, ownerID, txnID, ledgerEntryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txns := s.txns[ownerID]
	for i := range txns {
		if txns[i].ID != txnID {
			continue
		}
		if txns[i].Consumed {
			return store.ErrAlreadyConsumed
		}
		txns[i].Consumed = true
		txns[i].PostedLedgerEntryID = ledgerEntryID
		return nil
	}
	return store.ErrNotFound
}

// ListRules returns the owner's rules ordered by name.
func (s *Store) ListRules(ctx context.Context, ownerID string) ([]model.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]model.Rule(nil), s.rules[ownerID]...)
	store.SortRules(out)
	return out, nil
}

// InsertRules appends rules for the owner.
func (s *Store) InsertRules(ctx context.Context, ownerID string, rules []model.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rules {
		r.OwnerID = ownerID
		s.rules[ownerID] = append(s.rules[ownerID], r)
	}
	return nil
}

// MarkSeeded records the owner as seeded.
func (s *Store) MarkSeeded(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeded[ownerID] = true
	return nil
}

// IsSeeded reports whether MarkSeeded was called for the owner.
func (s *Store) IsSeeded(ctx context.Context, ownerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seeded[ownerID], nil
}

// ReplaceRules swaps the owner's rule set.
func (s *Store) ReplaceRules(ctx context.Context, ownerID string, rules []model.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := make([]model.Rule, 0, len(rules))
	for _, r := range rules {
		r.OwnerID = ownerID
		replaced = append(replaced, r)
	}
	s.rules[ownerID] = replaced
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
