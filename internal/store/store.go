// Package store defines the persistence port used by the statement,
// rule and reconciliation services. Backends live in subpackages and are
// chosen once, at construction time.
package store

import (
	"context"
	"sort"

	"github.com/cleared-dev/tally/internal/model"
)

// TxnFilter narrows ListTransactions. Zero values mean "any".
type TxnFilter struct {
	StatementID    string
	OnlyUnconsumed bool
	IDs            []string
}

// Matches reports whether txn passes the filter.
func (f TxnFilter) Matches(txn model.BankTransaction) bool {
	if f.StatementID != "" && txn.StatementID != f.StatementID {
		return false
	}
	if f.OnlyUnconsumed && txn.Consumed {
		return false
	}
	if len(f.IDs) > 0 {
		for _, id := range f.IDs {
			if id == txn.ID {
				return true
			}
		}
		return false
	}
	return true
}

// StatementStore persists statements and their transactions.
type StatementStore interface {
	// InsertStatement writes stmt and txns as one unit: either both are
	// stored or neither is.
	InsertStatement(ctx context.Context, stmt model.Statement, txns []model.BankTransaction) error
	ListStatements(ctx context.Context, ownerID string) ([]model.Statement, error)
	// DeleteStatement removes the statement and every transaction it owns.
	DeleteStatement(ctx context.Context, ownerID, statementID string) error
	// DeleteAllStatements removes every statement and transaction of the owner.
	DeleteAllStatements(ctx context.Context, ownerID string) error
}

// TransactionStore reads bank transactions and records their consumption.
type TransactionStore interface {
	ListTransactions(ctx context.Context, ownerID string, filter TxnFilter) ([]model.BankTransaction, error)
	// MarkConsumed flips consumed to true and records the ledger entry.
	// It fails with ErrAlreadyConsumed if the row was consumed already.
	MarkConsumed(ctx context.Context, ownerID, txnID, ledgerEntryID string) error
}

// RuleStore persists reconciliation rules.
type RuleStore interface {
	ListRules(ctx context.Context, ownerID string) ([]model.Rule, error)
	InsertRules(ctx context.Context, ownerID string, rules []model.Rule) error
	// ReplaceRules swaps the owner's whole rule set for rules.
	ReplaceRules(ctx context.Context, ownerID string, rules []model.Rule) error
	// MarkSeeded records that the default rules were created for the owner.
	MarkSeeded(ctx context.Context, ownerID string) error
	IsSeeded(ctx context.Context, ownerID string) (bool, error)
}

// Store is the full persistence port.
type Store interface {
	StatementStore
	TransactionStore
	RuleStore
	Close() error
}

// SortStatements orders statements newest import first.
func SortStatements(stmts []model.Statement) {
	sort.SliceStable(stmts, func(i, j int) bool {
		return stmts[i].ImportedAt.After(stmts[j].ImportedAt)
	})
}

// SortTransactions orders transactions newest date first.
func SortTransactions(txns []model.BankTransaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].Date.After(txns[j].Date)
	})
}

// SortRules orders rules by name.
func SortRules(rules []model.Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Name < rules[j].Name
	})
}
