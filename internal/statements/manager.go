// Package statements manages the lifecycle of imported statements: import,
// listing, deletion and reset.
package statements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/tally/internal/logging"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

// ImportResult is what Import persisted.
type ImportResult struct {
	Statement    model.Statement
	Transactions []model.BankTransaction
}

// Totals sums pending (unconsumed) transactions by polarity.
type Totals struct {
	Credits     decimal.Decimal
	Debits      decimal.Decimal
	CreditCount int
	DebitCount  int
}

// Net returns credits minus debits.
func (t Totals) Net() decimal.Decimal {
	return t.Credits.Sub(t.Debits)
}

// Manager persists statements through a store.StatementStore.
type Manager struct {
	stmts  store.StatementStore
	txns   store.TransactionStore
	logger *logging.Logger
	now    func() time.Time
	newID  func() string
}

// NewManager creates a Manager over s.
func NewManager(s store.Store, logger *logging.Logger) *Manager {
	return &Manager{
		stmts:  s,
		txns:   s,
		logger: logging.OrNop(logger).Named("statements"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Import persists parsed as one statement with its transactions. Either
// both are stored or neither is.
func (m *Manager) Import(ctx context.Context, ownerID string, parsed *model.ParsedStatement, sourceFileName string) (*ImportResult, error) {
	if parsed == nil {
		return nil, fmt.Errorf("importing %s: no parsed statement", sourceFileName)
	}

	stmt := model.Statement{
		ID:              m.newID(),
		OwnerID:         ownerID,
		InstitutionName: parsed.InstitutionName,
		AccountID:       parsed.AccountID,
		StatementDate:   parsed.StatementDate,
		Balance:         parsed.Balance,
		SourceFileName:  sourceFileName,
		ImportedAt:      m.now().UTC().Truncate(time.Second),
	}

	txns := make([]model.BankTransaction, len(parsed.Transactions))
	for i, pt := range parsed.Transactions {
		txns[i] = model.BankTransaction{
			ID:          m.newID(),
			StatementID: stmt.ID,
			OwnerID:     ownerID,
			Date:        pt.Date,
			Description: pt.Description,
			Amount:      pt.Amount.Abs(),
			Polarity:    pt.Polarity,
			ReferenceID: pt.ReferenceID,
		}
	}

	if err := m.stmts.InsertStatement(ctx, stmt, txns); err != nil {
		return nil, err
	}
	m.logger.Info("statement imported",
		zap.String("owner", ownerID),
		zap.String("statement", stmt.ID),
		zap.String("file", sourceFileName),
		zap.String("institution", stmt.InstitutionName),
		zap.Int("transactions", len(txns)),
	)
	return &ImportResult{Statement: stmt, Transactions: txns}, nil
}

// List returns the owner's statements, newest import first.
func (m *Manager) List(ctx context.Context, ownerID string) ([]model.Statement, error) {
	return m.stmts.ListStatements(ctx, ownerID)
}

// Transactions returns every transaction of one statement.
func (m *Manager) Transactions(ctx context.Context, ownerID, statementID string) ([]model.BankTransaction, error) {
	return m.txns.ListTransactions(ctx, ownerID, store.TxnFilter{StatementID: statementID})
}

// Unconsumed returns the owner's pending transactions, newest date first.
func (m *Manager) Unconsumed(ctx context.Context, ownerID string) ([]model.BankTransaction, error) {
	return m.txns.ListTransactions(ctx, ownerID, store.TxnFilter{OnlyUnconsumed: true})
}

// Lookup returns the owner's transactions whose IDs are in ids, consumed
// or not. Unknown IDs are skipped.
func (m *Manager) Lookup(ctx context.Context, ownerID string, ids []string) ([]model.BankTransaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return m.txns.ListTransactions(ctx, ownerID, store.TxnFilter{IDs: ids})
}

// PendingTotals sums the owner's unconsumed credits and debits.
func (m *Manager) PendingTotals(ctx context.Context, ownerID string) (Totals, error) {
	txns, err := m.Unconsumed(ctx, ownerID)
	if err != nil {
		return Totals{}, err
	}
	var t Totals
	for _, txn := range txns {
		switch txn.Polarity {
		case model.PolarityCredit:
			t.Credits = t.Credits.Add(txn.Amount)
			t.CreditCount++
		case model.PolarityDebit:
			t.Debits = t.Debits.Add(txn.Amount)
			t.DebitCount++
		}
	}
	return t, nil
}

// Delete removes a statement and all of its transactions.
func (m *Manager) Delete(ctx context.Context, ownerID, statementID string) error {
	if err := m.stmts.DeleteStatement(ctx, ownerID, statementID); err != nil {
		return fmt.Errorf("deleting statement %s: %w", statementID, err)
	}
	m.logger.Info("statement deleted", zap.String("owner", ownerID), zap.String("statement", statementID))
	return nil
}

// Reset removes every statement and transaction of the owner. Rules are
// left alone.
func (m *Manager) Reset(ctx context.Context, ownerID string) error {
	if err := m.stmts.DeleteAllStatements(ctx, ownerID); err != nil {
		return fmt.Errorf("resetting statements: %w", err)
	}
	m.logger.Info("statements reset", zap.String("owner", ownerID))
	return nil
}
