// Package storetest holds the behavior every store.Store backend must share.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises a backend against the store.Store contract.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"InsertAndList", testInsertAndList},
		{"OwnerIsolation", testOwnerIsolation},
		{"DeleteCascades", testDeleteCascades},
		{"DeleteUnknown", testDeleteUnknown},
		{"DeleteAll", testDeleteAll},
		{"FilterTransactions", testFilterTransactions},
		{"MarkConsumedOnce", testMarkConsumedOnce},
		{"MarkConsumedUnknown", testMarkConsumedUnknown},
		{"Rules", testRules},
		{"ReplaceRules", testReplaceRules},
		{"Seeded", testSeeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

// Statement builds a statement with n transactions alternating debit/credit.
func Statement(owner, id string, n int) (model.Statement, []model.BankTransaction) {
	stmt := model.Statement{
		ID:              id,
		OwnerID:         owner,
		InstitutionName: "Bradesco",
		AccountID:       "56789-0",
		StatementDate:   day(31),
		Balance:         decimal.RequireFromString("1500.25"),
		SourceFileName:  id + ".ofx",
		ImportedAt:      time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	txns := make([]model.BankTransaction, n)
	for i := range txns {
		pol := model.PolarityDebit
		if i%2 == 1 {
			pol = model.PolarityCredit
		}
		txns[i] = model.BankTransaction{
			ID:          fmt.Sprintf("%s-t%d", id, i),
			StatementID: id,
			OwnerID:     owner,
			Date:        day(i + 1),
			Description: fmt.Sprintf("PIX ENVIADO %d", i),
			Amount:      decimal.NewFromInt(int64(10 * (i + 1))),
			Polarity:    pol,
			ReferenceID: fmt.Sprintf("FIT%03d", i),
		}
	}
	return stmt, txns
}

func testInsertAndList(t *testing.T, s store.Store) {
	ctx := context.Background()
	stmt, txns := Statement("u1", "s1", 3)
	require.NoError(t, s.InsertStatement(ctx, stmt, txns))

	stmts, err := s.ListStatements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	got := stmts[0]
	assert.Equal(t, stmt.ID, got.ID)
	assert.Equal(t, stmt.InstitutionName, got.InstitutionName)
	assert.Equal(t, stmt.AccountID, got.AccountID)
	assert.True(t, stmt.Balance.Equal(got.Balance))
	assert.Equal(t, stmt.SourceFileName, got.SourceFileName)
	assert.True(t, stmt.StatementDate.Equal(got.StatementDate))

	listed, err := s.ListTransactions(ctx, "u1", store.TxnFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 3)
	// Newest date first.
	assert.Equal(t, "s1-t2", listed[0].ID)
	assert.Equal(t, model.PolarityCredit, listed[1].Polarity)
	assert.True(t, listed[0].Amount.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, "FIT002", listed[0].ReferenceID)
	assert.False(t, listed[0].Consumed)
}

func testOwnerIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	stmt, txns := Statement("u1", "s1", 2)
	require.NoError(t, s.InsertStatement(ctx, stmt, txns))

	stmts, err := s.ListStatements(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, stmts)

	listed, err := s.ListTransactions(ctx, "u2", store.TxnFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	assert.ErrorIs(t, s.DeleteStatement(ctx, "u2", "s1"), store.ErrNotFound)
}

func testDeleteCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, aTxns := Statement("u1", "a", 4)
	b, bTxns := Statement("u1", "b", 2)
	require.NoError(t, s.InsertStatement(ctx, a, aTxns))
	require.NoError(t, s.InsertStatement(ctx, b, bTxns))

	require.NoError(t, s.DeleteStatement(ctx, "u1", "a"))

	left, err := s.ListTransactions(ctx, "u1", store.TxnFilter{StatementID: "a"})
	require.NoError(t, err)
	assert.Empty(t, left)

	all, err := s.ListTransactions(ctx, "u1", store.TxnFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	stmts, err := s.ListStatements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, "b", stmts[0].ID)
}

func testDeleteUnknown(t *testing.T, s store.Store) {
	err := s.DeleteStatement(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDeleteAll(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, aTxns := Statement("u1", "a", 2)
	other, otherTxns := Statement("u2", "o", 2)
	require.NoError(t, s.InsertStatement(ctx, a, aTxns))
	require.NoError(t, s.InsertStatement(ctx, other, otherTxns))
	require.NoError(t, s.InsertRules(ctx, "u1", []model.Rule{{ID: "r1", Name: "Tarifa", MatchPattern: "TARIFA", TargetCategory: model.CategoryExpense, Active: true}}))

	require.NoError(t, s.DeleteAllStatements(ctx, "u1"))

	stmts, err := s.ListStatements(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, stmts)
	txns, err := s.ListTransactions(ctx, "u1", store.TxnFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns)

	rules, err := s.ListRules(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rules, 1, "rules survive a reset")

	otherTxnsLeft, err := s.ListTransactions(ctx, "u2", store.TxnFilter{})
	require.NoError(t, err)
	assert.Len(t, otherTxnsLeft, 2)
}

func testFilterTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	stmt, txns := Statement("u1", "s1", 3)
	require.NoError(t, s.InsertStatement(ctx, stmt, txns))
	require.NoError(t, s.MarkConsumed(ctx, "u1", "s1-t0", "2024-01-001"))

	pending, err := s.ListTransactions(ctx, "u1", store.TxnFilter{OnlyUnconsumed: true})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	picked, err := s.ListTransactions(ctx, "u1", store.TxnFilter{IDs: []string{"s1-t1", "missing"}})
	require.NoError(t, err)
	require.Len(t, picked, 1)
	assert.Equal(t, "s1-t1", picked[0].ID)
}

func testMarkConsumedOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	stmt, txns := Statement("u1", "s1", 1)
	require.NoError(t, s.InsertStatement(ctx, stmt, txns))

	require.NoError(t, s.MarkConsumed(ctx, "u1", "s1-t0", "2024-01-001"))
	err := s.MarkConsumed(ctx, "u1", "s1-t0", "2024-01-002")
	assert.ErrorIs(t, err, store.ErrAlreadyConsumed)

	listed, err := s.ListTransactions(ctx, "u1", store.TxnFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Consumed)
	assert.Equal(t, "2024-01-001", listed[0].PostedLedgerEntryID)
}

func testMarkConsumedUnknown(t *testing.T, s store.Store) {
	err := s.MarkConsumed(context.Background(), "u1", "ghost", "2024-01-001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRules(t *testing.T, s store.Store) {
	ctx := context.Background()
	rules := []model.Rule{
		{ID: "r2", Name: "Tarifa", MatchPattern: "TARIFA", TargetDescription: "Tarifa Bancária", TargetCategory: model.CategoryExpense, AutoApply: true, Active: true},
		{ID: "r1", Name: "PIX Recebido", MatchPattern: "PIX RECEBIDO", TargetDescription: "PIX Recebido", TargetCategory: model.CategoryIncome, AutoApply: true, Active: false, UseOriginalDescription: true},
	}
	require.NoError(t, s.InsertRules(ctx, "u1", rules))

	got, err := s.ListRules(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "PIX Recebido", got[0].Name)
	assert.Equal(t, "u1", got[0].OwnerID)
	assert.Equal(t, model.CategoryIncome, got[0].TargetCategory)
	assert.False(t, got[0].Active)
	assert.True(t, got[0].UseOriginalDescription)
	assert.Equal(t, "Tarifa Bancária", got[1].TargetDescription)
	assert.True(t, got[1].AutoApply)

	none, err := s.ListRules(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testReplaceRules(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertRules(ctx, "u1", []model.Rule{{ID: "r1", Name: "Old", TargetCategory: model.CategoryIncome}}))
	require.NoError(t, s.ReplaceRules(ctx, "u1", []model.Rule{{ID: "r9", Name: "New", TargetCategory: model.CategoryExpense}}))

	got, err := s.ListRules(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "New", got[0].Name)

	require.NoError(t, s.ReplaceRules(ctx, "u1", nil))
	got, err = s.ListRules(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testSeeded(t *testing.T, s store.Store) {
	ctx := context.Background()
	seeded, err := s.IsSeeded(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, seeded)

	require.NoError(t, s.MarkSeeded(ctx, "u1"))
	seeded, err = s.IsSeeded(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = s.IsSeeded(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, seeded)
}
