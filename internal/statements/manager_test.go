package statements

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
	"github.com/cleared-dev/tally/internal/store/memory"
)

const owner = "local-user"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func parsed() *model.ParsedStatement {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	return &model.ParsedStatement{
		InstitutionName: "Bradesco",
		AccountID:       "56789-0",
		StatementDate:   day(31),
		Balance:         dec("3614.60"),
		Transactions: []model.ParsedTransaction{
			{Date: day(15), Amount: dec("45.00"), Description: "PIX ENVIADO JOAO", Polarity: model.PolarityDebit, ReferenceID: "FIT001"},
			{Date: day(5), Amount: dec("3500.00"), Description: "SALARIO", Polarity: model.PolarityCredit, ReferenceID: "FIT002"},
			{Date: day(20), Amount: dec("250.00"), Description: "PIX RECEBIDO MARIA", Polarity: model.PolarityCredit},
		},
	}
}

func newManager(s store.Store) *Manager {
	m := NewManager(s, nil)
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	m.now = func() time.Time { return time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC) }
	return m
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	m := newManager(st)

	res, err := m.Import(ctx, owner, parsed(), "extrato.ofx")
	require.NoError(t, err)
	assert.Equal(t, "id-1", res.Statement.ID)
	assert.Equal(t, "extrato.ofx", res.Statement.SourceFileName)
	assert.Equal(t, "Bradesco", res.Statement.InstitutionName)
	require.Len(t, res.Transactions, 3)
	for _, txn := range res.Transactions {
		assert.Equal(t, "id-1", txn.StatementID)
		assert.Equal(t, owner, txn.OwnerID)
		assert.False(t, txn.Consumed)
		assert.False(t, txn.Amount.IsNegative())
	}

	stmts, err := m.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	txns, err := m.Transactions(ctx, owner, "id-1")
	require.NoError(t, err)
	assert.Len(t, txns, 3)
}

func TestImport_AmountMagnitude(t *testing.T) {
	p := parsed()
	p.Transactions[0].Amount = dec("-45.00")

	res, err := newManager(memory.New()).Import(context.Background(), owner, p, "x.ofx")
	require.NoError(t, err)
	assert.True(t, res.Transactions[0].Amount.Equal(dec("45")))
	assert.Equal(t, model.PolarityDebit, res.Transactions[0].Polarity)
}

func TestImport_Nil(t *testing.T) {
	_, err := newManager(memory.New()).Import(context.Background(), owner, nil, "x.ofx")
	assert.Error(t, err)
}

type failingInsert struct {
	store.Store
}

func (failingInsert) InsertStatement(context.Context, model.Statement, []model.BankTransaction) error {
	return &store.PersistenceError{Op: "insert statement", Err: errors.New("connection reset")}
}

func TestImport_PersistenceError(t *testing.T) {
	st := memory.New()
	m := newManager(failingInsert{Store: st})

	_, err := m.Import(context.Background(), owner, parsed(), "x.ofx")
	require.Error(t, err)
	assert.True(t, store.IsPersistence(err))

	stmts, err := st.ListStatements(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestUnconsumedAndTotals(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	m := newManager(st)

	res, err := m.Import(ctx, owner, parsed(), "x.ofx")
	require.NoError(t, err)
	require.NoError(t, st.MarkConsumed(ctx, owner, res.Transactions[1].ID, "2024-01-001"))

	pending, err := m.Unconsumed(ctx, owner)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "PIX RECEBIDO MARIA", pending[0].Description, "newest date first")

	totals, err := m.PendingTotals(ctx, owner)
	require.NoError(t, err)
	assert.True(t, totals.Credits.Equal(dec("250")))
	assert.True(t, totals.Debits.Equal(dec("45")))
	assert.Equal(t, 1, totals.CreditCount)
	assert.Equal(t, 1, totals.DebitCount)
	assert.True(t, totals.Net().Equal(dec("205")))
}

func TestLookup_IncludesConsumed(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	m := newManager(st)

	res, err := m.Import(ctx, owner, parsed(), "x.ofx")
	require.NoError(t, err)
	consumed := res.Transactions[1].ID
	require.NoError(t, st.MarkConsumed(ctx, owner, consumed, "2024-01-001"))

	got, err := m.Lookup(ctx, owner, []string{consumed, "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Consumed)

	got, err = m.Lookup(ctx, owner, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDelete_Cascades(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	m := newManager(st)

	first, err := m.Import(ctx, owner, parsed(), "a.ofx")
	require.NoError(t, err)
	second, err := m.Import(ctx, owner, parsed(), "b.ofx")
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, owner, first.Statement.ID))

	gone, err := m.Transactions(ctx, owner, first.Statement.ID)
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := m.Transactions(ctx, owner, second.Statement.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 3)

	err = m.Delete(ctx, owner, first.Statement.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReset_KeepsRules(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	m := newManager(st)

	require.NoError(t, st.InsertRules(ctx, owner, []model.Rule{{ID: "r1", Name: "PIX", TargetCategory: model.CategoryExpense}}))
	_, err := m.Import(ctx, owner, parsed(), "a.ofx")
	require.NoError(t, err)

	require.NoError(t, m.Reset(ctx, owner))

	stmts, err := m.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, stmts)
	pending, err := m.Unconsumed(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, pending)

	rules, err := st.ListRules(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}
