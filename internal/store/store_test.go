package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cleared-dev/tally/internal/model"
)

func TestTxnFilter_Matches(t *testing.T) {
	txn := model.BankTransaction{ID: "t1", StatementID: "s1"}
	consumed := model.BankTransaction{ID: "t2", StatementID: "s1", Consumed: true}

	assert.True(t, TxnFilter{}.Matches(txn))
	assert.True(t, TxnFilter{StatementID: "s1"}.Matches(txn))
	assert.False(t, TxnFilter{StatementID: "s2"}.Matches(txn))
	assert.True(t, TxnFilter{OnlyUnconsumed: true}.Matches(txn))
	assert.False(t, TxnFilter{OnlyUnconsumed: true}.Matches(consumed))
	assert.True(t, TxnFilter{IDs: []string{"t0", "t1"}}.Matches(txn))
	assert.False(t, TxnFilter{IDs: []string{"t2"}}.Matches(txn))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("op", nil))

	err := Wrap("insert statement", errors.New("disk full"))
	assert.True(t, IsPersistence(err))
	assert.Contains(t, err.Error(), "insert statement")
	assert.Contains(t, err.Error(), "disk full")

	assert.Same(t, ErrNotFound, Wrap("op", ErrNotFound))
	wrapped := fmt.Errorf("ctx: %w", ErrAlreadyConsumed)
	assert.Equal(t, wrapped, Wrap("op", wrapped))
	assert.Equal(t, err, Wrap("outer", err))
}

func TestSortHelpers(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

	stmts := []model.Statement{{ID: "old", ImportedAt: day(1)}, {ID: "new", ImportedAt: day(5)}}
	SortStatements(stmts)
	assert.Equal(t, "new", stmts[0].ID)

	txns := []model.BankTransaction{{ID: "a", Date: day(2)}, {ID: "b", Date: day(9)}}
	SortTransactions(txns)
	assert.Equal(t, "b", txns[0].ID)

	rules := []model.Rule{{Name: "Tarifa"}, {Name: "PIX Enviado"}}
	SortRules(rules)
	assert.Equal(t, "PIX Enviado", rules[0].Name)
}
