package filestore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store/storetest"
)

func TestTransactionsRoundTrip(t *testing.T) {
	_, txns := storetest.Statement("u1", "s1", 2)
	txns[0].Description = `PIX "ENVIADO", JOAO`
	txns[1].Consumed = true
	txns[1].PostedLedgerEntryID = "2024-01-003"

	var buf bytes.Buffer
	require.NoError(t, writeRows(&buf, txnHeader, txns, MarshalTransaction))

	got, err := readRows(&buf, txnHeader, UnmarshalTransaction)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, txns[0].Description, got[0].Description)
	assert.True(t, txns[0].Amount.Equal(got[0].Amount))
	assert.Equal(t, model.PolarityDebit, got[0].Polarity)
	assert.True(t, got[1].Consumed)
	assert.Equal(t, "2024-01-003", got[1].PostedLedgerEntryID)
}

func TestUnmarshalTransaction_BadPolarity(t *testing.T) {
	row := MarshalTransaction(model.BankTransaction{Polarity: "sideways"})
	_, err := UnmarshalTransaction(row)
	assert.Error(t, err)
}

func TestUnmarshalRule_BadCategory(t *testing.T) {
	row := MarshalRule(model.Rule{Name: "x", TargetCategory: "entrada"})
	_, err := UnmarshalRule(row)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entrada")
}

func TestReadRows_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRows[model.Rule](&buf, ruleHeader, nil, MarshalRule))

	got, err := readRows(&buf, ruleHeader, UnmarshalRule)
	require.NoError(t, err)
	assert.Nil(t, got)
}
