package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolarityCategory(t *testing.T) {
	assert.Equal(t, CategoryIncome, PolarityCredit.Category())
	assert.Equal(t, CategoryExpense, PolarityDebit.Category())
}

func TestParsePolarity(t *testing.T) {
	p, err := ParsePolarity("credit")
	require.NoError(t, err)
	assert.Equal(t, PolarityCredit, p)

	_, err = ParsePolarity("CREDIT")
	assert.Error(t, err)
	_, err = ParsePolarity("")
	assert.Error(t, err)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("expense")
	require.NoError(t, err)
	assert.Equal(t, CategoryExpense, c)

	_, err = ParseCategory("despesa")
	assert.Error(t, err)
}

func TestCollapseSpace(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  PIX   ENVIADO\tJOAO \n", "PIX ENVIADO JOAO"},
		{"single", "single"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CollapseSpace(tt.in), "CollapseSpace(%q)", tt.in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "Dep", Truncate("Depósito", 3))
	assert.Equal(t, "Depó", Truncate("Depósito", 4))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestCleanPattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"pix enviado", "PIX ENVIADO"},
		{"%TARIFA%", "TARIFA"},
		{" *SAQUE* ", "SAQUE"},
		{"", ""},
		{"%%", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanPattern(tt.in), "CleanPattern(%q)", tt.in)
	}
}

func TestRuleIsCatchAll(t *testing.T) {
	assert.True(t, Rule{MatchPattern: ""}.IsCatchAll())
	assert.True(t, Rule{MatchPattern: " % "}.IsCatchAll())
	assert.False(t, Rule{MatchPattern: "PIX"}.IsCatchAll())
}

func TestMonthBucket(t *testing.T) {
	txn := BankTransaction{Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "2024-01", txn.MonthBucket())
}
