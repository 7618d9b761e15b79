package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatEntryID(t *testing.T) {
	tests := []struct {
		year, month, seq int
		want             string
	}{
		{2024, 1, 1, "2024-01-001"},
		{2024, 12, 99, "2024-12-099"},
		{2024, 1, 123, "2024-01-123"},
		{2024, 1, 1234, "2024-01-1234"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatEntryID(tt.year, tt.month, tt.seq))
	}
}

func TestParseEntryID(t *testing.T) {
	tests := []struct {
		input               string
		wantYear, wantMonth int
		wantSeq             int
	}{
		{"2024-01-001", 2024, 1, 1},
		{"2024-12-099", 2024, 12, 99},
		{"2024-01-1234", 2024, 1, 1234},
	}
	for _, tt := range tests {
		year, month, seq, err := ParseEntryID(tt.input)
		require.NoError(t, err, "input: %s", tt.input)
		assert.Equal(t, tt.wantYear, year)
		assert.Equal(t, tt.wantMonth, month)
		assert.Equal(t, tt.wantSeq, seq)
	}
}

func TestParseEntryID_Errors(t *testing.T) {
	for _, input := range []string{"", "not-valid", "2024-01", "xxxx-01-001", "2024-13-001", "2024-01-000", "2024-01-abc"} {
		_, _, _, err := ParseEntryID(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}

func TestParseMonth(t *testing.T) {
	year, month, err := ParseMonth("2024-03")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 3, month)
	assert.Equal(t, "2024-03", FormatMonth(year, month))

	for _, input := range []string{"", "2024", "2024-3", "2024-00", "24-01", "2024-01-01"} {
		_, _, err := ParseMonth(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}
