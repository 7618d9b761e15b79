// Package id formats and parses ledger entry IDs and month buckets.
package id

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatEntryID returns an entry ID like "2024-01-001".
func FormatEntryID(year, month, seq int) string {
	return fmt.Sprintf("%04d-%02d-%03d", year, month, seq)
}

// ParseEntryID parses "2024-01-001" into year, month, seq.
func ParseEntryID(id string) (year, month, seq int, err error) {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid entry ID format: %q", id)
	}

	year, month, err = parseYearMonth(parts[0], parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid entry ID %q: %w", id, err)
	}

	seq, err = strconv.Atoi(parts[2])
	if err != nil || seq < 1 {
		return 0, 0, 0, fmt.Errorf("invalid sequence in entry ID %q", id)
	}
	return year, month, seq, nil
}

// FormatMonth returns a month bucket like "2024-01".
func FormatMonth(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ParseMonth parses a "YYYY-MM" month bucket.
func ParseMonth(bucket string) (year, month int, err error) {
	y, m, ok := strings.Cut(bucket, "-")
	if !ok || len(y) != 4 || len(m) != 2 {
		return 0, 0, fmt.Errorf("invalid month %q: want YYYY-MM", bucket)
	}
	year, month, err = parseYearMonth(y, m)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: %w", bucket, err)
	}
	return year, month, nil
}

func parseYearMonth(y, m string) (int, int, error) {
	year, err := strconv.Atoi(y)
	if err != nil {
		return 0, 0, fmt.Errorf("year %q: %w", y, err)
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return 0, 0, fmt.Errorf("month %q: %w", m, err)
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("month %d out of range", month)
	}
	return year, month, nil
}
