package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

// Header is the CSV header for ledger.csv.
const Header = "entry_id,owner_id,date,description,amount,category,month_bucket,bank_transaction_id,created_at"

const (
	numFields    = 9
	colEntryID   = 0
	colOwner     = 1
	colDate      = 2
	colDesc      = 3
	colAmount    = 4
	colCategory  = 5
	colMonth     = 6
	colBankTxn   = 7
	colCreatedAt = 8
)

// ReadEntries reads all entries from a ledger.csv reader.
func ReadEntries(r io.Reader) ([]model.LedgerEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var entries []model.LedgerEntry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteEntries writes entries to a ledger.csv writer, header included.
func WriteEntries(w io.Writer, entries []model.LedgerEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// AppendEntries appends entries to an existing ledger.csv writer (no header).
func AppendEntries(w io.Writer, entries []model.LedgerEntry) error {
	cw := csv.NewWriter(w)
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalEntry converts a LedgerEntry to a CSV row.
func MarshalEntry(e model.LedgerEntry) []string {
	row := make([]string, numFields)
	row[colEntryID] = e.ID
	row[colOwner] = e.OwnerID
	row[colDate] = e.Date.Format(model.DateFormat)
	row[colDesc] = e.Description
	row[colAmount] = e.Amount.StringFixed(2)
	row[colCategory] = string(e.Category)
	row[colMonth] = e.MonthBucket
	row[colBankTxn] = e.BankTransactionID
	row[colCreatedAt] = e.CreatedAt.UTC().Format(time.RFC3339)
	return row
}

// UnmarshalEntry converts a CSV row to a LedgerEntry.
func UnmarshalEntry(record []string) (model.LedgerEntry, error) {
	if len(record) != numFields {
		return model.LedgerEntry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(model.DateFormat, record[colDate])
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}
	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}
	category, err := model.ParseCategory(record[colCategory])
	if err != nil {
		return model.LedgerEntry{}, err
	}
	var created time.Time
	if record[colCreatedAt] != "" {
		created, err = time.Parse(time.RFC3339, record[colCreatedAt])
		if err != nil {
			return model.LedgerEntry{}, fmt.Errorf("parsing created_at %q: %w", record[colCreatedAt], err)
		}
	}

	return model.LedgerEntry{
		ID:                record[colEntryID],
		OwnerID:           record[colOwner],
		Date:              date,
		Description:       record[colDesc],
		Amount:            amount,
		Category:          category,
		MonthBucket:       record[colMonth],
		BankTransactionID: record[colBankTxn],
		CreatedAt:         created,
	}, nil
}
