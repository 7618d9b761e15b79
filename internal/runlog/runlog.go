// Package runlog keeps the append-only reconciliation audit trail in
// <root>/logs/reconcile-log.csv.
package runlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cleared-dev/tally/internal/reconcile"
)

// Entry is one row in the reconcile log.
type Entry struct {
	Timestamp         time.Time
	OwnerID           string
	RunID             string
	TransactionID     string
	SourceDescription string
	Status            string
	Rule              string
	PostedDescription string
	LedgerEntryID     string
	Error             string
}

// Header is the CSV header for reconcile-log.csv.
const Header = "timestamp,owner_id,run_id,transaction_id,source_description,status,rule,posted_description,ledger_entry_id,error"

// Path is the log location relative to the project root.
const Path = "logs/reconcile-log.csv"

const (
	numFields    = 10
	colTimestamp = 0
	colOwner     = 1
	colRun       = 2
	colTxn       = 3
	colSource    = 4
	colStatus    = 5
	colRule      = 6
	colPosted    = 7
	colLedgerID  = 8
	colError     = 9
)

// FromResult converts a batch result into log entries stamped with at.
func FromResult(ownerID, runID string, at time.Time, res *reconcile.Result) []Entry {
	if res == nil {
		return nil
	}
	entries := make([]Entry, len(res.Outcomes))
	for i, o := range res.Outcomes {
		entries[i] = Entry{
			Timestamp:         at,
			OwnerID:           ownerID,
			RunID:             runID,
			TransactionID:     o.TransactionID,
			SourceDescription: o.SourceDescription,
			Status:            string(o.Status),
			Rule:              o.MatchedRule,
			PostedDescription: o.PostedDescription,
			LedgerEntryID:     o.LedgerEntryID,
			Error:             o.Error,
		}
	}
	return entries
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colOwner] = e.OwnerID
	row[colRun] = e.RunID
	row[colTxn] = e.TransactionID
	row[colSource] = e.SourceDescription
	row[colStatus] = e.Status
	row[colRule] = e.Rule
	row[colPosted] = e.PostedDescription
	row[colLedgerID] = e.LedgerEntryID
	row[colError] = e.Error
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	return Entry{
		Timestamp:         ts,
		OwnerID:           record[colOwner],
		RunID:             record[colRun],
		TransactionID:     record[colTxn],
		SourceDescription: record[colSource],
		Status:            record[colStatus],
		Rule:              record[colRule],
		PostedDescription: record[colPosted],
		LedgerEntryID:     record[colLedgerID],
		Error:             record[colError],
	}, nil
}

// Append writes entries to <root>/logs/reconcile-log.csv, creating the
// file and header if needed.
func Append(root string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	path := filepath.Join(root, Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening reconcile log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns every entry of <root>/logs/reconcile-log.csv, or nil if the
// file does not exist.
func Read(root string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(root, Path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening reconcile log: %w", err)
	}
	defer f.Close()
	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading reconcile log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
