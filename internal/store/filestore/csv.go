package filestore

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

var (
	statementHeader = []string{"id", "owner_id", "institution_name", "account_id", "statement_date", "balance", "source_file_name", "imported_at"}
	txnHeader       = []string{"id", "statement_id", "owner_id", "date", "description", "amount", "polarity", "reference_id", "consumed", "posted_ledger_entry_id"}
	ruleHeader      = []string{"id", "owner_id", "name", "match_pattern", "target_description", "target_category", "auto_apply", "active", "use_original_description"}
)

const (
	stColID          = 0
	stColOwner       = 1
	stColInstitution = 2
	stColAccount     = 3
	stColDate        = 4
	stColBalance     = 5
	stColFile        = 6
	stColImported    = 7

	txColID          = 0
	txColStatement   = 1
	txColOwner       = 2
	txColDate        = 3
	txColDesc        = 4
	txColAmount      = 5
	txColPolarity    = 6
	txColRef         = 7
	txColConsumed    = 8
	txColLedgerEntry = 9

	ruColID          = 0
	ruColOwner       = 1
	ruColName        = 2
	ruColPattern     = 3
	ruColTargetDesc  = 4
	ruColCategory    = 5
	ruColAutoApply   = 6
	ruColActive      = 7
	ruColUseOriginal = 8
)

// MarshalStatement converts a Statement to a CSV row.
func MarshalStatement(st model.Statement) []string {
	row := make([]string, len(statementHeader))
	row[stColID] = st.ID
	row[stColOwner] = st.OwnerID
	row[stColInstitution] = st.InstitutionName
	row[stColAccount] = st.AccountID
	row[stColDate] = st.StatementDate.Format(model.DateFormat)
	row[stColBalance] = st.Balance.StringFixed(2)
	row[stColFile] = st.SourceFileName
	row[stColImported] = st.ImportedAt.UTC().Format(time.RFC3339)
	return row
}

// UnmarshalStatement converts a CSV row to a Statement.
func UnmarshalStatement(record []string) (model.Statement, error) {
	date, err := time.Parse(model.DateFormat, record[stColDate])
	if err != nil {
		return model.Statement{}, fmt.Errorf("parsing statement_date %q: %w", record[stColDate], err)
	}
	balance, err := decimal.NewFromString(record[stColBalance])
	if err != nil {
		return model.Statement{}, fmt.Errorf("parsing balance %q: %w", record[stColBalance], err)
	}
	imported, err := time.Parse(time.RFC3339, record[stColImported])
	if err != nil {
		return model.Statement{}, fmt.Errorf("parsing imported_at %q: %w", record[stColImported], err)
	}
	return model.Statement{
		ID:              record[stColID],
		OwnerID:         record[stColOwner],
		InstitutionName: record[stColInstitution],
		AccountID:       record[stColAccount],
		StatementDate:   date,
		Balance:         balance,
		SourceFileName:  record[stColFile],
		ImportedAt:      imported,
	}, nil
}

// MarshalTransaction converts a BankTransaction to a CSV row.
func MarshalTransaction(txn model.BankTransaction) []string {
	row := make([]string, len(txnHeader))
	row[txColID] = txn.ID
	row[txColStatement] = txn.StatementID
	row[txColOwner] = txn.OwnerID
	row[txColDate] = txn.Date.Format(model.DateFormat)
	row[txColDesc] = txn.Description
	row[txColAmount] = txn.Amount.String()
	row[txColPolarity] = string(txn.Polarity)
	row[txColRef] = txn.ReferenceID
	row[txColConsumed] = strconv.FormatBool(txn.Consumed)
	row[txColLedgerEntry] = txn.PostedLedgerEntryID
	return row
}

// UnmarshalTransaction converts a CSV row to a BankTransaction.
func UnmarshalTransaction(record []string) (model.BankTransaction, error) {
	date, err := time.Parse(model.DateFormat, record[txColDate])
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing date %q: %w", record[txColDate], err)
	}
	amount, err := decimal.NewFromString(record[txColAmount])
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing amount %q: %w", record[txColAmount], err)
	}
	polarity, err := model.ParsePolarity(record[txColPolarity])
	if err != nil {
		return model.BankTransaction{}, err
	}
	consumed, err := strconv.ParseBool(record[txColConsumed])
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing consumed %q: %w", record[txColConsumed], err)
	}
	return model.BankTransaction{
		ID:                  record[txColID],
		StatementID:         record[txColStatement],
		OwnerID:             record[txColOwner],
		Date:                date,
		Description:         record[txColDesc],
		Amount:              amount,
		Polarity:            polarity,
		ReferenceID:         record[txColRef],
		Consumed:            consumed,
		PostedLedgerEntryID: record[txColLedgerEntry],
	}, nil
}

// MarshalRule converts a Rule to a CSV row.
func MarshalRule(r model.Rule) []string {
	row := make([]string, len(ruleHeader))
	row[ruColID] = r.ID
	row[ruColOwner] = r.OwnerID
	row[ruColName] = r.Name
	row[ruColPattern] = r.MatchPattern
	row[ruColTargetDesc] = r.TargetDescription
	row[ruColCategory] = string(r.TargetCategory)
	row[ruColAutoApply] = strconv.FormatBool(r.AutoApply)
	row[ruColActive] = strconv.FormatBool(r.Active)
	row[ruColUseOriginal] = strconv.FormatBool(r.UseOriginalDescription)
	return row
}

// UnmarshalRule converts a CSV row to a Rule.
func UnmarshalRule(record []string) (model.Rule, error) {
	category, err := model.ParseCategory(record[ruColCategory])
	if err != nil {
		return model.Rule{}, err
	}
	flags := make([]bool, 3)
	for i, col := range []int{ruColAutoApply, ruColActive, ruColUseOriginal} {
		flags[i], err = strconv.ParseBool(record[col])
		if err != nil {
			return model.Rule{}, fmt.Errorf("parsing %s %q: %w", ruleHeader[col], record[col], err)
		}
	}
	return model.Rule{
		ID:                     record[ruColID],
		OwnerID:                record[ruColOwner],
		Name:                   record[ruColName],
		MatchPattern:           record[ruColPattern],
		TargetDescription:      record[ruColTargetDesc],
		TargetCategory:         category,
		AutoApply:              flags[0],
		Active:                 flags[1],
		UseOriginalDescription: flags[2],
	}, nil
}

// readRows reads a headed CSV and unmarshals every data row.
func readRows[T any](r io.Reader, header []string, unmarshal func([]string) (T, error)) ([]T, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	out := make([]T, 0, len(records)-1)
	for i, rec := range records[1:] {
		v, err := unmarshal(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// writeRows writes header plus one row per item.
func writeRows[T any](w io.Writer, header []string, items []T, marshal func(T) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, item := range items {
		if err := cw.Write(marshal(item)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
