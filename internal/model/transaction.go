package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the canonical calendar date layout used across tally.
const DateFormat = "2006-01-02"

// ParsedStatement is the parser output for one statement file.
type ParsedStatement struct {
	InstitutionName string
	AccountID       string
	StatementDate   time.Time
	Balance         decimal.Decimal
	Transactions    []ParsedTransaction
}

// ParsedTransaction is one movement read from a statement. Amount is never
// negative; the sign lives in Polarity.
type ParsedTransaction struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Polarity    Polarity
	ReferenceID string
}

// Statement is an imported statement header.
type Statement struct {
	ID              string
	OwnerID         string
	InstitutionName string
	AccountID       string
	StatementDate   time.Time
	Balance         decimal.Decimal
	SourceFileName  string
	ImportedAt      time.Time
}

// BankTransaction is a persisted statement line. Consumed flips to true at
// most once, together with PostedLedgerEntryID.
type BankTransaction struct {
	ID                  string
	StatementID         string
	OwnerID             string
	Date                time.Time
	Description         string
	Amount              decimal.Decimal
	Polarity            Polarity
	ReferenceID         string
	Consumed            bool
	PostedLedgerEntryID string
}

// MonthBucket returns the ledger month ("YYYY-MM") the transaction posts into.
func (t BankTransaction) MonthBucket() string {
	return t.Date.Format(DateFormat)[:7]
}
