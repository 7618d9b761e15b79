package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is an income or expense record in the ledger.
type LedgerEntry struct {
	ID                string // "YYYY-MM-NNN"
	OwnerID           string
	Date              time.Time
	Description       string
	Amount            decimal.Decimal
	Category          Category
	MonthBucket       string // "YYYY-MM"
	BankTransactionID string
	CreatedAt         time.Time
}
