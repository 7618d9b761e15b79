package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/ledger"
	"github.com/cleared-dev/tally/internal/model"
)

var _ ledger.Ledger = (*Store)(nil)

// PostEntry validates p and inserts the next entry of its month. An
// advisory lock per owner and month serializes sequence assignment.
func (s *Store) PostEntry(ctx context.Context, ownerID string, p ledger.PostParams) (*model.LedgerEntry, error) {
	if err := ledger.Invalid(ledger.Validate(p)); err != nil {
		return nil, err
	}
	year, month, _ := id.ParseMonth(p.MonthBucket)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning ledger transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ownerID+":"+p.MonthBucket); err != nil {
		return nil, fmt.Errorf("locking ledger month: %w", err)
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM ledger_entries WHERE owner_id = $1 AND month_bucket = $2`,
		ownerID, p.MonthBucket,
	).Scan(&seq); err != nil {
		return nil, fmt.Errorf("reading ledger sequence: %w", err)
	}

	entry := model.LedgerEntry{
		ID:                id.FormatEntryID(year, month, seq),
		OwnerID:           ownerID,
		Date:              p.Date,
		Description:       p.Description,
		Amount:            p.Amount,
		Category:          p.Category,
		MonthBucket:       p.MonthBucket,
		BankTransactionID: p.BankTransactionID,
		CreatedAt:         time.Now().UTC().Truncate(time.Second),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, owner_id, month_bucket, seq, date, description, amount, category, bank_transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.OwnerID, entry.MonthBucket, seq, entry.Date, entry.Description,
		entry.Amount, string(entry.Category), entry.BankTransactionID, entry.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("posting %s: %w", p.BankTransactionID, ledger.ErrDuplicateTransaction)
	}
	if err != nil {
		return nil, fmt.Errorf("inserting ledger entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing ledger entry: %w", err)
	}
	return &entry, nil
}

// ReadMonth returns the owner's entries of a "YYYY-MM" month in sequence
// order.
func (s *Store) ReadMonth(ctx context.Context, ownerID, month string) ([]model.LedgerEntry, error) {
	if _, _, err := id.ParseMonth(month); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, date, description, amount, category, month_bucket, bank_transaction_id, created_at
		FROM ledger_entries WHERE owner_id = $1 AND month_bucket = $2
		ORDER BY seq`, ownerID, month)
	if err != nil {
		return nil, fmt.Errorf("reading ledger month: %w", err)
	}
	defer rows.Close()

	var out []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var category string
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Date, &e.Description, &e.Amount,
			&category, &e.MonthBucket, &e.BankTransactionID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		if e.Category, err = model.ParseCategory(category); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
