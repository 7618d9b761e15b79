package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

// InsertStatement writes the statement and its transactions in one SQL
// transaction.
func (s *Store) InsertStatement(ctx context.Context, stmt model.Statement, txns []model.BankTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap("insert statement", err)
	}
	defer rollback(tx)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO statements (id, owner_id, institution_name, account_id, statement_date, balance, source_file_name, imported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		stmt.ID, stmt.OwnerID, stmt.InstitutionName, stmt.AccountID,
		stmt.StatementDate, stmt.Balance, stmt.SourceFileName, stmt.ImportedAt,
	)
	if err != nil {
		return store.Wrap("insert statement", err)
	}

	if len(txns) > 0 {
		ins, err := tx.PrepareContext(ctx, `
			INSERT INTO bank_transactions (id, statement_id, owner_id, date, description, amount, polarity, reference_id, consumed, posted_ledger_entry_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
		if err != nil {
			return store.Wrap("insert transactions", err)
		}
		defer ins.Close()

		for _, t := range txns {
			if _, err := ins.ExecContext(ctx,
				t.ID, t.StatementID, t.OwnerID, t.Date, t.Description,
				t.Amount, string(t.Polarity), t.ReferenceID, t.Consumed, t.PostedLedgerEntryID,
			); err != nil {
				return store.Wrap("insert transactions", fmt.Errorf("transaction %s: %w", t.ID, err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return store.Wrap("insert statement", err)
	}
	return nil
}

// ListStatements returns the owner's statements, newest import first.
func (s *Store) ListStatements(ctx context.Context, ownerID string) ([]model.Statement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, institution_name, account_id, statement_date, balance, source_file_name, imported_at
		FROM statements WHERE owner_id = $1
		ORDER BY imported_at DESC`, ownerID)
	if err != nil {
		return nil, store.Wrap("list statements", err)
	}
	defer rows.Close()

	var out []model.Statement
	for rows.Next() {
		var st model.Statement
		if err := rows.Scan(&st.ID, &st.OwnerID, &st.InstitutionName, &st.AccountID,
			&st.StatementDate, &st.Balance, &st.SourceFileName, &st.ImportedAt); err != nil {
			return nil, store.Wrap("list statements", err)
		}
		out = append(out, st)
	}
	return out, store.Wrap("list statements", rows.Err())
}

// DeleteStatement deletes the statement; its transactions go with it
// through ON DELETE CASCADE.
func (s *Store) DeleteStatement(ctx context.Context, ownerID, statementID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM statements WHERE owner_id = $1 AND id = $2`, ownerID, statementID)
	if err != nil {
		return store.Wrap("delete statement", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Wrap("delete statement", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteAllStatements deletes every statement of the owner.
func (s *Store) DeleteAllStatements(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM statements WHERE owner_id = $1`, ownerID)
	return store.Wrap("reset statements", err)
}

// txnQuery builds the ListTransactions query for filter.
func txnQuery(ownerID string, filter store.TxnFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, statement_id, owner_id, date, description, amount, polarity, reference_id, consumed, posted_ledger_entry_id
		FROM bank_transactions WHERE owner_id = $1`)
	args := []any{ownerID}

	if filter.StatementID != "" {
		args = append(args, filter.StatementID)
		fmt.Fprintf(&b, " AND statement_id = $%d", len(args))
	}
	if filter.OnlyUnconsumed {
		b.WriteString(" AND consumed = FALSE")
	}
	if len(filter.IDs) > 0 {
		args = append(args, pq.Array(filter.IDs))
		fmt.Fprintf(&b, " AND id = ANY($%d)", len(args))
	}
	b.WriteString(" ORDER BY date DESC, id")
	return b.String(), args
}

// ListTransactions returns matching transactions, newest date first.
func (s *Store) ListTransactions(ctx context.Context, ownerID string, filter store.TxnFilter) ([]model.BankTransaction, error) {
	query, args := txnQuery(ownerID, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap("list transactions", err)
	}
	defer rows.Close()

	var out []model.BankTransaction
	for rows.Next() {
		var t model.BankTransaction
		var polarity string
		if err := rows.Scan(&t.ID, &t.StatementID, &t.OwnerID, &t.Date, &t.Description,
			&t.Amount, &polarity, &t.ReferenceID, &t.Consumed, &t.PostedLedgerEntryID); err != nil {
			return nil, store.Wrap("list transactions", err)
		}
		t.Polarity, err = model.ParsePolarity(polarity)
		if err != nil {
			return nil, store.Wrap("list transactions", err)
		}
		out = append(out, t)
	}
	return out, store.Wrap("list transactions", rows.Err())
}

// MarkConsumed flips consumed only while it is still false.
func (s *Store) MarkConsumed(ctx context.Context, ownerID, txnID, ledgerEntryID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bank_transactions
		SET consumed = TRUE, posted_ledger_entry_id = $3
		WHERE owner_id = $1 AND id = $2 AND consumed = FALSE`,
		ownerID, txnID, ledgerEntryID)
	if err != nil {
		return store.Wrap("mark consumed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Wrap("mark consumed", err)
	}
	if n == 1 {
		return nil
	}

	var consumed bool
	err = s.db.QueryRowContext(ctx,
		`SELECT consumed FROM bank_transactions WHERE owner_id = $1 AND id = $2`, ownerID, txnID,
	).Scan(&consumed)
	switch {
	case err == sql.ErrNoRows:
		return store.ErrNotFound
	case err != nil:
		return store.Wrap("mark consumed", err)
	default:
		return store.ErrAlreadyConsumed
	}
}
