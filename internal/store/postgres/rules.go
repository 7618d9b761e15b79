package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

// ListRules returns the owner's rules ordered by name.
func (s *Store) ListRules(ctx context.Context, ownerID string) ([]model.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, match_pattern, target_description, target_category, auto_apply, active, use_original_description
		FROM reconciliation_rules WHERE owner_id = $1
		ORDER BY name, id`, ownerID)
	if err != nil {
		return nil, store.Wrap("list rules", err)
	}
	defer rows.Close()

	var out []model.Rule
	for rows.Next() {
		var r model.Rule
		var category string
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Name, &r.MatchPattern, &r.TargetDescription,
			&category, &r.AutoApply, &r.Active, &r.UseOriginalDescription); err != nil {
			return nil, store.Wrap("list rules", err)
		}
		if r.TargetCategory, err = model.ParseCategory(category); err != nil {
			return nil, store.Wrap("list rules", err)
		}
		out = append(out, r)
	}
	return out, store.Wrap("list rules", rows.Err())
}

// InsertRules inserts rules for the owner in one transaction.
func (s *Store) InsertRules(ctx context.Context, ownerID string, rules []model.Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap("insert rules", err)
	}
	defer rollback(tx)

	if err := insertRules(ctx, tx, ownerID, rules); err != nil {
		return store.Wrap("insert rules", err)
	}
	return store.Wrap("insert rules", tx.Commit())
}

// ReplaceRules deletes the owner's rules and inserts rules in one
// transaction.
func (s *Store) ReplaceRules(ctx context.Context, ownerID string, rules []model.Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap("replace rules", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, `DELETE FROM reconciliation_rules WHERE owner_id = $1`, ownerID); err != nil {
		return store.Wrap("replace rules", err)
	}
	if err := insertRules(ctx, tx, ownerID, rules); err != nil {
		return store.Wrap("replace rules", err)
	}
	return store.Wrap("replace rules", tx.Commit())
}

func insertRules(ctx context.Context, tx *sql.Tx, ownerID string, rules []model.Rule) error {
	if len(rules) == 0 {
		return nil
	}
	ins, err := tx.PrepareContext(ctx, `
		INSERT INTO reconciliation_rules (id, owner_id, name, match_pattern, target_description, target_category, auto_apply, active, use_original_description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return err
	}
	defer ins.Close()

	for _, r := range rules {
		if _, err := ins.ExecContext(ctx, r.ID, ownerID, r.Name, r.MatchPattern, r.TargetDescription,
			string(r.TargetCategory), r.AutoApply, r.Active, r.UseOriginalDescription); err != nil {
			return err
		}
	}
	return nil
}

// MarkSeeded records the owner in rule_seeds.
func (s *Store) MarkSeeded(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_seeds (owner_id, seeded_at) VALUES ($1, $2)
		ON CONFLICT (owner_id) DO NOTHING`, ownerID, time.Now().UTC())
	return store.Wrap("mark seeded", err)
}

// IsSeeded reports whether the owner has a rule_seeds row.
func (s *Store) IsSeeded(ctx context.Context, ownerID string) (bool, error) {
	var seeded bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM rule_seeds WHERE owner_id = $1)`, ownerID,
	).Scan(&seeded)
	if err != nil {
		return false, store.Wrap("check seeded", err)
	}
	return seeded, nil
}
