// Package rules owns the per-owner reconciliation rule set, including the
// one-time default seed.
package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cleared-dev/tally/internal/logging"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

// ErrRulesExist is returned by Seed when the owner already has rules.
var ErrRulesExist = errors.New("rules: owner already has rules")

// Service reads and seeds rules through a store.RuleStore.
type Service struct {
	store  store.RuleStore
	logger *logging.Logger
}

// NewService creates a rules Service.
func NewService(s store.RuleStore, logger *logging.Logger) *Service {
	return &Service{store: s, logger: logging.OrNop(logger).Named("rules")}
}

// List returns every rule of the owner ordered by name. An owner that was
// never seeded and has no rules gets the default set persisted first.
func (s *Service) List(ctx context.Context, ownerID string) ([]model.Rule, error) {
	rules, err := s.store.ListRules(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(rules) > 0 {
		return rules, nil
	}

	seeded, err := s.store.IsSeeded(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if seeded {
		return nil, nil
	}
	return s.seed(ctx, ownerID)
}

// ListActive returns the owner's active rules ordered by name, seeding
// like List.
func (s *Service) ListActive(ctx context.Context, ownerID string) ([]model.Rule, error) {
	rules, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	active := make([]model.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	return active, nil
}

// Seed writes the default rules for an owner with no rules, even when the
// owner was seeded before.
func (s *Service) Seed(ctx context.Context, ownerID string) ([]model.Rule, error) {
	rules, err := s.store.ListRules(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(rules) > 0 {
		return nil, fmt.Errorf("seeding %s: %w", ownerID, ErrRulesExist)
	}
	return s.seed(ctx, ownerID)
}

func (s *Service) seed(ctx context.Context, ownerID string) ([]model.Rule, error) {
	defaults := DefaultRules(ownerID)
	if err := s.store.InsertRules(ctx, ownerID, defaults); err != nil {
		return nil, err
	}
	if err := s.store.MarkSeeded(ctx, ownerID); err != nil {
		return nil, err
	}
	s.logger.Info("seeded default rules", zap.String("owner", ownerID), zap.Int("count", len(defaults)))

	store.SortRules(defaults)
	return defaults, nil
}

// Replace swaps the owner's rules for rules, assigning fresh IDs. The owner
// counts as seeded afterwards, so an empty set stays empty.
func (s *Service) Replace(ctx context.Context, ownerID string, rules []model.Rule) error {
	replaced := make([]model.Rule, len(rules))
	for i, r := range rules {
		if err := Validate(r); err != nil {
			return fmt.Errorf("rule %d: %w", i+1, err)
		}
		r.ID = uuid.NewString()
		r.OwnerID = ownerID
		replaced[i] = r
	}
	if err := s.store.ReplaceRules(ctx, ownerID, replaced); err != nil {
		return err
	}
	if err := s.store.MarkSeeded(ctx, ownerID); err != nil {
		return err
	}
	s.logger.Info("replaced rules", zap.String("owner", ownerID), zap.Int("count", len(replaced)))
	return nil
}

// Validate checks a single rule.
func Validate(r model.Rule) error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if !r.TargetCategory.Valid() {
		return fmt.Errorf("%s: unknown category %q", r.Name, r.TargetCategory)
	}
	if !r.UseOriginalDescription && r.TargetDescription == "" {
		return fmt.Errorf("%s: description is required unless use_original_description is set", r.Name)
	}
	return nil
}
