package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
	"github.com/cleared-dev/tally/internal/store/memory"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules("u1")
	require.Len(t, rules, 21)

	var income, expense, catchAll int
	ids := make(map[string]bool)
	for _, r := range rules {
		assert.Equal(t, "u1", r.OwnerID)
		assert.True(t, r.Active)
		assert.True(t, r.AutoApply)
		assert.True(t, r.UseOriginalDescription)
		assert.NotEmpty(t, r.TargetDescription)
		assert.NoError(t, Validate(r))
		ids[r.ID] = true
		switch r.TargetCategory {
		case model.CategoryIncome:
			income++
		case model.CategoryExpense:
			expense++
		}
		if r.IsCatchAll() {
			catchAll++
		}
	}
	assert.Equal(t, 10, income)
	assert.Equal(t, 11, expense)
	assert.Equal(t, 2, catchAll)
	assert.Len(t, ids, 21, "rule IDs must be unique")
}

func TestList_SeedsOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewService(st, nil)

	first, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first, 21)

	second, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, second, 21)
	assert.Equal(t, first[0].ID, second[0].ID)

	stored, err := st.ListRules(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, stored, 21, "seed must not be written twice")

	for i := 1; i < len(first); i++ {
		assert.LessOrEqual(t, first[i-1].Name, first[i].Name)
	}
}

func TestList_EmptyAfterUserDeletedAll(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewService(st, nil)

	_, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, svc.Replace(ctx, "u1", nil))

	rules, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestListActive_FiltersInactive(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil)

	require.NoError(t, svc.Replace(ctx, "u1", []model.Rule{
		{Name: "On", MatchPattern: "PIX", TargetCategory: model.CategoryExpense, Active: true, UseOriginalDescription: true},
		{Name: "Off", MatchPattern: "TED", TargetCategory: model.CategoryExpense, Active: false, UseOriginalDescription: true},
	}))

	active, err := svc.ListActive(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "On", active[0].Name)

	all, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil)

	_, err := svc.List(ctx, "u1")
	require.NoError(t, err)

	_, err = svc.Seed(ctx, "u1")
	assert.ErrorIs(t, err, ErrRulesExist)

	require.NoError(t, svc.Replace(ctx, "u1", nil))
	rules, err := svc.Seed(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rules, 21)
}

func TestReplace_Validates(t *testing.T) {
	svc := NewService(memory.New(), nil)
	err := svc.Replace(context.Background(), "u1", []model.Rule{
		{Name: "Bad", TargetCategory: "transfer"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule 1")
}

type failingRuleStore struct {
	store.RuleStore
}

func (failingRuleStore) ListRules(context.Context, string) ([]model.Rule, error) {
	return nil, &store.PersistenceError{Op: "list rules", Err: errors.New("connection refused")}
}

func TestList_PersistenceError(t *testing.T) {
	svc := NewService(failingRuleStore{}, nil)
	_, err := svc.ListActive(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, store.IsPersistence(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    model.Rule
		wantErr bool
	}{
		{"ok", model.Rule{Name: "x", TargetCategory: model.CategoryIncome, TargetDescription: "Salário"}, false},
		{"original description", model.Rule{Name: "x", TargetCategory: model.CategoryIncome, UseOriginalDescription: true}, false},
		{"no name", model.Rule{TargetCategory: model.CategoryIncome, TargetDescription: "x"}, true},
		{"bad category", model.Rule{Name: "x", TargetCategory: "entrada", TargetDescription: "x"}, true},
		{"no description", model.Rule{Name: "x", TargetCategory: model.CategoryExpense}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rule)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
