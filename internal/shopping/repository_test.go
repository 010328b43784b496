package shopping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodplanner/internal/database"
	"foodplanner/internal/database/dbtest"
)

func TestManualRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewManualRepository(dbtest.New(t))

	item := &ManualItem{Name: "Brot", Amount: "1", Unit: "Stück"}
	require.NoError(t, repo.Add(ctx, item))
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "Sonstiges", item.Category)

	require.NoError(t, repo.Add(ctx, &ManualItem{ID: "item-2", Name: "Milch", Amount: "1", Unit: "l", Category: "Milchprodukte"}))

	items, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Brot", items[0].Name)

	require.NoError(t, repo.Delete(ctx, "item-2"))
	assert.ErrorIs(t, repo.Delete(ctx, "item-2"), database.ErrNotFound)

	n, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBudgetRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBudgetRepository(dbtest.New(t))

	_, err := repo.Get(ctx, "2024-01-15")
	assert.ErrorIs(t, err, database.ErrNotFound)

	amount := 150.0
	b := &Budget{WeekStart: "2024-01-17", BudgetAmount: &amount}
	require.NoError(t, repo.Upsert(ctx, b))
	assert.Equal(t, "2024-01-15", b.WeekStart, "week start is normalized to Monday")
	assert.Equal(t, "EUR", b.Currency)

	updated := 99.5
	require.NoError(t, repo.Upsert(ctx, &Budget{WeekStart: "2024-01-15", BudgetAmount: &updated, Currency: "chf"}))

	got, err := repo.Get(ctx, "2024-01-21")
	require.NoError(t, err)
	assert.Equal(t, 99.5, *got.BudgetAmount)
	assert.Equal(t, "CHF", got.Currency)

	negative := -1.0
	assert.ErrorIs(t, repo.Upsert(ctx, &Budget{WeekStart: "2024-01-15", BudgetAmount: &negative}), ErrInvalid)
	assert.ErrorIs(t, repo.Upsert(ctx, &Budget{WeekStart: "15.01.2024", BudgetAmount: &amount}), ErrInvalid)
}

func TestSubstitutionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSubstitutionRepository(dbtest.New(t))

	savings := 30
	first := &Substitution{OriginalIngredient: "Parmesan", SubstituteIngredient: "Grana Padano", SavingsPercent: &savings}
	require.NoError(t, repo.Create(ctx, first))
	assert.NotZero(t, first.ID)
	assert.True(t, first.IsActive)

	second := &Substitution{OriginalIngredient: "Butter", SubstituteIngredient: "Margarine"}
	require.NoError(t, repo.Create(ctx, second))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	require.NoError(t, repo.Deactivate(ctx, first.ID))
	assert.ErrorIs(t, repo.Deactivate(ctx, 9999), database.ErrNotFound)

	active, err = repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Butter", active[0].OriginalIngredient)
	assert.Nil(t, active[0].SavingsPercent)
}
