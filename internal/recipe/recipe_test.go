package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodplanner/internal/database"
	"foodplanner/internal/database/dbtest"
)

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, CategoryDairy, NormalizeCategory("Milchprodukte"))
	assert.Equal(t, CategoryOther, NormalizeCategory(""))
	assert.Equal(t, CategoryOther, NormalizeCategory("Gewürze"))
}

func TestAmountUnmarshal(t *testing.T) {
	var ing Ingredient
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Mehl","amount":200,"unit":"g"}`), &ing))
	assert.Equal(t, Amount("200"), ing.Amount)

	require.NoError(t, json.Unmarshal([]byte(`{"name":"Salz","amount":"etwas"}`), &ing))
	assert.Equal(t, Amount("etwas"), ing.Amount)

	require.NoError(t, json.Unmarshal([]byte(`{"name":"Salz","amount":null}`), &ing))
	assert.Equal(t, Amount(""), ing.Amount)

	assert.Error(t, json.Unmarshal([]byte(`{"amount":true}`), &ing))
}

func TestNormalize(t *testing.T) {
	rec := Recipe{
		Name: "  Pasta ",
		Ingredients: []Ingredient{
			{Name: "Spaghetti", Amount: "400", Unit: "g", Category: "Trockenwaren"},
			{Name: " "},
			{Name: "Basilikum", Category: "Kräuter"},
		},
		Tags: []string{"schnell", "", "schnell", "vegetarisch"},
	}
	rec.Normalize()

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Pasta", rec.Name)
	require.Len(t, rec.Ingredients, 2)
	assert.Equal(t, CategoryOther, rec.Ingredients[1].Category)
	assert.Equal(t, []string{"schnell", "vegetarisch"}, rec.Tags)
}

func newRecipe(id, name string) *Recipe {
	return &Recipe{
		ID:           id,
		Name:         name,
		Category:     "Hauptgericht",
		Servings:     4,
		Instructions: "Kochen.",
		Ingredients: []Ingredient{
			{Name: "Spaghetti", Amount: "400", Unit: "g", Category: CategoryPantry},
			{Name: "Parmesan", Amount: "50", Unit: "g", Category: CategoryDairy},
		},
		Tags: []string{"italienisch"},
	}
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t))

	t.Run("CreateAndGet", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newRecipe("r1", "Spaghetti Carbonara")))

		got, err := repo.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "Spaghetti Carbonara", got.Name)
		assert.Equal(t, 4, got.Servings)
		require.Len(t, got.Ingredients, 2)
		assert.Equal(t, "Spaghetti", got.Ingredients[0].Name)
		assert.Equal(t, Amount("400"), got.Ingredients[0].Amount)
		assert.Equal(t, []string{"italienisch"}, got.Tags)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing")
		assert.True(t, errors.Is(err, database.ErrNotFound))
	})

	t.Run("Update", func(t *testing.T) {
		rec := newRecipe("r1", "Carbonara")
		rec.Ingredients = []Ingredient{{Name: "Eier", Amount: "3", Unit: "Stück", Category: CategoryDairy}}
		rec.Tags = nil
		require.NoError(t, repo.Update(ctx, rec))

		got, err := repo.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "Carbonara", got.Name)
		require.Len(t, got.Ingredients, 1)
		assert.Equal(t, "Eier", got.Ingredients[0].Name)
		assert.Empty(t, got.Tags)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		err := repo.Update(ctx, newRecipe("missing", "Nichts"))
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("ListAndFilter", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newRecipe("r2", "Linsensuppe")))

		all, err := repo.List(ctx, ListOptions{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		filtered, err := repo.List(ctx, ListOptions{Query: "suppe"})
		require.NoError(t, err)
		require.Len(t, filtered, 1)
		assert.Equal(t, "r2", filtered[0].ID)

		byTag, err := repo.List(ctx, ListOptions{Query: "ITALIEN"})
		require.NoError(t, err)
		require.Len(t, byTag, 1)
		assert.Equal(t, "r2", byTag[0].ID)

		page, err := repo.List(ctx, ListOptions{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})

	t.Run("GetByIDs", func(t *testing.T) {
		got, err := repo.GetByIDs(ctx, []string{"r1", "r2", "missing"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Contains(t, got, "r2")
	})

	t.Run("Duplicate", func(t *testing.T) {
		dup, err := repo.Duplicate(ctx, "r2")
		require.NoError(t, err)
		assert.NotEqual(t, "r2", dup.ID)
		assert.Equal(t, "Linsensuppe (Kopie)", dup.Name)

		got, err := repo.Get(ctx, dup.ID)
		require.NoError(t, err)
		assert.Len(t, got.Ingredients, 2)

		_, err = repo.Duplicate(ctx, "missing")
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "r2"))
		assert.ErrorIs(t, repo.Delete(ctx, "r2"), database.ErrNotFound)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}
