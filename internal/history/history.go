// Package history records which recipes were cooked and when.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"foodplanner/internal/database"
)

const (
	DefaultLimit      = 50
	MaxLimit          = 500
	DefaultRecentDays = 30
)

// ErrMissingRecipe is returned when an entry names no recipe.
var ErrMissingRecipe = errors.New("recipeId is required")

// Entry is one cooking event.
type Entry struct {
	ID             int64              `json:"id" db:"id"`
	RecipeID       *string            `json:"recipeId" db:"recipe_id"`
	RecipeName     string             `json:"recipeName" db:"recipe_name"`
	RecipeCategory string             `json:"recipeCategory" db:"recipe_category"`
	CookedAt       database.Timestamp `json:"cookedAt" db:"cooked_at"`
	Servings       *int               `json:"servings" db:"servings"`
	Notes          string             `json:"notes" db:"notes"`
}

// Page is a slice of the history with paging metadata.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Stat summarizes how often a recipe was cooked.
type Stat struct {
	RecipeID     string             `json:"recipeId" db:"recipe_id"`
	RecipeName   string             `json:"recipeName" db:"recipe_name"`
	TimesCooked  int                `json:"timesCooked" db:"times_cooked"`
	LastCookedAt database.Timestamp `json:"lastCookedAt" db:"last_cooked_at"`
}

// Forgotten is a recipe that was not cooked recently. LastCookedAt is null
// for recipes that were never cooked.
type Forgotten struct {
	ID           string             `json:"id" db:"id"`
	Name         string             `json:"name" db:"name"`
	Category     string             `json:"category" db:"category"`
	TimesCooked  int                `json:"timesCooked" db:"times_cooked"`
	LastCookedAt database.Timestamp `json:"lastCookedAt" db:"last_cooked_at"`
}

// Repository persists cooking history.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

const selectEntry = `SELECT id, recipe_id, recipe_name, recipe_category, cooked_at, servings, notes FROM cooking_history`

// List returns entries newest first together with the total count.
func (r *Repository) List(ctx context.Context, limit, offset int) (*Page, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	offset = max(offset, 0)

	page := &Page{Entries: []Entry{}, Limit: limit, Offset: offset}
	err := r.db.SQL.SelectContext(ctx, &page.Entries,
		r.db.SQL.Rebind(selectEntry+` ORDER BY cooked_at DESC, id DESC LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list cooking history: %w", err)
	}
	if err := r.db.SQL.GetContext(ctx, &page.Total, `SELECT COUNT(*) FROM cooking_history`); err != nil {
		return nil, fmt.Errorf("failed to count cooking history: %w", err)
	}
	return page, nil
}

// MarkCooked records that a recipe was cooked now, copying its current name
// and category. It returns database.ErrNotFound for unknown recipes.
func (r *Repository) MarkCooked(ctx context.Context, recipeID string, servings *int, notes string) (*Entry, error) {
	recipeID = strings.TrimSpace(recipeID)
	if recipeID == "" {
		return nil, ErrMissingRecipe
	}

	var rec struct {
		Name     string `db:"name"`
		Category string `db:"category"`
	}
	err := r.db.SQL.GetContext(ctx, &rec, r.db.SQL.Rebind(`SELECT name, category FROM recipes WHERE id = ?`), recipeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up recipe: %w", err)
	}

	now := database.Now()
	entry := &Entry{
		RecipeID:       &recipeID,
		RecipeName:     rec.Name,
		RecipeCategory: rec.Category,
		CookedAt:       database.Timestamp{Time: now},
		Servings:       servings,
		Notes:          notes,
	}
	err = r.db.SQL.GetContext(ctx, &entry.ID, r.db.SQL.Rebind(`INSERT INTO cooking_history
		(recipe_id, recipe_name, recipe_category, cooked_at, servings, notes)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		recipeID, rec.Name, rec.Category, now, servings, notes)
	if err != nil {
		return nil, fmt.Errorf("failed to insert cooking history: %w", err)
	}
	return entry, nil
}

// Stats returns per-recipe cook counts, most cooked first.
func (r *Repository) Stats(ctx context.Context) ([]Stat, error) {
	stats := []Stat{}
	err := r.db.SQL.SelectContext(ctx, &stats, `SELECT recipe_id, MAX(recipe_name) AS recipe_name,
		COUNT(*) AS times_cooked, MAX(cooked_at) AS last_cooked_at
		FROM cooking_history WHERE recipe_id IS NOT NULL
		GROUP BY recipe_id ORDER BY times_cooked DESC, last_cooked_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load cooking stats: %w", err)
	}
	return stats, nil
}

// ForRecipe returns the entries of one recipe, newest first.
func (r *Repository) ForRecipe(ctx context.Context, recipeID string) ([]Entry, error) {
	entries := []Entry{}
	err := r.db.SQL.SelectContext(ctx, &entries,
		r.db.SQL.Rebind(selectEntry+` WHERE recipe_id = ? ORDER BY cooked_at DESC, id DESC`), recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe history: %w", err)
	}
	return entries, nil
}

// NotCookedSince returns recipes that were never cooked or last cooked before
// cutoff. Never cooked recipes come first, then the longest forgotten.
func (r *Repository) NotCookedSince(ctx context.Context, cutoff time.Time) ([]Forgotten, error) {
	var all []Forgotten
	err := r.db.SQL.SelectContext(ctx, &all, `SELECT r.id, r.name, r.category,
		COUNT(h.id) AS times_cooked, MAX(h.cooked_at) AS last_cooked_at
		FROM recipes r LEFT JOIN cooking_history h ON h.recipe_id = r.id
		GROUP BY r.id, r.name, r.category`)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipes not cooked recently: %w", err)
	}

	// MAX(cooked_at) comes back as text on SQLite, so the cutoff is applied here.
	out := []Forgotten{}
	for _, f := range all {
		if f.LastCookedAt.IsZero() || f.LastCookedAt.Before(cutoff) {
			out = append(out, f)
		}
	}
	sortForgotten(out)
	return out, nil
}

func sortForgotten(list []Forgotten) {
	slices.SortStableFunc(list, func(a, b Forgotten) int {
		switch {
		case a.LastCookedAt.IsZero() && !b.LastCookedAt.IsZero():
			return -1
		case !a.LastCookedAt.IsZero() && b.LastCookedAt.IsZero():
			return 1
		}
		if c := a.LastCookedAt.Compare(b.LastCookedAt.Time); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}

// Delete removes one entry. It returns database.ErrNotFound when missing.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.SQL.Rebind(`DELETE FROM cooking_history WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete cooking history entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}
	return nil
}
