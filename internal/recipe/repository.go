package recipe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"foodplanner/internal/database"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// ListOptions controls paging and filtering of List.
type ListOptions struct {
	Limit  int
	Offset int
	// Query filters by a case-insensitive substring of name, category or tag.
	Query string
}

// Repository is a database-backed repository for recipes.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

type ingredientRow struct {
	RecipeID string `db:"recipe_id"`
	Ingredient
}

type tagRow struct {
	RecipeID string `db:"recipe_id"`
	Tag      string `db:"tag"`
}

const selectRecipe = `SELECT id, name, category, servings, instructions, created_at, updated_at FROM recipes`

// List returns recipes newest first.
func (r *Repository) List(ctx context.Context, opts ListOptions) ([]Recipe, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(opts.Offset, 0)

	query := selectRecipe
	var args []any
	if q := strings.TrimSpace(opts.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query += ` WHERE LOWER(name) LIKE ? OR LOWER(category) LIKE ?
			OR EXISTS (SELECT 1 FROM recipe_tags t WHERE t.recipe_id = recipes.id AND LOWER(t.tag) LIKE ?)`
		args = append(args, like, like, like)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	recipes := []Recipe{}
	if err := r.db.SQL.SelectContext(ctx, &recipes, r.db.SQL.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	if err := r.attachChildren(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// Get retrieves a recipe by its ID. It returns database.ErrNotFound when missing.
func (r *Repository) Get(ctx context.Context, id string) (*Recipe, error) {
	var rec Recipe
	err := r.db.SQL.GetContext(ctx, &rec, r.db.SQL.Rebind(selectRecipe+` WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe by ID: %w", err)
	}

	recipes := []Recipe{rec}
	if err := r.attachChildren(ctx, recipes); err != nil {
		return nil, err
	}
	return &recipes[0], nil
}

// GetByIDs returns the recipes with the given ids keyed by id. Unknown ids are absent.
func (r *Repository) GetByIDs(ctx context.Context, ids []string) (map[string]Recipe, error) {
	out := make(map[string]Recipe, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(selectRecipe+` WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build recipe query: %w", err)
	}
	var recipes []Recipe
	if err := r.db.SQL.SelectContext(ctx, &recipes, r.db.SQL.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get recipes by IDs: %w", err)
	}
	if err := r.attachChildren(ctx, recipes); err != nil {
		return nil, err
	}
	for _, rec := range recipes {
		out[rec.ID] = rec
	}
	return out, nil
}

// Count returns the number of recipes in the database.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.SQL.GetContext(ctx, &count, `SELECT COUNT(*) FROM recipes`); err != nil {
		return 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	return count, nil
}

// Create normalizes and inserts a recipe with its ingredients and tags.
func (r *Repository) Create(ctx context.Context, rec *Recipe) error {
	rec.Normalize()
	now := database.Now()
	rec.CreatedAt = database.Timestamp{Time: now}
	rec.UpdatedAt = database.Timestamp{Time: now}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO recipes (id, name, category, servings, instructions, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			rec.ID, rec.Name, rec.Category, rec.Servings, rec.Instructions, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert recipe: %w", err)
		}
		return insertChildren(ctx, tx, rec)
	})
}

// Update replaces the stored recipe fields, ingredients and tags in one transaction.
// It returns database.ErrNotFound when the recipe does not exist.
func (r *Repository) Update(ctx context.Context, rec *Recipe) error {
	rec.Normalize()
	now := database.Now()

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE recipes SET name = ?, category = ?, servings = ?, instructions = ?, updated_at = ?
			WHERE id = ?`),
			rec.Name, rec.Category, rec.Servings, rec.Instructions, now, rec.ID)
		if err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return database.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM ingredients WHERE recipe_id = ?`), rec.ID); err != nil {
			return fmt.Errorf("failed to delete ingredients: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM recipe_tags WHERE recipe_id = ?`), rec.ID); err != nil {
			return fmt.Errorf("failed to delete tags: %w", err)
		}
		if err := insertChildren(ctx, tx, rec); err != nil {
			return err
		}

		var created database.Timestamp
		if err := tx.GetContext(ctx, &created, tx.Rebind(`SELECT created_at FROM recipes WHERE id = ?`), rec.ID); err != nil {
			return fmt.Errorf("failed to read recipe: %w", err)
		}
		rec.CreatedAt = created
		rec.UpdatedAt = database.Timestamp{Time: now}
		return nil
	})
}

// Delete removes a recipe. Meals and cooking history keep their rows with a
// null recipe reference. It returns database.ErrNotFound when missing.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.SQL.Rebind(`DELETE FROM recipes WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Duplicate stores a copy of the recipe under a new id.
func (r *Repository) Duplicate(ctx context.Context, id string) (*Recipe, error) {
	src, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dup := src.Copy()
	if err := r.Create(ctx, &dup); err != nil {
		return nil, err
	}
	return &dup, nil
}

func insertChildren(ctx context.Context, tx *sqlx.Tx, rec *Recipe) error {
	insertIngredient := tx.Rebind(`INSERT INTO ingredients (recipe_id, position, name, amount, unit, category) VALUES (?, ?, ?, ?, ?, ?)`)
	for i, ing := range rec.Ingredients {
		if _, err := tx.ExecContext(ctx, insertIngredient, rec.ID, i, ing.Name, string(ing.Amount), ing.Unit, ing.Category); err != nil {
			return fmt.Errorf("failed to insert ingredient: %w", err)
		}
	}

	insertTag := tx.Rebind(`INSERT INTO recipe_tags (recipe_id, tag) VALUES (?, ?)`)
	for _, tag := range rec.Tags {
		if _, err := tx.ExecContext(ctx, insertTag, rec.ID, tag); err != nil {
			return fmt.Errorf("failed to insert tag: %w", err)
		}
	}
	return nil
}

// attachChildren loads ingredients and tags for the given recipes in two queries.
func (r *Repository) attachChildren(ctx context.Context, recipes []Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	ids := make([]string, len(recipes))
	index := make(map[string]int, len(recipes))
	for i := range recipes {
		ids[i] = recipes[i].ID
		index[recipes[i].ID] = i
		recipes[i].Ingredients = []Ingredient{}
		recipes[i].Tags = []string{}
	}

	query, args, err := sqlx.In(`SELECT recipe_id, name, amount, unit, category FROM ingredients
		WHERE recipe_id IN (?) ORDER BY recipe_id, position, id`, ids)
	if err != nil {
		return fmt.Errorf("failed to build ingredient query: %w", err)
	}
	var ingredients []ingredientRow
	if err := r.db.SQL.SelectContext(ctx, &ingredients, r.db.SQL.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load ingredients: %w", err)
	}
	for _, row := range ingredients {
		i := index[row.RecipeID]
		recipes[i].Ingredients = append(recipes[i].Ingredients, row.Ingredient)
	}

	query, args, err = sqlx.In(`SELECT recipe_id, tag FROM recipe_tags WHERE recipe_id IN (?) ORDER BY recipe_id, tag`, ids)
	if err != nil {
		return fmt.Errorf("failed to build tag query: %w", err)
	}
	var tags []tagRow
	if err := r.db.SQL.SelectContext(ctx, &tags, r.db.SQL.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	for _, row := range tags {
		i := index[row.RecipeID]
		recipes[i].Tags = append(recipes[i].Tags, row.Tag)
	}
	return nil
}
