package shopping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"foodplanner/internal/database"
	"foodplanner/internal/recipe"
	"foodplanner/internal/weekplan"
)

// ManualRepository handles persistence of manual shopping items.
type ManualRepository struct {
	db *database.DB
}

// NewManualRepository creates a new manual item repository.
func NewManualRepository(db *database.DB) *ManualRepository {
	return &ManualRepository{db: db}
}

// List returns all manual items in the order they were added.
func (r *ManualRepository) List(ctx context.Context) ([]ManualItem, error) {
	items := []ManualItem{}
	err := r.db.SQL.SelectContext(ctx, &items,
		`SELECT id, name, amount, unit, category, created_at FROM manual_shopping_items ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list manual shopping items: %w", err)
	}
	return items, nil
}

// Add stores a manual item, assigning an id when missing.
func (r *ManualRepository) Add(ctx context.Context, item *ManualItem) error {
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Category = recipe.NormalizeCategory(item.Category)
	now := database.Now()

	_, err := r.db.SQL.ExecContext(ctx, r.db.SQL.Rebind(`INSERT INTO manual_shopping_items (id, name, amount, unit, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		item.ID, item.Name, item.Amount, item.Unit, item.Category, now)
	if err != nil {
		return fmt.Errorf("failed to insert manual shopping item: %w", err)
	}
	item.CreatedAt = database.Timestamp{Time: now}
	return nil
}

// Delete removes one manual item. It returns database.ErrNotFound when missing.
func (r *ManualRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.SQL.Rebind(`DELETE FROM manual_shopping_items WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete manual shopping item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// DeleteAll removes every manual item.
func (r *ManualRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.SQL.ExecContext(ctx, `DELETE FROM manual_shopping_items`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete manual shopping items: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DefaultCurrency is used when a budget names none.
const DefaultCurrency = "EUR"

// BudgetRepository stores weekly budgets keyed by the week's Monday.
type BudgetRepository struct {
	db *database.DB
}

// NewBudgetRepository creates a new budget repository.
func NewBudgetRepository(db *database.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// ErrInvalid is wrapped by validation failures of budgets.
var ErrInvalid = errors.New("invalid shopping data")

func weekStartKey(s string) (string, error) {
	t, err := time.Parse(weekplan.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: weekStart %q must be YYYY-MM-DD", ErrInvalid, s)
	}
	return weekplan.MondayOf(t).Format(weekplan.DateLayout), nil
}

// Get returns the budget of the week containing weekStart, or database.ErrNotFound.
func (r *BudgetRepository) Get(ctx context.Context, weekStart string) (*Budget, error) {
	key, err := weekStartKey(weekStart)
	if err != nil {
		return nil, err
	}

	var b Budget
	err = r.db.SQL.GetContext(ctx, &b, r.db.SQL.Rebind(`SELECT week_start, budget_amount, currency, updated_at
		FROM shopping_budgets WHERE week_start = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shopping budget: %w", err)
	}
	return &b, nil
}

// Upsert creates or replaces the budget of the week containing b.WeekStart.
func (r *BudgetRepository) Upsert(ctx context.Context, b *Budget) error {
	key, err := weekStartKey(b.WeekStart)
	if err != nil {
		return err
	}
	if b.BudgetAmount == nil || *b.BudgetAmount < 0 {
		return fmt.Errorf("%w: budgetAmount must be zero or positive", ErrInvalid)
	}
	b.WeekStart = key
	b.Currency = strings.ToUpper(strings.TrimSpace(b.Currency))
	if b.Currency == "" {
		b.Currency = DefaultCurrency
	}
	now := database.Now()

	_, err = r.db.SQL.ExecContext(ctx, r.db.SQL.Rebind(`INSERT INTO shopping_budgets (week_start, budget_amount, currency, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (week_start) DO UPDATE SET
			budget_amount = excluded.budget_amount,
			currency = excluded.currency,
			updated_at = excluded.updated_at`),
		b.WeekStart, *b.BudgetAmount, b.Currency, now, now)
	if err != nil {
		return fmt.Errorf("failed to save shopping budget: %w", err)
	}
	b.UpdatedAt = database.Timestamp{Time: now}
	return nil
}

// SubstitutionRepository stores ingredient substitution preferences.
type SubstitutionRepository struct {
	db *database.DB
}

// NewSubstitutionRepository creates a new substitution repository.
func NewSubstitutionRepository(db *database.DB) *SubstitutionRepository {
	return &SubstitutionRepository{db: db}
}

// ListActive returns the active preferences, newest first.
func (r *SubstitutionRepository) ListActive(ctx context.Context) ([]Substitution, error) {
	subs := []Substitution{}
	err := r.db.SQL.SelectContext(ctx, &subs, `SELECT id, original_ingredient, substitute_ingredient, reason,
		savings_percent, is_active, created_at
		FROM substitution_preferences WHERE is_active = TRUE ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list substitutions: %w", err)
	}
	return subs, nil
}

// Create stores a new active preference and sets its id.
func (r *SubstitutionRepository) Create(ctx context.Context, s *Substitution) error {
	s.OriginalIngredient = strings.TrimSpace(s.OriginalIngredient)
	s.SubstituteIngredient = strings.TrimSpace(s.SubstituteIngredient)
	now := database.Now()

	err := r.db.SQL.GetContext(ctx, &s.ID, r.db.SQL.Rebind(`INSERT INTO substitution_preferences
		(original_ingredient, substitute_ingredient, reason, savings_percent, is_active, created_at)
		VALUES (?, ?, ?, ?, TRUE, ?) RETURNING id`),
		s.OriginalIngredient, s.SubstituteIngredient, s.Reason, s.SavingsPercent, now)
	if err != nil {
		return fmt.Errorf("failed to insert substitution: %w", err)
	}
	s.IsActive = true
	s.CreatedAt = database.Timestamp{Time: now}
	return nil
}

// Deactivate marks a preference inactive. It returns database.ErrNotFound when missing.
func (r *SubstitutionRepository) Deactivate(ctx context.Context, id int64) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.SQL.Rebind(`UPDATE substitution_preferences SET is_active = FALSE WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate substitution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}
	return nil
}
