package shopping

import (
	"foodplanner/internal/database"
	"foodplanner/internal/recipe"
)

// Item is one line of the derived shopping list.
type Item struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Amount      string   `json:"amount"`
	Unit        string   `json:"unit"`
	Category    string   `json:"category"`
	Checked     bool     `json:"checked"`
	RecipeNames []string `json:"recipeNames"`
	IsManual    bool     `json:"isManual"`
}

// List is the shopping list derived for one week.
type List struct {
	WeekID    string `json:"weekId"`
	StartDate string `json:"startDate"`
	Items     []Item `json:"items"`
}

// ManualItem is an entry added by hand, not derived from a recipe.
type ManualItem struct {
	ID        string             `json:"id" db:"id"`
	Name      string             `json:"name" db:"name" validate:"required"`
	Amount    recipe.Amount      `json:"amount" db:"amount" validate:"required"`
	Unit      string             `json:"unit" db:"unit" validate:"required"`
	Category  string             `json:"category" db:"category"`
	CreatedAt database.Timestamp `json:"createdAt" db:"created_at"`
}

// Budget is the spending limit for one week.
type Budget struct {
	WeekStart    string             `json:"weekStart" db:"week_start" validate:"required"`
	BudgetAmount *float64           `json:"budgetAmount" db:"budget_amount" validate:"required,gte=0"`
	Currency     string             `json:"currency" db:"currency"`
	UpdatedAt    database.Timestamp `json:"updatedAt" db:"updated_at"`
}

// Substitution is a saved preference to replace one ingredient with another.
type Substitution struct {
	ID                   int64              `json:"id" db:"id"`
	OriginalIngredient   string             `json:"originalIngredient" db:"original_ingredient" validate:"required"`
	SubstituteIngredient string             `json:"substituteIngredient" db:"substitute_ingredient" validate:"required"`
	Reason               string             `json:"reason" db:"reason"`
	SavingsPercent       *int               `json:"savingsPercent" db:"savings_percent" validate:"omitempty,gte=0,lte=100"`
	IsActive             bool               `json:"isActive" db:"is_active"`
	CreatedAt            database.Timestamp `json:"createdAt" db:"created_at"`
}
