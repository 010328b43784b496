package recipe

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"foodplanner/internal/database"
)

// Ingredient categories used for shopping-list grouping.
const (
	CategoryProduce = "Obst & Gemüse"
	CategoryDairy   = "Milchprodukte"
	CategoryMeat    = "Fleisch & Fisch"
	CategoryPantry  = "Trockenwaren"
	CategoryFrozen  = "Tiefkühl"
	CategoryOther   = "Sonstiges"
)

// Categories lists the fixed ingredient categories in display order.
var Categories = []string{
	CategoryProduce,
	CategoryDairy,
	CategoryMeat,
	CategoryPantry,
	CategoryFrozen,
	CategoryOther,
}

// IsCategory reports whether c is one of the fixed ingredient categories.
func IsCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// NormalizeCategory maps empty or unknown categories to CategoryOther.
func NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if IsCategory(c) {
		return c
	}
	return CategoryOther
}

// Amount is a free-text ingredient quantity. Model output sometimes carries
// bare JSON numbers, which are kept in their literal form.
type Amount string

// UnmarshalJSON accepts strings, numbers and null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null":
		*a = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*a = Amount(str)
	default:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return fmt.Errorf("invalid amount %s", s)
		}
		*a = Amount(s)
	}
	return nil
}

// Trim returns the amount without surrounding whitespace.
func (a Amount) Trim() Amount {
	return Amount(strings.TrimSpace(string(a)))
}

// Ingredient is a single line of a recipe.
type Ingredient struct {
	Name     string `json:"name" db:"name"`
	Amount   Amount `json:"amount" db:"amount"`
	Unit     string `json:"unit" db:"unit"`
	Category string `json:"category" db:"category"`
}

// Recipe is a stored recipe with its ordered ingredients and tags.
type Recipe struct {
	ID           string             `json:"id" db:"id"`
	Name         string             `json:"name" db:"name" validate:"required"`
	Category     string             `json:"category" db:"category"`
	Servings     int                `json:"servings" db:"servings"`
	Instructions string             `json:"instructions" db:"instructions"`
	Ingredients  []Ingredient       `json:"ingredients" db:"-"`
	Tags         []string           `json:"tags" db:"-"`
	CreatedAt    database.Timestamp `json:"createdAt" db:"created_at"`
	UpdatedAt    database.Timestamp `json:"updatedAt" db:"updated_at"`
}

// Normalize trims the recipe, assigns an id when missing, maps ingredient
// categories onto the fixed set and removes empty or repeated tags.
func (r *Recipe) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Category = strings.TrimSpace(r.Category)
	if r.Servings < 0 {
		r.Servings = 0
	}

	ingredients := make([]Ingredient, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		ing.Name = strings.TrimSpace(ing.Name)
		if ing.Name == "" {
			continue
		}
		ing.Amount = ing.Amount.Trim()
		ing.Unit = strings.TrimSpace(ing.Unit)
		ing.Category = NormalizeCategory(ing.Category)
		ingredients = append(ingredients, ing)
	}
	r.Ingredients = ingredients

	seen := make(map[string]bool, len(r.Tags))
	tags := make([]string, 0, len(r.Tags))
	for _, tag := range r.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	r.Tags = tags
}

// Copy returns a duplicate of the recipe under a new id, named "<name> (Kopie)".
func (r Recipe) Copy() Recipe {
	dup := r
	dup.ID = uuid.NewString()
	dup.Name = r.Name + " (Kopie)"
	dup.Ingredients = append([]Ingredient(nil), r.Ingredients...)
	dup.Tags = append([]string(nil), r.Tags...)
	dup.CreatedAt = database.Timestamp{}
	dup.UpdatedAt = database.Timestamp{}
	return dup
}
