// Package shopping derives the weekly shopping list and stores the shopping
// extras: manual items, budgets and substitution preferences.
package shopping

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"foodplanner/internal/database"
	"foodplanner/internal/recipe"
	"foodplanner/internal/weekplan"
)

// Aggregate merges the ingredients of every planned meal with the manual
// items. Ingredients sharing a lowercase name and unit are merged: amounts are
// summed when both start with a number and joined with " + " otherwise.
// Manual items are never merged. Meals without a stored recipe are skipped.
// The result is sorted by name using German collation.
func Aggregate(plan *weekplan.WeekPlan, recipes map[string]recipe.Recipe, manual []ManualItem) []Item {
	byKey := map[string]*Item{}
	var order []string

	if plan != nil {
		for _, day := range plan.Days {
			for _, mt := range weekplan.MealTypes {
				meal := day.Meals[mt]
				if meal == nil || meal.RecipeID == nil {
					continue
				}
				rec, ok := recipes[*meal.RecipeID]
				if !ok {
					continue
				}
				for _, ing := range rec.Ingredients {
					key := strings.ToLower(ing.Name) + "_" + strings.ToLower(ing.Unit)
					existing, ok := byKey[key]
					if !ok {
						byKey[key] = &Item{
							Name:        ing.Name,
							Amount:      string(ing.Amount),
							Unit:        ing.Unit,
							Category:    recipe.NormalizeCategory(ing.Category),
							RecipeNames: []string{rec.Name},
						}
						order = append(order, key)
						continue
					}
					existing.Amount = MergeAmounts(existing.Amount, string(ing.Amount))
					if !contains(existing.RecipeNames, rec.Name) {
						existing.RecipeNames = append(existing.RecipeNames, rec.Name)
					}
				}
			}
		}
	}

	for _, m := range manual {
		key := "manual_" + m.ID
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = &Item{
			ID:          m.ID,
			Name:        m.Name,
			Amount:      string(m.Amount),
			Unit:        m.Unit,
			Category:    recipe.NormalizeCategory(m.Category),
			RecipeNames: []string{},
			IsManual:    true,
		}
	}

	items := make([]Item, 0, len(order))
	for _, key := range order {
		items = append(items, *byKey[key])
	}

	col := collate.New(language.German)
	sort.SliceStable(items, func(i, j int) bool {
		return col.CompareString(items[i].Name, items[j].Name) < 0
	})
	return items
}

// MergeAmounts adds two amounts when both parse as leading numbers and
// otherwise joins them with " + ".
func MergeAmounts(existing, added string) string {
	a, okA := ParseLeadingFloat(existing)
	b, okB := ParseLeadingFloat(added)
	if okA && okB {
		return FormatNumber(a + b)
	}
	return existing + " + " + added
}

// FormatNumber renders f the way JavaScript's Number#toString does: plain
// decimals between 1e-6 and 1e21, exponent notation outside that range.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + sign + digits
}

// ParseLeadingFloat parses the longest numeric prefix of s after leading
// whitespace, so "200g" yields 200 and "1/2" yields 1. A leading "Infinity"
// yields ±Inf. It reports false when s does not start with a number.
func ParseLeadingFloat(s string) (float64, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		if s[0] == '-' {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	}
	digits := false
	for i < len(s) && isDigit(s[i]) {
		i++
		digits = true
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits = true
		}
	}
	if !digits {
		return 0, false
	}

	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			end = k
		}
	}

	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		// Out of range exponents still yield ±Inf with a range error.
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// PlanSource loads week plans by date.
type PlanSource interface {
	ByDate(ctx context.Context, date time.Time) (*weekplan.WeekPlan, error)
}

// RecipeSource loads recipes by id.
type RecipeSource interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]recipe.Recipe, error)
}

// ManualSource lists manual shopping items.
type ManualSource interface {
	List(ctx context.Context) ([]ManualItem, error)
}

// Service derives shopping lists from the stored plans, recipes and manual items.
type Service struct {
	plans   PlanSource
	recipes RecipeSource
	manual  ManualSource
}

// NewService creates a new Service.
func NewService(plans PlanSource, recipes RecipeSource, manual ManualSource) *Service {
	return &Service{plans: plans, recipes: recipes, manual: manual}
}

// List builds the shopping list for the week containing date. A week without
// a plan yields only the manual items.
func (s *Service) List(ctx context.Context, date time.Time) (*List, error) {
	monday := weekplan.MondayOf(date)
	list := &List{
		WeekID:    weekplan.WeekID(monday),
		StartDate: monday.Format(weekplan.DateLayout),
	}

	plan, err := s.plans.ByDate(ctx, date)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	recipes := map[string]recipe.Recipe{}
	if plan != nil {
		list.WeekID = plan.ID
		if recipes, err = s.recipes.GetByIDs(ctx, plan.RecipeIDs()); err != nil {
			return nil, err
		}
	}

	manual, err := s.manual.List(ctx)
	if err != nil {
		return nil, err
	}

	list.Items = Aggregate(plan, recipes, manual)
	return list, nil
}
