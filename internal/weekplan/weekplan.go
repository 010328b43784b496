// Package weekplan stores the weekly meal calendar and reusable week templates.
package weekplan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"foodplanner/internal/database"
)

// DateLayout is the calendar date format used for plan and day dates.
const DateLayout = "2006-01-02"

// DaysPerWeek is the fixed number of days in every plan.
const DaysPerWeek = 7

// Meal types.
const (
	Breakfast = "breakfast"
	Lunch     = "lunch"
	Dinner    = "dinner"
)

// MealTypes lists the meal slots of a day.
var MealTypes = []string{Breakfast, Lunch, Dinner}

// DayNames are the German weekday names starting on Monday.
var DayNames = [DaysPerWeek]string{"Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag", "Sonntag"}

// ErrInvalid is wrapped by every validation failure of a plan or template.
var ErrInvalid = errors.New("invalid week plan")

// Meal references a recipe in a day slot. RecipeID becomes nil once the
// recipe is deleted; RecipeName keeps the last known name.
type Meal struct {
	ID         string  `json:"id"`
	RecipeID   *string `json:"recipeId"`
	RecipeName string  `json:"recipeName"`
	MealType   string  `json:"mealType"`
}

// Day is one calendar day of a plan.
type Day struct {
	Date    string           `json:"date"`
	DayName string           `json:"dayName"`
	Meals   map[string]*Meal `json:"meals"`
}

// WeekPlan is a Monday-to-Sunday meal calendar.
type WeekPlan struct {
	ID        string             `json:"id"`
	StartDate string             `json:"startDate"`
	Days      []Day              `json:"days"`
	CreatedAt database.Timestamp `json:"createdAt"`
	UpdatedAt database.Timestamp `json:"updatedAt"`
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalid, s)
	}
	return t, nil
}

// MondayOf returns the Monday of the week containing t, at midnight UTC.
func MondayOf(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// WeekID returns the ISO-8601 week id (e.g. 2024-W03) of the week containing t.
func WeekID(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// New returns an empty plan for the week containing date.
func New(date time.Time) WeekPlan {
	monday := MondayOf(date)
	plan := WeekPlan{
		ID:        WeekID(monday),
		StartDate: monday.Format(DateLayout),
		Days:      make([]Day, DaysPerWeek),
	}
	for i := range plan.Days {
		plan.Days[i] = Day{
			Date:    monday.AddDate(0, 0, i).Format(DateLayout),
			DayName: DayNames[i],
			Meals:   map[string]*Meal{},
		}
	}
	return plan
}

func isMealType(s string) bool {
	for _, mt := range MealTypes {
		if s == mt {
			return true
		}
	}
	return false
}

// Normalize validates the plan and fills in derived fields: the start date
// falls back to the first day, the id to the ISO week of the start date, the
// meal type to its slot key and missing meal ids to fresh UUIDs. Empty slots
// are dropped. The start date must be a Monday, the days must follow it one by
// one and a given id must be the ISO week of the start date.
func (p *WeekPlan) Normalize() error {
	if len(p.Days) != DaysPerWeek {
		return fmt.Errorf("%w: a week plan needs exactly %d days, got %d", ErrInvalid, DaysPerWeek, len(p.Days))
	}

	if strings.TrimSpace(p.StartDate) == "" {
		p.StartDate = p.Days[0].Date
	}
	start, err := ParseDate(p.StartDate)
	if err != nil {
		return err
	}
	if start.Weekday() != time.Monday {
		return fmt.Errorf("%w: startDate %s is a %s, not a Monday", ErrInvalid, p.StartDate, start.Weekday())
	}
	p.StartDate = start.Format(DateLayout)

	weekID := WeekID(start)
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = weekID
	} else if p.ID != weekID {
		return fmt.Errorf("%w: id %q does not match the week of %s (%s)", ErrInvalid, p.ID, p.StartDate, weekID)
	}

	for i := range p.Days {
		day := &p.Days[i]
		want := start.AddDate(0, 0, i).Format(DateLayout)
		if strings.TrimSpace(day.Date) == "" {
			day.Date = want
		} else {
			d, err := ParseDate(day.Date)
			if err != nil {
				return err
			}
			if got := d.Format(DateLayout); got != want {
				return fmt.Errorf("%w: day %d is %s, expected %s", ErrInvalid, i+1, got, want)
			}
			day.Date = want
		}
		if day.DayName == "" {
			day.DayName = DayNames[i]
		}

		meals := make(map[string]*Meal, len(day.Meals))
		for slot, meal := range day.Meals {
			if meal == nil {
				continue
			}
			if !isMealType(slot) {
				return fmt.Errorf("%w: unknown meal type %q", ErrInvalid, slot)
			}
			m := *meal
			m.MealType = slot
			if m.ID == "" {
				m.ID = uuid.NewString()
			}
			if m.RecipeID != nil && *m.RecipeID == "" {
				m.RecipeID = nil
			}
			meals[slot] = &m
		}
		day.Meals = meals
	}
	return nil
}

// RecipeIDs returns the distinct recipe ids referenced by the plan's meals.
func (p WeekPlan) RecipeIDs() []string {
	seen := map[string]bool{}
	var ids []string
	for _, day := range p.Days {
		for _, mt := range MealTypes {
			meal := day.Meals[mt]
			if meal == nil || meal.RecipeID == nil || seen[*meal.RecipeID] {
				continue
			}
			seen[*meal.RecipeID] = true
			ids = append(ids, *meal.RecipeID)
		}
	}
	return ids
}
