package weekplan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"foodplanner/internal/database"
)

// Repository persists week plans with their days and meals.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

type planRow struct {
	ID        string             `db:"id"`
	StartDate string             `db:"start_date"`
	CreatedAt database.Timestamp `db:"created_at"`
	UpdatedAt database.Timestamp `db:"updated_at"`
}

type dayRow struct {
	ID      int64  `db:"id"`
	Date    string `db:"date"`
	DayName string `db:"day_name"`
}

type mealRow struct {
	ID         string         `db:"id"`
	DayID      int64          `db:"day_id"`
	RecipeID   sql.NullString `db:"recipe_id"`
	RecipeName string         `db:"recipe_name"`
	MealType   string         `db:"meal_type"`
}

const selectPlan = `SELECT id, start_date, created_at, updated_at FROM week_plans`

// Current returns the most recently saved plan, or database.ErrNotFound.
func (r *Repository) Current(ctx context.Context) (*WeekPlan, error) {
	return r.getOne(ctx, selectPlan+` ORDER BY updated_at DESC, id DESC LIMIT 1`)
}

// Get returns the plan with the given id.
func (r *Repository) Get(ctx context.Context, id string) (*WeekPlan, error) {
	return r.getOne(ctx, selectPlan+` WHERE id = ?`, id)
}

// ByDate returns the plan whose week contains date.
func (r *Repository) ByDate(ctx context.Context, date time.Time) (*WeekPlan, error) {
	monday := MondayOf(date).Format(DateLayout)
	return r.getOne(ctx, selectPlan+` WHERE start_date = ? ORDER BY updated_at DESC LIMIT 1`, monday)
}

func (r *Repository) getOne(ctx context.Context, query string, args ...any) (*WeekPlan, error) {
	var row planRow
	err := r.db.SQL.GetContext(ctx, &row, r.db.SQL.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get week plan: %w", err)
	}
	return r.load(ctx, row)
}

func (r *Repository) load(ctx context.Context, row planRow) (*WeekPlan, error) {
	plan := &WeekPlan{
		ID:        row.ID,
		StartDate: row.StartDate,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Days:      []Day{},
	}

	var days []dayRow
	err := r.db.SQL.SelectContext(ctx, &days,
		r.db.SQL.Rebind(`SELECT id, date, day_name FROM days WHERE week_plan_id = ? ORDER BY position, id`), row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load days: %w", err)
	}
	if len(days) == 0 {
		return plan, nil
	}

	dayIDs := make([]int64, len(days))
	index := make(map[int64]int, len(days))
	for i, d := range days {
		dayIDs[i] = d.ID
		index[d.ID] = i
		plan.Days = append(plan.Days, Day{Date: d.Date, DayName: d.DayName, Meals: map[string]*Meal{}})
	}

	query, args, err := sqlx.In(`SELECT id, day_id, recipe_id, recipe_name, meal_type FROM meals WHERE day_id IN (?)`, dayIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build meal query: %w", err)
	}
	var meals []mealRow
	if err := r.db.SQL.SelectContext(ctx, &meals, r.db.SQL.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load meals: %w", err)
	}
	for _, m := range meals {
		meal := &Meal{ID: m.ID, RecipeName: m.RecipeName, MealType: m.MealType}
		if m.RecipeID.Valid {
			id := m.RecipeID.String
			meal.RecipeID = &id
		}
		plan.Days[index[m.DayID]].Meals[m.MealType] = meal
	}
	return plan, nil
}

// Save validates the plan and replaces any stored plan with the same id.
// Plan, days and meals are written in one transaction. Meals pointing at
// recipes that no longer exist are stored with a null recipe reference.
func (r *Repository) Save(ctx context.Context, plan *WeekPlan) error {
	if err := plan.Normalize(); err != nil {
		return err
	}
	now := database.Now()

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var created database.Timestamp
		err := tx.GetContext(ctx, &created, tx.Rebind(`SELECT created_at FROM week_plans WHERE id = ?`), plan.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = database.Timestamp{Time: now}
		case err != nil:
			return fmt.Errorf("failed to read week plan: %w", err)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM week_plans WHERE id = ?`), plan.ID); err != nil {
			return fmt.Errorf("failed to replace week plan: %w", err)
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO week_plans (id, start_date, created_at, updated_at) VALUES (?, ?, ?, ?)`),
			plan.ID, plan.StartDate, created.Time, now)
		if err != nil {
			return fmt.Errorf("failed to insert week plan: %w", err)
		}

		insertDay := tx.Rebind(`INSERT INTO days (week_plan_id, position, date, day_name) VALUES (?, ?, ?, ?) RETURNING id`)
		insertMeal := tx.Rebind(`INSERT INTO meals (id, day_id, recipe_id, recipe_name, meal_type)
			VALUES (?, ?, (SELECT id FROM recipes WHERE id = ?), ?, ?)`)
		for i, day := range plan.Days {
			var dayID int64
			if err := tx.GetContext(ctx, &dayID, insertDay, plan.ID, i, day.Date, day.DayName); err != nil {
				return fmt.Errorf("failed to insert day: %w", err)
			}
			for _, mt := range MealTypes {
				meal := day.Meals[mt]
				if meal == nil {
					continue
				}
				var recipeID sql.NullString
				if meal.RecipeID != nil {
					recipeID = sql.NullString{String: *meal.RecipeID, Valid: true}
				}
				if _, err := tx.ExecContext(ctx, insertMeal, meal.ID, dayID, recipeID, meal.RecipeName, mt); err != nil {
					return fmt.Errorf("failed to insert meal: %w", err)
				}
			}
		}

		plan.CreatedAt = created
		plan.UpdatedAt = database.Timestamp{Time: now}
		return nil
	})
}

// Init returns the stored plan for the week containing date, creating an
// empty one when none exists. The boolean reports whether a plan was created.
func (r *Repository) Init(ctx context.Context, date time.Time) (*WeekPlan, bool, error) {
	existing, err := r.ByDate(ctx, date)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, false, err
	}

	plan := New(date)
	if err := r.Save(ctx, &plan); err != nil {
		return nil, false, err
	}
	return &plan, true, nil
}

// Delete removes one plan. It returns database.ErrNotFound when missing.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.SQL.Rebind(`DELETE FROM week_plans WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete week plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// DeleteAll removes every plan and returns how many were deleted.
func (r *Repository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.SQL.ExecContext(ctx, `DELETE FROM week_plans`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete week plans: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
