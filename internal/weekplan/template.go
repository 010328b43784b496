package weekplan

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"foodplanner/internal/database"
)

// TemplateData is the saved snapshot of a plan's days.
type TemplateData struct {
	Days []Day `json:"days"`
}

// Template is a named, reusable week layout.
type Template struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	TemplateData *TemplateData      `json:"templateData"`
	CreatedAt    database.Timestamp `json:"createdAt"`
	UpdatedAt    database.Timestamp `json:"updatedAt"`
}

// Validate checks the required fields and assigns an id when missing.
func (t *Template) Validate() error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("%w: template name is required", ErrInvalid)
	}
	if t.TemplateData == nil {
		return fmt.Errorf("%w: templateData is required", ErrInvalid)
	}
	if t.TemplateData.Days == nil {
		t.TemplateData.Days = []Day{}
	}
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Apply lays the template's meals onto the week containing date. Days are
// matched by position, meals get fresh ids and keep their recipe references.
func (t Template) Apply(date time.Time) WeekPlan {
	plan := New(date)
	if t.TemplateData == nil {
		return plan
	}
	for i, day := range t.TemplateData.Days {
		if i >= DaysPerWeek {
			break
		}
		for slot, meal := range day.Meals {
			if meal == nil || !isMealType(slot) {
				continue
			}
			m := *meal
			m.ID = uuid.NewString()
			m.MealType = slot
			if meal.RecipeID != nil {
				id := *meal.RecipeID
				m.RecipeID = &id
			}
			plan.Days[i].Meals[slot] = &m
		}
	}
	return plan
}

// TemplateRepository persists week plan templates.
type TemplateRepository struct {
	db *database.DB
}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(db *database.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

type templateRow struct {
	ID           string             `db:"id"`
	Name         string             `db:"name"`
	Description  string             `db:"description"`
	TemplateData string             `db:"template_data"`
	CreatedAt    database.Timestamp `db:"created_at"`
	UpdatedAt    database.Timestamp `db:"updated_at"`
}

func (row templateRow) toTemplate() (Template, error) {
	t := Template{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	var data TemplateData
	if err := json.Unmarshal([]byte(row.TemplateData), &data); err != nil {
		return Template{}, fmt.Errorf("failed to unmarshal template data for %s: %w", row.ID, err)
	}
	t.TemplateData = &data
	return t, nil
}

const selectTemplate = `SELECT id, name, description, template_data, created_at, updated_at FROM week_plan_templates`

// List returns all templates, newest first.
func (r *TemplateRepository) List(ctx context.Context) ([]Template, error) {
	var rows []templateRow
	if err := r.db.SQL.SelectContext(ctx, &rows, selectTemplate+` ORDER BY created_at DESC, id`); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	templates := make([]Template, 0, len(rows))
	for _, row := range rows {
		t, err := row.toTemplate()
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, nil
}

// Get returns one template or database.ErrNotFound.
func (r *TemplateRepository) Get(ctx context.Context, id string) (*Template, error) {
	var row templateRow
	err := r.db.SQL.GetContext(ctx, &row, r.db.SQL.Rebind(selectTemplate+` WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	t, err := row.toTemplate()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create stores a new template.
func (r *TemplateRepository) Create(ctx context.Context, t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(t.TemplateData)
	if err != nil {
		return fmt.Errorf("failed to marshal template data: %w", err)
	}

	now := database.Now()
	_, err = r.db.SQL.ExecContext(ctx, r.db.SQL.Rebind(`INSERT INTO week_plan_templates (id, name, description, template_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		t.ID, t.Name, t.Description, string(data), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}
	t.CreatedAt = database.Timestamp{Time: now}
	t.UpdatedAt = database.Timestamp{Time: now}
	return nil
}

// Update replaces name, description and data of an existing template.
func (r *TemplateRepository) Update(ctx context.Context, t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(t.TemplateData)
	if err != nil {
		return fmt.Errorf("failed to marshal template data: %w", err)
	}

	now := database.Now()
	res, err := r.db.SQL.ExecContext(ctx, r.db.SQL.Rebind(`UPDATE week_plan_templates
		SET name = ?, description = ?, template_data = ?, updated_at = ? WHERE id = ?`),
		t.Name, t.Description, string(data), now, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}

	stored, err := r.Get(ctx, t.ID)
	if err != nil {
		return err
	}
	*t = *stored
	return nil
}

// Delete removes a template. It returns database.ErrNotFound when missing.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.SQL.Rebind(`DELETE FROM week_plan_templates WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}
	return nil
}
