package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
)

var mealTypes = map[string]bool{"breakfast": true, "lunch": true, "dinner": true, "snack": true}

// MealPlanInput schedules or reschedules a recipe.
type MealPlanInput struct {
	RecipeID    string `json:"recipeId"`
	PlannedDate string `json:"plannedDate" validate:"required,datetime=2006-01-02"`
	MealType    string `json:"mealType" validate:"required,oneof=breakfast lunch dinner snack"`
	Servings    int    `json:"servings" validate:"gte=0,lte=100"`
	Notes       string `json:"notes" validate:"max=500"`
	IsCompleted *bool  `json:"isCompleted"`
}

// MealPlanServiceProvider defines the interface for meal planning services.
type MealPlanServiceProvider interface {
	Week(ctx context.Context, userID, date string) (models.MealPlanWeek, error)
	CreateEntry(ctx context.Context, viewer auth.Viewer, in MealPlanInput) (models.MealPlanEntry, error)
	UpdateEntry(ctx context.Context, viewer auth.Viewer, id string, in MealPlanInput) (models.MealPlanEntry, error)
	DeleteEntry(ctx context.Context, userID, id string) error
	GenerateShoppingList(ctx context.Context, viewer auth.Viewer, date string) (models.ShoppingList, error)
}

// MealPlanService schedules recipes across the week.
type MealPlanService struct {
	db       *sql.DB
	recipes  *RecipeService
	shopping *ShoppingService
	now      func() time.Time
}

// NewMealPlanService creates a new MealPlanService.
func NewMealPlanService(db *sql.DB, recipes *RecipeService, shopping *ShoppingService) *MealPlanService {
	return &MealPlanService{db: db, recipes: recipes, shopping: shopping, now: time.Now}
}

const mealPlanSelect = `
	SELECT m.id, m.user_id, m.recipe_id, r.title, m.planned_date, m.meal_type, m.servings, m.notes, m.is_completed, m.created_at
	FROM meal_plan_entries m JOIN recipes r ON r.id = m.recipe_id`

func scanMealPlanEntry(row scanner) (models.MealPlanEntry, error) {
	var e models.MealPlanEntry
	err := row.Scan(&e.ID, &e.UserID, &e.RecipeID, &e.RecipeTitle, &e.PlannedDate, &e.MealType, &e.Servings,
		&e.Notes, &e.IsCompleted, &e.CreatedAt)
	return e, err
}

func (s *MealPlanService) weekEntries(ctx context.Context, userID string, start time.Time) ([]models.MealPlanEntry, error) {
	end := start.AddDate(0, 0, 6)
	rows, err := s.db.QueryContext(ctx, mealPlanSelect+`
		WHERE m.user_id = ? AND m.planned_date BETWEEN ? AND ?
		ORDER BY m.planned_date, CASE m.meal_type WHEN 'breakfast' THEN 1 WHEN 'lunch' THEN 2 WHEN 'dinner' THEN 3 ELSE 4 END`,
		userID, start.Format(models.DateLayout), end.Format(models.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MealPlanEntry
	for rows.Next() {
		e, err := scanMealPlanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Week returns the plan for the Monday-to-Sunday week containing date. Every
// day of the week is present, empty days with no entries.
func (s *MealPlanService) Week(ctx context.Context, userID, date string) (models.MealPlanWeek, error) {
	d, err := parseDate(date, s.now())
	if err != nil {
		return models.MealPlanWeek{}, apperr.Validation("Date must be YYYY-MM-DD")
	}
	start := WeekStart(d)
	week := models.MealPlanWeek{WeekStart: start.Format(models.DateLayout), Days: map[string][]models.MealPlanEntry{}}
	for i := 0; i < 7; i++ {
		week.Days[start.AddDate(0, 0, i).Format(models.DateLayout)] = []models.MealPlanEntry{}
	}
	entries, err := s.weekEntries(ctx, userID, start)
	if err != nil {
		return week, err
	}
	for _, e := range entries {
		week.Days[e.PlannedDate] = append(week.Days[e.PlannedDate], e)
	}
	return week, nil
}

func (s *MealPlanService) get(ctx context.Context, userID, id string) (models.MealPlanEntry, error) {
	e, err := scanMealPlanEntry(s.db.QueryRowContext(ctx, mealPlanSelect+" WHERE m.id = ? AND m.user_id = ?", id, userID))
	if isNoRows(err) {
		return e, apperr.NotFound("meal plan entry", id)
	}
	return e, err
}

func checkMealPlanInput(in *MealPlanInput) error {
	if _, err := time.Parse(models.DateLayout, in.PlannedDate); err != nil {
		return apperr.Validation("Planned date must be YYYY-MM-DD")
	}
	in.MealType = strings.ToLower(strings.TrimSpace(in.MealType))
	if !mealTypes[in.MealType] {
		return apperr.Validation("Meal type must be breakfast, lunch, dinner or snack")
	}
	if in.Servings < 0 || in.Servings > 100 {
		return apperr.Validation("Servings must be between 1 and 100")
	}
	return nil
}

// CreateEntry schedules a recipe the viewer can see. Servings default to the recipe's.
func (s *MealPlanService) CreateEntry(ctx context.Context, viewer auth.Viewer, in MealPlanInput) (models.MealPlanEntry, error) {
	if err := checkMealPlanInput(&in); err != nil {
		return models.MealPlanEntry{}, err
	}
	recipe, err := s.recipes.GetRecipe(ctx, viewer, in.RecipeID)
	if err != nil {
		return models.MealPlanEntry{}, err
	}
	if in.Servings == 0 {
		in.Servings = recipe.Servings
	}
	completed := in.IsCompleted != nil && *in.IsCompleted

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO meal_plan_entries (id, user_id, recipe_id, planned_date, meal_type, servings, notes, is_completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, viewer.UserID, recipe.ID, in.PlannedDate, in.MealType, in.Servings, strings.TrimSpace(in.Notes), completed, s.now().UTC())
	if err != nil {
		return models.MealPlanEntry{}, fmt.Errorf("failed to create meal plan entry: %w", err)
	}
	return s.get(ctx, viewer.UserID, id)
}

// UpdateEntry reschedules an entry. An empty recipe id keeps the current recipe.
func (s *MealPlanService) UpdateEntry(ctx context.Context, viewer auth.Viewer, id string, in MealPlanInput) (models.MealPlanEntry, error) {
	existing, err := s.get(ctx, viewer.UserID, id)
	if err != nil {
		return existing, err
	}
	if err := checkMealPlanInput(&in); err != nil {
		return existing, err
	}
	recipeID := existing.RecipeID
	if in.RecipeID != "" && in.RecipeID != recipeID {
		recipe, err := s.recipes.GetRecipe(ctx, viewer, in.RecipeID)
		if err != nil {
			return existing, err
		}
		recipeID = recipe.ID
	}
	if in.Servings == 0 {
		in.Servings = existing.Servings
	}
	completed := existing.IsCompleted
	if in.IsCompleted != nil {
		completed = *in.IsCompleted
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE meal_plan_entries SET recipe_id = ?, planned_date = ?, meal_type = ?, servings = ?, notes = ?, is_completed = ?
		WHERE id = ?`, recipeID, in.PlannedDate, in.MealType, in.Servings, strings.TrimSpace(in.Notes), completed, id)
	if err != nil {
		return existing, fmt.Errorf("failed to update meal plan entry: %w", err)
	}
	return s.get(ctx, viewer.UserID, id)
}

// DeleteEntry removes an entry from the plan.
func (s *MealPlanService) DeleteEntry(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM meal_plan_entries WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("meal plan entry", id)
	}
	return nil
}

// GenerateShoppingList adds every uncompleted entry of the week to that week's
// shopping list, scaled to the entry's servings.
func (s *MealPlanService) GenerateShoppingList(ctx context.Context, viewer auth.Viewer, date string) (models.ShoppingList, error) {
	d, err := parseDate(date, s.now())
	if err != nil {
		return models.ShoppingList{}, apperr.Validation("Date must be YYYY-MM-DD")
	}
	start := WeekStart(d)
	entries, err := s.weekEntries(ctx, viewer.UserID, start)
	if err != nil {
		return models.ShoppingList{}, err
	}
	week := start.Format(models.DateLayout)
	for _, e := range entries {
		if e.IsCompleted {
			continue
		}
		_, err := s.shopping.AddRecipe(ctx, viewer, AddRecipeInput{RecipeID: e.RecipeID, Servings: e.Servings, Date: week})
		if apperr.Is(err, apperr.CodeNotFound) || apperr.Is(err, apperr.CodeForbidden) {
			continue
		}
		if err != nil {
			return models.ShoppingList{}, err
		}
	}
	return s.shopping.GetOrCreateWeek(ctx, viewer.UserID, week)
}
