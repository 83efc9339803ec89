package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
)

// NutritionEntryInput is the writable part of a nutrition entry.
type NutritionEntryInput struct {
	EntryDate    string   `json:"entryDate" validate:"omitempty,datetime=2006-01-02"`
	ProductName  string   `json:"productName" validate:"max=200"`
	Brand        string   `json:"brand" validate:"max=100"`
	Barcode      string   `json:"barcode" validate:"max=50"`
	PortionSize  *float64 `json:"portionSize" validate:"omitempty,gte=0"`
	Servings     *float64 `json:"servings" validate:"omitempty,gte=0"`
	Calories     float64  `json:"calories" validate:"gte=0"`
	Protein      float64  `json:"protein" validate:"gte=0"`
	Carbs        float64  `json:"carbs" validate:"gte=0"`
	Fat          float64  `json:"fat" validate:"gte=0"`
	Fiber        float64  `json:"fiber" validate:"gte=0"`
	Sugar        float64  `json:"sugar" validate:"gte=0"`
	Sodium       float64  `json:"sodium" validate:"gte=0"`
	SaturatedFat float64  `json:"saturatedFat" validate:"gte=0"`
	MealType     string   `json:"mealType" validate:"omitempty,oneof=breakfast lunch dinner snack"`
	Notes        string   `json:"notes" validate:"max=500"`
}

// NutritionServiceProvider defines the interface for nutrition tracking services.
type NutritionServiceProvider interface {
	ListEntries(ctx context.Context, userID, date string, page, size int) ([]models.NutritionEntry, int, error)
	CreateEntry(ctx context.Context, userID string, in NutritionEntryInput) (models.NutritionEntry, error)
	UpdateEntry(ctx context.Context, userID, id string, in NutritionEntryInput) (models.NutritionEntry, error)
	DeleteEntry(ctx context.Context, userID, id string) error
	GetGoals(ctx context.Context, userID string) (models.NutritionGoal, error)
	SetGoals(ctx context.Context, userID string, goal models.NutritionGoal) (models.NutritionGoal, error)
	Summary(ctx context.Context, userID, date string) (models.DailyNutritionSummary, error)
	LogWater(ctx context.Context, userID string, amountMl int, at *time.Time) (models.WaterLog, error)
	ListWater(ctx context.Context, userID, date string) ([]models.WaterLog, error)
	DeleteWater(ctx context.Context, userID, id string) error
}

// NutritionService records food and water intake.
type NutritionService struct {
	db  *sql.DB
	now func() time.Time
}

// NewNutritionService creates a new NutritionService.
func NewNutritionService(db *sql.DB) *NutritionService {
	return &NutritionService{db: db, now: time.Now}
}

const nutritionColumns = `id, user_id, entry_date, product_name, brand, barcode, portion_size, servings, calories,
	protein, carbs, fat, fiber, sugar, sodium, saturated_fat, meal_type, notes, created_at, updated_at`

func scanNutritionEntry(row scanner) (models.NutritionEntry, error) {
	var e models.NutritionEntry
	err := row.Scan(&e.ID, &e.UserID, &e.EntryDate, &e.ProductName, &e.Brand, &e.Barcode, &e.PortionSize, &e.Servings,
		&e.Calories, &e.Protein, &e.Carbs, &e.Fat, &e.Fiber, &e.Sugar, &e.Sodium, &e.SaturatedFat, &e.MealType,
		&e.Notes, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (s *NutritionService) date(d string) (string, error) {
	t, err := parseDate(d, s.now())
	if err != nil {
		return "", apperr.Validation("Date must be YYYY-MM-DD")
	}
	return t.Format(models.DateLayout), nil
}

// ListEntries returns a page of the entries logged on date (today when empty).
func (s *NutritionService) ListEntries(ctx context.Context, userID, date string, page, size int) ([]models.NutritionEntry, int, error) {
	day, err := s.date(date)
	if err != nil {
		return nil, 0, err
	}
	page, size = clampPage(page, size, 20, 100)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nutrition_entries WHERE user_id = ? AND entry_date = ?", userID, day).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+nutritionColumns+` FROM nutrition_entries
		WHERE user_id = ? AND entry_date = ? ORDER BY created_at, rowid LIMIT ? OFFSET ?`, userID, day, size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []models.NutritionEntry{}
	for rows.Next() {
		e, err := scanNutritionEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (s *NutritionService) get(ctx context.Context, userID, id string) (models.NutritionEntry, error) {
	e, err := scanNutritionEntry(s.db.QueryRowContext(ctx, "SELECT "+nutritionColumns+" FROM nutrition_entries WHERE id = ? AND user_id = ?", id, userID))
	if isNoRows(err) {
		return e, apperr.NotFound("nutrition entry", id)
	}
	return e, err
}

func (s *NutritionService) normalizeEntry(in *NutritionEntryInput) error {
	for _, v := range []float64{in.Calories, in.Protein, in.Carbs, in.Fat, in.Fiber, in.Sugar, in.Sodium, in.SaturatedFat} {
		if v < 0 || math.IsNaN(v) {
			return apperr.Validation("Nutrient values cannot be negative")
		}
	}
	if (in.PortionSize != nil && *in.PortionSize < 0) || (in.Servings != nil && *in.Servings < 0) {
		return apperr.Validation("Portion size and servings cannot be negative")
	}
	day, err := s.date(in.EntryDate)
	if err != nil {
		return err
	}
	in.EntryDate = day
	in.ProductName = strings.TrimSpace(in.ProductName)
	if in.ProductName == "" {
		in.ProductName = "Food Item"
	}
	in.MealType = strings.ToLower(strings.TrimSpace(in.MealType))
	if in.MealType == "" {
		in.MealType = "snack"
	}
	if !mealTypes[in.MealType] {
		return apperr.Validation("Meal type must be breakfast, lunch, dinner or snack")
	}
	return nil
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// CreateEntry logs a food item.
func (s *NutritionService) CreateEntry(ctx context.Context, userID string, in NutritionEntryInput) (models.NutritionEntry, error) {
	if err := s.normalizeEntry(&in); err != nil {
		return models.NutritionEntry{}, err
	}
	id := uuid.New().String()
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, "INSERT INTO nutrition_entries ("+nutritionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, in.EntryDate, in.ProductName, in.Brand, in.Barcode, floatOr(in.PortionSize, 100), floatOr(in.Servings, 1),
		in.Calories, in.Protein, in.Carbs, in.Fat, in.Fiber, in.Sugar, in.Sodium, in.SaturatedFat, in.MealType, in.Notes, now, now)
	if err != nil {
		return models.NutritionEntry{}, fmt.Errorf("failed to create nutrition entry: %w", err)
	}
	return s.get(ctx, userID, id)
}

// UpdateEntry replaces an entry's values.
func (s *NutritionService) UpdateEntry(ctx context.Context, userID, id string, in NutritionEntryInput) (models.NutritionEntry, error) {
	existing, err := s.get(ctx, userID, id)
	if err != nil {
		return existing, err
	}
	if in.EntryDate == "" {
		in.EntryDate = existing.EntryDate
	}
	if err := s.normalizeEntry(&in); err != nil {
		return existing, err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE nutrition_entries SET entry_date = ?, product_name = ?, brand = ?, barcode = ?, portion_size = ?, servings = ?,
			calories = ?, protein = ?, carbs = ?, fat = ?, fiber = ?, sugar = ?, sodium = ?, saturated_fat = ?,
			meal_type = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		in.EntryDate, in.ProductName, in.Brand, in.Barcode, floatOr(in.PortionSize, existing.PortionSize),
		floatOr(in.Servings, existing.Servings), in.Calories, in.Protein, in.Carbs, in.Fat, in.Fiber, in.Sugar,
		in.Sodium, in.SaturatedFat, in.MealType, in.Notes, s.now().UTC(), id)
	if err != nil {
		return existing, fmt.Errorf("failed to update nutrition entry: %w", err)
	}
	return s.get(ctx, userID, id)
}

// DeleteEntry removes an entry.
func (s *NutritionService) DeleteEntry(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM nutrition_entries WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("nutrition entry", id)
	}
	return nil
}

// GetGoals returns the user's goals, or the defaults if none are set.
func (s *NutritionService) GetGoals(ctx context.Context, userID string) (models.NutritionGoal, error) {
	g := models.NutritionGoal{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT daily_calories, daily_protein, daily_carbs, daily_fat, daily_fiber, daily_sugar, daily_sodium, daily_water_ml
		FROM nutrition_goals WHERE user_id = ?`, userID).
		Scan(&g.DailyCalories, &g.DailyProtein, &g.DailyCarbs, &g.DailyFat, &g.DailyFiber, &g.DailySugar, &g.DailySodium, &g.DailyWaterMl)
	if isNoRows(err) {
		return models.DefaultNutritionGoal(userID), nil
	}
	return g, err
}

// SetGoals stores the user's daily targets.
func (s *NutritionService) SetGoals(ctx context.Context, userID string, g models.NutritionGoal) (models.NutritionGoal, error) {
	for _, v := range []float64{g.DailyCalories, g.DailyProtein, g.DailyCarbs, g.DailyFat, g.DailyFiber, g.DailySugar, g.DailySodium, g.DailyWaterMl} {
		if v < 0 {
			return g, apperr.Validation("Goals cannot be negative")
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nutrition_goals (user_id, daily_calories, daily_protein, daily_carbs, daily_fat, daily_fiber, daily_sugar, daily_sodium, daily_water_ml)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			daily_calories = excluded.daily_calories, daily_protein = excluded.daily_protein, daily_carbs = excluded.daily_carbs,
			daily_fat = excluded.daily_fat, daily_fiber = excluded.daily_fiber, daily_sugar = excluded.daily_sugar,
			daily_sodium = excluded.daily_sodium, daily_water_ml = excluded.daily_water_ml`,
		userID, g.DailyCalories, g.DailyProtein, g.DailyCarbs, g.DailyFat, g.DailyFiber, g.DailySugar, g.DailySodium, g.DailyWaterMl)
	if err != nil {
		return g, fmt.Errorf("failed to save nutrition goals: %w", err)
	}
	return s.GetGoals(ctx, userID)
}

func percent(v, goal float64) float64 {
	if goal <= 0 {
		return 0
	}
	return math.Round(v/goal*1000) / 10
}

// Summary totals a day's entries and water against the user's goals.
func (s *NutritionService) Summary(ctx context.Context, userID, date string) (models.DailyNutritionSummary, error) {
	day, err := s.date(date)
	if err != nil {
		return models.DailyNutritionSummary{}, err
	}
	summary := models.DailyNutritionSummary{Date: day}
	var calories, protein, carbs, fat, fiber, sugar, sodium, satFat, water float64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(calories), 0), COALESCE(SUM(protein), 0), COALESCE(SUM(carbs), 0), COALESCE(SUM(fat), 0),
			COALESCE(SUM(fiber), 0), COALESCE(SUM(sugar), 0), COALESCE(SUM(sodium), 0), COALESCE(SUM(saturated_fat), 0)
		FROM nutrition_entries WHERE user_id = ? AND entry_date = ?`, userID, day).
		Scan(&summary.EntryCount, &calories, &protein, &carbs, &fat, &fiber, &sugar, &sodium, &satFat)
	if err != nil {
		return summary, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(amount_ml), 0) FROM water_logs WHERE user_id = ? AND log_date = ?", userID, day).Scan(&water); err != nil {
		return summary, err
	}
	goals, err := s.GetGoals(ctx, userID)
	if err != nil {
		return summary, err
	}
	summary.Goals = goals
	summary.Totals = map[string]float64{
		"calories": calories, "protein": protein, "carbs": carbs, "fat": fat, "fiber": fiber,
		"sugar": sugar, "sodium": sodium, "saturatedFat": satFat, "waterMl": water,
	}
	summary.PercentOfGoal = map[string]float64{
		"calories": percent(calories, goals.DailyCalories),
		"protein":  percent(protein, goals.DailyProtein),
		"carbs":    percent(carbs, goals.DailyCarbs),
		"fat":      percent(fat, goals.DailyFat),
		"fiber":    percent(fiber, goals.DailyFiber),
		"sugar":    percent(sugar, goals.DailySugar),
		"sodium":   percent(sodium, goals.DailySodium),
		"waterMl":  percent(water, goals.DailyWaterMl),
	}
	return summary, nil
}

// LogWater records a drink of 1 to 5000 ml, at now when at is nil.
func (s *NutritionService) LogWater(ctx context.Context, userID string, amountMl int, at *time.Time) (models.WaterLog, error) {
	if amountMl < 1 || amountMl > 5000 {
		return models.WaterLog{}, apperr.Validation("Amount must be between 1 and 5000 ml")
	}
	when := s.now().UTC()
	if at != nil {
		when = at.UTC()
	}
	w := models.WaterLog{ID: uuid.New().String(), UserID: userID, AmountMl: amountMl, LogDate: when.Format(models.DateLayout), LogTime: when}
	_, err := s.db.ExecContext(ctx, "INSERT INTO water_logs (id, user_id, amount_ml, log_date, log_time) VALUES (?, ?, ?, ?, ?)",
		w.ID, userID, w.AmountMl, w.LogDate, w.LogTime)
	if err != nil {
		return w, fmt.Errorf("failed to log water: %w", err)
	}
	return w, nil
}

// ListWater returns the drinks logged on date, in time order.
func (s *NutritionService) ListWater(ctx context.Context, userID, date string) ([]models.WaterLog, error) {
	day, err := s.date(date)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id, user_id, amount_ml, log_date, log_time FROM water_logs WHERE user_id = ? AND log_date = ? ORDER BY log_time", userID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.WaterLog{}
	for rows.Next() {
		var w models.WaterLog
		if err := rows.Scan(&w.ID, &w.UserID, &w.AmountMl, &w.LogDate, &w.LogTime); err != nil {
			return nil, err
		}
		logs = append(logs, w)
	}
	return logs, rows.Err()
}

// DeleteWater removes a water log.
func (s *NutritionService) DeleteWater(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM water_logs WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("water log", id)
	}
	return nil
}
