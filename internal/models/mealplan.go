package models

import "time"

// MealPlanEntry schedules a recipe for a meal on a given day.
type MealPlanEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	RecipeID    string    `json:"recipeId"`
	RecipeTitle string    `json:"recipeTitle"`
	PlannedDate string    `json:"plannedDate"`
	MealType    string    `json:"mealType"`
	Servings    int       `json:"servings"`
	Notes       string    `json:"notes"`
	IsCompleted bool      `json:"isCompleted"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MealPlanWeek is the meal plan for seven days starting Monday.
type MealPlanWeek struct {
	WeekStart string                     `json:"weekStart"`
	Days      map[string][]MealPlanEntry `json:"days"`
}
