package models

import "time"

// NutritionEntry is one logged food item.
type NutritionEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	EntryDate    string    `json:"entryDate"`
	ProductName  string    `json:"productName"`
	Brand        string    `json:"brand"`
	Barcode      string    `json:"barcode"`
	PortionSize  float64   `json:"portionSize"`
	Servings     float64   `json:"servings"`
	Calories     float64   `json:"calories"`
	Protein      float64   `json:"protein"`
	Carbs        float64   `json:"carbs"`
	Fat          float64   `json:"fat"`
	Fiber        float64   `json:"fiber"`
	Sugar        float64   `json:"sugar"`
	Sodium       float64   `json:"sodium"`
	SaturatedFat float64   `json:"saturatedFat"`
	MealType     string    `json:"mealType"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NutritionGoal holds a user's daily targets.
type NutritionGoal struct {
	UserID        string  `json:"userId"`
	DailyCalories float64 `json:"dailyCalories" validate:"gte=0"`
	DailyProtein  float64 `json:"dailyProtein" validate:"gte=0"`
	DailyCarbs    float64 `json:"dailyCarbs" validate:"gte=0"`
	DailyFat      float64 `json:"dailyFat" validate:"gte=0"`
	DailyFiber    float64 `json:"dailyFiber" validate:"gte=0"`
	DailySugar    float64 `json:"dailySugar" validate:"gte=0"`
	DailySodium   float64 `json:"dailySodium" validate:"gte=0"`
	DailyWaterMl  float64 `json:"dailyWaterMl" validate:"gte=0"`
}

// DefaultNutritionGoal returns the targets used until a user sets their own.
func DefaultNutritionGoal(userID string) NutritionGoal {
	return NutritionGoal{
		UserID:        userID,
		DailyCalories: 2000,
		DailyProtein:  50,
		DailyCarbs:    260,
		DailyFat:      70,
		DailyFiber:    30,
		DailySugar:    90,
		DailySodium:   2300,
		DailyWaterMl:  2000,
	}
}

// WaterLog is a single drink.
type WaterLog struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	AmountMl int       `json:"amountMl"`
	LogDate  string    `json:"logDate"`
	LogTime  time.Time `json:"logTime"`
}

// DailyNutritionSummary totals a day's intake against goals.
type DailyNutritionSummary struct {
	Date          string             `json:"date"`
	EntryCount    int                `json:"entryCount"`
	Totals        map[string]float64 `json:"totals"`
	Goals         NutritionGoal      `json:"goals"`
	PercentOfGoal map[string]float64 `json:"percentOfGoal"`
}
