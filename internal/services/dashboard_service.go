package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/homegrubhub/homegrubhub-be/internal/models"
)

// DashboardServiceProvider defines the interface for the home screen summary.
type DashboardServiceProvider interface {
	Summary(ctx context.Context, userID string) (models.Dashboard, error)
}

// DashboardService assembles counts from the other household modules.
type DashboardService struct {
	db        *sql.DB
	pantry    *PantryService
	nutrition *NutritionService
	now       func() time.Time
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(db *sql.DB, pantry *PantryService, nutrition *NutritionService) *DashboardService {
	return &DashboardService{db: db, pantry: pantry, nutrition: nutrition, now: time.Now}
}

// Summary returns the signed-in user's dashboard. It does not create this
// week's shopping list when there is none yet.
func (s *DashboardService) Summary(ctx context.Context, userID string) (models.Dashboard, error) {
	var d models.Dashboard
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM recipes WHERE user_id = ?), (SELECT COUNT(*) FROM favourites WHERE user_id = ?)`,
		userID, userID).Scan(&d.RecipeCount, &d.FavouriteCount)
	if err != nil {
		return d, err
	}

	items, err := s.pantry.ListItems(ctx, userID, PantryQuery{})
	if err != nil {
		return d, err
	}
	for _, item := range items {
		if item.IsLowStock {
			d.PantryLowStock++
		}
		if item.IsExpiringSoon {
			d.PantryExpiringSoon++
		}
	}

	week := WeekStart(s.now().UTC()).Format(models.DateLayout)
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(i.id), COALESCE(SUM(i.is_purchased), 0)
		FROM shopping_items i JOIN shopping_lists l ON l.id = i.list_id
		WHERE l.user_id = ? AND l.week_start = ?`, userID, week).Scan(&d.ShoppingItems, &d.ShoppingPurchased)
	if err != nil {
		return d, err
	}

	day, err := s.nutrition.Summary(ctx, userID, today(s.now()))
	if err != nil {
		return d, err
	}
	d.CaloriesToday = day.Totals["calories"]
	d.WaterTodayMl = int(day.Totals["waterMl"])
	return d, nil
}
