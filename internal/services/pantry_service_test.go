package services

import (
	"context"
	"testing"
	"time"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPantryService(t *testing.T) (*PantryService, string) {
	t.Helper()
	db := newTestDB(t)
	svc := NewPantryService(db)
	svc.now = fixedClock("2024-03-10T12:00:00Z")
	return svc, createUser(t, db, "").ID
}

func TestPantryCategoriesSeededAndDeleted(t *testing.T) {
	svc, userID := newPantryService(t)
	ctx := context.Background()

	cats, err := svc.ListCategories(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cats, len(DefaultPantryCategories))
	assert.Equal(t, "Fridge", cats[0].Name)

	_, err = svc.CreateCategory(ctx, userID, "Fridge")
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	baking, err := svc.CreateCategory(ctx, userID, "Baking")
	require.NoError(t, err)
	assert.Equal(t, len(DefaultPantryCategories), baking.SortOrder)

	item, err := svc.CreateItem(ctx, userID, PantryItemInput{Name: "Flour", CategoryID: &baking.ID, CurrentQuantity: 2, Unit: "kg"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategory(ctx, userID, baking.ID))
	item, err = svc.GetItem(ctx, userID, item.ID)
	require.NoError(t, err)
	assert.Nil(t, item.CategoryID)
}

func TestPantryItemDerivedFields(t *testing.T) {
	svc, userID := newPantryService(t)
	ctx := context.Background()

	milk, err := svc.CreateItem(ctx, userID, PantryItemInput{Name: "Milk", CurrentQuantity: 1, ExpiryDate: strPtr("2024-03-12")})
	require.NoError(t, err)
	assert.Equal(t, "units", milk.Unit)
	assert.Equal(t, 1.0, milk.MinQuantity)
	assert.True(t, milk.IsLowStock)
	assert.Equal(t, models.StockLow, milk.StockStatus)
	assert.True(t, milk.IsExpiringSoon)
	require.NotNil(t, milk.DaysToExpiry)
	assert.Equal(t, 2, *milk.DaysToExpiry)

	rice, err := svc.CreateItem(ctx, userID, PantryItemInput{Name: "Rice", CurrentQuantity: 6})
	require.NoError(t, err)
	assert.Equal(t, models.StockWell, rice.StockStatus)

	_, err = svc.CreateItem(ctx, userID, PantryItemInput{Name: "Eggs", ExpiryDate: strPtr("12/03/2024")})
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
	_, err = svc.CreateItem(ctx, userID, PantryItemInput{Name: "Eggs", CategoryID: strPtr("nope")})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	low, err := svc.ListItems(ctx, userID, PantryQuery{LowStock: true})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "Milk", low[0].Name)

	expiring, err := svc.ListItems(ctx, userID, PantryQuery{Expiring: true})
	require.NoError(t, err)
	assert.Len(t, expiring, 1)
}

func TestPantryAdjustQuantity(t *testing.T) {
	svc, userID := newPantryService(t)
	ctx := context.Background()
	item, err := svc.CreateItem(ctx, userID, PantryItemInput{Name: "Pasta", CurrentQuantity: 3})
	require.NoError(t, err)

	item, err = svc.AdjustQuantity(ctx, userID, item.ID, 2, OpAdd, "")
	require.NoError(t, err)
	assert.Equal(t, 5.0, item.CurrentQuantity)

	item, err = svc.AdjustQuantity(ctx, userID, item.ID, 10, OpSubtract, "dinner")
	require.NoError(t, err)
	assert.Equal(t, 0.0, item.CurrentQuantity)
	assert.Equal(t, models.StockOut, item.StockStatus)

	_, err = svc.AdjustQuantity(ctx, userID, item.ID, 1, "multiply", "")
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))

	item, err = svc.RecordPurchase(ctx, userID, item.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4.0, item.CurrentQuantity)
	assert.NotNil(t, item.LastPurchased)

	history, err := svc.UsageHistory(ctx, userID, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	reasons := []string{history[0].Reason, history[1].Reason, history[2].Reason}
	assert.ElementsMatch(t, []string{"add", "dinner", "purchased"}, reasons)

	_, err = svc.UsageHistory(ctx, "someone-else", item.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestPantryPredictLow(t *testing.T) {
	svc, userID := newPantryService(t)
	ctx := context.Background()

	fast, err := svc.CreateItem(ctx, userID, PantryItemInput{Name: "Coffee", CurrentQuantity: 40})
	require.NoError(t, err)
	slow, err := svc.CreateItem(ctx, userID, PantryItemInput{Name: "Salt", CurrentQuantity: 50})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, userID, PantryItemInput{Name: "Honey", CurrentQuantity: 3})
	require.NoError(t, err)

	// 30 units in 30 days is 1/day: Coffee drops from 10 to its minimum of 1 in 9 days.
	_, err = svc.AdjustQuantity(ctx, userID, fast.ID, 30, OpSubtract, "")
	require.NoError(t, err)
	_, err = svc.AdjustQuantity(ctx, userID, slow.ID, 1, OpSubtract, "")
	require.NoError(t, err)

	predictions, err := svc.PredictLow(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, predictions)

	_, err = svc.AdjustQuantity(ctx, userID, fast.ID, 6, OpSubtract, "")
	require.NoError(t, err)
	predictions, err = svc.PredictLow(ctx, userID)
	require.NoError(t, err)
	require.Len(t, predictions, 1)
	assert.Equal(t, "Coffee", predictions[0].Item.Name)
	assert.InDelta(t, 1.2, predictions[0].DailyConsumption, 0.001)
	assert.InDelta(t, 2.5, predictions[0].DaysUntilLow, 0.001)
}

func TestPantryAlerts(t *testing.T) {
	svc, userID := newPantryService(t)
	ctx := context.Background()
	_, err := svc.CreateItem(ctx, userID, PantryItemInput{Name: "Yoghurt", CurrentQuantity: 2, ExpiryDate: strPtr("2024-03-01")})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, userID, PantryItemInput{Name: "Butter", CurrentQuantity: 0, ExpiryDate: strPtr("2024-03-11")})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC) }
	alerts, err := svc.Alerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, PantryAlert{UserID: userID, LowStock: 1, ExpiringSoon: 1, Expired: 1}, alerts[0])
}
