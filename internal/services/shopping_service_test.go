package services

import (
	"context"
	"testing"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/homegrubhub/homegrubhub-be/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shoppingFixture struct {
	svc     *ShoppingService
	recipes *RecipeService
	pantry  *PantryService
	prices  *PriceService
	user    auth.Viewer
	other   auth.Viewer
}

func newShoppingFixture(t *testing.T) shoppingFixture {
	t.Helper()
	db := newTestDB(t)
	events := NewEventService(db)
	fx := shoppingFixture{
		recipes: NewRecipeService(db, events, nil),
		pantry:  NewPantryService(db),
		prices:  NewPriceService(db, events, nil),
		user:    viewerFor(createUser(t, db, "home")),
		other:   viewerFor(createUser(t, db, "")),
	}
	fx.svc = NewShoppingService(db, fx.recipes, fx.pantry, fx.prices, pricing.NewEstimator(nil, 0))
	clock := fixedClock("2024-03-13T10:00:00Z")
	fx.svc.now, fx.pantry.now, fx.prices.now = clock, clock, clock
	return fx
}

func itemNamed(t *testing.T, list models.ShoppingList, name string) models.ShoppingItem {
	t.Helper()
	for _, item := range list.Items {
		if item.Name == name {
			return item
		}
	}
	t.Fatalf("no item %q on list", name)
	return models.ShoppingItem{}
}

func TestShoppingWeekLists(t *testing.T) {
	fx := newShoppingFixture(t)
	ctx := context.Background()

	list, err := fx.svc.GetOrCreateWeek(ctx, fx.user.UserID, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", list.WeekStart)
	assert.Equal(t, "Week of Mar 11 - Mar 17, 2024", list.Label)
	assert.Empty(t, list.Items)

	sunday, err := fx.svc.GetOrCreateWeek(ctx, fx.user.UserID, "2024-03-17")
	require.NoError(t, err)
	assert.Equal(t, list.ID, sunday.ID)

	next, err := fx.svc.GetOrCreateWeek(ctx, fx.user.UserID, "2024-03-18")
	require.NoError(t, err)
	assert.NotEqual(t, list.ID, next.ID)

	_, err = fx.svc.GetOrCreateWeek(ctx, fx.user.UserID, "18/03/2024")
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
}

func TestShoppingItemCRUD(t *testing.T) {
	fx := newShoppingFixture(t)
	ctx := context.Background()

	item, err := fx.svc.AddItem(ctx, fx.user.UserID, "", ShoppingItemInput{Name: " Cheddar cheese "})
	require.NoError(t, err)
	assert.Equal(t, "Cheddar cheese", item.Name)
	assert.Equal(t, 1.0, item.Quantity)
	assert.Equal(t, "units", item.Unit)
	assert.Equal(t, "dairy_solid", item.Category)
	assert.Equal(t, models.SourceManual, item.Source)

	_, err = fx.svc.AddItem(ctx, fx.user.UserID, "", ShoppingItemInput{Name: "Milk", Quantity: -1})
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))

	item, err = fx.svc.UpdateItem(ctx, fx.user.UserID, item.ID, ShoppingItemInput{Name: "Cheddar", Quantity: 2, Unit: "kg"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, item.Quantity)

	_, err = fx.svc.UpdateItem(ctx, fx.other.UserID, item.ID, ShoppingItemInput{Name: "Stolen"})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	item, err = fx.svc.TogglePurchased(ctx, fx.user.UserID, item.ID)
	require.NoError(t, err)
	assert.True(t, item.IsPurchased)
	assert.NotNil(t, item.PurchasedAt)

	_, err = fx.svc.AddItem(ctx, fx.user.UserID, "", ShoppingItemInput{Name: "Eggs"})
	require.NoError(t, err)
	cleared, err := fx.svc.ClearPurchased(ctx, fx.user.UserID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	list, err := fx.svc.GetOrCreateWeek(ctx, fx.user.UserID, "")
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.NoError(t, fx.svc.DeleteItem(ctx, fx.user.UserID, list.Items[0].ID))
}

func TestShoppingAddRecipeScalesAndMerges(t *testing.T) {
	fx := newShoppingFixture(t)
	ctx := context.Background()
	recipe, err := fx.recipes.CreateRecipe(ctx, fx.user, sampleRecipe("Garlic Pasta"))
	require.NoError(t, err)

	_, err = fx.svc.AddItem(ctx, fx.user.UserID, "", ShoppingItemInput{Name: "pasta", Quantity: 100, Unit: "g"})
	require.NoError(t, err)

	list, err := fx.svc.AddRecipe(ctx, fx.user, AddRecipeInput{RecipeID: recipe.ID, Servings: 8})
	require.NoError(t, err)
	require.Len(t, list.Items, 4)

	pasta := itemNamed(t, list, "pasta")
	assert.Equal(t, 500.0, pasta.Quantity)
	assert.Equal(t, models.SourceMixed, pasta.Source)

	garlic := itemNamed(t, list, "Garlic")
	assert.Equal(t, 4.0, garlic.Quantity)
	assert.Equal(t, "pieces", garlic.Unit)
	assert.Equal(t, models.SourceRecipe, garlic.Source)
	require.NotNil(t, garlic.RecipeID)
	assert.Equal(t, recipe.ID, *garlic.RecipeID)

	oil := itemNamed(t, list, "Olive oil")
	assert.Equal(t, "tbsp", oil.Unit)
	assert.Equal(t, "oils", oil.Category)

	list, err = fx.svc.AddRecipe(ctx, fx.user, AddRecipeInput{RecipeID: recipe.ID})
	require.NoError(t, err)
	assert.Len(t, list.Items, 4)
	assert.Equal(t, 700.0, itemNamed(t, list, "pasta").Quantity)
	assert.Equal(t, models.SourceRecipe, itemNamed(t, list, "Garlic").Source)

	_, err = fx.svc.AddRecipe(ctx, fx.user, AddRecipeInput{RecipeID: recipe.ID, Servings: 101})
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
}

func TestShoppingAddRecipeOptionalLines(t *testing.T) {
	fx := newShoppingFixture(t)
	ctx := context.Background()
	in := sampleRecipe("Risotto")
	in.Ingredients = "1 onion\n50g parmesan (optional)\n0.001 tsp saffron"
	recipe, err := fx.recipes.CreateRecipe(ctx, fx.user, in)
	require.NoError(t, err)

	list, err := fx.svc.AddRecipe(ctx, fx.user, AddRecipeInput{RecipeID: recipe.ID})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, 0.01, itemNamed(t, list, "Saffron").Quantity)

	list, err = fx.svc.AddRecipe(ctx, fx.user, AddRecipeInput{RecipeID: recipe.ID, Date: "2024-03-20", IncludeOptional: true})
	require.NoError(t, err)
	assert.Len(t, list.Items, 3)
}

func TestShoppingPantryLink(t *testing.T) {
	fx := newShoppingFixture(t)
	ctx := context.Background()
	milk, err := fx.pantry.CreateItem(ctx, fx.user.UserID, PantryItemInput{Name: "Milk", CurrentQuantity: 1, Unit: "litres"})
	require.NoError(t, err)
	_, err = fx.pantry.CreateItem(ctx, fx.user.UserID, PantryItemInput{Name: "Rice", CurrentQuantity: 3})
	require.NoError(t, err)

	list, err := fx.svc.AddLowStock(ctx, fx.user.UserID, "")
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	item := list.Items[0]
	assert.Equal(t, models.SourcePantry, item.Source)
	assert.Equal(t, 4.0, item.Quantity)
	assert.Equal(t, "litres", item.Unit)

	list, err = fx.svc.AddLowStock(ctx, fx.user.UserID, "")
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)

	_, err = fx.svc.TogglePurchased(ctx, fx.user.UserID, item.ID)
	require.NoError(t, err)
	milk, err = fx.pantry.GetItem(ctx, fx.user.UserID, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, milk.CurrentQuantity)
	assert.NotNil(t, milk.LastPurchased)

	history, err := fx.pantry.UsageHistory(ctx, fx.user.UserID, milk.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "purchased", history[0].Reason)

	_, err = fx.svc.TogglePurchased(ctx, fx.user.UserID, item.ID)
	require.NoError(t, err)
	milk, err = fx.pantry.GetItem(ctx, fx.user.UserID, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, milk.CurrentQuantity)
}

func TestShoppingPriceListAndOptimize(t *testing.T) {
	fx := newShoppingFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Optimize(ctx, fx.user.UserID, "")
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))

	_, err = fx.prices.Submit(ctx, fx.other.UserID, PriceSubmission{ShopName: "Tesco", ShopLocation: "Corner shop", ItemName: "Bread", Price: "1.20"})
	require.NoError(t, err)

	for _, in := range []ShoppingItemInput{
		{Name: "Bread", Quantity: 2},
		{Name: "Pasta", Quantity: 500, Unit: "g"},
		{Name: "Dragonfruit"},
	} {
		_, err := fx.svc.AddItem(ctx, fx.user.UserID, "", in)
		require.NoError(t, err)
	}

	result, err := fx.svc.PriceList(ctx, fx.user.UserID, "")
	require.NoError(t, err)
	assert.Equal(t, 3, result.ItemsChecked)
	assert.Equal(t, 3, result.ItemsWithPrices)
	assert.InDelta(t, 7.70, result.TotalEstimatedCost, 0.001)
	assert.Equal(t, map[string]int{PriceSourceCommunity: 1, PriceSourceEstimate: 2}, result.Sources)
	assert.Equal(t, "Tesco", result.Items[0].ShopName)
	assert.InDelta(t, 2.40, result.Items[0].Total, 0.001)
	assert.Equal(t, "Budget Supermarket", result.Items[0].CheapestStore)
	assert.InDelta(t, 2.04, result.Items[0].CheapestPrice, 0.001)
	assert.Equal(t, "Budget Supermarket", result.Items[1].CheapestStore)
	assert.InDelta(t, 1.53, result.Items[1].CheapestPrice, 0.001)

	list, err := fx.svc.GetOrCreateWeek(ctx, fx.user.UserID, "")
	require.NoError(t, err)
	bread := itemNamed(t, list, "Bread")
	require.NotNil(t, bread.EstimatedPrice)
	assert.Equal(t, PriceSourceCommunity, bread.PriceSource)

	opt, err := fx.svc.Optimize(ctx, fx.user.UserID, "")
	require.NoError(t, err)
	require.Len(t, opt.Strategies, 3)
	assert.Equal(t, "Budget Supermarket", opt.Strategies[0].Name)
	assert.InDelta(t, 6.55, opt.Strategies[0].TotalCost, 0.02)
	assert.Equal(t, "multi_store_cheapest", opt.Strategies[1].Type)
	assert.Equal(t, 1, opt.Strategies[1].NumTrips)
	assert.Equal(t, "Mid-range Store", opt.Strategies[2].Name)
	assert.InDelta(t, 3.85, opt.PotentialSavings, 0.02)

	refreshed, err := fx.svc.RefreshPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, refreshed)
}

func TestShoppingPriceFallback(t *testing.T) {
	fx := newShoppingFixture(t)
	fx.svc.estimator, fx.svc.prices = nil, nil
	ctx := context.Background()

	_, err := fx.svc.AddItem(ctx, fx.user.UserID, "", ShoppingItemInput{Name: "Tofu", Quantity: 2})
	require.NoError(t, err)
	result, err := fx.svc.PriceList(ctx, fx.user.UserID, "")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ItemsWithPrices)
	assert.Equal(t, 6.0, result.TotalEstimatedCost)
	assert.Equal(t, PriceSourceFallback, result.Items[0].Source)
}

func TestShoppingIngredientMapping(t *testing.T) {
	fx := newShoppingFixture(t)
	ctx := context.Background()

	_, err := fx.svc.ParseIngredient("  ")
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
	mapping, err := fx.svc.ParseIngredient("2 tbsp olive oil")
	require.NoError(t, err)
	assert.Equal(t, "Olive oil", mapping.ProductName)
	assert.Equal(t, "bottle", mapping.Unit)
	assert.True(t, mapping.Package.BuyWhole)

	recipe, err := fx.recipes.CreateRecipe(ctx, fx.user, sampleRecipe("Garlic Pasta"))
	require.NoError(t, err)
	preview, err := fx.svc.PreviewRecipe(ctx, fx.user, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Garlic Pasta", preview.RecipeTitle)
	require.Equal(t, 4, preview.TotalItems)
	require.Len(t, preview.Conversions, 4)
	assert.Equal(t, "kg", preview.Conversions[0].Unit)
	assert.Equal(t, 0.5, preview.Conversions[0].Quantity)
	assert.Equal(t, "bottle", preview.Conversions[2].Unit)

	sum := 0.0
	for _, line := range preview.Conversions {
		assert.Greater(t, line.EstimatedPrice, 0.0)
		sum += line.EstimatedPrice
	}
	assert.InDelta(t, sum, preview.EstimatedTotal, 0.01)

	list, err := fx.svc.GetOrCreateWeek(ctx, fx.user.UserID, "")
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	_, err = fx.svc.PreviewRecipe(ctx, fx.user, "missing")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestShoppingItemPrices(t *testing.T) {
	fx := newShoppingFixture(t)
	ctx := context.Background()

	_, err := fx.prices.Submit(ctx, fx.other.UserID, PriceSubmission{ShopName: "Tesco", ShopLocation: "Corner shop", ItemName: "Bread", Price: "1.20"})
	require.NoError(t, err)
	bread, err := fx.svc.AddItem(ctx, fx.user.UserID, "", ShoppingItemInput{Name: "Bread"})
	require.NoError(t, err)
	pasta, err := fx.svc.AddItem(ctx, fx.user.UserID, "", ShoppingItemInput{Name: "Pasta", Quantity: 500, Unit: "g"})
	require.NoError(t, err)

	community, err := fx.svc.ItemPrices(ctx, fx.user.UserID, bread.ID)
	require.NoError(t, err)
	assert.Equal(t, PriceSourceCommunity, community.DataSource)
	require.Len(t, community.Prices, 1)
	assert.False(t, community.Prices[0].IsEstimate)
	assert.Equal(t, "user-submitted", community.Prices[0].Confidence)
	assert.Equal(t, "Tesco", community.CheapestStore)
	assert.Equal(t, 1.20, community.CheapestPrice)

	estimated, err := fx.svc.ItemPrices(ctx, fx.user.UserID, pasta.ID)
	require.NoError(t, err)
	assert.Equal(t, PriceSourceEstimate, estimated.DataSource)
	require.Len(t, estimated.Prices, 4)
	assert.True(t, estimated.Prices[0].IsEstimate)
	assert.Equal(t, "Budget Supermarket", estimated.CheapestStore)
	assert.InDelta(t, 1.53, estimated.CheapestPrice, 0.001)
	assert.Equal(t, "Local Shop", estimated.Prices[3].Store)

	_, err = fx.svc.ItemPrices(ctx, fx.other.UserID, pasta.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}
