package services

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/ingredients"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/rs/zerolog/log"
)

// PreviewLine is one recipe ingredient converted into something to buy.
type PreviewLine struct {
	ingredients.ShoppingItem
	EstimatedPrice float64 `json:"estimatedPrice"`
	Confidence     string  `json:"confidence"`
}

// IngredientPreview shows how a recipe would land on a shopping list.
type IngredientPreview struct {
	RecipeID       string        `json:"recipeId"`
	RecipeTitle    string        `json:"recipeTitle"`
	Conversions    []PreviewLine `json:"conversions"`
	TotalItems     int           `json:"totalItems"`
	EstimatedTotal float64       `json:"estimatedTotal"`
}

// ParseIngredient maps a single free-text ingredient line to a purchasable product.
func (s *ShoppingService) ParseIngredient(line string) (ingredients.ShoppingItem, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return ingredients.ShoppingItem{}, apperr.Validation("Ingredient is required")
	}
	return ingredients.Map(line), nil
}

// PreviewRecipe converts a recipe's ingredients into purchasable products and
// prices them for the viewer's region without touching any list.
func (s *ShoppingService) PreviewRecipe(ctx context.Context, viewer auth.Viewer, recipeID string) (IngredientPreview, error) {
	recipe, err := s.recipes.GetRecipe(ctx, viewer, recipeID)
	if err != nil {
		return IngredientPreview{}, err
	}
	items := ingredients.FromRecipe(recipe.Ingredients)
	preview := IngredientPreview{RecipeID: recipe.ID, RecipeTitle: recipe.Title, Conversions: []PreviewLine{}, TotalItems: len(items)}

	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.ProductName
	}
	var estimates []float64
	var confidence []string
	if s.estimator != nil {
		for _, est := range s.estimator.EstimateMany(ctx, names, s.userPostcode(ctx, viewer.UserID)) {
			estimates = append(estimates, est.EstimatedPrice)
			confidence = append(confidence, est.Confidence)
		}
	}

	for i, item := range items {
		line := PreviewLine{ShoppingItem: item}
		if i < len(estimates) {
			line.EstimatedPrice, line.Confidence = estimates[i], confidence[i]
			preview.EstimatedTotal += estimates[i]
		}
		preview.Conversions = append(preview.Conversions, line)
	}
	preview.EstimatedTotal = math.Round(preview.EstimatedTotal*100) / 100
	return preview, nil
}

// ItemPrices compares stores for one shopping item. Community prices near the
// user win; without any, the statistical estimate is spread across store classes.
func (s *ShoppingService) ItemPrices(ctx context.Context, userID, itemID string) (models.ItemPriceComparison, error) {
	item, err := s.getItem(ctx, userID, itemID)
	if err != nil {
		return models.ItemPriceComparison{}, err
	}
	pc := s.userPostcode(ctx, userID)
	out := models.ItemPriceComparison{ItemID: item.ID, ItemName: item.Name, Postcode: pc, Prices: []models.StorePrice{}}

	if s.prices != nil {
		community, err := s.prices.ListForItem(ctx, item.Name, pc)
		if err != nil {
			log.Warn().Err(err).Str("item", item.Name).Msg("Community price lookup failed")
		}
		for _, p := range community {
			confidence := "user-submitted"
			if p.IsVerified {
				confidence = "verified"
			}
			out.Prices = append(out.Prices, models.StorePrice{
				Store:             p.ShopName,
				Price:             p.Price,
				Confidence:        confidence,
				PriceID:           p.ID,
				Location:          p.ShopLocation,
				VerificationCount: p.VerificationCount,
			})
		}
	}
	out.DataSource = PriceSourceCommunity
	if len(out.Prices) == 0 && s.estimator != nil {
		out.DataSource = PriceSourceEstimate
		for _, q := range s.estimator.StoreComparison(ctx, item.Name, pc) {
			out.Prices = append(out.Prices, models.StorePrice{Store: q.Store, Price: q.EstimatedPrice, IsEstimate: true, Confidence: q.Confidence})
		}
	}
	if len(out.Prices) == 0 {
		out.DataSource = PriceSourceFallback
		return out, nil
	}

	sort.SliceStable(out.Prices, func(i, j int) bool { return out.Prices[i].Price < out.Prices[j].Price })
	out.CheapestStore, out.CheapestPrice = out.Prices[0].Store, out.Prices[0].Price
	return out, nil
}

// cheapestStore picks the lowest line total among the store classes and the
// community shop already chosen for priced.
func (s *ShoppingService) cheapestStore(ctx context.Context, item models.ShoppingItem, pc string, priced models.PricedItem) (string, float64) {
	store, price := "", math.Inf(1)
	if priced.Source == PriceSourceCommunity && priced.ShopName != "" {
		store, price = priced.ShopName, priced.Total
	}
	if s.estimator != nil {
		for _, q := range s.estimator.StoreComparison(ctx, item.Name, pc) {
			if total := lineTotal(q.EstimatedPrice, item.Quantity, item.Unit); total < price {
				store, price = q.Store, total
			}
		}
	}
	if store == "" {
		return "", 0
	}
	return store, price
}
