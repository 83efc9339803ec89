package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/ingredients"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/homegrubhub/homegrubhub-be/internal/pricing"
	"github.com/rs/zerolog/log"
)

// Price sources recorded on shopping items.
const (
	PriceSourceCommunity = "community"
	PriceSourceEstimate  = "estimate"
	PriceSourceFallback  = "fallback"
)

// ShoppingItemInput is the writable part of a shopping item.
type ShoppingItemInput struct {
	Name         string  `json:"name" validate:"required,max=200"`
	Quantity     float64 `json:"quantity" validate:"gte=0"`
	Unit         string  `json:"unit" validate:"max=20"`
	Category     string  `json:"category" validate:"max=50"`
	Notes        string  `json:"notes" validate:"max=500"`
	PantryItemID *string `json:"pantryItemId"`
}

// AddRecipeInput adds a recipe's ingredients to a week's list.
type AddRecipeInput struct {
	RecipeID        string `json:"recipeId" validate:"required"`
	Servings        int    `json:"servings" validate:"gte=0,lte=100"`
	IncludeOptional bool   `json:"includeOptional"`
	Date            string `json:"date"`
}

// ShoppingServiceProvider defines the interface for shopping list services.
type ShoppingServiceProvider interface {
	GetOrCreateWeek(ctx context.Context, userID, date string) (models.ShoppingList, error)
	AddItem(ctx context.Context, userID, date string, in ShoppingItemInput) (models.ShoppingItem, error)
	UpdateItem(ctx context.Context, userID, itemID string, in ShoppingItemInput) (models.ShoppingItem, error)
	DeleteItem(ctx context.Context, userID, itemID string) error
	TogglePurchased(ctx context.Context, userID, itemID string) (models.ShoppingItem, error)
	ClearPurchased(ctx context.Context, userID, date string) (int64, error)
	AddRecipe(ctx context.Context, viewer auth.Viewer, in AddRecipeInput) (models.ShoppingList, error)
	AddLowStock(ctx context.Context, userID, date string) (models.ShoppingList, error)
	PriceList(ctx context.Context, userID, date string) (models.ListPricing, error)
	Optimize(ctx context.Context, userID, date string) (models.ListOptimization, error)
	ParseIngredient(line string) (ingredients.ShoppingItem, error)
	PreviewRecipe(ctx context.Context, viewer auth.Viewer, recipeID string) (IngredientPreview, error)
	ItemPrices(ctx context.Context, userID, itemID string) (models.ItemPriceComparison, error)
}

// ShoppingService manages weekly shopping lists and prices them.
type ShoppingService struct {
	db        *sql.DB
	recipes   *RecipeService
	pantry    *PantryService
	prices    *PriceService
	estimator *pricing.Estimator
	now       func() time.Time
}

// NewShoppingService creates a new ShoppingService.
func NewShoppingService(db *sql.DB, recipes *RecipeService, pantry *PantryService, prices *PriceService, estimator *pricing.Estimator) *ShoppingService {
	return &ShoppingService{db: db, recipes: recipes, pantry: pantry, prices: prices, estimator: estimator, now: time.Now}
}

func (s *ShoppingService) weekOf(date string) (time.Time, error) {
	d, err := parseDate(date, s.now())
	if err != nil {
		return time.Time{}, apperr.Validation("Date must be YYYY-MM-DD")
	}
	return WeekStart(d), nil
}

// ensureList returns the id of the user's list for the week containing date.
func (s *ShoppingService) ensureList(ctx context.Context, userID, date string) (string, time.Time, error) {
	start, err := s.weekOf(date)
	if err != nil {
		return "", start, err
	}
	week := start.Format(models.DateLayout)
	_, err = s.db.ExecContext(ctx, "INSERT OR IGNORE INTO shopping_lists (id, user_id, week_start, created_at) VALUES (?, ?, ?, ?)",
		uuid.New().String(), userID, week, s.now().UTC())
	if err != nil {
		return "", start, fmt.Errorf("failed to create shopping list: %w", err)
	}
	var id string
	err = s.db.QueryRowContext(ctx, "SELECT id FROM shopping_lists WHERE user_id = ? AND week_start = ?", userID, week).Scan(&id)
	return id, start, err
}

// GetOrCreateWeek returns the list for the week containing date (today when empty).
func (s *ShoppingService) GetOrCreateWeek(ctx context.Context, userID, date string) (models.ShoppingList, error) {
	listID, start, err := s.ensureList(ctx, userID, date)
	if err != nil {
		return models.ShoppingList{}, err
	}
	list := models.ShoppingList{ID: listID, UserID: userID, WeekStart: start.Format(models.DateLayout), Label: WeekLabel(start)}
	if err := s.db.QueryRowContext(ctx, "SELECT created_at FROM shopping_lists WHERE id = ?", listID).Scan(&list.CreatedAt); err != nil {
		return list, err
	}
	list.Items, err = s.listItems(ctx, "WHERE list_id = ? ORDER BY is_purchased, category, name COLLATE NOCASE", listID)
	return list, err
}

const shoppingItemColumns = `id, list_id, name, quantity, unit, category, source, recipe_id, pantry_item_id,
	is_purchased, notes, estimated_price, price_source, purchased_at, created_at`

func scanShoppingItem(row scanner) (models.ShoppingItem, error) {
	var i models.ShoppingItem
	err := row.Scan(&i.ID, &i.ListID, &i.Name, &i.Quantity, &i.Unit, &i.Category, &i.Source, &i.RecipeID,
		&i.PantryItemID, &i.IsPurchased, &i.Notes, &i.EstimatedPrice, &i.PriceSource, &i.PurchasedAt, &i.CreatedAt)
	return i, err
}

func (s *ShoppingService) listItems(ctx context.Context, clause string, args ...interface{}) ([]models.ShoppingItem, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+shoppingItemColumns+" FROM shopping_items "+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.ShoppingItem{}
	for rows.Next() {
		item, err := scanShoppingItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *ShoppingService) getItem(ctx context.Context, userID, itemID string) (models.ShoppingItem, error) {
	item, err := scanShoppingItem(s.db.QueryRowContext(ctx, `
		SELECT `+shoppingItemColumns+` FROM shopping_items
		WHERE id = ? AND list_id IN (SELECT id FROM shopping_lists WHERE user_id = ?)`, itemID, userID))
	if isNoRows(err) {
		return item, apperr.NotFound("shopping item", itemID)
	}
	return item, err
}

func (s *ShoppingService) normalizeInput(ctx context.Context, userID string, in *ShoppingItemInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.Validation("Item name is required")
	}
	if in.Quantity < 0 {
		return apperr.Validation("Quantity must be positive")
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Unit == "" {
		in.Unit = "units"
	}
	if in.Category == "" {
		in.Category = ingredients.Category(in.Name)
	}
	if in.PantryItemID != nil && *in.PantryItemID == "" {
		in.PantryItemID = nil
	}
	if in.PantryItemID != nil {
		if _, err := s.pantry.GetItem(ctx, userID, *in.PantryItemID); err != nil {
			return err
		}
	}
	return nil
}

// AddItem adds a manual item to the week containing date.
func (s *ShoppingService) AddItem(ctx context.Context, userID, date string, in ShoppingItemInput) (models.ShoppingItem, error) {
	if err := s.normalizeInput(ctx, userID, &in); err != nil {
		return models.ShoppingItem{}, err
	}
	listID, _, err := s.ensureList(ctx, userID, date)
	if err != nil {
		return models.ShoppingItem{}, err
	}
	source := models.SourceManual
	if in.PantryItemID != nil {
		source = models.SourcePantry
	}
	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shopping_items (id, list_id, name, quantity, unit, category, source, pantry_item_id, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, listID, in.Name, in.Quantity, in.Unit, in.Category, source, in.PantryItemID, in.Notes, s.now().UTC())
	if err != nil {
		return models.ShoppingItem{}, fmt.Errorf("failed to add shopping item: %w", err)
	}
	return s.getItem(ctx, userID, id)
}

// UpdateItem edits an item's details.
func (s *ShoppingService) UpdateItem(ctx context.Context, userID, itemID string, in ShoppingItemInput) (models.ShoppingItem, error) {
	if _, err := s.getItem(ctx, userID, itemID); err != nil {
		return models.ShoppingItem{}, err
	}
	if err := s.normalizeInput(ctx, userID, &in); err != nil {
		return models.ShoppingItem{}, err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE shopping_items SET name = ?, quantity = ?, unit = ?, category = ?, notes = ?, pantry_item_id = ?
		WHERE id = ?`, in.Name, in.Quantity, in.Unit, in.Category, in.Notes, in.PantryItemID, itemID)
	if err != nil {
		return models.ShoppingItem{}, fmt.Errorf("failed to update shopping item: %w", err)
	}
	return s.getItem(ctx, userID, itemID)
}

// DeleteItem removes an item from its list.
func (s *ShoppingService) DeleteItem(ctx context.Context, userID, itemID string) error {
	if _, err := s.getItem(ctx, userID, itemID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM shopping_items WHERE id = ?", itemID)
	return err
}

// TogglePurchased flips an item's purchased state. Buying a pantry-linked item
// tops up the pantry by the item's quantity.
func (s *ShoppingService) TogglePurchased(ctx context.Context, userID, itemID string) (models.ShoppingItem, error) {
	item, err := s.getItem(ctx, userID, itemID)
	if err != nil {
		return item, err
	}
	purchased := !item.IsPurchased
	var at *time.Time
	if purchased {
		now := s.now().UTC()
		at = &now
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE shopping_items SET is_purchased = ?, purchased_at = ? WHERE id = ?", purchased, at, itemID); err != nil {
		return item, err
	}
	if purchased && item.PantryItemID != nil {
		if _, err := s.pantry.RecordPurchase(ctx, userID, *item.PantryItemID, item.Quantity); err != nil {
			return item, err
		}
	}
	return s.getItem(ctx, userID, itemID)
}

// ClearPurchased deletes the purchased items of a week and returns how many went.
func (s *ShoppingService) ClearPurchased(ctx context.Context, userID, date string) (int64, error) {
	listID, _, err := s.ensureList(ctx, userID, date)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM shopping_items WHERE list_id = ? AND is_purchased = 1", listID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// recipeLine is one ingredient converted for a shopping list.
type recipeLine struct {
	name     string
	quantity float64
	unit     string
	category string
}

func recipeLines(text string, factor float64, includeOptional bool) []recipeLine {
	var out []recipeLine
	for _, line := range ingredients.Lines(text) {
		if !includeOptional && strings.Contains(strings.ToLower(line), "optional") {
			continue
		}
		ing := ingredients.Parse(line)
		qty := math.Max(0.01, math.Round(ing.Quantity*factor*100)/100)
		out = append(out, recipeLine{
			name:     ingredients.ProductName(ing.Name),
			quantity: qty,
			unit:     ingredients.ListUnit(ing.Unit),
			category: ingredients.Category(ing.Name),
		})
	}
	return out
}

// mergeItem adds qty to a matching unpurchased item or inserts a new one.
func mergeItem(ctx context.Context, tx *sql.Tx, listID string, line recipeLine, source string, recipeID *string, now time.Time) error {
	var id, existing string
	err := tx.QueryRowContext(ctx, `
		SELECT id, source FROM shopping_items
		WHERE list_id = ? AND lower(name) = lower(?) AND unit = ? AND is_purchased = 0 LIMIT 1`,
		listID, line.name, line.unit).Scan(&id, &existing)
	switch {
	case isNoRows(err):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO shopping_items (id, list_id, name, quantity, unit, category, source, recipe_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), listID, line.name, line.quantity, line.unit, line.category, source, recipeID, now)
		return err
	case err != nil:
		return err
	}
	next := existing
	if existing != source {
		next = models.SourceMixed
	}
	_, err = tx.ExecContext(ctx, "UPDATE shopping_items SET quantity = ROUND(quantity + ?, 2), source = ? WHERE id = ?", line.quantity, next, id)
	return err
}

// AddRecipe puts a recipe's ingredients on the week's list, scaled to the
// requested servings and merged with matching items already there.
func (s *ShoppingService) AddRecipe(ctx context.Context, viewer auth.Viewer, in AddRecipeInput) (models.ShoppingList, error) {
	recipe, err := s.recipes.GetRecipe(ctx, viewer, in.RecipeID)
	if err != nil {
		return models.ShoppingList{}, err
	}
	if in.Servings < 0 || in.Servings > 100 {
		return models.ShoppingList{}, apperr.Validation("Servings must be between 1 and 100")
	}
	factor := 1.0
	if in.Servings > 0 && recipe.Servings > 0 {
		factor = float64(in.Servings) / float64(recipe.Servings)
	}
	listID, _, err := s.ensureList(ctx, viewer.UserID, in.Date)
	if err != nil {
		return models.ShoppingList{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ShoppingList{}, err
	}
	defer tx.Rollback()

	now := s.now().UTC()
	for _, line := range recipeLines(recipe.Ingredients, factor, in.IncludeOptional) {
		if err := mergeItem(ctx, tx, listID, line, models.SourceRecipe, &recipe.ID, now); err != nil {
			return models.ShoppingList{}, fmt.Errorf("failed to add recipe ingredients: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.ShoppingList{}, err
	}
	return s.GetOrCreateWeek(ctx, viewer.UserID, in.Date)
}

// AddLowStock adds every low-stock pantry item not already on the week's list,
// topping it up to its ideal quantity.
func (s *ShoppingService) AddLowStock(ctx context.Context, userID, date string) (models.ShoppingList, error) {
	low, err := s.pantry.ListItems(ctx, userID, PantryQuery{LowStock: true})
	if err != nil {
		return models.ShoppingList{}, err
	}
	listID, _, err := s.ensureList(ctx, userID, date)
	if err != nil {
		return models.ShoppingList{}, err
	}
	now := s.now().UTC()
	for _, p := range low {
		var exists int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM shopping_items WHERE list_id = ? AND pantry_item_id = ? AND is_purchased = 0", listID, p.ID).Scan(&exists)
		if err != nil {
			return models.ShoppingList{}, err
		}
		if exists > 0 {
			continue
		}
		qty := math.Max(1, p.IdealQuantity-p.CurrentQuantity)
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO shopping_items (id, list_id, name, quantity, unit, category, source, pantry_item_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), listID, p.Name, qty, p.Unit, ingredients.Category(p.Name), models.SourcePantry, p.ID, now)
		if err != nil {
			return models.ShoppingList{}, fmt.Errorf("failed to add pantry item: %w", err)
		}
	}
	return s.GetOrCreateWeek(ctx, userID, date)
}

func (s *ShoppingService) userPostcode(ctx context.Context, userID string) string {
	var pc string
	if err := s.db.QueryRowContext(ctx, "SELECT postcode FROM users WHERE id = ?", userID).Scan(&pc); err != nil && !isNoRows(err) {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to read user postcode")
	}
	return pc
}

// priceItem prices one item from community data, then the statistical
// estimate, then the fallback constant.
func (s *ShoppingService) priceItem(ctx context.Context, item models.ShoppingItem, pc string) models.PricedItem {
	priced := models.PricedItem{ItemID: item.ID, Name: item.Name, Quantity: item.Quantity, Unit: item.Unit}

	if s.prices != nil {
		best, err := s.prices.Best(ctx, item.Name, pc)
		if err != nil {
			log.Warn().Err(err).Str("item", item.Name).Msg("Community price lookup failed")
		} else if best != nil {
			priced.UnitPrice, priced.Source, priced.ShopName = best.Price, PriceSourceCommunity, best.ShopName
			priced.Confidence = "medium"
			if best.IsVerified {
				priced.Confidence = "high"
			}
		}
	}
	if priced.Source == "" && s.estimator != nil {
		est := s.estimator.Estimate(ctx, item.Name, pc)
		if est.DataSource != pricing.SourceFallback {
			priced.UnitPrice, priced.Source, priced.Confidence = est.EstimatedPrice, PriceSourceEstimate, est.Confidence
		}
	}
	if priced.Source == "" {
		priced.UnitPrice, priced.Source, priced.Confidence = pricing.FallbackPrice, PriceSourceFallback, "low"
	}
	priced.Total = lineTotal(priced.UnitPrice, item.Quantity, item.Unit)
	priced.CheapestStore, priced.CheapestPrice = s.cheapestStore(ctx, item, pc, priced)
	return priced
}

// lineTotal multiplies by the count for counted items. Measured quantities
// (grams, spoons) are bought as a single pack.
func lineTotal(price, qty float64, unit string) float64 {
	if unit == "units" || unit == "pieces" {
		return math.Round(price*math.Max(1, math.Ceil(qty))*100) / 100
	}
	return price
}

// PriceList prices every unpurchased item of a week and stores the results on the items.
func (s *ShoppingService) PriceList(ctx context.Context, userID, date string) (models.ListPricing, error) {
	listID, _, err := s.ensureList(ctx, userID, date)
	if err != nil {
		return models.ListPricing{}, err
	}
	return s.priceListID(ctx, listID, s.userPostcode(ctx, userID))
}

func (s *ShoppingService) priceListID(ctx context.Context, listID, pc string) (models.ListPricing, error) {
	items, err := s.listItems(ctx, "WHERE list_id = ? AND is_purchased = 0 ORDER BY created_at, rowid", listID)
	if err != nil {
		return models.ListPricing{}, err
	}
	result := models.ListPricing{Sources: map[string]int{}, Items: []models.PricedItem{}}
	for _, item := range items {
		result.ItemsChecked++
		priced := s.priceItem(ctx, item, pc)
		if priced.Source != PriceSourceFallback {
			result.ItemsWithPrices++
		}
		result.Sources[priced.Source]++
		result.TotalEstimatedCost += priced.Total
		result.Items = append(result.Items, priced)

		if _, err := s.db.ExecContext(ctx, "UPDATE shopping_items SET estimated_price = ?, price_source = ? WHERE id = ?",
			priced.Total, priced.Source, item.ID); err != nil {
			return result, fmt.Errorf("failed to store item price: %w", err)
		}
	}
	result.TotalEstimatedCost = math.Round(result.TotalEstimatedCost*100) / 100
	return result, nil
}

// Optimize compares buying a priced list at a single store class against
// splitting it across the cheapest store per item, returning the best three.
func (s *ShoppingService) Optimize(ctx context.Context, userID, date string) (models.ListOptimization, error) {
	listID, _, err := s.ensureList(ctx, userID, date)
	if err != nil {
		return models.ListOptimization{}, err
	}
	items, err := s.listItems(ctx, "WHERE list_id = ? AND is_purchased = 0 AND estimated_price IS NOT NULL ORDER BY created_at, rowid", listID)
	if err != nil {
		return models.ListOptimization{}, err
	}
	if len(items) == 0 {
		return models.ListOptimization{}, apperr.Validation("No items with price data found")
	}
	pc := s.userPostcode(ctx, userID)

	stores := pricing.Stores()
	itemPrices := make([]map[string]float64, len(items))
	for i, item := range items {
		prices := map[string]float64{}
		for _, store := range stores {
			prices[store] = math.Round(*item.EstimatedPrice*pricing.StoreFactor(store)*100) / 100
		}
		if item.PriceSource == PriceSourceCommunity && s.prices != nil {
			if best, err := s.prices.Best(ctx, item.Name, pc); err == nil && best != nil {
				prices[best.ShopName] = lineTotal(best.Price, item.Quantity, item.Unit)
				if !contains(stores, best.ShopName) {
					stores = append(stores, best.ShopName)
				}
			}
		}
		itemPrices[i] = prices
	}

	var strategies []models.ShoppingStrategy
	for _, store := range stores {
		st := models.ShoppingStrategy{Name: store, Type: "single_store", NumTrips: 1}
		for _, prices := range itemPrices {
			if p, ok := prices[store]; ok {
				st.TotalCost += p
				st.ItemsAvailable++
			} else {
				st.ItemsMissing++
			}
		}
		st.TotalCost = math.Round(st.TotalCost*100) / 100
		strategies = append(strategies, st)
	}

	multi := models.ShoppingStrategy{Name: "Cheapest mix", Type: "multi_store_cheapest", StoreBreakdown: map[string]float64{}}
	for _, prices := range itemPrices {
		cheapest, price := "", math.Inf(1)
		for _, store := range stores {
			if p, ok := prices[store]; ok && p < price {
				cheapest, price = store, p
			}
		}
		multi.TotalCost += price
		multi.ItemsAvailable++
		multi.StoreBreakdown[cheapest] = math.Round((multi.StoreBreakdown[cheapest]+price)*100) / 100
	}
	multi.TotalCost = math.Round(multi.TotalCost*100) / 100
	multi.NumTrips = len(multi.StoreBreakdown)
	strategies = append(strategies, multi)

	sort.SliceStable(strategies, func(i, j int) bool {
		if strategies[i].ItemsMissing != strategies[j].ItemsMissing {
			return strategies[i].ItemsMissing < strategies[j].ItemsMissing
		}
		return strategies[i].TotalCost < strategies[j].TotalCost
	})

	worst := 0.0
	for _, st := range strategies {
		if st.ItemsMissing == 0 && st.TotalCost > worst {
			worst = st.TotalCost
		}
	}
	savings := math.Max(0, math.Round((worst-strategies[0].TotalCost)*100)/100)
	if len(strategies) > 3 {
		strategies = strategies[:3]
	}
	return models.ListOptimization{Strategies: strategies, PotentialSavings: savings}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// RefreshPrices re-prices the unpurchased items of every list for the current week.
func (s *ShoppingService) RefreshPrices(ctx context.Context) (int, error) {
	week := WeekStart(s.now()).Format(models.DateLayout)
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, u.postcode FROM shopping_lists l JOIN users u ON u.id = l.user_id WHERE l.week_start = ?`, week)
	if err != nil {
		return 0, err
	}
	type target struct{ listID, postcode string }
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.listID, &t.postcode); err != nil {
			rows.Close()
			return 0, err
		}
		targets = append(targets, t)
	}
	rows.Close()

	priced := 0
	for _, t := range targets {
		res, err := s.priceListID(ctx, t.listID, t.postcode)
		if err != nil {
			return priced, err
		}
		priced += res.ItemsChecked
	}
	return priced, nil
}
