package models

import "time"

// Shopping item sources.
const (
	SourceManual = "manual"
	SourceRecipe = "recipe"
	SourcePantry = "pantry"
	SourceMixed  = "mixed"
)

// ShoppingList is a user's list for one week, starting on Monday.
type ShoppingList struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	WeekStart string         `json:"weekStart"`
	Label     string         `json:"label"`
	Items     []ShoppingItem `json:"items"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ShoppingItem is a single product to buy.
type ShoppingItem struct {
	ID             string     `json:"id"`
	ListID         string     `json:"listId"`
	Name           string     `json:"name"`
	Quantity       float64    `json:"quantity"`
	Unit           string     `json:"unit"`
	Category       string     `json:"category"`
	Source         string     `json:"source"`
	RecipeID       *string    `json:"recipeId"`
	PantryItemID   *string    `json:"pantryItemId"`
	IsPurchased    bool       `json:"isPurchased"`
	Notes          string     `json:"notes"`
	EstimatedPrice *float64   `json:"estimatedPrice"`
	PriceSource    string     `json:"priceSource"`
	PurchasedAt    *time.Time `json:"purchasedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// PricedItem is the outcome of pricing one shopping item.
type PricedItem struct {
	ItemID     string  `json:"itemId"`
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	UnitPrice  float64 `json:"unitPrice"`
	Total      float64 `json:"total"`
	Source     string  `json:"source"`
	ShopName   string  `json:"shopName,omitempty"`
	Confidence string  `json:"confidence"`
	// CheapestStore is where this line costs least, empty without price data.
	CheapestStore string  `json:"cheapestStore,omitempty"`
	CheapestPrice float64 `json:"cheapestPrice,omitempty"`
}

// ListPricing summarises the estimated cost of a shopping list.
type ListPricing struct {
	ItemsChecked       int            `json:"itemsChecked"`
	ItemsWithPrices    int            `json:"itemsWithPrices"`
	TotalEstimatedCost float64        `json:"totalEstimatedCost"`
	Sources            map[string]int `json:"sources"`
	Items              []PricedItem   `json:"items"`
}

// ShoppingStrategy is one way of buying a whole list.
type ShoppingStrategy struct {
	Name           string             `json:"name"`
	Type           string             `json:"type"`
	TotalCost      float64            `json:"totalCost"`
	ItemsAvailable int                `json:"itemsAvailable"`
	ItemsMissing   int                `json:"itemsMissing"`
	NumTrips       int                `json:"numTrips"`
	StoreBreakdown map[string]float64 `json:"storeBreakdown,omitempty"`
}

// ListOptimization ranks the cheapest strategies for a list.
type ListOptimization struct {
	Strategies       []ShoppingStrategy `json:"strategies"`
	PotentialSavings float64            `json:"potentialSavings"`
}

// StorePrice is one store's price for a shopping item.
type StorePrice struct {
	Store             string  `json:"store"`
	Price             float64 `json:"price"`
	IsEstimate        bool    `json:"isEstimate"`
	Confidence        string  `json:"confidence"`
	PriceID           string  `json:"priceId,omitempty"`
	Location          string  `json:"location,omitempty"`
	VerificationCount int     `json:"verificationCount,omitempty"`
}

// ItemPriceComparison lists store prices for one shopping item, cheapest first.
type ItemPriceComparison struct {
	ItemID        string       `json:"itemId"`
	ItemName      string       `json:"itemName"`
	DataSource    string       `json:"dataSource"`
	Postcode      string       `json:"postcode,omitempty"`
	Prices        []StorePrice `json:"prices"`
	CheapestStore string       `json:"cheapestStore,omitempty"`
	CheapestPrice float64      `json:"cheapestPrice,omitempty"`
}
