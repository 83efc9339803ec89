// Package pricing estimates UK grocery prices from static averages adjusted
// for region.
package pricing

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Sources reported on estimates.
const (
	SourceStatistical = "UK Statistical Averages"
	SourceFallback    = "Fallback Estimate"
)

// FallbackPrice is used when nothing better is known about an item.
const FallbackPrice = 3.00

// Estimate is a statistical price guess for one item.
type Estimate struct {
	ItemName       string    `json:"itemName"`
	EstimatedPrice float64   `json:"estimatedPrice"`
	Confidence     string    `json:"confidence"`
	DataSource     string    `json:"dataSource"`
	PostcodeArea   string    `json:"postcodeArea"`
	PriceRangeMin  float64   `json:"priceRangeMin"`
	PriceRangeMax  float64   `json:"priceRangeMax"`
	RegionalFactor float64   `json:"regionalFactor"`
	EstimatedAt    time.Time `json:"estimatedAt"`
}

// StoreQuote is the estimated price of an item at a class of store.
type StoreQuote struct {
	Store          string  `json:"store"`
	EstimatedPrice float64 `json:"estimatedPrice"`
	Confidence     string  `json:"confidence"`
}

type basePrice struct {
	name       string
	price      float64
	unit       string
	confidence string
}

// Rough ONS retail averages, per kg or per unit as noted.
var basePrices = []basePrice{
	{"rice", 2.50, "kg", "high"},
	{"pasta", 1.80, "kg", "high"},
	{"bread", 1.20, "loaf", "high"},
	{"milk", 1.45, "litre", "high"},
	{"eggs", 2.80, "dozen", "high"},
	{"chicken breast", 8.50, "kg", "medium"},
	{"beef mince", 7.20, "kg", "medium"},
	{"potatoes", 1.20, "kg", "high"},
	{"onions", 1.50, "kg", "high"},
	{"carrots", 1.30, "kg", "high"},
	{"tomatoes", 3.50, "kg", "medium"},
	{"bananas", 1.20, "kg", "high"},
	{"apples", 2.80, "kg", "medium"},
	{"cheese", 12.50, "kg", "medium"},
	{"butter", 8.50, "kg", "medium"},
	{"olive oil", 6.50, "litre", "medium"},
	{"flour", 1.20, "kg", "high"},
	{"sugar", 1.50, "kg", "high"},
	{"salt", 2.50, "kg", "high"},
	{"black pepper", 25.00, "kg", "low"},
}

var variations = []struct{ fragment, canonical string }{
	{"chicken", "chicken breast"},
	{"beef", "beef mince"},
	{"mince", "beef mince"},
	{"potato", "potatoes"},
	{"onion", "onions"},
	{"carrot", "carrots"},
	{"tomato", "tomatoes"},
	{"banana", "bananas"},
	{"apple", "apples"},
}

var categoryFallbacks = []struct {
	words []string
	price float64
}{
	{[]string{"meat", "beef", "pork", "lamb"}, 8.50},
	{[]string{"chicken", "poultry"}, 7.50},
	{[]string{"fish", "salmon", "tuna", "cod"}, 12.00},
	{[]string{"fruit", "apple", "orange", "berry"}, 3.50},
	{[]string{"vegetable", "veg", "salad"}, 2.50},
	{[]string{"dairy", "milk", "cream", "yogurt"}, 2.50},
	{[]string{"bread", "bakery", "roll"}, 1.50},
	{[]string{"spice", "herb", "seasoning"}, 15.00},
}

// Store positioning relative to the average price.
var storeFactors = []struct {
	store  string
	factor float64
}{
	{"Budget Supermarket", 0.85},
	{"Mid-range Store", 1.00},
	{"Premium Store", 1.25},
	{"Local Shop", 1.35},
}

func lookupBase(name string) (basePrice, bool) {
	for _, bp := range basePrices {
		if bp.name == name {
			return bp, true
		}
	}
	return basePrice{}, false
}

// basePriceFor finds the closest known price for a lowercased item name.
func basePriceFor(name string) basePrice {
	if bp, ok := lookupBase(name); ok {
		return bp
	}
	for _, v := range variations {
		if strings.Contains(name, v.fragment) {
			bp, _ := lookupBase(v.canonical)
			return bp
		}
	}
	for _, bp := range basePrices {
		if strings.Contains(name, bp.name) || (name != "" && strings.Contains(bp.name, name)) {
			return bp
		}
	}
	for _, c := range categoryFallbacks {
		for _, w := range c.words {
			if strings.Contains(name, w) {
				return basePrice{name: name, price: c.price, confidence: "low"}
			}
		}
	}
	return basePrice{name: name, price: FallbackPrice, confidence: "low"}
}

// Estimator prices items from the static table, caching results per region.
type Estimator struct {
	cache Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewEstimator creates an Estimator. A nil cache disables caching.
func NewEstimator(cache Cache, ttl time.Duration) *Estimator {
	return &Estimator{cache: cache, ttl: ttl, now: time.Now}
}

// Cache exposes the estimator's cache for maintenance jobs.
func (e *Estimator) Cache() Cache {
	return e.cache
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Estimate prices item for the region of pc. An empty postcode uses UK averages.
func (e *Estimator) Estimate(ctx context.Context, item, pc string) Estimate {
	name := strings.ToLower(strings.TrimSpace(item))
	area := RegionArea(pc)
	key := "price:estimate:" + area + ":" + name

	if e.cache != nil {
		var cached Estimate
		hit, err := e.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Price cache read failed")
		} else if hit {
			cached.ItemName = item
			return cached
		}
	}

	bp := basePriceFor(name)
	factor := RegionalFactor(pc)
	price := bp.price * factor
	est := Estimate{
		ItemName:       item,
		EstimatedPrice: round2(price),
		Confidence:     bp.confidence,
		DataSource:     SourceStatistical,
		PostcodeArea:   area,
		PriceRangeMin:  round2(price * 0.8),
		PriceRangeMax:  round2(price * 1.2),
		RegionalFactor: factor,
		EstimatedAt:    e.now(),
	}
	if !(est.EstimatedPrice > 0) {
		est = Estimate{
			ItemName:       item,
			EstimatedPrice: FallbackPrice,
			Confidence:     "low",
			DataSource:     SourceFallback,
			PostcodeArea:   area,
			RegionalFactor: 1,
			EstimatedAt:    e.now(),
		}
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, est, e.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Price cache write failed")
		}
	}
	return est
}

// EstimateMany prices several items for the same region.
func (e *Estimator) EstimateMany(ctx context.Context, items []string, pc string) []Estimate {
	out := make([]Estimate, 0, len(items))
	for _, item := range items {
		out = append(out, e.Estimate(ctx, item, pc))
	}
	return out
}

// StoreComparison spreads an estimate across typical store price points.
func (e *Estimator) StoreComparison(ctx context.Context, item, pc string) []StoreQuote {
	base := e.Estimate(ctx, item, pc)
	out := make([]StoreQuote, 0, len(storeFactors))
	for _, s := range storeFactors {
		out = append(out, StoreQuote{
			Store:          s.store,
			EstimatedPrice: round2(base.EstimatedPrice * s.factor),
			Confidence:     base.Confidence,
		})
	}
	return out
}

// Stores lists the store classes used in comparisons, cheapest first.
func Stores() []string {
	out := make([]string, 0, len(storeFactors))
	for _, s := range storeFactors {
		out = append(out, s.store)
	}
	return out
}

// StoreFactor returns the multiplier for a store class, or 1 if unknown.
func StoreFactor(store string) float64 {
	for _, s := range storeFactors {
		if s.store == store {
			return s.factor
		}
	}
	return 1
}
