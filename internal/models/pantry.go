package models

import (
	"math"
	"time"
)

// DateLayout is the storage and wire format for calendar dates.
const DateLayout = "2006-01-02"

// PantryCategory groups pantry items for one user.
type PantryCategory struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
	ItemCount int    `json:"itemCount"`
}

// PantryItem is a quantity of an ingredient a user has at home.
type PantryItem struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	CategoryID      *string    `json:"categoryId"`
	Name            string     `json:"name"`
	CurrentQuantity float64    `json:"currentQuantity"`
	Unit            string     `json:"unit"`
	MinQuantity     float64    `json:"minQuantity"`
	IdealQuantity   float64    `json:"idealQuantity"`
	ExpiryDate      *string    `json:"expiryDate"`
	ExpiryAlertDays int        `json:"expiryAlertDays"`
	Barcode         string     `json:"barcode"`
	Notes           string     `json:"notes"`
	LastPurchased   *time.Time `json:"lastPurchased"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	IsLowStock     bool   `json:"isLowStock"`
	IsExpiringSoon bool   `json:"isExpiringSoon"`
	IsExpired      bool   `json:"isExpired"`
	DaysToExpiry   *int   `json:"daysToExpiry"`
	StockStatus    string `json:"stockStatus"`
}

// Stock statuses reported on pantry items.
const (
	StockOut      = "out_of_stock"
	StockLow      = "low_stock"
	StockWell     = "well_stocked"
	StockAdequate = "adequate"
)

// PrepareForAPI fills the derived stock and expiry fields relative to now.
func (p *PantryItem) PrepareForAPI(now time.Time) {
	p.IsLowStock = p.CurrentQuantity <= p.MinQuantity
	switch {
	case p.CurrentQuantity <= 0:
		p.StockStatus = StockOut
	case p.IsLowStock:
		p.StockStatus = StockLow
	case p.CurrentQuantity >= p.IdealQuantity:
		p.StockStatus = StockWell
	default:
		p.StockStatus = StockAdequate
	}

	p.DaysToExpiry, p.IsExpiringSoon, p.IsExpired = nil, false, false
	if p.ExpiryDate == nil {
		return
	}
	expiry, err := time.Parse(DateLayout, *p.ExpiryDate)
	if err != nil {
		return
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Round(expiry.Sub(today).Hours() / 24))
	p.DaysToExpiry = &days
	p.IsExpired = days < 0
	p.IsExpiringSoon = days >= 0 && days <= p.ExpiryAlertDays
}

// PantryUsageLog records one quantity change on a pantry item.
type PantryUsageLog struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"itemId"`
	Change      float64   `json:"change"`
	OldQuantity float64   `json:"oldQuantity"`
	NewQuantity float64   `json:"newQuantity"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LowStockPrediction estimates when a pantry item will drop below its minimum.
type LowStockPrediction struct {
	Item             PantryItem `json:"item"`
	DailyConsumption float64    `json:"dailyConsumption"`
	DaysUntilLow     float64    `json:"daysUntilLow"`
}
