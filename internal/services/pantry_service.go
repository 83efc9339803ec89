package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
)

// DefaultPantryCategories are created for a user the first time they open their pantry.
var DefaultPantryCategories = []string{"Fridge", "Freezer", "Cupboard", "Spices", "Fresh Produce"}

// Quantity operations accepted by AdjustQuantity.
const (
	OpAdd      = "add"
	OpSubtract = "subtract"
	OpSet      = "set"
)

// PantryItemInput is the writable part of a pantry item.
type PantryItemInput struct {
	Name            string   `json:"name" validate:"required,max=100"`
	CategoryID      *string  `json:"categoryId"`
	CurrentQuantity float64  `json:"currentQuantity" validate:"gte=0"`
	Unit            string   `json:"unit" validate:"max=20"`
	MinQuantity     *float64 `json:"minQuantity" validate:"omitempty,gte=0"`
	IdealQuantity   *float64 `json:"idealQuantity" validate:"omitempty,gte=0"`
	ExpiryDate      *string  `json:"expiryDate" validate:"omitempty,datetime=2006-01-02"`
	ExpiryAlertDays *int     `json:"expiryAlertDays" validate:"omitempty,gte=0,lte=365"`
	Barcode         string   `json:"barcode" validate:"max=50"`
	Notes           string   `json:"notes" validate:"max=500"`
}

// PantryQuery filters pantry listings.
type PantryQuery struct {
	CategoryID string
	LowStock   bool
	Expiring   bool
}

// PantryAlert summarises one user's pantry for the daily sweep.
type PantryAlert struct {
	UserID       string
	LowStock     int
	ExpiringSoon int
	Expired      int
}

// PantryServiceProvider defines the interface for pantry services.
type PantryServiceProvider interface {
	ListCategories(ctx context.Context, userID string) ([]models.PantryCategory, error)
	CreateCategory(ctx context.Context, userID, name string) (models.PantryCategory, error)
	UpdateCategory(ctx context.Context, userID, id, name string, sortOrder int) (models.PantryCategory, error)
	DeleteCategory(ctx context.Context, userID, id string) error
	ListItems(ctx context.Context, userID string, q PantryQuery) ([]models.PantryItem, error)
	GetItem(ctx context.Context, userID, id string) (models.PantryItem, error)
	CreateItem(ctx context.Context, userID string, in PantryItemInput) (models.PantryItem, error)
	UpdateItem(ctx context.Context, userID, id string, in PantryItemInput) (models.PantryItem, error)
	DeleteItem(ctx context.Context, userID, id string) error
	AdjustQuantity(ctx context.Context, userID, id string, change float64, op, reason string) (models.PantryItem, error)
	UsageHistory(ctx context.Context, userID, id string) ([]models.PantryUsageLog, error)
	PredictLow(ctx context.Context, userID string) ([]models.LowStockPrediction, error)
}

// PantryService provides business logic for pantry inventories.
type PantryService struct {
	db  *sql.DB
	now func() time.Time
}

// NewPantryService creates a new PantryService.
func NewPantryService(db *sql.DB) *PantryService {
	return &PantryService{db: db, now: time.Now}
}

func (s *PantryService) ensureCategories(ctx context.Context, userID string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pantry_categories WHERE user_id = ?", userID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for i, name := range DefaultPantryCategories {
		_, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO pantry_categories (id, user_id, name, sort_order) VALUES (?, ?, ?, ?)",
			uuid.New().String(), userID, name, i)
		if err != nil {
			return fmt.Errorf("failed to seed pantry categories: %w", err)
		}
	}
	return nil
}

// ListCategories returns the user's categories with item counts, seeding defaults on first use.
func (s *PantryService) ListCategories(ctx context.Context, userID string) ([]models.PantryCategory, error) {
	if err := s.ensureCategories(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.name, c.sort_order, (SELECT COUNT(*) FROM pantry_items i WHERE i.category_id = c.id)
		FROM pantry_categories c WHERE c.user_id = ? ORDER BY c.sort_order, c.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.PantryCategory{}
	for rows.Next() {
		var c models.PantryCategory
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.SortOrder, &c.ItemCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PantryService) getCategory(ctx context.Context, userID, id string) (models.PantryCategory, error) {
	var c models.PantryCategory
	err := s.db.QueryRowContext(ctx, "SELECT id, user_id, name, sort_order FROM pantry_categories WHERE id = ? AND user_id = ?", id, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &c.SortOrder)
	if isNoRows(err) {
		return c, apperr.NotFound("pantry category", id)
	}
	return c, err
}

// CreateCategory adds a category at the end of the user's list.
func (s *PantryService) CreateCategory(ctx context.Context, userID, name string) (models.PantryCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > 50 {
		return models.PantryCategory{}, apperr.Validation("Category name must be between 1 and 50 characters")
	}
	if err := s.ensureCategories(ctx, userID); err != nil {
		return models.PantryCategory{}, err
	}
	c := models.PantryCategory{ID: uuid.New().String(), UserID: userID, Name: name}
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(sort_order), -1) + 1 FROM pantry_categories WHERE user_id = ?", userID).Scan(&c.SortOrder); err != nil {
		return models.PantryCategory{}, err
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO pantry_categories (id, user_id, name, sort_order) VALUES (?, ?, ?, ?)", c.ID, userID, c.Name, c.SortOrder)
	if err != nil {
		if isUniqueViolation(err) {
			return models.PantryCategory{}, apperr.Conflict("A category with that name already exists")
		}
		return models.PantryCategory{}, fmt.Errorf("failed to create category: %w", err)
	}
	return c, nil
}

// UpdateCategory renames or reorders a category.
func (s *PantryService) UpdateCategory(ctx context.Context, userID, id, name string, sortOrder int) (models.PantryCategory, error) {
	if _, err := s.getCategory(ctx, userID, id); err != nil {
		return models.PantryCategory{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > 50 {
		return models.PantryCategory{}, apperr.Validation("Category name must be between 1 and 50 characters")
	}
	_, err := s.db.ExecContext(ctx, "UPDATE pantry_categories SET name = ?, sort_order = ? WHERE id = ?", name, sortOrder, id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.PantryCategory{}, apperr.Conflict("A category with that name already exists")
		}
		return models.PantryCategory{}, fmt.Errorf("failed to update category: %w", err)
	}
	return s.getCategory(ctx, userID, id)
}

// DeleteCategory removes a category; its items become uncategorised.
func (s *PantryService) DeleteCategory(ctx context.Context, userID, id string) error {
	if _, err := s.getCategory(ctx, userID, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM pantry_categories WHERE id = ?", id)
	return err
}

const pantryItemColumns = `id, user_id, category_id, name, current_quantity, unit, min_quantity, ideal_quantity,
	expiry_date, expiry_alert_days, barcode, notes, last_purchased, created_at, updated_at`

func (s *PantryService) scanItem(row scanner) (models.PantryItem, error) {
	var p models.PantryItem
	err := row.Scan(&p.ID, &p.UserID, &p.CategoryID, &p.Name, &p.CurrentQuantity, &p.Unit, &p.MinQuantity,
		&p.IdealQuantity, &p.ExpiryDate, &p.ExpiryAlertDays, &p.Barcode, &p.Notes, &p.LastPurchased,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.PantryItem{}, err
	}
	p.PrepareForAPI(s.now().UTC())
	return p, nil
}

// ListItems returns the user's pantry items, optionally filtered.
func (s *PantryService) ListItems(ctx context.Context, userID string, q PantryQuery) ([]models.PantryItem, error) {
	query := "SELECT " + pantryItemColumns + " FROM pantry_items WHERE user_id = ?"
	args := []interface{}{userID}
	if q.CategoryID != "" {
		query += " AND category_id = ?"
		args = append(args, q.CategoryID)
	}
	if q.LowStock {
		query += " AND current_quantity <= min_quantity"
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY name COLLATE NOCASE", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.PantryItem{}
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, err
		}
		if q.Expiring && !item.IsExpiringSoon {
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetItem returns one of the user's pantry items.
func (s *PantryService) GetItem(ctx context.Context, userID, id string) (models.PantryItem, error) {
	item, err := s.scanItem(s.db.QueryRowContext(ctx, "SELECT "+pantryItemColumns+" FROM pantry_items WHERE id = ? AND user_id = ?", id, userID))
	if isNoRows(err) {
		return models.PantryItem{}, apperr.NotFound("pantry item", id)
	}
	return item, err
}

func (s *PantryService) checkInput(ctx context.Context, userID string, in *PantryItemInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.Validation("Item name is required")
	}
	if in.CurrentQuantity < 0 {
		return apperr.Validation("Quantity cannot be negative")
	}
	if in.Unit == "" {
		in.Unit = "units"
	}
	if in.ExpiryDate != nil {
		if *in.ExpiryDate == "" {
			in.ExpiryDate = nil
		} else if _, err := time.Parse(models.DateLayout, *in.ExpiryDate); err != nil {
			return apperr.Validation("Expiry date must be YYYY-MM-DD")
		}
	}
	if in.CategoryID != nil && *in.CategoryID != "" {
		if _, err := s.getCategory(ctx, userID, *in.CategoryID); err != nil {
			return err
		}
	} else {
		in.CategoryID = nil
	}
	return nil
}

// CreateItem adds an item to the user's pantry.
func (s *PantryService) CreateItem(ctx context.Context, userID string, in PantryItemInput) (models.PantryItem, error) {
	if err := s.checkInput(ctx, userID, &in); err != nil {
		return models.PantryItem{}, err
	}
	minQty, idealQty, alert := 1.0, 5.0, 7
	if in.MinQuantity != nil {
		minQty = *in.MinQuantity
	}
	if in.IdealQuantity != nil {
		idealQty = *in.IdealQuantity
	}
	if in.ExpiryAlertDays != nil {
		alert = *in.ExpiryAlertDays
	}

	id := uuid.New().String()
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pantry_items (id, user_id, category_id, name, current_quantity, unit, min_quantity, ideal_quantity,
			expiry_date, expiry_alert_days, barcode, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, in.CategoryID, in.Name, in.CurrentQuantity, in.Unit, minQty, idealQty,
		in.ExpiryDate, alert, in.Barcode, in.Notes, now, now)
	if err != nil {
		return models.PantryItem{}, fmt.Errorf("failed to create pantry item: %w", err)
	}
	return s.GetItem(ctx, userID, id)
}

// UpdateItem replaces an item's fields. Quantity changes made here are logged as manual edits.
func (s *PantryService) UpdateItem(ctx context.Context, userID, id string, in PantryItemInput) (models.PantryItem, error) {
	existing, err := s.GetItem(ctx, userID, id)
	if err != nil {
		return models.PantryItem{}, err
	}
	if err := s.checkInput(ctx, userID, &in); err != nil {
		return models.PantryItem{}, err
	}
	minQty, idealQty, alert := existing.MinQuantity, existing.IdealQuantity, existing.ExpiryAlertDays
	if in.MinQuantity != nil {
		minQty = *in.MinQuantity
	}
	if in.IdealQuantity != nil {
		idealQty = *in.IdealQuantity
	}
	if in.ExpiryAlertDays != nil {
		alert = *in.ExpiryAlertDays
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.PantryItem{}, err
	}
	defer tx.Rollback()

	now := s.now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE pantry_items SET category_id = ?, name = ?, current_quantity = ?, unit = ?, min_quantity = ?,
			ideal_quantity = ?, expiry_date = ?, expiry_alert_days = ?, barcode = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		in.CategoryID, in.Name, in.CurrentQuantity, in.Unit, minQty, idealQty, in.ExpiryDate, alert,
		in.Barcode, in.Notes, now, id)
	if err != nil {
		return models.PantryItem{}, fmt.Errorf("failed to update pantry item: %w", err)
	}
	if in.CurrentQuantity != existing.CurrentQuantity {
		if err := logUsage(ctx, tx, id, existing.CurrentQuantity, in.CurrentQuantity, "manual edit", now); err != nil {
			return models.PantryItem{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.PantryItem{}, err
	}
	return s.GetItem(ctx, userID, id)
}

// DeleteItem removes an item and its usage history.
func (s *PantryService) DeleteItem(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM pantry_items WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("pantry item", id)
	}
	return nil
}

func logUsage(ctx context.Context, tx *sql.Tx, itemID string, oldQty, newQty float64, reason string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pantry_usage_logs (id, item_id, change, old_quantity, new_quantity, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), itemID, newQty-oldQty, oldQty, newQty, reason, at)
	if err != nil {
		return fmt.Errorf("failed to log pantry usage: %w", err)
	}
	return nil
}

// AdjustQuantity applies change to an item with op add, subtract or set and
// records the change. Subtraction stops at zero.
func (s *PantryService) AdjustQuantity(ctx context.Context, userID, id string, change float64, op, reason string) (models.PantryItem, error) {
	return s.adjust(ctx, userID, id, change, op, reason, false)
}

// RecordPurchase adds a purchased quantity to an item and stamps last_purchased.
func (s *PantryService) RecordPurchase(ctx context.Context, userID, id string, qty float64) (models.PantryItem, error) {
	return s.adjust(ctx, userID, id, qty, OpAdd, "purchased", true)
}

func (s *PantryService) adjust(ctx context.Context, userID, id string, change float64, op, reason string, purchased bool) (models.PantryItem, error) {
	item, err := s.GetItem(ctx, userID, id)
	if err != nil {
		return models.PantryItem{}, err
	}

	var next float64
	switch op {
	case OpAdd:
		if change < 0 {
			return models.PantryItem{}, apperr.Validation("Change must be positive")
		}
		next = item.CurrentQuantity + change
	case OpSubtract:
		if change < 0 {
			return models.PantryItem{}, apperr.Validation("Change must be positive")
		}
		next = math.Max(0, item.CurrentQuantity-change)
	case OpSet:
		if change < 0 {
			return models.PantryItem{}, apperr.Validation("Quantity cannot be negative")
		}
		next = change
	default:
		return models.PantryItem{}, apperr.Validation("Operation must be add, subtract or set")
	}
	if reason == "" {
		reason = op
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.PantryItem{}, err
	}
	defer tx.Rollback()

	now := s.now().UTC()
	if purchased {
		_, err = tx.ExecContext(ctx, "UPDATE pantry_items SET current_quantity = ?, last_purchased = ?, updated_at = ? WHERE id = ?", next, now, now, id)
	} else {
		_, err = tx.ExecContext(ctx, "UPDATE pantry_items SET current_quantity = ?, updated_at = ? WHERE id = ?", next, now, id)
	}
	if err != nil {
		return models.PantryItem{}, fmt.Errorf("failed to adjust quantity: %w", err)
	}
	if err := logUsage(ctx, tx, id, item.CurrentQuantity, next, reason, now); err != nil {
		return models.PantryItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.PantryItem{}, err
	}
	return s.GetItem(ctx, userID, id)
}

// UsageHistory returns the latest 100 quantity changes of an item, newest first.
func (s *PantryService) UsageHistory(ctx context.Context, userID, id string) ([]models.PantryUsageLog, error) {
	if _, err := s.GetItem(ctx, userID, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, change, old_quantity, new_quantity, reason, created_at
		FROM pantry_usage_logs WHERE item_id = ? ORDER BY created_at DESC LIMIT 100`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.PantryUsageLog{}
	for rows.Next() {
		var l models.PantryUsageLog
		if err := rows.Scan(&l.ID, &l.ItemID, &l.Change, &l.OldQuantity, &l.NewQuantity, &l.Reason, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// PredictLow finds items whose average daily use over the last 30 days will
// take them to their minimum within 7 days.
func (s *PantryService) PredictLow(ctx context.Context, userID string) ([]models.LowStockPrediction, error) {
	since := s.now().UTC().AddDate(0, 0, -30)
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.item_id, SUM(-l.change)
		FROM pantry_usage_logs l JOIN pantry_items i ON i.id = l.item_id
		WHERE i.user_id = ? AND l.change < 0 AND l.created_at >= ?
		GROUP BY l.item_id`, userID, since)
	if err != nil {
		return nil, err
	}
	consumed := map[string]float64{}
	for rows.Next() {
		var id string
		var total float64
		if err := rows.Scan(&id, &total); err != nil {
			rows.Close()
			return nil, err
		}
		consumed[id] = total
	}
	rows.Close()

	items, err := s.ListItems(ctx, userID, PantryQuery{})
	if err != nil {
		return nil, err
	}

	out := []models.LowStockPrediction{}
	for _, item := range items {
		used, ok := consumed[item.ID]
		if !ok || used <= 0 {
			continue
		}
		daily := used / 30
		days := math.Max(0, (item.CurrentQuantity-item.MinQuantity)/daily)
		if days <= 7 {
			out = append(out, models.LowStockPrediction{
				Item:             item,
				DailyConsumption: math.Round(daily*1000) / 1000,
				DaysUntilLow:     math.Round(days*10) / 10,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysUntilLow < out[j].DaysUntilLow })
	return out, nil
}

// Alerts counts low, expiring and expired items for every user with a pantry.
func (s *PantryService) Alerts(ctx context.Context) ([]PantryAlert, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+pantryItemColumns+" FROM pantry_items ORDER BY user_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byUser := map[string]*PantryAlert{}
	var order []string
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, err
		}
		a, ok := byUser[item.UserID]
		if !ok {
			a = &PantryAlert{UserID: item.UserID}
			byUser[item.UserID] = a
			order = append(order, item.UserID)
		}
		if item.IsLowStock {
			a.LowStock++
		}
		if item.IsExpiringSoon {
			a.ExpiringSoon++
		}
		if item.IsExpired {
			a.Expired++
		}
	}
	out := make([]PantryAlert, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	return out, rows.Err()
}
