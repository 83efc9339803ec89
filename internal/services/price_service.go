package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/ingredients"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/homegrubhub/homegrubhub-be/internal/postcode"
	"github.com/rs/zerolog/log"
)

const (
	verifiedThreshold = 3
	hiddenFlagCount   = 3
	priceListLimit    = 20
)

// PriceText accepts a price as a JSON number or a shelf-label string such as "£1,250.00".
type PriceText string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PriceText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = PriceText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("price must be a number or string")
	}
	*p = PriceText(n.String())
	return nil
}

// PriceSubmission is a user's report of a shelf price.
type PriceSubmission struct {
	ShopName     string    `json:"shopName" validate:"required,max=100"`
	ShopLocation string    `json:"shopLocation" validate:"required,max=200"`
	ItemName     string    `json:"itemName" validate:"required,max=200"`
	Brand        string    `json:"brand" validate:"max=100"`
	Size         string    `json:"size" validate:"max=50"`
	Price        PriceText `json:"price" validate:"required"`
	IsOffer      bool      `json:"isOffer"`
	OfferDetails string    `json:"offerDetails" validate:"max=200"`
}

// PriceServiceProvider defines the interface for community price services.
type PriceServiceProvider interface {
	Submit(ctx context.Context, userID string, in PriceSubmission) (models.CommunityPrice, error)
	ListForItem(ctx context.Context, item, userPostcode string) ([]models.CommunityPrice, error)
	Best(ctx context.Context, item, userPostcode string) (*models.CommunityPrice, error)
	Verify(ctx context.Context, userID, priceID string, accurate bool, comment string) (models.CommunityPrice, error)
	Flag(ctx context.Context, userID, priceID string) (models.CommunityPrice, error)
	Recent(ctx context.Context, days int) ([]models.CommunityPrice, error)
	MySubmissions(ctx context.Context, userID string) ([]models.CommunityPrice, error)
	NearbyShops(ctx context.Context, pc string, radius int) ([]models.ShopLocation, error)
}

// PriceService stores and ranks community-submitted prices.
type PriceService struct {
	db           *sql.DB
	eventService EventServiceProvider
	postcodes    postcode.Lookuper
	now          func() time.Time
}

// NewPriceService creates a new PriceService. A nil lookuper skips shop geocoding.
func NewPriceService(db *sql.DB, eventService EventServiceProvider, postcodes postcode.Lookuper) *PriceService {
	return &PriceService{db: db, eventService: eventService, postcodes: postcodes, now: time.Now}
}

// ParsePrice strips currency symbols and separators and checks 0 < price <= 1000.
func ParsePrice(raw string) (float64, error) {
	clean := strings.NewReplacer("£", "", ",", "", " ", "").Replace(strings.TrimSpace(raw))
	price, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(price) {
		return 0, apperr.Validation("Invalid price format")
	}
	if price <= 0 {
		return 0, apperr.Validation("Price must be positive")
	}
	if price > 1000 {
		return 0, apperr.Validation("Price seems too high, please check")
	}
	return math.Round(price*100) / 100, nil
}

var sizeRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(kg|g|ml|litre|liter|l|oz|lb|pack|each|count)`)

var perStandardUnit = map[string]float64{
	"g": 1000, "kg": 1, "ml": 1000, "l": 1, "litre": 1, "liter": 1, "oz": 35.274, "lb": 2.205,
}

// PricePerUnit converts a price for a pack size into a price per kg or litre.
// Sizes counted in packs or items have no per-unit price.
func PricePerUnit(price float64, size string) *float64 {
	m := sizeRe.FindStringSubmatch(strings.ToLower(size))
	if m == nil {
		return nil
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil || amount <= 0 {
		return nil
	}
	per, ok := perStandardUnit[m[2]]
	if !ok {
		return nil
	}
	v := math.Round(price/(amount/per)*100) / 100
	return &v
}

const priceColumns = `id, user_id, shop_name, shop_location, postcode, postcode_area, item_name, normalized_name,
	brand, size, price, price_per_unit, is_offer, offer_details, is_verified, verification_count, flag_count,
	submitted_at, verified_at`

func (s *PriceService) scanPrice(row scanner) (models.CommunityPrice, error) {
	var p models.CommunityPrice
	err := row.Scan(&p.ID, &p.UserID, &p.ShopName, &p.ShopLocation, &p.Postcode, &p.PostcodeArea, &p.ItemName,
		&p.NormalizedName, &p.Brand, &p.Size, &p.Price, &p.PricePerUnit, &p.IsOffer, &p.OfferDetails,
		&p.IsVerified, &p.VerificationCount, &p.FlagCount, &p.SubmittedAt, &p.VerifiedAt)
	if err != nil {
		return p, err
	}
	p.DaysOld = int(s.now().UTC().Sub(p.SubmittedAt).Hours() / 24)
	return p, nil
}

func (s *PriceService) queryPrices(ctx context.Context, query string, args ...interface{}) ([]models.CommunityPrice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.CommunityPrice{}
	for rows.Next() {
		p, err := s.scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PriceService) get(ctx context.Context, id string) (models.CommunityPrice, error) {
	p, err := s.scanPrice(s.db.QueryRowContext(ctx, "SELECT "+priceColumns+" FROM community_prices WHERE id = ?", id))
	if isNoRows(err) {
		return p, apperr.NotFound("price", id)
	}
	return p, err
}

// Submit validates and stores a price, geocoding the shop when a postcode is
// found in its location.
func (s *PriceService) Submit(ctx context.Context, userID string, in PriceSubmission) (models.CommunityPrice, error) {
	shop := trimTo(in.ShopName, 100)
	item := trimTo(in.ItemName, 200)
	location := trimTo(in.ShopLocation, 200)
	if shop == "" || item == "" || location == "" {
		return models.CommunityPrice{}, apperr.Validation("Shop name, item name, price and shop location are required")
	}
	price, err := ParsePrice(string(in.Price))
	if err != nil {
		return models.CommunityPrice{}, err
	}
	size := trimTo(in.Size, 50)

	var pc, area *string
	if found, ok := postcode.Extract(location); ok {
		pc = &found
		a := postcode.Area(found)
		area = &a
		s.recordShopLocation(ctx, shop, found)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO community_prices (id, user_id, shop_name, shop_location, postcode, postcode_area, item_name,
			normalized_name, brand, size, price, price_per_unit, is_offer, offer_details, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, shop, location, pc, area, item, ingredients.Normalize(item), trimTo(in.Brand, 100), size,
		price, PricePerUnit(price, size), in.IsOffer, trimTo(in.OfferDetails, 200), s.now().UTC())
	if err != nil {
		return models.CommunityPrice{}, fmt.Errorf("failed to submit price: %w", err)
	}

	s.eventService.Record(ctx, "price.submit", LevelInfo, fmt.Sprintf("Price submitted for %s at %s", item, shop), &userID)
	return s.get(ctx, id)
}

func (s *PriceService) recordShopLocation(ctx context.Context, shop, pc string) {
	if s.postcodes == nil {
		return
	}
	loc, err := s.postcodes.Lookup(ctx, pc)
	if err != nil {
		log.Warn().Err(err).Str("postcode", pc).Msg("Shop postcode lookup failed")
		return
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shop_locations (id, shop_name, postcode, postcode_area, town, latitude, longitude, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (shop_name, postcode) DO UPDATE SET
			town = excluded.town, latitude = excluded.latitude, longitude = excluded.longitude, updated_at = excluded.updated_at`,
		uuid.New().String(), shop, pc, postcode.Area(pc), loc.Town, loc.Latitude, loc.Longitude, s.now().UTC())
	if err != nil {
		log.Warn().Err(err).Str("shop", shop).Msg("Failed to store shop location")
	}
}

// ListForItem returns up to 20 visible prices whose normalized name contains
// the item. With a postcode, only the same area or prices without an area are kept.
func (s *PriceService) ListForItem(ctx context.Context, item, userPostcode string) ([]models.CommunityPrice, error) {
	name := ingredients.Normalize(item)
	if name == "" {
		return nil, apperr.Validation("Item name is required")
	}
	query := "SELECT " + priceColumns + " FROM community_prices WHERE normalized_name LIKE ? AND flag_count < ?"
	args := []interface{}{"%" + name + "%", hiddenFlagCount}
	if area := postcode.Area(userPostcode); area != "" {
		query += " AND (postcode_area = ? OR postcode_area IS NULL)"
		args = append(args, area)
	}
	query += " ORDER BY is_verified DESC, verification_count DESC, submitted_at DESC LIMIT ?"
	args = append(args, priceListLimit)
	return s.queryPrices(ctx, query, args...)
}

// Best returns the cheapest verified price for an item, or failing that the
// most verified one. It returns nil when nobody has submitted a price.
func (s *PriceService) Best(ctx context.Context, item, userPostcode string) (*models.CommunityPrice, error) {
	prices, err := s.ListForItem(ctx, item, userPostcode)
	if err != nil || len(prices) == 0 {
		return nil, err
	}
	var best *models.CommunityPrice
	for i := range prices {
		p := &prices[i]
		if p.IsVerified && (best == nil || p.Price < best.Price) {
			best = p
		}
	}
	if best != nil {
		return best, nil
	}
	best = &prices[0]
	for i := range prices {
		if prices[i].VerificationCount > best.VerificationCount {
			best = &prices[i]
		}
	}
	return best, nil
}

// Verify records a user's vote on someone else's price. Three accurate votes
// mark the price verified.
func (s *PriceService) Verify(ctx context.Context, userID, priceID string, accurate bool, comment string) (models.CommunityPrice, error) {
	price, err := s.get(ctx, priceID)
	if err != nil {
		return price, err
	}
	if price.UserID == userID {
		return price, apperr.Forbidden("You cannot verify your own price submission")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return price, err
	}
	defer tx.Rollback()

	now := s.now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO price_verifications (id, price_id, user_id, is_accurate, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), priceID, userID, accurate, trimTo(comment, 200), now)
	if err != nil {
		if isUniqueViolation(err) {
			return price, apperr.Conflict("You have already verified this price")
		}
		return price, fmt.Errorf("failed to verify price: %w", err)
	}
	if accurate {
		_, err = tx.ExecContext(ctx, `
			UPDATE community_prices SET verification_count = verification_count + 1,
				is_verified = CASE WHEN verification_count + 1 >= ? THEN 1 ELSE is_verified END,
				verified_at = CASE WHEN verification_count + 1 >= ? AND is_verified = 0 THEN ? ELSE verified_at END
			WHERE id = ?`, verifiedThreshold, verifiedThreshold, now, priceID)
		if err != nil {
			return price, err
		}
	}
	if err := tx.Commit(); err != nil {
		return price, err
	}
	return s.get(ctx, priceID)
}

// Flag marks a price as inaccurate, once per user. Prices flagged by three
// users drop out of listings.
func (s *PriceService) Flag(ctx context.Context, userID, priceID string) (models.CommunityPrice, error) {
	price, err := s.get(ctx, priceID)
	if err != nil {
		return price, err
	}
	if price.UserID == userID {
		return price, apperr.Forbidden("You cannot flag your own price submission")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return price, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "INSERT INTO price_flags (id, price_id, user_id, created_at) VALUES (?, ?, ?, ?)",
		uuid.New().String(), priceID, userID, s.now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return price, apperr.Conflict("You have already flagged this price")
		}
		return price, fmt.Errorf("failed to flag price: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE community_prices SET flag_count = flag_count + 1 WHERE id = ?", priceID); err != nil {
		return price, err
	}
	if err := tx.Commit(); err != nil {
		return price, err
	}
	if price.FlagCount+1 == hiddenFlagCount {
		s.eventService.Record(ctx, "price.hidden", LevelWarn, fmt.Sprintf("Price %s hidden after %d flags", priceID, hiddenFlagCount), nil)
	}
	return s.get(ctx, priceID)
}

// Recent lists submissions from the last days days, newest first, for moderation.
func (s *PriceService) Recent(ctx context.Context, days int) ([]models.CommunityPrice, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days)
	return s.queryPrices(ctx, "SELECT "+priceColumns+" FROM community_prices WHERE submitted_at >= ? ORDER BY submitted_at DESC LIMIT 100", cutoff)
}

// MySubmissions lists a user's own submissions, newest first.
func (s *PriceService) MySubmissions(ctx context.Context, userID string) ([]models.CommunityPrice, error) {
	return s.queryPrices(ctx, "SELECT "+priceColumns+" FROM community_prices WHERE user_id = ? ORDER BY submitted_at DESC LIMIT 100", userID)
}

// Radius bounds in metres for nearby shop searches; postcodes.io caps reverse
// lookups at 2km.
const (
	defaultShopRadius = 1000
	maxShopRadius     = 2000
)

// NearbyShops lists shops seen in submissions whose postcode lies within
// radius metres of pc.
func (s *PriceService) NearbyShops(ctx context.Context, pc string, radius int) ([]models.ShopLocation, error) {
	if !postcode.Valid(pc) {
		return nil, apperr.Validation("A valid UK postcode is required")
	}
	if s.postcodes == nil {
		return []models.ShopLocation{}, nil
	}
	if radius <= 0 {
		radius = defaultShopRadius
	}
	if radius > maxShopRadius {
		radius = maxShopRadius
	}

	origin, err := s.postcodes.Lookup(ctx, postcode.Normalize(pc))
	if err != nil {
		return nil, err
	}
	near, err := s.postcodes.Nearby(ctx, origin.Latitude, origin.Longitude, radius)
	if err != nil {
		return nil, err
	}
	codes := []interface{}{postcode.Normalize(pc)}
	for _, loc := range near {
		codes = append(codes, postcode.Normalize(loc.Postcode))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_name, postcode, postcode_area, town, latitude, longitude, updated_at
		FROM shop_locations WHERE postcode IN (`+placeholders(len(codes))+`)
		ORDER BY shop_name, postcode`, codes...)
	if err != nil {
		return nil, fmt.Errorf("failed to list nearby shops: %w", err)
	}
	defer rows.Close()

	shops := []models.ShopLocation{}
	for rows.Next() {
		var l models.ShopLocation
		if err := rows.Scan(&l.ID, &l.ShopName, &l.Postcode, &l.PostcodeArea, &l.Town, &l.Latitude, &l.Longitude, &l.UpdatedAt); err != nil {
			return nil, err
		}
		shops = append(shops, l)
	}
	return shops, rows.Err()
}
