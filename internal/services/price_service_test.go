package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/postcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPostcodes struct {
	calls  []string
	fail   bool
	nearby []postcode.Location
	radius int
}

func (s *stubPostcodes) Lookup(_ context.Context, pc string) (postcode.Location, error) {
	s.calls = append(s.calls, pc)
	if s.fail {
		return postcode.Location{}, errors.New("offline")
	}
	return postcode.Location{Postcode: pc, Area: postcode.Area(pc), Town: "Camden", Latitude: 51.5, Longitude: -0.14}, nil
}

func (s *stubPostcodes) Nearby(_ context.Context, _, _ float64, radius int) ([]postcode.Location, error) {
	s.radius = radius
	return s.nearby, nil
}

type priceFixture struct {
	svc       *PriceService
	postcodes *stubPostcodes
	users     []string
}

func newPriceFixture(t *testing.T, n int) priceFixture {
	t.Helper()
	db := newTestDB(t)
	stub := &stubPostcodes{}
	fx := priceFixture{svc: NewPriceService(db, NewEventService(db), stub), postcodes: stub}
	fx.svc.now = fixedClock("2024-05-01T09:00:00Z")
	for i := 0; i < n; i++ {
		fx.users = append(fx.users, createUser(t, db, "").ID)
	}
	return fx
}

func submission(item, price, location string) PriceSubmission {
	return PriceSubmission{ShopName: "Tesco", ShopLocation: location, ItemName: item, Price: PriceText(price)}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"£1.25", 1.25, false},
		{"1,000", 1000, false},
		{"2.499", 2.5, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"1000.01", 0, true},
		{"cheap", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePrice(tt.in)
			if tt.wantErr {
				assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPricePerUnit(t *testing.T) {
	assert.InDelta(t, 4.0, *PricePerUnit(2.00, "500g"), 0.001)
	assert.InDelta(t, 1.5, *PricePerUnit(3.00, "2 L"), 0.001)
	assert.InDelta(t, 1.1, *PricePerUnit(1.10, "1kg bag"), 0.001)
	assert.InDelta(t, 7.05, *PricePerUnit(1.00, "5oz"), 0.01)
	assert.Nil(t, PricePerUnit(2.00, "6 pack"))
	assert.Nil(t, PricePerUnit(2.00, "large"))
}

func TestPriceTextAcceptsNumbersAndStrings(t *testing.T) {
	var in PriceSubmission
	require.NoError(t, json.Unmarshal([]byte(`{"price": 1.5}`), &in))
	assert.Equal(t, PriceText("1.5"), in.Price)
	require.NoError(t, json.Unmarshal([]byte(`{"price": "£2"}`), &in))
	assert.Equal(t, PriceText("£2"), in.Price)
}

func TestPriceSubmit(t *testing.T) {
	fx := newPriceFixture(t, 1)
	ctx := context.Background()

	in := submission("Own Brand Semi Skimmed Milk", "£1.45", "High St, London nw1 8aa")
	in.Size = "2 litre"
	price, err := fx.svc.Submit(ctx, fx.users[0], in)
	require.NoError(t, err)
	assert.Equal(t, "semi-skimmed milk", price.NormalizedName)
	assert.Equal(t, 1.45, price.Price)
	require.NotNil(t, price.Postcode)
	assert.Equal(t, "NW1 8AA", *price.Postcode)
	assert.Equal(t, "NW", *price.PostcodeArea)
	require.NotNil(t, price.PricePerUnit)
	assert.InDelta(t, 0.725, *price.PricePerUnit, 0.006)
	assert.Equal(t, []string{"NW1 8AA"}, fx.postcodes.calls)

	var town string
	require.NoError(t, fx.svc.db.QueryRow("SELECT town FROM shop_locations WHERE shop_name = 'Tesco'").Scan(&town))
	assert.Equal(t, "Camden", town)

	fx.postcodes.fail = true
	noArea, err := fx.svc.Submit(ctx, fx.users[0], submission("Bread", "1.20", "Corner shop"))
	require.NoError(t, err)
	assert.Nil(t, noArea.Postcode)

	_, err = fx.svc.Submit(ctx, fx.users[0], submission("Bread", "0", "Corner shop"))
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
	_, err = fx.svc.Submit(ctx, fx.users[0], submission("", "1", "Corner shop"))
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
}

func TestPriceSubmitKeepsMultibyteNames(t *testing.T) {
	fx := newPriceFixture(t, 1)
	ctx := context.Background()

	shop := strings.Repeat("ü", 100)
	in := submission("Crème fraîche", "1.75", "Market")
	in.ShopName = shop + "  "
	price, err := fx.svc.Submit(ctx, fx.users[0], in)
	require.NoError(t, err)
	assert.Equal(t, shop, price.ShopName)
	assert.Equal(t, "Crème fraîche", price.ItemName)

	in.ShopName = shop + "ü"
	price, err = fx.svc.Submit(ctx, fx.users[0], in)
	require.NoError(t, err)
	assert.Equal(t, shop, price.ShopName)
}

func TestTrimTo(t *testing.T) {
	assert.Equal(t, "héllo", trimTo("  héllo  ", 10))
	assert.Equal(t, "hé", trimTo("héllo", 2))
	assert.Equal(t, "", trimTo("   ", 3))
}

func TestPriceListingAndBest(t *testing.T) {
	fx := newPriceFixture(t, 5)
	ctx := context.Background()
	submitter := fx.users[0]

	cheap, err := fx.svc.Submit(ctx, submitter, submission("Milk", "1.10", "Leeds LS1 4AP"))
	require.NoError(t, err)
	dear, err := fx.svc.Submit(ctx, submitter, submission("Milk", "1.60", "Leeds LS1 4AP"))
	require.NoError(t, err)
	anywhere, err := fx.svc.Submit(ctx, submitter, submission("Milk", "1.30", "Online"))
	require.NoError(t, err)
	_, err = fx.svc.Submit(ctx, submitter, submission("Milk", "1.00", "London SW1A 1AA"))
	require.NoError(t, err)

	prices, err := fx.svc.ListForItem(ctx, "milk", "LS2 7HY")
	require.NoError(t, err)
	assert.Len(t, prices, 3)

	// With nothing verified the most verified price wins.
	_, err = fx.svc.Verify(ctx, fx.users[1], anywhere.ID, true, "")
	require.NoError(t, err)
	best, err := fx.svc.Best(ctx, "milk", "LS2 7HY")
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, anywhere.ID, best.ID)

	for _, u := range fx.users[1:4] {
		_, err = fx.svc.Verify(ctx, u, dear.ID, true, "")
		require.NoError(t, err)
	}
	best, err = fx.svc.Best(ctx, "milk", "LS2 7HY")
	require.NoError(t, err)
	assert.Equal(t, dear.ID, best.ID)

	for _, u := range fx.users[1:4] {
		_, err = fx.svc.Verify(ctx, u, cheap.ID, true, "")
		require.NoError(t, err)
	}
	best, err = fx.svc.Best(ctx, "milk", "LS2 7HY")
	require.NoError(t, err)
	assert.Equal(t, cheap.ID, best.ID)

	prices, err = fx.svc.ListForItem(ctx, "milk", "LS2 7HY")
	require.NoError(t, err)
	assert.True(t, prices[0].IsVerified)

	none, err := fx.svc.Best(ctx, "caviar", "")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPriceVerifyRules(t *testing.T) {
	fx := newPriceFixture(t, 4)
	ctx := context.Background()
	price, err := fx.svc.Submit(ctx, fx.users[0], submission("Eggs", "2.80", "Bristol BS1 5TR"))
	require.NoError(t, err)

	_, err = fx.svc.Verify(ctx, fx.users[0], price.ID, true, "")
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))

	got, err := fx.svc.Verify(ctx, fx.users[1], price.ID, false, "wrong")
	require.NoError(t, err)
	assert.Equal(t, 0, got.VerificationCount)

	_, err = fx.svc.Verify(ctx, fx.users[1], price.ID, true, "")
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	_, err = fx.svc.Verify(ctx, fx.users[1], "missing", true, "")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	got, err = fx.svc.Verify(ctx, fx.users[2], price.ID, true, "")
	require.NoError(t, err)
	got, err = fx.svc.Verify(ctx, fx.users[3], price.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, 2, got.VerificationCount)
	assert.False(t, got.IsVerified)
	assert.Nil(t, got.VerifiedAt)
}

func TestPriceFlagHidesFromListings(t *testing.T) {
	fx := newPriceFixture(t, 4)
	ctx := context.Background()
	price, err := fx.svc.Submit(ctx, fx.users[0], submission("Butter", "2.10", "York YO1 7HH"))
	require.NoError(t, err)

	_, err = fx.svc.Flag(ctx, fx.users[0], price.ID)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))

	for i := 0; i < 3; i++ {
		_, err = fx.svc.Flag(ctx, fx.users[1], price.ID)
		if i > 0 {
			assert.True(t, apperr.Is(err, apperr.CodeConflict))
		}
	}
	prices, err := fx.svc.ListForItem(ctx, "butter", "")
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, 1, prices[0].FlagCount)

	for _, u := range fx.users[2:] {
		_, err = fx.svc.Flag(ctx, u, price.ID)
		require.NoError(t, err)
	}
	prices, err = fx.svc.ListForItem(ctx, "butter", "")
	require.NoError(t, err)
	assert.Empty(t, prices)

	recent, err := fx.svc.Recent(ctx, 7)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 3, recent[0].FlagCount)

	mine, err := fx.svc.MySubmissions(ctx, fx.users[0])
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestPriceNearbyShops(t *testing.T) {
	fx := newPriceFixture(t, 1)
	ctx := context.Background()

	for _, location := range []string{"Camden NW1 8AA", "Leeds LS1 4AP"} {
		_, err := fx.svc.Submit(ctx, fx.users[0], submission("Milk", "1.10", location))
		require.NoError(t, err)
	}
	fx.postcodes.nearby = []postcode.Location{{Postcode: "NW1 8AA"}, {Postcode: "NW1 7AB"}}

	shops, err := fx.svc.NearbyShops(ctx, "nw19zz", 0)
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, "NW1 8AA", shops[0].Postcode)
	assert.Equal(t, "Camden", shops[0].Town)
	assert.Equal(t, 1000, fx.postcodes.radius)

	_, err = fx.svc.NearbyShops(ctx, "NW1 9ZZ", 5000)
	require.NoError(t, err)
	assert.Equal(t, 2000, fx.postcodes.radius)

	_, err = fx.svc.NearbyShops(ctx, "nowhere", 0)
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
}
