package postcode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidAndNormalize(t *testing.T) {
	for _, pc := range []string{"SW1A 1AA", "sw1a1aa", "M1 1AE", "B33 8TH", "EC1A 1BB", " cr2 6xh "} {
		assert.True(t, Valid(pc), pc)
	}
	for _, pc := range []string{"", "12345", "SW1A", "ABC 123"} {
		assert.False(t, Valid(pc), pc)
	}

	assert.Equal(t, "SW1A 1AA", Normalize("sw1a1aa"))
	assert.Equal(t, "M1 1AE", Normalize(" m1   1ae"))
	assert.Equal(t, "AB1", Normalize("ab1"))
}

func TestArea(t *testing.T) {
	assert.Equal(t, "SW", Area("sw1a 1aa"))
	assert.Equal(t, "M", Area("M1 1AE"))
	assert.Equal(t, "", Area(""))
}

func TestExtract(t *testing.T) {
	pc, ok := Extract("Tesco Express, 12 High St, London SW1A 1AA (near LS1 4AP)")
	require.True(t, ok)
	assert.Equal(t, "LS1 4AP", pc)

	_, ok = Extract("Corner shop on the high street")
	assert.False(t, ok)
}

func TestClientLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/postcodes/SW1A1AA":
			w.Write([]byte(`{"status":200,"result":{"postcode":"SW1A 1AA","latitude":51.501,"longitude":-0.1416,"admin_ward":"St James's","admin_district":"Westminster","region":"London","country":"England"}}`))
		case "/postcodes":
			assert.Equal(t, "100", r.URL.Query().Get("limit"))
			w.Write([]byte(`{"status":200,"result":[{"postcode":"SW1A 2AA"},{"postcode":"SW1A 0AA"}]}`))
		case "/postcodes/ZZ99ZZ":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL)
	ctx := context.Background()

	loc, err := c.Lookup(ctx, "sw1a 1aa")
	require.NoError(t, err)
	assert.Equal(t, "SW1A 1AA", loc.Postcode)
	assert.Equal(t, "SW", loc.Area)
	assert.Equal(t, "St James's", loc.Town)
	assert.Equal(t, "Westminster", loc.District)

	near, err := c.Nearby(ctx, 51.5, -0.14, 500)
	require.NoError(t, err)
	assert.Len(t, near, 2)

	_, err = c.Lookup(ctx, "ZZ9 9ZZ")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = c.Lookup(ctx, "M1 1AE")
	assert.True(t, apperr.Is(err, apperr.CodeExternalService))

	_, err = c.Lookup(ctx, "not a postcode")
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
}
