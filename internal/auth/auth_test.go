package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTiers map[string]string

func (s stubTiers) GetTier(_ context.Context, userID string) (string, bool, error) {
	return s[userID], false, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestGenerateAndValidate(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, err := m.Generate(models.User{ID: "u1", Username: "ann", Tier: "home", IsAdmin: true})
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "home", claims.Tier)
	assert.True(t, claims.IsAdmin)

	_, err = NewTokenManager("other", time.Hour).Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredAndNone(t *testing.T) {
	m := NewTokenManager("secret", -time.Minute)
	token, err := m.Generate(models.User{ID: "u1"})
	require.NoError(t, err)
	_, err = m.Validate(token)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Validate(unsigned)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, _ := m.Generate(models.User{ID: "u1", Username: "ann"})
	h := m.Middleware(okHandler())

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestOptionalNeverRejects(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	var seen Viewer
	h := m.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ViewerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, seen.Anonymous())
}

func TestRequireFeature(t *testing.T) {
	lookup := stubTiers{"free-user": "free", "home-user": "home"}
	h := RequireFeature(lookup, "pantry_tracker")(okHandler())

	for user, want := range map[string]int{"free-user": http.StatusPaymentRequired, "home-user": http.StatusTeapot} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), &Claims{UserID: user}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, user)
	}
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithClaims(req.Context(), &Claims{UserID: "u"}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = req.WithContext(WithClaims(req.Context(), &Claims{UserID: "u", IsAdmin: true}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestViewerHas(t *testing.T) {
	assert.False(t, Viewer{}.Has("search"))
	assert.True(t, Viewer{UserID: "u", Tier: "free"}.Has("search"))
	assert.False(t, Viewer{UserID: "u", Tier: "free"}.Has("private_recipes"))
	assert.True(t, Viewer{UserID: "u", Tier: "free", IsAdmin: true}.Has("private_recipes"))
}

func TestRefreshUsesStoredTier(t *testing.T) {
	var seen Viewer
	h := Refresh(stubTiers{"u1": "pro"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ViewerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithClaims(req.Context(), &Claims{UserID: "u1", Tier: "free"}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "pro", seen.Tier)

	seen = Viewer{UserID: "unchanged"}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, seen.Anonymous())
}
