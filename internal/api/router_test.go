package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/database"
	"github.com/homegrubhub/homegrubhub-be/internal/importer"
	"github.com/homegrubhub/homegrubhub-be/internal/monitoring"
	"github.com/homegrubhub/homegrubhub-be/internal/postcode"
	"github.com/homegrubhub/homegrubhub-be/internal/pricing"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
	"github.com/homegrubhub/homegrubhub-be/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStats struct{}

func (stubStats) Snapshot(context.Context) (monitoring.SystemSnapshot, error) {
	return monitoring.SystemSnapshot{Users: 1}, nil
}

type testServer struct {
	handler http.Handler
	db      *sql.DB
	users   *services.UserService
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	postcodes := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(postcodes.Close)

	events := services.NewEventService(db)
	users := services.NewUserService(db, events)
	recipes := services.NewRecipeService(db, events, importer.New())
	pantry := services.NewPantryService(db)
	prices := services.NewPriceService(db, events, postcode.NewClient(postcodes.URL))
	shopping := services.NewShoppingService(db, recipes, pantry, prices, pricing.NewEstimator(pricing.NewMemoryCache(), time.Hour))
	nutrition := services.NewNutritionService(db)
	hub := websocket.NewHub()

	if opts.RateLimitRPS == 0 {
		opts.RateLimitRPS, opts.RateLimitBurst = 1000, 1000
	}
	router := NewRouter(Services{
		Users:     users,
		Recipes:   recipes,
		Community: services.NewCommunityService(db, recipes),
		Pantry:    pantry,
		Shopping:  shopping,
		Prices:    prices,
		MealPlans: services.NewMealPlanService(db, recipes, shopping),
		Nutrition: nutrition,
		Families:  services.NewFamilyService(db, events, hub),
		Support:   services.NewSupportService(db, events),
		Dashboard: services.NewDashboardService(db, pantry, nutrition),
		Events:    events,
		Jobs:      services.NewJobService(db, events),
		Backups:   services.NewBackupService(db, events, t.TempDir()),
		Stats:     stubStats{},
	}, auth.NewTokenManager("test-secret", time.Hour), hub, NewMetrics(), opts)

	return &testServer{handler: router, db: db, users: users}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	out := map[string]interface{}{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

// signUp registers and logs in a fresh user, returning the token and id.
func (s *testServer) signUp(t *testing.T) (string, string) {
	t.Helper()
	email := gofakeit.Email()
	rec, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "cook" + gofakeit.DigitN(6),
		"email":    email,
		"password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, body := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "correct-horse-battery"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := body["user"].(map[string]interface{})
	return body["token"].(string), user["id"].(string)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/api/v1/health", "/api/mobile/v1/health"} {
		rec, body := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "ok", body["status"], path)
		assert.Equal(t, "homegrubhub", body["service"], path)
	}

	rec, body := s.do(t, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, Options{})
	rec, body := s.do(t, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	rec, _ = s.do(t, http.MethodGet, "/api/v1/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, id := s.signUp(t)
	rec, body = s.do(t, http.MethodGet, "/api/mobile/v1/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, id, body["user"].(map[string]interface{})["id"])
}

func TestFeatureGateFollowsStoredTier(t *testing.T) {
	s := newTestServer(t, Options{})
	token, id := s.signUp(t)

	rec, body := s.do(t, http.MethodGet, "/api/v1/pantry/items", token, nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "FEATURE_LOCKED", body["code"])

	// The token still says free; the upgrade applies immediately.
	_, err := s.users.SetTier(context.Background(), id, "home")
	require.NoError(t, err)

	rec, body = s.do(t, http.MethodPost, "/api/v1/pantry/items", token, map[string]interface{}{"name": "Rice", "currentQuantity": 0.5, "unit": "kg"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := body["item"].(map[string]interface{})
	assert.Equal(t, true, item["isLowStock"])

	rec, body = s.do(t, http.MethodGet, "/api/v1/pantry/items?low_stock=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, _ = s.do(t, http.MethodGet, "/api/v1/pantry/predict-low", token, nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/api/v1/me/features", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "home", body["tier"])
}

func TestShoppingMappingRoutes(t *testing.T) {
	s := newTestServer(t, Options{})
	token, id := s.signUp(t)
	_, err := s.users.SetTier(context.Background(), id, "home")
	require.NoError(t, err)

	rec, body := s.do(t, http.MethodPost, "/api/v1/shopping/parse-ingredient", token, map[string]string{"ingredient": "2 tbsp olive oil"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	mapping := body["mapping"].(map[string]interface{})
	assert.Equal(t, "bottle", mapping["unit"])
	assert.Equal(t, "oils", mapping["category"])

	rec, body = s.do(t, http.MethodPost, "/api/v1/shopping/items", token, map[string]interface{}{"name": "Pasta", "quantity": 500, "unit": "g"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	itemID := body["item"].(map[string]interface{})["id"].(string)

	rec, body = s.do(t, http.MethodGet, "/api/mobile/v1/shopping/items/"+itemID+"/prices", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	comparison := body["data"].(map[string]interface{})
	assert.Equal(t, "estimate", comparison["dataSource"])
	assert.Equal(t, "Budget Supermarket", comparison["cheapestStore"])
	assert.Len(t, comparison["prices"], 4)

	rec, body = s.do(t, http.MethodGet, "/api/v1/prices/shops", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
}

func TestValidationEnvelope(t *testing.T) {
	s := newTestServer(t, Options{})
	rec, body := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "ab", "email": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
	assert.NotEmpty(t, body["details"])
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, Options{})
	token, id := s.signUp(t)

	rec, body := s.do(t, http.MethodGet, "/api/v1/admin/system", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])

	_, err := s.users.SetAdmin(context.Background(), id, true)
	require.NoError(t, err)

	rec, body = s.do(t, http.MethodGet, "/api/v1/admin/system", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, body["stats"])

	rec, body = s.do(t, http.MethodGet, "/api/v1/admin/jobs", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["jobs"], 5)

	rec, body = s.do(t, http.MethodPut, "/api/v1/admin/jobs/job-cache-purge", token, map[string]interface{}{"cronExpression": "every minute", "isActive": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])

	rec, body = s.do(t, http.MethodPost, "/api/v1/admin/announcements", token, map[string]string{"message": "Maintenance at 2am", "level": "urgent"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
	rec, body = s.do(t, http.MethodPost, "/api/v1/admin/announcements", token, map[string]string{"message": "Maintenance at 2am"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "info", body["announcement"].(map[string]interface{})["level"])

	rec, body = s.do(t, http.MethodGet, "/api/v1/admin/events?limit=1000", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["events"])
}

func TestRateLimitOnMutatingRequests(t *testing.T) {
	s := newTestServer(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})
	login := map[string]string{"email": "who@example.com", "password": "wrong-password"}

	for i := 0; i < 2; i++ {
		rec, _ := s.do(t, http.MethodPost, "/api/v1/auth/login", "", login)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec, body := s.do(t, http.MethodPost, "/api/v1/auth/login", "", login)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", body["code"])

	// Reads are never throttled.
	rec, _ = s.do(t, http.MethodGet, "/api/v1/recipes", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsUseRoutePatterns(t *testing.T) {
	s := newTestServer(t, Options{})
	s.do(t, http.MethodGet, "/api/v1/recipes/does-not-exist", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/api/v1/recipes/{id}",status="404"} 1`)
	assert.Contains(t, rec.Body.String(), "http_request_duration_seconds")
}
