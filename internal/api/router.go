package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/homegrubhub/homegrubhub-be/internal/api/handlers"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
	"github.com/homegrubhub/homegrubhub-be/internal/websocket"
)

// Services bundles everything the router hands to its handlers.
type Services struct {
	Users     services.UserServiceProvider
	Recipes   services.RecipeServiceProvider
	Community services.CommunityServiceProvider
	Pantry    services.PantryServiceProvider
	Shopping  services.ShoppingServiceProvider
	Prices    services.PriceServiceProvider
	MealPlans services.MealPlanServiceProvider
	Nutrition services.NutritionServiceProvider
	Families  services.FamilyServiceProvider
	Support   services.SupportServiceProvider
	Dashboard services.DashboardServiceProvider
	Events    services.EventServiceProvider
	Jobs      services.JobServiceProvider
	Backups   services.BackupServiceProvider
	Stats     handlers.StatsProvider
}

// Options carries the HTTP-level settings.
type Options struct {
	AllowedOrigins []string
	SecureCookies  bool
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates and configures a new Chi router.
func NewRouter(svc Services, tokens *auth.TokenManager, hub *websocket.Hub, metrics *Metrics, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "error": "Not found", "code": "NOT_FOUND"})
	})

	r.Get("/healthz", health)
	r.Handle("/metrics", metrics.Handler())

	limiter := NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	routes := apiRoutes(svc, tokens, hub, limiter, opts)
	r.Route("/api/v1", routes)
	r.Route("/api/mobile/v1", routes)

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	respond.OK(w, map[string]interface{}{"status": "ok", "service": "homegrubhub", "version": "v1"})
}

// apiRoutes builds the versioned API. The same tree is mounted for the web
// and mobile clients.
func apiRoutes(svc Services, tokens *auth.TokenManager, hub *websocket.Hub, limiter *RateLimiter, opts Options) func(chi.Router) {
	users := handlers.NewUserHandler(svc.Users, tokens, opts.SecureCookies)
	recipes := handlers.NewRecipeHandler(svc.Recipes)
	community := handlers.NewCommunityHandler(svc.Community)
	pantry := handlers.NewPantryHandler(svc.Pantry)
	shopping := handlers.NewShoppingHandler(svc.Shopping)
	prices := handlers.NewPriceHandler(svc.Prices, svc.Users)
	mealPlans := handlers.NewMealPlanHandler(svc.MealPlans)
	nutrition := handlers.NewNutritionHandler(svc.Nutrition)
	families := handlers.NewFamilyHandler(svc.Families)
	support := handlers.NewSupportHandler(svc.Support)
	dashboard := handlers.NewDashboardHandler(svc.Dashboard)
	admin := handlers.NewAdminHandler(svc.Stats, svc.Events, svc.Jobs, hub)
	backups := handlers.NewBackupHandler(svc.Backups)
	ws := handlers.NewWebSocketHandler(hub, svc.Families, opts.AllowedOrigins)

	feature := func(name string) func(http.Handler) http.Handler {
		return auth.RequireFeature(svc.Users, name)
	}

	return func(r chi.Router) {
		r.Get("/health", health)

		// Anonymous or signed-in.
		r.Group(func(r chi.Router) {
			r.Use(tokens.Optional)
			r.Use(auth.Refresh(svc.Users))
			r.Use(limiter.Middleware)

			r.Post("/auth/register", users.Register)
			r.Post("/auth/login", users.Login)
			r.Post("/auth/logout", users.Logout)

			r.Get("/recipes", recipes.List)
			r.Get("/recipes/counts", recipes.Counts)
			r.Get("/recipes/{id}", recipes.Get)
			r.Get("/recipes/{id}/scaled", recipes.Scaled)
			r.Get("/recipes/{id}/reviews", community.ListReviews)
			r.Get("/recipes/{id}/comments", community.ListComments)

			r.Get("/users/{id}", users.Profile)
			r.Get("/users/{id}/followers", community.Followers)
			r.Get("/users/{id}/following", community.Following)

			r.Get("/collections", community.ListCollections)
			r.Get("/collections/{id}", community.GetCollection)

			r.Get("/feed", community.Feed)
			r.Get("/prices", prices.ListForItem)
		})

		// Signed-in users. Paths shared with the group above stay flat, since a
		// mounted subrouter would shadow the public methods.
		r.Group(func(r chi.Router) {
			r.Use(tokens.Middleware)
			r.Use(auth.Refresh(svc.Users))
			r.Use(limiter.Middleware)

			r.Get("/ws", ws.Serve)
			r.Get("/dashboard", dashboard.Get)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", users.GetMe)
				r.Put("/", users.UpdateMe)
				r.Delete("/", users.DeleteMe)
				r.Put("/password", users.ChangePassword)
				r.Get("/features", users.Features)
				r.Get("/settings", users.GetSettings)
				r.Put("/settings", users.UpdateSettings)
				r.Get("/favourites", recipes.Favourites)
				r.Get("/prices", prices.Mine)
				r.Get("/tickets", support.ListMine)
			})

			r.Post("/recipes", recipes.Create)
			r.Post("/recipes/suggest", recipes.Suggest)
			r.With(feature("url_import")).Post("/recipes/import", recipes.Import)
			r.Put("/recipes/{id}", recipes.Update)
			r.Delete("/recipes/{id}", recipes.Delete)
			r.Post("/recipes/{id}/favourite", recipes.Favourite)
			r.Delete("/recipes/{id}/favourite", recipes.Unfavourite)
			r.Put("/recipes/{id}/reviews", community.UpsertReview)
			r.Delete("/recipes/{id}/reviews/{reviewID}", community.DeleteReview)
			r.Post("/recipes/{id}/comments", community.AddComment)
			r.Delete("/recipes/{id}/comments/{commentID}", community.DeleteComment)

			r.Post("/users/{id}/follow", community.Follow)
			r.Delete("/users/{id}/follow", community.Unfollow)

			r.Post("/collections", community.CreateCollection)
			r.Put("/collections/{id}", community.UpdateCollection)
			r.Delete("/collections/{id}", community.DeleteCollection)
			r.Put("/collections/{id}/recipes/{recipeID}", community.AddToCollection)
			r.Delete("/collections/{id}/recipes/{recipeID}", community.RemoveFromCollection)

			r.Route("/pantry", func(r chi.Router) {
				r.Use(feature("pantry_tracker"))
				r.Get("/categories", pantry.ListCategories)
				r.Post("/categories", pantry.CreateCategory)
				r.Put("/categories/{id}", pantry.UpdateCategory)
				r.Delete("/categories/{id}", pantry.DeleteCategory)
				r.Get("/items", pantry.ListItems)
				r.Post("/items", pantry.CreateItem)
				r.Get("/items/{id}", pantry.GetItem)
				r.Put("/items/{id}", pantry.UpdateItem)
				r.Delete("/items/{id}", pantry.DeleteItem)
				r.Post("/items/{id}/adjust", pantry.AdjustQuantity)
				r.Get("/items/{id}/history", pantry.UsageHistory)
				r.With(feature("pantry_tracker_predictive")).Get("/predict-low", pantry.PredictLow)
			})

			r.Route("/shopping", func(r chi.Router) {
				r.Get("/", shopping.GetWeek)
				r.Put("/items/{id}", shopping.UpdateItem)
				r.Delete("/items/{id}", shopping.DeleteItem)
				r.Post("/items/{id}/toggle", shopping.TogglePurchased)
				r.Post("/clear-purchased", shopping.ClearPurchased)
				r.Group(func(r chi.Router) {
					r.Use(feature("shopping_list_generation"))
					r.Post("/items", shopping.AddItem)
					r.Post("/add-recipe", shopping.AddRecipe)
					r.Post("/add-low-stock", shopping.AddLowStock)
					r.Post("/parse-ingredient", shopping.ParseIngredient)
					r.Post("/ingredient-preview", shopping.IngredientPreview)
				})
				r.With(feature("price_comparison_trends")).Get("/prices", shopping.Prices)
				r.With(feature("price_comparison_trends")).Get("/items/{id}/prices", shopping.ItemPrices)
				r.With(feature("multi_store_price_comparison")).Get("/optimize", shopping.Optimize)
			})

			r.Post("/prices", prices.Submit)
			r.Get("/prices/shops", prices.NearbyShops)
			r.Post("/prices/{id}/verify", prices.Verify)
			r.Post("/prices/{id}/flag", prices.Flag)

			r.Route("/meal-plans", func(r chi.Router) {
				r.Use(feature("meal_planning"))
				r.Get("/", mealPlans.Week)
				r.Post("/", mealPlans.CreateEntry)
				r.Put("/{id}", mealPlans.UpdateEntry)
				r.Delete("/{id}", mealPlans.DeleteEntry)
				r.Post("/shopping-list", mealPlans.GenerateShoppingList)
			})

			r.Route("/nutrition", func(r chi.Router) {
				r.Get("/entries", nutrition.ListEntries)
				r.Post("/entries", nutrition.CreateEntry)
				r.Put("/entries/{id}", nutrition.UpdateEntry)
				r.Delete("/entries/{id}", nutrition.DeleteEntry)
				r.Get("/goals", nutrition.GetGoals)
				r.Put("/goals", nutrition.SetGoals)
				r.With(feature("nutrition_analysis")).Get("/summary", nutrition.Summary)
				r.Get("/water", nutrition.ListWater)
				r.Post("/water", nutrition.LogWater)
				r.Delete("/water/{id}", nutrition.DeleteWater)
			})

			r.Route("/family", func(r chi.Router) {
				r.Get("/", families.Mine)
				r.Post("/", families.Create)
				r.Post("/join", families.Join)
				r.Post("/leave", families.Leave)
				r.Put("/members/{userID}", families.UpdateRole)
				r.Delete("/members/{userID}", families.RemoveMember)
				r.Get("/items", families.ListItems)
				r.Post("/items", families.AddItem)
				r.Post("/items/{id}/approve", families.ApproveItem)
				r.Post("/items/{id}/toggle", families.TogglePurchased)
				r.Delete("/items/{id}", families.DeleteItem)
				r.Get("/messages", families.Messages)
				r.Post("/messages", families.PostMessage)
			})

			r.Route("/support", func(r chi.Router) {
				r.Post("/tickets", support.Create)
				r.Get("/tickets/{id}", support.Get)
				r.Post("/tickets/{id}/replies", support.Reply)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Get("/system", admin.Stats)
				r.Get("/events", admin.Events)
				r.Get("/jobs", admin.ListJobs)
				r.Put("/jobs/{id}", admin.UpdateJob)
				r.Post("/announcements", admin.Announce)
				r.Get("/users", users.List)
				r.Put("/users/{id}/tier", users.SetTier)
				r.Put("/users/{id}/admin", users.SetAdmin)
				r.Put("/recipes/{id}/moderation", recipes.Moderate)
				r.Get("/prices", prices.Recent)
				r.Get("/tickets", support.ListAll)
				r.Put("/tickets/{id}", support.Update)
				r.Get("/backups", backups.List)
				r.Post("/backups", backups.Create)
				r.Get("/backups/{id}", backups.Download)
				r.Delete("/backups/{id}", backups.Delete)
			})
		})
	}
}
