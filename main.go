package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/homegrubhub/homegrubhub-be/internal/api"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/config"
	"github.com/homegrubhub/homegrubhub-be/internal/database"
	"github.com/homegrubhub/homegrubhub-be/internal/importer"
	"github.com/homegrubhub/homegrubhub-be/internal/logger"
	"github.com/homegrubhub/homegrubhub-be/internal/monitoring"
	"github.com/homegrubhub/homegrubhub-be/internal/postcode"
	"github.com/homegrubhub/homegrubhub-be/internal/pricing"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
	"github.com/homegrubhub/homegrubhub-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, !cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Price cache: redis when configured, otherwise in-process.
	var cache pricing.Cache = pricing.NewMemoryCache()
	if cfg.RedisURL != "" {
		redisCache, err := pricing.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, using in-memory price cache")
		} else {
			defer redisCache.Close()
			cache = redisCache
		}
	}
	estimator := pricing.NewEstimator(cache, cfg.PriceCacheTTL)

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Set up services
	eventService := services.NewEventService(db)
	userService := services.NewUserService(db, eventService)
	recipeService := services.NewRecipeService(db, eventService, importer.New())
	communityService := services.NewCommunityService(db, recipeService)
	pantryService := services.NewPantryService(db)
	priceService := services.NewPriceService(db, eventService, postcode.NewClient(cfg.PostcodeAPIURL))
	shoppingService := services.NewShoppingService(db, recipeService, pantryService, priceService, estimator)
	mealPlanService := services.NewMealPlanService(db, recipeService, shoppingService)
	nutritionService := services.NewNutritionService(db)
	familyService := services.NewFamilyService(db, eventService, hub)
	supportService := services.NewSupportService(db, eventService)
	dashboardService := services.NewDashboardService(db, pantryService, nutritionService)
	jobService := services.NewJobService(db, eventService)
	backupService := services.NewBackupService(db, eventService, cfg.BackupPath)

	// Set up and run the background scheduler
	tasks := monitoring.Tasks(pantryService, shoppingService, eventService, estimator.Cache())
	tasks[monitoring.TaskDBBackup] = monitoring.DatabaseBackup(backupService, cfg.BackupKeep)
	scheduler := monitoring.NewScheduler(jobService, eventService, tasks)
	if cfg.SchedulerEnabled {
		go scheduler.Run(ctx)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	router := api.NewRouter(api.Services{
		Users:     userService,
		Recipes:   recipeService,
		Community: communityService,
		Pantry:    pantryService,
		Shopping:  shoppingService,
		Prices:    priceService,
		MealPlans: mealPlanService,
		Nutrition: nutritionService,
		Families:  familyService,
		Support:   supportService,
		Dashboard: dashboardService,
		Events:    eventService,
		Jobs:      jobService,
		Backups:   backupService,
		Stats:     monitoring.NewSystemStats(db, filepath.Dir(cfg.DatabasePath)),
	}, tokens, hub, api.NewMetrics(), api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  cfg.IsProduction(),
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.AppEnv).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	// Waits for in-flight jobs such as db_backup before the database closes.
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
