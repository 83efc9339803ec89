package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/ingredients"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/homegrubhub/homegrubhub-be/internal/tiers"
)

// RecipeInput is the writable part of a recipe.
type RecipeInput struct {
	Title                string            `json:"title" validate:"required,max=200"`
	Description          string            `json:"description" validate:"max=2000"`
	Ingredients          string            `json:"ingredients" validate:"required"`
	Method               string            `json:"method" validate:"required"`
	PrepTime             *int              `json:"prepTime" validate:"omitempty,gte=0,lte=1440"`
	CookTime             *int              `json:"cookTime" validate:"omitempty,gte=0,lte=1440"`
	Servings             int               `json:"servings" validate:"omitempty,min=1,max=100"`
	Difficulty           string            `json:"difficulty" validate:"omitempty,oneof=Easy Medium Hard"`
	Country              string            `json:"country" validate:"max=100"`
	CuisineType          string            `json:"cuisineType" validate:"max=100"`
	ImageURL             string            `json:"imageUrl" validate:"omitempty,url"`
	IsPrivate            bool              `json:"isPrivate"`
	CostPerServing       *float64          `json:"costPerServing" validate:"omitempty,gte=0"`
	BatchCookingNotes    string            `json:"batchCookingNotes"`
	FreezingInstructions string            `json:"freezingInstructions"`
	Tags                 []string          `json:"tags"`
	DietaryRestrictions  []string          `json:"dietaryRestrictions"`
	Equipment            []string          `json:"equipment"`
	SeasonalTags         []string          `json:"seasonalTags"`
	Nutrition            *models.Nutrition `json:"nutrition"`
}

// ScaledRecipe is a recipe with its ingredient lines rewritten for a new serving count.
type ScaledRecipe struct {
	Recipe      models.Recipe `json:"recipe"`
	Servings    int           `json:"servings"`
	Factor      float64       `json:"factor"`
	Ingredients []string      `json:"ingredients"`
}

// RecipeImporter extracts recipe drafts from web pages.
type RecipeImporter interface {
	Import(ctx context.Context, url string) (models.RecipeDraft, error)
}

// RecipeServiceProvider defines the interface for recipe services.
type RecipeServiceProvider interface {
	CreateRecipe(ctx context.Context, viewer auth.Viewer, in RecipeInput) (models.Recipe, error)
	GetRecipe(ctx context.Context, viewer auth.Viewer, id string) (models.Recipe, error)
	UpdateRecipe(ctx context.Context, viewer auth.Viewer, id string, in RecipeInput) (models.Recipe, error)
	DeleteRecipe(ctx context.Context, viewer auth.Viewer, id string) error
	ListRecipes(ctx context.Context, viewer auth.Viewer, f RecipeFilter) (models.RecipePage, error)
	FilterCounts(ctx context.Context, viewer auth.Viewer) (models.FilterCounts, error)
	Suggest(ctx context.Context, viewer auth.Viewer, in SuggestionInput) ([]models.RecipeSuggestion, error)
	SetFavourite(ctx context.Context, viewer auth.Viewer, id string, favourite bool) error
	ListFavourites(ctx context.Context, viewer auth.Viewer) ([]models.Recipe, error)
	Scaled(ctx context.Context, viewer auth.Viewer, id string, servings int) (ScaledRecipe, error)
	Moderate(ctx context.Context, id string, approved, featured *bool) (models.Recipe, error)
	ImportFromURL(ctx context.Context, url string) (models.RecipeDraft, error)
}

// RecipeService provides business logic for recipes.
type RecipeService struct {
	db           *sql.DB
	eventService EventServiceProvider
	importer     RecipeImporter
	now          func() time.Time
}

// NewRecipeService creates a new RecipeService. importer may be nil when URL
// import is unavailable.
func NewRecipeService(db *sql.DB, eventService EventServiceProvider, importer RecipeImporter) *RecipeService {
	return &RecipeService{db: db, eventService: eventService, importer: importer, now: time.Now}
}

const recipeSelect = `
	SELECT r.id, r.user_id, u.username, r.title, r.description, r.ingredients, r.method,
		r.prep_time, r.cook_time, r.servings, r.difficulty, r.country, r.cuisine_type, r.image_url,
		r.is_private, r.is_approved, r.is_featured, r.cost_per_serving, r.batch_cooking_notes,
		r.freezing_instructions, r.tags_json, r.dietary_json, r.equipment_json, r.seasons_json,
		r.created_at, r.updated_at,
		n.recipe_id, n.calories, n.protein_g, n.carbs_g, n.fat_g, n.fiber_g, n.sugar_g, n.sodium_mg, n.iron_mg,
		n.is_high_protein, n.is_low_carb, n.is_high_fiber, n.is_low_sodium, n.is_iron_rich,
		COALESCE((SELECT AVG(rating) FROM reviews WHERE recipe_id = r.id), 0),
		(SELECT COUNT(*) FROM reviews WHERE recipe_id = r.id),
		EXISTS (SELECT 1 FROM favourites WHERE recipe_id = r.id AND user_id = ?)
	FROM recipes r
	JOIN users u ON u.id = r.user_id
	LEFT JOIN recipe_nutrition n ON n.recipe_id = r.id`

func scanRecipe(row scanner) (models.Recipe, error) {
	var r models.Recipe
	var nutritionID sql.NullString
	var n models.Nutrition
	var hp, lc, hf, ls, ir sql.NullBool
	err := row.Scan(
		&r.ID, &r.UserID, &r.Author, &r.Title, &r.Description, &r.Ingredients, &r.Method,
		&r.PrepTime, &r.CookTime, &r.Servings, &r.Difficulty, &r.Country, &r.CuisineType, &r.ImageURL,
		&r.IsPrivate, &r.IsApproved, &r.IsFeatured, &r.CostPerServing, &r.BatchCookingNotes,
		&r.FreezingInstructions, &r.TagsJSON, &r.DietaryJSON, &r.EquipmentJSON, &r.SeasonsJSON,
		&r.CreatedAt, &r.UpdatedAt,
		&nutritionID, &n.Calories, &n.ProteinG, &n.CarbsG, &n.FatG, &n.FiberG, &n.SugarG, &n.SodiumMg, &n.IronMg,
		&hp, &lc, &hf, &ls, &ir,
		&r.AverageRating, &r.ReviewCount, &r.IsFavourite,
	)
	if err != nil {
		return models.Recipe{}, err
	}
	if nutritionID.Valid {
		n.HighProtein, n.LowCarb, n.HighFiber, n.LowSodium, n.IronRich = hp.Bool, lc.Bool, hf.Bool, ls.Bool, ir.Bool
		r.Nutrition = &n
	}
	r.PrepareForAPI()
	return r, nil
}

func scanRecipes(rows *sql.Rows) ([]models.Recipe, error) {
	recipes := []models.Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, r)
	}
	return recipes, rows.Err()
}

// normalizeSet lowercases, trims and dedupes a tag set, keeping first-seen order.
func normalizeSet(values []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func (in RecipeInput) toRecipe() models.Recipe {
	r := models.Recipe{
		Title:                strings.TrimSpace(in.Title),
		Description:          strings.TrimSpace(in.Description),
		Ingredients:          strings.TrimSpace(in.Ingredients),
		Method:               strings.TrimSpace(in.Method),
		PrepTime:             in.PrepTime,
		CookTime:             in.CookTime,
		Servings:             in.Servings,
		Difficulty:           in.Difficulty,
		Country:              strings.TrimSpace(in.Country),
		CuisineType:          strings.TrimSpace(in.CuisineType),
		ImageURL:             in.ImageURL,
		IsPrivate:            in.IsPrivate,
		CostPerServing:       in.CostPerServing,
		BatchCookingNotes:    strings.TrimSpace(in.BatchCookingNotes),
		FreezingInstructions: strings.TrimSpace(in.FreezingInstructions),
		Tags:                 normalizeSet(in.Tags),
		DietaryRestrictions:  normalizeSet(in.DietaryRestrictions),
		Equipment:            normalizeSet(in.Equipment),
		SeasonalTags:         normalizeSet(in.SeasonalTags),
		Nutrition:            in.Nutrition,
	}
	if r.Servings <= 0 {
		r.Servings = 4
	}
	if r.Difficulty == "" {
		r.Difficulty = "Medium"
	}
	return r
}

func (in RecipeInput) check() error {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Ingredients) == "" || strings.TrimSpace(in.Method) == "" {
		return apperr.Validation("Title, ingredients and method are required")
	}
	if utf8.RuneCountInString(in.Title) > 200 {
		return apperr.Validation("Title must be at most 200 characters")
	}
	return nil
}

// CreateRecipe saves a new recipe owned by the viewer, enforcing the plan's
// recipe quota and the private recipe feature.
func (s *RecipeService) CreateRecipe(ctx context.Context, viewer auth.Viewer, in RecipeInput) (models.Recipe, error) {
	if err := in.check(); err != nil {
		return models.Recipe{}, err
	}
	if in.IsPrivate && !viewer.Has("private_recipes") {
		return models.Recipe{}, apperr.FeatureLocked("private_recipes")
	}
	if limit := tiers.RecipeLimit(viewer.Tier); limit > 0 && !viewer.IsAdmin {
		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM recipes WHERE user_id = ?", viewer.UserID).Scan(&count); err != nil {
			return models.Recipe{}, err
		}
		if count >= limit {
			appErr := apperr.FeatureLocked("unlimited_recipes")
			appErr.Message = fmt.Sprintf("Your plan allows up to %d recipes", limit)
			return models.Recipe{}, appErr
		}
	}

	recipe := in.toRecipe()
	recipe.ID = uuid.New().String()
	recipe.UserID = viewer.UserID
	recipe.IsApproved = true
	recipe.CreatedAt = s.now().UTC()
	recipe.UpdatedAt = recipe.CreatedAt
	recipe.PrepareForDB()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Recipe{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recipes (id, user_id, title, description, ingredients, method, prep_time, cook_time, servings,
			difficulty, country, cuisine_type, image_url, is_private, is_approved, is_featured, cost_per_serving,
			batch_cooking_notes, freezing_instructions, tags_json, dietary_json, equipment_json, seasons_json,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		recipe.ID, recipe.UserID, recipe.Title, recipe.Description, recipe.Ingredients, recipe.Method,
		recipe.PrepTime, recipe.CookTime, recipe.Servings, recipe.Difficulty, recipe.Country, recipe.CuisineType,
		recipe.ImageURL, recipe.IsPrivate, recipe.IsApproved, recipe.IsFeatured, recipe.CostPerServing,
		recipe.BatchCookingNotes, recipe.FreezingInstructions, recipe.TagsJSON, recipe.DietaryJSON,
		recipe.EquipmentJSON, recipe.SeasonsJSON, recipe.CreatedAt, recipe.UpdatedAt)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("failed to insert recipe: %w", err)
	}
	if err := saveNutrition(ctx, tx, recipe.ID, recipe.Nutrition); err != nil {
		return models.Recipe{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Recipe{}, err
	}

	s.eventService.Record(ctx, "recipe.create", LevelInfo, fmt.Sprintf("Recipe '%s' created.", recipe.Title), &viewer.UserID)
	return s.getRecipe(ctx, viewer.UserID, recipe.ID)
}

func saveNutrition(ctx context.Context, tx *sql.Tx, recipeID string, n *models.Nutrition) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM recipe_nutrition WHERE recipe_id = ?", recipeID); err != nil {
		return fmt.Errorf("failed to clear nutrition: %w", err)
	}
	if n == nil {
		return nil
	}
	n.DeriveFlags()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO recipe_nutrition (recipe_id, calories, protein_g, carbs_g, fat_g, fiber_g, sugar_g, sodium_mg, iron_mg,
			is_high_protein, is_low_carb, is_high_fiber, is_low_sodium, is_iron_rich)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		recipeID, n.Calories, n.ProteinG, n.CarbsG, n.FatG, n.FiberG, n.SugarG, n.SodiumMg, n.IronMg,
		n.HighProtein, n.LowCarb, n.HighFiber, n.LowSodium, n.IronRich)
	if err != nil {
		return fmt.Errorf("failed to save nutrition: %w", err)
	}
	return nil
}

func (s *RecipeService) getRecipe(ctx context.Context, viewerID, id string) (models.Recipe, error) {
	recipe, err := scanRecipe(s.db.QueryRowContext(ctx, recipeSelect+" WHERE r.id = ?", viewerID, id))
	if err != nil {
		if isNoRows(err) {
			return models.Recipe{}, apperr.NotFound("recipe", id)
		}
		return models.Recipe{}, err
	}
	return recipe, nil
}

// canView applies recipe privacy: private recipes are for their owner and
// admins, unapproved ones are hidden from everyone else.
func canView(viewer auth.Viewer, r models.Recipe) error {
	if viewer.IsAdmin || (!viewer.Anonymous() && viewer.UserID == r.UserID) {
		return nil
	}
	if r.IsPrivate {
		return apperr.Forbidden("This recipe is private")
	}
	if !r.IsApproved {
		return apperr.NotFound("recipe", r.ID)
	}
	return nil
}

// GetRecipe returns a recipe the viewer is allowed to see.
func (s *RecipeService) GetRecipe(ctx context.Context, viewer auth.Viewer, id string) (models.Recipe, error) {
	recipe, err := s.getRecipe(ctx, viewer.UserID, id)
	if err != nil {
		return models.Recipe{}, err
	}
	if err := canView(viewer, recipe); err != nil {
		return models.Recipe{}, err
	}
	return recipe, nil
}

func (s *RecipeService) getOwned(ctx context.Context, viewer auth.Viewer, id string) (models.Recipe, error) {
	recipe, err := s.getRecipe(ctx, viewer.UserID, id)
	if err != nil {
		return models.Recipe{}, err
	}
	if recipe.UserID != viewer.UserID && !viewer.IsAdmin {
		return models.Recipe{}, apperr.Forbidden("You can only change your own recipes")
	}
	return recipe, nil
}

// UpdateRecipe replaces the writable fields of a recipe owned by the viewer.
func (s *RecipeService) UpdateRecipe(ctx context.Context, viewer auth.Viewer, id string, in RecipeInput) (models.Recipe, error) {
	if err := in.check(); err != nil {
		return models.Recipe{}, err
	}
	existing, err := s.getOwned(ctx, viewer, id)
	if err != nil {
		return models.Recipe{}, err
	}
	if in.IsPrivate && !existing.IsPrivate && !viewer.Has("private_recipes") {
		return models.Recipe{}, apperr.FeatureLocked("private_recipes")
	}

	recipe := in.toRecipe()
	recipe.UpdatedAt = s.now().UTC()
	recipe.PrepareForDB()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Recipe{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE recipes SET title = ?, description = ?, ingredients = ?, method = ?, prep_time = ?, cook_time = ?,
			servings = ?, difficulty = ?, country = ?, cuisine_type = ?, image_url = ?, is_private = ?,
			cost_per_serving = ?, batch_cooking_notes = ?, freezing_instructions = ?, tags_json = ?,
			dietary_json = ?, equipment_json = ?, seasons_json = ?, updated_at = ?
		WHERE id = ?`,
		recipe.Title, recipe.Description, recipe.Ingredients, recipe.Method, recipe.PrepTime, recipe.CookTime,
		recipe.Servings, recipe.Difficulty, recipe.Country, recipe.CuisineType, recipe.ImageURL, recipe.IsPrivate,
		recipe.CostPerServing, recipe.BatchCookingNotes, recipe.FreezingInstructions, recipe.TagsJSON,
		recipe.DietaryJSON, recipe.EquipmentJSON, recipe.SeasonsJSON, recipe.UpdatedAt, id)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("failed to update recipe: %w", err)
	}
	if err := saveNutrition(ctx, tx, id, recipe.Nutrition); err != nil {
		return models.Recipe{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Recipe{}, err
	}
	return s.getRecipe(ctx, viewer.UserID, id)
}

// DeleteRecipe removes a recipe owned by the viewer.
func (s *RecipeService) DeleteRecipe(ctx context.Context, viewer auth.Viewer, id string) error {
	recipe, err := s.getOwned(ctx, viewer, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM recipes WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	s.eventService.Record(ctx, "recipe.delete", LevelWarn, fmt.Sprintf("Recipe '%s' was deleted.", recipe.Title), &viewer.UserID)
	return nil
}

// SetFavourite adds or removes a recipe from the viewer's favourites. Both
// directions are idempotent.
func (s *RecipeService) SetFavourite(ctx context.Context, viewer auth.Viewer, id string, favourite bool) error {
	if !favourite {
		_, err := s.db.ExecContext(ctx, "DELETE FROM favourites WHERE user_id = ? AND recipe_id = ?", viewer.UserID, id)
		return err
	}
	if _, err := s.GetRecipe(ctx, viewer, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO favourites (user_id, recipe_id, created_at) VALUES (?, ?, ?)", viewer.UserID, id, s.now().UTC())
	return err
}

// ListFavourites returns the viewer's favourite recipes that they can still see, newest favourite first.
func (s *RecipeService) ListFavourites(ctx context.Context, viewer auth.Viewer) ([]models.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, recipeSelect+`
		JOIN favourites f ON f.recipe_id = r.id AND f.user_id = ?
		ORDER BY f.created_at DESC`, viewer.UserID, viewer.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	all, err := scanRecipes(rows)
	if err != nil {
		return nil, err
	}
	out := []models.Recipe{}
	for _, r := range all {
		if canView(viewer, r) == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// Scaled returns the recipe with every ingredient line rescaled to servings.
func (s *RecipeService) Scaled(ctx context.Context, viewer auth.Viewer, id string, servings int) (ScaledRecipe, error) {
	if servings < 1 || servings > 100 {
		return ScaledRecipe{}, apperr.Validation("Servings must be between 1 and 100")
	}
	recipe, err := s.GetRecipe(ctx, viewer, id)
	if err != nil {
		return ScaledRecipe{}, err
	}
	base := recipe.Servings
	if base <= 0 {
		base = 4
	}
	factor := float64(servings) / float64(base)
	lines := ingredients.Lines(recipe.Ingredients)
	scaled := make([]string, 0, len(lines))
	for _, line := range lines {
		scaled = append(scaled, ingredients.Scale(line, factor))
	}
	return ScaledRecipe{Recipe: recipe, Servings: servings, Factor: factor, Ingredients: scaled}, nil
}

// Moderate sets the approval and featured flags. Nil leaves a flag unchanged.
func (s *RecipeService) Moderate(ctx context.Context, id string, approved, featured *bool) (models.Recipe, error) {
	recipe, err := s.getRecipe(ctx, "", id)
	if err != nil {
		return models.Recipe{}, err
	}
	if approved != nil {
		recipe.IsApproved = *approved
	}
	if featured != nil {
		recipe.IsFeatured = *featured
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE recipes SET is_approved = ?, is_featured = ? WHERE id = ?", recipe.IsApproved, recipe.IsFeatured, id); err != nil {
		return models.Recipe{}, fmt.Errorf("failed to moderate recipe: %w", err)
	}
	s.eventService.Record(ctx, "recipe.moderate", LevelInfo,
		fmt.Sprintf("Recipe '%s' approved=%t featured=%t.", recipe.Title, recipe.IsApproved, recipe.IsFeatured), &recipe.UserID)
	return s.getRecipe(ctx, "", id)
}

// ImportFromURL extracts a draft from an external recipe page.
func (s *RecipeService) ImportFromURL(ctx context.Context, url string) (models.RecipeDraft, error) {
	if s.importer == nil {
		return models.RecipeDraft{}, apperr.New(apperr.CodeExternalService, "Recipe import is unavailable")
	}
	return s.importer.Import(ctx, url)
}

// FilterCounts tallies the recipes visible to the viewer by difficulty and cuisine.
func (s *RecipeService) FilterCounts(ctx context.Context, viewer auth.Viewer) (models.FilterCounts, error) {
	where, args := visibility(viewer)
	counts := models.FilterCounts{Difficulty: map[string]int{}, Cuisine: map[string]int{}}

	rows, err := s.db.QueryContext(ctx, "SELECT r.difficulty, COUNT(*) FROM recipes r WHERE "+where+" GROUP BY r.difficulty", args...)
	if err != nil {
		return counts, err
	}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			rows.Close()
			return counts, err
		}
		counts.Difficulty[k] = n
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, "SELECT lower(r.cuisine_type), COUNT(*) FROM recipes r WHERE "+where+" AND r.cuisine_type <> '' GROUP BY lower(r.cuisine_type)", args...)
	if err != nil {
		return counts, err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return counts, err
		}
		counts.Cuisine[k] = n
	}
	return counts, rows.Err()
}

// SuggestionInput describes what the viewer has to cook with.
type SuggestionInput struct {
	Available  []string `json:"ingredients"`
	MaxMissing *int     `json:"maxMissing"`
	MealType   string   `json:"mealType"`
	MaxTime    *int     `json:"maxTime"`
	Difficulty string   `json:"difficulty"`
}

// Suggest scores the viewer's visible recipes against the ingredients they
// have. When none are supplied the viewer's stocked pantry items are used.
func (s *RecipeService) Suggest(ctx context.Context, viewer auth.Viewer, in SuggestionInput) ([]models.RecipeSuggestion, error) {
	available := normalizeSet(in.Available)
	if len(available) == 0 && !viewer.Anonymous() {
		rows, err := s.db.QueryContext(ctx, "SELECT lower(name) FROM pantry_items WHERE user_id = ? AND current_quantity > 0", viewer.UserID)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return nil, err
			}
			available = append(available, name)
		}
		rows.Close()
	}
	if len(available) == 0 {
		return nil, apperr.Validation("No ingredients supplied and the pantry is empty")
	}

	maxMissing := 2
	if in.MaxMissing != nil && *in.MaxMissing >= 0 {
		maxMissing = *in.MaxMissing
	}

	f := RecipeFilter{MealType: in.MealType, MaxTotal: in.MaxTime}
	if in.Difficulty != "" {
		f.Difficulty = []string{in.Difficulty}
	}
	where, args, _ := buildFilter(viewer, f, s.now())
	rows, err := s.db.QueryContext(ctx, recipeSelect+" WHERE "+where, append([]interface{}{viewer.UserID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	recipes, err := scanRecipes(rows)
	if err != nil {
		return nil, err
	}

	suggestions := []models.RecipeSuggestion{}
	for _, r := range recipes {
		sg, ok := scoreRecipe(r, available)
		if ok && sg.MissingCount <= maxMissing {
			suggestions = append(suggestions, sg)
		}
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].MatchScore != suggestions[j].MatchScore {
			return suggestions[i].MatchScore > suggestions[j].MatchScore
		}
		return suggestions[i].MissingCount < suggestions[j].MissingCount
	})
	if len(suggestions) > 20 {
		suggestions = suggestions[:20]
	}
	return suggestions, nil
}

func scoreRecipe(r models.Recipe, available []string) (models.RecipeSuggestion, bool) {
	sg := models.RecipeSuggestion{Recipe: r, MatchedIngredients: []string{}, MissingIngredients: []string{}}
	for _, line := range ingredients.Lines(r.Ingredients) {
		key := ingredients.KeyName(line)
		if key == "" {
			continue
		}
		matched := false
		for _, a := range available {
			if strings.Contains(key, a) || strings.Contains(a, key) {
				matched = true
				break
			}
		}
		if matched {
			sg.MatchedIngredients = append(sg.MatchedIngredients, key)
		} else {
			sg.MissingIngredients = append(sg.MissingIngredients, key)
		}
	}
	total := len(sg.MatchedIngredients) + len(sg.MissingIngredients)
	if total == 0 {
		return sg, false
	}
	sg.MissingCount = len(sg.MissingIngredients)
	sg.MatchScore = float64(len(sg.MatchedIngredients)) / float64(total) * 100
	return sg, true
}
