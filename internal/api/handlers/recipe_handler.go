package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
)

// RecipeHandler handles HTTP requests for recipes.
type RecipeHandler struct {
	service services.RecipeServiceProvider
}

// NewRecipeHandler creates a new RecipeHandler.
func NewRecipeHandler(service services.RecipeServiceProvider) *RecipeHandler {
	return &RecipeHandler{service: service}
}

// ParseRecipeFilter reads search facets from the query string.
func ParseRecipeFilter(r *http.Request) (services.RecipeFilter, error) {
	q := r.URL.Query()
	f := services.RecipeFilter{
		Query:        q.Get("q"),
		Difficulty:   queryList(r, "difficulty"),
		QuickPrep:    queryBool(r, "quick_prep"),
		NoCook:       queryBool(r, "no_cook"),
		Cuisine:      queryList(r, "cuisine"),
		MealType:     q.Get("meal_type"),
		HasImage:     queryBool(r, "has_image"),
		Batch:        queryBool(r, "batch_cooking"),
		Freezer:      queryBool(r, "freezer_friendly"),
		OnePot:       queryBool(r, "one_pot"),
		Mine:         queryBool(r, "mine"),
		Favourite:    queryBool(r, "favourite"),
		AuthorID:     q.Get("author"),
		HighProtein:  queryBool(r, "high_protein"),
		LowCarb:      queryBool(r, "low_carb"),
		HighFiber:    queryBool(r, "high_fiber"),
		LowSodium:    queryBool(r, "low_sodium"),
		IronRich:     queryBool(r, "iron_rich"),
		HasNutrition: queryBool(r, "has_nutrition"),
		Dietary:      queryList(r, "dietary"),
		Equipment:    queryList(r, "equipment"),
		Season:       q.Get("season"),
		Sort:         q.Get("sort"),
		Page:         queryInt(r, "page", 1),
		PageSize:     queryInt(r, "page_size", 20),
	}

	ints := map[string]**int{
		"min_servings": &f.MinServings,
		"max_servings": &f.MaxServings,
		"max_prep":     &f.MaxPrep,
		"max_cook":     &f.MaxCook,
		"max_total":    &f.MaxTotal,
	}
	for key, dst := range ints {
		v, err := queryIntPtr(r, key)
		if err != nil {
			return f, err
		}
		*dst = v
	}
	floats := map[string]**float64{
		"max_calories": &f.MaxCalories,
		"max_carbs":    &f.MaxCarbs,
		"max_fat":      &f.MaxFat,
		"max_sodium":   &f.MaxSodium,
		"min_protein":  &f.MinProtein,
		"min_fiber":    &f.MinFiber,
		"max_cost":     &f.MaxCost,
	}
	for key, dst := range floats {
		v, err := queryFloatPtr(r, key)
		if err != nil {
			return f, err
		}
		*dst = v
	}
	return f, nil
}

// List searches the recipes visible to the caller.
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := ParseRecipeFilter(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	page, err := h.service.ListRecipes(r.Context(), viewer(r), f)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, page)
}

// Counts returns facet counts for the filter sidebar.
func (h *RecipeHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.FilterCounts(r.Context(), viewer(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, counts)
}

// Get returns one recipe.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	recipe, err := h.service.GetRecipe(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"recipe": recipe})
}

// Create adds a recipe owned by the caller.
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.RecipeInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	recipe, err := h.service.CreateRecipe(r.Context(), viewer(r), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"recipe": recipe})
}

// Update edits a recipe the caller owns.
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in services.RecipeInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	recipe, err := h.service.UpdateRecipe(r.Context(), viewer(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"recipe": recipe})
}

// Delete removes a recipe the caller owns.
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRecipe(r.Context(), viewer(r), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

// Favourite marks a recipe as a favourite.
func (h *RecipeHandler) Favourite(w http.ResponseWriter, r *http.Request) {
	h.setFavourite(w, r, true)
}

// Unfavourite removes a recipe from the favourites.
func (h *RecipeHandler) Unfavourite(w http.ResponseWriter, r *http.Request) {
	h.setFavourite(w, r, false)
}

func (h *RecipeHandler) setFavourite(w http.ResponseWriter, r *http.Request, favourite bool) {
	if err := h.service.SetFavourite(r.Context(), viewer(r), chi.URLParam(r, "id"), favourite); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"isFavourite": favourite})
}

// Favourites lists the caller's favourite recipes.
func (h *RecipeHandler) Favourites(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.service.ListFavourites(r.Context(), viewer(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"recipes": recipes})
}

// Scaled returns the ingredient list rescaled to ?servings=N.
func (h *RecipeHandler) Scaled(w http.ResponseWriter, r *http.Request) {
	servings := queryInt(r, "servings", 0)
	if servings < 1 || servings > 100 {
		respond.Error(w, r, apperr.Validation("servings must be between 1 and 100"))
		return
	}
	scaled, err := h.service.Scaled(r.Context(), viewer(r), chi.URLParam(r, "id"), servings)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, scaled)
}

// Suggest answers "what can I cook" from supplied ingredients or the pantry.
func (h *RecipeHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var in services.SuggestionInput
	if r.ContentLength != 0 {
		if err := respond.Decode(r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
	}
	suggestions, err := h.service.Suggest(r.Context(), viewer(r), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"suggestions": suggestions, "count": len(suggestions)})
}

// Import extracts a recipe draft from a web page.
func (h *RecipeHandler) Import(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URL string `json:"url" validate:"required,url"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	draft, err := h.service.ImportFromURL(r.Context(), payload.URL)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"recipe": draft})
}

// Moderate approves or features a recipe. Admin only.
func (h *RecipeHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IsApproved *bool `json:"isApproved"`
		IsFeatured *bool `json:"isFeatured"`
	}
	if err := respond.Decode(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	recipe, err := h.service.Moderate(r.Context(), chi.URLParam(r, "id"), payload.IsApproved, payload.IsFeatured)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"recipe": recipe})
}
