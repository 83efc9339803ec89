package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecipeService(t *testing.T) (*RecipeService, func(tier string) auth.Viewer) {
	t.Helper()
	db := newTestDB(t)
	svc := NewRecipeService(db, NewEventService(db), nil)
	return svc, func(tier string) auth.Viewer { return viewerFor(createUser(t, db, tier)) }
}

func sampleRecipe(title string) RecipeInput {
	return RecipeInput{
		Title:       title,
		Description: "A simple " + gofakeit.Color() + " dish.",
		Ingredients: "200g pasta\n2 cloves garlic, minced\n1 tbsp olive oil\nsalt",
		Method:      "Boil pasta. Fry garlic. Combine.",
	}
}

func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }

func TestRecipeCreateDefaultsAndNutrition(t *testing.T) {
	svc, newViewer := newRecipeService(t)
	ctx := context.Background()
	owner := newViewer("home")

	in := sampleRecipe("Garlic Pasta")
	in.Tags = []string{"Dinner", " dinner ", "Quick"}
	in.Nutrition = &models.Nutrition{Calories: floatPtr(400), ProteinG: floatPtr(25), CarbsG: floatPtr(10), SodiumMg: floatPtr(120)}

	recipe, err := svc.CreateRecipe(ctx, owner, in)
	require.NoError(t, err)
	assert.Equal(t, 4, recipe.Servings)
	assert.Equal(t, "Medium", recipe.Difficulty)
	assert.Equal(t, []string{"dinner", "quick"}, recipe.Tags)
	assert.True(t, recipe.IsApproved)
	require.NotNil(t, recipe.Nutrition)
	assert.True(t, recipe.Nutrition.HighProtein)
	assert.True(t, recipe.Nutrition.LowCarb)
	assert.True(t, recipe.Nutrition.LowSodium)
	assert.False(t, recipe.Nutrition.HighFiber)
}

func TestRecipeTitleLimitCountsCharacters(t *testing.T) {
	svc, newViewer := newRecipeService(t)
	ctx := context.Background()
	owner := newViewer("home")

	accented := strings.Repeat("é", 200)
	recipe, err := svc.CreateRecipe(ctx, owner, sampleRecipe(accented))
	require.NoError(t, err)
	assert.Equal(t, accented, recipe.Title)

	_, err = svc.CreateRecipe(ctx, owner, sampleRecipe(accented+"é"))
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
}

func TestRecipeCreateFreeQuota(t *testing.T) {
	svc, newViewer := newRecipeService(t)
	ctx := context.Background()
	free := newViewer("")

	for i := 0; i < 10; i++ {
		_, err := svc.CreateRecipe(ctx, free, sampleRecipe(fmt.Sprintf("Recipe %d", i)))
		require.NoError(t, err)
	}
	_, err := svc.CreateRecipe(ctx, free, sampleRecipe("One too many"))
	assert.True(t, apperr.Is(err, apperr.CodeFeatureLocked))

	private := sampleRecipe("Secret")
	private.IsPrivate = true
	_, err = svc.CreateRecipe(ctx, newViewer(""), private)
	assert.True(t, apperr.Is(err, apperr.CodeFeatureLocked))
}

func TestRecipePrivacy(t *testing.T) {
	svc, newViewer := newRecipeService(t)
	ctx := context.Background()
	owner := newViewer("home")
	other := newViewer("pro")

	in := sampleRecipe("Family Secret")
	in.IsPrivate = true
	secret, err := svc.CreateRecipe(ctx, owner, in)
	require.NoError(t, err)
	_, err = svc.CreateRecipe(ctx, owner, sampleRecipe("Public Dish"))
	require.NoError(t, err)

	_, err = svc.GetRecipe(ctx, other, secret.ID)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))
	_, err = svc.GetRecipe(ctx, auth.Viewer{}, secret.ID)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))
	_, err = svc.GetRecipe(ctx, owner, secret.ID)
	assert.NoError(t, err)
	_, err = svc.GetRecipe(ctx, adminViewer(), secret.ID)
	assert.NoError(t, err)

	page, err := svc.ListRecipes(ctx, other, RecipeFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "Public Dish", page.Recipes[0].Title)

	page, err = svc.ListRecipes(ctx, owner, RecipeFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	_, err = svc.UpdateRecipe(ctx, other, secret.ID, sampleRecipe("Stolen"))
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))
	assert.True(t, apperr.Is(svc.DeleteRecipe(ctx, other, secret.ID), apperr.CodeForbidden))
	require.NoError(t, svc.DeleteRecipe(ctx, owner, secret.ID))
	_, err = svc.GetRecipe(ctx, owner, secret.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestRecipeUnapprovedHiddenFromOthers(t *testing.T) {
	svc, newViewer := newRecipeService(t)
	ctx := context.Background()
	owner := newViewer("")

	recipe, err := svc.CreateRecipe(ctx, owner, sampleRecipe("Pending"))
	require.NoError(t, err)
	no := false
	yes := true
	moderated, err := svc.Moderate(ctx, recipe.ID, &no, &yes)
	require.NoError(t, err)
	assert.False(t, moderated.IsApproved)
	assert.True(t, moderated.IsFeatured)

	_, err = svc.GetRecipe(ctx, auth.Viewer{}, recipe.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	_, err = svc.GetRecipe(ctx, owner, recipe.ID)
	assert.NoError(t, err)
}

func TestRecipeScaled(t *testing.T) {
	svc, newViewer := newRecipeService(t)
	ctx := context.Background()
	owner := newViewer("")

	recipe, err := svc.CreateRecipe(ctx, owner, sampleRecipe("Garlic Pasta"))
	require.NoError(t, err)

	scaled, err := svc.Scaled(ctx, owner, recipe.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.5, scaled.Factor)
	assert.Equal(t, []string{"100g pasta", "1 cloves garlic, minced", "0.5 tbsp olive oil", "salt"}, scaled.Ingredients)

	_, err = svc.Scaled(ctx, owner, recipe.ID, 0)
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
}

func TestRecipeFavourites(t *testing.T) {
	svc, newViewer := newRecipeService(t)
	ctx := context.Background()
	owner := newViewer("")
	fan := newViewer("")

	recipe, err := svc.CreateRecipe(ctx, owner, sampleRecipe("Loved"))
	require.NoError(t, err)

	require.NoError(t, svc.SetFavourite(ctx, fan, recipe.ID, true))
	require.NoError(t, svc.SetFavourite(ctx, fan, recipe.ID, true))

	favs, err := svc.ListFavourites(ctx, fan)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.True(t, favs[0].IsFavourite)

	page, err := svc.ListRecipes(ctx, fan, RecipeFilter{Favourite: true})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	require.NoError(t, svc.SetFavourite(ctx, fan, recipe.ID, false))
	favs, err = svc.ListFavourites(ctx, fan)
	require.NoError(t, err)
	assert.Empty(t, favs)

	assert.True(t, apperr.Is(svc.SetFavourite(ctx, fan, "missing", true), apperr.CodeNotFound))
}

func TestRecipeFilterFacets(t *testing.T) {
	svc, newViewer := newRecipeService(t)
	ctx := context.Background()
	author := newViewer("home")

	quick := sampleRecipe("Quick Salad")
	quick.PrepTime = intPtr(10)
	quick.Difficulty = "Easy"
	quick.CuisineType = "Greek"
	quick.DietaryRestrictions = []string{"vegan", "gluten-free"}
	quick.Equipment = []string{"knife"}
	quick.Tags = []string{"lunch"}
	quick.Nutrition = &models.Nutrition{Calories: floatPtr(250), FiberG: floatPtr(8)}

	slow := sampleRecipe("Slow Stew")
	slow.PrepTime = intPtr(30)
	slow.CookTime = intPtr(180)
	slow.Difficulty = "Hard"
	slow.CuisineType = "Irish"
	slow.DietaryRestrictions = []string{"gluten-free"}
	slow.Equipment = []string{"knife", "slow cooker"}
	slow.Tags = []string{"dinner", "one pot"}
	slow.FreezingInstructions = "Freeze for 3 months."
	slow.Nutrition = &models.Nutrition{Calories: floatPtr(700), FiberG: floatPtr(2)}

	_, err := svc.CreateRecipe(ctx, author, quick)
	require.NoError(t, err)
	_, err = svc.CreateRecipe(ctx, author, slow)
	require.NoError(t, err)

	cases := []struct {
		name   string
		filter RecipeFilter
		want   []string
	}{
		{"text", RecipeFilter{Query: "stew"}, []string{"Slow Stew"}},
		{"difficulty", RecipeFilter{Difficulty: []string{"Easy", "Medium"}}, []string{"Quick Salad"}},
		{"quick prep", RecipeFilter{QuickPrep: true}, []string{"Quick Salad"}},
		{"max total", RecipeFilter{MaxTotal: intPtr(60)}, []string{"Quick Salad"}},
		{"no cook", RecipeFilter{NoCook: true}, []string{"Quick Salad"}},
		{"cuisine", RecipeFilter{Cuisine: []string{"irish", "thai"}}, []string{"Slow Stew"}},
		{"meal type", RecipeFilter{MealType: "Lunch"}, []string{"Quick Salad"}},
		{"one pot", RecipeFilter{OnePot: true}, []string{"Slow Stew"}},
		{"freezer", RecipeFilter{Freezer: true}, []string{"Slow Stew"}},
		{"dietary all", RecipeFilter{Dietary: []string{"vegan", "gluten-free"}}, []string{"Quick Salad"}},
		{"equipment subset", RecipeFilter{Equipment: []string{"knife"}}, []string{"Quick Salad"}},
		{"max calories", RecipeFilter{MaxCalories: floatPtr(500)}, []string{"Quick Salad"}},
		{"high fiber", RecipeFilter{HighFiber: true}, []string{"Quick Salad"}},
		{"sort title desc", RecipeFilter{Sort: "title_desc"}, []string{"Slow Stew", "Quick Salad"}},
		{"sort difficulty", RecipeFilter{Sort: "difficulty_desc"}, []string{"Slow Stew", "Quick Salad"}},
		{"sort calories", RecipeFilter{Sort: "calories_asc"}, []string{"Quick Salad", "Slow Stew"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := svc.ListRecipes(ctx, author, tc.filter)
			require.NoError(t, err)
			var titles []string
			for _, r := range page.Recipes {
				titles = append(titles, r.Title)
			}
			assert.Equal(t, tc.want, titles)
			assert.False(t, page.AdvancedIgnored)
		})
	}
}

func TestRecipeFilterAdvancedIgnoredForFree(t *testing.T) {
	svc, newViewer := newRecipeService(t)
	ctx := context.Background()
	author := newViewer("")
	_, err := svc.CreateRecipe(ctx, author, sampleRecipe("Plain"))
	require.NoError(t, err)

	page, err := svc.ListRecipes(ctx, author, RecipeFilter{Dietary: []string{"vegan"}})
	require.NoError(t, err)
	assert.True(t, page.AdvancedIgnored)
	assert.Equal(t, 1, page.Total)
}

func TestRecipeListPagination(t *testing.T) {
	svc, newViewer := newRecipeService(t)
	ctx := context.Background()
	author := newViewer("home")
	for i := 0; i < 5; i++ {
		_, err := svc.CreateRecipe(ctx, author, sampleRecipe(fmt.Sprintf("Dish %d", i)))
		require.NoError(t, err)
	}

	page, err := svc.ListRecipes(ctx, author, RecipeFilter{Page: 2, PageSize: 2, Sort: "title_asc"})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.True(t, page.HasNext)
	require.Len(t, page.Recipes, 2)
	assert.Equal(t, "Dish 2", page.Recipes[0].Title)

	page, err = svc.ListRecipes(ctx, author, RecipeFilter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.False(t, page.HasNext)
	assert.Len(t, page.Recipes, 1)

	page, err = svc.ListRecipes(ctx, author, RecipeFilter{PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.PageSize)

	page, err = svc.ListRecipes(ctx, author, RecipeFilter{Page: math.MaxInt, PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, maxPage, page.Page)
	assert.Empty(t, page.Recipes)
	assert.False(t, page.HasNext)
}

func TestClampPage(t *testing.T) {
	page, size := clampPage(0, 0, 20, 100)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)

	page, size = clampPage(math.MaxInt, 500, 20, 100)
	assert.Equal(t, maxPage, page)
	assert.Equal(t, 100, size)

	page, size = clampPage(7, 15, 20, 100)
	assert.Equal(t, 7, page)
	assert.Equal(t, 15, size)
}

func TestRecipeFilterCounts(t *testing.T) {
	svc, newViewer := newRecipeService(t)
	ctx := context.Background()
	author := newViewer("")

	for _, c := range []string{"Thai", "thai", "Italian"} {
		in := sampleRecipe(c + " dish")
		in.CuisineType = c
		_, err := svc.CreateRecipe(ctx, author, in)
		require.NoError(t, err)
	}

	counts, err := svc.FilterCounts(ctx, auth.Viewer{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"thai": 2, "italian": 1}, counts.Cuisine)
	assert.Equal(t, map[string]int{"Medium": 3}, counts.Difficulty)
}

func TestRecipeSuggestions(t *testing.T) {
	svc, newViewer := newRecipeService(t)
	ctx := context.Background()
	author := newViewer("")

	omelette := sampleRecipe("Omelette")
	omelette.Ingredients = "3 eggs\n50g cheddar cheese\n1 tbsp butter"
	_, err := svc.CreateRecipe(ctx, author, omelette)
	require.NoError(t, err)

	curry := sampleRecipe("Curry")
	curry.Ingredients = "500g chicken thighs\n1 onion\n2 tbsp curry paste\n400ml coconut milk\n200g rice"
	_, err = svc.CreateRecipe(ctx, author, curry)
	require.NoError(t, err)

	got, err := svc.Suggest(ctx, author, SuggestionInput{Available: []string{"eggs", "butter", "cheddar"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Omelette", got[0].Recipe.Title)
	assert.Equal(t, 100.0, got[0].MatchScore)
	assert.Zero(t, got[0].MissingCount)

	got, err = svc.Suggest(ctx, author, SuggestionInput{Available: []string{"eggs"}, MaxMissing: intPtr(5)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Omelette", got[0].Recipe.Title)
	assert.Equal(t, []string{"cheddar cheese", "butter"}, got[0].MissingIngredients)

	_, err = svc.Suggest(ctx, author, SuggestionInput{})
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
}

func TestCurrentSeason(t *testing.T) {
	assert.Equal(t, "winter", CurrentSeason(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "spring", CurrentSeason(time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "summer", CurrentSeason(time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "autumn", CurrentSeason(time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)))
}
