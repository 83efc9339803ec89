// Package tiers defines subscription plans and the features each unlocks.
package tiers

import "sort"

const (
	Free   = "free"
	Home   = "home"
	Family = "family"
	Pro    = "pro"
)

// FreeRecipeLimit caps how many recipes a plan without unlimited_recipes may own.
const FreeRecipeLimit = 10

// order lists plans from cheapest to most expensive. Each plan includes the
// features of every plan before it.
var order = []string{Free, Home, Family, Pro}

var planFeatures = map[string][]string{
	Free: {
		"basic_recipes", "search", "public_recipes", "basic_filtering",
		"recipe_reviews_read", "upload_recipes", "community_features",
		"recipe_reviews", "recipe_collections", "cooking_challenges", "social_features",
	},
	Home: {
		"unlimited_recipes", "private_recipes", "basic_tools", "import_recipes",
		"advanced_filtering", "nutrition_analysis", "equipment_filtering",
		"smart_substitutions", "price_comparison_trends", "budget_suggestions_dynamic",
		"meal_planning_advanced", "batch_cooking", "voice_assistant",
		"offline_recipes_themed", "community_photos", "seasonal_suggestions",
		"priority_support", "pantry_tracker", "url_import", "meal_planning",
		"shopping_list_generation", "meal_planning_basic",
	},
	Family: {
		"multi_user", "family_sharing", "price_comparison_multi",
		"budget_suggestions", "pantry_tracker_family", "dynamic_budget_alerts",
	},
	Pro: {
		"pantry_tracker_predictive", "barcode_scanning", "priority_chat_support",
		"smart_consumption_forecasting", "multi_store_price_comparison",
		"advanced_analytics", "premium_content",
	},
}

var resolved = buildResolved()

func buildResolved() map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(order))
	acc := map[string]bool{}
	for _, plan := range order {
		for _, f := range planFeatures[plan] {
			acc[f] = true
		}
		set := make(map[string]bool, len(acc))
		for f := range acc {
			set[f] = true
		}
		out[plan] = set
	}
	return out
}

// Valid reports whether tier names a known plan.
func Valid(tier string) bool {
	_, ok := resolved[tier]
	return ok
}

// Normalize maps unknown tiers to Free.
func Normalize(tier string) string {
	if Valid(tier) {
		return tier
	}
	return Free
}

// HasFeature reports whether the plan includes feature.
func HasFeature(tier, feature string) bool {
	return resolved[Normalize(tier)][feature]
}

// Features returns the sorted feature list of a plan.
func Features(tier string) []string {
	set := resolved[Normalize(tier)]
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// RecipeLimit returns the recipe quota of a plan; zero means unlimited.
func RecipeLimit(tier string) int {
	if HasFeature(tier, "unlimited_recipes") {
		return 0
	}
	return FreeRecipeLimit
}

// Plans returns every plan name in ascending order.
func Plans() []string {
	return append([]string(nil), order...)
}
