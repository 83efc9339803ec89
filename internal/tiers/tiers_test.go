package tiers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeaturesAreCumulative(t *testing.T) {
	assert.True(t, HasFeature(Free, "recipe_reviews"))
	assert.False(t, HasFeature(Free, "pantry_tracker"))

	assert.True(t, HasFeature(Home, "pantry_tracker"))
	assert.True(t, HasFeature(Home, "recipe_reviews"))
	assert.False(t, HasFeature(Home, "multi_user"))

	assert.True(t, HasFeature(Family, "multi_user"))
	assert.True(t, HasFeature(Family, "url_import"))
	assert.False(t, HasFeature(Family, "multi_store_price_comparison"))

	assert.True(t, HasFeature(Pro, "multi_store_price_comparison"))
	assert.True(t, HasFeature(Pro, "basic_recipes"))
}

func TestUnknownTierIsFree(t *testing.T) {
	assert.False(t, Valid("platinum"))
	assert.Equal(t, Free, Normalize("platinum"))
	assert.Equal(t, Features(Free), Features("platinum"))
}

func TestRecipeLimit(t *testing.T) {
	assert.Equal(t, FreeRecipeLimit, RecipeLimit(Free))
	assert.Equal(t, 0, RecipeLimit(Home))
}

func TestFeaturesSortedAndGrowing(t *testing.T) {
	prev := 0
	for _, plan := range Plans() {
		feats := Features(plan)
		assert.IsIncreasing(t, feats)
		assert.Greater(t, len(feats), prev, plan)
		prev = len(feats)
	}
}
