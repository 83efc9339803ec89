package models

import (
	"encoding/json"
	"time"
)

// Recipe is a user-authored dish with ingredients, method and optional nutrition.
type Recipe struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"userId"`
	Author               string     `json:"author,omitempty"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Ingredients          string     `json:"ingredients"`
	Method               string     `json:"method"`
	PrepTime             *int       `json:"prepTime"`
	CookTime             *int       `json:"cookTime"`
	Servings             int        `json:"servings"`
	Difficulty           string     `json:"difficulty"`
	Country              string     `json:"country"`
	CuisineType          string     `json:"cuisineType"`
	ImageURL             string     `json:"imageUrl"`
	IsPrivate            bool       `json:"isPrivate"`
	IsApproved           bool       `json:"isApproved"`
	IsFeatured           bool       `json:"isFeatured"`
	CostPerServing       *float64   `json:"costPerServing"`
	BatchCookingNotes    string     `json:"batchCookingNotes"`
	FreezingInstructions string     `json:"freezingInstructions"`
	Nutrition            *Nutrition `json:"nutrition,omitempty"`

	TagsJSON      string `json:"-"`
	DietaryJSON   string `json:"-"`
	EquipmentJSON string `json:"-"`
	SeasonsJSON   string `json:"-"`

	Tags                []string `json:"tags"`
	DietaryRestrictions []string `json:"dietaryRestrictions"`
	Equipment           []string `json:"equipment"`
	SeasonalTags        []string `json:"seasonalTags"`

	AverageRating float64   `json:"averageRating"`
	ReviewCount   int       `json:"reviewCount"`
	IsFavourite   bool      `json:"isFavourite"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Nutrition holds per-serving nutrition facts and the flags derived from them.
type Nutrition struct {
	Calories    *float64 `json:"calories"`
	ProteinG    *float64 `json:"proteinG"`
	CarbsG      *float64 `json:"carbsG"`
	FatG        *float64 `json:"fatG"`
	FiberG      *float64 `json:"fiberG"`
	SugarG      *float64 `json:"sugarG"`
	SodiumMg    *float64 `json:"sodiumMg"`
	IronMg      *float64 `json:"ironMg"`
	HighProtein bool     `json:"isHighProtein"`
	LowCarb     bool     `json:"isLowCarb"`
	HighFiber   bool     `json:"isHighFiber"`
	LowSodium   bool     `json:"isLowSodium"`
	IronRich    bool     `json:"isIronRich"`
}

func val(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// DeriveFlags computes the dietary flags. Protein gives 4 kcal per gram,
// carbohydrate 4 kcal per gram.
func (n *Nutrition) DeriveFlags() {
	calories := val(n.Calories)
	proteinShare, carbShare := 0.0, -1.0
	if calories > 0 {
		proteinShare = val(n.ProteinG) * 4 / calories * 100
		carbShare = val(n.CarbsG) * 4 / calories * 100
	}
	n.HighProtein = proteinShare > 20 || val(n.ProteinG) > 20
	n.LowCarb = carbShare >= 0 && carbShare < 20
	n.HighFiber = val(n.FiberG) > 5
	n.LowSodium = n.SodiumMg != nil && *n.SodiumMg < 300
	n.IronRich = val(n.IronMg) > 3
}

// PrepareForDB marshals the string sets into their JSON columns.
func (r *Recipe) PrepareForDB() {
	r.TagsJSON = marshalSet(r.Tags)
	r.DietaryJSON = marshalSet(r.DietaryRestrictions)
	r.EquipmentJSON = marshalSet(r.Equipment)
	r.SeasonsJSON = marshalSet(r.SeasonalTags)
	if r.Nutrition != nil {
		r.Nutrition.DeriveFlags()
	}
}

// PrepareForAPI unmarshals the JSON columns for responses.
func (r *Recipe) PrepareForAPI() {
	r.Tags = unmarshalSet(r.TagsJSON)
	r.DietaryRestrictions = unmarshalSet(r.DietaryJSON)
	r.Equipment = unmarshalSet(r.EquipmentJSON)
	r.SeasonalTags = unmarshalSet(r.SeasonsJSON)
}

func marshalSet(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return string(b)
}

func unmarshalSet(raw string) []string {
	out := []string{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &out)
	}
	return out
}

// RecipePage is one page of a filtered recipe listing.
type RecipePage struct {
	Recipes         []Recipe `json:"recipes"`
	Page            int      `json:"page"`
	PageSize        int      `json:"pageSize"`
	Total           int      `json:"total"`
	HasNext         bool     `json:"hasNext"`
	AdvancedIgnored bool     `json:"advancedIgnored,omitempty"`
}

// FilterCounts breaks the visible recipe set down by facet value.
type FilterCounts struct {
	Difficulty map[string]int `json:"difficulty"`
	Cuisine    map[string]int `json:"cuisine"`
}

// RecipeSuggestion scores a recipe against the ingredients a user has.
type RecipeSuggestion struct {
	Recipe             Recipe   `json:"recipe"`
	MatchScore         float64  `json:"matchScore"`
	MatchedIngredients []string `json:"matchedIngredients"`
	MissingIngredients []string `json:"missingIngredients"`
	MissingCount       int      `json:"missingCount"`
}

// RecipeDraft is a recipe extracted from an external web page, not yet saved.
type RecipeDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	Method      []string `json:"method"`
	PrepTime    *int     `json:"prepTime"`
	CookTime    *int     `json:"cookTime"`
	Servings    int      `json:"servings"`
	ImageURL    string   `json:"imageUrl"`
	SourceURL   string   `json:"sourceUrl"`
}
