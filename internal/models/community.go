package models

import "time"

// Review is a user's rating of a recipe. A user has at most one per recipe.
type Review struct {
	ID        string    `json:"id"`
	RecipeID  string    `json:"recipeId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReviewSummary aggregates the reviews of one recipe.
type ReviewSummary struct {
	Reviews       []Review `json:"reviews"`
	AverageRating float64  `json:"averageRating"`
	Count         int      `json:"count"`
}

// Comment is a threaded discussion entry on a recipe.
type Comment struct {
	ID        string    `json:"id"`
	RecipeID  string    `json:"recipeId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	ParentID  *string   `json:"parentId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Collection is a named group of recipes curated by a user.
type Collection struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPublic    bool      `json:"isPublic"`
	RecipeIDs   []string  `json:"recipeIds"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Follow links a follower to a followed user.
type Follow struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}
