package models

// Dashboard is the at-a-glance summary for the signed-in user.
type Dashboard struct {
	RecipeCount        int     `json:"recipeCount"`
	FavouriteCount     int     `json:"favouriteCount"`
	PantryLowStock     int     `json:"pantryLowStock"`
	PantryExpiringSoon int     `json:"pantryExpiringSoon"`
	ShoppingItems      int     `json:"shoppingItems"`
	ShoppingPurchased  int     `json:"shoppingPurchased"`
	CaloriesToday      float64 `json:"caloriesToday"`
	WaterTodayMl       int     `json:"waterTodayMl"`
}
