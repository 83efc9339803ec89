package services

import (
	"context"
	"strings"
	"time"

	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
)

// RecipeFilter holds every optional facet of a recipe search. Zero values
// mean "not filtered".
type RecipeFilter struct {
	Query       string
	Difficulty  []string
	MinServings *int
	MaxServings *int
	MaxPrep     *int
	MaxCook     *int
	MaxTotal    *int
	QuickPrep   bool
	NoCook      bool
	Cuisine     []string
	MealType    string
	HasImage    bool
	Batch       bool
	Freezer     bool
	OnePot      bool
	Mine        bool
	Favourite   bool
	AuthorID    string
	Following   bool
	PublicOnly  bool

	// Advanced facets, honoured only with the advanced_filtering feature.
	MaxCalories  *float64
	MaxCarbs     *float64
	MaxFat       *float64
	MaxSodium    *float64
	MinProtein   *float64
	MinFiber     *float64
	HighProtein  bool
	LowCarb      bool
	HighFiber    bool
	LowSodium    bool
	IronRich     bool
	HasNutrition bool
	Dietary      []string
	Equipment    []string
	Season       string
	MaxCost      *float64

	Sort     string
	Page     int
	PageSize int
}

func (f RecipeFilter) hasAdvanced() bool {
	return f.MaxCalories != nil || f.MaxCarbs != nil || f.MaxFat != nil || f.MaxSodium != nil ||
		f.MinProtein != nil || f.MinFiber != nil || f.HighProtein || f.LowCarb || f.HighFiber ||
		f.LowSodium || f.IronRich || f.HasNutrition || len(f.Dietary) > 0 || len(f.Equipment) > 0 ||
		f.Season != "" || f.MaxCost != nil
}

// visibility returns the privacy clause for the viewer. A non-admin only ever
// sees public approved recipes plus their own.
func visibility(viewer auth.Viewer) (string, []interface{}) {
	switch {
	case viewer.IsAdmin:
		return "1 = 1", nil
	case viewer.Anonymous():
		return "(r.is_private = 0 AND r.is_approved = 1)", nil
	default:
		return "((r.is_private = 0 AND r.is_approved = 1) OR r.user_id = ?)", []interface{}{viewer.UserID}
	}
}

// CurrentSeason maps a month to its UK season.
func CurrentSeason(t time.Time) string {
	switch t.Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	}
	return "autumn"
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// queryBuilder accumulates AND-ed conditions and their arguments.
type queryBuilder struct {
	conds []string
	args  []interface{}
}

func (q *queryBuilder) add(cond string, args ...interface{}) {
	q.conds = append(q.conds, cond)
	q.args = append(q.args, args...)
}

func (q *queryBuilder) where() string {
	return strings.Join(q.conds, " AND ")
}

// buildFilter turns a filter into a WHERE clause over recipes r LEFT JOIN
// recipe_nutrition n. The returned flag reports advanced facets dropped
// because the viewer lacks advanced_filtering.
func buildFilter(viewer auth.Viewer, f RecipeFilter, now time.Time) (string, []interface{}, bool) {
	q := &queryBuilder{}
	vis, visArgs := visibility(viewer)
	q.add(vis, visArgs...)

	if text := strings.TrimSpace(f.Query); text != "" {
		like := "%" + text + "%"
		q.add(`(r.title LIKE ? OR r.description LIKE ? OR r.ingredients LIKE ? OR r.method LIKE ?
			OR r.country LIKE ? OR r.cuisine_type LIKE ?)`, like, like, like, like, like, like)
	}
	if len(f.Difficulty) > 0 {
		args := make([]interface{}, len(f.Difficulty))
		for i, d := range f.Difficulty {
			args[i] = d
		}
		q.add("r.difficulty IN ("+placeholders(len(args))+")", args...)
	}
	if f.MinServings != nil {
		q.add("r.servings >= ?", *f.MinServings)
	}
	if f.MaxServings != nil {
		q.add("r.servings <= ?", *f.MaxServings)
	}
	if f.MaxPrep != nil {
		q.add("(r.prep_time IS NULL OR r.prep_time <= ?)", *f.MaxPrep)
	}
	if f.MaxCook != nil {
		q.add("(r.cook_time IS NULL OR r.cook_time <= ?)", *f.MaxCook)
	}
	if f.MaxTotal != nil {
		q.add("(COALESCE(r.prep_time, 0) + COALESCE(r.cook_time, 0) <= ?)", *f.MaxTotal)
	}
	if f.QuickPrep {
		q.add("r.prep_time <= 15")
	}
	if f.NoCook {
		q.add("(r.cook_time IS NULL OR r.cook_time = 0)")
	}
	if len(f.Cuisine) > 0 {
		conds := make([]string, 0, len(f.Cuisine))
		for _, c := range f.Cuisine {
			conds = append(conds, "lower(r.cuisine_type) LIKE ?")
			q.args = append(q.args, "%"+strings.ToLower(c)+"%")
		}
		q.conds = append(q.conds, "("+strings.Join(conds, " OR ")+")")
	}
	if f.MealType != "" {
		q.add("EXISTS (SELECT 1 FROM json_each(r.tags_json) WHERE value LIKE ?)", "%"+strings.ToLower(f.MealType)+"%")
	}
	if f.HasImage {
		q.add("r.image_url <> ''")
	}
	if f.Batch {
		q.add("r.batch_cooking_notes <> ''")
	}
	if f.Freezer {
		q.add("r.freezing_instructions <> ''")
	}
	if f.OnePot {
		q.add("EXISTS (SELECT 1 FROM json_each(r.tags_json) WHERE value IN ('one pot', 'one-pot', 'one pan', 'one-pan', 'skillet'))")
	}
	if f.Mine && !viewer.Anonymous() {
		q.add("r.user_id = ?", viewer.UserID)
	}
	if f.Favourite && !viewer.Anonymous() {
		q.add("EXISTS (SELECT 1 FROM favourites fv WHERE fv.recipe_id = r.id AND fv.user_id = ?)", viewer.UserID)
	}
	if f.PublicOnly {
		q.add("r.is_private = 0 AND r.is_approved = 1")
	}
	if f.AuthorID != "" {
		q.add("r.user_id = ?", f.AuthorID)
	}
	if f.Following && !viewer.Anonymous() {
		q.add("r.user_id IN (SELECT followed_id FROM follows WHERE follower_id = ?)", viewer.UserID)
	}

	if !f.hasAdvanced() {
		return q.where(), q.args, false
	}
	if !viewer.Has("advanced_filtering") {
		return q.where(), q.args, true
	}

	maxNutrient := func(col string, v *float64) {
		if v != nil {
			q.add("(n."+col+" IS NULL OR n."+col+" <= ?)", *v)
		}
	}
	maxNutrient("calories", f.MaxCalories)
	maxNutrient("carbs_g", f.MaxCarbs)
	maxNutrient("fat_g", f.MaxFat)
	maxNutrient("sodium_mg", f.MaxSodium)
	if f.MinProtein != nil {
		q.add("n.protein_g >= ?", *f.MinProtein)
	}
	if f.MinFiber != nil {
		q.add("n.fiber_g >= ?", *f.MinFiber)
	}
	flags := []struct {
		on  bool
		col string
	}{
		{f.HighProtein, "is_high_protein"},
		{f.LowCarb, "is_low_carb"},
		{f.HighFiber, "is_high_fiber"},
		{f.LowSodium, "is_low_sodium"},
		{f.IronRich, "is_iron_rich"},
	}
	for _, fl := range flags {
		if fl.on {
			q.add("n." + fl.col + " = 1")
		}
	}
	if f.HasNutrition {
		q.add("n.recipe_id IS NOT NULL")
	}
	for _, d := range normalizeSet(f.Dietary) {
		q.add("EXISTS (SELECT 1 FROM json_each(r.dietary_json) WHERE value = ?)", d)
	}
	if equipment := normalizeSet(f.Equipment); len(equipment) > 0 {
		args := make([]interface{}, len(equipment))
		for i, e := range equipment {
			args[i] = e
		}
		q.add("NOT EXISTS (SELECT 1 FROM json_each(r.equipment_json) WHERE value NOT IN ("+placeholders(len(args))+"))", args...)
	}
	if season := strings.ToLower(strings.TrimSpace(f.Season)); season != "" {
		if season == "current" {
			season = CurrentSeason(now)
		}
		q.add("EXISTS (SELECT 1 FROM json_each(r.seasons_json) WHERE value = ?)", season)
	}
	if f.MaxCost != nil {
		q.add("(r.cost_per_serving IS NULL OR r.cost_per_serving <= ?)", *f.MaxCost)
	}
	return q.where(), q.args, false
}

const avgRatingExpr = "(SELECT AVG(rating) FROM reviews WHERE recipe_id = r.id)"

var recipeSorts = map[string]string{
	"newest":          "r.created_at DESC",
	"oldest":          "r.created_at ASC",
	"title_asc":       "r.title COLLATE NOCASE ASC",
	"title_desc":      "r.title COLLATE NOCASE DESC",
	"prep_time_asc":   "r.prep_time IS NULL, r.prep_time ASC",
	"prep_time_desc":  "r.prep_time IS NULL, r.prep_time DESC",
	"total_time_asc":  "(r.prep_time IS NULL AND r.cook_time IS NULL), COALESCE(r.prep_time, 0) + COALESCE(r.cook_time, 0) ASC",
	"total_time_desc": "(r.prep_time IS NULL AND r.cook_time IS NULL), COALESCE(r.prep_time, 0) + COALESCE(r.cook_time, 0) DESC",
	"difficulty_asc":  "CASE r.difficulty WHEN 'Easy' THEN 1 WHEN 'Medium' THEN 2 ELSE 3 END ASC",
	"difficulty_desc": "CASE r.difficulty WHEN 'Easy' THEN 1 WHEN 'Medium' THEN 2 ELSE 3 END DESC",
	"rating_desc":     avgRatingExpr + " IS NULL, " + avgRatingExpr + " DESC",
	"calories_asc":    "n.calories IS NULL, n.calories ASC",
	"calories_desc":   "n.calories IS NULL, n.calories DESC",
	"cost_asc":        "r.cost_per_serving IS NULL, r.cost_per_serving ASC",
	"cost_desc":       "r.cost_per_serving IS NULL, r.cost_per_serving DESC",
}

func orderClause(sort string) string {
	order, ok := recipeSorts[sort]
	if !ok {
		order = recipeSorts["newest"]
	}
	return " ORDER BY " + order + ", r.created_at DESC, r.id"
}

// ListRecipes runs a filtered, sorted and paginated recipe search.
func (s *RecipeService) ListRecipes(ctx context.Context, viewer auth.Viewer, f RecipeFilter) (models.RecipePage, error) {
	page, size := clampPage(f.Page, f.PageSize, 20, 100)
	where, args, ignored := buildFilter(viewer, f, s.now())

	var total int
	countQuery := "SELECT COUNT(*) FROM recipes r LEFT JOIN recipe_nutrition n ON n.recipe_id = r.id WHERE " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return models.RecipePage{}, err
	}

	query := recipeSelect + " WHERE " + where + orderClause(f.Sort) + " LIMIT ? OFFSET ?"
	queryArgs := append([]interface{}{viewer.UserID}, args...)
	queryArgs = append(queryArgs, size, (page-1)*size)
	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return models.RecipePage{}, err
	}
	defer rows.Close()

	recipes, err := scanRecipes(rows)
	if err != nil {
		return models.RecipePage{}, err
	}
	return models.RecipePage{
		Recipes:         recipes,
		Page:            page,
		PageSize:        size,
		Total:           total,
		HasNext:         page*size < total,
		AdvancedIgnored: ignored,
	}, nil
}
