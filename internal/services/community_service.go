package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
)

// CommunityServiceProvider defines the interface for reviews, comments,
// follows, collections and the recipe feed.
type CommunityServiceProvider interface {
	UpsertReview(ctx context.Context, viewer auth.Viewer, recipeID string, rating int, comment string) (models.Review, error)
	ListReviews(ctx context.Context, viewer auth.Viewer, recipeID string) (models.ReviewSummary, error)
	DeleteReview(ctx context.Context, viewer auth.Viewer, reviewID string) error
	AddComment(ctx context.Context, viewer auth.Viewer, recipeID string, parentID *string, body string) (models.Comment, error)
	ListComments(ctx context.Context, viewer auth.Viewer, recipeID string) ([]models.Comment, error)
	DeleteComment(ctx context.Context, viewer auth.Viewer, commentID string) error
	Follow(ctx context.Context, followerID, followedID string) error
	Unfollow(ctx context.Context, followerID, followedID string) error
	Followers(ctx context.Context, userID string) ([]models.Follow, error)
	Following(ctx context.Context, userID string) ([]models.Follow, error)
	CreateCollection(ctx context.Context, viewer auth.Viewer, in CollectionInput) (models.Collection, error)
	GetCollection(ctx context.Context, viewer auth.Viewer, id string) (models.Collection, error)
	ListCollections(ctx context.Context, viewer auth.Viewer, ownerID string) ([]models.Collection, error)
	UpdateCollection(ctx context.Context, viewer auth.Viewer, id string, in CollectionInput) (models.Collection, error)
	DeleteCollection(ctx context.Context, viewer auth.Viewer, id string) error
	SetCollectionRecipe(ctx context.Context, viewer auth.Viewer, id, recipeID string, present bool) (models.Collection, error)
	Feed(ctx context.Context, viewer auth.Viewer, following bool, page, pageSize int) (models.RecipePage, error)
}

// CollectionInput is the writable part of a collection.
type CollectionInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	IsPublic    bool   `json:"isPublic"`
}

// CommunityService provides the social features around recipes.
type CommunityService struct {
	db      *sql.DB
	recipes *RecipeService
	now     func() time.Time
}

// NewCommunityService creates a new CommunityService.
func NewCommunityService(db *sql.DB, recipes *RecipeService) *CommunityService {
	return &CommunityService{db: db, recipes: recipes, now: time.Now}
}

// UpsertReview creates or replaces the viewer's review of a recipe. Ratings
// are clamped to 1..5.
func (s *CommunityService) UpsertReview(ctx context.Context, viewer auth.Viewer, recipeID string, rating int, comment string) (models.Review, error) {
	recipe, err := s.recipes.GetRecipe(ctx, viewer, recipeID)
	if err != nil {
		return models.Review{}, err
	}
	if recipe.UserID == viewer.UserID {
		return models.Review{}, apperr.Forbidden("You cannot review your own recipe")
	}
	if utf8.RuneCountInString(comment) > 2000 {
		return models.Review{}, apperr.Validation("Review comment must be at most 2000 characters")
	}
	if rating < 1 {
		rating = 1
	}
	if rating > 5 {
		rating = 5
	}

	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reviews (id, recipe_id, user_id, rating, comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (recipe_id, user_id) DO UPDATE SET rating = excluded.rating, comment = excluded.comment, updated_at = excluded.updated_at`,
		uuid.New().String(), recipeID, viewer.UserID, rating, strings.TrimSpace(comment), now, now)
	if err != nil {
		return models.Review{}, fmt.Errorf("failed to save review: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT rv.id, rv.recipe_id, rv.user_id, u.username, rv.rating, rv.comment, rv.created_at, rv.updated_at
		FROM reviews rv JOIN users u ON u.id = rv.user_id
		WHERE rv.recipe_id = ? AND rv.user_id = ?`, recipeID, viewer.UserID)
	return scanReview(row)
}

func scanReview(row scanner) (models.Review, error) {
	var r models.Review
	err := row.Scan(&r.ID, &r.RecipeID, &r.UserID, &r.Username, &r.Rating, &r.Comment, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// ListReviews returns a recipe's reviews with their average and count.
func (s *CommunityService) ListReviews(ctx context.Context, viewer auth.Viewer, recipeID string) (models.ReviewSummary, error) {
	if _, err := s.recipes.GetRecipe(ctx, viewer, recipeID); err != nil {
		return models.ReviewSummary{}, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT rv.id, rv.recipe_id, rv.user_id, u.username, rv.rating, rv.comment, rv.created_at, rv.updated_at
		FROM reviews rv JOIN users u ON u.id = rv.user_id
		WHERE rv.recipe_id = ? ORDER BY rv.updated_at DESC`, recipeID)
	if err != nil {
		return models.ReviewSummary{}, err
	}
	defer rows.Close()

	summary := models.ReviewSummary{Reviews: []models.Review{}}
	total := 0
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return models.ReviewSummary{}, err
		}
		total += r.Rating
		summary.Reviews = append(summary.Reviews, r)
	}
	summary.Count = len(summary.Reviews)
	if summary.Count > 0 {
		summary.AverageRating = float64(total) / float64(summary.Count)
	}
	return summary, rows.Err()
}

// DeleteReview removes a review written by the viewer, or any review for admins.
func (s *CommunityService) DeleteReview(ctx context.Context, viewer auth.Viewer, reviewID string) error {
	var owner string
	if err := s.db.QueryRowContext(ctx, "SELECT user_id FROM reviews WHERE id = ?", reviewID).Scan(&owner); err != nil {
		if isNoRows(err) {
			return apperr.NotFound("review", reviewID)
		}
		return err
	}
	if owner != viewer.UserID && !viewer.IsAdmin {
		return apperr.Forbidden("You can only delete your own reviews")
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM reviews WHERE id = ?", reviewID)
	return err
}

// AddComment posts a comment, optionally as a reply to another comment on the same recipe.
func (s *CommunityService) AddComment(ctx context.Context, viewer auth.Viewer, recipeID string, parentID *string, body string) (models.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > 2000 {
		return models.Comment{}, apperr.Validation("Comment must be between 1 and 2000 characters")
	}
	if _, err := s.recipes.GetRecipe(ctx, viewer, recipeID); err != nil {
		return models.Comment{}, err
	}
	if parentID != nil && *parentID != "" {
		var parentRecipe string
		err := s.db.QueryRowContext(ctx, "SELECT recipe_id FROM comments WHERE id = ?", *parentID).Scan(&parentRecipe)
		if err != nil || parentRecipe != recipeID {
			return models.Comment{}, apperr.Validation("Parent comment does not belong to this recipe")
		}
	} else {
		parentID = nil
	}

	c := models.Comment{
		ID:        uuid.New().String(),
		RecipeID:  recipeID,
		UserID:    viewer.UserID,
		ParentID:  parentID,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO comments (id, recipe_id, user_id, parent_id, body, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.RecipeID, c.UserID, c.ParentID, c.Body, c.CreatedAt)
	if err != nil {
		return models.Comment{}, fmt.Errorf("failed to add comment: %w", err)
	}
	_ = s.db.QueryRowContext(ctx, "SELECT username FROM users WHERE id = ?", c.UserID).Scan(&c.Username)
	return c, nil
}

// ListComments returns a recipe's comments oldest first; replies carry their parent id.
func (s *CommunityService) ListComments(ctx context.Context, viewer auth.Viewer, recipeID string) ([]models.Comment, error) {
	if _, err := s.recipes.GetRecipe(ctx, viewer, recipeID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.recipe_id, c.user_id, u.username, c.parent_id, c.body, c.created_at
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.recipe_id = ? ORDER BY c.created_at`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.RecipeID, &c.UserID, &c.Username, &c.ParentID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// DeleteComment removes a comment and its replies. Only the author or an admin may delete.
func (s *CommunityService) DeleteComment(ctx context.Context, viewer auth.Viewer, commentID string) error {
	var author string
	if err := s.db.QueryRowContext(ctx, "SELECT user_id FROM comments WHERE id = ?", commentID).Scan(&author); err != nil {
		if isNoRows(err) {
			return apperr.NotFound("comment", commentID)
		}
		return err
	}
	if author != viewer.UserID && !viewer.IsAdmin {
		return apperr.Forbidden("You can only delete your own comments")
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", commentID)
	return err
}

// Follow makes followerID follow followedID. Following twice is a no-op.
func (s *CommunityService) Follow(ctx context.Context, followerID, followedID string) error {
	if followerID == followedID {
		return apperr.Validation("You cannot follow yourself")
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE id = ?", followedID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return apperr.NotFound("user", followedID)
	}
	_, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO follows (follower_id, followed_id, created_at) VALUES (?, ?, ?)", followerID, followedID, s.now().UTC())
	return err
}

// Unfollow removes a follow if present.
func (s *CommunityService) Unfollow(ctx context.Context, followerID, followedID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM follows WHERE follower_id = ? AND followed_id = ?", followerID, followedID)
	return err
}

func (s *CommunityService) follows(ctx context.Context, query, userID string) ([]models.Follow, error) {
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Follow{}
	for rows.Next() {
		var f models.Follow
		if err := rows.Scan(&f.UserID, &f.Username, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Followers lists the users following userID.
func (s *CommunityService) Followers(ctx context.Context, userID string) ([]models.Follow, error) {
	return s.follows(ctx, `
		SELECT u.id, u.username, f.created_at FROM follows f JOIN users u ON u.id = f.follower_id
		WHERE f.followed_id = ? ORDER BY f.created_at DESC`, userID)
}

// Following lists the users userID follows.
func (s *CommunityService) Following(ctx context.Context, userID string) ([]models.Follow, error) {
	return s.follows(ctx, `
		SELECT u.id, u.username, f.created_at FROM follows f JOIN users u ON u.id = f.followed_id
		WHERE f.follower_id = ? ORDER BY f.created_at DESC`, userID)
}

// CreateCollection creates a recipe collection owned by the viewer.
func (s *CommunityService) CreateCollection(ctx context.Context, viewer auth.Viewer, in CollectionInput) (models.Collection, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Collection{}, apperr.Validation("Collection name is required")
	}
	c := models.Collection{
		ID:          uuid.New().String(),
		UserID:      viewer.UserID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsPublic:    in.IsPublic,
		RecipeIDs:   []string{},
		CreatedAt:   s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO collections (id, user_id, name, description, is_public, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.UserID, c.Name, c.Description, c.IsPublic, c.CreatedAt)
	if err != nil {
		return models.Collection{}, fmt.Errorf("failed to create collection: %w", err)
	}
	return c, nil
}

func (s *CommunityService) loadCollection(ctx context.Context, id string) (models.Collection, error) {
	var c models.Collection
	err := s.db.QueryRowContext(ctx, "SELECT id, user_id, name, description, is_public, created_at FROM collections WHERE id = ?", id).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.IsPublic, &c.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return models.Collection{}, apperr.NotFound("collection", id)
		}
		return models.Collection{}, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT recipe_id FROM collection_recipes WHERE collection_id = ? ORDER BY added_at", id)
	if err != nil {
		return models.Collection{}, err
	}
	defer rows.Close()
	c.RecipeIDs = []string{}
	for rows.Next() {
		var rid string
		if err := rows.Scan(&rid); err != nil {
			return models.Collection{}, err
		}
		c.RecipeIDs = append(c.RecipeIDs, rid)
	}
	return c, rows.Err()
}

// GetCollection returns a collection. Private collections are visible to their owner only.
func (s *CommunityService) GetCollection(ctx context.Context, viewer auth.Viewer, id string) (models.Collection, error) {
	c, err := s.loadCollection(ctx, id)
	if err != nil {
		return models.Collection{}, err
	}
	if !c.IsPublic && c.UserID != viewer.UserID && !viewer.IsAdmin {
		return models.Collection{}, apperr.NotFound("collection", id)
	}
	return c, nil
}

// ListCollections lists ownerID's collections; other viewers see only the public ones.
func (s *CommunityService) ListCollections(ctx context.Context, viewer auth.Viewer, ownerID string) ([]models.Collection, error) {
	query := "SELECT id FROM collections WHERE user_id = ?"
	if ownerID != viewer.UserID && !viewer.IsAdmin {
		query += " AND is_public = 1"
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY created_at DESC", ownerID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	out := []models.Collection{}
	for _, id := range ids {
		c, err := s.loadCollection(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *CommunityService) ownedCollection(ctx context.Context, viewer auth.Viewer, id string) (models.Collection, error) {
	c, err := s.GetCollection(ctx, viewer, id)
	if err != nil {
		return models.Collection{}, err
	}
	if c.UserID != viewer.UserID && !viewer.IsAdmin {
		return models.Collection{}, apperr.Forbidden("You can only change your own collections")
	}
	return c, nil
}

// UpdateCollection renames or re-describes a collection.
func (s *CommunityService) UpdateCollection(ctx context.Context, viewer auth.Viewer, id string, in CollectionInput) (models.Collection, error) {
	if _, err := s.ownedCollection(ctx, viewer, id); err != nil {
		return models.Collection{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Collection{}, apperr.Validation("Collection name is required")
	}
	_, err := s.db.ExecContext(ctx, "UPDATE collections SET name = ?, description = ?, is_public = ? WHERE id = ?",
		name, strings.TrimSpace(in.Description), in.IsPublic, id)
	if err != nil {
		return models.Collection{}, fmt.Errorf("failed to update collection: %w", err)
	}
	return s.loadCollection(ctx, id)
}

// DeleteCollection removes a collection owned by the viewer.
func (s *CommunityService) DeleteCollection(ctx context.Context, viewer auth.Viewer, id string) error {
	if _, err := s.ownedCollection(ctx, viewer, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM collections WHERE id = ?", id)
	return err
}

// SetCollectionRecipe adds (present) or removes a recipe from a collection.
func (s *CommunityService) SetCollectionRecipe(ctx context.Context, viewer auth.Viewer, id, recipeID string, present bool) (models.Collection, error) {
	if _, err := s.ownedCollection(ctx, viewer, id); err != nil {
		return models.Collection{}, err
	}
	var err error
	if present {
		if _, err = s.recipes.GetRecipe(ctx, viewer, recipeID); err != nil {
			return models.Collection{}, err
		}
		_, err = s.db.ExecContext(ctx, "INSERT OR IGNORE INTO collection_recipes (collection_id, recipe_id, added_at) VALUES (?, ?, ?)", id, recipeID, s.now().UTC())
	} else {
		_, err = s.db.ExecContext(ctx, "DELETE FROM collection_recipes WHERE collection_id = ? AND recipe_id = ?", id, recipeID)
	}
	if err != nil {
		return models.Collection{}, fmt.Errorf("failed to update collection recipes: %w", err)
	}
	return s.loadCollection(ctx, id)
}

// Feed lists public approved recipes newest first, optionally only from
// authors the viewer follows.
func (s *CommunityService) Feed(ctx context.Context, viewer auth.Viewer, following bool, page, pageSize int) (models.RecipePage, error) {
	if following && viewer.Anonymous() {
		return models.RecipePage{}, apperr.Unauthorized("Authentication required")
	}
	return s.recipes.ListRecipes(ctx, viewer, RecipeFilter{
		PublicOnly: true,
		Following:  following,
		Sort:       "newest",
		Page:       page,
		PageSize:   pageSize,
	})
}
