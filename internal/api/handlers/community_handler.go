package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
)

// CommunityHandler handles reviews, comments, follows, collections and the feed.
type CommunityHandler struct {
	service services.CommunityServiceProvider
}

// NewCommunityHandler creates a new CommunityHandler.
func NewCommunityHandler(service services.CommunityServiceProvider) *CommunityHandler {
	return &CommunityHandler{service: service}
}

// ListReviews returns a recipe's reviews with the average rating.
func (h *CommunityHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.ListReviews(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, summary)
}

// UpsertReview creates or replaces the caller's review of a recipe.
func (h *CommunityHandler) UpsertReview(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment" validate:"max=2000"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	review, err := h.service.UpsertReview(r.Context(), viewer(r), chi.URLParam(r, "id"), payload.Rating, payload.Comment)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"review": review})
}

// DeleteReview removes a review.
func (h *CommunityHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteReview(r.Context(), viewer(r), chi.URLParam(r, "reviewID")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

// ListComments returns a recipe's comment threads.
func (h *CommunityHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.ListComments(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"comments": comments})
}

// AddComment posts a comment or a reply.
func (h *CommunityHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ParentID *string `json:"parentId"`
		Body     string  `json:"body" validate:"required,max=2000"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	comment, err := h.service.AddComment(r.Context(), viewer(r), chi.URLParam(r, "id"), payload.ParentID, payload.Body)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"comment": comment})
}

// DeleteComment removes a comment and its replies.
func (h *CommunityHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteComment(r.Context(), viewer(r), chi.URLParam(r, "commentID")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

// Follow follows a user.
func (h *CommunityHandler) Follow(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Follow(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"following": true})
}

// Unfollow stops following a user.
func (h *CommunityHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unfollow(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"following": false})
}

// Followers lists who follows a user.
func (h *CommunityHandler) Followers(w http.ResponseWriter, r *http.Request) {
	follows, err := h.service.Followers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"followers": follows})
}

// Following lists who a user follows.
func (h *CommunityHandler) Following(w http.ResponseWriter, r *http.Request) {
	follows, err := h.service.Following(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"following": follows})
}

// ListCollections lists a user's collections, defaulting to the caller's.
func (h *CommunityHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("user")
	if owner == "" {
		owner = userID(r)
	}
	collections, err := h.service.ListCollections(r.Context(), viewer(r), owner)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"collections": collections})
}

// CreateCollection creates a collection.
func (h *CommunityHandler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var in services.CollectionInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	c, err := h.service.CreateCollection(r.Context(), viewer(r), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"collection": c})
}

// GetCollection returns a collection with its recipes.
func (h *CommunityHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCollection(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"collection": c})
}

// UpdateCollection edits a collection.
func (h *CommunityHandler) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	var in services.CollectionInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	c, err := h.service.UpdateCollection(r.Context(), viewer(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"collection": c})
}

// DeleteCollection removes a collection.
func (h *CommunityHandler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCollection(r.Context(), viewer(r), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

// AddToCollection puts a recipe in a collection.
func (h *CommunityHandler) AddToCollection(w http.ResponseWriter, r *http.Request) {
	h.setCollectionRecipe(w, r, true)
}

// RemoveFromCollection takes a recipe out of a collection.
func (h *CommunityHandler) RemoveFromCollection(w http.ResponseWriter, r *http.Request) {
	h.setCollectionRecipe(w, r, false)
}

func (h *CommunityHandler) setCollectionRecipe(w http.ResponseWriter, r *http.Request, present bool) {
	c, err := h.service.SetCollectionRecipe(r.Context(), viewer(r), chi.URLParam(r, "id"), chi.URLParam(r, "recipeID"), present)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"collection": c})
}

// Feed lists recent public recipes, optionally only from followed authors.
func (h *CommunityHandler) Feed(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.Feed(r.Context(), viewer(r), queryBool(r, "following"), queryInt(r, "page", 1), queryInt(r, "page_size", 20))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, page)
}
