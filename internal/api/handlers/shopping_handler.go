package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
)

// ShoppingHandler handles HTTP requests for weekly shopping lists. The week is
// chosen with ?date=YYYY-MM-DD and defaults to the current one.
type ShoppingHandler struct {
	service services.ShoppingServiceProvider
}

// NewShoppingHandler creates a new ShoppingHandler.
func NewShoppingHandler(service services.ShoppingServiceProvider) *ShoppingHandler {
	return &ShoppingHandler{service: service}
}

func date(r *http.Request) string {
	return r.URL.Query().Get("date")
}

func (h *ShoppingHandler) GetWeek(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GetOrCreateWeek(r.Context(), userID(r), date(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"list": list})
}

func (h *ShoppingHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var in services.ShoppingItemInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	item, err := h.service.AddItem(r.Context(), userID(r), date(r), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"item": item})
}

func (h *ShoppingHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var in services.ShoppingItemInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"item": item})
}

func (h *ShoppingHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteItem(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

func (h *ShoppingHandler) TogglePurchased(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.TogglePurchased(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"item": item})
}

func (h *ShoppingHandler) ClearPurchased(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.ClearPurchased(r.Context(), userID(r), date(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"removed": n})
}

// AddRecipe adds a recipe's ingredients to the week's list.
func (h *ShoppingHandler) AddRecipe(w http.ResponseWriter, r *http.Request) {
	var in services.AddRecipeInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	if in.Date == "" {
		in.Date = date(r)
	}
	list, err := h.service.AddRecipe(r.Context(), viewer(r), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"list": list})
}

// AddLowStock adds every low pantry item to the week's list.
func (h *ShoppingHandler) AddLowStock(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.AddLowStock(r.Context(), userID(r), date(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"list": list})
}

// Prices estimates the cost of the week's list.
func (h *ShoppingHandler) Prices(w http.ResponseWriter, r *http.Request) {
	pricing, err := h.service.PriceList(r.Context(), userID(r), date(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, pricing)
}

// Optimize compares shopping strategies across stores.
func (h *ShoppingHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Optimize(r.Context(), userID(r), date(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, result)
}

// ParseIngredient shows how one ingredient line maps to a product to buy.
func (h *ShoppingHandler) ParseIngredient(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Ingredient string `json:"ingredient" validate:"required,max=500"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	mapping, err := h.service.ParseIngredient(payload.Ingredient)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"mapping": mapping})
}

// IngredientPreview converts a recipe's ingredients without adding them to a list.
func (h *ShoppingHandler) IngredientPreview(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RecipeID string `json:"recipeId" validate:"required"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	preview, err := h.service.PreviewRecipe(r.Context(), viewer(r), payload.RecipeID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, preview)
}

// ItemPrices compares store prices for one item on the list.
func (h *ShoppingHandler) ItemPrices(w http.ResponseWriter, r *http.Request) {
	comparison, err := h.service.ItemPrices(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, comparison)
}
