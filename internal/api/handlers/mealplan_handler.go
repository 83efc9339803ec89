package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
)

// MealPlanHandler handles the weekly meal planner.
type MealPlanHandler struct {
	service services.MealPlanServiceProvider
}

// NewMealPlanHandler creates a new MealPlanHandler.
func NewMealPlanHandler(service services.MealPlanServiceProvider) *MealPlanHandler {
	return &MealPlanHandler{service: service}
}

func (h *MealPlanHandler) Week(w http.ResponseWriter, r *http.Request) {
	week, err := h.service.Week(r.Context(), userID(r), date(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"week": week})
}

func (h *MealPlanHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var in services.MealPlanInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	entry, err := h.service.CreateEntry(r.Context(), viewer(r), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"entry": entry})
}

func (h *MealPlanHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var in services.MealPlanInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	entry, err := h.service.UpdateEntry(r.Context(), viewer(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"entry": entry})
}

func (h *MealPlanHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteEntry(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

// GenerateShoppingList pushes the planned week's ingredients onto the shopping list.
func (h *MealPlanHandler) GenerateShoppingList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GenerateShoppingList(r.Context(), viewer(r), date(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"list": list})
}
