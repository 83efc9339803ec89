package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
)

// NutritionHandler handles the food diary, goals and water tracking.
type NutritionHandler struct {
	service services.NutritionServiceProvider
}

// NewNutritionHandler creates a new NutritionHandler.
func NewNutritionHandler(service services.NutritionServiceProvider) *NutritionHandler {
	return &NutritionHandler{service: service}
}

func (h *NutritionHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	size := queryInt(r, "page_size", 20)
	entries, total, err := h.service.ListEntries(r.Context(), userID(r), date(r), page, size)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"entries": entries, "total": total, "page": page, "pageSize": size})
}

func (h *NutritionHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var in services.NutritionEntryInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	entry, err := h.service.CreateEntry(r.Context(), userID(r), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"entry": entry})
}

func (h *NutritionHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var in services.NutritionEntryInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	entry, err := h.service.UpdateEntry(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"entry": entry})
}

func (h *NutritionHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteEntry(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

func (h *NutritionHandler) GetGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.service.GetGoals(r.Context(), userID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"goals": goals})
}

func (h *NutritionHandler) SetGoals(w http.ResponseWriter, r *http.Request) {
	var goal models.NutritionGoal
	if err := respond.Bind(r, &goal); err != nil {
		respond.Error(w, r, err)
		return
	}
	goals, err := h.service.SetGoals(r.Context(), userID(r), goal)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"goals": goals})
}

// Summary totals a day's intake against the user's goals.
func (h *NutritionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), userID(r), date(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"summary": summary})
}

func (h *NutritionHandler) LogWater(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AmountMl int        `json:"amountMl"`
		LoggedAt *time.Time `json:"loggedAt"`
	}
	if err := respond.Decode(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	water, err := h.service.LogWater(r.Context(), userID(r), payload.AmountMl, payload.LoggedAt)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"water": water})
}

func (h *NutritionHandler) ListWater(w http.ResponseWriter, r *http.Request) {
	logs, err := h.service.ListWater(r.Context(), userID(r), date(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"water": logs})
}

func (h *NutritionHandler) DeleteWater(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteWater(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}
