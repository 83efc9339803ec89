package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
)

// PantryHandler handles HTTP requests for the pantry tracker.
type PantryHandler struct {
	service services.PantryServiceProvider
}

// NewPantryHandler creates a new PantryHandler.
func NewPantryHandler(service services.PantryServiceProvider) *PantryHandler {
	return &PantryHandler{service: service}
}

type categoryPayload struct {
	Name      string `json:"name" validate:"required,max=50"`
	SortOrder int    `json:"sortOrder"`
}

func (h *PantryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context(), userID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"categories": categories})
}

func (h *PantryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var payload categoryPayload
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	c, err := h.service.CreateCategory(r.Context(), userID(r), payload.Name)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"category": c})
}

func (h *PantryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var payload categoryPayload
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	c, err := h.service.UpdateCategory(r.Context(), userID(r), chi.URLParam(r, "id"), payload.Name, payload.SortOrder)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"category": c})
}

func (h *PantryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCategory(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

// ListItems lists pantry items, filtered by ?category, ?low_stock and ?expiring.
func (h *PantryHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := services.PantryQuery{
		CategoryID: r.URL.Query().Get("category"),
		LowStock:   queryBool(r, "low_stock"),
		Expiring:   queryBool(r, "expiring"),
	}
	items, err := h.service.ListItems(r.Context(), userID(r), q)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"items": items, "count": len(items)})
}

func (h *PantryHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"item": item})
}

func (h *PantryHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var in services.PantryItemInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), userID(r), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"item": item})
}

func (h *PantryHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var in services.PantryItemInput
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

func (h *PantryHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteItem(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

// AdjustQuantity adds, subtracts or sets an item's stock level.
func (h *PantryHandler) AdjustQuantity(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Change    float64 `json:"change"`
		Operation string  `json:"operation" validate:"required,oneof=add subtract set"`
		Reason    string  `json:"reason" validate:"max=100"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	item, err := h.service.AdjustQuantity(r.Context(), userID(r), chi.URLParam(r, "id"), payload.Change, payload.Operation, payload.Reason)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"item": item})
}

func (h *PantryHandler) UsageHistory(w http.ResponseWriter, r *http.Request) {
	logs, err := h.service.UsageHistory(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"history": logs})
}

// PredictLow lists items expected to run low within a week.
func (h *PantryHandler) PredictLow(w http.ResponseWriter, r *http.Request) {
	predictions, err := h.service.PredictLow(r.Context(), userID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"predictions": predictions})
}
