package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
)

// FamilyHandler handles family accounts and their shared list and chat.
type FamilyHandler struct {
	service services.FamilyServiceProvider
}

// NewFamilyHandler creates a new FamilyHandler.
func NewFamilyHandler(service services.FamilyServiceProvider) *FamilyHandler {
	return &FamilyHandler{service: service}
}

func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name" validate:"required,max=100"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	family, err := h.service.Create(r.Context(), viewer(r), payload.Name)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"family": family})
}

func (h *FamilyHandler) Join(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FamilyCode string `json:"familyCode" validate:"required"`
		AgeGroup   string `json:"ageGroup" validate:"omitempty,oneof=child teen adult"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	family, err := h.service.Join(r.Context(), userID(r), payload.FamilyCode, payload.AgeGroup)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"family": family})
}

func (h *FamilyHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Leave(r.Context(), userID(r)); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

func (h *FamilyHandler) Mine(w http.ResponseWriter, r *http.Request) {
	family, err := h.service.Mine(r.Context(), userID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"family": family})
}

func (h *FamilyHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role string `json:"role" validate:"required"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	member, err := h.service.UpdateRole(r.Context(), userID(r), chi.URLParam(r, "userID"), payload.Role)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"member": member})
}

func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveMember(r.Context(), userID(r), chi.URLParam(r, "userID")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

func (h *FamilyHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), userID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"items": items})
}

func (h *FamilyHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var in services.FamilyItemInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	item, err := h.service.AddItem(r.Context(), userID(r), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"item": item})
}

func (h *FamilyHandler) ApproveItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.ApproveItem(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"item": item})
}

func (h *FamilyHandler) TogglePurchased(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.TogglePurchased(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"item": item})
}

func (h *FamilyHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteItem(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

func (h *FamilyHandler) Messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.service.Messages(r.Context(), userID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"messages": msgs})
}

func (h *FamilyHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message" validate:"required,max=1000"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	msg, err := h.service.PostMessage(r.Context(), userID(r), payload.Message)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"message": msg})
}
