package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
)

// SupportHandler handles help desk tickets. Tickets are addressed by id or
// ticket number.
type SupportHandler struct {
	service services.SupportServiceProvider
}

// NewSupportHandler creates a new SupportHandler.
func NewSupportHandler(service services.SupportServiceProvider) *SupportHandler {
	return &SupportHandler{service: service}
}

func (h *SupportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.TicketInput
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	ticket, err := h.service.Create(r.Context(), viewer(r), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"ticket": ticket})
}

func (h *SupportHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.ListMine(r.Context(), userID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"tickets": tickets})
}

func (h *SupportHandler) Get(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.service.Get(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"ticket": ticket})
}

func (h *SupportHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message" validate:"required"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	ticket, err := h.service.Reply(r.Context(), viewer(r), chi.URLParam(r, "id"), payload.Message)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"ticket": ticket})
}

// ListAll lists every ticket, optionally filtered by ?status. Admin only.
func (h *SupportHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.ListAll(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"tickets": tickets})
}

// Update changes status or assignee. Admin only.
func (h *SupportHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in services.TicketUpdate
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	ticket, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"ticket": ticket})
}
