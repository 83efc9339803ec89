package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
)

// PriceHandler handles community price submissions.
type PriceHandler struct {
	service services.PriceServiceProvider
	users   services.UserServiceProvider
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(service services.PriceServiceProvider, users services.UserServiceProvider) *PriceHandler {
	return &PriceHandler{service: service, users: users}
}

// postcode uses ?postcode, falling back to the signed-in user's saved postcode.
func (h *PriceHandler) postcode(r *http.Request) string {
	if pc := r.URL.Query().Get("postcode"); pc != "" {
		return pc
	}
	if id := userID(r); id != "" {
		if user, err := h.users.GetUserByID(r.Context(), id); err == nil {
			return user.Postcode
		}
	}
	return ""
}

func (h *PriceHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in services.PriceSubmission
	if err := respond.Bind(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	price, err := h.service.Submit(r.Context(), userID(r), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"price": price})
}

// ListForItem lists community prices for ?item near the caller.
func (h *PriceHandler) ListForItem(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if item == "" {
		respond.Error(w, r, apperr.Validation("item is required"))
		return
	}
	pc := h.postcode(r)
	prices, err := h.service.ListForItem(r.Context(), item, pc)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	best, err := h.service.Best(r.Context(), item, pc)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"prices": prices, "best": best, "count": len(prices)})
}

func (h *PriceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IsAccurate bool   `json:"isAccurate"`
		Comment    string `json:"comment" validate:"max=200"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	price, err := h.service.Verify(r.Context(), userID(r), chi.URLParam(r, "id"), payload.IsAccurate, payload.Comment)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"price": price})
}

func (h *PriceHandler) Flag(w http.ResponseWriter, r *http.Request) {
	price, err := h.service.Flag(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"price": price})
}

func (h *PriceHandler) Mine(w http.ResponseWriter, r *http.Request) {
	prices, err := h.service.MySubmissions(r.Context(), userID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"prices": prices})
}

// Recent lists submissions from the last ?days (default 7). Admin only.
func (h *PriceHandler) Recent(w http.ResponseWriter, r *http.Request) {
	prices, err := h.service.Recent(r.Context(), queryInt(r, "days", 7))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"prices": prices})
}

// NearbyShops lists known shops within ?radius metres (default 1000) of the
// caller's postcode.
func (h *PriceHandler) NearbyShops(w http.ResponseWriter, r *http.Request) {
	pc := h.postcode(r)
	shops, err := h.service.NearbyShops(r.Context(), pc, queryInt(r, "radius", 0))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"shops": shops, "postcode": pc, "count": len(shops)})
}
