package handlers

import (
	"net/http"

	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
)

// DashboardHandler serves the home screen summary.
type DashboardHandler struct {
	service services.DashboardServiceProvider
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(service services.DashboardServiceProvider) *DashboardHandler {
	return &DashboardHandler{service: service}
}

func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), userID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"dashboard": summary})
}
