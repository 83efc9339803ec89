package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/monitoring"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
	"github.com/homegrubhub/homegrubhub-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// StatsProvider reports host and application figures.
type StatsProvider interface {
	Snapshot(ctx context.Context) (monitoring.SystemSnapshot, error)
}

// Announcer pushes a message to every connected websocket client.
type Announcer interface {
	BroadcastAll(message []byte)
}

// AdminHandler handles the operator endpoints: system stats, the event log,
// scheduled jobs and announcements.
type AdminHandler struct {
	stats     StatsProvider
	events    services.EventServiceProvider
	jobs      services.JobServiceProvider
	announcer Announcer
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(stats StatsProvider, events services.EventServiceProvider, jobs services.JobServiceProvider, announcer Announcer) *AdminHandler {
	return &AdminHandler{stats: stats, events: events, jobs: jobs, announcer: announcer}
}

// Stats handles the request for a system snapshot.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.stats.Snapshot(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to collect system stats")
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"stats": snap})
}

// Events handles the request for recent activity. ?limit defaults to 20, max 200.
func (h *AdminHandler) Events(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	events, err := h.events.GetRecentEvents(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve events")
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"events": events})
}

func (h *AdminHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.GetAllJobs(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"jobs": jobs})
}

// UpdateJob changes a job's cron expression or pauses it.
func (h *AdminHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CronExpression string `json:"cronExpression" validate:"required"`
		IsActive       bool   `json:"isActive"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	job, err := h.jobs.UpdateJob(r.Context(), chi.URLParam(r, "id"), payload.CronExpression, payload.IsActive)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"job": job})
}

// Announce sends a system notice, such as planned maintenance, to everyone
// connected over websocket.
func (h *AdminHandler) Announce(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message" validate:"required,max=500"`
		Level   string `json:"level" validate:"omitempty,oneof=info warning"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	if payload.Level == "" {
		payload.Level = "info"
	}
	msg, err := websocket.NewMessage("announcement", payload)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	h.announcer.BroadcastAll(msg)

	uid := userID(r)
	h.events.Record(r.Context(), "admin.announcement", services.LevelInfo, payload.Message, &uid)
	respond.OK(w, map[string]interface{}{"announcement": payload})
}
