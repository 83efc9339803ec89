package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
	"github.com/rs/zerolog/log"
)

// BackupHandler handles database backups. Admin only.
type BackupHandler struct {
	service services.BackupServiceProvider
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(service services.BackupServiceProvider) *BackupHandler {
	return &BackupHandler{service: service}
}

// CreateBackupPayload is the expected JSON body for creating a backup.
type CreateBackupPayload struct {
	Name string `json:"name" validate:"max=100"`
}

// List handles the request to get all backups.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.service.ListBackups(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve backups")
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"backups": backups})
}

// Create handles the request to snapshot the database. The body is optional.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload CreateBackupPayload
	if r.ContentLength != 0 {
		if err := respond.Bind(r, &payload); err != nil {
			respond.Error(w, r, err)
			return
		}
	}
	backup, err := h.service.CreateBackup(r.Context(), payload.Name)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create backup")
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"backup": backup})
}

// Download streams the backup archive.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	backup, err := h.service.GetBackupByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+backup.FileName+`"`)
	w.Header().Set("Content-Type", "application/zip")
	http.ServeFile(w, r, backup.Path)
}

// Delete handles the request to delete a backup.
func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteBackup(r.Context(), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}
