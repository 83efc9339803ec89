// Package respond writes the JSON envelope shared by every API endpoint.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/rs/zerolog/log"
)

// JSON writes {"success": true, ...payload}. Map payloads are merged into the
// envelope; anything else is placed under "data".
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	body := map[string]interface{}{"success": true}
	switch p := payload.(type) {
	case nil:
	case map[string]interface{}:
		for k, v := range p {
			body[k] = v
		}
	default:
		body["data"] = p
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// OK writes a 200 envelope.
func OK(w http.ResponseWriter, payload interface{}) {
	JSON(w, http.StatusOK, payload)
}

// Created writes a 201 envelope.
func Created(w http.ResponseWriter, payload interface{}) {
	JSON(w, http.StatusCreated, payload)
}

// NoContent writes an empty 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes {"success": false, "error": msg, "code": CODE}. Internal errors
// are logged and replaced with a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.As(err)
	status := appErr.StatusCode()

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Str("method", r.Method).Msg("Request failed")
	}

	msg := appErr.Message
	if appErr.Code == apperr.CodeInternal {
		msg = "Internal server error"
	}

	body := map[string]interface{}{
		"success": false,
		"error":   msg,
		"code":    appErr.Code,
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Decode reads a JSON request body into dst.
func Decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("Invalid request body")
	}
	return nil
}
