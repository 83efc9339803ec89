package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
	"github.com/homegrubhub/homegrubhub-be/internal/tiers"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for accounts and profiles.
type UserHandler struct {
	service services.UserServiceProvider
	tokens  *auth.TokenManager
	secure  bool
}

// NewUserHandler creates a new UserHandler. secure marks the session cookie Secure.
func NewUserHandler(service services.UserServiceProvider, tokens *auth.TokenManager, secure bool) *UserHandler {
	return &UserHandler{service: service, tokens: tokens, secure: secure}
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// ProfilePayload is the editable part of the signed-in user's profile.
type ProfilePayload struct {
	DisplayName string `json:"displayName" validate:"max=100"`
	Bio         string `json:"bio" validate:"max=1000"`
	Postcode    string `json:"postcode" validate:"max=10"`
}

func (h *UserHandler) setSession(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, map[string]interface{}{"user": user})
}

// Login handles user authentication and JWT generation.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), payload.Email, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed authentication attempt")
		respond.Error(w, r, err)
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		respond.Error(w, r, err)
		return
	}
	h.setSession(w, token, time.Now().Add(h.tokens.TTL()))
	respond.OK(w, map[string]interface{}{"token": token, "user": user})
}

// Logout clears the session cookie.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setSession(w, "", time.Unix(0, 0))
	respond.OK(w, map[string]interface{}{"message": "Logged out"})
}

// GetMe retrieves the currently authenticated user.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUserByID(r.Context(), userID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"user": user})
}

// UpdateMe updates the signed-in user's profile.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var payload ProfilePayload
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), userID(r), payload.DisplayName, payload.Bio, payload.Postcode)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"user": user})
}

// DeleteMe permanently deletes the signed-in user's account.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), userID(r)); err != nil {
		respond.Error(w, r, err)
		return
	}
	h.setSession(w, "", time.Unix(0, 0))
	respond.NoContent(w)
}

// ChangePassword handles changing the signed-in user's password.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CurrentPassword string `json:"currentPassword" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required,min=8"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.service.UpdatePassword(r.Context(), userID(r), payload.CurrentPassword, payload.NewPassword); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"message": "Password updated successfully"})
}

// Features lists what the signed-in user's plan unlocks.
func (h *UserHandler) Features(w http.ResponseWriter, r *http.Request) {
	v := viewer(r)
	features := tiers.Features(v.Tier)
	limit := tiers.RecipeLimit(v.Tier)
	if v.IsAdmin {
		plans := tiers.Plans()
		features = tiers.Features(plans[len(plans)-1])
		limit = 0
	}
	respond.OK(w, map[string]interface{}{
		"tier":        tiers.Normalize(v.Tier),
		"features":    features,
		"recipeLimit": limit,
		"isAdmin":     v.IsAdmin,
	})
}

// GetSettings returns the signed-in user's preferences.
func (h *UserHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUserByID(r.Context(), userID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"settings": user.Settings})
}

// UpdateSettings saves the signed-in user's preferences.
func (h *UserHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.UserSettings
	if err := respond.Bind(r, &settings); err != nil {
		respond.Error(w, r, err)
		return
	}
	user, err := h.service.UpdateSettings(r.Context(), userID(r), settings)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"settings": user.Settings})
}

// Profile returns another user's public profile.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetPublicProfile(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"profile": profile})
}

// List returns a page of accounts for admins.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, size := queryInt(r, "page", 1), queryInt(r, "page_size", 50)
	users, total, err := h.service.ListUsers(r.Context(), page, size)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"users": users, "total": total, "page": page})
}

// SetTier moves a user to another plan.
func (h *UserHandler) SetTier(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Tier string `json:"tier" validate:"required"`
	}
	if err := respond.Bind(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	if !tiers.Valid(payload.Tier) {
		respond.Error(w, r, apperr.Validation("Unknown tier: %s", payload.Tier))
		return
	}
	user, err := h.service.SetTier(r.Context(), chi.URLParam(r, "id"), payload.Tier)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"user": user})
}

// SetAdmin grants or revokes admin rights.
func (h *UserHandler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IsAdmin bool `json:"isAdmin"`
	}
	if err := respond.Decode(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	user, err := h.service.SetAdmin(r.Context(), chi.URLParam(r, "id"), payload.IsAdmin)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]interface{}{"user": user})
}
