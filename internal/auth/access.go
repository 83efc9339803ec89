package auth

import (
	"context"
	"net/http"

	"github.com/homegrubhub/homegrubhub-be/internal/api/respond"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/tiers"
)

// TierLookup resolves a user's current plan. Tokens carry the tier at login
// time, so feature checks go back to the store.
type TierLookup interface {
	GetTier(ctx context.Context, userID string) (tier string, isAdmin bool, err error)
}

// RequireAdmin rejects non-admin users.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			respond.Error(w, r, apperr.Unauthorized("Authentication required"))
			return
		}
		if !claims.IsAdmin {
			respond.Error(w, r, apperr.Forbidden("Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireFeature rejects users whose plan lacks feature.
func RequireFeature(lookup TierLookup, feature string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				respond.Error(w, r, apperr.Unauthorized("Authentication required"))
				return
			}
			tier, isAdmin, err := lookup.GetTier(r.Context(), claims.UserID)
			if err != nil {
				respond.Error(w, r, err)
				return
			}
			if !isAdmin && !tiers.HasFeature(tier, feature) {
				respond.Error(w, r, apperr.FeatureLocked(feature))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Viewer describes who is making a request, for visibility decisions in services.
type Viewer struct {
	UserID  string
	Tier    string
	IsAdmin bool
}

// Anonymous reports whether there is no signed-in user.
func (v Viewer) Anonymous() bool {
	return v.UserID == ""
}

// Has reports whether the viewer's plan includes feature.
func (v Viewer) Has(feature string) bool {
	return v.IsAdmin || (!v.Anonymous() && tiers.HasFeature(v.Tier, feature))
}

// ViewerFromContext builds a Viewer from the request claims.
func ViewerFromContext(ctx context.Context) Viewer {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return Viewer{}
	}
	return Viewer{UserID: claims.UserID, Tier: claims.Tier, IsAdmin: claims.IsAdmin}
}

// Refresh replaces the token's tier and admin flag with the stored values so
// plan changes apply before the token expires. Requests without claims pass through.
func Refresh(lookup TierLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			tier, isAdmin, err := lookup.GetTier(r.Context(), claims.UserID)
			if err != nil {
				if apperr.Is(err, apperr.CodeNotFound) {
					err = apperr.Unauthorized("Account no longer exists")
				}
				respond.Error(w, r, err)
				return
			}
			fresh := *claims
			fresh.Tier, fresh.IsAdmin = tier, isAdmin
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), &fresh)))
		})
	}
}
