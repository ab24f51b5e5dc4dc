package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/domyjob/domyjob/internal/auth"
	"github.com/domyjob/domyjob/internal/models"
)

// contextKey is an unexported type used for context keys in this package.
type contextKey string

// UserContextKey is the context key used to store the authenticated user.
const UserContextKey contextKey = "user"

// RequireAuth returns middleware that enforces authentication. It accepts
// either the "session_token" cookie (the web UI) or an "Authorization:
// Bearer" token (the capture extension) and stores the user in the request
// context. Unauthenticated requests get a 401 JSON error; the SPA handles
// its own redirect.
func RequireAuth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := authenticate(r, authService)
			if user == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, authService *auth.Service) *models.User {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimPrefix(header, "Bearer ")
		if user, err := authService.ValidateAPIToken(r.Context(), token); err == nil {
			return user
		}
		return nil
	}

	cookie, err := r.Cookie("session_token")
	if err != nil || cookie.Value == "" {
		return nil
	}
	user, err := authService.ValidateSession(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return user
}

// UserFromContext extracts the authenticated user from the context.
// Returns nil if no user is present.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserContextKey).(*models.User)
	return user
}
