package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/aicmo/aicmo/internal/storage"
)

// TokenLookup resolves an API token to a registered user.
// Implemented by storage.Store.
type TokenLookup interface {
	GetUserByToken(token string) (storage.User, error)
}

type contextKey int

const userIDKey contextKey = iota

// BearerAuth resolves the Authorization bearer token to a user and stores
// the user id in the request context for downstream handlers.
func BearerAuth(users TokenLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			u, err := users.GetUserByToken(auth[len(prefix):])
			if err != nil {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, u.ID)))
		})
	}
}

// UserID returns the authenticated user id placed by BearerAuth, or the
// empty string when the request was not authenticated.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
