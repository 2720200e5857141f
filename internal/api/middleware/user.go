package middleware

import (
	"context"
	"net/http"
	"strings"
)

// UserHeader carries the authenticated user id set by the upstream auth
// proxy.
const UserHeader = "X-User-ID"

type userKey struct{}

// RequireUser rejects requests without a user id and stores it in the
// request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "Missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID returns the user id stored by RequireUser, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}
