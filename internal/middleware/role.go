package middleware

import (
	"net/http"

	"github.com/unclebandit/crowdfund-backend/internal/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFrom(r.Context())
			if actor == nil {
				response.Unauthorized(w, "missing user context")
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				response.Forbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
