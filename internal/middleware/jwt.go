package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/unclebandit/crowdfund-backend/internal/auth"
	"github.com/unclebandit/crowdfund-backend/internal/model"
	"github.com/unclebandit/crowdfund-backend/internal/response"
)

type actorKey struct{}

// ActorFrom returns the authenticated user, or nil.
func ActorFrom(ctx context.Context) *model.Actor {
	a, _ := ctx.Value(actorKey{}).(*model.Actor)
	return a
}

// WithActor attaches an actor to ctx.
func WithActor(ctx context.Context, a *model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// JWT rejects requests without a valid bearer token and stores the
// actor in the request context.
func JWT(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				response.Unauthorized(w, "missing authorization header")
				return
			}
			token, ok := bearerToken(r)
			if !ok {
				response.Unauthorized(w, "invalid authorization header")
				return
			}
			claims, err := jwtService.Validate(token)
			if err != nil {
				response.Unauthorized(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), claims.Actor())))
		})
	}
}

// OptionalJWT attaches the actor when a valid token is present and lets
// the request through either way.
func OptionalJWT(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if claims, err := jwtService.Validate(token); err == nil {
					r = r.WithContext(WithActor(r.Context(), claims.Actor()))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
