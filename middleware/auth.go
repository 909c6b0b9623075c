package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"go-marketplace/apperr"
	"go-marketplace/models"
	"go-marketplace/utils"
)

// Key type for context
type contextKey string

const UserContextKey = contextKey("user")

// AuthMiddleware verifies bearer tokens signed with secret and attaches the
// caller to the request context.
func AuthMiddleware(secret []byte) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteError(w, nil, apperr.Unauthorized("Authorization header missing"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				utils.WriteError(w, nil, apperr.Unauthorized("Invalid Authorization header format"))
				return
			}

			claims, err := utils.ParseJWT(secret, parts[1])
			if err != nil {
				utils.WriteError(w, nil, apperr.Unauthorized("Invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), claims.Actor())))
		})
	}
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...models.Role) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				utils.WriteError(w, nil, apperr.Unauthorized("Unauthorized"))
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.WriteError(w, nil, apperr.Forbidden("Forbidden: "+string(actor.Role)+" role not allowed"))
		})
	}
}

// AdminMiddleware ensures that the user has admin privileges
func AdminMiddleware(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)(next)
}

func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, UserContextKey, actor)
}

// ActorFrom returns the authenticated caller.
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(UserContextKey).(models.Actor)
	return actor, ok && !actor.ID.IsZero()
}
