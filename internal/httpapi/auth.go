package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/store"
)

type actorContextKey struct{}

// AuthMiddleware resolves the bearer session token into an Actor and stores
// it on the request context. Sessions are issued by the surrounding
// application; this service only reads them.
func AuthMiddleware(sessions store.SessionStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			writeError(w, "", http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		session, err := sessions.GetSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, "", http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			writeError(w, "", http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		actor := models.Actor{Identity: session.Identity, Role: session.Role}
		ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) (models.Actor, bool) {
	value := ctx.Value(actorContextKey{})
	if value == nil {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}

func requireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, "", http.StatusUnauthorized, "unauthorized", "missing session")
		return models.Actor{}, false
	}
	return actor, true
}

func requireFactory(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return models.Actor{}, false
	}
	if actor.Role != models.RoleFactory {
		writeError(w, "", http.StatusForbidden, "not_authorized", "factory role required")
		return models.Actor{}, false
	}
	return actor, true
}

func sessionIDFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func isPublicEndpoint(r *http.Request) bool {
	switch {
	case r.URL.Path == "/healthz", r.URL.Path == "/metrics":
		return true
	case strings.HasPrefix(r.URL.Path, "/realtime"):
		// The SockJS handler does its own session check.
		return true
	default:
		return r.Method == http.MethodOptions
	}
}
