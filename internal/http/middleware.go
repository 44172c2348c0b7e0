package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"competition-voting/internal/domain/authz"
	"competition-voting/internal/domain/user"
	"competition-voting/internal/metrics"
	"competition-voting/internal/platform/apperr"
	jwtpkg "competition-voting/internal/platform/jwt"
)

type ctxKey string

const ctxKeyActor ctxKey = "actor"

var slogLogger = slog.Default()

func SetLogger(l *slog.Logger) {
	if l != nil {
		slogLogger = l
	}
}

func AuthMiddleware(jm *jwtpkg.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" {
				errorResponse(w, apperr.Unauthorized("missing_token", "missing authorization header", nil))
				return
			}

			parts := strings.SplitN(h, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				errorResponse(w, apperr.Unauthorized("invalid_token", "invalid authorization header", nil))
				return
			}

			claims, err := jm.Parse(parts[1])
			if err != nil {
				errorResponse(w, apperr.Unauthorized("invalid_token", "invalid token", err))
				return
			}
			id, err := claims.UserUUID()
			if err != nil {
				errorResponse(w, apperr.Unauthorized("invalid_token", "invalid token subject", err))
				return
			}
			role, err := user.ParseRole(claims.Role)
			if err != nil {
				errorResponse(w, apperr.Unauthorized("invalid_token", "invalid token role", err))
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyActor, authz.Actor{ID: id, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole admits only actors for which capability holds against an
// ownerless resource, e.g. authz.AdminOnly.
func RequireRole(capability authz.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := actorFromCtx(r)
			if !ok {
				errorResponse(w, apperr.Unauthorized("missing_token", "authentication required", nil))
				return
			}
			if err := authz.Authorize(actor, authz.Resource{}, capability); err != nil {
				errorResponse(w, apperr.Forbidden("forbidden", "insufficient permissions", err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func actorFromCtx(r *http.Request) (authz.Actor, bool) {
	actor, ok := r.Context().Value(ctxKeyActor).(authz.Actor)
	return actor, ok
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rw, r)

		status := rw.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		metrics.IncRequest(r.Method, route, status)

		slogLogger.Info("request",
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
