/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

AUTH:
  Bearer tokens from /api/auth/login. requireAuth resolves the token to a
  session and stores it on the request context; requireAdmin additionally
  checks the role. Register/login/health stay public.

SEE ALSO:
  - handlers.go: Handler implementations
  - session.go: Token management
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/reserve-engine/planner"
)

type ctxKey int

const sessionKey ctxKey = iota

// sessionFrom returns the session requireAuth placed on the context.
func sessionFrom(r *http.Request) Session {
	s, _ := r.Context().Value(sessionKey).(Session)
	return s
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Public auth routes
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Post("/auth/logout", h.Logout)
			r.Post("/auth/password", h.ChangePassword)

			r.Route("/entries", func(r chi.Router) {
				r.Get("/", h.ListEntries)
				r.Post("/", h.CreateEntry)
				r.Put("/{id}", h.UpdateEntry)
				r.Delete("/{id}", h.DeleteEntry)
			})

			r.Get("/ledger", h.GetLedger)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.ListNotifications)
				r.Post("/{id}/read", h.MarkNotificationRead)
				r.Post("/read-all", h.MarkAllNotificationsRead)
			})

			r.Get("/export", h.ExportEntries)
			r.Post("/import", h.ImportEntries)
			r.Post("/demo", h.LoadDemoData)

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Get("/users", h.ListUsers)
				r.Put("/users/{username}/active", h.SetUserActive)
				r.Delete("/users/{username}", h.DeleteUser)
			})
		})
	})

	return r
}

// requireAuth resolves the bearer token and rejects requests without a live
// session.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		s, ok := h.Sessions.Get(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Session expired or unknown", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, s)))
	})
}

// requireAdmin runs after requireAuth and checks the session role.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionFrom(r).Role != planner.RoleAdmin {
			writeError(w, http.StatusForbidden, "Admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
