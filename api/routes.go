package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.SetHeader("Content-Type", "application/json"))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", s.handleCreateUser)    // POST /api/v1/users
			r.Get("/", s.handleListUsers)      // GET /api/v1/users?name=...&take=...
			r.Delete("/", s.handleDeleteUsers) // DELETE /api/v1/users?is_admin=...
			r.Get("/{id}", s.handleGetUser)    // GET /api/v1/users/{id}
		})

		r.Route("/preferences", func(r chi.Router) {
			r.Get("/", s.handleListPreferences)      // GET /api/v1/preferences?user_id=...
			r.Delete("/", s.handleDeletePreferences) // DELETE /api/v1/preferences
		})
	})
}
