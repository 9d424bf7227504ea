package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Entity configuration store
			r.Route("/entities", func(r chi.Router) {
				r.Get("/", s.handleListEntities)
				r.With(s.requireAdmin).Post("/", s.handleCreateEntity)

				r.Route("/{unique_id}", func(r chi.Router) {
					r.Get("/", s.handleGetEntity)
					r.With(s.requireAdmin).Put("/", s.handleUpdateEntity)
					r.With(s.requireAdmin).Delete("/", s.handleDeleteEntity)
				})
			})

			// Virtual device registry
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.With(s.requireAdmin).Post("/", s.handleCreateDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.With(s.requireAdmin).Delete("/", s.handleDeleteDevice)
				})
			})

			// Bus status and group monitor
			r.Route("/knx", func(r chi.Router) {
				r.Get("/info", s.handleKNXInfo)
				r.Get("/telegrams", s.handleRecentTelegrams)
				r.With(s.requireAdmin).Post("/group_write", s.handleGroupWrite)
				r.With(s.requireAdmin).Post("/group_read", s.handleGroupRead)
			})

			// WebSocket (auth via token query parameter, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
