package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-tasmota/internal/auth"
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

	r.Route("/api/v1", func(r chi.Router) {
		// No auth required
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/devices", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermDeviceRead))
				r.Get("/", s.handleListDevices)
				r.Get("/{id}", s.handleGetDevice)
			})

			r.Route("/tasmota", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermDeviceRead)).
					Get("/discovered", s.handleListDiscovered)
				r.With(s.requirePermission(auth.PermDiscoveryManage)).
					Post("/discovered/{topic}", s.handleSaveDiscovered)
				r.With(s.requirePermission(auth.PermDiscoveryManage)).
					Post("/scan", s.handleScan)
				r.With(s.requirePermission(auth.PermDeviceOperate)).
					Post("/devices/{topic}/value", s.handleSetValue)
			})

			if s.audit != nil {
				r.With(s.requirePermission(auth.PermAuditRead)).
					Get("/audit", s.handleListAudit)
			}
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"bridge":  s.bridge.GetMetrics().Running,
	})
}
