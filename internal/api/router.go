package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Prometheus metrics (no auth required for scraping)
		if s.metricsReg != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.metricsReg, promhttp.HandlerOpts{}))
		}

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - user must be logged in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/stats", s.handleDeviceStats)
				r.Post("/refresh", s.handleRefreshDevices)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/state", s.handleGetDeviceState)
					r.Get("/history", s.handleGetDeviceHistory)
					r.Post("/command", s.handleSendCommand)
				})
			})

			// Credential endpoints
			r.Route("/credentials", func(r chi.Router) {
				r.Get("/status", s.handleCredentialStatus)
				r.Get("/authorize-url", s.handleAuthorizeURL)
				r.Post("/reauth", s.handleReauth)
				r.Delete("/", s.handleClearCredentials)
			})

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the bridge health status: HTTP liveness plus the
// poll loop's view of the cloud and the credential state.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.poller.Health()
	creds := s.credentials.Status()

	status := "ok"
	if !health.Healthy || creds.ReauthRequired {
		status = "degraded"
	}

	resp := map[string]any{
		"status":      status,
		"version":     s.version,
		"uptime_s":    int64(time.Since(s.startTime).Seconds()),
		"poll":        health,
		"credentials": creds,
	}
	if s.mqtt != nil {
		resp["mqtt_connected"] = s.mqtt.IsConnected()
	}
	if s.db != nil {
		stats := s.db.Stats()
		resp["database"] = map[string]any{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
