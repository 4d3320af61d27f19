package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/attendly/facegate/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	verifyHandler := handlers.NewVerifyHandler(s.pipeline, s.log)
	identityHandler := handlers.NewIdentityHandler(s.pipeline, s.identities, s.log)
	deviceHandler := handlers.NewDeviceHandler(s.devices, s.log)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck(s.pipeline))

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Verification
		r.Post("/verify", verifyHandler.Verify)
		r.Post("/preview", verifyHandler.Preview)

		// Identities
		r.Get("/identities", identityHandler.List)
		r.Post("/identities", identityHandler.Enroll)
		r.Get("/identities/{id}", identityHandler.Get)
		r.Delete("/identities/{id}", identityHandler.Delete)
		r.Post("/identities/{id}/anchor", identityHandler.Anchor)

		// Devices
		r.Get("/devices/{fingerprint}", deviceHandler.Get)
	})
}
