package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/mutual-backend/internal/handlers"
	"github.com/AnshRaj112/mutual-backend/internal/middleware"
)

func SetupRoutes(r chi.Router, h *handlers.Handlers, sessions middleware.SessionValidator, adminKey string) {
	r.Get("/health", h.Health)

	r.Post("/api/register", h.Register)

	// Session routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(sessions))

		r.Get("/api/me", h.GetProfile)
		r.Post("/api/feedback", h.SubmitFeedback)

		r.Get("/api/notifications", h.GetNotifications)
		r.Put("/api/notifications/{id}/read", h.MarkNotificationRead)
		r.Delete("/api/notifications/{id}", h.DeleteNotification)
		r.Delete("/api/notifications", h.ClearNotifications)

		r.Get("/ws/notifications", h.NotificationsWebSocket)
	})

	// Admin routes
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdminKey(adminKey))

		r.Post("/reset-credits", h.ResetCredits)
		r.Post("/rollover-credits", h.RolloverCredits)
		r.Post("/clear-old-data", h.ClearOldData)
		r.Post("/reconcile", h.Reconcile)
		r.Post("/unblock-ip", h.UnblockIP)
	})
}
