package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/mutual-backend/internal/middleware"
	"github.com/AnshRaj112/mutual-backend/internal/models"
)

type notificationsResponse struct {
	Success       bool                  `json:"success"`
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

// GetNotifications lists the session user's notifications, newest first.
func (h *Handlers) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	list, err := h.Notifications.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	unread := 0
	for _, n := range list {
		if !n.IsRead {
			unread++
		}
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Success: true, Notifications: list, Unread: unread})
}

func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if err := h.Notifications.MarkRead(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Notification marked as read"})
}

func (h *Handlers) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if err := h.Notifications.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Notification deleted"})
}

// ClearNotifications deletes every notification of the session user.
func (h *Handlers) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	n, err := h.Notifications.ClearAll(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Notifications cleared",
		"deletedCount": n,
	})
}
