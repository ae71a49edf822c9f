package handlers

import (
	"net/http"
	"time"

	"github.com/AnshRaj112/mutual-backend/internal/middleware"
)

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// RegisterResponse carries the user's id, current credit and a fresh session token.
type RegisterResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	UserID         string `json:"userId"`
	FeedbackCredit int    `json:"feedbackCredit"`
	Token          string `json:"token"`
}

// Register signs up or signs in the owner of a phone number. Numbers are
// not verified. A new session replaces any previous one.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "Phone number is required")
		return
	}

	user, created, err := h.Users.Register(r.Context(), req.PhoneNumber)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}

	token, err := h.Sessions.Create(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, RegisterResponse{
		Success:        true,
		UserID:         user.ID.String(),
		FeedbackCredit: user.Credit,
		Token:          token,
	})
}

// ProfileResponse is the body of GET /api/me.
type ProfileResponse struct {
	Success           bool      `json:"success"`
	UserID            string    `json:"userId"`
	PhoneNumber       string    `json:"phoneNumber,omitempty"`
	FeedbackCredit    int       `json:"feedbackCredit"`
	CreditPeriodStart time.Time `json:"creditPeriodStart"`
}

// GetProfile returns the session user's account.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	p, err := h.Users.Profile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{
		Success:           true,
		UserID:            p.User.ID.String(),
		PhoneNumber:       p.Phone,
		FeedbackCredit:    p.User.Credit,
		CreditPeriodStart: p.User.PeriodAnchor,
	})
}
