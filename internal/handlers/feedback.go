package handlers

import (
	"net/http"

	"github.com/AnshRaj112/mutual-backend/internal/middleware"
	"github.com/AnshRaj112/mutual-backend/internal/services"
)

// SubmitFeedbackRequest is the body of POST /api/feedback. The sender is the
// session user; PhoneNumber must be that user's own number.
type SubmitFeedbackRequest struct {
	PhoneNumber    string `json:"phoneNumber"`
	RecipientPhone string `json:"recipientPhone"`
	ContactName    string `json:"contactName"`
}

// SubmitFeedbackResponse reports the pipeline outcome.
type SubmitFeedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// SubmitFeedback records an anonymous positive signal about a contact.
func (h *Handlers) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SubmitFeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PhoneNumber == "" || req.RecipientPhone == "" {
		writeError(w, http.StatusBadRequest, "Missing information")
		return
	}

	result, err := h.Signals.Submit(r.Context(), services.SignalRequest{
		SenderUserID:   userID,
		SenderPhone:    req.PhoneNumber,
		RecipientPhone: req.RecipientPhone,
		ContactLabel:   req.ContactName,
	})
	if result != services.Accepted {
		writeServiceError(w, h.Log, err)
		return
	}

	writeJSON(w, http.StatusCreated, SubmitFeedbackResponse{
		Success: true,
		Message: "Your feedback was sent",
		Result:  result.String(),
	})
}
