package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/AnshRaj112/mutual-backend/internal/services"
	"github.com/AnshRaj112/mutual-backend/pkg/utils"
)

const maxBodyBytes = 16 << 10

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Message: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeServiceError maps service errors to status codes in one place.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrAlreadyRecorded):
		writeError(w, http.StatusConflict, "You have already sent feedback for this contact")
	case errors.Is(err, services.ErrInsufficientCredit):
		writeError(w, http.StatusForbidden, "No feedback credit left for this period")
	case errors.Is(err, services.ErrInternalInconsistency):
		writeError(w, http.StatusInternalServerError, "Internal error")
	case services.IsTransient(err):
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable. Please retry.")
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

// validationMessage surfaces the field-level message of a validation error.
func validationMessage(err error) string {
	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	switch {
	case errors.Is(err, services.ErrPhoneMismatch):
		return "Phone number does not match the signed-in user"
	default:
		return "Invalid input"
	}
}
