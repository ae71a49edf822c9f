package handlers

import (
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPurgeDays = 14
	maxPurgeDays     = 3650
)

// ResetCredits grants every user one feedback credit.
func (h *Handlers) ResetCredits(w http.ResponseWriter, r *http.Request) {
	n, err := h.Maintenance.ResetAllCredits(r.Context())
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "All feedback credits were reset",
		"updatedCount": n,
	})
}

// RolloverCredits grants a credit to users whose period has ended.
func (h *Handlers) RolloverCredits(w http.ResponseWriter, r *http.Request) {
	n, err := h.Maintenance.RolloverCredits(r.Context())
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"updatedCount": n,
	})
}

// ClearOldData purges signals and notifications older than ?days= (default 14).
func (h *Handlers) ClearOldData(w http.ResponseWriter, r *http.Request) {
	days := defaultPurgeDays
	if v := r.URL.Query().Get("days"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 1 || d > maxPurgeDays {
			writeError(w, http.StatusBadRequest, "days must be a positive number of days")
			return
		}
		days = d
	}

	res, err := h.Maintenance.PurgeOlderThan(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"message":              "Old data cleared",
		"deletedFeedbacks":     res.SignalsDeleted,
		"deletedRelationships": res.RelationshipsDeleted,
		"deletedNotifications": res.NotificationsDeleted,
	})
}

// Reconcile re-emits match notifications whose delivery was never confirmed.
func (h *Handlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	n, err := h.Maintenance.ReconcileMatches(r.Context())
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"reconciled": n,
	})
}

type UnblockIPRequest struct {
	IP string `json:"ip"`
}

// UnblockIP lifts the rate-limit block on one address and resets its counter.
func (h *Handlers) UnblockIP(w http.ResponseWriter, r *http.Request) {
	if h.Limiter == nil {
		writeError(w, http.StatusServiceUnavailable, "Rate limiter is not configured")
		return
	}
	var req UnblockIPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(req.IP))
	if err != nil {
		writeError(w, http.StatusBadRequest, "ip must be an IPv4 or IPv6 address")
		return
	}
	ip := addr.Unmap().String()

	wasBlocked, err := h.Limiter.IsBlocked(r.Context(), ip)
	if err == nil {
		err = h.Limiter.Unblock(r.Context(), ip)
	}
	if err != nil {
		h.Log.Error("unblock ip failed", zap.String("ip", ip), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Rate limiter unavailable, please retry")
		return
	}
	h.Log.Info("ip unblocked", zap.String("ip", ip), zap.Bool("was_blocked", wasBlocked))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"ip":         ip,
		"wasBlocked": wasBlocked,
	})
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}
