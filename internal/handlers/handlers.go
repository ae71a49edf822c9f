// Package handlers exposes the feedback engine over HTTP and WebSocket.
package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/AnshRaj112/mutual-backend/internal/services"
)

// Handlers holds the services the HTTP layer calls into.
type Handlers struct {
	Users         *services.UserService
	Sessions      *services.SessionManager
	Signals       *services.SignalService
	Notifications *services.NotificationService
	Maintenance   *services.MaintenanceService
	Hub           *services.NotificationHub
	Limiter       IPUnblocker
	// AllowedOrigins restricts WebSocket upgrades; empty allows any origin.
	AllowedOrigins []string
	Log            *zap.Logger
}

// IPUnblocker lifts a rate-limit block before it expires.
type IPUnblocker interface {
	IsBlocked(ctx context.Context, ip string) (bool, error)
	Unblock(ctx context.Context, ip string) error
}
