package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered phone owner. The phone number itself is only kept
// sealed; PhoneToken is the identity used everywhere else.
type User struct {
	ID             uuid.UUID `json:"id"`
	PhoneToken     string    `json:"-"`
	PhoneEncrypted string    `json:"-"`
	Credit         int       `json:"feedback_credit"`
	PeriodAnchor   time.Time `json:"period_anchor"`
	CreatedAt      time.Time `json:"created_at"`
}
