package utils

import (
	"strings"
	"unicode"
)

const (
	// MaxPhoneLength bounds the normalized form; E.164 allows 15 digits plus formatting.
	MaxPhoneLength = 32
)

// NormalizePhone strips every whitespace rune from a phone number.
// This is the single normalization rule used wherever a phone number is hashed.
// Punctuation is kept as typed, so "+1 555 0100" and "+15550100" normalize
// to the same string but "+1-555-0100" does not.
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	b.Grow(len(phone))
	digits := 0
	for _, r := range phone {
		switch {
		case unicode.IsSpace(r):
			continue
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune("+-().", r):
		default:
			return "", &ValidationError{Field: "phone", Message: "Phone number may only contain digits and + - ( ) ."}
		}
		b.WriteRune(r)
	}

	normalized := b.String()
	if normalized == "" {
		return "", &ValidationError{Field: "phone", Message: "Phone number is required"}
	}
	if digits == 0 {
		return "", &ValidationError{Field: "phone", Message: "Phone number must contain digits"}
	}
	if len(normalized) > MaxPhoneLength {
		return "", &ValidationError{Field: "phone", Message: "Phone number is too long"}
	}
	return normalized, nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
