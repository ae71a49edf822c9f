package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUserNotFound          = fmt.Errorf("%w: user not found", ErrInvalidInput)
	ErrPhoneMismatch         = fmt.Errorf("%w: phone does not belong to sender", ErrInvalidInput)
	ErrAlreadyRecorded       = errors.New("feedback already recorded")
	ErrInsufficientCredit    = errors.New("insufficient credit")
	ErrTransient             = errors.New("temporary storage failure")
	ErrInternalInconsistency = errors.New("internal inconsistency")
	ErrNotFound              = errors.New("not found")
)

// SignalResult is the outcome of a feedback submission.
type SignalResult int

const (
	Accepted SignalResult = iota
	AlreadyRecorded
	InsufficientCredit
	InvalidInput
	TransientFailure
	// InternalInconsistency means a rollback failed and ledger state needs manual reconciliation.
	InternalInconsistency
	// InternalError is any other non-retryable failure; nothing was written.
	InternalError
)

func (r SignalResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case AlreadyRecorded:
		return "already_recorded"
	case InsufficientCredit:
		return "insufficient_credit"
	case InvalidInput:
		return "invalid_input"
	case TransientFailure:
		return "transient_failure"
	case InternalInconsistency:
		return "internal_inconsistency"
	case InternalError:
		return "internal_error"
	default:
		return fmt.Sprintf("signal_result(%d)", int(r))
	}
}

// IsTransient reports whether err comes from a timeout or an unreachable
// backend, so that the same request may succeed later.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			// connection exception, insufficient resources, operator intervention
			return true
		}
		switch pqErr.Code {
		case "40001", "40P01":
			// serialization failure, deadlock detected
			return true
		}
		return false
	}

	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// ClassifyStorageError marks retryable storage errors with ErrTransient and
// returns every other error unchanged.
func ClassifyStorageError(err error) error {
	if err == nil || errors.Is(err, ErrTransient) || !IsTransient(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// resultOf maps a pipeline error to its SignalResult.
func resultOf(err error) SignalResult {
	switch {
	case err == nil:
		return Accepted
	case errors.Is(err, ErrInternalInconsistency):
		return InternalInconsistency
	case errors.Is(err, ErrAlreadyRecorded):
		return AlreadyRecorded
	case errors.Is(err, ErrInsufficientCredit):
		return InsufficientCredit
	case errors.Is(err, ErrInvalidInput):
		return InvalidInput
	case IsTransient(err):
		return TransientFailure
	default:
		return InternalError
	}
}
