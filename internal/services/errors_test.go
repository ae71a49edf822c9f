package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, true},
		{"bad conn", driver.ErrBadConn, true},
		{"conn done", sql.ErrConnDone, true},
		{"eof", io.ErrUnexpectedEOF, true},
		{"wrapped sentinel", fmt.Errorf("%w: redis", ErrTransient), true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"connection failure", &pq.Error{Code: "08006"}, true},
		{"too many connections", &pq.Error{Code: "53300"}, true},
		{"admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"plain", errors.New("boom"), false},
		{"no rows", sql.ErrNoRows, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestResultOf(t *testing.T) {
	tests := []struct {
		err  error
		want SignalResult
	}{
		{nil, Accepted},
		{ErrAlreadyRecorded, AlreadyRecorded},
		{ErrInsufficientCredit, InsufficientCredit},
		{ErrUserNotFound, InvalidInput},
		{ErrPhoneMismatch, InvalidInput},
		{fmt.Errorf("%w: x", ErrInternalInconsistency), InternalInconsistency},
		{context.DeadlineExceeded, TransientFailure},
		{errors.New("boom"), InternalError},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, resultOf(tt.err))
		})
	}
}

func TestSignalResultString(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "internal_inconsistency", InternalInconsistency.String())
	assert.Equal(t, "signal_result(42)", SignalResult(42).String())
}

func TestClassifyStorageError(t *testing.T) {
	assert.NoError(t, ClassifyStorageError(nil))

	plain := errors.New("boom")
	assert.Same(t, plain, ClassifyStorageError(plain))

	err := ClassifyStorageError(fmt.Errorf("query: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	already := fmt.Errorf("%w: x", ErrTransient)
	assert.Same(t, already, ClassifyStorageError(already))
}
