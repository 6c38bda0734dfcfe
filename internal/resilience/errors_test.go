package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsProcedureMissing(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "undefined function", err: &pgconn.PgError{Code: "42883", Message: "function venues_within_radius does not exist"}, expected: true},
		{name: "wrapped undefined function", err: eris.Wrap(&pgconn.PgError{Code: "42883", Message: "function venues_within_radius(numeric) does not exist"}, "directory: radius search"), expected: true},
		{name: "other pg error", err: &pgconn.PgError{Code: "42P01"}, expected: false},
		{name: "message heuristic", err: errors.New("Could not find the function public.venues_within_radius"), expected: true},
		{name: "plain error", err: errors.New("connection refused"), expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsProcedureMissing(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "explicit", err: NewTransientError(errors.New("x")), expected: true},
		{name: "wrapped explicit", err: fmt.Errorf("outer: %w", NewTransientError(errors.New("x"))), expected: true},
		{name: "deadline", err: context.DeadlineExceeded, expected: true},
		{name: "canceled", err: context.Canceled, expected: false},
		{name: "conn reset", err: syscall.ECONNRESET, expected: true},
		{name: "conn refused", err: fmt.Errorf("dial: %w", syscall.ECONNREFUSED), expected: true},
		{name: "pg connection failure", err: &pgconn.PgError{Code: "08006"}, expected: true},
		{name: "pg admin shutdown", err: &pgconn.PgError{Code: "57P01"}, expected: true},
		{name: "pg syntax error", err: &pgconn.PgError{Code: "42601"}, expected: false},
		{name: "message heuristic", err: errors.New("read tcp: i/o timeout"), expected: true},
		{name: "permanent", err: errors.New("permission denied for table venues"), expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransient(tt.err))
		})
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner)
	assert.Equal(t, "inner", te.Error())
	assert.ErrorIs(t, te, inner)
}
