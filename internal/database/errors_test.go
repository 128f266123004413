package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

// ---------------------------------------------------------------------------
// Classify
// ---------------------------------------------------------------------------

func TestClassify_PgErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected Kind
	}{
		{"undefined_table", "42P01", KindUndefinedTable},
		{"undefined_function", "42883", KindUndefinedFunction},
		{"unique_violation", "23505", KindUniqueViolation},
		{"insufficient_privilege", "42501", KindInsufficientPrivilege},
		{"unknown_code", "22012", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &pgconn.PgError{Code: tt.code}
			if got := Classify(err); got != tt.expected {
				t.Errorf("Classify(code %s): expected %v, got %v", tt.code, tt.expected, got)
			}
		})
	}
}

func TestClassify_WrappedPgError(t *testing.T) {
	inner := &pgconn.PgError{Code: "42P01"}
	err := fmt.Errorf("query profiles: %w", inner)

	if got := Classify(err); got != KindUndefinedTable {
		t.Errorf("expected KindUndefinedTable through wrapping, got %v", got)
	}
}

func TestClassify_DeadlineIsConnection(t *testing.T) {
	err := fmt.Errorf("ping: %w", context.DeadlineExceeded)
	if got := Classify(err); got != KindConnection {
		t.Errorf("expected KindConnection, got %v", got)
	}
}

func TestClassify_NetErrorIsConnection(t *testing.T) {
	err := fmt.Errorf("connect: %w", &timeoutErr{})
	if got := Classify(err); got != KindConnection {
		t.Errorf("expected KindConnection, got %v", got)
	}
}

func TestClassify_NilAndPlainErrors(t *testing.T) {
	if got := Classify(nil); got != KindOther {
		t.Errorf("expected KindOther for nil, got %v", got)
	}
	if got := Classify(errors.New("boom")); got != KindOther {
		t.Errorf("expected KindOther for plain error, got %v", got)
	}
}

// ---------------------------------------------------------------------------
// Is
// ---------------------------------------------------------------------------

func TestIs(t *testing.T) {
	err := &pgconn.PgError{Code: "23505"}
	if !Is(err, KindUniqueViolation) {
		t.Error("expected Is to match unique violation")
	}
	if Is(err, KindUndefinedTable) {
		t.Error("unexpected match for undefined table")
	}
	if Is(nil, KindOther) {
		t.Error("nil error should never match")
	}
}

// ---------------------------------------------------------------------------
// Kind.String
// ---------------------------------------------------------------------------

func TestKindString(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindOther, "other"},
		{KindConnection, "connection"},
		{KindUndefinedTable, "undefined_table"},
		{KindUndefinedFunction, "undefined_function"},
		{KindUniqueViolation, "unique_violation"},
		{KindInsufficientPrivilege, "insufficient_privilege"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.expected {
			t.Errorf("Kind(%d).String(): expected %q, got %q", tt.kind, tt.expected, got)
		}
	}
}

// timeoutErr implements net.Error for tests.
type timeoutErr struct{}

func (*timeoutErr) Error() string   { return "i/o timeout" }
func (*timeoutErr) Timeout() bool   { return true }
func (*timeoutErr) Temporary() bool { return true }
