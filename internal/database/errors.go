package database

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind categorises database failures so callers can branch on the class of
// error instead of matching message substrings.
type Kind int

const (
	KindOther Kind = iota
	KindConnection
	KindUndefinedTable
	KindUndefinedFunction
	KindUniqueViolation
	KindInsufficientPrivilege
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindUndefinedTable:
		return "undefined_table"
	case KindUndefinedFunction:
		return "undefined_function"
	case KindUniqueViolation:
		return "unique_violation"
	case KindInsufficientPrivilege:
		return "insufficient_privilege"
	default:
		return "other"
	}
}

// SQLSTATE codes of interest.
const (
	codeUndefinedTable        = "42P01"
	codeUndefinedFunction     = "42883"
	codeUniqueViolation       = "23505"
	codeInsufficientPrivilege = "42501"
)

// Classify maps an error from a pgx call to its Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUndefinedTable:
			return KindUndefinedTable
		case codeUndefinedFunction:
			return KindUndefinedFunction
		case codeUniqueViolation:
			return KindUniqueViolation
		case codeInsufficientPrivilege:
			return KindInsufficientPrivilege
		}
		return KindOther
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return KindConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnection
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindConnection
	}

	return KindOther
}

// Is reports whether err classifies as the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && Classify(err) == kind
}
