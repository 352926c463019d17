// Package session errors fall into two classes checkable with errors.Is:
// invalid-argument (a required collaborator is missing at construction) and
// invalid-operation (a lifecycle rule was violated). Failures surfaced by
// the underlying connection or transaction are wrapped with context only,
// never translated or suppressed, so provider error values stay reachable
// through errors.Is and errors.As.
package session

import (
	"errors"
	"fmt"
)

// Error classes. Every sentinel below wraps one of these.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidOperation = errors.New("invalid operation")
)

// Invalid-argument sentinels: a required collaborator is nil. These fail
// immediately, before any I/O.
var (
	ErrNilConn     = fmt.Errorf("%w: connection is nil", ErrInvalidArgument)
	ErrNilTx       = fmt.Errorf("%w: transaction is nil", ErrInvalidArgument)
	ErrNilResolver = fmt.Errorf("%w: session resolver is nil", ErrInvalidArgument)
	ErrNilConnect  = fmt.Errorf("%w: connect function is nil", ErrInvalidArgument)
)

// Invalid-operation sentinels: a session was used out of lifecycle order.
var (
	// ErrConnNotBound is returned when the connection is consumed before a
	// factory has bound one to the session.
	ErrConnNotBound = fmt.Errorf("%w: connection is not bound to the session", ErrInvalidOperation)

	// ErrAlreadyBound is returned when a factory attempts to bind a
	// connection to a session that already owns one.
	ErrAlreadyBound = fmt.Errorf("%w: session already owns a connection", ErrInvalidOperation)

	// ErrNoTransaction is returned by UnitOfWork.Commit when the session's
	// transaction was never started.
	ErrNoTransaction = fmt.Errorf("%w: no active transaction", ErrInvalidOperation)
)

// Helper functions for common error checking

// IsInvalidArgument reports whether err belongs to the invalid-argument
// class.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsInvalidOperation reports whether err belongs to the invalid-operation
// class.
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}
