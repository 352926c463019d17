// Package session provides reusable base types for short-lived data-access
// sessions: objects that own one database connection and, optionally, one
// transaction, so applications can build use-case-specific data abstractions
// on top of a shared connection/transaction lifecycle.
//
// Session kinds:
//   - ReadOnly: owns a connection; starts a transaction only when an
//     isolation level is requested for consistent reads.
//   - Transactional: a ReadOnly session that additionally begins independent
//     transactions on demand, each returned as a *TxHandle.
//   - UnitOfWork: a ReadOnly session owning exactly one transaction for its
//     whole lifetime, committed once via Commit.
//
// Sessions are produced by factories (see Factory): a factory resolves or
// constructs the session object, opens its connection and starts its
// transaction when one is required, and hands back a ready-to-use instance.
// Opening a connection and beginning a transaction suspend on I/O, so this
// setup lives in the factory rather than in constructors.
//
// Usage:
//
//	type AccountSession struct {
//	    session.UnitOfWork[*postgres.Conn]
//	}
//
//	factory := session.NewConnectFactory[AccountSession](postgres.Connector(pool))
//
//	sess, err := factory.OpenSession(ctx)
//	if err != nil {
//	    return err
//	}
//	defer sess.Close(ctx)
//
//	// Reads and writes issued through the session's connection run inside
//	// the session transaction.
//	if err := transfer(ctx, sess); err != nil {
//	    return err // Close rolls the transaction back
//	}
//	return sess.Commit(ctx)
//
// A session is not safe for concurrent use: one session per logical unit of
// work, never shared between goroutines. The session layer takes no locks;
// all serialization of access to one connection is the caller's duty.
package session

import (
	"context"
	"fmt"
	"reflect"
)

// Compile-time checks
var (
	_ Initializer = (*ReadOnly[Conn])(nil)
	_ sessionCore = (*ReadOnly[Conn])(nil)
)

// Initializer is implemented by sessions that may require deferred setup
// (beginning their transaction) before use. Factories consult it: when a
// produced session reports Initialized() == false, the factory invokes
// Initialize exactly once.
type Initializer interface {
	// Initialized reports whether the session is ready for use. Sessions
	// that require no transaction are initialized from construction.
	Initialized() bool

	// Initialize performs the session's deferred setup. It is not guarded
	// against repeated invocation; checking Initialized first is the
	// caller's duty, and factories are the intended callers.
	Initialize(ctx context.Context) error
}

// IsolationDefaulter is implemented by session types that declare the
// isolation level their factory-built instances use. Connection-construction
// factories zero-construct sessions, so a type that wants a non-default
// level declares it here instead of in a constructor.
//
//	func (AccountSession) DefaultIsolation() session.IsolationLevel {
//	    return session.LevelRepeatableRead
//	}
type IsolationDefaulter interface {
	DefaultIsolation() IsolationLevel
}

// sessionCore is the privileged surface factories use to finish building a
// session. Its unexported methods are promoted through embedding, so
// application session types satisfy it without being able to reimplement
// the binding rules.
type sessionCore interface {
	bindConn(Conn) error
	setIsolation(IsolationLevel)
	Initializer
}

// ReadOnly is a session that owns one connection and exposes it for
// querying. It is generic over the connection type so application session
// types embedding it get a typed accessor to provider conveniences:
//
//	type ReportSession struct {
//	    session.ReadOnly[*postgres.Conn]
//	}
//
// With isolation level LevelUnspecified (the default) the session never
// starts a transaction and is initialized from construction. With any other
// level the session is not initialized until Initialize begins exactly one
// transaction at that level, giving subsequent reads a consistent snapshot.
//
// The zero value is the starting point of the factory-built path: a factory
// binds a connection into it exactly once and initializes it. Application
// code never observes the unbound state except through the documented
// Conn() error.
type ReadOnly[C Conn] struct {
	conn  C
	bound bool
	level IsolationLevel
	tx    Tx
}

// ReadOnlySession is the non-generic convenience form bound to the base
// connection capability.
type ReadOnlySession = ReadOnly[Conn]

// NewReadOnly creates a read-only session around an already-open connection.
// The session starts no transaction and is immediately initialized.
//
// Returns ErrNilConn if conn is nil.
func NewReadOnly[C Conn](conn C) (*ReadOnly[C], error) {
	return NewReadOnlyWithIsolation(conn, LevelUnspecified)
}

// NewReadOnlyWithIsolation creates a read-only session that, once
// initialized, holds a transaction at the given level for the duration of
// its lifetime. The transaction is begun by Initialize, not here; factories
// drive that step.
//
// Returns ErrNilConn if conn is nil.
func NewReadOnlyWithIsolation[C Conn](conn C, level IsolationLevel) (*ReadOnly[C], error) {
	if isNil(conn) {
		return nil, ErrNilConn
	}
	return &ReadOnly[C]{conn: conn, bound: true, level: level}, nil
}

// Conn returns the connection owned by the session.
//
// Returns ErrConnNotBound when no connection has been bound yet (a
// factory-built session consumed before the factory finished) or after the
// session was closed.
func (s *ReadOnly[C]) Conn() (C, error) {
	if !s.bound {
		var zero C
		return zero, ErrConnNotBound
	}
	return s.conn, nil
}

// Isolation returns the isolation level the session was configured with.
func (s *ReadOnly[C]) Isolation() IsolationLevel {
	return s.level
}

// Initialized implements Initializer. A session with no isolation
// preference needs no setup; otherwise the session is initialized once its
// transaction has been started.
func (s *ReadOnly[C]) Initialized() bool {
	return s.level == LevelUnspecified || s.tx != nil
}

// Initialize implements Initializer: it begins the session transaction at
// the configured isolation level. With LevelUnspecified it does nothing.
//
// Initialize is exported so that method promotion carries it to application
// session types, but it is meant to be driven by factories. It does not
// guard against repeated invocation.
func (s *ReadOnly[C]) Initialize(ctx context.Context) error {
	if s.level == LevelUnspecified {
		return nil
	}
	if !s.bound {
		return ErrConnNotBound
	}
	tx, err := s.conn.BeginTx(ctx, s.level)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// Close releases the session's resources: the held transaction first (the
// provider rolls it back if it was never committed), then the connection.
//
// Close is idempotent and is a no-op when no connection was ever bound, so
// an unused zero-value session closes cleanly.
func (s *ReadOnly[C]) Close(ctx context.Context) error {
	if !s.bound {
		return nil
	}

	var txErr error
	if s.tx != nil {
		txErr = s.tx.Close(ctx)
		s.tx = nil
	}

	connErr := s.conn.Close(ctx)
	var zero C
	s.conn = zero
	s.bound = false

	switch {
	case txErr != nil && connErr != nil:
		return fmt.Errorf("failed to close connection: %v (transaction close error: %w)", connErr, txErr)
	case txErr != nil:
		return fmt.Errorf("failed to close transaction: %w", txErr)
	case connErr != nil:
		return fmt.Errorf("failed to close connection: %w", connErr)
	}
	return nil
}

// bindConn attaches the connection a factory obtained for this session.
// A session's connection is bound exactly once and never rebound.
func (s *ReadOnly[C]) bindConn(conn Conn) error {
	if s.bound {
		return ErrAlreadyBound
	}
	if isNil(conn) {
		return ErrNilConn
	}
	c, ok := conn.(C)
	if !ok {
		return fmt.Errorf("%w: connection type %T is not assignable to %v",
			ErrInvalidArgument, conn, reflect.TypeFor[C]())
	}
	s.conn = c
	s.bound = true
	return nil
}

// setIsolation records the level declared by an IsolationDefaulter before
// the factory initializes the session.
func (s *ReadOnly[C]) setIsolation(level IsolationLevel) {
	s.level = level
}

// isNil reports whether v is nil, including typed nil pointers hidden
// behind an interface value.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
