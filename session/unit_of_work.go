package session

import (
	"context"
	"fmt"
)

// UnitOfWork is a read-only session that owns exactly one transaction
// spanning its whole lifetime, for combined read and write use cases.
//
// The transaction is begun by Initialize (a factory's duty) and committed
// exactly once via Commit. Closing the session without a prior Commit
// closes the transaction uncommitted, so the provider rolls it back. That
// implicit rollback is the only failure-path cleanup; the session never
// issues an explicit rollback of its own.
//
// Usage:
//
//	sess, err := factory.OpenSession(ctx)
//	if err != nil {
//	    return err
//	}
//	defer sess.Close(ctx)
//
//	if err := debit(ctx, sess, from, amount); err != nil {
//	    return err
//	}
//	if err := credit(ctx, sess, to, amount); err != nil {
//	    return err
//	}
//	return sess.Commit(ctx)
type UnitOfWork[C Conn] struct {
	ReadOnly[C]
}

// UnitOfWorkSession is the non-generic convenience form bound to the base
// connection capability.
type UnitOfWorkSession = UnitOfWork[Conn]

// NewUnitOfWork creates a unit-of-work session around an already-open
// connection with the strictest isolation level, serializable. The
// transaction is begun by Initialize, not here.
//
// Returns ErrNilConn if conn is nil.
func NewUnitOfWork[C Conn](conn C) (*UnitOfWork[C], error) {
	return NewUnitOfWorkWithIsolation(conn, LevelSerializable)
}

// NewUnitOfWorkWithIsolation creates a unit-of-work session with the given
// isolation level. A unit of work always owns a transaction, so
// LevelUnspecified is treated as the serializable default.
//
// Returns ErrNilConn if conn is nil.
func NewUnitOfWorkWithIsolation[C Conn](conn C, level IsolationLevel) (*UnitOfWork[C], error) {
	if isNil(conn) {
		return nil, ErrNilConn
	}
	if level == LevelUnspecified {
		level = LevelSerializable
	}
	s := &UnitOfWork[C]{}
	s.conn = conn
	s.bound = true
	s.level = level
	return s, nil
}

// Initialized reports whether the session's lifetime transaction has been
// started. Unlike a plain read-only session, a unit of work is never
// initialized from construction.
func (u *UnitOfWork[C]) Initialized() bool {
	return u.tx != nil
}

// Initialize begins the session's lifetime transaction. Zero-constructed
// sessions carry no isolation preference, so LevelUnspecified is promoted
// to the serializable default before the transaction is begun.
func (u *UnitOfWork[C]) Initialize(ctx context.Context) error {
	if u.level == LevelUnspecified {
		u.level = LevelSerializable
	}
	return u.ReadOnly.Initialize(ctx)
}

// Commit commits the session's transaction. It is meaningful exactly once:
// a second call re-invokes commit on the already-committed native
// transaction and surfaces whatever the provider returns for that.
//
// Returns ErrNoTransaction if the transaction was never started.
func (u *UnitOfWork[C]) Commit(ctx context.Context) error {
	if u.tx == nil {
		return ErrNoTransaction
	}
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
