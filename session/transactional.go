package session

import (
	"context"
	"fmt"
)

// Transactional is a read-only session that supports opening independent
// transactions on demand, not tied to the session's own lifetime. Each
// Begin returns a fresh *TxHandle; commit is only available on the handle,
// the session itself has no commit operation.
//
// The session does not track the handles it creates. It is the caller's
// duty to commit or close each handle before beginning the next one:
// beginning a transaction while a previous one is still open makes the
// underlying connection silently discard (roll back) the previous one.
//
// Usage:
//
//	handle, err := sess.Begin(ctx)
//	if err != nil {
//	    return err
//	}
//	defer handle.Close(ctx)
//
//	if err := doWork(ctx, sess); err != nil {
//	    return err // Close rolls the transaction back
//	}
//	return handle.Commit(ctx)
type Transactional[C Conn] struct {
	ReadOnly[C]
}

// TransactionalSession is the non-generic convenience form bound to the
// base connection capability.
type TransactionalSession = Transactional[Conn]

// NewTransactional creates a transactional session around an already-open
// connection. Begin starts transactions at the provider's default isolation
// level unless BeginTx is given an explicit one.
//
// Returns ErrNilConn if conn is nil.
func NewTransactional[C Conn](conn C) (*Transactional[C], error) {
	return NewTransactionalWithIsolation(conn, LevelUnspecified)
}

// NewTransactionalWithIsolation creates a transactional session whose Begin
// uses the given isolation level by default. The level also applies to the
// inherited read-only initialization, exactly as for a ReadOnly session
// constructed with it.
//
// Returns ErrNilConn if conn is nil.
func NewTransactionalWithIsolation[C Conn](conn C, level IsolationLevel) (*Transactional[C], error) {
	if isNil(conn) {
		return nil, ErrNilConn
	}
	s := &Transactional[C]{}
	s.conn = conn
	s.bound = true
	s.level = level
	return s, nil
}

// Begin starts a new transaction on the owned connection at the session's
// default isolation level and returns its handle.
func (s *Transactional[C]) Begin(ctx context.Context) (*TxHandle, error) {
	return s.BeginTx(ctx, s.level)
}

// BeginTx starts a new transaction at the given isolation level and returns
// its handle. Here LevelUnspecified requests the provider's default level;
// an explicit begin always begins.
//
// May be cancelled through ctx; provider failures propagate unchanged.
func (s *Transactional[C]) BeginTx(ctx context.Context, level IsolationLevel) (*TxHandle, error) {
	if !s.bound {
		return nil, ErrConnNotBound
	}
	tx, err := s.conn.BeginTx(ctx, level)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return NewTxHandle(tx)
}
