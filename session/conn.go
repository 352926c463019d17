package session

import "context"

// Conn is the minimal connection capability a session consumes from a
// data-access provider. Concrete providers adapt their native connection
// types to it; see the postgres and sqldb packages.
//
// A Conn is exclusively owned by one session. The session is the sole
// authority for closing it, and operations against it must be issued
// sequentially by one flow at a time.
type Conn interface {
	// BeginTx starts a new transaction on this connection.
	//
	// LevelUnspecified requests the provider's default isolation level;
	// any other level is translated to the provider's equivalent setting.
	// Starting a transaction while a previous one is still open is governed
	// by the provider: most drivers silently discard (roll back) the
	// previous transaction. Callers must commit or close the previous
	// transaction before beginning the next.
	BeginTx(ctx context.Context, level IsolationLevel) (Tx, error)

	// Close releases the connection. For pooled connections this returns
	// the connection to its pool rather than terminating it.
	Close(ctx context.Context) error
}

// Tx is the transaction capability a session consumes from a data-access
// provider.
//
// There is no explicit rollback operation anywhere in this layer: a
// transaction that is closed without a prior Commit is rolled back by the
// provider as part of Close. That provider behavior is the only rollback
// path sessions rely on.
type Tx interface {
	// Commit commits all changes made within the transaction. Provider
	// errors and context cancellation are returned unmodified.
	Commit(ctx context.Context) error

	// Close releases the native transaction. If Commit was never called the
	// provider rolls the transaction back. Close after a successful Commit
	// is a no-op.
	Close(ctx context.Context) error
}

// ConnectFunc produces a fresh connection for a factory-built session.
// Providers expose ready-made implementations, e.g. postgres.Connector.
type ConnectFunc func(ctx context.Context) (Conn, error)
