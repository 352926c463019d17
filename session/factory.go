package session

import (
	"context"
	"fmt"
)

// Factory produces ready-to-use sessions. OpenSession is its single
// operation: it performs any setup the session requires (opening a
// connection, beginning a transaction) before handing the session to the
// caller, and performs that setup exactly once per produced instance.
//
// A factory holds only its captured producer function. Concurrent
// OpenSession calls on one factory each produce independent sessions.
type Factory[S any] interface {
	// OpenSession returns a fully initialized session, or propagates any
	// failure from session resolution, connection opening or transaction
	// begin. May be cancelled through ctx.
	//
	// On failure no usable session is returned. A connection that was
	// already opened for a session whose initialization then failed is not
	// closed by the factory.
	OpenSession(ctx context.Context) (S, error)
}

// Compile-time checks
var (
	_ Factory[*ReadOnly[Conn]] = (*ResolverFactory[*ReadOnly[Conn]])(nil)
	_ Factory[*ReadOnly[Conn]] = (*ConnectFactory[ReadOnly[Conn], *ReadOnly[Conn]])(nil)
)

// ResolverFactory wraps a zero-argument resolver returning an existing or
// newly constructed session object, typically obtained from a dependency
// container. After resolving, the factory initializes the session when it
// declares deferred setup via Initializer and is not yet initialized;
// sessions that need no setup are returned with no extra suspension.
type ResolverFactory[S any] struct {
	resolve func() (S, error)
}

// NewResolverFactory creates a delegate-resolution factory.
// Returns ErrNilResolver if resolve is nil.
func NewResolverFactory[S any](resolve func() (S, error)) (*ResolverFactory[S], error) {
	if resolve == nil {
		return nil, ErrNilResolver
	}
	return &ResolverFactory[S]{resolve: resolve}, nil
}

// OpenSession implements Factory.
func (f *ResolverFactory[S]) OpenSession(ctx context.Context) (S, error) {
	var zero S

	s, err := f.resolve()
	if err != nil {
		return zero, fmt.Errorf("failed to resolve session: %w", err)
	}
	if isNil(s) {
		return zero, fmt.Errorf("%w: resolver returned a nil session", ErrInvalidArgument)
	}

	init, ok := any(s).(Initializer)
	if !ok || init.Initialized() {
		return s, nil
	}
	if err := init.Initialize(ctx); err != nil {
		return zero, err
	}
	return s, nil
}

// ConnectFactory builds sessions from scratch: it zero-constructs the
// session type, obtains a fresh connection from its connect function, binds
// the connection into the session and initializes it per the session's
// isolation level (declared via IsolationDefaulter, or the type's own
// default).
//
// The PS type parameter ties the factory to session types built on this
// package's base types; constraint inference derives it, so instantiation
// names only the session type:
//
//	factory, err := session.NewConnectFactory[AccountSession](postgres.Connector(pool))
type ConnectFactory[S any, PS interface {
	*S
	sessionCore
}] struct {
	connect ConnectFunc
}

// NewConnectFactory creates a connection-construction factory.
// Returns ErrNilConnect if connect is nil.
func NewConnectFactory[S any, PS interface {
	*S
	sessionCore
}](connect ConnectFunc) (*ConnectFactory[S, PS], error) {
	if connect == nil {
		return nil, ErrNilConnect
	}
	return &ConnectFactory[S, PS]{connect: connect}, nil
}

// OpenSession implements Factory.
func (f *ConnectFactory[S, PS]) OpenSession(ctx context.Context) (PS, error) {
	var zero PS
	sess := PS(new(S))

	conn, err := f.connect(ctx)
	if err != nil {
		return zero, fmt.Errorf("failed to open connection: %w", err)
	}
	if err := sess.bindConn(conn); err != nil {
		return zero, err
	}

	if d, ok := any(sess).(IsolationDefaulter); ok {
		sess.setIsolation(d.DefaultIsolation())
	}
	if !sess.Initialized() {
		if err := sess.Initialize(ctx); err != nil {
			return zero, err
		}
	}
	return sess, nil
}
