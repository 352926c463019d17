package metrics

import (
	"context"
	"time"

	"github.com/Haleralex/sessionkit/session"
)

// Compile-time interface checks
var (
	_ session.Conn = (*instrumentedConn)(nil)
	_ session.Tx   = (*instrumentedTx)(nil)
)

// WrapConnect instruments a session.ConnectFunc. Failed connection attempts
// are counted; successful ones come back wrapped by WrapConn.
//
// kind labels the metrics and usually names the factory: "read_only",
// "unit_of_work", "report" and so on.
func WrapConnect(kind string, connect session.ConnectFunc) session.ConnectFunc {
	return func(ctx context.Context) (session.Conn, error) {
		conn, err := connect(ctx)
		if err != nil {
			ConnectErrors.WithLabelValues(kind).Inc()
			return nil, err
		}
		return WrapConn(kind, conn), nil
	}
}

// WrapConn instruments a session.Conn. Wrapping counts as opening a session;
// closing the wrapped connection completes it.
//
// The provider's own connection type stays reachable through Unwrap.
func WrapConn(kind string, conn session.Conn) session.Conn {
	if conn == nil {
		return nil
	}
	SessionsOpened.WithLabelValues(kind).Inc()
	SessionsActive.WithLabelValues(kind).Inc()
	return &instrumentedConn{conn: conn, kind: kind, openedAt: time.Now()}
}

// Unwrap peels instrumentation wrappers off a connection until the provider's
// own type is reached.
func Unwrap(conn session.Conn) session.Conn {
	for {
		u, ok := conn.(interface{ Unwrap() session.Conn })
		if !ok {
			return conn
		}
		conn = u.Unwrap()
	}
}

type instrumentedConn struct {
	conn     session.Conn
	kind     string
	openedAt time.Time
}

func (c *instrumentedConn) BeginTx(ctx context.Context, level session.IsolationLevel) (session.Tx, error) {
	tx, err := c.conn.BeginTx(ctx, level)
	if err != nil {
		TransactionErrors.WithLabelValues(c.kind, "begin").Inc()
		return nil, err
	}
	TransactionsStarted.WithLabelValues(c.kind, level.String()).Inc()
	return &instrumentedTx{tx: tx, kind: c.kind, startedAt: time.Now()}, nil
}

func (c *instrumentedConn) Close(ctx context.Context) error {
	SessionsActive.WithLabelValues(c.kind).Dec()
	SessionDuration.WithLabelValues(c.kind).Observe(time.Since(c.openedAt).Seconds())
	return c.conn.Close(ctx)
}

// Unwrap returns the wrapped connection.
func (c *instrumentedConn) Unwrap() session.Conn {
	return c.conn
}

type instrumentedTx struct {
	tx        session.Tx
	kind      string
	startedAt time.Time
	counted   bool
}

func (t *instrumentedTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		TransactionErrors.WithLabelValues(t.kind, "commit").Inc()
		return err
	}
	if !t.counted {
		t.counted = true
		TransactionsCommitted.WithLabelValues(t.kind).Inc()
		TransactionDuration.WithLabelValues(t.kind).Observe(time.Since(t.startedAt).Seconds())
	}
	return nil
}

func (t *instrumentedTx) Close(ctx context.Context) error {
	if !t.counted {
		t.counted = true
		TransactionsRolledBack.WithLabelValues(t.kind).Inc()
		TransactionDuration.WithLabelValues(t.kind).Observe(time.Since(t.startedAt).Seconds())
	}
	return t.tx.Close(ctx)
}
