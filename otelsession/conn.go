// Package otelsession adds OpenTelemetry tracing to session connections.
//
// A wrapped connection emits one span per transaction, opened at BeginTx and
// closed when the transaction reaches its terminal state (commit or release).
// Connection dialing through WrapConnect gets its own short span. The wrappers
// implement the same Unwrap contract as the metrics package, so tracing and
// metrics instrumentation can be layered in any order and the provider-native
// connection stays reachable underneath.
package otelsession

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Haleralex/sessionkit/session"
)

const tracerName = "sessionkit.session"

const (
	kindKey      = attribute.Key("session.kind")
	isolationKey = attribute.Key("tx.isolation")
	outcomeKey   = attribute.Key("tx.outcome")

	outcomeCommit   = "commit"
	outcomeRollback = "rollback"
)

// ============================================
// Options
// ============================================

type config struct {
	provider trace.TracerProvider
	attrs    []attribute.KeyValue
}

// Option configures the tracing wrappers.
type Option func(*config)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		if tp != nil {
			c.provider = tp
		}
	}
}

// WithAttributes adds extra attributes to every span the wrapper emits.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(c *config) {
		c.attrs = append(c.attrs, attrs...)
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{provider: otel.GetTracerProvider()}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *config) tracer() trace.Tracer {
	return c.provider.Tracer(tracerName)
}

// ============================================
// Wrappers
// ============================================

var (
	_ session.Conn = (*instrumentedConn)(nil)
	_ session.Tx   = (*instrumentedTx)(nil)
)

// WrapConnect traces connection dialing and wraps the resulting connection.
// The kind labels the spans, typically "read_only", "transactional" or
// "unit_of_work".
func WrapConnect(kind string, connect session.ConnectFunc, opts ...Option) session.ConnectFunc {
	cfg := newConfig(opts)
	return func(ctx context.Context) (session.Conn, error) {
		spanCtx, span := cfg.tracer().Start(
			ctx,
			fmt.Sprintf("connect.%s", kind),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(append([]attribute.KeyValue{kindKey.String(kind)}, cfg.attrs...)...),
		)
		conn, err := connect(spanCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "connect failed")
			span.End()
			return nil, err
		}
		span.SetStatus(codes.Ok, "")
		span.End()
		return wrapConn(kind, conn, cfg), nil
	}
}

// WrapConn wraps an established connection so its transactions are traced.
// A nil connection stays nil.
func WrapConn(kind string, conn session.Conn, opts ...Option) session.Conn {
	return wrapConn(kind, conn, newConfig(opts))
}

func wrapConn(kind string, conn session.Conn, cfg *config) session.Conn {
	if conn == nil {
		return nil
	}
	return &instrumentedConn{conn: conn, kind: kind, cfg: cfg}
}

// Unwrap returns the connection underneath any instrumentation layers.
func Unwrap(conn session.Conn) session.Conn {
	for conn != nil {
		wrapper, ok := conn.(interface{ Unwrap() session.Conn })
		if !ok {
			return conn
		}
		conn = wrapper.Unwrap()
	}
	return conn
}

type instrumentedConn struct {
	conn session.Conn
	kind string
	cfg  *config
}

func (c *instrumentedConn) BeginTx(ctx context.Context, level session.IsolationLevel) (session.Tx, error) {
	attrs := append([]attribute.KeyValue{
		kindKey.String(c.kind),
		isolationKey.String(level.String()),
	}, c.cfg.attrs...)

	spanCtx, span := c.cfg.tracer().Start(
		ctx,
		fmt.Sprintf("tx.%s", c.kind),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	tx, err := c.conn.BeginTx(spanCtx, level)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin failed")
		span.End()
		return nil, err
	}
	return &instrumentedTx{tx: tx, span: span}, nil
}

func (c *instrumentedConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// Unwrap returns the wrapped connection.
func (c *instrumentedConn) Unwrap() session.Conn {
	return c.conn
}

type instrumentedTx struct {
	tx   session.Tx
	span trace.Span
	done bool
}

func (t *instrumentedTx) Commit(ctx context.Context) error {
	err := t.tx.Commit(ctx)
	if t.done {
		return err
	}
	if err != nil {
		// Transaction is still open, the span ends on Close after rollback.
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, "commit failed")
		return err
	}
	t.span.SetAttributes(outcomeKey.String(outcomeCommit))
	t.span.SetStatus(codes.Ok, "")
	t.span.End()
	t.done = true
	return nil
}

func (t *instrumentedTx) Close(ctx context.Context) error {
	if !t.done {
		t.span.SetAttributes(outcomeKey.String(outcomeRollback))
		t.span.End()
		t.done = true
	}
	return t.tx.Close(ctx)
}
