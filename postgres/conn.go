// Package postgres адаптирует pgx к сессионному слою.
//
// Слой сессий потребляет минимальные capability-интерфейсы (session.Conn,
// session.Tx); этот пакет реализует их поверх pgx:
// - Conn оборачивает любой Querier (*pgx.Conn, *pgxpool.Conn, *pgxpool.Pool, pgxmock)
// - Tx оборачивает pgx.Tx; Close = Rollback, если Commit не был вызван
// - Connector/DialConnector дают session.ConnectFunc для фабрик
//
// Patterns:
// - Adapter: native pgx types → session capabilities
// - Minimal interface: репозитории и сессии не зависят от конкретного
//   типа соединения, только от Querier
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/sessionkit/session"
)

// Compile-time checks
var (
	_ session.Conn = (*Conn)(nil)
	_ session.Tx   = (*Tx)(nil)

	_ Querier = (*pgx.Conn)(nil)
	_ Querier = (*pgxpool.Conn)(nil)
	_ Querier = (*pgxpool.Pool)(nil)
)

// Querier - минимальная поверхность pgx, которая нужна сессионному
// соединению. Ей удовлетворяют *pgx.Conn, *pgxpool.Conn, *pgxpool.Pool и
// pgxmock-пулы, поэтому unit-тесты работают без реальной БД.
type Querier interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn реализует session.Conn поверх Querier.
//
// Statements, выполненные через Exec/Query/QueryRow, идут по тому же
// wire-соединению, что и открытая транзакция сессии, то есть выполняются
// внутри неё.
type Conn struct {
	q       Querier
	release func(ctx context.Context) error
}

// Connect открывает одиночное соединение к PostgreSQL. Close сессии
// закрывает его.
func Connect(ctx context.Context, cfg Config) (*Conn, error) {
	conn, err := pgx.Connect(ctx, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Conn{q: conn, release: conn.Close}, nil
}

// Acquire берёт соединение из пула. Close сессии возвращает его в пул,
// а не закрывает физически.
func Acquire(ctx context.Context, pool *pgxpool.Pool) (*Conn, error) {
	c, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Conn{
		q: c,
		release: func(context.Context) error {
			c.Release()
			return nil
		},
	}, nil
}

// WrapQuerier оборачивает готовый Querier без передачи владения: Close
// сессии ничего не освобождает. Используется в тестах (pgxmock) и когда
// временем жизни ресурса управляет вызывающая сторона.
func WrapQuerier(q Querier) *Conn {
	if q == nil {
		return nil
	}
	return &Conn{q: q}
}

// Connector возвращает session.ConnectFunc, выдающий по соединению из пула
// на каждую сессию. Передаётся в session.NewConnectFactory.
func Connector(pool *pgxpool.Pool) session.ConnectFunc {
	return func(ctx context.Context) (session.Conn, error) {
		return Acquire(ctx, pool)
	}
}

// DialConnector возвращает session.ConnectFunc, открывающий новое одиночное
// соединение на каждую сессию. Для случаев без пула (CLI, миграции, тесты).
func DialConnector(cfg Config) session.ConnectFunc {
	return func(ctx context.Context) (session.Conn, error) {
		return Connect(ctx, cfg)
	}
}

// BeginTx реализует session.Conn. session.LevelUnspecified транслируется в
// пустые pgx.TxOptions - сервер выбирает уровень сам.
func (c *Conn) BeginTx(ctx context.Context, level session.IsolationLevel) (session.Tx, error) {
	tx, err := c.q.BeginTx(ctx, txOptions(level))
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Close реализует session.Conn: возвращает соединение туда, откуда оно
// было взято. Для WrapQuerier это no-op.
func (c *Conn) Close(ctx context.Context) error {
	if c.release == nil {
		return nil
	}
	return c.release(ctx)
}

// Exec выполняет statement. Внутри открытой транзакции сессии - в ней же.
func (c *Conn) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return c.q.Exec(ctx, sql, arguments...)
}

// Query выполняет запрос, возвращающий строки.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.q.Query(ctx, sql, args...)
}

// QueryRow выполняет запрос, возвращающий одну строку.
func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.q.QueryRow(ctx, sql, args...)
}

// Tx реализует session.Tx поверх pgx.Tx.
type Tx struct {
	tx pgx.Tx
}

// Commit коммитит транзакцию. Ошибки pgx (включая pgx.ErrTxClosed при
// повторном коммите) и отмена контекста проходят без изменений.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Close освобождает транзакцию. Без предшествующего Commit pgx выполняет
// ROLLBACK; после успешного Commit pgx возвращает ErrTxClosed, и Close
// трактует это как no-op.
func (t *Tx) Close(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// Native возвращает исходный pgx.Tx для provider-specific операций
// (batch, copy from и т.п.).
func (t *Tx) Native() pgx.Tx {
	return t.tx
}

// txOptions транслирует уровень изоляции сессионного слоя в pgx.TxOptions.
func txOptions(level session.IsolationLevel) pgx.TxOptions {
	switch level {
	case session.LevelReadUncommitted:
		return pgx.TxOptions{IsoLevel: pgx.ReadUncommitted}
	case session.LevelReadCommitted:
		return pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	case session.LevelRepeatableRead:
		return pgx.TxOptions{IsoLevel: pgx.RepeatableRead}
	case session.LevelSerializable:
		return pgx.TxOptions{IsoLevel: pgx.Serializable}
	default:
		return pgx.TxOptions{}
	}
}
