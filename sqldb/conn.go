// Package sqldb адаптирует database/sql к сессионному слою.
//
// Сессия владеет выделенным соединением (*sql.Conn), а не пулом *sql.DB:
// statements и транзакция обязаны идти по одному wire-соединению, иначе
// транзакция сессии не накрывает её запросы. Поэтому адаптер строится
// только поверх db.Conn(ctx), а обёртки вокруг *sql.DB здесь нет.
//
// Работает с любым database/sql драйвером: go-sql-driver/mysql,
// modernc.org/sqlite и так далее.
//
// Example:
//
//	db, err := sql.Open("mysql", cfg.DSN())
//	if err != nil { ... }
//
//	factory, err := session.NewConnectFactory[session.UnitOfWorkSession](sqldb.Connector(db))
//	if err != nil { ... }
//
//	uow, err := factory.OpenSession(ctx)
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Haleralex/sessionkit/session"
)

// Compile-time interface checks
var (
	_ session.Conn = (*Conn)(nil)
	_ session.Tx   = (*Tx)(nil)
)

// Conn реализует session.Conn поверх выделенного *sql.Conn.
//
// Statements, выполненные через ExecContext/QueryContext/QueryRowContext,
// идут по тому же соединению, что и открытая транзакция сессии, то есть
// выполняются внутри неё.
type Conn struct {
	conn *sql.Conn
}

// Open берёт выделенное соединение из пула db. Close сессии возвращает
// его обратно в пул.
func Open(ctx context.Context, db *sql.DB) (*Conn, error) {
	c, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain connection: %w", err)
	}
	return &Conn{conn: c}, nil
}

// Connector возвращает session.ConnectFunc, выдающий по выделенному
// соединению на каждую сессию. Передаётся в session.NewConnectFactory.
func Connector(db *sql.DB) session.ConnectFunc {
	return func(ctx context.Context) (session.Conn, error) {
		return Open(ctx, db)
	}
}

// BeginTx реализует session.Conn. session.LevelUnspecified транслируется в
// nil *sql.TxOptions - уровень выбирает драйвер.
//
// Повторный BeginTx при уже открытой транзакции отдаётся на откуп драйверу:
// одни возвращают ошибку, другие неявно завершают предыдущую транзакцию.
func (c *Conn) BeginTx(ctx context.Context, level session.IsolationLevel) (session.Tx, error) {
	tx, err := c.conn.BeginTx(ctx, txOptions(level))
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Close реализует session.Conn: возвращает соединение в пул.
func (c *Conn) Close(ctx context.Context) error {
	return c.conn.Close()
}

// ExecContext выполняет statement. Внутри открытой транзакции сессии - в ней же.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

// QueryContext выполняет запрос с множеством строк.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext выполняет запрос с одной строкой.
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

// Native даёт доступ к *sql.Conn для кода, которому нужен полный API
// database/sql (prepared statements и т.п.).
func (c *Conn) Native() *sql.Conn {
	return c.conn
}

// Tx реализует session.Tx поверх *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

// Commit фиксирует транзакцию. database/sql не принимает контекст на
// Commit, поэтому ctx здесь не используется.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

// Close откатывает транзакцию, если она ещё открыта. После Commit
// database/sql возвращает sql.ErrTxDone - это штатный случай, он гасится.
func (t *Tx) Close(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Native даёт доступ к *sql.Tx.
func (t *Tx) Native() *sql.Tx {
	return t.tx
}

// txOptions транслирует уровень изоляции сессии в *sql.TxOptions.
func txOptions(level session.IsolationLevel) *sql.TxOptions {
	switch level {
	case session.LevelReadUncommitted:
		return &sql.TxOptions{Isolation: sql.LevelReadUncommitted}
	case session.LevelReadCommitted:
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	case session.LevelRepeatableRead:
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	case session.LevelSerializable:
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	default:
		return nil
	}
}
