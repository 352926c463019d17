package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/sessionkit/session"
)

// pgxmock-пул покрывает тот же минимальный контракт, что и *pgxpool.Pool,
// поэтому адаптер тестируется без реальной базы.
var _ Querier = (pgxmock.PgxPoolIface)(nil)

// newMock возвращает pgxmock-пул и Conn поверх него.
func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Conn) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return mock, WrapQuerier(mock)
}

// ============================================
// Conn Tests
// ============================================

func TestWrapQuerier_Nil(t *testing.T) {
	assert.Nil(t, WrapQuerier(nil))
}

func TestTxOptions_Mapping(t *testing.T) {
	tests := []struct {
		name  string
		level session.IsolationLevel
		want  pgx.TxOptions
	}{
		{"Unspecified", session.LevelUnspecified, pgx.TxOptions{}},
		{"ReadUncommitted", session.LevelReadUncommitted, pgx.TxOptions{IsoLevel: pgx.ReadUncommitted}},
		{"ReadCommitted", session.LevelReadCommitted, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}},
		{"RepeatableRead", session.LevelRepeatableRead, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}},
		{"Serializable", session.LevelSerializable, pgx.TxOptions{IsoLevel: pgx.Serializable}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, txOptions(tt.level))
		})
	}
}

func TestConn_BeginTx_PassesIsolationLevel(t *testing.T) {
	mock, conn := newMock(t)
	ctx := context.Background()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	mock.ExpectRollback()

	tx, err := conn.BeginTx(ctx, session.LevelRepeatableRead)
	require.NoError(t, err)
	require.NoError(t, tx.Close(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_BeginTx_UnspecifiedUsesServerDefault(t *testing.T) {
	mock, conn := newMock(t)
	ctx := context.Background()

	// Пустые TxOptions - уровень выбирает сервер.
	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := conn.BeginTx(ctx, session.LevelUnspecified)
	require.NoError(t, err)
	require.NoError(t, tx.Close(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_BeginTx_Error(t *testing.T) {
	mock, conn := newMock(t)

	errBegin := errors.New("connection reset")
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable}).WillReturnError(errBegin)

	tx, err := conn.BeginTx(context.Background(), session.LevelSerializable)
	assert.Nil(t, tx)
	// Ошибку драйвера адаптер не оборачивает - контекст добавляет сессионный слой.
	assert.Equal(t, errBegin, err)
}

func TestConn_Close_WithoutRelease(t *testing.T) {
	_, conn := newMock(t)

	// WrapQuerier не владеет ресурсом, закрывать нечего.
	assert.NoError(t, conn.Close(context.Background()))
}

func TestConn_Close_CallsRelease(t *testing.T) {
	released := 0
	conn := &Conn{release: func(context.Context) error {
		released++
		return nil
	}}

	require.NoError(t, conn.Close(context.Background()))
	assert.Equal(t, 1, released)
}

func TestConn_Close_ReleaseError(t *testing.T) {
	errRelease := errors.New("already returned to pool")
	conn := &Conn{release: func(context.Context) error {
		return errRelease
	}}

	err := conn.Close(context.Background())
	assert.Equal(t, errRelease, err)
}

func TestConn_Exec(t *testing.T) {
	mock, conn := newMock(t)

	mock.ExpectExec("UPDATE accounts").
		WithArgs(int64(10), "acc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tag, err := conn.Exec(context.Background(),
		"UPDATE accounts SET balance = balance - $1 WHERE id = $2", int64(10), "acc-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, tag.RowsAffected())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_Query(t *testing.T) {
	mock, conn := newMock(t)

	mock.ExpectQuery("SELECT id FROM accounts").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("acc-1").AddRow("acc-2"))

	rows, err := conn.Query(context.Background(), "SELECT id FROM accounts ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, []string{"acc-1", "acc-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_QueryRow(t *testing.T) {
	mock, conn := newMock(t)

	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("acc-1").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(90)))

	var balance int64
	err := conn.QueryRow(context.Background(),
		"SELECT balance FROM accounts WHERE id = $1", "acc-1").Scan(&balance)
	require.NoError(t, err)

	assert.Equal(t, int64(90), balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// Tx Tests
// ============================================

func TestTx_Commit(t *testing.T) {
	mock, conn := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

	tx, err := conn.BeginTx(ctx, session.LevelUnspecified)
	require.NoError(t, err)

	require.NoError(t, tx.Commit(ctx))
	// Close после Commit: rollback возвращает pgx.ErrTxClosed, адаптер его гасит.
	assert.NoError(t, tx.Close(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTx_Commit_Error(t *testing.T) {
	mock, conn := newMock(t)
	ctx := context.Background()

	errCommit := errors.New("serialization failure")
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errCommit)

	tx, err := conn.BeginTx(ctx, session.LevelUnspecified)
	require.NoError(t, err)

	err = tx.Commit(ctx)
	assert.Equal(t, errCommit, err)
}

func TestTx_Close_RollsBackOpenTransaction(t *testing.T) {
	mock, conn := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := conn.BeginTx(ctx, session.LevelUnspecified)
	require.NoError(t, err)

	require.NoError(t, tx.Close(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTx_Close_RollbackError(t *testing.T) {
	mock, conn := newMock(t)
	ctx := context.Background()

	errRollback := errors.New("connection is busy")
	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errRollback)

	tx, err := conn.BeginTx(ctx, session.LevelUnspecified)
	require.NoError(t, err)

	err = tx.Close(ctx)
	assert.Equal(t, errRollback, err)
}

func TestTx_Native(t *testing.T) {
	mock, conn := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := conn.BeginTx(ctx, session.LevelUnspecified)
	require.NoError(t, err)

	pgTx, ok := tx.(*Tx)
	require.True(t, ok)
	assert.NotNil(t, pgTx.Native())

	require.NoError(t, tx.Close(ctx))
}

// ============================================
// Session layer over pgx
// ============================================

func TestUnitOfWork_OverPgx_CommitThenClose(t *testing.T) {
	mock, conn := newMock(t)
	ctx := context.Background()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("UPDATE accounts").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

	uow, err := session.NewUnitOfWork(conn)
	require.NoError(t, err)
	require.NoError(t, uow.Initialize(ctx))

	pg, err := uow.Conn()
	require.NoError(t, err)
	_, err = pg.Exec(ctx, "UPDATE accounts SET balance = 0 WHERE id = $1", "acc-1")
	require.NoError(t, err)

	require.NoError(t, uow.Commit(ctx))
	require.NoError(t, uow.Close(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_OverPgx_CloseWithoutCommit(t *testing.T) {
	mock, conn := newMock(t)
	ctx := context.Background()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectRollback()

	uow, err := session.NewUnitOfWork(conn)
	require.NoError(t, err)
	require.NoError(t, uow.Initialize(ctx))

	// Коммита не было - Close откатывает транзакцию.
	require.NoError(t, uow.Close(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactional_OverPgx_HandleLifecycle(t *testing.T) {
	mock, conn := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

	sess, err := session.NewTransactional(conn)
	require.NoError(t, err)

	handle, err := sess.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, handle.Commit(ctx))
	require.NoError(t, handle.Close(ctx))

	// Сессия без уровня изоляции собственной транзакции не держит.
	require.NoError(t, sess.Close(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectFactory_OverPgx(t *testing.T) {
	mock, _ := newMock(t)
	ctx := context.Background()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectCommit()
	mock.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

	connect := func(ctx context.Context) (session.Conn, error) {
		return WrapQuerier(mock), nil
	}
	factory, err := session.NewConnectFactory[session.UnitOfWorkSession](connect)
	require.NoError(t, err)

	uow, err := factory.OpenSession(ctx)
	require.NoError(t, err)

	require.NoError(t, uow.Commit(ctx))
	require.NoError(t, uow.Close(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}
