package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReadOnly_NilConn(t *testing.T) {
	t.Run("nil interface", func(t *testing.T) {
		_, err := NewReadOnly[Conn](nil)
		assert.ErrorIs(t, err, ErrNilConn)
		assert.True(t, IsInvalidArgument(err))
	})

	t.Run("typed nil pointer", func(t *testing.T) {
		_, err := NewReadOnly[*MockConn](nil)
		assert.ErrorIs(t, err, ErrNilConn)
	})

	t.Run("with isolation", func(t *testing.T) {
		_, err := NewReadOnlyWithIsolation[Conn](nil, LevelReadCommitted)
		assert.ErrorIs(t, err, ErrNilConn)
	})
}

func TestReadOnly_UnspecifiedLevel_InitializedImmediately(t *testing.T) {
	conn := &MockConn{}
	sess, err := NewReadOnly(conn)
	require.NoError(t, err)

	assert.True(t, sess.Initialized())
	assert.Equal(t, LevelUnspecified, sess.Isolation())

	// Initialize must stay a no-op: no transaction is ever begun.
	require.NoError(t, sess.Initialize(context.Background()))
	assert.Equal(t, 0, conn.BeginCalls)
}

func TestReadOnly_WithIsolation_InitializeBeginsOnce(t *testing.T) {
	conn := &MockConn{}
	sess, err := NewReadOnlyWithIsolation[*MockConn](conn, LevelRepeatableRead)
	require.NoError(t, err)

	assert.False(t, sess.Initialized())

	require.NoError(t, sess.Initialize(context.Background()))

	assert.True(t, sess.Initialized())
	assert.Equal(t, 1, conn.BeginCalls)
	assert.Equal(t, []IsolationLevel{LevelRepeatableRead}, conn.BeginLevels)
}

func TestReadOnly_Initialize_BeginError(t *testing.T) {
	boom := errors.New("connection refused")
	conn := &MockConn{
		BeginTxFunc: func(ctx context.Context, level IsolationLevel) (Tx, error) {
			return nil, boom
		},
	}

	sess, err := NewReadOnlyWithIsolation[*MockConn](conn, LevelSerializable)
	require.NoError(t, err)

	err = sess.Initialize(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, sess.Initialized())
}

func TestReadOnly_Initialize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn := &MockConn{
		BeginTxFunc: func(ctx context.Context, level IsolationLevel) (Tx, error) {
			return nil, ctx.Err()
		},
	}

	sess, err := NewReadOnlyWithIsolation[*MockConn](conn, LevelReadCommitted)
	require.NoError(t, err)

	err = sess.Initialize(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, sess.Initialized())
}

func TestReadOnly_Conn(t *testing.T) {
	t.Run("bound", func(t *testing.T) {
		conn := &MockConn{}
		sess, err := NewReadOnly(conn)
		require.NoError(t, err)

		got, err := sess.Conn()
		require.NoError(t, err)
		assert.Same(t, conn, got)
	})

	t.Run("unbound zero value", func(t *testing.T) {
		var sess ReadOnly[Conn]

		_, err := sess.Conn()
		assert.ErrorIs(t, err, ErrConnNotBound)
		assert.True(t, IsInvalidOperation(err))
	})
}

// Lifecycle of a session that never needed a transaction: disposing it
// closes the connection exactly once and never touches transactions.
func TestReadOnly_Lifecycle_NoTransaction(t *testing.T) {
	conn := &MockConn{}
	sess, err := NewReadOnly(conn)
	require.NoError(t, err)

	require.NoError(t, sess.Close(context.Background()))

	assert.Equal(t, 1, conn.CloseCalls)
	assert.Equal(t, 0, conn.BeginCalls)
	assert.Empty(t, conn.Txs)
}

func TestReadOnly_Close_ReleasesTransactionThenConnection(t *testing.T) {
	conn := &MockConn{}
	sess, err := NewReadOnlyWithIsolation[*MockConn](conn, LevelReadCommitted)
	require.NoError(t, err)
	require.NoError(t, sess.Initialize(context.Background()))

	require.NoError(t, sess.Close(context.Background()))

	tx := conn.LastTx()
	require.NotNil(t, tx)
	assert.Equal(t, 1, tx.CloseCalls)
	assert.Equal(t, 0, tx.CommitCalls)
	assert.Equal(t, 1, conn.CloseCalls)
}

func TestReadOnly_Close_Idempotent(t *testing.T) {
	conn := &MockConn{}
	sess, err := NewReadOnly(conn)
	require.NoError(t, err)

	require.NoError(t, sess.Close(context.Background()))
	require.NoError(t, sess.Close(context.Background()))

	assert.Equal(t, 1, conn.CloseCalls)
}

func TestReadOnly_Close_NeverBound(t *testing.T) {
	var sess ReadOnly[Conn]
	assert.NoError(t, sess.Close(context.Background()))
}

func TestReadOnly_Close_Errors(t *testing.T) {
	txErr := errors.New("tx close failed")
	connErr := errors.New("conn close failed")

	tests := []struct {
		name     string
		txFail   bool
		connFail bool
		want     error
	}{
		{"transaction close error", true, false, txErr},
		{"connection close error", false, true, connErr},
		{"both fail", true, true, txErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &MockConn{}
			if tt.connFail {
				conn.CloseFunc = func(ctx context.Context) error { return connErr }
			}
			conn.BeginTxFunc = func(ctx context.Context, level IsolationLevel) (Tx, error) {
				tx := &MockTx{}
				if tt.txFail {
					tx.CloseFunc = func(ctx context.Context) error { return txErr }
				}
				return tx, nil
			}

			sess, err := NewReadOnlyWithIsolation[*MockConn](conn, LevelReadCommitted)
			require.NoError(t, err)
			require.NoError(t, sess.Initialize(context.Background()))

			err = sess.Close(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadOnly_BindConn(t *testing.T) {
	t.Run("binds once", func(t *testing.T) {
		var sess ReadOnly[Conn]
		conn := &MockConn{}

		require.NoError(t, sess.bindConn(conn))

		got, err := sess.Conn()
		require.NoError(t, err)
		assert.Same(t, Conn(conn), got)
	})

	t.Run("rebind rejected", func(t *testing.T) {
		var sess ReadOnly[Conn]
		require.NoError(t, sess.bindConn(&MockConn{}))

		err := sess.bindConn(&MockConn{})
		assert.ErrorIs(t, err, ErrAlreadyBound)
	})

	t.Run("eagerly constructed session cannot be rebound", func(t *testing.T) {
		sess, err := NewReadOnly[Conn](&MockConn{})
		require.NoError(t, err)

		assert.ErrorIs(t, sess.bindConn(&MockConn{}), ErrAlreadyBound)
	})

	t.Run("nil conn rejected", func(t *testing.T) {
		var sess ReadOnly[Conn]
		assert.ErrorIs(t, sess.bindConn(nil), ErrNilConn)
	})

	t.Run("incompatible conn type rejected", func(t *testing.T) {
		var sess ReadOnly[*MockConn]

		err := sess.bindConn(otherConn{})
		assert.True(t, IsInvalidArgument(err))

		_, err = sess.Conn()
		assert.ErrorIs(t, err, ErrConnNotBound)
	})
}

// otherConn is a second Conn implementation used to exercise the typed
// binding check.
type otherConn struct{}

func (otherConn) BeginTx(ctx context.Context, level IsolationLevel) (Tx, error) {
	return &MockTx{}, nil
}

func (otherConn) Close(ctx context.Context) error { return nil }

func TestParseIsolation(t *testing.T) {
	tests := []struct {
		in      string
		want    IsolationLevel
		wantErr bool
	}{
		{"", LevelUnspecified, false},
		{"unspecified", LevelUnspecified, false},
		{"default", LevelUnspecified, false},
		{"read uncommitted", LevelReadUncommitted, false},
		{"read_committed", LevelReadCommitted, false},
		{"Repeatable Read", LevelRepeatableRead, false},
		{"SERIALIZABLE", LevelSerializable, false},
		{"  serializable  ", LevelSerializable, false},
		{"snapshot", LevelUnspecified, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIsolation(tt.in)
			if tt.wantErr {
				assert.True(t, IsInvalidArgument(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsolationLevel_String(t *testing.T) {
	assert.Equal(t, "unspecified", LevelUnspecified.String())
	assert.Equal(t, "read uncommitted", LevelReadUncommitted.String())
	assert.Equal(t, "read committed", LevelReadCommitted.String())
	assert.Equal(t, "repeatable read", LevelRepeatableRead.String())
	assert.Equal(t, "serializable", LevelSerializable.String())
	assert.Equal(t, "isolation(42)", IsolationLevel(42).String())
}
