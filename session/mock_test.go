// Package session tests use hand-written recording mocks for the connection
// and transaction capabilities, so every begin, commit and close issued by
// the layer is observable without a database.
package session

import "context"

// ============================================
// Mock Implementations (Test Doubles)
// ============================================

// MockTx records the lifecycle calls made against one native transaction.
type MockTx struct {
	CommitFunc func(ctx context.Context) error
	CloseFunc  func(ctx context.Context) error

	CommitCalls int
	CloseCalls  int
}

func (m *MockTx) Commit(ctx context.Context) error {
	m.CommitCalls++
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTx) Close(ctx context.Context) error {
	m.CloseCalls++
	if m.CloseFunc != nil {
		return m.CloseFunc(ctx)
	}
	return nil
}

// MockConn records connection lifecycle calls and hands out a fresh MockTx
// per BeginTx unless BeginTxFunc overrides that.
type MockConn struct {
	BeginTxFunc func(ctx context.Context, level IsolationLevel) (Tx, error)
	CloseFunc   func(ctx context.Context) error

	BeginCalls  int
	BeginLevels []IsolationLevel
	CloseCalls  int
	Txs         []*MockTx
}

func (m *MockConn) BeginTx(ctx context.Context, level IsolationLevel) (Tx, error) {
	m.BeginCalls++
	m.BeginLevels = append(m.BeginLevels, level)
	if m.BeginTxFunc != nil {
		return m.BeginTxFunc(ctx, level)
	}
	tx := &MockTx{}
	m.Txs = append(m.Txs, tx)
	return tx, nil
}

func (m *MockConn) Close(ctx context.Context) error {
	m.CloseCalls++
	if m.CloseFunc != nil {
		return m.CloseFunc(ctx)
	}
	return nil
}

// LastTx returns the most recently begun transaction.
func (m *MockConn) LastTx() *MockTx {
	if len(m.Txs) == 0 {
		return nil
	}
	return m.Txs[len(m.Txs)-1]
}

// Compile-time checks
var (
	_ Conn = (*MockConn)(nil)
	_ Tx   = (*MockTx)(nil)
)
