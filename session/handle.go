package session

import "context"

// TxHandle adapts a native transaction into a disposal-safe handle with an
// explicit commit. Handles are returned by Transactional sessions; each one
// wraps its own native transaction.
//
// The handle holds no state beyond the wrapped transaction. In particular
// it does not track whether Commit was called: closing an uncommitted
// handle relies on the provider's rollback-on-close behavior, and closing a
// committed one is a provider-level no-op.
//
// At most one transaction is meaningfully active per connection at a time.
// The handle does not enforce that; commit or close a handle before
// beginning the next transaction on the same session.
type TxHandle struct {
	tx Tx
}

// NewTxHandle wraps a native transaction. Returns ErrNilTx if tx is nil.
func NewTxHandle(tx Tx) (*TxHandle, error) {
	if isNil(tx) {
		return nil, ErrNilTx
	}
	return &TxHandle{tx: tx}, nil
}

// Commit commits all changes made within the transaction. Provider errors
// and context cancellation are propagated unmodified.
func (h *TxHandle) Commit(ctx context.Context) error {
	return h.tx.Commit(ctx)
}

// Close releases the native transaction. If Commit was never called the
// provider rolls the transaction back; Close itself never commits.
func (h *TxHandle) Close(ctx context.Context) error {
	return h.tx.Close(ctx)
}

// Tx returns the wrapped native transaction for provider-specific access.
func (h *TxHandle) Tx() Tx {
	return h.tx
}
