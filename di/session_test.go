package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/sessionkit/session"
)

type mockTx struct {
	commits int
	closes  int
}

func (t *mockTx) Commit(ctx context.Context) error {
	t.commits++
	return nil
}

func (t *mockTx) Close(ctx context.Context) error {
	t.closes++
	return nil
}

type mockConn struct {
	closes int
	levels []session.IsolationLevel
}

func (c *mockConn) BeginTx(ctx context.Context, level session.IsolationLevel) (session.Tx, error) {
	c.levels = append(c.levels, level)
	return &mockTx{}, nil
}

func (c *mockConn) Close(ctx context.Context) error {
	c.closes++
	return nil
}

// provideUnitOfWork registers a transient unit-of-work constructor and
// returns the connections it hands out.
func provideUnitOfWork(t *testing.T, c *Container) *[]*mockConn {
	t.Helper()
	conns := &[]*mockConn{}
	require.NoError(t, c.Provide(func() (*session.UnitOfWorkSession, error) {
		mc := &mockConn{}
		*conns = append(*conns, mc)
		return session.NewUnitOfWork[session.Conn](mc)
	}, false))
	return conns
}

func TestResolverFor_Transient(t *testing.T) {
	c := New()
	provideUnitOfWork(t, c)

	resolve := ResolverFor[*session.UnitOfWorkSession](c)
	first, err := resolve()
	require.NoError(t, err)
	second, err := resolve()
	require.NoError(t, err)

	assert.NotSame(t, first, second)
}

func TestFactoryFor_OpenSession(t *testing.T) {
	c := New()
	conns := provideUnitOfWork(t, c)

	factory, err := FactoryFor[*session.UnitOfWorkSession](c)
	require.NoError(t, err)

	uow, err := factory.OpenSession(context.Background())
	require.NoError(t, err)
	assert.True(t, uow.Initialized())

	require.Len(t, *conns, 1)
	assert.Equal(t, []session.IsolationLevel{session.LevelSerializable}, (*conns)[0].levels)

	require.NoError(t, uow.Commit(context.Background()))
	require.NoError(t, uow.Close(context.Background()))
	assert.Equal(t, 1, (*conns)[0].closes)
}

func TestFactoryFor_ResolutionError(t *testing.T) {
	factory, err := FactoryFor[*session.UnitOfWorkSession](New())
	require.NoError(t, err)

	_, err = factory.OpenSession(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProvider)
	assert.Contains(t, err.Error(), "failed to resolve session")
}

func TestProvideSessionFactory(t *testing.T) {
	c := New()
	require.NoError(t, ProvideSessionFactory[*session.UnitOfWorkSession](c))
	conns := provideUnitOfWork(t, c)

	var factory *session.ResolverFactory[*session.UnitOfWorkSession]
	require.NoError(t, c.Resolve(&factory))

	uow, err := factory.OpenSession(context.Background())
	require.NoError(t, err)
	assert.True(t, uow.Initialized())
	require.NoError(t, uow.Close(context.Background()))
	require.Len(t, *conns, 1)

	// Singleton: both resolutions see the same factory.
	var again *session.ResolverFactory[*session.UnitOfWorkSession]
	require.NoError(t, c.Resolve(&again))
	assert.Same(t, factory, again)
}

func TestProvideSessionFactory_ThroughInvoke(t *testing.T) {
	c := New()
	require.NoError(t, ProvideSessionFactory[*session.UnitOfWorkSession](c))
	provideUnitOfWork(t, c)

	var opened bool
	require.NoError(t, c.Invoke(func(f *session.ResolverFactory[*session.UnitOfWorkSession]) error {
		uow, err := f.OpenSession(context.Background())
		if err != nil {
			return err
		}
		opened = true
		return uow.Close(context.Background())
	}))
	assert.True(t, opened)
}
