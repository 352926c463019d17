package di

import (
	"github.com/Haleralex/sessionkit/session"
)

// ResolverFor adapts container resolution into a resolver suitable for
// session.NewResolverFactory. Every call resolves a fresh S, so session
// constructors should be registered transient; a singleton session would be
// handed out again after it was closed.
func ResolverFor[S any](c *Container) func() (S, error) {
	return func() (S, error) {
		var s S
		if err := c.Resolve(&s); err != nil {
			var zero S
			return zero, err
		}
		return s, nil
	}
}

// FactoryFor builds a session factory whose sessions are resolved from the
// container.
func FactoryFor[S any](c *Container) (*session.ResolverFactory[S], error) {
	return session.NewResolverFactory(ResolverFor[S](c))
}

// ProvideSessionFactory registers a singleton session.ResolverFactory[S]
// in the container. The factory resolves sessions lazily, so the session
// constructor for S may be registered before or after this call.
func ProvideSessionFactory[S any](c *Container) error {
	return c.Provide(func() (*session.ResolverFactory[S], error) {
		return FactoryFor[S](c)
	}, true)
}
