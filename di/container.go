// Package di is a minimal constructor-injection container used to wire
// session factories, providers and application services without a global
// registry. Constructors are plain functions; parameters are resolved from
// the container by type, interfaces match any registered implementation.
package di

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	// ErrNoProvider is returned when no constructor or value is registered
	// for a requested type.
	ErrNoProvider = errors.New("no provider registered")

	// ErrCyclicDependency is returned when constructors depend on each other.
	ErrCyclicDependency = errors.New("cyclic dependency")
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Container resolves types through registered constructors.
//
// Constructors must not call back into the container; everything they need
// is declared as parameters. Functions passed to Invoke run outside the
// container lock and may resolve freely.
type Container struct {
	mu        sync.Mutex
	bindings  map[reflect.Type]binding
	instances map[reflect.Type]reflect.Value
}

type binding struct {
	ctor      reflect.Value
	singleton bool
}

// New creates an empty container.
func New() *Container {
	return &Container{
		bindings:  make(map[reflect.Type]binding),
		instances: make(map[reflect.Type]reflect.Value),
	}
}

// Provide registers a constructor for the type of its first return value.
// The constructor may take parameters, resolved from the container on
// demand, and may return either (T) or (T, error). With singleton set the
// constructed value is cached and reused for every subsequent resolution.
func (c *Container) Provide(constructor any, singleton bool) error {
	v := reflect.ValueOf(constructor)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("di: constructor must be a function, got %T", constructor)
	}
	ft := v.Type()
	if ft.NumOut() == 0 || ft.NumOut() > 2 {
		return fmt.Errorf("di: constructor must return (T) or (T, error)")
	}
	if ft.NumOut() == 2 && ft.Out(1) != errType {
		return fmt.Errorf("di: constructor's second return value must be error")
	}

	out := ft.Out(0)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.bindings[out]; exists {
		return fmt.Errorf("di: provider already registered for %v", out)
	}
	c.bindings[out] = binding{ctor: v, singleton: singleton}
	return nil
}

// ProvideValue registers an already constructed value, registered under its
// concrete type. Values are always singletons.
func (c *Container) ProvideValue(value any) error {
	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return fmt.Errorf("di: value must not be nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.instances[v.Type()]; exists {
		return fmt.Errorf("di: value already registered for %v", v.Type())
	}
	c.instances[v.Type()] = v
	return nil
}

// Resolve populates the given pointer with an instance of the requested
// type.
//
//	var factory *session.ResolverFactory[*session.UnitOfWorkSession]
//	err := c.Resolve(&factory)
func (c *Container) Resolve(target any) error {
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Pointer || ptr.IsNil() {
		return fmt.Errorf("di: resolve target must be a non-nil pointer")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	val, err := c.build(ptr.Elem().Type(), make(map[reflect.Type]bool))
	if err != nil {
		return err
	}
	ptr.Elem().Set(val)
	return nil
}

// Invoke calls fn with parameters resolved from the container. When the
// last return value is an error it is propagated; other return values are
// discarded.
func (c *Container) Invoke(fn any) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("di: invoke requires a function, got %T", fn)
	}

	ft := v.Type()
	args := make([]reflect.Value, ft.NumIn())
	c.mu.Lock()
	building := make(map[reflect.Type]bool)
	for i := range args {
		val, err := c.build(ft.In(i), building)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		args[i] = val
	}
	c.mu.Unlock()

	outs := v.Call(args)
	if n := len(outs); n > 0 {
		if last := outs[n-1]; last.Type() == errType && !last.IsNil() {
			return last.Interface().(error)
		}
	}
	return nil
}

// build resolves t while holding c.mu.
func (c *Container) build(t reflect.Type, building map[reflect.Type]bool) (reflect.Value, error) {
	if v, ok := c.instanceFor(t); ok {
		return v, nil
	}

	b, registered, ok := c.bindingFor(t)
	if !ok {
		return reflect.Value{}, fmt.Errorf("di: %w for %v", ErrNoProvider, t)
	}
	// A singleton already built through another requested type.
	if v, ok := c.instances[registered]; ok {
		return v, nil
	}
	if building[registered] {
		return reflect.Value{}, fmt.Errorf("di: %w involving %v", ErrCyclicDependency, registered)
	}
	building[registered] = true
	defer delete(building, registered)

	ft := b.ctor.Type()
	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		val, err := c.build(ft.In(i), building)
		if err != nil {
			return reflect.Value{}, err
		}
		args[i] = val
	}

	outs := b.ctor.Call(args)
	if len(outs) == 2 && !outs[1].IsNil() {
		return reflect.Value{}, outs[1].Interface().(error)
	}

	val := outs[0]
	if b.singleton {
		c.instances[registered] = val
	}
	return val, nil
}

// instanceFor finds a cached instance, matching interfaces structurally.
func (c *Container) instanceFor(t reflect.Type) (reflect.Value, bool) {
	if v, ok := c.instances[t]; ok {
		return v, true
	}
	if t.Kind() == reflect.Interface {
		for it, v := range c.instances {
			if it.Implements(t) {
				return v, true
			}
		}
	}
	return reflect.Value{}, false
}

// bindingFor finds a constructor able to produce t, either registered for t
// directly or, for interfaces, registered for an implementing type.
func (c *Container) bindingFor(t reflect.Type) (binding, reflect.Type, bool) {
	if b, ok := c.bindings[t]; ok {
		return b, t, true
	}
	if t.Kind() == reflect.Interface {
		for bt, b := range c.bindings {
			if bt.Implements(t) {
				return b, bt, true
			}
		}
	}
	return binding{}, nil, false
}
