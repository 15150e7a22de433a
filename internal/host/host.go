package host

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrClassNotFound is returned by FindClass when no class has the requested name.
var ErrClassNotFound = errors.New("class not found")

// Host is the view of the host process that the interception engine needs.
type Host interface {
	// FindClass returns the class registered under name.
	FindClass(name string) (*Class, error)
	// SDKInt reports the host platform version.
	SDKInt() int
}

// Func is the function a Method wraps.
type Func func(args []any) (any, error)

// Registry is an in-process Host backed by a load-time table of classes.
type Registry struct {
	mu      sync.RWMutex
	sdkInt  int
	classes map[string]*Class
}

// NewRegistry creates an empty registry reporting the given platform version.
func NewRegistry(sdkInt int) *Registry {
	return &Registry{
		sdkInt:  sdkInt,
		classes: make(map[string]*Class),
	}
}

// SDKInt implements Host.
func (r *Registry) SDKInt() int { return r.sdkInt }

// Define returns the class called name, creating it if needed.
func (r *Registry) Define(name string) *Class {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.classes[name]; ok {
		return c
	}
	c := &Class{name: name}
	r.classes[name] = c
	return c
}

// FindClass implements Host.
func (r *Registry) FindClass(name string) (*Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.classes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	return c, nil
}

// Class is a named set of declared methods.
type Class struct {
	name    string
	mu      sync.RWMutex
	methods []*Method
}

// Name returns the fully qualified class name.
func (c *Class) Name() string { return c.name }

// Declare adds a method overload. params lists the declared parameter types
// and only its length matters for dispatch.
func (c *Class) Declare(name string, params []string, fn Func) *Method {
	m := &Method{
		class:  c,
		name:   name,
		params: append([]string(nil), params...),
		fn:     fn,
	}

	c.mu.Lock()
	c.methods = append(c.methods, m)
	c.mu.Unlock()
	return m
}

// DeclaredMethods returns every method in declaration order.
func (c *Class) DeclaredMethods() []*Method {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Method(nil), c.methods...)
}

// Method is a single overload of a named operation.
type Method struct {
	class  *Class
	name   string
	params []string
	fn     Func

	mu    sync.RWMutex
	hooks []*hookEntry
}

type hookEntry struct {
	hook Hook
}

// Unhook removes a previously installed hook.
type Unhook func()

// Name returns the method name.
func (m *Method) Name() string { return m.name }

// Class returns the declaring class.
func (m *Method) Class() *Class { return m.class }

// ParamCount returns the number of declared parameters.
func (m *Method) ParamCount() int { return len(m.params) }

// String renders the method as Class.name(p1,p2).
func (m *Method) String() string {
	return fmt.Sprintf("%s.%s(%s)", m.class.name, m.name, strings.Join(m.params, ","))
}

// Hook installs h on this exact overload.
func (m *Method) Hook(h Hook) Unhook {
	e := &hookEntry{hook: h}

	m.mu.Lock()
	m.hooks = append(m.hooks, e)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, existing := range m.hooks {
			if existing == e {
				m.hooks = append(m.hooks[:i:i], m.hooks[i+1:]...)
				return
			}
		}
	}
}

// HookCount returns the number of installed hooks.
func (m *Method) HookCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hooks)
}

// Invoke calls the method through its hooks.
func (m *Method) Invoke(args ...any) (any, error) {
	m.mu.RLock()
	hooks := make([]*hookEntry, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.RUnlock()

	p := &Param{
		Method: m,
		Args:   append([]any(nil), args...),
	}

	for _, e := range hooks {
		e.hook.Before(p)
	}

	if !p.returnEarly && m.fn != nil {
		p.Result, p.Err = m.fn(p.Args)
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i].hook.After(p)
	}

	return p.Result, p.Err
}
