package host

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_FindClass(t *testing.T) {
	r := NewRegistry(33)
	c := r.Define("a.B")

	got, err := r.FindClass("a.B")
	require.NoError(t, err)
	assert.Same(t, c, got)
	assert.Same(t, c, r.Define("a.B"), "Define should return the existing class")
	assert.Equal(t, 33, r.SDKInt())
}

func TestRegistry_FindClassMissing(t *testing.T) {
	r := NewRegistry(33)

	_, err := r.FindClass("missing.Class")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClassNotFound))
	assert.Contains(t, err.Error(), "missing.Class")
}

func TestMethod_String(t *testing.T) {
	c := NewRegistry(0).Define("pkg.Engine")
	m := c.Declare("get", []string{"String", "int"}, nil)

	assert.Equal(t, "pkg.Engine.get(String,int)", m.String())
	assert.Equal(t, 2, m.ParamCount())
	assert.Same(t, c, m.Class())
}

func TestMethod_InvokeWithoutHooks(t *testing.T) {
	c := NewRegistry(0).Define("pkg.Engine")
	m := c.Declare("sum", []string{"int", "int"}, func(args []any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	})

	got, err := m.Invoke(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestMethod_BeforeRewritesArgs(t *testing.T) {
	c := NewRegistry(0).Define("pkg.Engine")
	m := c.Declare("echo", []string{"int"}, func(args []any) (any, error) {
		return args[0], nil
	})
	m.Hook(HookFuncs{BeforeFn: func(p *Param) { p.Args[0] = p.Args[0].(int) | 1 }})

	got, err := m.Invoke(4)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestMethod_CallerArgsNotAliased(t *testing.T) {
	c := NewRegistry(0).Define("pkg.Engine")
	m := c.Declare("echo", []string{"int"}, func(args []any) (any, error) { return args[0], nil })
	m.Hook(HookFuncs{BeforeFn: func(p *Param) { p.Args[0] = 99 }})

	args := []any{1}
	_, _ = m.Invoke(args...)
	assert.Equal(t, 1, args[0])
}

func TestMethod_AfterSeesResult(t *testing.T) {
	c := NewRegistry(0).Define("pkg.Engine")
	m := c.Declare("name", nil, func([]any) (any, error) { return "orig", nil })
	m.Hook(HookFuncs{AfterFn: func(p *Param) {
		p.Result = p.Result.(string) + "+after"
	}})

	got, err := m.Invoke()
	require.NoError(t, err)
	assert.Equal(t, "orig+after", got)
}

func TestMethod_SetResultSkipsOriginal(t *testing.T) {
	called := false
	c := NewRegistry(0).Define("pkg.Engine")
	m := c.Declare("name", nil, func([]any) (any, error) {
		called = true
		return "orig", nil
	})
	m.Hook(HookFuncs{BeforeFn: func(p *Param) { p.SetResult("short") }})

	got, err := m.Invoke()
	require.NoError(t, err)
	assert.Equal(t, "short", got)
	assert.False(t, called)
}

func TestMethod_HookOrder(t *testing.T) {
	var order []string
	c := NewRegistry(0).Define("pkg.Engine")
	m := c.Declare("run", nil, func([]any) (any, error) {
		order = append(order, "orig")
		return nil, nil
	})
	for _, name := range []string{"a", "b"} {
		n := name
		m.Hook(HookFuncs{
			BeforeFn: func(*Param) { order = append(order, "before-"+n) },
			AfterFn:  func(*Param) { order = append(order, "after-"+n) },
		})
	}

	_, _ = m.Invoke()
	assert.Equal(t, []string{"before-a", "before-b", "orig", "after-b", "after-a"}, order)
}

func TestMethod_Unhook(t *testing.T) {
	c := NewRegistry(0).Define("pkg.Engine")
	m := c.Declare("run", nil, func([]any) (any, error) { return 1, nil })
	unhook := m.Hook(HookFuncs{AfterFn: func(p *Param) { p.Result = 2 }})
	require.Equal(t, 1, m.HookCount())

	unhook()
	assert.Equal(t, 0, m.HookCount())

	got, _ := m.Invoke()
	assert.Equal(t, 1, got)
}

func TestClass_DeclaredMethodsOrder(t *testing.T) {
	c := NewRegistry(0).Define("pkg.Engine")
	a := c.Declare("get", []string{"int"}, nil)
	b := c.Declare("put", nil, nil)
	d := c.Declare("get", []string{"int", "int"}, nil)

	assert.Equal(t, []*Method{a, b, d}, c.DeclaredMethods())
}

func TestMethod_ConcurrentInvokeAndHook(_ *testing.T) {
	c := NewRegistry(0).Define("pkg.Engine")
	m := c.Declare("run", []string{"int"}, func(args []any) (any, error) { return args[0], nil })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = m.Invoke(j)
			}
		}()
		go func() {
			defer wg.Done()
			unhook := m.Hook(HookFuncs{})
			unhook()
		}()
	}
	wg.Wait()
}
