package host

// Param carries the state of one invocation through its hooks.
// It is owned by a single call and never shared between goroutines.
type Param struct {
	Method *Method
	// Args are the arguments the original will receive. Before hooks may
	// replace individual slots.
	Args   []any
	Result any
	Err    error

	returnEarly bool
}

// SetResult sets the call result. When called from a Before hook the
// wrapped function is skipped.
func (p *Param) SetResult(v any) {
	p.Result = v
	p.Err = nil
	p.returnEarly = true
}

// Hook is a before/after interception point for a Method.
type Hook interface {
	Before(p *Param)
	After(p *Param)
}

// HookFuncs adapts plain functions to Hook. Nil fields are skipped.
type HookFuncs struct {
	BeforeFn func(p *Param)
	AfterFn  func(p *Param)
}

// Before implements Hook.
func (h HookFuncs) Before(p *Param) {
	if h.BeforeFn != nil {
		h.BeforeFn(p)
	}
}

// After implements Hook.
func (h HookFuncs) After(p *Param) {
	if h.AfterFn != nil {
		h.AfterFn(p)
	}
}
