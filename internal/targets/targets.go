package targets

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned when a state change is not allowed.
var ErrInvalidTransition = errors.New("invalid target transition")

// ErrUnknownTarget is returned for names that were never added.
var ErrUnknownTarget = errors.New("unknown target")

// State is the lifecycle position of a target.
type State int

// Target states.
const (
	Unresolved State = iota
	Resolved
	Installed
	Failed
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case Installed:
		return "installed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Kind tells whether a target gets a before or an after callback.
type Kind int

// Callback kinds.
const (
	After Kind = iota
	Before
)

func (k Kind) String() string {
	if k == Before {
		return "before"
	}
	return "after"
}

// Target describes one hook point.
type Target struct {
	Name      string
	Class     string
	Method    string
	Kind      Kind
	State     State
	Signature string // set once resolved
	Err       error  // set when failed
}

// Table holds targets in insertion order.
type Table struct {
	mu      sync.RWMutex
	order   []string
	targets map[string]*Target
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		targets: make(map[string]*Target),
	}
}

// Add registers t as Unresolved. Adding an existing name is an error.
func (tb *Table) Add(t Target) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if _, ok := tb.targets[t.Name]; ok {
		return fmt.Errorf("target %q already added", t.Name)
	}
	t.State = Unresolved
	t.Signature = ""
	t.Err = nil
	tb.targets[t.Name] = &t
	tb.order = append(tb.order, t.Name)
	return nil
}

// MarkResolved records the chosen overload.
func (tb *Table) MarkResolved(name, signature string) error {
	return tb.transition(name, Unresolved, Resolved, func(t *Target) {
		t.Signature = signature
	})
}

// MarkInstalled records that the callback is bound.
func (tb *Table) MarkInstalled(name string) error {
	return tb.transition(name, Resolved, Installed, nil)
}

// MarkFailed records why a target could not be resolved.
func (tb *Table) MarkFailed(name string, cause error) error {
	return tb.transition(name, Unresolved, Failed, func(t *Target) {
		t.Err = cause
	})
}

func (tb *Table) transition(name string, from, to State, update func(*Target)) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	t, ok := tb.targets[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}
	if t.State != from {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, name, t.State, to)
	}
	t.State = to
	if update != nil {
		update(t)
	}
	return nil
}

// Get returns a copy of the named target.
func (tb *Table) Get(name string) (Target, bool) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	t, ok := tb.targets[name]
	if !ok {
		return Target{}, false
	}
	return *t, true
}

// All returns copies of every target in insertion order.
func (tb *Table) All() []Target {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	out := make([]Target, 0, len(tb.order))
	for _, name := range tb.order {
		out = append(out, *tb.targets[name])
	}
	return out
}

// Summary counts installed and failed targets.
func (tb *Table) Summary() (installed, failed int) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	for _, t := range tb.targets {
		switch t.State {
		case Installed:
			installed++
		case Failed:
			failed++
		}
	}
	return installed, failed
}
