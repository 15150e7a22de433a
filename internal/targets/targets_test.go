package targets

import (
	"errors"
	"fmt"
	"testing"
)

func TestTable_Lifecycle(t *testing.T) {
	tb := NewTable()
	if err := tb.Add(Target{Name: "start", Class: "android.os.Process", Method: "start", Kind: Before}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, ok := tb.Get("start")
	if !ok {
		t.Fatal("Get() returned false")
	}
	if got.State != Unresolved {
		t.Errorf("State = %v, want unresolved", got.State)
	}

	if err := tb.MarkResolved("start", "android.os.Process.start(String)"); err != nil {
		t.Fatalf("MarkResolved() error = %v", err)
	}
	if err := tb.MarkInstalled("start"); err != nil {
		t.Fatalf("MarkInstalled() error = %v", err)
	}

	got, _ = tb.Get("start")
	if got.State != Installed {
		t.Errorf("State = %v, want installed", got.State)
	}
	if got.Signature != "android.os.Process.start(String)" {
		t.Errorf("Signature = %q", got.Signature)
	}
}

func TestTable_Failed(t *testing.T) {
	tb := NewTable()
	_ = tb.Add(Target{Name: "legacy"})

	cause := errors.New("method not found")
	if err := tb.MarkFailed("legacy", cause); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	got, _ := tb.Get("legacy")
	if got.State != Failed || !errors.Is(got.Err, cause) {
		t.Errorf("got %v / %v, want failed / %v", got.State, got.Err, cause)
	}
}

func TestTable_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tb *Table)
		step  func(tb *Table) error
	}{
		{
			name:  "install before resolve",
			setup: func(*Table) {},
			step:  func(tb *Table) error { return tb.MarkInstalled("x") },
		},
		{
			name:  "resolve twice",
			setup: func(tb *Table) { _ = tb.MarkResolved("x", "sig") },
			step:  func(tb *Table) error { return tb.MarkResolved("x", "sig") },
		},
		{
			name: "fail after install",
			setup: func(tb *Table) {
				_ = tb.MarkResolved("x", "sig")
				_ = tb.MarkInstalled("x")
			},
			step: func(tb *Table) error { return tb.MarkFailed("x", errors.New("late")) },
		},
		{
			name:  "resolve after fail",
			setup: func(tb *Table) { _ = tb.MarkFailed("x", errors.New("gone")) },
			step:  func(tb *Table) error { return tb.MarkResolved("x", "sig") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := NewTable()
			_ = tb.Add(Target{Name: "x"})
			tt.setup(tb)

			err := tt.step(tb)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("error = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestTable_UnknownAndDuplicate(t *testing.T) {
	tb := NewTable()

	if err := tb.MarkResolved("nope", "sig"); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("error = %v, want ErrUnknownTarget", err)
	}
	if _, ok := tb.Get("nope"); ok {
		t.Error("Get() of unknown target should return false")
	}

	_ = tb.Add(Target{Name: "x"})
	if err := tb.Add(Target{Name: "x"}); err == nil {
		t.Error("duplicate Add() should fail")
	}
}

func TestTable_AllAndSummary(t *testing.T) {
	tb := NewTable()
	for _, name := range []string{"a", "b", "c", "d"} {
		_ = tb.Add(Target{Name: name})
	}
	_ = tb.MarkResolved("a", "sa")
	_ = tb.MarkInstalled("a")
	_ = tb.MarkResolved("c", "sc")
	_ = tb.MarkInstalled("c")
	_ = tb.MarkFailed("d", errors.New("missing"))

	all := tb.All()
	if len(all) != 4 {
		t.Fatalf("All() length = %d, want 4", len(all))
	}
	for i, name := range []string{"a", "b", "c", "d"} {
		if all[i].Name != name {
			t.Errorf("All()[%d] = %q, want %q", i, all[i].Name, name)
		}
	}

	installed, failed := tb.Summary()
	if installed != 2 || failed != 1 {
		t.Errorf("Summary() = %d, %d, want 2, 1", installed, failed)
	}
}

func TestTable_GetReturnsCopy(t *testing.T) {
	tb := NewTable()
	_ = tb.Add(Target{Name: "x"})

	got, _ := tb.Get("x")
	got.State = Installed

	again, _ := tb.Get("x")
	if again.State != Unresolved {
		t.Error("mutating a returned Target must not change the table")
	}
}

func TestStateAndKindString(t *testing.T) {
	if Installed.String() != "installed" || State(42).String() != "state(42)" {
		t.Error("unexpected State.String()")
	}
	if Before.String() != "before" || After.String() != "after" {
		t.Error("unexpected Kind.String()")
	}
}

func TestTable_Concurrent(_ *testing.T) {
	tb := NewTable()
	for i := 0; i < 100; i++ {
		_ = tb.Add(Target{Name: fmt.Sprintf("t%d", i)})
	}

	done := make(chan bool)
	go func() {
		for i := 0; i < 100; i++ {
			_ = tb.MarkResolved(fmt.Sprintf("t%d", i), "sig")
		}
		done <- true
	}()
	go func() {
		for i := 0; i < 100; i++ {
			_, _ = tb.Get(fmt.Sprintf("t%d", i))
			_ = tb.All()
		}
		done <- true
	}()
	<-done
	<-done
}
