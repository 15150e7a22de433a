// Package guard compiles the optional eligibility guard expression.
//
// The guard is written in the expr language and sees two variables:
//
//	package  string  the package name being checked
//	user     int     the user id
//
// It must evaluate to a boolean. Examples:
//
//	user == 0
//	!(package startsWith "com.android.")
//	package in ["com.example.app", "com.example.tool"]
package guard

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Guard is a pre-compiled eligibility expression. The zero value and a nil
// *Guard allow everything.
type Guard struct {
	source  string
	program *vm.Program
}

// Compile type-checks source once. An empty source yields a guard that
// allows every pair.
func Compile(source string) (*Guard, error) {
	if source == "" {
		return &Guard{}, nil
	}

	exprEnv := map[string]interface{}{
		"package": "",
		"user":    0,
	}

	program, err := expr.Compile(source, expr.Env(exprEnv), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile guard %q: %w", source, err)
	}

	return &Guard{source: source, program: program}, nil
}

// Source returns the expression text.
func (g *Guard) Source() string {
	if g == nil {
		return ""
	}
	return g.source
}

// Allow evaluates the guard for (pkg, user).
func (g *Guard) Allow(pkg string, user int) (bool, error) {
	if g == nil || g.program == nil {
		return true, nil
	}

	env := map[string]interface{}{
		"package": pkg,
		"user":    user,
	}

	output, err := expr.Run(g.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluating guard %q: %w", g.source, err)
	}

	allowed, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("guard %q returned %T, want bool", g.source, output)
	}
	return allowed, nil
}
