// Package resolver picks the overload of a host method to intercept.
//
// Host versions grow trailing parameters on the same operation and keep the
// older overloads around as thin forwarders. The richest signature is the
// one every call site eventually reaches, so Resolve selects the candidate
// with the most parameters. Ties keep the first declared candidate.
package resolver

import (
	"errors"
	"fmt"

	"github.com/mrzor/appdebug/internal/host"
)

// ErrMethodNotFound is returned when a class declares no method with the requested name.
var ErrMethodNotFound = errors.New("method not found")

// Resolve returns the overload of name on cls with the greatest parameter count.
func Resolve(cls *host.Class, name string) (*host.Method, error) {
	var best *host.Method
	for _, m := range cls.DeclaredMethods() {
		if m.Name() != name {
			continue
		}
		if best == nil || m.ParamCount() > best.ParamCount() {
			best = m
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrMethodNotFound, cls.Name(), name)
	}
	return best, nil
}
