// Package hooks builds the callbacks bound to each intercepted host method.
//
// Every callback runs on whatever goroutine the host uses for the call and
// only touches that call's Param. A callback never lets a failure escape:
// errors and panics are logged and the call continues as if the callback
// were absent.
package hooks

import (
	"fmt"

	"github.com/mrzor/appdebug/internal/host"
	"github.com/mrzor/appdebug/internal/patcher"
	"github.com/mrzor/appdebug/internal/pm"
	"github.com/rs/zerolog"
)

// Callbacks creates host hooks that patch through a Patcher.
type Callbacks struct {
	patcher *patcher.Patcher
	logger  zerolog.Logger
}

// New creates the callback factory.
func New(p *patcher.Patcher, logger zerolog.Logger) *Callbacks {
	return &Callbacks{
		patcher: p,
		logger:  logger,
	}
}

// PackageInfo patches the result of a single-package query. userArg is the
// slot holding the user id.
func (c *Callbacks) PackageInfo(userArg int) host.Hook {
	return host.HookFuncs{AfterFn: c.guard(func(p *host.Param) error {
		if p.Err != nil || p.Result == nil {
			return nil
		}
		pi, ok := p.Result.(*pm.PackageInfo)
		if !ok {
			return fmt.Errorf("unexpected result type %T", p.Result)
		}
		if pi == nil || pi.ApplicationInfo == nil {
			return nil
		}
		user, err := patcher.IntArg(p.Args, userArg)
		if err != nil {
			return err
		}
		c.patcher.PatchPackage(pi, user)
		return nil
	})}
}

// ApplicationInfo patches the result of an application-info query using the
// result's own package name.
func (c *Callbacks) ApplicationInfo(userArg int) host.Hook {
	return host.HookFuncs{AfterFn: c.guard(func(p *host.Param) error {
		if p.Err != nil || p.Result == nil {
			return nil
		}
		info, ok := p.Result.(*pm.ApplicationInfo)
		if !ok {
			return fmt.Errorf("unexpected result type %T", p.Result)
		}
		if info == nil {
			return nil
		}
		user, err := patcher.IntArg(p.Args, userArg)
		if err != nil {
			return err
		}
		c.patcher.Patch(info, info.PackageName, user)
		return nil
	})}
}

// InstalledApplications patches every element of a bulk query result.
func (c *Callbacks) InstalledApplications(userArg int) host.Hook {
	return host.HookFuncs{AfterFn: c.guard(func(p *host.Param) error {
		if p.Err != nil || p.Result == nil {
			return nil
		}
		infos, ok := p.Result.([]*pm.ApplicationInfo)
		if !ok {
			return fmt.Errorf("unexpected result type %T", p.Result)
		}
		if len(infos) == 0 {
			return nil
		}
		user, err := patcher.IntArg(p.Args, userArg)
		if err != nil {
			return err
		}
		c.patcher.PatchAll(infos, user)
		return nil
	})}
}

// ProcessStart enables debugger attach on eligible process launches.
func (c *Callbacks) ProcessStart() host.Hook {
	return host.HookFuncs{BeforeFn: c.guard(func(p *host.Param) error {
		injected, err := c.patcher.InjectLaunch(p.Args)
		if err != nil {
			return err
		}
		if injected {
			c.logger.Debug().
				Interface("process", p.Args[pm.ArgNiceName]).
				Interface("uid", p.Args[pm.ArgUID]).
				Msg("enabled debugger attach")
		}
		return nil
	})}
}

// guard wraps fn so that errors and panics end at the callback boundary.
func (c *Callbacks) guard(fn func(p *host.Param) error) func(p *host.Param) {
	return func(p *host.Param) {
		defer func() {
			if r := recover(); r != nil {
				c.logFailure(p, fmt.Errorf("panic: %v", r))
			}
		}()

		if err := fn(p); err != nil {
			c.logFailure(p, err)
		}
	}
}

func (c *Callbacks) logFailure(p *host.Param, err error) {
	defer func() { _ = recover() }()

	method := "<unknown>"
	if p != nil && p.Method != nil {
		method = p.Method.String()
	}
	c.logger.Error().Err(err).Str("method", method).Msg("callback failed")
}
