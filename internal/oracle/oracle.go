// Package oracle answers whether a (package, user) pair is marked debuggable.
//
// The answer is the existence of a marker file managed by an external
// process. Nothing is cached: every call stats the marker again, so creating
// or deleting a marker takes effect on the next query. Any failure reads as
// "not debuggable".
package oracle

import (
	"fmt"
	"runtime"

	"github.com/mrzor/appdebug/internal/guard"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ThreadPolicy controls the caller's ambient I/O restriction. Query paths in
// the host normally forbid disk access; the marker check lifts that for the
// duration of one stat.
//
// The policy may be thread-local. The oracle locks the calling goroutine to
// its OS thread from AllowDiskReads until restore has returned, so both run
// on the same thread.
type ThreadPolicy interface {
	// AllowDiskReads relaxes the restriction for the caller and returns a
	// function that restores the previous policy.
	AllowDiskReads() (restore func())
}

// NopPolicy is a ThreadPolicy for hosts without I/O restrictions.
type NopPolicy struct{}

// AllowDiskReads implements ThreadPolicy.
func (NopPolicy) AllowDiskReads() func() { return func() {} }

// Oracle checks debug markers.
type Oracle struct {
	fs     afero.Fs
	format string
	policy ThreadPolicy
	guard  *guard.Guard
	logger zerolog.Logger
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithPolicy sets the thread policy relaxed around each marker check.
func WithPolicy(p ThreadPolicy) Option {
	return func(o *Oracle) { o.policy = p }
}

// WithGuard sets an expression that must allow a pair before its marker is read.
func WithGuard(g *guard.Guard) Option {
	return func(o *Oracle) { o.guard = g }
}

// WithLogger sets the logger used for check failures.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Oracle) { o.logger = l }
}

// New creates an Oracle reading markers from fs. format receives the user
// id and the package name, in that order.
func New(fs afero.Fs, format string, opts ...Option) *Oracle {
	o := &Oracle{
		fs:     fs,
		format: format,
		policy: NopPolicy{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MarkerPath formats the marker location for (user, pkg).
func MarkerPath(format string, user int, pkg string) string {
	return fmt.Sprintf(format, user, pkg)
}

// MarkerPath returns the marker location this oracle reads for (pkg, user).
func (o *Oracle) MarkerPath(pkg string, user int) string {
	return MarkerPath(o.format, user, pkg)
}

// IsDebuggable reports whether the marker for (pkg, user) exists right now.
func (o *Oracle) IsDebuggable(pkg string, user int) bool {
	if pkg == "" {
		return false
	}

	allowed, err := o.guard.Allow(pkg, user)
	if err != nil {
		o.logger.Debug().Err(err).Str("package", pkg).Int("user", user).Msg("guard failed")
		return false
	}
	if !allowed {
		return false
	}

	path := o.MarkerPath(pkg, user)
	exists, err := o.markerExists(path)
	if err != nil {
		o.logger.Debug().Err(err).Str("path", path).Msg("marker check failed")
		return false
	}
	return exists
}

// markerExists stats path with disk reads allowed. The previous policy is
// restored on every exit, including a panic from the filesystem, and on the
// thread that relaxed it.
func (o *Oracle) markerExists(path string) (exists bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			exists = false
			err = fmt.Errorf("marker check panicked: %v", r)
		}
	}()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	restore := o.policy.AllowDiskReads()
	defer restore()

	return afero.Exists(o.fs, path)
}
