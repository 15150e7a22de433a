// Package patcher applies debuggability to host results and launch requests.
//
// The patcher only ever sets bits: FlagDebuggable on an ApplicationInfo the
// host already produced, or DebugEnableJDWP in the runtime flags of a
// Process.start call. Whether a pair qualifies is left to the Checker.
package patcher

import (
	"errors"
	"fmt"

	"github.com/mrzor/appdebug/internal/pm"
)

// ErrBadArgument is returned when a host argument is missing or has an
// unexpected type.
var ErrBadArgument = errors.New("bad argument")

// Checker decides whether a package is debuggable for a user.
type Checker interface {
	IsDebuggable(pkg string, user int) bool
}

// Patcher sets debug bits for eligible packages.
type Patcher struct {
	checker Checker
}

// New creates a Patcher backed by checker.
func New(checker Checker) *Patcher {
	return &Patcher{checker: checker}
}

// Patch sets FlagDebuggable on info when (pkg, user) is eligible and
// reports whether it did. Other bits are left untouched.
func (p *Patcher) Patch(info *pm.ApplicationInfo, pkg string, user int) bool {
	if info == nil || pkg == "" {
		return false
	}
	if !p.checker.IsDebuggable(pkg, user) {
		return false
	}
	info.Flags |= pm.FlagDebuggable
	return true
}

// PatchPackage patches the ApplicationInfo of a single-package result.
func (p *Patcher) PatchPackage(pi *pm.PackageInfo, user int) bool {
	if pi == nil {
		return false
	}
	return p.Patch(pi.ApplicationInfo, pi.PackageName, user)
}

// PatchAll patches every element of a bulk result using each element's own
// package name and returns how many were patched.
func (p *Patcher) PatchAll(infos []*pm.ApplicationInfo, user int) int {
	n := 0
	for _, info := range infos {
		if info == nil {
			continue
		}
		if p.Patch(info, info.PackageName, user) {
			n++
		}
	}
	return n
}

// InjectLaunch ORs DebugEnableJDWP into the runtime flags of a Process.start
// argument list when the process is eligible. The process nice name is the
// package, the user is derived from the uid. The flags slot keeps its
// original integer type.
func (p *Patcher) InjectLaunch(args []any) (bool, error) {
	niceName, err := StringArg(args, pm.ArgNiceName)
	if err != nil {
		return false, err
	}
	uid, err := IntArg(args, pm.ArgUID)
	if err != nil {
		return false, err
	}
	if _, err := IntArg(args, pm.ArgRuntimeFlags); err != nil {
		return false, err
	}

	if !p.checker.IsDebuggable(niceName, pm.UserID(uid)) {
		return false, nil
	}

	switch v := args[pm.ArgRuntimeFlags].(type) {
	case int:
		args[pm.ArgRuntimeFlags] = v | pm.DebugEnableJDWP
	case int32:
		args[pm.ArgRuntimeFlags] = v | pm.DebugEnableJDWP
	case int64:
		args[pm.ArgRuntimeFlags] = v | pm.DebugEnableJDWP
	}
	return true, nil
}

// IntArg reads an integer argument of any signed width.
func IntArg(args []any, i int) (int, error) {
	if i < 0 || i >= len(args) {
		return 0, fmt.Errorf("%w: slot %d out of range (%d args)", ErrBadArgument, i, len(args))
	}
	switch v := args[i].(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: slot %d is %T, want integer", ErrBadArgument, i, args[i])
	}
}

// StringArg reads a string argument.
func StringArg(args []any, i int) (string, error) {
	if i < 0 || i >= len(args) {
		return "", fmt.Errorf("%w: slot %d out of range (%d args)", ErrBadArgument, i, len(args))
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: slot %d is %T, want string", ErrBadArgument, i, args[i])
	}
	return s, nil
}
