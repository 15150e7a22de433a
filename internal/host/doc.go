// Package host models the process that exposes hookable operations.
//
// A Registry holds named classes; each class declares zero or more methods,
// and several methods may share a name with different parameter lists
// (overloads). Every Method can carry before/after hooks:
//
//	caller ──→ Method.Invoke(args...)
//	              │
//	              ├──→ Hook.Before(param)   registration order, may rewrite param.Args
//	              │                         or call param.SetResult to skip the original
//	              ├──→ original Func(param.Args)
//	              └──→ Hook.After(param)    reverse order, may rewrite param.Result
//
// Hooks are snapshotted per call so registration can race with invocation.
// The package does not recover panics raised by hooks; callers that must
// never disturb the host guard their own callbacks.
package host
