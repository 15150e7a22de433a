// Package simhost provides an in-memory host with the package-manager and
// process-launcher classes, for tests and dry runs.
//
// The overload sets follow the platform version the host is created with:
// every query has an older, shorter overload next to the full one, and the
// legacy bulk query only exists below SDKTiramisu. Queries return fresh
// descriptors on every call, the way the real host builds them from its
// package settings.
package simhost

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mrzor/appdebug/internal/host"
	"github.com/mrzor/appdebug/internal/pm"
	"github.com/spf13/afero"
)

// Launch records one Process.start call as the launcher received it.
type Launch struct {
	NiceName     string
	UID          int
	RuntimeFlags int
}

// ProcessStartResult is returned by the simulated Process.start.
type ProcessStartResult struct {
	PID          int
	RuntimeFlags int
}

type options struct {
	omitClasses map[string]bool
	omitMethods map[string]bool
}

// Option configures the simulated host.
type Option func(*options)

// WithoutClass leaves a class out of the registry.
func WithoutClass(name string) Option {
	return func(o *options) { o.omitClasses[name] = true }
}

// WithoutMethod leaves every overload of class.method out of the registry.
func WithoutMethod(class, method string) Option {
	return func(o *options) { o.omitMethods[class+"."+method] = true }
}

// Host is a simulated host process.
type Host struct {
	*host.Registry

	policy *Policy
	fs     afero.Fs

	mu       sync.RWMutex
	apps     map[int]map[string]pm.ApplicationInfo
	launches []Launch
	nextPID  int
}

// New builds a host reporting sdkInt.
func New(sdkInt int, opts ...Option) *Host {
	o := &options{
		omitClasses: make(map[string]bool),
		omitMethods: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}

	policy := &Policy{}
	h := &Host{
		Registry: host.NewRegistry(sdkInt),
		policy:   policy,
		fs:       &policedFs{Fs: afero.NewMemMapFs(), policy: policy},
		apps:     make(map[int]map[string]pm.ApplicationInfo),
		nextPID:  1000,
	}

	declare := func(class, method string, params []string, fn host.Func) {
		if o.omitClasses[class] || o.omitMethods[class+"."+method] {
			return
		}
		h.Define(class).Declare(method, params, fn)
	}

	declare(pm.ComputerEngineClass, pm.MethodGetPackageInfo, []string{"String", "long"}, func(args []any) (any, error) {
		return h.packageInfo(args[0], 0)
	})
	declare(pm.ComputerEngineClass, pm.MethodGetPackageInfo, []string{"String", "long", "int"}, func(args []any) (any, error) {
		return h.packageInfo(args[0], args[2])
	})
	declare(pm.ComputerEngineClass, pm.MethodGetApplicationInfo, []string{"String", "long"}, func(args []any) (any, error) {
		return h.applicationInfo(args[0], 0)
	})
	declare(pm.ComputerEngineClass, pm.MethodGetApplicationInfo, []string{"String", "long", "int"}, func(args []any) (any, error) {
		return h.applicationInfo(args[0], args[2])
	})
	declare(pm.ComputerEngineClass, pm.MethodGetInstalledApplications, []string{"long", "int"}, func(args []any) (any, error) {
		return h.installed(args[1])
	})
	declare(pm.ComputerEngineClass, pm.MethodGetInstalledApplications, []string{"long", "int", "int"}, func(args []any) (any, error) {
		return h.installed(args[1])
	})
	if sdkInt < pm.SDKTiramisu {
		declare(pm.ComputerEngineClass, pm.MethodGetInstalledApplicationsListInternal, []string{"long", "int", "int"}, func(args []any) (any, error) {
			return h.installed(args[1])
		})
	}

	declare(pm.ProcessClass, pm.MethodStart, []string{"String", "String", "int", "int", "int[]", "int"}, h.start)
	declare(pm.ProcessClass, pm.MethodStart, []string{
		"String", "String", "int", "int", "int[]", "int", "int", "int", "String", "String",
		"String", "String", "String", "String", "int", "boolean",
	}, h.start)
	declare(pm.ProcessClass, "myUid", nil, func([]any) (any, error) { return 1000, nil })

	return h
}

// FS returns the filesystem markers live on. Stats issued while no disk-read
// relaxation is active are counted as policy violations.
func (h *Host) FS() afero.Fs { return h.fs }

// Policy returns the host's I/O policy.
func (h *Host) Policy() *Policy { return h.policy }

// InstallPackage adds a package for user with the given flags.
func (h *Host) InstallPackage(user int, pkg string, flags int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.apps[user] == nil {
		h.apps[user] = make(map[string]pm.ApplicationInfo)
	}
	h.apps[user][pkg] = pm.ApplicationInfo{
		PackageName: pkg,
		UID:         user*pm.PerUserRange + 10000 + len(h.apps[user]),
		Flags:       flags,
	}
}

// UID returns the uid assigned to pkg for user, or -1.
func (h *Host) UID(user int, pkg string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	info, ok := h.apps[user][pkg]
	if !ok {
		return -1
	}
	return info.UID
}

// Launches returns the launch requests the launcher received.
func (h *Host) Launches() []Launch {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Launch(nil), h.launches...)
}

func (h *Host) lookup(pkgArg, userArg any) (pm.ApplicationInfo, bool, error) {
	pkg, ok := pkgArg.(string)
	if !ok {
		return pm.ApplicationInfo{}, false, fmt.Errorf("package name is %T", pkgArg)
	}
	user, ok := userArg.(int)
	if !ok {
		return pm.ApplicationInfo{}, false, fmt.Errorf("user id is %T", userArg)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	info, found := h.apps[user][pkg]
	return info, found, nil
}

func (h *Host) packageInfo(pkgArg, userArg any) (any, error) {
	info, found, err := h.lookup(pkgArg, userArg)
	if err != nil || !found {
		return nil, err
	}
	return &pm.PackageInfo{
		PackageName:     info.PackageName,
		ApplicationInfo: &info,
	}, nil
}

func (h *Host) applicationInfo(pkgArg, userArg any) (any, error) {
	info, found, err := h.lookup(pkgArg, userArg)
	if err != nil || !found {
		return nil, err
	}
	return &info, nil
}

func (h *Host) installed(userArg any) (any, error) {
	user, ok := userArg.(int)
	if !ok {
		return nil, fmt.Errorf("user id is %T", userArg)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.apps[user]))
	for name := range h.apps[user] {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*pm.ApplicationInfo, 0, len(names))
	for _, name := range names {
		info := h.apps[user][name]
		out = append(out, &info)
	}
	return out, nil
}

func (h *Host) start(args []any) (any, error) {
	niceName, _ := args[pm.ArgNiceName].(string)
	uid, _ := args[pm.ArgUID].(int)
	flags, ok := args[pm.ArgRuntimeFlags].(int)
	if !ok {
		return nil, fmt.Errorf("runtime flags are %T", args[pm.ArgRuntimeFlags])
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.launches = append(h.launches, Launch{NiceName: niceName, UID: uid, RuntimeFlags: flags})
	h.nextPID++
	return &ProcessStartResult{PID: h.nextPID, RuntimeFlags: flags}, nil
}

// Policy is the host's disk-read restriction. Relaxations nest; Active
// reports how many are currently open.
type Policy struct {
	active     atomic.Int32
	relaxed    atomic.Int64
	violations atomic.Int64
}

// AllowDiskReads lifts the restriction until the returned func is called.
func (p *Policy) AllowDiskReads() func() {
	p.active.Add(1)
	p.relaxed.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { p.active.Add(-1) })
	}
}

// Active returns the number of open relaxations.
func (p *Policy) Active() int { return int(p.active.Load()) }

// Relaxed returns how many relaxations were ever opened.
func (p *Policy) Relaxed() int64 { return p.relaxed.Load() }

// Violations returns how many disk reads happened with no relaxation open.
func (p *Policy) Violations() int64 { return p.violations.Load() }

type policedFs struct {
	afero.Fs
	policy *Policy
}

func (f *policedFs) Stat(name string) (os.FileInfo, error) {
	if f.policy.Active() == 0 {
		f.policy.violations.Add(1)
	}
	return f.Fs.Stat(name)
}
