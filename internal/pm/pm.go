// Package pm describes the package-manager and process-launcher surface of
// the host: class and method names, argument layouts and flag bits. The
// values mirror the host's own conventions and must not be reinterpreted.
package pm

// Host classes that carry the intercepted operations.
const (
	ComputerEngineClass = "com.android.server.pm.ComputerEngine"
	ProcessClass        = "android.os.Process"
)

// Intercepted operation names.
const (
	MethodGetPackageInfo                       = "getPackageInfo"
	MethodGetApplicationInfo                   = "getApplicationInfo"
	MethodGetInstalledApplications             = "getInstalledApplications"
	MethodGetInstalledApplicationsListInternal = "getInstalledApplicationsListInternal"
	MethodStart                                = "start"
)

// Argument slot holding the user id for each package query.
const (
	GetPackageInfoUserArg           = 2
	GetApplicationInfoUserArg       = 2
	GetInstalledApplicationsUserArg = 1
	ListInternalUserArg             = 1
)

// Process.start argument layout.
const (
	ArgProcessClass = 0
	ArgNiceName     = 1
	ArgUID          = 2
	ArgGID          = 3
	ArgGIDs         = 4
	ArgRuntimeFlags = 5
)

// FlagDebuggable is ApplicationInfo.FLAG_DEBUGGABLE.
const FlagDebuggable = 1 << 1

// DebugEnableJDWP is the runtime flag that lets a debugger attach to a new
// process. Taken from Zygote.
const DebugEnableJDWP = 1

// PerUserRange is the size of the uid block assigned to each user.
const PerUserRange = 100000

// SDKTiramisu is the first platform version without a separate
// getInstalledApplicationsListInternal entry point.
const SDKTiramisu = 33

// ApplicationInfo is the host's descriptor of one installed package.
type ApplicationInfo struct {
	PackageName string
	UID         int
	Flags       int
}

// IsDebuggable reports whether FlagDebuggable is set.
func (a *ApplicationInfo) IsDebuggable() bool {
	return a != nil && a.Flags&FlagDebuggable != 0
}

// PackageInfo is the result of a single-package query.
type PackageInfo struct {
	PackageName     string
	ApplicationInfo *ApplicationInfo
}

// UserID maps a raw uid to the user it belongs to.
func UserID(uid int) int {
	return uid / PerUserRange
}
