// appdebug inspects debug markers and dry-runs the interception engine
// against a simulated host.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mrzor/appdebug/internal/config"
	"github.com/mrzor/appdebug/internal/engine"
	"github.com/mrzor/appdebug/internal/logging"
	"github.com/mrzor/appdebug/internal/otel"
	"github.com/mrzor/appdebug/internal/pm"
	"github.com/mrzor/appdebug/internal/resolver"
	"github.com/mrzor/appdebug/internal/simhost"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Version information injected by GoReleaser at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	markerFormat string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "appdebug",
		Short:         "Per-user package debuggability override",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.markerFormat, "marker-format", "", "marker path format (user id, package name)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(newCheckCmd(opts), newSimulateCmd(opts))
	return cmd
}

// loadConfig reads the environment and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.markerFormat != "" {
		cfg.MarkerPathFormat = o.markerFormat
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	var user, uid int
	cmd := &cobra.Command{
		Use:   "check <package>",
		Short: "Show the marker path and whether a package is debuggable for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("uid") {
				user = pm.UserID(uid)
			}

			logger := logging.New(cfg.Logging())
			e, err := engine.New(cfg, engine.Deps{FS: afero.NewOsFs(), Logger: &logger})
			if err != nil {
				return err
			}
			return printCheck(cmd.OutOrStdout(), e, args[0], user)
		},
	}
	cmd.Flags().IntVar(&user, "user", 0, "user id")
	cmd.Flags().IntVar(&uid, "uid", 0, "raw uid, mapped to its user id")
	cmd.MarkFlagsMutuallyExclusive("user", "uid")
	return cmd
}

func printCheck(w io.Writer, e *engine.Engine, pkg string, user int) error {
	o := e.Oracle()
	_, err := fmt.Fprintf(w, "package:    %s\nuser:       %d\nmarker:     %s\ndebuggable: %t\n",
		pkg, user, o.MarkerPath(pkg, user), o.IsDebuggable(pkg, user))
	return err
}

type simulateOptions struct {
	sdk    int
	pkg    string
	user   int
	flags  int
	marked bool
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Install the hooks into a simulated host and run one query and one launch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			return runSimulation(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}
	cmd.Flags().IntVar(&opts.sdk, "sdk", 34, "simulated platform version")
	cmd.Flags().StringVar(&opts.pkg, "package", "com.example.app", "package to install and query")
	cmd.Flags().IntVar(&opts.user, "user", 0, "user id the package is installed for")
	cmd.Flags().IntVar(&opts.flags, "flags", 0, "application flags reported by the host")
	cmd.Flags().BoolVar(&opts.marked, "marked", true, "create the debug marker before querying")
	return cmd
}

func runSimulation(ctx context.Context, w io.Writer, cfg *config.Config, opts *simulateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.New(cfg.Logging())

	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return err
	}
	provider, err := otel.InitProvider(otelCfg, version, logger)
	if err != nil {
		return err
	}
	defer shutdownProvider(provider, logger)

	h := simhost.New(opts.sdk)
	h.InstallPackage(opts.user, opts.pkg, opts.flags)

	e, err := engine.New(cfg, engine.Deps{
		FS:     h.FS(),
		Policy: h.Policy(),
		Logger: &logger,
		Tracer: provider.Tracer("appdebug"),
	})
	if err != nil {
		return err
	}
	if err := e.Install(ctx, h); err != nil {
		return err
	}

	if opts.marked {
		if err := afero.WriteFile(h.FS(), e.Oracle().MarkerPath(opts.pkg, opts.user), nil, 0o600); err != nil {
			return fmt.Errorf("creating marker: %w", err)
		}
	}

	fmt.Fprintf(w, "sdk %d\n", opts.sdk)
	for _, t := range e.Targets().All() {
		detail := t.Signature
		if t.Err != nil {
			detail = t.Err.Error()
		}
		fmt.Fprintf(w, "  %-30s %-6s %-10s %s\n", t.Name, t.Kind, t.State, detail)
	}

	cls, err := h.FindClass(pm.ComputerEngineClass)
	if err != nil {
		return err
	}
	query, err := resolver.Resolve(cls, pm.MethodGetPackageInfo)
	if err != nil {
		return err
	}
	res, err := query.Invoke(opts.pkg, int64(0), opts.user)
	if err != nil {
		return err
	}
	if pi, ok := res.(*pm.PackageInfo); ok && pi != nil {
		fmt.Fprintf(w, "getPackageInfo(%s, user %d): flags %#x -> %#x\n",
			opts.pkg, opts.user, opts.flags, pi.ApplicationInfo.Flags)
	}

	proc, err := h.FindClass(pm.ProcessClass)
	if err != nil {
		return err
	}
	start, err := resolver.Resolve(proc, pm.MethodStart)
	if err != nil {
		return err
	}
	uid := h.UID(opts.user, opts.pkg)
	args := make([]any, start.ParamCount())
	args[pm.ArgProcessClass] = "android.app.ActivityThread"
	args[pm.ArgNiceName] = opts.pkg
	args[pm.ArgUID] = uid
	args[pm.ArgGID] = uid
	args[pm.ArgGIDs] = []int{}
	args[pm.ArgRuntimeFlags] = 0
	if _, err := start.Invoke(args...); err != nil {
		return err
	}
	for _, l := range h.Launches() {
		fmt.Fprintf(w, "Process.start(%s, uid %d): runtime flags %#x\n", l.NiceName, l.UID, l.RuntimeFlags)
	}
	return nil
}

func shutdownProvider(p *otel.Provider, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutting down OTEL provider")
	}
}
