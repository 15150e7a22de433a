// Package engine wires configuration, oracle, patcher, callbacks and the
// bootstrap coordinator into one installable unit.
//
// Load is the entry point a host calls once when it loads the module. It
// reads the configuration from the environment and reads markers from the
// real filesystem. New is for callers that supply their own dependencies.
package engine

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mrzor/appdebug/internal/bootstrap"
	"github.com/mrzor/appdebug/internal/config"
	"github.com/mrzor/appdebug/internal/guard"
	"github.com/mrzor/appdebug/internal/hooks"
	"github.com/mrzor/appdebug/internal/host"
	"github.com/mrzor/appdebug/internal/logging"
	"github.com/mrzor/appdebug/internal/oracle"
	"github.com/mrzor/appdebug/internal/patcher"
	"github.com/mrzor/appdebug/internal/targets"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Deps are the collaborators supplied by the host.
type Deps struct {
	// FS holds the marker files. Defaults to the OS filesystem.
	FS afero.Fs
	// Policy is relaxed around each marker read. Defaults to oracle.NopPolicy.
	Policy oracle.ThreadPolicy
	// Logger defaults to an asynchronous logger built from the configuration
	// and writing to LogOutput. Engine.Close flushes it.
	Logger *zerolog.Logger
	// LogOutput receives the default logger's lines. Defaults to os.Stderr.
	LogOutput io.Writer
	// Tracer defaults to a no-op tracer.
	Tracer trace.Tracer
}

// Engine is a configured interception engine.
type Engine struct {
	oracle      *oracle.Oracle
	coordinator *bootstrap.Coordinator
	logger      zerolog.Logger
	logCloser   io.Closer
}

// New builds an engine from cfg and deps.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g, err := guard.Compile(cfg.Guard)
	if err != nil {
		return nil, err
	}

	if deps.FS == nil {
		deps.FS = afero.NewOsFs()
	}
	if deps.Policy == nil {
		deps.Policy = oracle.NopPolicy{}
	}
	var (
		logger    zerolog.Logger
		logCloser io.Closer
	)
	if deps.Logger != nil {
		logger = *deps.Logger
	} else {
		lc := cfg.Logging()
		if deps.LogOutput != nil {
			lc.Output = deps.LogOutput
		}
		// Callbacks log on the host's query threads, which must never wait
		// on a slow sink.
		logger, logCloser = logging.NewAsync(lc)
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("appdebug")
	}

	o := oracle.New(deps.FS, cfg.MarkerPathFormat,
		oracle.WithPolicy(deps.Policy),
		oracle.WithGuard(g),
		oracle.WithLogger(logger),
	)
	cb := hooks.New(patcher.New(o), logger)
	coord := bootstrap.New(cb,
		bootstrap.WithLogger(logger),
		bootstrap.WithTracer(deps.Tracer),
		bootstrap.WithLegacyCutoff(cfg.LegacyCutoffSDK),
	)

	return &Engine{
		oracle:      o,
		coordinator: coord,
		logger:      logger,
		logCloser:   logCloser,
	}, nil
}

// Close flushes and stops the logger the engine built for itself. Hooks stay
// installed; their log lines are dropped afterwards.
func (e *Engine) Close() error {
	if e.logCloser == nil {
		return nil
	}
	return e.logCloser.Close()
}

// Install hooks every target on h. See bootstrap.Coordinator.InstallAll.
func (e *Engine) Install(ctx context.Context, h host.Host) error {
	return e.coordinator.InstallAll(ctx, h)
}

// Oracle returns the engine's eligibility oracle.
func (e *Engine) Oracle() *oracle.Oracle { return e.oracle }

// Targets returns the per-target installation outcome.
func (e *Engine) Targets() *targets.Table { return e.coordinator.Targets() }

var (
	loadOnce sync.Once
	loaded   *Engine
)

// Load configures the engine from the environment and installs it into h.
// Only the first call in a process does anything; later calls return
// bootstrap.ErrAlreadyInstalled.
func Load(ctx context.Context, h host.Host, policy oracle.ThreadPolicy) (*Engine, error) {
	err := bootstrap.ErrAlreadyInstalled
	loadOnce.Do(func() {
		var cfg *config.Config
		cfg, err = config.Load()
		if err != nil {
			err = fmt.Errorf("loading config: %w", err)
			return
		}
		var e *Engine
		e, err = New(cfg, Deps{Policy: policy})
		if err != nil {
			return
		}
		loaded = e
		err = e.Install(ctx, h)
	})
	return loaded, err
}
