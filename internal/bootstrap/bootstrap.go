// Package bootstrap installs every interception point into a host once.
//
// Installation order:
//
//  1. Find the package-query class. Without it nothing is installed.
//  2. For each target, resolve the richest overload and bind its callback.
//     A target that cannot be resolved is recorded as failed and skipped.
//  3. The legacy bulk query is only attempted on hosts older than the
//     configured cutoff.
//
// The resulting target table is the only state kept after bootstrap.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/mrzor/appdebug/internal/hooks"
	"github.com/mrzor/appdebug/internal/host"
	"github.com/mrzor/appdebug/internal/pm"
	"github.com/mrzor/appdebug/internal/resolver"
	"github.com/mrzor/appdebug/internal/targets"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrAlreadyInstalled is returned by every InstallAll after the first.
var ErrAlreadyInstalled = errors.New("hooks already installed")

// Target names.
const (
	TargetPackageInfo           = "package-info"
	TargetApplicationInfo       = "application-info"
	TargetInstalledApplications = "installed-applications"
	TargetLegacyInstalled       = "installed-applications-legacy"
	TargetProcessStart          = "process-start"
)

type binding struct {
	target targets.Target
	legacy bool
	hook   func(cb *hooks.Callbacks) host.Hook
}

func bindings() []binding {
	return []binding{
		{
			target: targets.Target{Name: TargetPackageInfo, Class: pm.ComputerEngineClass, Method: pm.MethodGetPackageInfo, Kind: targets.After},
			hook:   func(cb *hooks.Callbacks) host.Hook { return cb.PackageInfo(pm.GetPackageInfoUserArg) },
		},
		{
			target: targets.Target{Name: TargetApplicationInfo, Class: pm.ComputerEngineClass, Method: pm.MethodGetApplicationInfo, Kind: targets.After},
			hook:   func(cb *hooks.Callbacks) host.Hook { return cb.ApplicationInfo(pm.GetApplicationInfoUserArg) },
		},
		{
			target: targets.Target{Name: TargetInstalledApplications, Class: pm.ComputerEngineClass, Method: pm.MethodGetInstalledApplications, Kind: targets.After},
			hook:   func(cb *hooks.Callbacks) host.Hook { return cb.InstalledApplications(pm.GetInstalledApplicationsUserArg) },
		},
		{
			target: targets.Target{Name: TargetProcessStart, Class: pm.ProcessClass, Method: pm.MethodStart, Kind: targets.Before},
			hook:   func(cb *hooks.Callbacks) host.Hook { return cb.ProcessStart() },
		},
		{
			target: targets.Target{Name: TargetLegacyInstalled, Class: pm.ComputerEngineClass, Method: pm.MethodGetInstalledApplicationsListInternal, Kind: targets.After},
			legacy: true,
			hook:   func(cb *hooks.Callbacks) host.Hook { return cb.InstalledApplications(pm.ListInternalUserArg) },
		},
	}
}

// Coordinator runs the one-time installation.
type Coordinator struct {
	callbacks *hooks.Callbacks
	logger    zerolog.Logger
	tracer    trace.Tracer
	cutoff    int
	table     *targets.Table
	started   atomic.Bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for installation results.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithTracer sets the tracer used for installation spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = t }
}

// WithLegacyCutoff sets the first platform version on which the legacy bulk
// query is not hooked.
func WithLegacyCutoff(sdk int) Option {
	return func(c *Coordinator) { c.cutoff = sdk }
}

// New creates a Coordinator binding callbacks from cb.
func New(cb *hooks.Callbacks, opts ...Option) *Coordinator {
	c := &Coordinator{
		callbacks: cb,
		logger:    zerolog.Nop(),
		tracer:    noop.NewTracerProvider().Tracer("appdebug"),
		cutoff:    pm.SDKTiramisu,
		table:     targets.NewTable(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Targets returns the per-target outcome of installation.
func (c *Coordinator) Targets() *targets.Table { return c.table }

// InstallAll resolves and hooks every target on h. It returns an error only
// when installation could not start at all; individual target failures are
// logged and recorded in Targets.
func (c *Coordinator) InstallAll(ctx context.Context, h host.Host) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyInstalled
	}

	sdk := h.SDKInt()
	ctx, span := c.tracer.Start(ctx, "appdebug.install", trace.WithAttributes(
		attribute.Int("host.sdk_int", sdk),
	))
	defer span.End()

	var active []binding
	for _, b := range bindings() {
		if b.legacy && sdk >= c.cutoff {
			c.logger.Debug().Str("target", b.target.Name).Int("sdk", sdk).Msg("skipping legacy target")
			continue
		}
		if err := c.table.Add(b.target); err != nil {
			return err
		}
		active = append(active, b)
	}

	if _, err := h.FindClass(pm.ComputerEngineClass); err != nil {
		err = fmt.Errorf("resolving query class: %w", err)
		c.logger.Error().Err(err).Msg("cannot hook package queries")
		for _, b := range active {
			_ = c.table.MarkFailed(b.target.Name, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "query class not found")
		return err
	}

	for _, b := range active {
		c.install(ctx, h, b)
	}

	installed, failed := c.table.Summary()
	span.SetAttributes(
		attribute.Int("hooks.installed", installed),
		attribute.Int("hooks.failed", failed),
	)
	c.logger.Info().Int("installed", installed).Int("failed", failed).Msg("all methods hooked")
	return nil
}

func (c *Coordinator) install(ctx context.Context, h host.Host, b binding) {
	name := b.target.Name
	_, span := c.tracer.Start(ctx, "appdebug.hook", trace.WithAttributes(
		attribute.String("hook.target", name),
		attribute.String("hook.kind", b.target.Kind.String()),
	))
	defer span.End()

	m, err := c.resolve(h, b.target.Class, b.target.Method)
	if err != nil {
		_ = c.table.MarkFailed(name, err)
		c.logger.Warn().Err(err).Str("target", name).Msg("hook target not found")
		span.RecordError(err)
		span.SetStatus(codes.Error, "target not found")
		return
	}

	_ = c.table.MarkResolved(name, m.String())
	m.Hook(b.hook(c.callbacks))
	_ = c.table.MarkInstalled(name)

	span.SetAttributes(attribute.String("hook.method", m.String()))
	c.logger.Info().Str("target", name).Str("method", m.String()).Msg("hooked")
}

func (c *Coordinator) resolve(h host.Host, className, method string) (*host.Method, error) {
	cls, err := h.FindClass(className)
	if err != nil {
		return nil, err
	}
	return resolver.Resolve(cls, method)
}
