// Package batchflow provides a top-level convenience entry point for the
// dynamic batch-inference scheduler.
//
// Usage:
//
//	import "github.com/BaSui01/batchflow"
//
//	engine := batchflow.New(
//	    []client.Client{backend},
//	    batchflow.WithLogger(logger),
//	)
//	if err := engine.Start(); err != nil { ... }
//	handle, err := engine.Submit(ctx, "Hello", types.DefaultInferenceParams(), types.PriorityNormal)
//	text, err := handle.Wait(ctx)
//
// This is a thin wrapper around [scheduler.NewEngine] with default
// configuration; use the scheduler package directly for full control.
package batchflow

import (
	"github.com/BaSui01/batchflow/client"
	"github.com/BaSui01/batchflow/config"
	"github.com/BaSui01/batchflow/scheduler"
)

// Option configures the engine created by [New].
type Option = scheduler.Option

// WithLogger sets a custom zap logger.
var WithLogger = scheduler.WithLogger

// WithPrometheus enables Prometheus export under a metric namespace.
var WithPrometheus = scheduler.WithPrometheus

// WithTelemetry enables OpenTelemetry export for dispatch traces.
var WithTelemetry = scheduler.WithTelemetry

// New creates a scheduler engine with default configuration over the given
// backend clients.
func New(clients []client.Client, opts ...Option) *scheduler.Engine {
	return scheduler.NewEngine(config.DefaultSchedulerConfig(), clients, opts...)
}

// NewWithConfig creates a scheduler engine with explicit configuration.
func NewWithConfig(cfg config.SchedulerConfig, clients []client.Client, opts ...Option) *scheduler.Engine {
	return scheduler.NewEngine(cfg, clients, opts...)
}

// NewFromConfig creates a scheduler engine from a full configuration, as
// produced by [config.NewLoader]: the zap logger is built from cfg.Log and
// OpenTelemetry export is enabled when cfg.Telemetry.Enabled. Explicit
// options take precedence over the configured ones.
func NewFromConfig(cfg *config.Config, clients []client.Client, opts ...Option) *scheduler.Engine {
	base := []Option{scheduler.WithLogger(cfg.Log.BuildLogger())}
	if cfg.Telemetry.Enabled {
		base = append(base, scheduler.WithTelemetry(cfg.Telemetry))
	}
	return scheduler.NewEngine(cfg.Scheduler, clients, append(base, opts...)...)
}
