// Package daemon owns the lifecycle of a running registry: it wires the registry, health monitor, failover engine
// and alert dispatcher together, runs discovery and the health check loop, and serves the read-only API.
package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcpreg/internal/alert"
	"github.com/mozilla-ai/mcpreg/internal/failover"
	"github.com/mozilla-ai/mcpreg/internal/health"
	"github.com/mozilla-ai/mcpreg/internal/registry"
	"github.com/mozilla-ai/mcpreg/internal/telemetry"
)

// Daemon manages the registry and its collaborators.
// NewDaemon should be used to create instances of Daemon.
type Daemon struct {
	logger     hclog.Logger
	registry   *registry.Registry
	monitor    *health.Monitor
	engine     *failover.Engine
	dispatcher *alert.Dispatcher
	alerts     *alert.History
	apiServer  *APIServer
	telemetry  *telemetry.Provider

	discoveryInterval        time.Duration
	telemetryShutdownTimeout time.Duration

	shutdownOnce sync.Once
}

// NewDaemon builds every component in dependency order and connects them.
// Nothing is started until StartAndManage is called.
func NewDaemon(deps Dependencies, opt ...Option) (*Daemon, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid daemon dependencies: %w", err)
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid daemon options: %w", err)
	}

	logger := deps.Logger

	metrics := telemetry.NoopMetrics()
	if opts.Telemetry != nil {
		metrics, err = telemetry.NewMetrics(opts.Telemetry.Meter())
		if err != nil {
			return nil, fmt.Errorf("failed to create telemetry instruments: %w", err)
		}
	}

	reg, err := registry.NewRegistry(logger, deps.Probes, registry.WithDiscoverySources(deps.Sources...))
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	dispatcher, err := alert.NewDispatcher(
		logger,
		alert.WithTelemetry(metrics),
		alert.WithHandlerTimeout(opts.AlertHandlerTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert dispatcher: %w", err)
	}

	history, err := registerAlertHandlers(logger, dispatcher, opts)
	if err != nil {
		return nil, err
	}

	engine, err := failover.NewEngine(logger, reg, dispatcher, failover.WithTelemetry(metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create failover engine: %w", err)
	}

	// Telemetry is appended so it applies regardless of the caller's monitor options.
	monitorOpts := append(append([]health.Option{}, opts.MonitorOptions...), health.WithTelemetry(metrics))
	monitor, err := health.NewMonitor(logger, reg, engine, monitorOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create health monitor: %w", err)
	}

	reg.SetHealthReader(monitor)
	reg.AddObserver(monitor)
	reg.AddObserver(engine)

	apiDeps, err := NewAPIDependencies(logger, reg, monitor, history, opts.metricsHandler(), deps.APIAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid API dependencies: %w", err)
	}

	apiServer, err := NewAPIServer(apiDeps, opts.APIOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon API server: %w", err)
	}

	return &Daemon{
		logger:                   logger.Named("daemon"),
		registry:                 reg,
		monitor:                  monitor,
		engine:                   engine,
		dispatcher:               dispatcher,
		alerts:                   history,
		apiServer:                apiServer,
		telemetry:                opts.Telemetry,
		discoveryInterval:        opts.DiscoveryInterval,
		telemetryShutdownTimeout: opts.TelemetryShutdownTimeout,
	}, nil
}

// registerAlertHandlers adds the log and history handlers followed by any configured handlers.
func registerAlertHandlers(logger hclog.Logger, dispatcher *alert.Dispatcher, opts Options) (*alert.History, error) {
	logHandler, err := alert.NewLogHandler(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create log alert handler: %w", err)
	}
	if err := dispatcher.AddHandler("log", logHandler); err != nil {
		return nil, err
	}

	history, err := alert.NewHistory(opts.AlertHistorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert history: %w", err)
	}
	if err := dispatcher.AddHandler("history", history); err != nil {
		return nil, err
	}

	for _, h := range opts.AlertHandlers {
		if err := dispatcher.AddHandler(h.Name, h.Handler); err != nil {
			return nil, fmt.Errorf("failed to add alert handler '%s': %w", h.Name, err)
		}
	}

	return history, nil
}

// Registry exposes the daemon's registry.
func (d *Daemon) Registry() *registry.Registry {
	return d.registry
}

// Monitor exposes the daemon's health monitor.
func (d *Daemon) Monitor() *health.Monitor {
	return d.monitor
}

// Alerts exposes the alert history.
func (d *Daemon) Alerts() *alert.History {
	return d.alerts
}

// StartAndManage runs discovery, starts the health check loop and the API server,
// then blocks until the context is canceled or the API server fails.
// The daemon is shut down before returning in both cases.
func (d *Daemon) StartAndManage(ctx context.Context) error {
	defer d.Shutdown()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	added := d.registry.DiscoverServers(ctx)
	d.logger.Info("Registered servers", "count", len(added), "servers", added)

	d.monitor.Start(ctx)

	var wg sync.WaitGroup
	if d.discoveryInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.discoveryLoop(ctx)
		}()
	}
	// Background loops must stop before waiting on them, including when the API server fails to start.
	defer func() {
		cancel()
		wg.Wait()
	}()

	err := d.apiServer.Start(ctx)
	if err != nil && !stdErrors.Is(err, context.Canceled) && !stdErrors.Is(err, context.DeadlineExceeded) {
		d.logger.Error("API server failed", "error", err)
		return fmt.Errorf("API server failed: %w", err)
	}

	return nil
}

// discoveryLoop registers servers that appear in discovery sources after startup.
func (d *Daemon) discoveryLoop(ctx context.Context) {
	ticker := time.NewTicker(d.discoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if added := d.registry.DiscoverServers(ctx); len(added) > 0 {
				d.logger.Info("Registered newly discovered servers", "servers", added)
			}
		}
	}
}

// Shutdown stops the health check loop, marks every tracked server OFFLINE and flushes telemetry.
// It is safe to call more than once.
func (d *Daemon) Shutdown() {
	d.shutdownOnce.Do(func() {
		d.logger.Info("Shutting down daemon")
		d.monitor.Shutdown()

		if d.telemetry == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), d.telemetryShutdownTimeout)
		defer cancel()
		if err := d.telemetry.Shutdown(ctx); err != nil {
			d.logger.Warn("Failed to shut down telemetry provider", "error", err)
		}
	})
}
