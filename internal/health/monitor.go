// Package health decides, per registered server, whether it is usable right now.
//
// A Monitor periodically probes every server the registry lists, scores the result against fixed metric
// thresholds and hands each updated report to the failover engine.
// Reports move through UNKNOWN -> REGISTERING -> {HEALTHY, DEGRADED, UNHEALTHY} -> OFFLINE.
// OFFLINE is only reached through unregistration or shutdown, never through a check.
package health

import (
	"context"
	stdErrors "errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/errors"
)

var (
	_ contracts.HealthReader     = (*Monitor)(nil)
	_ contracts.RegistryObserver = (*Monitor)(nil)
)

// tracked is the monitor's state for a single server.
type tracked struct {
	report      domain.ServerHealthReport
	history     []domain.MetricsSnapshot
	streakStart *time.Time
}

// probeOutcome is the raw result of a single probe run.
type probeOutcome struct {
	result  contracts.ProbeResult
	latency time.Duration
	err     error
}

// Monitor owns the health reports of all registered servers.
// It is safe for concurrent use by multiple goroutines.
type Monitor struct {
	logger    hclog.Logger
	targets   contracts.TargetLister
	evaluator contracts.Evaluator
	opts      options

	mu      sync.RWMutex
	servers map[string]*tracked
	offline []string // unregistered servers, oldest first

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewMonitor creates a Monitor that checks the targets listed by targets and passes each updated report to evaluator.
func NewMonitor(
	logger hclog.Logger,
	targets contracts.TargetLister,
	evaluator contracts.Evaluator,
	opt ...Option,
) (*Monitor, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if targets == nil || reflect.ValueOf(targets).IsNil() {
		return nil, fmt.Errorf("target lister cannot be nil")
	}
	if evaluator == nil || reflect.ValueOf(evaluator).IsNil() {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}

	opts, err := getOpts(opt...)
	if err != nil {
		return nil, err
	}

	return &Monitor{
		logger:    logger.Named("health"),
		targets:   targets,
		evaluator: evaluator,
		opts:      opts,
		servers:   make(map[string]*tracked),
	}, nil
}

// ServerRegistered starts tracking the server in the REGISTERING state.
// A server that is already tracked and not OFFLINE keeps its report.
func (m *Monitor) ServerRegistered(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.servers[name]; ok && t.report.Status != domain.HealthStatusOffline {
		return
	}
	m.offline = slices.DeleteFunc(m.offline, func(n string) bool { return n == name })
	m.servers[name] = newTracked(name)
}

// ServerUnregistered marks the server OFFLINE. Its last report and history stay queryable
// until more than the configured number of servers have gone OFFLINE after it.
func (m *Monitor) ServerUnregistered(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.servers[name]
	if !ok || t.report.Status == domain.HealthStatusOffline {
		return
	}
	t.report.Status = domain.HealthStatusOffline
	t.streakStart = nil
	t.report.UptimeSeconds = 0
	m.offline = append(m.offline, name)
}

// pruneOffline forgets the oldest OFFLINE reports beyond the retention limit.
// It runs between cycles so that no in-flight check can re-track a forgotten server.
func (m *Monitor) pruneOffline() {
	m.mu.Lock()
	defer m.mu.Unlock()

	over := len(m.offline) - m.opts.retainOffline
	if over <= 0 {
		return
	}
	dropped := slices.Clone(m.offline[:over])
	for _, name := range dropped {
		delete(m.servers, name)
	}
	m.offline = slices.Delete(m.offline, 0, over)
	m.logger.Debug("Dropped reports of unregistered servers", "servers", dropped)
}

// Start launches the background check loop. The first cycle runs immediately.
// Calling Start more than once, or after Stop, does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.started || m.stopped {
		return
	}
	m.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.healthCheckLoop(loopCtx, m.done)
}

// Stop cancels the background loop and waits for it to exit.
// In-flight probes are allowed to finish or time out. Stop is idempotent.
func (m *Monitor) Stop() {
	m.lifecycleMu.Lock()
	if m.stopped {
		m.lifecycleMu.Unlock()
		return
	}
	m.stopped = true
	cancel, done := m.cancel, m.done
	m.lifecycleMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Shutdown stops the loop and marks every tracked server OFFLINE.
func (m *Monitor) Shutdown() {
	m.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.servers {
		t.report.Status = domain.HealthStatusOffline
		t.streakStart = nil
		t.report.UptimeSeconds = 0
	}
	m.logger.Info("Health monitor shut down", "servers", len(m.servers))
}

func (m *Monitor) healthCheckLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.opts.interval)
	defer ticker.Stop()

	m.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Stopping health checks")
			return
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}

// RunCycle checks every registered server once, concurrently, bounded by the configured limit.
// Each server's failover rules are evaluated right after its own report is updated.
// It returns once every launched check has completed.
func (m *Monitor) RunCycle(ctx context.Context) {
	m.pruneOffline()

	targets := m.targets.Targets()
	if len(targets) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(m.opts.maxConcurrent)

	for _, t := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			m.checkServer(ctx, t)
			return nil
		})
	}

	_ = g.Wait()
	m.logger.Debug("Health check cycle complete", "servers", len(targets))
}

// checkServer runs one check of a single server and hands the updated report to the evaluator.
func (m *Monitor) checkServer(ctx context.Context, target contracts.Target) {
	name := target.Descriptor.Name

	outcome := m.runProbe(ctx, target)
	failed := outcome.err != nil || !outcome.result.Healthy

	var extra map[string]float64
	if !failed {
		extra = maps.Clone(outcome.result.Metrics)
		if collected := m.collectMetrics(ctx, target.Descriptor); len(collected) > 0 {
			if extra == nil {
				extra = make(map[string]float64, len(collected))
			}
			maps.Copy(extra, collected)
		}
	}

	report, prev, ok := m.record(name, outcome, failed, extra)
	if !ok {
		m.logger.Debug("Discarded check result for offline server", "server", name)
		return
	}

	m.opts.metrics.RecordCheck(ctx, name, report.Status, report.HealthScore, outcome.latency, failed)

	switch {
	case failed:
		m.logger.Warn("Health check failed", "server", name, "error", report.LastError, "failures", report.ConsecutiveFailures)
	default:
		m.logger.Debug("Health check complete", "server", name, "score", report.HealthScore)
	}
	if prev != report.Status {
		m.logger.Info("Server health changed", "server", name, "from", prev, "to", report.Status)
	}

	m.evaluator.Evaluate(ctx, report)
}

// runProbe runs the target's probe under the check timeout, recovering from panics.
// The probe is not cancelled when ctx is, only when the timeout elapses.
func (m *Monitor) runProbe(ctx context.Context, target contracts.Target) probeOutcome {
	if target.Probe == nil {
		return probeOutcome{err: fmt.Errorf("%w: no probe for server '%s'", errors.ErrHealthCheck, target.Descriptor.Name)}
	}

	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.timeout)
	defer cancel()

	resCh := make(chan probeOutcome, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- probeOutcome{err: fmt.Errorf("%w: probe panicked: %v", errors.ErrHealthCheck, r)}
			}
		}()
		res, err := target.Probe.Probe(probeCtx, target.Descriptor)
		if err != nil && !stdErrors.Is(err, errors.ErrHealthCheck) {
			err = fmt.Errorf("%w: %w", errors.ErrHealthCheck, err)
		}
		resCh <- probeOutcome{result: res, err: err}
	}()

	select {
	case out := <-resCh:
		out.latency = time.Since(start)
		return out
	case <-probeCtx.Done():
		return probeOutcome{
			latency: time.Since(start),
			err:     fmt.Errorf("%w: timed out after %s", errors.ErrHealthCheck, m.opts.timeout),
		}
	}
}

// collectMetrics asks the metric probe, if any, for additional measurements. Failures are ignored.
func (m *Monitor) collectMetrics(ctx context.Context, server domain.ServerDescriptor) map[string]float64 {
	if m.opts.metricProbe == nil {
		return nil
	}

	collectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.timeout)
	defer cancel()

	values, err := m.opts.metricProbe.Collect(collectCtx, server)
	if err != nil {
		m.logger.Debug("Metric collection failed", "server", server.Name, "error", err)
		return nil
	}
	return values
}

// record applies a check outcome to the server's report and returns a copy of the result and the previous status.
// It returns false when the server is not tracked or is OFFLINE.
func (m *Monitor) record(
	name string,
	outcome probeOutcome,
	failed bool,
	extra map[string]float64,
) (domain.ServerHealthReport, domain.HealthStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.servers[name]
	if !ok {
		// Servers registered before the monitor was observing the registry are tracked on first check.
		t = newTracked(name)
		m.servers[name] = t
	}
	if t.report.Status == domain.HealthStatusOffline {
		return domain.ServerHealthReport{}, "", false
	}

	now := m.opts.clock.Now()
	prev := t.report.Status

	t.history = append(t.history, domain.MetricsSnapshot{Timestamp: now, Failed: failed})
	if over := len(t.history) - m.opts.historySize; over > 0 {
		t.history = slices.Delete(t.history, 0, over)
	}

	metrics := buildMetrics(outcome.latency, extra, m.opts.thresholds)

	var score float64
	if !failed {
		score = healthScore(metrics)
	}
	status := domain.StatusForScore(score)

	r := &t.report
	r.Status = status
	r.HealthScore = score
	r.Metrics = metrics
	r.CheckCount++
	r.LastCheck = &now
	latency := outcome.latency
	r.Latency = &latency

	switch status {
	case domain.HealthStatusHealthy:
		r.ConsecutiveFailures = 0
	case domain.HealthStatusUnhealthy:
		r.ConsecutiveFailures++
	}

	if failed {
		r.ErrorCount++
		if outcome.err != nil {
			r.LastError = outcome.err.Error()
		} else {
			r.LastError = outcome.result.Message
		}
	} else {
		r.LastSuccessful = &now
	}

	switch {
	case status == domain.HealthStatusUnhealthy:
		t.streakStart = nil
		r.UptimeSeconds = 0
	case t.streakStart == nil && status == domain.HealthStatusHealthy:
		t.streakStart = &now
		r.UptimeSeconds = 0
	case t.streakStart != nil:
		r.UptimeSeconds = now.Sub(*t.streakStart).Seconds()
	}

	last := &t.history[len(t.history)-1]
	last.Status = status
	last.HealthScore = score
	last.Metrics = maps.Clone(metrics)

	return r.Clone(), prev, true
}

// Status implements contracts.HealthReader.
func (m *Monitor) Status(name string) domain.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.servers[name]
	if !ok {
		return domain.HealthStatusUnknown
	}
	return t.report.Status
}

// GetHealthScore returns the last computed health score of the server.
func (m *Monitor) GetHealthScore(name string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.servers[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", errors.ErrHealthNotTracked, name)
	}
	return t.report.HealthScore, nil
}

// Report returns a copy of the server's health report.
func (m *Monitor) Report(name string) (domain.ServerHealthReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.servers[name]
	if !ok {
		return domain.ServerHealthReport{}, fmt.Errorf("%w: %s", errors.ErrHealthNotTracked, name)
	}
	return t.report.Clone(), nil
}

// Reports returns copies of every tracked report, sorted by server name.
func (m *Monitor) Reports() []domain.ServerHealthReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.ServerHealthReport, 0, len(m.servers))
	for _, name := range slices.Sorted(maps.Keys(m.servers)) {
		out = append(out, m.servers[name].report.Clone())
	}
	return out
}

// History returns a copy of the server's rolling metrics history, oldest first.
func (m *Monitor) History(name string) ([]domain.MetricsSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.servers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrHealthNotTracked, name)
	}

	out := make([]domain.MetricsSnapshot, len(t.history))
	for i, s := range t.history {
		s.Metrics = maps.Clone(s.Metrics)
		out[i] = s
	}
	return out, nil
}

func newTracked(name string) *tracked {
	return &tracked{
		report: domain.ServerHealthReport{
			ServerName: name,
			Status:     domain.HealthStatusRegistering,
			Metrics:    map[string]domain.HealthMetric{},
		},
	}
}
