package health

import (
	"context"
	stdErrors "errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeTargets struct {
	mu      sync.Mutex
	targets []contracts.Target
}

func (f *fakeTargets) set(targets ...contracts.Target) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = targets
}

func (f *fakeTargets) Targets() []contracts.Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]contracts.Target(nil), f.targets...)
}

type recordingEvaluator struct {
	mu      sync.Mutex
	reports []domain.ServerHealthReport
}

func (e *recordingEvaluator) Evaluate(_ context.Context, report domain.ServerHealthReport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reports = append(e.reports, report)
}

func (e *recordingEvaluator) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.reports)
}

type metricProbeFunc func(ctx context.Context, server domain.ServerDescriptor) (map[string]float64, error)

func (f metricProbeFunc) Collect(ctx context.Context, server domain.ServerDescriptor) (map[string]float64, error) {
	return f(ctx, server)
}

// scriptedProbe returns the next queued result on every call, repeating the last one.
type scriptedProbe struct {
	mu      sync.Mutex
	results []contracts.ProbeResult
}

func (p *scriptedProbe) push(results ...contracts.ProbeResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, results...)
}

func (p *scriptedProbe) Probe(context.Context, domain.ServerDescriptor) (contracts.ProbeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 0 {
		return contracts.ProbeResult{Healthy: true}, nil
	}
	r := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return r, nil
}

func healthy() contracts.ProbeResult { return contracts.ProbeResult{Healthy: true} }

func unhealthy() contracts.ProbeResult { return contracts.ProbeResult{Healthy: false, Message: "down"} }

func target(name string, probe contracts.HealthProbe) contracts.Target {
	return contracts.Target{
		Descriptor: domain.ServerDescriptor{Name: name, Transport: domain.TransportHTTP},
		Probe:      probe,
	}
}

func newTestMonitor(t *testing.T, targets contracts.TargetLister, opt ...Option) (*Monitor, *recordingEvaluator) {
	t.Helper()
	eval := &recordingEvaluator{}
	m, err := NewMonitor(hclog.NewNullLogger(), targets, eval, opt...)
	require.NoError(t, err)
	return m, eval
}

func TestNewMonitor(t *testing.T) {
	t.Parallel()

	targets := &fakeTargets{}
	eval := &recordingEvaluator{}

	tests := []struct {
		name      string
		logger    hclog.Logger
		targets   contracts.TargetLister
		evaluator contracts.Evaluator
		opts      []Option
		wantErr   string
	}{
		{name: "valid", logger: hclog.NewNullLogger(), targets: targets, evaluator: eval},
		{name: "nil logger", targets: targets, evaluator: eval, wantErr: "logger cannot be nil"},
		{name: "nil targets", logger: hclog.NewNullLogger(), evaluator: eval, wantErr: "target lister cannot be nil"},
		{name: "nil evaluator", logger: hclog.NewNullLogger(), targets: targets, wantErr: "evaluator cannot be nil"},
		{
			name:      "zero interval",
			logger:    hclog.NewNullLogger(),
			targets:   targets,
			evaluator: eval,
			opts:      []Option{WithCheckInterval(0)},
			wantErr:   "interval must be positive",
		},
		{
			name:      "negative timeout",
			logger:    hclog.NewNullLogger(),
			targets:   targets,
			evaluator: eval,
			opts:      []Option{WithCheckTimeout(-time.Second)},
			wantErr:   "timeout must be positive",
		},
		{
			name:      "zero concurrency",
			logger:    hclog.NewNullLogger(),
			targets:   targets,
			evaluator: eval,
			opts:      []Option{WithMaxConcurrentChecks(0)},
			wantErr:   "max concurrent checks must be positive",
		},
		{
			name:      "zero history",
			logger:    hclog.NewNullLogger(),
			targets:   targets,
			evaluator: eval,
			opts:      []Option{WithHistorySize(0)},
			wantErr:   "history size must be positive",
		},
		{
			name:      "negative offline retention",
			logger:    hclog.NewNullLogger(),
			targets:   targets,
			evaluator: eval,
			opts:      []Option{WithOfflineRetention(-1)},
			wantErr:   "offline retention cannot be negative",
		},
		{
			name:      "nil clock",
			logger:    hclog.NewNullLogger(),
			targets:   targets,
			evaluator: eval,
			opts:      []Option{WithClock(nil)},
			wantErr:   "clock cannot be nil",
		},
		{
			name:      "non-positive threshold",
			logger:    hclog.NewNullLogger(),
			targets:   targets,
			evaluator: eval,
			opts:      []Option{WithMetricThresholds(map[string]float64{domain.MetricMemoryUsage: 0})},
			wantErr:   "threshold for metric 'memory_usage' must be positive",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, err := NewMonitor(tc.logger, tc.targets, tc.evaluator, tc.opts...)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				require.Nil(t, m)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, m)
		})
	}
}

func TestMonitor_HealthyCheck(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	targets := &fakeTargets{}
	targets.set(target("a", &scriptedProbe{}))
	m, eval := newTestMonitor(t, targets, WithClock(clock))

	m.ServerRegistered("a")
	require.Equal(t, domain.HealthStatusRegistering, m.Status("a"))

	m.RunCycle(context.Background())

	r, err := m.Report("a")
	require.NoError(t, err)
	require.Equal(t, domain.HealthStatusHealthy, r.Status)
	require.Equal(t, 1.0, r.HealthScore)
	require.Zero(t, r.ConsecutiveFailures)
	require.Equal(t, 1, r.CheckCount)
	require.Zero(t, r.ErrorCount)
	require.NotNil(t, r.LastCheck)
	require.Equal(t, clock.Now(), *r.LastCheck)
	require.NotNil(t, r.LastSuccessful)
	require.NotNil(t, r.Latency)
	require.Contains(t, r.Metrics, domain.MetricResponseTime)
	require.NotContains(t, r.Metrics, domain.MetricErrorRate)

	require.Equal(t, 1, eval.count())
	require.Equal(t, r, eval.reports[0])
}

func TestMonitor_FailedChecks(t *testing.T) {
	t.Parallel()

	probe := &scriptedProbe{}
	probe.push(unhealthy())
	targets := &fakeTargets{}
	targets.set(target("a", probe))
	m, eval := newTestMonitor(t, targets)

	for i := 1; i <= 3; i++ {
		m.RunCycle(context.Background())

		r, err := m.Report("a")
		require.NoError(t, err)
		require.Equal(t, domain.HealthStatusUnhealthy, r.Status)
		require.Equal(t, 0.0, r.HealthScore)
		require.Equal(t, i, r.ConsecutiveFailures)
		require.Equal(t, i, r.ErrorCount)
		require.Equal(t, "down", r.LastError)
		require.Nil(t, r.LastSuccessful)
	}

	require.Equal(t, 3, eval.count())
	require.Equal(t, 3, eval.reports[2].ConsecutiveFailures)
}

func TestMonitor_ProbeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		probe   contracts.HealthProbe
		timeout time.Duration
		wantErr string
	}{
		{
			name: "probe error",
			probe: contracts.ProbeFunc(func(context.Context, domain.ServerDescriptor) (contracts.ProbeResult, error) {
				return contracts.ProbeResult{}, fmt.Errorf("connection refused")
			}),
			wantErr: "connection refused",
		},
		{
			name: "probe panic",
			probe: contracts.ProbeFunc(func(context.Context, domain.ServerDescriptor) (contracts.ProbeResult, error) {
				panic("boom")
			}),
			wantErr: "probe panicked: boom",
		},
		{
			name: "probe ignores context",
			probe: contracts.ProbeFunc(func(context.Context, domain.ServerDescriptor) (contracts.ProbeResult, error) {
				time.Sleep(time.Second)
				return contracts.ProbeResult{Healthy: true}, nil
			}),
			timeout: 20 * time.Millisecond,
			wantErr: "timed out after 20ms",
		},
		{
			name: "probe honors context",
			probe: contracts.ProbeFunc(func(ctx context.Context, _ domain.ServerDescriptor) (contracts.ProbeResult, error) {
				<-ctx.Done()
				return contracts.ProbeResult{}, ctx.Err()
			}),
			timeout: 20 * time.Millisecond,
			wantErr: "health check failed",
		},
		{
			name:    "no probe",
			probe:   nil,
			wantErr: "no probe for server 'a'",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			opts := []Option{}
			if tc.timeout > 0 {
				opts = append(opts, WithCheckTimeout(tc.timeout))
			}

			targets := &fakeTargets{}
			targets.set(target("a", tc.probe), target("b", &scriptedProbe{}))
			m, eval := newTestMonitor(t, targets, opts...)

			m.RunCycle(context.Background())

			r, err := m.Report("a")
			require.NoError(t, err)
			require.Equal(t, domain.HealthStatusUnhealthy, r.Status)
			require.Equal(t, 1, r.ConsecutiveFailures)
			require.Contains(t, r.LastError, tc.wantErr)

			// A failing server never affects the others.
			require.Equal(t, domain.HealthStatusHealthy, m.Status("b"))
			require.Equal(t, 2, eval.count())
		})
	}
}

func TestMonitor_DegradedKeepsFailureCount(t *testing.T) {
	t.Parallel()

	probe := &scriptedProbe{}
	probe.push(
		unhealthy(),
		unhealthy(),
		contracts.ProbeResult{Healthy: true, Metrics: map[string]float64{domain.MetricMemoryUsage: 95}},
		healthy(),
	)
	targets := &fakeTargets{}
	targets.set(target("a", probe))
	m, _ := newTestMonitor(t, targets)

	m.RunCycle(context.Background())
	m.RunCycle(context.Background())
	r, err := m.Report("a")
	require.NoError(t, err)
	require.Equal(t, 2, r.ConsecutiveFailures)

	m.RunCycle(context.Background())
	r, err = m.Report("a")
	require.NoError(t, err)
	require.Equal(t, domain.HealthStatusDegraded, r.Status)
	require.Equal(t, 0.5, r.HealthScore)
	require.Equal(t, 2, r.ConsecutiveFailures)
	require.False(t, r.Metrics[domain.MetricMemoryUsage].Healthy())
	require.NotNil(t, r.LastSuccessful)

	m.RunCycle(context.Background())
	r, err = m.Report("a")
	require.NoError(t, err)
	require.Equal(t, domain.HealthStatusHealthy, r.Status)
	require.Zero(t, r.ConsecutiveFailures)
}

func TestMonitor_ScoreAndFailureInvariants(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	var mu sync.Mutex
	next := healthy()
	probe := contracts.ProbeFunc(func(context.Context, domain.ServerDescriptor) (contracts.ProbeResult, error) {
		mu.Lock()
		defer mu.Unlock()
		return next, nil
	})

	targets := &fakeTargets{}
	targets.set(target("a", probe))
	m, _ := newTestMonitor(t, targets, WithHistorySize(10))

	prevFailures := 0
	for i := 0; i < 300; i++ {
		mu.Lock()
		next = contracts.ProbeResult{
			Healthy: rng.IntN(3) != 0,
			Metrics: map[string]float64{
				domain.MetricMemoryUsage:     rng.Float64() * 100,
				domain.MetricConnectionCount: rng.Float64() * 200,
			},
		}
		mu.Unlock()

		m.RunCycle(context.Background())

		r, err := m.Report("a")
		require.NoError(t, err)
		require.GreaterOrEqual(t, r.HealthScore, 0.0)
		require.LessOrEqual(t, r.HealthScore, 1.0)
		require.Equal(t, domain.StatusForScore(r.HealthScore), r.Status)

		switch r.Status {
		case domain.HealthStatusHealthy:
			require.Zero(t, r.ConsecutiveFailures)
		case domain.HealthStatusUnhealthy:
			require.Equal(t, prevFailures+1, r.ConsecutiveFailures)
		default:
			require.Equal(t, prevFailures, r.ConsecutiveFailures)
		}
		prevFailures = r.ConsecutiveFailures
	}
}

func TestMonitor_Uptime(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	probe := &scriptedProbe{}
	probe.push(healthy(), healthy(), unhealthy(), healthy())
	targets := &fakeTargets{}
	targets.set(target("a", probe))
	m, _ := newTestMonitor(t, targets, WithClock(clock))

	uptime := func() float64 {
		r, err := m.Report("a")
		require.NoError(t, err)
		return r.UptimeSeconds
	}

	m.RunCycle(context.Background())
	require.Zero(t, uptime())

	clock.Advance(30 * time.Second)
	m.RunCycle(context.Background())
	require.Equal(t, 30.0, uptime())

	clock.Advance(30 * time.Second)
	m.RunCycle(context.Background())
	require.Zero(t, uptime())

	clock.Advance(30 * time.Second)
	m.RunCycle(context.Background())
	require.Zero(t, uptime())
}

func TestMonitor_HistoryIsBounded(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	probe := &scriptedProbe{}
	probe.push(unhealthy(), healthy())
	targets := &fakeTargets{}
	targets.set(target("a", probe))
	m, _ := newTestMonitor(t, targets, WithClock(clock), WithHistorySize(3))

	start := clock.Now()
	for i := 0; i < 5; i++ {
		m.RunCycle(context.Background())
		clock.Advance(time.Second)
	}

	history, err := m.History("a")
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, start.Add(2*time.Second), history[0].Timestamp)
	require.Equal(t, start.Add(4*time.Second), history[2].Timestamp)
	for _, s := range history {
		require.False(t, s.Failed)
	}
	require.Equal(t, domain.HealthStatusHealthy, history[0].Status)
	require.Equal(t, domain.HealthStatusHealthy, history[2].Status)
}

func TestMonitor_ErrorRateFromPayload(t *testing.T) {
	t.Parallel()

	probe := &scriptedProbe{}
	probe.push(
		unhealthy(),
		unhealthy(),
		contracts.ProbeResult{Healthy: true, Metrics: map[string]float64{domain.MetricErrorRate: 25}},
		contracts.ProbeResult{Healthy: true, Metrics: map[string]float64{domain.MetricErrorRate: 2}},
	)
	targets := &fakeTargets{}
	targets.set(target("a", probe))
	m, _ := newTestMonitor(t, targets)

	m.RunCycle(context.Background())
	m.RunCycle(context.Background())

	// Failed checks do not count toward a reported error rate.
	m.RunCycle(context.Background())
	r, err := m.Report("a")
	require.NoError(t, err)
	require.Equal(t, 25.0, r.Metrics[domain.MetricErrorRate].Value)
	require.False(t, r.Metrics[domain.MetricErrorRate].Healthy())
	require.Equal(t, domain.HealthStatusDegraded, r.Status)

	m.RunCycle(context.Background())
	r, err = m.Report("a")
	require.NoError(t, err)
	require.Equal(t, 2.0, r.Metrics[domain.MetricErrorRate].Value)
	require.Equal(t, domain.HealthStatusHealthy, r.Status)
	require.Zero(t, r.ConsecutiveFailures)
}

func TestMonitor_MetricProbe(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	mp := metricProbeFunc(func(_ context.Context, server domain.ServerDescriptor) (map[string]float64, error) {
		calls.Add(1)
		if server.Name == "broken" {
			return nil, fmt.Errorf("no such process")
		}
		return map[string]float64{domain.MetricConnectionCount: 150, "unknown_metric": 1}, nil
	})

	probe := &scriptedProbe{}
	targets := &fakeTargets{}
	targets.set(target("a", probe), target("broken", probe))
	m, _ := newTestMonitor(t, targets, WithMetricProbe(mp))

	m.RunCycle(context.Background())
	require.Equal(t, int32(2), calls.Load())

	r, err := m.Report("a")
	require.NoError(t, err)
	require.Contains(t, r.Metrics, domain.MetricConnectionCount)
	require.NotContains(t, r.Metrics, "unknown_metric")
	require.False(t, r.Metrics[domain.MetricConnectionCount].Healthy())
	require.Equal(t, 0.5, r.HealthScore)
	require.Equal(t, domain.HealthStatusDegraded, r.Status)

	r, err = m.Report("broken")
	require.NoError(t, err)
	require.Equal(t, domain.HealthStatusHealthy, r.Status)
}

func TestMonitor_RegistrationLifecycle(t *testing.T) {
	t.Parallel()

	targets := &fakeTargets{}
	targets.set(target("a", &scriptedProbe{}))
	m, eval := newTestMonitor(t, targets)

	require.Equal(t, domain.HealthStatusUnknown, m.Status("a"))

	m.ServerRegistered("a")
	m.RunCycle(context.Background())
	require.Equal(t, domain.HealthStatusHealthy, m.Status("a"))

	// Re-registering a live server keeps its report.
	m.ServerRegistered("a")
	r, err := m.Report("a")
	require.NoError(t, err)
	require.Equal(t, 1, r.CheckCount)

	m.ServerUnregistered("a")
	require.Equal(t, domain.HealthStatusOffline, m.Status("a"))

	// A check racing with unregistration never leaves OFFLINE.
	m.RunCycle(context.Background())
	require.Equal(t, domain.HealthStatusOffline, m.Status("a"))
	require.Equal(t, 1, eval.count())

	history, err := m.History("a")
	require.NoError(t, err)
	require.Len(t, history, 1)

	m.ServerRegistered("a")
	r, err = m.Report("a")
	require.NoError(t, err)
	require.Equal(t, domain.HealthStatusRegistering, r.Status)
	require.Zero(t, r.CheckCount)

	m.ServerUnregistered("missing")
	require.Equal(t, domain.HealthStatusUnknown, m.Status("missing"))
}

func TestMonitor_OfflineRetention(t *testing.T) {
	t.Parallel()

	m, _ := newTestMonitor(t, &fakeTargets{}, WithOfflineRetention(2))

	names := []string{"a", "b", "c", "d"}
	for _, name := range names {
		m.ServerRegistered(name)
	}
	for _, name := range names[:3] {
		m.ServerUnregistered(name)
	}

	// Pruning happens between cycles.
	require.Equal(t, 4, m.GetHealthSummary().TotalServers)
	m.RunCycle(context.Background())

	require.Equal(t, domain.HealthStatusUnknown, m.Status("a"))
	require.Equal(t, domain.HealthStatusOffline, m.Status("b"))
	require.Equal(t, domain.HealthStatusOffline, m.Status("c"))
	require.Equal(t, domain.HealthStatusRegistering, m.Status("d"))
	require.Equal(t, 3, m.GetHealthSummary().TotalServers)

	// A server registered again no longer counts toward the limit.
	m.ServerRegistered("b")
	m.ServerUnregistered("d")
	m.RunCycle(context.Background())
	require.Equal(t, domain.HealthStatusRegistering, m.Status("b"))
	require.Equal(t, domain.HealthStatusOffline, m.Status("c"))
	require.Equal(t, domain.HealthStatusOffline, m.Status("d"))

	// Churn through many names keeps the tracked set bounded.
	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("churn-%d", i)
		m.ServerRegistered(name)
		m.ServerUnregistered(name)
		m.RunCycle(context.Background())
	}
	require.Equal(t, 3, m.GetHealthSummary().TotalServers)
	require.Equal(t, domain.HealthStatusRegistering, m.Status("b"))
}

func TestMonitor_Queries_NotTracked(t *testing.T) {
	t.Parallel()

	m, _ := newTestMonitor(t, &fakeTargets{})

	_, err := m.GetHealthScore("missing")
	require.True(t, stdErrors.Is(err, errors.ErrHealthNotTracked))

	_, err = m.Report("missing")
	require.True(t, stdErrors.Is(err, errors.ErrHealthNotTracked))

	_, err = m.History("missing")
	require.True(t, stdErrors.Is(err, errors.ErrHealthNotTracked))

	require.Empty(t, m.Reports())
}

func TestMonitor_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	probe := contracts.ProbeFunc(func(context.Context, domain.ServerDescriptor) (contracts.ProbeResult, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return contracts.ProbeResult{Healthy: true}, nil
	})

	targets := &fakeTargets{}
	var ts []contracts.Target
	for i := 0; i < 10; i++ {
		ts = append(ts, target(fmt.Sprintf("s%d", i), probe))
	}
	targets.set(ts...)
	m, eval := newTestMonitor(t, targets, WithMaxConcurrentChecks(2))

	m.RunCycle(context.Background())

	require.LessOrEqual(t, peak.Load(), int32(2))
	require.Equal(t, 10, eval.count())
}

func TestMonitor_RunCycle_CanceledContext(t *testing.T) {
	t.Parallel()

	targets := &fakeTargets{}
	targets.set(target("a", &scriptedProbe{}))
	m, eval := newTestMonitor(t, targets)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.RunCycle(ctx)

	require.Zero(t, eval.count())
}

func TestMonitor_StartStop(t *testing.T) {
	t.Parallel()

	targets := &fakeTargets{}
	targets.set(target("a", &scriptedProbe{}))
	m, eval := newTestMonitor(t, targets, WithCheckInterval(10*time.Millisecond))

	m.Start(context.Background())
	m.Start(context.Background())

	require.Eventually(t, func() bool { return eval.count() >= 2 }, 2*time.Second, 5*time.Millisecond)

	m.Stop()
	m.Stop()

	after := eval.count()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, after, eval.count())

	// Start after Stop does nothing.
	m.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, after, eval.count())
}

func TestMonitor_Shutdown(t *testing.T) {
	t.Parallel()

	targets := &fakeTargets{}
	targets.set(target("a", &scriptedProbe{}), target("b", &scriptedProbe{}))
	m, _ := newTestMonitor(t, targets)

	m.RunCycle(context.Background())
	m.Shutdown()
	m.Shutdown()

	for _, r := range m.Reports() {
		require.Equal(t, domain.HealthStatusOffline, r.Status)
	}
}

func TestMonitor_GetHealthSummary(t *testing.T) {
	t.Parallel()

	bad := &scriptedProbe{}
	bad.push(unhealthy())
	targets := &fakeTargets{}
	targets.set(target("a", &scriptedProbe{}), target("b", bad))
	m, _ := newTestMonitor(t, targets)

	m.ServerRegistered("c")
	m.RunCycle(context.Background())

	s := m.GetHealthSummary()
	require.Equal(t, 3, s.TotalServers)
	require.Equal(t, map[domain.HealthStatus]int{
		domain.HealthStatusHealthy:     1,
		domain.HealthStatusUnhealthy:   1,
		domain.HealthStatusRegistering: 1,
	}, s.ByStatus)
	require.Len(t, s.Servers, 3)
	require.Equal(t, "a", s.Servers[0].Name)
	require.Equal(t, 1.0, s.Servers[0].HealthScore)
	require.Equal(t, "b", s.Servers[1].Name)
	require.Equal(t, 1, s.Servers[1].ConsecutiveFailures)
	require.Equal(t, "c", s.Servers[2].Name)
	require.Nil(t, s.Servers[2].LastCheck)
}
