// Package failover turns health observations into corrective actions.
//
// Every registered server carries an ordered list of immutable rules. The engine keeps the mutable
// part, the time each rule last fired, keyed by server name and rule index, so that a rule whose
// condition stays true does not fire again until its cooldown has elapsed.
package failover

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/errors"
)

var (
	_ contracts.Evaluator        = (*Engine)(nil)
	_ contracts.RegistryObserver = (*Engine)(nil)
)

type ruleKey struct {
	server string
	index  int
}

// Engine evaluates each server's failover rules after its health report is updated.
type Engine struct {
	logger   hclog.Logger
	registry contracts.PrimaryController
	alerts   contracts.AlertEmitter
	opts     options

	mu            sync.Mutex
	rules         map[string][]domain.FailoverRule
	lastTriggered map[ruleKey]time.Time
}

// NewEngine creates an Engine that acts on the registry and reports through alerts.
func NewEngine(
	logger hclog.Logger,
	registry contracts.PrimaryController,
	alerts contracts.AlertEmitter,
	opt ...Option,
) (*Engine, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if registry == nil || reflect.ValueOf(registry).IsNil() {
		return nil, fmt.Errorf("primary controller cannot be nil")
	}
	if alerts == nil || reflect.ValueOf(alerts).IsNil() {
		return nil, fmt.Errorf("alert emitter cannot be nil")
	}

	opts, err := getOpts(opt...)
	if err != nil {
		return nil, err
	}

	return &Engine{
		logger:        logger.Named("failover"),
		registry:      registry,
		alerts:        alerts,
		opts:          opts,
		rules:         make(map[string][]domain.FailoverRule),
		lastTriggered: make(map[ruleKey]time.Time),
	}, nil
}

// ServerRegistered loads the server's rules and clears any trigger state left from a previous registration.
func (e *Engine) ServerRegistered(name string) {
	desc, ok := e.registry.Server(name)
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearLocked(name)
	e.rules[name] = desc.EffectiveRules()
}

// ServerUnregistered drops the server's rules and trigger state.
func (e *Engine) ServerUnregistered(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearLocked(name)
	delete(e.rules, name)
}

// Rules returns a copy of the rules attached to the server.
func (e *Engine) Rules(name string) []domain.FailoverRule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.FailoverRule(nil), e.rules[name]...)
}

// Evaluate implements contracts.Evaluator.
// Rules are evaluated in order; a triggered rule outside its cooldown executes its action.
func (e *Engine) Evaluate(ctx context.Context, report domain.ServerHealthReport) {
	name := report.ServerName

	desc, ok := e.registry.Server(name)
	if !ok {
		e.logger.Debug("Skipping evaluation of unregistered server", "server", name)
		return
	}

	if desc.ServiceType != "" {
		e.registry.RepairPrimary(desc.ServiceType)
	}

	for i, rule := range e.rulesFor(desc) {
		if !e.claim(name, i, rule, report) {
			continue
		}
		e.logger.Info("Failover rule triggered", "server", name, "rule", rule.String(), "action", rule.Action)
		e.execute(ctx, name, rule, report)
	}
}

// rulesFor returns the server's rules, loading them when the server registered before the engine was observing.
func (e *Engine) rulesFor(desc domain.ServerDescriptor) []domain.FailoverRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	rules, ok := e.rules[desc.Name]
	if !ok {
		rules = desc.EffectiveRules()
		e.rules[desc.Name] = rules
	}
	return rules
}

// claim reports whether the rule should fire now, and if so records the trigger time.
func (e *Engine) claim(name string, index int, rule domain.FailoverRule, report domain.ServerHealthReport) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.opts.clock.Now()
	key := ruleKey{server: name, index: index}
	if last, ok := e.lastTriggered[key]; ok && now.Sub(last) < rule.Cooldown {
		return false
	}
	if !rule.Triggered(report) {
		return false
	}
	e.lastTriggered[key] = now
	return true
}

// LastTriggered returns when the server's rule at index last fired.
func (e *Engine) LastTriggered(name string, index int) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.lastTriggered[ruleKey{server: name, index: index}]
	return t, ok
}

func (e *Engine) execute(ctx context.Context, name string, rule domain.FailoverRule, report domain.ServerHealthReport) {
	switch rule.Action {
	case domain.ActionSwitchPrimary:
		e.switchPrimary(ctx, name, rule, report)
	case domain.ActionRemoveFromPool:
		e.removeFromPool(ctx, name, rule, report)
	case domain.ActionAlertOnly:
		e.opts.metrics.RecordFailoverAction(ctx, name, rule.Action, true)
		e.emit(ctx, name, domain.SeverityWarning, fmt.Sprintf(
			"Failover condition fired for server '%s': %s",
			name,
			observed(rule, report),
		))
	}
}

func (e *Engine) switchPrimary(ctx context.Context, name string, rule domain.FailoverRule, report domain.ServerHealthReport) {
	serviceTypes := e.registry.ServiceTypesWithPrimary(name)
	if len(serviceTypes) == 0 {
		e.logger.Debug("Server is not primary for any service type, nothing to switch", "server", name)
		return
	}

	for _, st := range serviceTypes {
		next, ok := e.registry.ElectPrimary(st, name)
		e.opts.metrics.RecordFailoverAction(ctx, name, rule.Action, ok)
		if !ok {
			err := fmt.Errorf("%w: no healthy candidate to replace '%s' as primary for '%s'", errors.ErrFailoverAction, name, st)
			e.logger.Error("Failed to switch primary", "server", name, "service_type", st, "error", err)
			e.emit(ctx, name, domain.SeverityCritical, fmt.Sprintf(
				"Primary '%s' for service type '%s' is failing (%s) and no healthy candidate is available; primary unchanged",
				name,
				st,
				observed(rule, report),
			))
			continue
		}

		e.logger.Info("Switched primary", "service_type", st, "old", name, "new", next)
		e.emit(ctx, name, domain.SeverityCritical, fmt.Sprintf(
			"Primary for service type '%s' switched from '%s' to '%s' (%s)",
			st,
			name,
			next,
			observed(rule, report),
		))
	}
}

func (e *Engine) removeFromPool(ctx context.Context, name string, rule domain.FailoverRule, report domain.ServerHealthReport) {
	removed := e.registry.RemoveFromPool(name)
	e.opts.metrics.RecordFailoverAction(ctx, name, rule.Action, removed)
	if !removed {
		e.logger.Error("Failed to remove server from pool", "server", name,
			"error", fmt.Errorf("%w: server '%s' is no longer registered", errors.ErrFailoverAction, name))
		return
	}

	e.logger.Info("Removed server from pool", "server", name)
	e.emit(ctx, name, domain.SeverityCritical, fmt.Sprintf(
		"Server '%s' removed from pool (%s)",
		name,
		observed(rule, report),
	))
}

func (e *Engine) emit(ctx context.Context, server string, severity domain.Severity, message string) {
	e.alerts.Emit(ctx, domain.AlertEvent{
		Timestamp:  e.opts.clock.Now(),
		ServerName: server,
		Severity:   severity,
		Message:    message,
	})
}

// clearLocked removes all trigger state for the server. Caller must hold the lock.
func (e *Engine) clearLocked(name string) {
	for key := range e.lastTriggered {
		if key.server == name {
			delete(e.lastTriggered, key)
		}
	}
}

// observed describes the rule together with the value that triggered it.
func observed(rule domain.FailoverRule, report domain.ServerHealthReport) string {
	switch rule.Trigger {
	case domain.TriggerConsecutiveFailures:
		return fmt.Sprintf("%s, observed %d", rule, report.ConsecutiveFailures)
	case domain.TriggerHealthScore:
		return fmt.Sprintf("%s, observed %.2f", rule, report.HealthScore)
	case domain.TriggerErrorRate:
		v, _ := report.MetricValue(domain.MetricErrorRate)
		return fmt.Sprintf("%s, observed %.1f%%", rule, v)
	default:
		return rule.String()
	}
}
