package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/mozilla-ai/mcpreg/internal/errors"
)

const (
	TriggerConsecutiveFailures TriggerCondition = "consecutive_failures"
	TriggerHealthScore         TriggerCondition = "health_score"
	TriggerErrorRate           TriggerCondition = "error_rate"
)

const (
	ActionSwitchPrimary  FailoverAction = "switch_primary"
	ActionRemoveFromPool FailoverAction = "remove_from_pool"
	ActionAlertOnly      FailoverAction = "alert_only"
)

// DefaultRuleCooldown is the cooldown applied by the default rule set.
const DefaultRuleCooldown = 5 * time.Minute

// TriggerCondition selects which part of a health report a FailoverRule inspects.
type TriggerCondition string

// FailoverAction is the corrective action executed when a FailoverRule triggers.
type FailoverAction string

// ParseTriggerCondition converts a string into a TriggerCondition, rejecting unknown values.
func ParseTriggerCondition(s string) (TriggerCondition, error) {
	t := TriggerCondition(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TriggerConsecutiveFailures, TriggerHealthScore, TriggerErrorRate:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown trigger condition '%s'", errors.ErrInvalidRule, s)
	}
}

// ParseFailoverAction converts a string into a FailoverAction, rejecting unknown values.
func ParseFailoverAction(s string) (FailoverAction, error) {
	a := FailoverAction(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionSwitchPrimary, ActionRemoveFromPool, ActionAlertOnly:
		return a, nil
	default:
		return "", fmt.Errorf("%w: unknown action '%s'", errors.ErrInvalidRule, s)
	}
}

// FailoverRule is an immutable rule definition.
// Mutable trigger state is held by the failover engine, keyed by server and rule index.
type FailoverRule struct {
	Trigger   TriggerCondition `json:"trigger"`
	Threshold float64          `json:"threshold"`
	Action    FailoverAction   `json:"action"`
	Cooldown  time.Duration    `json:"cooldown"`
}

// Validate returns an error wrapping errors.ErrInvalidRule when the rule cannot be evaluated.
func (r FailoverRule) Validate() error {
	if _, err := ParseTriggerCondition(string(r.Trigger)); err != nil {
		return err
	}
	if _, err := ParseFailoverAction(string(r.Action)); err != nil {
		return err
	}
	if r.Threshold < 0 {
		return fmt.Errorf("%w: threshold must not be negative, got %v", errors.ErrInvalidRule, r.Threshold)
	}
	if r.Trigger == TriggerHealthScore && r.Threshold > 1 {
		return fmt.Errorf("%w: health score threshold must be within [0, 1], got %v", errors.ErrInvalidRule, r.Threshold)
	}
	if r.Cooldown < 0 {
		return fmt.Errorf("%w: cooldown must not be negative, got %v", errors.ErrInvalidRule, r.Cooldown)
	}
	return nil
}

// Triggered reports whether the rule's condition holds for the given report.
func (r FailoverRule) Triggered(report ServerHealthReport) bool {
	switch r.Trigger {
	case TriggerConsecutiveFailures:
		return float64(report.ConsecutiveFailures) >= r.Threshold
	case TriggerHealthScore:
		return report.HealthScore < r.Threshold
	case TriggerErrorRate:
		v, ok := report.MetricValue(MetricErrorRate)
		return ok && v >= r.Threshold
	default:
		return false
	}
}

// String describes the rule's condition, used in alert messages.
func (r FailoverRule) String() string {
	switch r.Trigger {
	case TriggerConsecutiveFailures:
		return fmt.Sprintf("consecutive_failures >= %g", r.Threshold)
	case TriggerHealthScore:
		return fmt.Sprintf("health_score < %g", r.Threshold)
	case TriggerErrorRate:
		return fmt.Sprintf("error_rate >= %g%%", r.Threshold)
	default:
		return string(r.Trigger)
	}
}

// DefaultFailoverRules returns the rules attached to servers that declare none.
func DefaultFailoverRules() []FailoverRule {
	return []FailoverRule{
		{
			Trigger:   TriggerConsecutiveFailures,
			Threshold: 3,
			Action:    ActionSwitchPrimary,
			Cooldown:  DefaultRuleCooldown,
		},
		{
			Trigger:   TriggerHealthScore,
			Threshold: DegradedScoreThreshold,
			Action:    ActionAlertOnly,
			Cooldown:  DefaultRuleCooldown,
		},
		{
			Trigger:   TriggerErrorRate,
			Threshold: 50,
			Action:    ActionAlertOnly,
			Cooldown:  DefaultRuleCooldown,
		},
	}
}
