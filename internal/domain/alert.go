package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Severity grades an AlertEvent.
type Severity string

// ParseSeverity converts a string into a Severity, rejecting unknown values.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	switch sev {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity '%s'", s)
	}
}

// Rank orders severities from least (0) to most severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return -1
	}
}

// AtLeast reports whether s is at least as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// AlertEvent is an ephemeral notification fanned out to alert handlers.
type AlertEvent struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	ServerName string    `json:"serverName"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
}
