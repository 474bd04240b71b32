package alert

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
)

var (
	_ contracts.AlertHandler = (*LogHandler)(nil)
	_ contracts.AlertHandler = (*History)(nil)
)

// LogHandler writes alerts to a logger, at a level matching their severity.
type LogHandler struct {
	logger hclog.Logger
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(logger hclog.Logger) (*LogHandler, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &LogHandler{logger: logger.Named("alerts")}, nil
}

// Handle implements contracts.AlertHandler.
func (h *LogHandler) Handle(_ context.Context, event domain.AlertEvent) error {
	args := []any{"id", event.ID, "server", event.ServerName, "severity", event.Severity}

	switch event.Severity {
	case domain.SeverityCritical:
		h.logger.Error(event.Message, args...)
	case domain.SeverityWarning:
		h.logger.Warn(event.Message, args...)
	default:
		h.logger.Info(event.Message, args...)
	}
	return nil
}

// DefaultHistorySize is the default number of alerts retained by a History.
func DefaultHistorySize() int {
	return 200
}

// History retains the most recent alerts, oldest first.
type History struct {
	mu     sync.RWMutex
	size   int
	events []domain.AlertEvent
}

// NewHistory creates a History holding at most size events.
func NewHistory(size int) (*History, error) {
	if size <= 0 {
		return nil, fmt.Errorf("alert history size must be positive, got %d", size)
	}
	return &History{size: size}, nil
}

// Handle implements contracts.AlertHandler.
func (h *History) Handle(_ context.Context, event domain.AlertEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, event)
	if over := len(h.events) - h.size; over > 0 {
		h.events = slices.Delete(h.events, 0, over)
	}
	return nil
}

// Events returns a copy of the retained alerts, oldest first.
func (h *History) Events() []domain.AlertEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.events)
}

// Filter returns the retained alerts at or above the given severity, optionally for a single server.
func (h *History) Filter(server string, min domain.Severity) []domain.AlertEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []domain.AlertEvent
	for _, e := range h.events {
		if server != "" && e.ServerName != server {
			continue
		}
		if !e.Severity.AtLeast(min) {
			continue
		}
		out = append(out, e)
	}
	return out
}
