// Package alert fans alert events out to registered handlers.
//
// Handlers are isolated from each other: an error or panic in one handler is logged and counted,
// and never prevents the remaining handlers from running.
package alert

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/errors"
	"github.com/mozilla-ai/mcpreg/internal/telemetry"
)

var _ contracts.AlertEmitter = (*Dispatcher)(nil)

// Option configures a Dispatcher.
type Option func(*options) error

type options struct {
	clock          contracts.Clock
	metrics        *telemetry.Metrics
	handlerTimeout time.Duration
}

// DefaultHandlerTimeout is the default bound on a single handler invocation.
func DefaultHandlerTimeout() time.Duration {
	return 10 * time.Second
}

func getOpts(opts ...Option) (options, error) {
	opt := options{
		clock:          contracts.SystemClock(),
		handlerTimeout: DefaultHandlerTimeout(),
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(&opt); err != nil {
			return options{}, err
		}
	}
	return opt, nil
}

// WithClock sets the clock used to timestamp events that carry no timestamp.
func WithClock(clock contracts.Clock) Option {
	return func(o *options) error {
		if clock == nil || reflect.ValueOf(clock).IsNil() {
			return fmt.Errorf("clock cannot be nil")
		}
		o.clock = clock
		return nil
	}
}

// WithTelemetry sets the instruments that count emitted alerts.
func WithTelemetry(metrics *telemetry.Metrics) Option {
	return func(o *options) error {
		o.metrics = metrics
		return nil
	}
}

// WithHandlerTimeout bounds how long a single handler may run.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return fmt.Errorf("handler timeout must be positive, got %v", timeout)
		}
		o.handlerTimeout = timeout
		return nil
	}
}

type namedHandler struct {
	name    string
	handler contracts.AlertHandler
}

// Dispatcher delivers alert events to every registered handler.
type Dispatcher struct {
	logger hclog.Logger
	opts   options

	mu       sync.RWMutex
	handlers []namedHandler
}

// NewDispatcher creates a Dispatcher with no handlers.
func NewDispatcher(logger hclog.Logger, opt ...Option) (*Dispatcher, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	opts, err := getOpts(opt...)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		logger: logger.Named("alert"),
		opts:   opts,
	}, nil
}

// AddHandler registers a handler under a unique name.
func (d *Dispatcher) AddHandler(name string, handler contracts.AlertHandler) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("handler name is required")
	}
	if handler == nil || reflect.ValueOf(handler).IsNil() {
		return fmt.Errorf("handler '%s' cannot be nil", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if slices.ContainsFunc(d.handlers, func(h namedHandler) bool { return h.name == name }) {
		return fmt.Errorf("handler '%s' is already registered", name)
	}
	d.handlers = append(d.handlers, namedHandler{name: name, handler: handler})
	return nil
}

// Handlers returns the names of the registered handlers, in registration order.
func (d *Dispatcher) Handlers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.handlers))
	for _, h := range d.handlers {
		out = append(out, h.name)
	}
	return out
}

// NewEvent builds an event with a fresh ID, stamped with the dispatcher's clock.
func (d *Dispatcher) NewEvent(server string, severity domain.Severity, message string) domain.AlertEvent {
	return domain.AlertEvent{
		ID:         uuid.NewString(),
		Timestamp:  d.opts.clock.Now(),
		ServerName: server,
		Severity:   severity,
		Message:    message,
	}
}

// Emit delivers the event to every handler concurrently and waits for them to return or time out.
// Events missing an ID or timestamp are completed first.
func (d *Dispatcher) Emit(ctx context.Context, event domain.AlertEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.opts.clock.Now()
	}

	d.mu.RLock()
	handlers := slices.Clone(d.handlers)
	d.mu.RUnlock()

	d.opts.metrics.RecordAlert(ctx, event.Severity)
	d.logger.Debug("Dispatching alert", "id", event.ID, "server", event.ServerName, "handlers", len(handlers))

	var wg sync.WaitGroup
	for _, h := range handlers {
		wg.Go(func() {
			if err := d.invoke(ctx, h, event); err != nil {
				d.logger.Error("Alert handler failed", "handler", h.name, "id", event.ID, "error", err)
			}
		})
	}
	wg.Wait()
}

// invoke runs one handler under the handler timeout, converting a panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, h namedHandler, event domain.AlertEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panicked: %v", errors.ErrAlertDispatch, r)
		}
	}()

	hctx, cancel := context.WithTimeout(ctx, d.opts.handlerTimeout)
	defer cancel()

	if err := h.handler.Handle(hctx, event); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrAlertDispatch, err)
	}
	return nil
}
