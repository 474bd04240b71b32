package failover

import (
	"fmt"
	"reflect"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/telemetry"
)

// Option configures an Engine.
// Options are applied in order, with later options overriding earlier ones.
type Option func(*options) error

type options struct {
	clock   contracts.Clock
	metrics *telemetry.Metrics
}

func getOpts(opts ...Option) (options, error) {
	opt := options{clock: contracts.SystemClock()}
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

// WithClock sets the clock used for rule cooldowns.
func WithClock(clock contracts.Clock) Option {
	return func(o *options) error {
		if clock == nil || reflect.ValueOf(clock).IsNil() {
			return fmt.Errorf("clock cannot be nil")
		}
		o.clock = clock
		return nil
	}
}

// WithTelemetry sets the instruments that count executed actions.
func WithTelemetry(metrics *telemetry.Metrics) Option {
	return func(o *options) error {
		o.metrics = metrics
		return nil
	}
}
