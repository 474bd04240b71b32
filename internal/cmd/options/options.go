package options

import (
	"fmt"
	"reflect"

	"github.com/mozilla-ai/mcpreg/internal/config"
)

// CmdOption configures CmdOptions.
type CmdOption func(*CmdOptions) error

// CmdOptions holds the collaborators commands use to read and write configuration.
type CmdOptions struct {
	ConfigLoader      config.Loader
	ConfigInitializer config.Initializer
}

func defaultOptions() CmdOptions {
	loader := &config.DefaultLoader{}
	return CmdOptions{
		ConfigLoader:      loader,
		ConfigInitializer: loader,
	}
}

// NewOptions applies opt over the defaults, skipping nil options.
func NewOptions(opt ...CmdOption) (CmdOptions, error) {
	opts := defaultOptions()

	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			return CmdOptions{}, err
		}
	}
	return opts, nil
}

// WithConfigLoader replaces the loader used to read the configuration file.
func WithConfigLoader(l config.Loader) CmdOption {
	return func(o *CmdOptions) error {
		if isNil(l) {
			return fmt.Errorf("config loader cannot be nil")
		}
		o.ConfigLoader = l
		return nil
	}
}

// WithConfigInitializer replaces the initializer used by 'mcpreg init'.
func WithConfigInitializer(i config.Initializer) CmdOption {
	return func(o *CmdOptions) error {
		if isNil(i) {
			return fmt.Errorf("config initializer cannot be nil")
		}
		o.ConfigInitializer = i
		return nil
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
