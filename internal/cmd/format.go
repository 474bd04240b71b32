package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mozilla-ai/mcpreg/internal/cmd/output"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

// OutputFormats allows helper receivers such as String() on a set of formats.
type OutputFormats []OutputFormat

const (
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
	FormatText OutputFormat = "text"
)

// jsonIndent and yamlIndent are the indentation widths used by structured output.
const (
	jsonIndent = 2
	yamlIndent = 2
)

// AllowedOutputFormats returns the supported formats sorted by name.
func AllowedOutputFormats() OutputFormats {
	formats := []OutputFormat{
		FormatJSON,
		FormatText,
		FormatYAML,
	}

	slices.Sort(formats)

	return formats
}

// String joins the formats into a comma separated list.
func (f *OutputFormats) String() string {
	out := make([]string, len(*f))
	for i, v := range *f {
		out[i] = v.String()
	}
	return strings.Join(out, ", ")
}

// String implements fmt.Stringer and is required by pflag.Value.
func (f *OutputFormat) String() string {
	return strings.ToLower(string(*f))
}

// Set parses v into the format, as required by pflag.Value.
func (f *OutputFormat) Set(v string) error {
	v = strings.ToLower(strings.TrimSpace(v))
	allowed := AllowedOutputFormats()

	if slices.Contains(allowed, OutputFormat(v)) {
		*f = OutputFormat(v)
		return nil
	}

	return fmt.Errorf("invalid format '%s', must be one of %v", v, allowed.String())
}

// Type is shown by cobra in usage output.
func (f *OutputFormat) Type() string {
	return "format"
}

// NewOutputHandler returns the handler rendering items of type T in format to w.
// The printer is only used for text output.
func NewOutputHandler[T any](format OutputFormat, w io.Writer, printer output.Printer[T]) (output.Handler[T], error) {
	switch format {
	case FormatJSON:
		return output.NewJSONHandler[T](w, jsonIndent), nil
	case FormatYAML:
		return output.NewYAMLHandler[T](w, yamlIndent), nil
	case FormatText:
		if printer == nil {
			return nil, fmt.Errorf("text output requires a printer")
		}
		return output.NewTextHandler[T](w, printer), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
