// Package output renders command results as JSON, YAML or plain text.
package output

import "io"

// Handler renders results and errors of type T for a single output format.
type Handler[T any] interface {
	// Writer returns the io.Writer this Handler writes to.
	Writer() io.Writer

	// HandleResult renders a single item.
	HandleResult(item T) error

	// HandleResults renders a collection of items.
	HandleResults(items ...T) error

	// HandleError renders err in the handler's format.
	HandleError(err error) error
}

// WriteFunc writes a header or footer for a collection of count items.
type WriteFunc func(w io.Writer, count int)

// Printer renders items of type T as human-readable text.
type Printer[T any] interface {
	// Header is called once before the first Item.
	Header(w io.Writer, count int)

	// Item prints one element.
	Item(w io.Writer, elem T) error

	// Footer is called once after the last Item.
	Footer(w io.Writer, count int)
}

// PrinterFuncs adapts plain functions to a Printer.
// Nil HeaderFunc and FooterFunc write nothing.
type PrinterFuncs[T any] struct {
	HeaderFunc WriteFunc
	ItemFunc   func(w io.Writer, elem T) error
	FooterFunc WriteFunc
}

func (p PrinterFuncs[T]) Header(w io.Writer, count int) {
	if p.HeaderFunc != nil {
		p.HeaderFunc(w, count)
	}
}

func (p PrinterFuncs[T]) Item(w io.Writer, elem T) error {
	if p.ItemFunc == nil {
		return nil
	}
	return p.ItemFunc(w, elem)
}

func (p PrinterFuncs[T]) Footer(w io.Writer, count int) {
	if p.FooterFunc != nil {
		p.FooterFunc(w, count)
	}
}

// ResultsPayload wraps multiple results under the key "results".
type ResultsPayload[T any] struct {
	Results []T `json:"results" yaml:"results"`
}

// ResultPayload wraps a single result under the key "result".
type ResultPayload[T any] struct {
	Result T `json:"result" yaml:"result"`
}

// ErrorPayload carries an error message under the key "error".
type ErrorPayload struct {
	Error string `json:"error" yaml:"error"`
}
