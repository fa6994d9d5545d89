// Package telemetry records how long the stages of loading and reporting
// take. A Collector travels in the context, so instrumented code does not
// change its signatures:
//
//	rec := telemetry.NewRecorder()
//	ctx := telemetry.WithCollector(context.Background(), rec)
//
//	timer := telemetry.FromContext(ctx).Start("loader.load main.beancount")
//	parse := timer.Child("parser.parse")
//	// ...
//	parse.End()
//	timer.End()
//
//	rec.Report(os.Stderr, output.NewStyles(os.Stderr))
//
// Without a collector in the context every call is a no-op.
package telemetry

import (
	"context"
	"io"

	"github.com/robinvdvleuten/beanledger/output"
)

type contextKey struct{}

// Collector receives timings.
type Collector interface {
	// Start begins timing an operation. It nests under the innermost
	// operation of the collector that has not ended yet.
	Start(name string) Timer

	// Report writes the collected timings to w. styles may be nil.
	Report(w io.Writer, styles *output.Styles)
}

// Timer is one running operation.
type Timer interface {
	// End stops the timer. Calling End more than once has no effect.
	End()

	// Child begins timing an operation nested under this one.
	Child(name string) Timer
}

// WithCollector returns a context carrying c.
func WithCollector(ctx context.Context, c Collector) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the collector of ctx, or one that discards
// everything.
func FromContext(ctx context.Context) Collector {
	if c, ok := ctx.Value(contextKey{}).(Collector); ok {
		return c
	}
	return discard{}
}

type discard struct{}

func (discard) Start(string) Timer { return discard{} }
func (discard) Report(io.Writer, *output.Styles) {}
func (discard) End() {}
func (discard) Child(string) Timer { return discard{} }
