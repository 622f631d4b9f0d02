// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package tracer

import "sync"

// Tracing is the process-wide registry (SPEC_FULL §4.7/C12), grounded on the
// teacher's ddtrace/internal atomic-pointer singleton (globaltracer_test.go)
// but generalized to a small stack: current() returns the most recently
// built non-closed Tracer, and multiple instances may coexist (tests build
// and close many in sequence without leaking into each other).
var tracing = struct {
	mu        sync.Mutex
	instances []*Tracer
}{}

var noopTracer = newNoopTracer()

// newNoopTracer builds the fallback Tracer returned by current() when
// nothing has been registered, without going through New (which would
// itself try to register into the still-initializing registry).
func newNoopTracer() *Tracer {
	t := &Tracer{cfg: newConfig(), spans: NewSpanMap()}
	t.noop.Store(true)
	return t
}

func register(t *Tracer) {
	tracing.mu.Lock()
	tracing.instances = append(tracing.instances, t)
	tracing.mu.Unlock()
}

func deregister(t *Tracer) {
	tracing.mu.Lock()
	defer tracing.mu.Unlock()
	kept := tracing.instances[:0]
	for _, inst := range tracing.instances {
		if inst != t {
			kept = append(kept, inst)
		}
	}
	tracing.instances = kept
}

// current returns the most recently built, not-yet-closed Tracer, or a
// no-op Tracer if none is registered.
func current() *Tracer {
	tracing.mu.Lock()
	defer tracing.mu.Unlock()
	if n := len(tracing.instances); n > 0 {
		return tracing.instances[n-1]
	}
	return noopTracer
}

// Start builds and registers a Tracer as the process-wide current instance,
// returning a Stop function that closes it.
func Start(opts ...TracerOption) func() {
	t := New(opts...)
	return t.Close
}

// SetGlobalTracer registers t directly, for tests and adapters that
// construct a Tracer themselves. Returns a function that closes t.
func SetGlobalTracer(t *Tracer) func() {
	register(t)
	return t.Close
}

// SetNoop toggles noop mode on the process-wide current Tracer.
func SetNoop(v bool) { current().SetNoop(v) }

// NewTrace starts a root span on the process-wide Tracer.
func NewTrace() Span { return current().NewTrace() }

// NewTraceWithFlags starts a root span on the process-wide Tracer, honoring
// any pre-decided sampling flags.
func NewTraceWithFlags(flags SamplingFlags) Span { return current().NewTraceWithFlags(flags) }

// JoinSpan attempts to join extracted on the process-wide Tracer.
func JoinSpan(extracted TraceContextOrSamplingFlags) Span { return current().JoinSpan(extracted) }

// NewChild starts a child of parent on the process-wide Tracer.
func NewChild(parent TraceContext) Span { return current().NewChild(parent) }

// NextSpan dispatches extracted on the process-wide Tracer.
func NextSpan(extracted TraceContextOrSamplingFlags) Span { return current().NextSpan(extracted) }

// NextSpanNoArg is the zero-argument form, equivalent to NextSpan(Empty()).
func NextSpanNoArg() Span { return current().NextSpanNoArg() }

// WithSpanInScope runs fn with span current on the process-wide Tracer.
func WithSpanInScope(span Span, fn func()) { current().WithSpanInScope(span, fn) }

// CurrentSpan returns the current span on the process-wide Tracer.
func CurrentSpan() (Span, bool) { return current().CurrentSpan() }
