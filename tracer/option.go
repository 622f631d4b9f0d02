// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package tracer

import "github.com/tracemesh/tracemesh/internal/log"

// config holds every knob a Tracer can be built with (SPEC_FULL §6.1). The
// zero value is not directly usable; newConfig fills in defaults the way the
// teacher's own option.go does, so callers only override what they need.
type config struct {
	sampler              Sampler
	idGenerator          IDGenerator
	clock                Clock
	localEndpoint        Endpoint
	reporter             Reporter
	currentTraceContext  CurrentTraceContext
	use128BitTraceID     bool
	supportsJoin         bool
	logger               log.Logger
	finishedSpanHandlers []func(ReportedSpan)
}

func newConfig() *config {
	return &config{
		sampler:             AlwaysSample,
		idGenerator:         NewIDGenerator(),
		clock:               SystemClock,
		reporter:            NewNopReporter(),
		currentTraceContext: NewContextScopedCurrentTraceContext(),
		supportsJoin:        true,
	}
}

// TracerOption configures a Tracer at construction time, following the
// teacher's functional-options convention (ddtrace/tracer.StartOption).
type TracerOption func(*config)

// WithSampler overrides the default always-sample policy.
func WithSampler(s Sampler) TracerOption {
	return func(c *config) { c.sampler = s }
}

// WithIDGenerator overrides trace/span id generation, chiefly for tests that
// need deterministic ids.
func WithIDGenerator(g IDGenerator) TracerOption {
	return func(c *config) { c.idGenerator = g }
}

// WithClock overrides the wall clock, chiefly for tests.
func WithClock(cl Clock) TracerOption {
	return func(c *config) { c.clock = cl }
}

// WithServiceName sets the local endpoint's service name.
func WithServiceName(name string) TracerOption {
	return func(c *config) { c.localEndpoint.ServiceName = name }
}

// WithLocalEndpoint sets the full local endpoint, overwriting any prior
// WithServiceName call.
func WithLocalEndpoint(ep Endpoint) TracerOption {
	return func(c *config) { c.localEndpoint = ep }
}

// WithReporter overrides the default no-op Reporter.
func WithReporter(r Reporter) TracerOption {
	return func(c *config) { c.reporter = r }
}

// WithCurrentTraceContext overrides the default context.Context-scoped
// implementation, e.g. with a StackCurrentTraceContext.
func WithCurrentTraceContext(cc CurrentTraceContext) TracerOption {
	return func(c *config) { c.currentTraceContext = cc }
}

// With128BitTraceID causes NewTrace to mint 128-bit trace ids.
func With128BitTraceID(enabled bool) TracerOption {
	return func(c *config) { c.use128BitTraceID = enabled }
}

// WithSupportsJoin controls whether JoinSpan reuses the peer's span id
// (true) or always mints a child (false), independent of any wire format's
// own preference.
func WithSupportsJoin(supported bool) TracerOption {
	return func(c *config) { c.supportsJoin = supported }
}

// WithLogger installs a logger for this Tracer's diagnostics. Unlike the
// other options, this also swaps the package-level internal/log sink, since
// the core has no per-instance logging path.
func WithLogger(l log.Logger) TracerOption {
	return func(c *config) { c.logger = l }
}

// WithPropagation seeds supportsJoin and use128BitTraceID from a configured
// wire codec factory (SPEC_FULL §6.1: "propagationFactory... overrides...
// supportsJoin"/"Requires128BitTraceID"). Apply this option before any
// explicit WithSupportsJoin/With128BitTraceID call if both are given — later
// options in the list win, since each is just an assignment against the same
// config fields.
func WithPropagation[C any](p Propagation[C]) TracerOption {
	return func(c *config) {
		c.supportsJoin = p.SupportsJoin()
		c.use128BitTraceID = p.Requires128BitTraceID()
	}
}

// WithFinishedSpanHandler registers a callback invoked after a span is
// reported, in addition to (not instead of) the configured Reporter. Useful
// for tests asserting on finished spans without standing up a Reporter.
func WithFinishedSpanHandler(h func(ReportedSpan)) TracerOption {
	return func(c *config) { c.finishedSpanHandlers = append(c.finishedSpanHandlers, h) }
}
