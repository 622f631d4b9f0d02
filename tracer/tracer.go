// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package tracer

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/tracemesh/tracemesh/internal/log"
)

// Tracer is the orchestrator tying identifier generation, sampling, the
// in-flight span registry, and reporting together (SPEC_FULL §4). A Tracer
// is safe for concurrent use; build one with New and keep it for the
// process lifetime (see Tracing for the singleton convenience).
type Tracer struct {
	cfg      *config
	spans    *SpanMap
	restores []func()
	noop     atomic.Bool
}

// New constructs a Tracer from the given options, filling in the teacher's
// usual defaults (always-sample, system clock, no-op reporter, random id
// generation, context-scoped current-trace-context) for anything left
// unset.
func New(opts ...TracerOption) *Tracer {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	t := &Tracer{cfg: cfg, spans: NewSpanMap()}
	if cfg.logger != nil {
		t.restores = append(t.restores, log.UseLogger(cfg.logger))
	}
	register(t)
	return t
}

// Close releases any process-wide resources this Tracer installed (e.g. a
// logger swapped in via WithLogger) and deregisters it from the process-wide
// Tracing registry. Idempotent.
func (t *Tracer) Close() {
	deregister(t)
	for _, r := range t.restores {
		r()
	}
	t.restores = nil
}

// SetNoop toggles whether every span-creating operation on this Tracer
// yields a Noop span regardless of the sampler's decision (SPEC_FULL §4.7).
// The resulting context still carries valid, nonzero identifiers.
func (t *Tracer) SetNoop(v bool) { t.noop.Store(v) }

// IsNoop reports the current value set by SetNoop.
func (t *Tracer) IsNoop() bool { return t.noop.Load() }

// NewTrace starts a new root span with a freshly minted trace id, sampled by
// the configured Sampler (SPEC_FULL §4: operation "newTrace").
func (t *Tracer) NewTrace() Span {
	return t.NewTraceWithFlags(EmptyFlags)
}

// NewTraceWithFlags starts a new root span, honoring any sampling decision
// already present in flags (e.g. forced via DebugFlags) instead of
// consulting the Sampler when flags.Sampled is already decided.
func (t *Tracer) NewTraceWithFlags(flags SamplingFlags) Span {
	builder := NewTraceContextBuilder(t.cfg.idGenerator).Debug(flags.Debug)
	if t.cfg.use128BitTraceID {
		high, low := t.cfg.idGenerator.TraceID128()
		builder.TraceIDHigh(high).TraceID(low)
	}
	ctx := builder.Build()
	ctx = t.decideSampling(ctx, flags.Sampled)
	return t.toSpan(ctx)
}

// decideSampling keeps a decision the incoming context already carries and
// consults the Sampler only when that decision is undecided; the result is
// then carried on the returned context. Decisions are not cached per trace
// id: every undecided context passed in consults the Sampler again, so
// agreement across such calls rests on the Sampler being deterministic for a
// trace id. A panicking Sampler is logged and treated as not sampled.
func (t *Tracer) decideSampling(ctx TraceContext, incoming SamplingDecision) TraceContext {
	if ctx.Debug() {
		return ctx.WithSampled(SamplingSampled)
	}
	if incoming != SamplingUndecided {
		return ctx.WithSampled(incoming)
	}
	if t.cfg.sampler == nil {
		return ctx
	}
	sampled := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("sampler panicked: %v", r)
				ok = false
			}
		}()
		return t.cfg.sampler.Sample(ctx.TraceID())
	}()
	if sampled {
		return ctx.WithSampled(SamplingSampled)
	}
	return ctx.WithSampled(SamplingNotSampled)
}

// JoinSpan attempts to take over a remote span id from extracted
// (SPEC_FULL §4.2/§4.6, operation "joinSpan"). When extracted carries a full
// TraceContext and the active config allows join, the returned span shares
// that exact identifier triple (Shared() reports true). When joins are
// disabled, a full context degrades to NewChild: a fresh span id, parentId =
// the extracted span id, shared left false. Without a full context there is
// no span id to join: a trace-id-only payload starts a root span on that
// trace id, and bare sampling flags start a new trace.
func (t *Tracer) JoinSpan(extracted TraceContextOrSamplingFlags) Span {
	full, ok := extracted.TraceContext()
	if !ok {
		return t.newChildFrom(extracted)
	}
	if !t.cfg.supportsJoin {
		return t.NewChild(full)
	}
	ctx := NewTraceContextBuilder(t.cfg.idGenerator).
		TraceIDHigh(full.TraceIDHigh()).
		TraceID(full.TraceID()).
		SpanID(full.SpanID()).
		ParentID(mustParent(full)).
		Debug(full.Debug()).
		Shared(true).
		Extra(full.Extra()...).
		Build()
	ctx = t.decideSampling(ctx, full.Sampled())
	return t.toSpan(ctx)
}

func mustParent(c TraceContext) uint64 {
	p, _ := c.ParentID()
	return p
}

// NewChild starts a new child span under parent (SPEC_FULL §4.2, operation
// "newChild"): same trace id, a freshly minted span id, parent id set to
// parent's span id, sampling inherited/decided sticky on the trace id.
func (t *Tracer) NewChild(parent TraceContext) Span {
	ctx := NewTraceContextBuilder(t.cfg.idGenerator).
		TraceIDHigh(parent.TraceIDHigh()).
		TraceID(parent.TraceID()).
		ParentID(parent.SpanID()).
		Debug(parent.Debug()).
		Extra(parent.Extra()...).
		Build()
	ctx = t.decideSampling(ctx, parent.Sampled())
	return t.toSpan(ctx)
}

func (t *Tracer) newChildFrom(extracted TraceContextOrSamplingFlags) Span {
	if traceOnly, ok := extracted.TraceIDContext(); ok {
		ctx := NewTraceContextBuilder(t.cfg.idGenerator).
			TraceIDHigh(traceOnly.TraceIDHigh).
			TraceID(traceOnly.TraceID).
			Debug(traceOnly.Flags.Debug).
			Extra(extracted.Extra()...).
			Build()
		ctx = t.decideSampling(ctx, traceOnly.Flags.Sampled)
		return t.toSpan(ctx)
	}
	return t.NewTraceWithFlags(extracted.SamplingFlags())
}

// NextSpan dispatches on extracted's variant per SPEC_FULL §4.6's table: a
// full context joins (respecting supportsJoin); a trace-id-only context
// starts a new span sharing that trace id; bare flags either start a trace
// or extend whatever is current, depending on whether a current span
// exists. In every case, extra carried by the current span (if any) is
// prepended to extracted's extra, in order.
func (t *Tracer) NextSpan(extracted TraceContextOrSamplingFlags) Span {
	current, hasCurrent := t.cfg.currentTraceContext.Get()
	combinedExtra := extracted.Extra()
	if hasCurrent {
		combinedExtra = append(append([]any{}, current.Extra()...), extracted.Extra()...)
	}

	switch extracted.Kind() {
	case ExtractedFull:
		full, _ := extracted.TraceContext()
		return t.JoinSpan(FromTraceContext(NewTraceContextBuilder(t.cfg.idGenerator).
			TraceIDHigh(full.TraceIDHigh()).TraceID(full.TraceID()).SpanID(full.SpanID()).
			ParentID(mustParent(full)).Sampled(full.Sampled()).Debug(full.Debug()).
			Shared(full.Shared()).Extra(combinedExtra...).Build()))
	case ExtractedTraceID:
		traceOnly, _ := extracted.TraceIDContext()
		ctx := NewTraceContextBuilder(t.cfg.idGenerator).
			TraceIDHigh(traceOnly.TraceIDHigh).
			TraceID(traceOnly.TraceID).
			Debug(traceOnly.Flags.Debug).
			Extra(combinedExtra...).
			Build()
		ctx = t.decideSampling(ctx, traceOnly.Flags.Sampled)
		return t.toSpan(ctx)
	default:
		flags := extracted.SamplingFlags()
		if !hasCurrent {
			if flags == EmptyFlags {
				return t.withExtra(t.NewTrace(), combinedExtra)
			}
			return t.withExtra(t.NewTraceWithFlags(flags), combinedExtra)
		}
		child := NewTraceContextBuilder(t.cfg.idGenerator).
			TraceIDHigh(current.TraceIDHigh()).
			TraceID(current.TraceID()).
			ParentID(current.SpanID()).
			Debug(current.Debug() || flags.Debug).
			Extra(combinedExtra...).
			Build()
		overlay := flags.Sampled
		if overlay == SamplingUndecided {
			overlay = current.Sampled()
		}
		child = t.decideSampling(child, overlay)
		return t.toSpan(child)
	}
}

// withExtra re-wraps span's context with extra appended, used where NextSpan
// must attach combined extra to a span already built by NewTrace/
// NewTraceWithFlags (which attach no extra of their own).
func (t *Tracer) withExtra(span Span, extra []any) Span {
	if len(extra) == 0 {
		return span
	}
	ctx := span.Context()
	rebuilt := NewTraceContextBuilder(t.cfg.idGenerator).
		TraceIDHigh(ctx.TraceIDHigh()).TraceID(ctx.TraceID()).SpanID(ctx.SpanID()).
		ParentID(mustParent(ctx)).Sampled(ctx.Sampled()).Debug(ctx.Debug()).
		Shared(ctx.Shared()).Extra(extra...).Build()
	return t.toSpan(rebuilt)
}

// NextSpanNoArg is the zero-argument form of NextSpan, equivalent to
// NextSpan(Empty()): a child of whatever is current, or a new trace if
// nothing is current.
func (t *Tracer) NextSpanNoArg() Span {
	return t.NextSpan(Empty())
}

// toSpan wraps ctx in the appropriate Span variant: Noop when this Tracer is
// in global-noop mode or ctx is definitively not sampled, Real otherwise
// (SPEC_FULL §4.6: operation "toSpan").
func (t *Tracer) toSpan(ctx TraceContext) Span {
	return t.ToSpan(ctx)
}

// ToSpan wraps an already-built TraceContext as a Span without allocating
// new identifiers, the public counterpart of the internal toSpan step used
// by NewTrace/NewChild/JoinSpan.
func (t *Tracer) ToSpan(ctx TraceContext) Span {
	if t.noop.Load() || (ctx.Sampled() == SamplingNotSampled && !ctx.Debug()) {
		return noopSpan{ctx: ctx}
	}
	ms := t.spans.GetOrCreate(ctx, t.cfg.clock)
	return &realSpan{ctx: ctx, ms: ms, tracer: t}
}

// WithSpanInScope installs span's context as current for the duration of fn,
// restoring whatever was current before fn returns (SPEC_FULL §4.2,
// operation "withSpanInScope"). A nil span clears the current scope instead
// of installing one, per SPEC_FULL §4.6's "or clears, if span is null".
func (t *Tracer) WithSpanInScope(span Span, fn func()) {
	var ctx TraceContext
	if span != nil {
		ctx = span.Context()
	}
	scope := t.cfg.currentTraceContext.Set(ctx)
	defer scope.Close()
	fn()
}

// CurrentSpan returns a Span wrapping whatever trace context is current, or
// nil and false if none is set. The Span comes from ToSpan: it shares the
// MutableSpan registered for that context (registering one if none exists
// yet), and is a Noop span only when this Tracer is in noop mode or the
// context is not sampled.
func (t *Tracer) CurrentSpan() (Span, bool) {
	ctx, ok := t.cfg.currentTraceContext.Get()
	if !ok {
		return nil, false
	}
	return t.ToSpan(ctx), true
}

// finishSpan converts a MutableSpan to a ReportedSpan, unregisters it, and
// hands it to the configured Reporter and any finished-span handlers. Safe
// to call more than once; only the first call reports. A panicking Reporter
// is logged and the span counts as reported.
func (t *Tracer) finishSpan(ctx TraceContext, ms *MutableSpan) {
	if !ms.markFinished() {
		return
	}
	t.spans.Remove(ctx)
	reported := t.convert(ctx, ms, true)
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("reporter panicked: %v", r)
			}
		}()
		t.cfg.reporter.Report(reported)
	}()
	for _, h := range t.cfg.finishedSpanHandlers {
		h(reported)
	}
}

// convert produces the total, defaulted conversion SPEC_FULL §4.4.1 calls
// for. When finished is false (used only for the in-flight diagnostic in
// String), Duration is left unset so the span reads as still-open.
func (t *Tracer) convert(ctx TraceContext, ms *MutableSpan, finished bool) ReportedSpan {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	rs := ReportedSpan{
		TraceID:       traceIDHex(ctx),
		ID:            spanIDHex(ctx.SpanID()),
		Timestamp:     ms.start,
		Name:          ms.name,
		Kind:          ms.kind.String(),
		LocalEndpoint: t.cfg.localEndpoint,
		Debug:         ctx.Debug(),
		Shared:        ctx.Shared(),
	}
	if finished {
		rs.Duration = ms.finish - ms.start
	}
	if p, ok := ctx.ParentID(); ok {
		rs.ParentID = spanIDHex(p)
	}
	if ms.remoteEndpoint != nil {
		ep := *ms.remoteEndpoint
		rs.RemoteEndpoint = &ep
	}
	if len(ms.tags) > 0 {
		rs.Tags = make(map[string]string, len(ms.tags))
		for k, v := range ms.tags {
			rs.Tags[k] = v
		}
	}
	if len(ms.metrics) > 0 {
		rs.Metrics = make(map[string]float64, len(ms.metrics))
		for k, v := range ms.metrics {
			rs.Metrics[k] = v
		}
	}
	if len(ms.spanLinks) > 0 {
		rs.SpanLinks = make([]SpanLinkRef, len(ms.spanLinks))
		for i, link := range ms.spanLinks {
			rs.SpanLinks[i] = SpanLinkRef{TraceID: traceIDHex(link), SpanID: spanIDHex(link.SpanID())}
		}
	}
	if ms.err != nil {
		rs.Error = ms.err.Error()
	}
	return rs
}

// traceIDHex renders a trace id the way SPEC_FULL §6 specifies for
// diagnostics and reported spans: 16 lowercase hex chars in 64-bit mode, 32
// in 128-bit mode. This is distinct from TextMapPropagation's traceparent
// encoding, which always pads to 32 regardless of mode.
func traceIDHex(ctx TraceContext) string {
	if ctx.Is128Bit() {
		return fmt.Sprintf("%016x%016x", ctx.TraceIDHigh(), ctx.TraceID())
	}
	return fmt.Sprintf("%016x", ctx.TraceID())
}

func spanIDHex(id uint64) string {
	return fmt.Sprintf("%016x", id)
}

// String renders this Tracer's diagnostic summary, matching SPEC_FULL §8's
// byte-for-byte contract: noop takes priority, then a scoped current span,
// then any still-open in-flight spans, falling back to just the reporter.
func (t *Tracer) String() string {
	var parts []string
	switch {
	case t.noop.Load():
		parts = append(parts, "noop=true")
	default:
		if cur, ok := t.cfg.currentTraceContext.Get(); ok {
			parts = append(parts, fmt.Sprintf("currentSpan=%s/%s", traceIDHex(cur), spanIDHex(cur.SpanID())))
		} else if snaps := t.spans.Snapshot(); len(snaps) > 0 {
			parts = append(parts, fmt.Sprintf("inFlight=%s", t.inFlightJSON(snaps)))
		}
	}
	parts = append(parts, fmt.Sprintf("reporter=%s", t.cfg.reporter))

	out := "Tracer{"
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out + "}"
}

func (t *Tracer) inFlightJSON(snaps []*MutableSpan) string {
	descriptors := make([]ReportedSpan, 0, len(snaps))
	for _, ms := range snaps {
		descriptors = append(descriptors, t.convert(ms.ctx, ms, false))
	}
	b, err := json.Marshal(descriptors)
	if err != nil {
		log.Warn("failed to render in-flight spans: %s", err)
		return "[]"
	}
	return string(b)
}
