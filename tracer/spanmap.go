// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package tracer

import "sync"

// spanKey identifies a span's slot in a SpanMap. traceIDHigh is zero for a
// 64-bit trace, so 64-bit and 128-bit traces never collide.
type spanKey struct {
	traceIDHigh uint64
	traceID     uint64
	spanID      uint64
}

func keyOf(ctx TraceContext) spanKey {
	return spanKey{traceIDHigh: ctx.TraceIDHigh(), traceID: ctx.TraceID(), spanID: ctx.SpanID()}
}

// SpanMap is a Tracer's registry of in-flight spans, keyed by
// identifier triple (SPEC_FULL §4.4). It is the one place the tracer
// tolerates concurrent first-writer races: GetOrCreate is safe to call
// from multiple goroutines racing to materialize the same span.
type SpanMap struct {
	m sync.Map // spanKey -> *MutableSpan
}

// NewSpanMap constructs an empty registry.
func NewSpanMap() *SpanMap {
	return &SpanMap{}
}

// GetOrCreate returns the MutableSpan registered for ctx, creating and
// registering one (stamped with clock()) if none exists yet. Concurrent
// callers racing on the same key converge on a single winner.
func (sm *SpanMap) GetOrCreate(ctx TraceContext, clock Clock) *MutableSpan {
	key := keyOf(ctx)
	if v, ok := sm.m.Load(key); ok {
		return v.(*MutableSpan)
	}
	fresh := newMutableSpan(ctx, clock)
	actual, _ := sm.m.LoadOrStore(key, fresh)
	return actual.(*MutableSpan)
}

// Get returns the MutableSpan registered for ctx, if any.
func (sm *SpanMap) Get(ctx TraceContext) (*MutableSpan, bool) {
	v, ok := sm.m.Load(keyOf(ctx))
	if !ok {
		return nil, false
	}
	return v.(*MutableSpan), true
}

// Remove unregisters and returns the MutableSpan for ctx. It is safe to call
// more than once: later calls observe no entry and return (nil, false).
func (sm *SpanMap) Remove(ctx TraceContext) (*MutableSpan, bool) {
	key := keyOf(ctx)
	v, ok := sm.m.LoadAndDelete(key)
	if !ok {
		return nil, false
	}
	return v.(*MutableSpan), true
}

// Snapshot returns every span currently registered, in no particular order.
// Intended for diagnostics (SPEC_FULL §8) and orderly shutdown, not for the
// hot path.
func (sm *SpanMap) Snapshot() []*MutableSpan {
	var out []*MutableSpan
	sm.m.Range(func(_, v any) bool {
		out = append(out, v.(*MutableSpan))
		return true
	})
	return out
}
