// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package tracer

// SamplingFlags is the sampled tri-state plus a debug bit, used when the
// full identifier set is not (yet) known.
type SamplingFlags struct {
	Sampled SamplingDecision
	Debug   bool
}

// EMPTY, SAMPLED, NOT_SAMPLED, DEBUG constants from SPEC_FULL §3.
var (
	EmptyFlags     = SamplingFlags{Sampled: SamplingUndecided}
	SampledFlags   = SamplingFlags{Sampled: SamplingSampled}
	NotSampledFlag = SamplingFlags{Sampled: SamplingNotSampled}
	DebugFlags     = SamplingFlags{Sampled: SamplingSampled, Debug: true}
)

// TraceIDContext carries only trace identifiers, with no span id: the
// second variant of TraceContextOrSamplingFlags.
type TraceIDContext struct {
	TraceIDHigh uint64
	TraceID     uint64
	Flags       SamplingFlags
}

// ExtractedKind tags which variant a TraceContextOrSamplingFlags holds.
type ExtractedKind int8

const (
	// ExtractedFlags is the default variant: bare SamplingFlags, no ids.
	ExtractedFlags ExtractedKind = iota
	// ExtractedFull carries a complete TraceContext.
	ExtractedFull
	// ExtractedTraceID carries trace ids but no span id.
	ExtractedTraceID
)

// TraceContextOrSamplingFlags is a tagged union of exactly one of: a full
// TraceContext, a TraceIDContext, or bare SamplingFlags. Extra travels
// independently of which variant is present, so propagation payloads survive
// even when no identifiers were extracted.
type TraceContextOrSamplingFlags struct {
	kind      ExtractedKind
	full      TraceContext
	traceOnly TraceIDContext
	flags     SamplingFlags
	extra     []any
}

// FromTraceContext wraps a full TraceContext, carrying its own Extra along.
func FromTraceContext(c TraceContext) TraceContextOrSamplingFlags {
	return TraceContextOrSamplingFlags{kind: ExtractedFull, full: c, extra: c.Extra()}
}

// FromTraceIDContext wraps a TraceIDContext plus any extracted extra
// payloads.
func FromTraceIDContext(c TraceIDContext, extra ...any) TraceContextOrSamplingFlags {
	return TraceContextOrSamplingFlags{kind: ExtractedTraceID, traceOnly: c, extra: extra}
}

// FromSamplingFlags wraps bare SamplingFlags plus any extracted extra
// payloads.
func FromSamplingFlags(f SamplingFlags, extra ...any) TraceContextOrSamplingFlags {
	return TraceContextOrSamplingFlags{kind: ExtractedFlags, flags: f, extra: extra}
}

// Empty is the zero-information variant used when propagation extracted
// nothing at all.
func Empty() TraceContextOrSamplingFlags { return FromSamplingFlags(EmptyFlags) }

// Kind reports which variant is held.
func (e TraceContextOrSamplingFlags) Kind() ExtractedKind { return e.kind }

// TraceContext returns the full context and true, if Kind is ExtractedFull.
func (e TraceContextOrSamplingFlags) TraceContext() (TraceContext, bool) {
	return e.full, e.kind == ExtractedFull
}

// TraceIDContext returns the trace-id-only context and true, if Kind is
// ExtractedTraceID.
func (e TraceContextOrSamplingFlags) TraceIDContext() (TraceIDContext, bool) {
	return e.traceOnly, e.kind == ExtractedTraceID
}

// SamplingFlags returns the sampling tri-state regardless of variant.
func (e TraceContextOrSamplingFlags) SamplingFlags() SamplingFlags {
	switch e.kind {
	case ExtractedFull:
		return SamplingFlags{Sampled: e.full.sampled, Debug: e.full.debug}
	case ExtractedTraceID:
		return e.traceOnly.Flags
	default:
		return e.flags
	}
}

// Extra returns the propagation payloads carried independently of variant.
func (e TraceContextOrSamplingFlags) Extra() []any { return e.extra }

// IsEmpty reports whether this is the zero-information variant: bare,
// undecided SamplingFlags with no debug bit and no extra.
func (e TraceContextOrSamplingFlags) IsEmpty() bool {
	return e.kind == ExtractedFlags && e.flags == EmptyFlags && len(e.extra) == 0
}
