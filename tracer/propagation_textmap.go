// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package tracer

import (
	"encoding/hex"
	"fmt"
)

// TextMapPropagation is a representative Propagation[map[string]string]
// implementation, carrying identifiers the way SPEC_FULL §6 specifies them
// on the wire: lowercase, fixed-width hex, with zero padding preserved. It
// writes a single "traceparent" header (version-traceid-spanid-flags,
// following the W3C Trace Context shape) plus a "tracestate" header holding
// this vendor's entry, produced via ScanTracestate/WriteTracestate.
//
// SupportsJoin is false: the traceparent convention always mints a new span
// id for the next hop, so Tracer.JoinSpan degrades to Tracer.NewChild for
// this format (SPEC_FULL §4.2).
type TextMapPropagation struct {
	VendorKey string
}

const (
	traceparentHeader = "traceparent"
	tracestateHeader  = "tracestate"
)

// Keys implements Propagation.
func (p TextMapPropagation) Keys() []string {
	return []string{traceparentHeader, tracestateHeader}
}

// SupportsJoin implements Propagation.
func (TextMapPropagation) SupportsJoin() bool { return false }

// Requires128BitTraceID implements Propagation.
func (TextMapPropagation) Requires128BitTraceID() bool { return false }

// Injector implements Propagation.
func (p TextMapPropagation) Injector(set func(carrier map[string]string, key, value string)) func(TraceContext, map[string]string) {
	return func(ctx TraceContext, carrier map[string]string) {
		flags := byte(0)
		if ctx.Sampled() == SamplingSampled {
			flags = 1
		}
		set(carrier, traceparentHeader, fmt.Sprintf("00-%s-%016x-%02x", encodeTraceID(ctx), ctx.SpanID(), flags))

		var vendorValue string
		for _, e := range ctx.Extra() {
			if ts, ok := e.(tracestateExtra); ok {
				vendorValue = ts.vendorValue
				if ts.others != "" {
					set(carrier, tracestateHeader, WriteTracestate(p.VendorKey, vendorValue, ts.others))
					return
				}
			}
		}
		if vendorValue != "" {
			set(carrier, tracestateHeader, WriteTracestate(p.VendorKey, vendorValue, ""))
		}
	}
}

// Extractor implements Propagation.
func (p TextMapPropagation) Extractor(get func(carrier map[string]string, key string) (string, bool)) func(map[string]string) TraceContextOrSamplingFlags {
	return func(carrier map[string]string) TraceContextOrSamplingFlags {
		tp, ok := get(carrier, traceparentHeader)
		if !ok || tp == "" {
			return Empty()
		}
		high, low, spanID, sampled, ok := decodeTraceparent(tp)
		if !ok {
			return Empty()
		}
		var extra []any
		if ts, ok := get(carrier, tracestateHeader); ok && ts != "" {
			value, others, found := ParseTracestate(ts, p.VendorKey)
			if found || others != "" {
				extra = append(extra, tracestateExtra{vendorValue: value, others: others})
			}
		}
		builder := NewTraceContextBuilder(nil).
			TraceIDHigh(high).TraceID(low).SpanID(spanID).Sampled(sampled).Extra(extra...)
		return FromTraceContext(builder.Build())
	}
}

// tracestateExtra is the opaque Extra payload this propagation attaches so
// that a re-injected tracestate header round-trips the non-vendor entries.
type tracestateExtra struct {
	vendorValue string
	others      string
}

func encodeTraceID(ctx TraceContext) string {
	if ctx.Is128Bit() {
		return fmt.Sprintf("%016x%016x", ctx.TraceIDHigh(), ctx.TraceID())
	}
	return fmt.Sprintf("%032x", ctx.TraceID())
}

func decodeTraceparent(s string) (high, low, spanID uint64, sampled SamplingDecision, ok bool) {
	// 00-<32 hex traceid>-<16 hex spanid>-<2 hex flags>
	if len(s) != 2+1+32+1+16+1+2 {
		return 0, 0, 0, SamplingUndecided, false
	}
	traceIDHex := s[3:35]
	spanIDHex := s[36:52]
	flagsHex := s[53:55]

	traceIDBytes, err := hex.DecodeString(traceIDHex)
	if err != nil || len(traceIDBytes) != 16 {
		return 0, 0, 0, SamplingUndecided, false
	}
	spanIDBytes, err := hex.DecodeString(spanIDHex)
	if err != nil || len(spanIDBytes) != 8 {
		return 0, 0, 0, SamplingUndecided, false
	}
	flagsBytes, err := hex.DecodeString(flagsHex)
	if err != nil || len(flagsBytes) != 1 {
		return 0, 0, 0, SamplingUndecided, false
	}

	high = beUint64(traceIDBytes[0:8])
	low = beUint64(traceIDBytes[8:16])
	spanID = beUint64(spanIDBytes)
	if low == 0 || spanID == 0 {
		return 0, 0, 0, SamplingUndecided, false
	}
	if flagsBytes[0]&1 != 0 {
		sampled = SamplingSampled
	} else {
		sampled = SamplingNotSampled
	}
	return high, low, spanID, sampled, true
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}
