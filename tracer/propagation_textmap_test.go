package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mapCarrier() (map[string]string, func(map[string]string, string, string), func(map[string]string, string) (string, bool)) {
	m := map[string]string{}
	set := func(c map[string]string, k, v string) { c[k] = v }
	get := func(c map[string]string, k string) (string, bool) { v, ok := c[k]; return v, ok }
	return m, set, get
}

func TestTextMapInjectThenExtractRoundTrips(t *testing.T) {
	p := TextMapPropagation{VendorKey: "dd"}
	ctx := NewTraceContextBuilder(nil).TraceID(0x1234).SpanID(0x5678).Sampled(SamplingSampled).Build()

	carrier, set, get := mapCarrier()
	p.Injector(set)(ctx, carrier)

	assert.Contains(t, carrier, "traceparent")
	extracted := p.Extractor(get)(carrier)
	full, ok := extracted.TraceContext()
	assert.True(t, ok)
	assert.Equal(t, ctx.TraceID(), full.TraceID())
	assert.Equal(t, ctx.SpanID(), full.SpanID())
	assert.Equal(t, SamplingSampled, full.Sampled())
}

func TestTextMapInjectNotSampledFlag(t *testing.T) {
	p := TextMapPropagation{VendorKey: "dd"}
	ctx := NewTraceContextBuilder(nil).TraceID(1).SpanID(1).Sampled(SamplingNotSampled).Build()
	carrier, set, get := mapCarrier()
	p.Injector(set)(ctx, carrier)
	assert.Equal(t, "00-00000000000000000000000000000001-0000000000000001-00", carrier["traceparent"])

	extracted := p.Extractor(get)(carrier)
	full, _ := extracted.TraceContext()
	assert.Equal(t, SamplingNotSampled, full.Sampled())
}

func TestTextMapExtractMissingHeaderIsEmpty(t *testing.T) {
	p := TextMapPropagation{VendorKey: "dd"}
	_, _, get := mapCarrier()
	extracted := p.Extractor(get)(map[string]string{})
	assert.True(t, extracted.IsEmpty())
}

func TestTextMapExtractMalformedHeaderIsEmpty(t *testing.T) {
	p := TextMapPropagation{VendorKey: "dd"}
	_, _, get := mapCarrier()
	extracted := p.Extractor(get)(map[string]string{"traceparent": "not-a-traceparent"})
	assert.True(t, extracted.IsEmpty())
}

func TestTextMapExtractRejectsZeroSpanID(t *testing.T) {
	p := TextMapPropagation{VendorKey: "dd"}
	_, _, get := mapCarrier()
	header := "00-00000000000000000000000000000001-0000000000000000-01"
	extracted := p.Extractor(get)(map[string]string{"traceparent": header})
	assert.True(t, extracted.IsEmpty())
}

func TestTextMapPropagationKeys(t *testing.T) {
	p := TextMapPropagation{VendorKey: "dd"}
	assert.Equal(t, []string{"traceparent", "tracestate"}, p.Keys())
}

func TestTextMapDoesNotSupportJoin(t *testing.T) {
	p := TextMapPropagation{VendorKey: "dd"}
	assert.False(t, p.SupportsJoin())
	assert.False(t, p.Requires128BitTraceID())
}

func TestTextMapTracestateRoundTrip(t *testing.T) {
	p := TextMapPropagation{VendorKey: "dd"}
	_, _, get := mapCarrier()
	carrier := map[string]string{
		"traceparent": "00-00000000000000000000000000000001-0000000000000002-01",
		"tracestate":  "dd=s:1,other=2",
	}
	extracted := p.Extractor(get)(carrier)
	full, ok := extracted.TraceContext()
	assert.True(t, ok)

	outCarrier, set, _ := mapCarrier()
	p.Injector(set)(full, outCarrier)
	assert.Equal(t, "dd=s:1,other=2", outCarrier["tracestate"])
}

func TestEncodeTraceID64BitIsZeroPaddedTo32Hex(t *testing.T) {
	ctx := NewTraceContextBuilder(nil).TraceID(1).SpanID(1).Build()
	assert.Len(t, encodeTraceID(ctx), 32)
}

func TestEncodeTraceID128Bit(t *testing.T) {
	ctx := NewTraceContextBuilder(nil).TraceIDHigh(0xdead).TraceID(0xbeef).SpanID(1).Build()
	assert.Equal(t, "000000000000dead000000000000beef", encodeTraceID(ctx))
}
