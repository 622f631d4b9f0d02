package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tracemesh/tracemesh/internal/log"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := newConfig()
	assert.NotNil(t, cfg.sampler)
	assert.NotNil(t, cfg.idGenerator)
	assert.NotNil(t, cfg.clock)
	assert.NotNil(t, cfg.reporter)
	assert.NotNil(t, cfg.currentTraceContext)
	assert.True(t, cfg.supportsJoin)
	assert.False(t, cfg.use128BitTraceID)
}

func TestWithServiceNameSetsLocalEndpoint(t *testing.T) {
	tr := New(WithServiceName("checkout"))
	defer tr.Close()
	assert.Equal(t, "checkout", tr.cfg.localEndpoint.ServiceName)
}

func TestWithLocalEndpointOverwritesServiceName(t *testing.T) {
	tr := New(WithServiceName("ignored"), WithLocalEndpoint(Endpoint{ServiceName: "checkout", Port: 8080}))
	defer tr.Close()
	assert.Equal(t, "checkout", tr.cfg.localEndpoint.ServiceName)
	assert.Equal(t, uint16(8080), tr.cfg.localEndpoint.Port)
}

func TestWithLoggerSwapsPackageLogger(t *testing.T) {
	rl := &log.RecordLogger{}
	tr := New(WithLogger(rl))
	defer tr.Close()
	log.Warn("hello")
	assert.Len(t, rl.Logs(), 1)
}

func TestWithPropagationSeedsSupportsJoinAndTraceIDWidth(t *testing.T) {
	tr := New(WithPropagation(TextMapPropagation{VendorKey: "tm"}))
	defer tr.Close()
	assert.False(t, tr.cfg.supportsJoin, "TextMapPropagation.SupportsJoin() is false, so JoinSpan must degrade to NewChild")
	assert.False(t, tr.cfg.use128BitTraceID)
}

func TestWithPropagationDrivesJoinSpanDegradeThroughTracer(t *testing.T) {
	tr := New(WithSampler(AlwaysSample), WithPropagation(TextMapPropagation{VendorKey: "tm"}))
	defer tr.Close()

	carrier := map[string]string{}
	remote := NewTraceContextBuilder(nil).TraceID(10).SpanID(20).Sampled(SamplingSampled).Build()
	inject := TextMapPropagation{VendorKey: "tm"}.Injector(func(m map[string]string, k, v string) { m[k] = v })
	inject(remote, carrier)

	extract := TextMapPropagation{VendorKey: "tm"}.Extractor(func(m map[string]string, k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	})
	extracted := extract(carrier)

	joined := tr.JoinSpan(extracted)
	assert.NotEqual(t, remote.SpanID(), joined.Context().SpanID())
	p, ok := joined.Context().ParentID()
	assert.True(t, ok)
	assert.Equal(t, remote.SpanID(), p)
	assert.False(t, joined.Context().Shared())
}

func TestWithFinishedSpanHandlerAccumulates(t *testing.T) {
	var got []ReportedSpan
	tr := New(WithSampler(AlwaysSample),
		WithFinishedSpanHandler(func(rs ReportedSpan) { got = append(got, rs) }),
		WithFinishedSpanHandler(func(rs ReportedSpan) { got = append(got, rs) }),
	)
	defer tr.Close()
	s := tr.NewTrace()
	s.Finish()
	assert.Len(t, got, 2)
}
