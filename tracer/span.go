// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package tracer

import (
	"net"
	"sync"
)

// Kind classifies a span's role in a request, matching SPEC_FULL §3.
type Kind int8

const (
	// KindLocal is an in-process operation with no remote counterpart.
	KindLocal Kind = iota
	KindClient
	KindServer
	KindProducer
	KindConsumer
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "CLIENT"
	case KindServer:
		return "SERVER"
	case KindProducer:
		return "PRODUCER"
	case KindConsumer:
		return "CONSUMER"
	default:
		return ""
	}
}

// Endpoint names a service instance, local or remote.
type Endpoint struct {
	ServiceName string `json:"serviceName,omitempty"`
	IPv4        net.IP `json:"ipv4,omitempty"`
	IPv6        net.IP `json:"ipv6,omitempty"`
	Port        uint16 `json:"port,omitempty"`
}

// Span is the user-facing handle for an in-flight operation. It is either
// Real (backed by a MutableSpan and routed to a Reporter on Finish) or Noop
// (carries only a context, every mutator is a cheap no-op).
type Span interface {
	// Context returns this span's identifiers. Valid even on a Noop span.
	Context() TraceContext
	// IsNoop reports whether this span records anything.
	IsNoop() bool

	Name(name string)
	Kind(kind Kind)
	Tag(key, value string)
	// Metric records a last-write-wins numeric measurement, distinct from
	// the string Tags map.
	Metric(key string, value float64)
	Annotate(value string)
	AnnotateAt(timestamp int64, value string)
	RemoteEndpoint(ep Endpoint)
	Error(err error)
	// AddSpanLink attaches a reference to another (possibly unrelated)
	// trace context, reported alongside this span on Finish.
	AddSpanLink(c TraceContext)
	// Finish marks the span complete, converts it, and hands it to the
	// Reporter. Idempotent: a second call is a no-op.
	Finish()
}

// annotation is a single timestamped event on a span.
type annotation struct {
	Timestamp int64
	Value     string
}

// MutableSpan is the accumulator backing a Real span while it is in flight.
// Every field is guarded by mu so that concurrent mutation from multiple
// goroutines (permitted by SPEC_FULL §5) is safe; the tracer never holds
// this lock while calling out to a Reporter.
type MutableSpan struct {
	mu sync.Mutex

	ctx   TraceContext
	clock Clock

	name           string
	kind           Kind
	start          int64
	finish         int64
	finished       bool
	annotations    []annotation
	tags           map[string]string
	metrics        map[string]float64
	remoteEndpoint *Endpoint
	err            error
	spanLinks      []TraceContext
}

func newMutableSpan(ctx TraceContext, clock Clock) *MutableSpan {
	return &MutableSpan{ctx: ctx, clock: clock, start: clock()}
}

func (m *MutableSpan) setName(name string) {
	m.mu.Lock()
	m.name = name
	m.mu.Unlock()
}

func (m *MutableSpan) setKind(k Kind) {
	m.mu.Lock()
	m.kind = k
	m.mu.Unlock()
}

func (m *MutableSpan) setTag(key, value string) {
	m.mu.Lock()
	if m.tags == nil {
		m.tags = map[string]string{}
	}
	m.tags[key] = value
	m.mu.Unlock()
}

// setMetric records a last-write-wins numeric measurement, distinct from the
// string tags map (SPEC_FULL §3.1, grounded on the teacher's Meta/Metrics
// split).
func (m *MutableSpan) setMetric(key string, value float64) {
	m.mu.Lock()
	if m.metrics == nil {
		m.metrics = map[string]float64{}
	}
	m.metrics[key] = value
	m.mu.Unlock()
}

func (m *MutableSpan) annotate(ts int64, value string) {
	m.mu.Lock()
	m.annotations = append(m.annotations, annotation{Timestamp: ts, Value: value})
	m.mu.Unlock()
}

func (m *MutableSpan) setRemoteEndpoint(ep Endpoint) {
	m.mu.Lock()
	e := ep
	m.remoteEndpoint = &e
	m.mu.Unlock()
}

func (m *MutableSpan) setError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MutableSpan) addSpanLink(c TraceContext) {
	m.mu.Lock()
	m.spanLinks = append(m.spanLinks, c)
	m.mu.Unlock()
}

// markFinished stamps the finish timestamp and reports whether this call won
// the race to finish (false means the span was already finished).
func (m *MutableSpan) markFinished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return false
	}
	m.finished = true
	m.finish = m.clock()
	return true
}

// realSpan is the Real variant of Span.
type realSpan struct {
	ctx    TraceContext
	ms     *MutableSpan
	tracer *Tracer
}

func (s *realSpan) Context() TraceContext { return s.ctx }
func (s *realSpan) IsNoop() bool          { return false }

func (s *realSpan) Name(name string)                  { s.ms.setName(name) }
func (s *realSpan) Kind(k Kind)                        { s.ms.setKind(k) }
func (s *realSpan) Tag(key, value string)              { s.ms.setTag(key, value) }
func (s *realSpan) Metric(key string, value float64)   { s.ms.setMetric(key, value) }
func (s *realSpan) Annotate(value string)              { s.ms.annotate(s.ms.clock(), value) }
func (s *realSpan) AnnotateAt(ts int64, value string)  { s.ms.annotate(ts, value) }
func (s *realSpan) RemoteEndpoint(ep Endpoint)         { s.ms.setRemoteEndpoint(ep) }
func (s *realSpan) Error(err error)                    { s.ms.setError(err) }
func (s *realSpan) AddSpanLink(c TraceContext)         { s.ms.addSpanLink(c) }

func (s *realSpan) Finish() {
	s.tracer.finishSpan(s.ctx, s.ms)
}

// noopSpan carries a context for id propagation but records nothing. All
// mutators are inlinable no-ops (SPEC_FULL §1: "a cheap no-op path").
type noopSpan struct {
	ctx TraceContext
}

func (s noopSpan) Context() TraceContext   { return s.ctx }
func (s noopSpan) IsNoop() bool            { return true }
func (noopSpan) Name(string)               {}
func (noopSpan) Kind(Kind)                 {}
func (noopSpan) Tag(string, string)        {}
func (noopSpan) Metric(string, float64)    {}
func (noopSpan) Annotate(string)           {}
func (noopSpan) AnnotateAt(int64, string)  {}
func (noopSpan) RemoteEndpoint(Endpoint)   {}
func (noopSpan) Error(error)               {}
func (noopSpan) AddSpanLink(TraceContext)  {}
func (noopSpan) Finish()                   {}

// SpanLinkRef is the reported form of a span link: the linked context's
// identifiers, rendered the same way ReportedSpan itself renders TraceID/ID
// (hex, width per SPEC_FULL §6, never the raw TraceContext — its fields
// are unexported and it carries no JSON encoding of its own).
type SpanLinkRef struct {
	TraceID string `json:"traceId"`
	SpanID  string `json:"spanId"`
}

// ReportedSpan is the total, defaulted conversion of a finished MutableSpan
// handed to a Reporter (SPEC_FULL §4.4.1). Field order matches the json tags
// deliberately: Tracer.String's in-flight diagnostic (SPEC_FULL §8 S5) fixes
// an exact key order, and encoding/json preserves struct declaration order.
type ReportedSpan struct {
	TraceID        string             `json:"traceId"`
	ID             string             `json:"id"`
	ParentID       string             `json:"parentId,omitempty"`
	Timestamp      int64              `json:"timestamp"`
	Duration       int64              `json:"duration,omitempty"`
	Name           string             `json:"name,omitempty"`
	Kind           string             `json:"kind,omitempty"`
	LocalEndpoint  Endpoint           `json:"localEndpoint"`
	RemoteEndpoint *Endpoint          `json:"remoteEndpoint,omitempty"`
	Tags           map[string]string  `json:"tags,omitempty"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
	SpanLinks      []SpanLinkRef      `json:"spanLinks,omitempty"`
	Debug          bool               `json:"debug,omitempty"`
	Shared         bool               `json:"shared,omitempty"`
	Error          string             `json:"error,omitempty"`
}
