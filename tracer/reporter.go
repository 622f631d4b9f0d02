// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package tracer

import (
	"fmt"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/tracemesh/tracemesh/internal/log"
)

// Reporter is the sink a finished span is handed to (SPEC_FULL §4.4.1,
// "Finished-span conversion"). On-the-wire encoding of a ReportedSpan is out
// of scope for the core; a Reporter is free to serialize it however its
// backend requires.
type Reporter interface {
	Report(span ReportedSpan)
	fmt.Stringer
}

// nopReporter discards every span.
type nopReporter struct{}

// NewNopReporter returns a Reporter that discards everything, the default
// when no reporter is configured.
func NewNopReporter() Reporter { return nopReporter{} }

func (nopReporter) Report(ReportedSpan) {}
func (nopReporter) String() string       { return "NoopReporter()" }

// loggingReporter logs every span at debug level through internal/log,
// grounded on the teacher's pattern of a debug-only diagnostic sink.
type loggingReporter struct{}

// NewLoggingReporter returns a Reporter that logs each span via internal/log.
func NewLoggingReporter() Reporter { return loggingReporter{} }

func (loggingReporter) Report(span ReportedSpan) {
	log.Debug("reported span: traceId=%s id=%s name=%q", span.TraceID, span.ID, span.Name)
}

func (loggingReporter) String() string { return "LoggingReporter()" }

// multiReporter fans a single span out to every delegate reporter.
type multiReporter struct {
	delegates []Reporter
}

// NewMultiReporter returns a Reporter that reports to every delegate in
// order. A panic in one delegate is not caught; reporters are expected not
// to panic.
func NewMultiReporter(delegates ...Reporter) Reporter {
	return &multiReporter{delegates: delegates}
}

func (m *multiReporter) Report(span ReportedSpan) {
	for _, d := range m.delegates {
		d.Report(span)
	}
}

func (m *multiReporter) String() string {
	s := "MultiReporter("
	for i, d := range m.delegates {
		if i > 0 {
			s += ", "
		}
		s += d.String()
	}
	return s + ")"
}

// StatsReporter decorates a delegate Reporter with span-count and
// span-duration metrics emitted through a statsd client (SPEC_FULL §1.2
// domain-stack wiring for github.com/DataDog/datadog-go/v5/statsd). Metrics
// emission failures are logged, not propagated: a broken stats pipe must
// never block span reporting.
type StatsReporter struct {
	delegate Reporter
	client   statsd.ClientInterface
	tags     []string
}

// NewStatsReporter wraps delegate, emitting "tracer.spans_finished" (count)
// and "tracer.span_duration" (distribution, microseconds) for every report.
func NewStatsReporter(delegate Reporter, client statsd.ClientInterface, tags ...string) *StatsReporter {
	if delegate == nil {
		delegate = NewNopReporter()
	}
	return &StatsReporter{delegate: delegate, client: client, tags: tags}
}

func (r *StatsReporter) Report(span ReportedSpan) {
	if r.client != nil {
		if err := r.client.Incr("tracer.spans_finished", r.tags, 1); err != nil {
			log.Warn("statsd incr failed: %s", err)
		}
		if span.Duration > 0 {
			if err := r.client.Distribution("tracer.span_duration", float64(span.Duration), r.tags, 1); err != nil {
				log.Warn("statsd distribution failed: %s", err)
			}
		}
	}
	r.delegate.Report(span)
}

func (r *StatsReporter) String() string {
	return fmt.Sprintf("StatsReporter(%s)", r.delegate)
}
