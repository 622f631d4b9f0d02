// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package tracer

// Propagation is a factory for a wire codec over an arbitrary carrier type.
// Concrete header formats (HTTP headers, gRPC metadata, Kafka headers, ...)
// are out of scope for the core (SPEC_FULL §1); this interface only
// describes the shape every such codec must expose.
type Propagation[C any] interface {
	// Keys lists the header/field names this codec owns.
	Keys() []string
	// Injector binds a setter for carrier type C into an inject function.
	Injector(set func(carrier C, key, value string)) func(ctx TraceContext, carrier C)
	// Extractor binds a getter for carrier type C into an extract function.
	Extractor(get func(carrier C, key string) (string, bool)) func(carrier C) TraceContextOrSamplingFlags
	// SupportsJoin reports whether this wire format carries the
	// single-span-id convention (shared client/server span). When false,
	// Tracer.JoinSpan degrades to Tracer.NewChild.
	SupportsJoin() bool
	// Requires128BitTraceID reports whether this format requires 128-bit
	// trace ids (e.g. because the wire format reserves 32 hex chars).
	Requires128BitTraceID() bool
}

// PropagationFactoryConfig are the knobs SPEC_FULL §6 names for a
// Propagation factory.
type PropagationFactoryConfig struct {
	SupportsJoin  bool
	Require128Bit bool
}
