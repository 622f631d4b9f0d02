// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package tracer

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"

	"github.com/google/uuid"
)

// IDGenerator mints the nonzero trace and span identifiers the tracer needs.
// Implementations must be safe for concurrent use.
type IDGenerator interface {
	// TraceID64 returns a nonzero 64-bit trace id.
	TraceID64() uint64
	// TraceID128 returns a pair of nonzero 64-bit halves for 128-bit mode.
	TraceID128() (high, low uint64)
	// SpanID returns a nonzero span id.
	SpanID() uint64
}

// randomIDGenerator draws identifiers from crypto/rand, falling back to an
// auto-seeded PRNG only if the OS entropy source is unavailable, and from
// uuid.New for the 128-bit case, where a UUIDv4's 122 bits of randomness are
// a convenient, already-available source of two independent 64-bit halves.
type randomIDGenerator struct{}

// NewIDGenerator returns the default IDGenerator.
func NewIDGenerator() IDGenerator { return randomIDGenerator{} }

func (randomIDGenerator) TraceID64() uint64 {
	for {
		if id := randUint64(); id != 0 {
			return id
		}
	}
}

func (randomIDGenerator) SpanID() uint64 {
	for {
		if id := randUint64(); id != 0 {
			return id
		}
	}
}

// TraceID128 regenerates until both halves are nonzero (SPEC_FULL §9 open
// question: safe policy is to regenerate rather than risk a zero high or
// low half colliding with the 64-bit convention).
func (randomIDGenerator) TraceID128() (high, low uint64) {
	for {
		h, l := uuidHalves()
		if h != 0 && l != 0 {
			return h, l
		}
	}
}

func uuidHalves() (high, low uint64) {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[0:8]), binary.BigEndian.Uint64(id[8:16])
}

func randUint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return binary.BigEndian.Uint64(b[:])
	}
	return mrand.Uint64()
}
