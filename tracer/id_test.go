package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomIDGeneratorNeverZero(t *testing.T) {
	gen := NewIDGenerator()
	for i := 0; i < 1000; i++ {
		assert.NotZero(t, gen.TraceID64())
		assert.NotZero(t, gen.SpanID())
		high, low := gen.TraceID128()
		assert.NotZero(t, high)
		assert.NotZero(t, low)
	}
}

func TestRandomIDGeneratorLooksRandom(t *testing.T) {
	gen := NewIDGenerator()
	seen := map[uint64]bool{}
	for i := 0; i < 100; i++ {
		id := gen.TraceID64()
		assert.False(t, seen[id], "id %d repeated", id)
		seen[id] = true
	}
}
