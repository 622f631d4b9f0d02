package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlwaysAndNeverSample(t *testing.T) {
	assert.True(t, AlwaysSample.Sample(1))
	assert.True(t, AlwaysSample.Sample(0))
	assert.False(t, NeverSample.Sample(1))
}

func TestNewRateSamplerBoundary(t *testing.T) {
	assert.False(t, NewRateSampler(0).Sample(^uint64(0)))
	assert.False(t, NewRateSampler(-1).Sample(^uint64(0)))
	assert.True(t, NewRateSampler(1).Sample(0))
	assert.True(t, NewRateSampler(2).Sample(^uint64(0)))
}

func TestNewRateSamplerDeterministic(t *testing.T) {
	s := NewRateSampler(0.5)
	for _, id := range []uint64{1, 42, 1 << 40, ^uint64(0)} {
		first := s.Sample(id)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, s.Sample(id))
		}
	}
}

func TestRateLimitedSamplerRejectsWhenInnerRejects(t *testing.T) {
	s := NewRateLimitedSampler(NeverSample, 100)
	assert.False(t, s.Sample(1))
}

func TestRateLimitedSamplerCapsThroughput(t *testing.T) {
	s := NewRateLimitedSampler(AlwaysSample, 1)
	allowed := 0
	for i := 0; i < 10; i++ {
		if s.Sample(uint64(i)) {
			allowed++
		}
	}
	assert.Less(t, allowed, 10)
	assert.GreaterOrEqual(t, allowed, 1)
}
