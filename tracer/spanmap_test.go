package tracer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanMapGetOrCreateIsIdempotent(t *testing.T) {
	sm := NewSpanMap()
	ctx := NewTraceContextBuilder(nil).Build()
	a := sm.GetOrCreate(ctx, SystemClock)
	b := sm.GetOrCreate(ctx, SystemClock)
	assert.Same(t, a, b)
}

func TestSpanMapGetOrCreateConcurrentConvergesOnOneWinner(t *testing.T) {
	sm := NewSpanMap()
	ctx := NewTraceContextBuilder(nil).Build()
	var wg sync.WaitGroup
	results := make([]*MutableSpan, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = sm.GetOrCreate(ctx, SystemClock)
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestSpanMapRemoveIsIdempotent(t *testing.T) {
	sm := NewSpanMap()
	ctx := NewTraceContextBuilder(nil).Build()
	sm.GetOrCreate(ctx, SystemClock)

	first, ok := sm.Remove(ctx)
	assert.True(t, ok)
	assert.NotNil(t, first)

	second, ok := sm.Remove(ctx)
	assert.False(t, ok)
	assert.Nil(t, second)
}

func TestSpanMapSnapshot(t *testing.T) {
	sm := NewSpanMap()
	a := NewTraceContextBuilder(nil).Build()
	b := NewTraceContextBuilder(nil).Build()
	sm.GetOrCreate(a, SystemClock)
	sm.GetOrCreate(b, SystemClock)
	assert.Len(t, sm.Snapshot(), 2)
}

func TestSpanMapDistinguishes64And128Bit(t *testing.T) {
	sm := NewSpanMap()
	narrow := NewTraceContextBuilder(nil).TraceID(1).SpanID(1).Build()
	wide := NewTraceContextBuilder(nil).TraceIDHigh(9).TraceID(1).SpanID(1).Build()
	a := sm.GetOrCreate(narrow, SystemClock)
	b := sm.GetOrCreate(wide, SystemClock)
	assert.NotSame(t, a, b)
}
