package tracer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextScopedSetGetClose(t *testing.T) {
	cc := NewContextScopedCurrentTraceContext()
	_, ok := cc.Get()
	assert.False(t, ok)

	ctx := NewTraceContextBuilder(nil).Build()
	scope := cc.Set(ctx)
	got, ok := cc.Get()
	assert.True(t, ok)
	assert.True(t, got.Equal(ctx))

	scope.Close()
	_, ok = cc.Get()
	assert.False(t, ok)
}

func TestContextScopedNestedScopesRestorePrevious(t *testing.T) {
	cc := NewContextScopedCurrentTraceContext()
	outer := NewTraceContextBuilder(nil).TraceID(1).SpanID(1).Build()
	inner := NewTraceContextBuilder(nil).TraceID(2).SpanID(2).Build()

	outerScope := cc.Set(outer)
	innerScope := cc.Set(inner)

	got, _ := cc.Get()
	assert.True(t, got.Equal(inner))

	innerScope.Close()
	got, _ = cc.Get()
	assert.True(t, got.Equal(outer))

	outerScope.Close()
	_, ok := cc.Get()
	assert.False(t, ok)
}

func TestContextScopedCloseIsIdempotent(t *testing.T) {
	cc := NewContextScopedCurrentTraceContext()
	ctx := NewTraceContextBuilder(nil).Build()
	scope := cc.Set(ctx)
	scope.Close()
	assert.NotPanics(t, func() { scope.Close() })
}

func TestContextScopedSetZeroValueClearsEvenUnderOuterScope(t *testing.T) {
	cc := NewContextScopedCurrentTraceContext()
	outer := NewTraceContextBuilder(nil).TraceID(1).SpanID(1).Build()

	outerScope := cc.Set(outer)
	clearScope := cc.Set(TraceContext{})

	_, ok := cc.Get()
	assert.False(t, ok, "installing the zero value must read back as no trace, not leak the outer scope")

	clearScope.Close()
	got, ok := cc.Get()
	assert.True(t, ok)
	assert.True(t, got.Equal(outer))

	outerScope.Close()
}

func TestContextWithTraceContextHelpers(t *testing.T) {
	ctx := NewTraceContextBuilder(nil).Build()
	base := ContextWithTraceContext(context.Background(), ctx)
	got, ok := TraceContextFromContext(base)
	assert.True(t, ok)
	assert.True(t, got.Equal(ctx))

	_, ok = TraceContextFromContext(context.Background())
	assert.False(t, ok)
}

func TestStackCurrentTraceContextPerGoroutine(t *testing.T) {
	cc := NewStackCurrentTraceContext()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := NewTraceContextBuilder(nil).TraceID(uint64(i+1)).SpanID(uint64(i+1)).Build()
			scope := cc.Set(ctx)
			defer scope.Close()
			got, ok := cc.Get()
			assert.True(t, ok)
			assert.True(t, got.Equal(ctx))
		}(i)
	}
	wg.Wait()
}

func TestStackCurrentTraceContextLIFO(t *testing.T) {
	cc := NewStackCurrentTraceContext()
	a := NewTraceContextBuilder(nil).TraceID(1).SpanID(1).Build()
	b := NewTraceContextBuilder(nil).TraceID(2).SpanID(2).Build()

	sa := cc.Set(a)
	sb := cc.Set(b)

	got, _ := cc.Get()
	assert.True(t, got.Equal(b))

	sb.Close()
	got, _ = cc.Get()
	assert.True(t, got.Equal(a))

	sa.Close()
	_, ok := cc.Get()
	assert.False(t, ok)
}

func TestStackCurrentTraceContextSetZeroValueClears(t *testing.T) {
	cc := NewStackCurrentTraceContext()
	a := NewTraceContextBuilder(nil).TraceID(1).SpanID(1).Build()

	sa := cc.Set(a)
	clearScope := cc.Set(TraceContext{})

	_, ok := cc.Get()
	assert.False(t, ok)

	clearScope.Close()
	got, ok := cc.Get()
	assert.True(t, ok)
	assert.True(t, got.Equal(a))

	sa.Close()
}

func TestStrictStackPanicsOnMisnestedClose(t *testing.T) {
	cc := NewStrictStackCurrentTraceContext(nil)
	a := NewTraceContextBuilder(nil).TraceID(1).SpanID(1).Build()
	b := NewTraceContextBuilder(nil).TraceID(2).SpanID(2).Build()

	sa := cc.Set(a)
	_ = cc.Set(b)

	assert.Panics(t, func() { sa.Close() })
}
