// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package tracer

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"sync"

	"github.com/tracemesh/tracemesh/internal/log"
)

// Scope closes over whatever CurrentTraceContext did to make a context
// current, undoing it exactly once.
type Scope interface {
	// Close restores the previous current trace context. Idempotent.
	Close()
}

// CurrentTraceContext models "the trace context of the operation running on
// this thread right now" (SPEC_FULL §4.5). The teacher's own ecosystem is
// goroutine-oblivious Java thread-locals; Go has no thread-local storage, so
// two implementations are provided: ContextScopedCurrentTraceContext is the
// idiomatic default (thread the value through context.Context), and
// StackCurrentTraceContext is a literal translation of the thread-local
// stack semantics for call sites that cannot plumb a context.Context.
type CurrentTraceContext interface {
	// Get returns the current trace context, or the zero value and false if
	// none is set.
	Get() (TraceContext, bool)
	// Set installs ctx as current and returns a Scope that restores whatever
	// was current before. ctx may be the zero value to install "no trace".
	Set(ctx TraceContext) Scope
}

type noopScope struct{}

func (noopScope) Close() {}

// --- context.Context-scoped implementation -------------------------------

type currentTraceContextKey struct{}

// ContextScopedCurrentTraceContext is the idiomatic default: current state
// lives in a context.Context value, scoped exactly like the teacher's own
// span-in-context helpers. Get/Set here operate against a single
// context.Context held by the value, seeded with context.Background() by
// NewContextScopedCurrentTraceContext; most callers should instead
// use the package-level ContextWithTraceContext / TraceContextFromContext
// helpers directly, since that's how Go code actually threads request
// scope.
type ContextScopedCurrentTraceContext struct {
	mu  sync.Mutex
	ctx context.Context
}

// NewContextScopedCurrentTraceContext returns an implementation seeded with
// context.Background().
func NewContextScopedCurrentTraceContext() *ContextScopedCurrentTraceContext {
	return &ContextScopedCurrentTraceContext{ctx: context.Background()}
}

func (c *ContextScopedCurrentTraceContext) Get() (TraceContext, bool) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	return TraceContextFromContext(ctx)
}

func (c *ContextScopedCurrentTraceContext) Set(tc TraceContext) Scope {
	c.mu.Lock()
	prev := c.ctx
	c.ctx = ContextWithTraceContext(prev, tc)
	cur := c.ctx
	c.mu.Unlock()
	return &contextScope{owner: c, prev: prev, installed: cur}
}

type contextScope struct {
	owner     *ContextScopedCurrentTraceContext
	prev      context.Context
	installed context.Context
	closed    bool
}

func (s *contextScope) Close() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.owner.ctx == s.installed {
		s.owner.ctx = s.prev
	}
}

// isZeroTraceContext reports whether tc is the zero value, i.e. the "no
// trace" sentinel documented on CurrentTraceContext.Set. A real TraceContext
// always carries a nonzero TraceID and SpanID (TraceContextBuilder.Build
// regenerates either if left unset), so this is unambiguous.
func isZeroTraceContext(tc TraceContext) bool {
	return tc.traceID == 0 && tc.spanID == 0
}

// tcSlot is what actually gets stored under currentTraceContextKey. present
// distinguishes "explicitly cleared to no trace" (tc is the zero value) from
// "key absent entirely" — both must make TraceContextFromContext report
// ok=false, but only the former needs to shadow whatever an outer context
// had installed.
type tcSlot struct {
	tc      TraceContext
	present bool
}

// ContextWithTraceContext returns a copy of parent carrying tc as the
// current trace context. Passing the zero TraceContext installs "no trace",
// shadowing anything parent already carried, per CurrentTraceContext.Set's
// documented contract.
func ContextWithTraceContext(parent context.Context, tc TraceContext) context.Context {
	return context.WithValue(parent, currentTraceContextKey{}, tcSlot{tc: tc, present: !isZeroTraceContext(tc)})
}

// TraceContextFromContext extracts the trace context installed by
// ContextWithTraceContext, if any.
func TraceContextFromContext(ctx context.Context) (TraceContext, bool) {
	if ctx == nil {
		return TraceContext{}, false
	}
	slot, ok := ctx.Value(currentTraceContextKey{}).(tcSlot)
	if !ok || !slot.present {
		return TraceContext{}, false
	}
	return slot.tc, true
}

// --- goroutine-local stack implementation --------------------------------

// StackCurrentTraceContext is a literal translation of a thread-local stack:
// each goroutine gets its own LIFO stack of trace contexts, keyed by
// goroutine id (parsed out of runtime.Stack, the only handle Go exposes for
// this — there is no public goroutine-id API, so this is the ambient
// stdlib fallback the teacher's model requires). Prefer
// ContextScopedCurrentTraceContext unless translating call sites that
// assume ambient thread-local state.
type StackCurrentTraceContext struct {
	mu     sync.Mutex
	stacks map[int64][]TraceContext
}

// NewStackCurrentTraceContext returns an empty goroutine-local stack.
func NewStackCurrentTraceContext() *StackCurrentTraceContext {
	return &StackCurrentTraceContext{stacks: map[int64][]TraceContext{}}
}

func (s *StackCurrentTraceContext) Get() (TraceContext, bool) {
	gid := goroutineID()
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stacks[gid]
	if len(st) == 0 {
		return TraceContext{}, false
	}
	top := st[len(st)-1]
	if isZeroTraceContext(top) {
		// Set(TraceContext{}) was used to install "no trace" at this depth.
		return TraceContext{}, false
	}
	return top, true
}

func (s *StackCurrentTraceContext) Set(tc TraceContext) Scope {
	gid := goroutineID()
	s.mu.Lock()
	s.stacks[gid] = append(s.stacks[gid], tc)
	depth := len(s.stacks[gid])
	s.mu.Unlock()
	return &stackScope{owner: s, gid: gid, depth: depth}
}

type stackScope struct {
	owner  *StackCurrentTraceContext
	gid    int64
	depth  int
	closed bool
}

func (sc *stackScope) Close() {
	sc.owner.mu.Lock()
	defer sc.owner.mu.Unlock()
	if sc.closed {
		return
	}
	sc.closed = true
	st := sc.owner.stacks[sc.gid]
	if len(st) != sc.depth {
		// Mis-nested close: something else mutated this goroutine's stack
		// out of order. Pop down to just below our depth rather than
		// corrupt the stack further; StrictStackCurrentTraceContext turns
		// this into a hard failure instead.
		log.Warn("trace context scope closed out of order at depth %d, stack depth %d", sc.depth, len(st))
		if sc.depth-1 < len(st) {
			st = st[:sc.depth-1]
		}
	} else {
		st = st[:sc.depth-1]
	}
	if len(st) == 0 {
		delete(sc.owner.stacks, sc.gid)
	} else {
		sc.owner.stacks[sc.gid] = st
	}
}

// goroutineID parses the numeric id out of the current goroutine's stack
// trace header ("goroutine 123 [running]:"). This is the same trick
// runtime-introspection libraries in the ecosystem use in the absence of a
// public API; it is for diagnostics and this stack emulation only, never for
// scheduling decisions.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return 0
	}
	b = b[len(prefix):]
	i := bytes.IndexByte(b, ' ')
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseInt(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// --- strict decorator ------------------------------------------------------

// StrictStackCurrentTraceContext wraps a StackCurrentTraceContext and
// upgrades mis-nested Close calls from a logged warning to a panic,
// matching SPEC_FULL §4.5's "strict variant" for tests that must catch
// scope leaks.
type StrictStackCurrentTraceContext struct {
	inner *StackCurrentTraceContext
}

// NewStrictStackCurrentTraceContext wraps inner (or a fresh stack, if nil).
func NewStrictStackCurrentTraceContext(inner *StackCurrentTraceContext) *StrictStackCurrentTraceContext {
	if inner == nil {
		inner = NewStackCurrentTraceContext()
	}
	return &StrictStackCurrentTraceContext{inner: inner}
}

func (s *StrictStackCurrentTraceContext) Get() (TraceContext, bool) {
	return s.inner.Get()
}

func (s *StrictStackCurrentTraceContext) Set(tc TraceContext) Scope {
	gid := goroutineID()
	s.inner.mu.Lock()
	s.inner.stacks[gid] = append(s.inner.stacks[gid], tc)
	depth := len(s.inner.stacks[gid])
	s.inner.mu.Unlock()
	return &strictStackScope{owner: s.inner, gid: gid, depth: depth}
}

type strictStackScope struct {
	owner  *StackCurrentTraceContext
	gid    int64
	depth  int
	closed bool
}

func (sc *strictStackScope) Close() {
	sc.owner.mu.Lock()
	defer sc.owner.mu.Unlock()
	if sc.closed {
		return
	}
	sc.closed = true
	st := sc.owner.stacks[sc.gid]
	if len(st) != sc.depth {
		panic("tracer: trace context scope closed out of order")
	}
	st = st[:sc.depth-1]
	if len(st) == 0 {
		delete(sc.owner.stacks, sc.gid)
	} else {
		sc.owner.stacks[sc.gid] = st
	}
}
