// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package tracer

import "time"

// Clock returns the current time in microseconds since the Unix epoch. The
// tracer never assumes monotonicity beyond what the supplied Clock provides
// (SPEC_FULL §7): a backward jump simply produces a zero or negative span
// duration.
type Clock func() int64

// SystemClock is the default Clock, backed by the system wall clock at
// microsecond resolution.
func SystemClock() int64 {
	return time.Now().UnixMicro()
}
