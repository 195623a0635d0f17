package aresdriver

import "time"

// TaskHandle identifies a pending RunAfter timer so it can be Cancelled.
type TaskHandle uint64

// EventEngine is the host collaborator this driver uses for both deferred
// execution (posting user callbacks outside the request lock) and the two
// internal timers (deadline, backup poll). Implementations are assumed
// thread-safe and able to dispatch on arbitrary worker goroutines.
type EventEngine interface {
	// Run posts fn to run on the engine, outside of any caller-held lock.
	Run(fn func())

	// RunAfter arms fn to run once, after d elapses.
	RunAfter(d time.Duration, fn func()) TaskHandle

	// Cancel attempts to cancel a pending RunAfter. It returns true iff
	// the callback had not yet started running and will now never run.
	Cancel(h TaskHandle) bool
}
