package aresdriver

// ReadinessStatus is passed to a readiness callback to say whether the
// socket actually became ready, or whether the handle was shut down /
// errored instead.
type ReadinessStatus struct {
	Err error // nil means "ready"
}

func (s ReadinessStatus) ok() bool { return s.Err == nil }

// PolledFd wraps one stub socket so the request base can register it for
// read/write readiness with whatever poller the host event engine runs,
// without knowing anything about that poller's API.
//
// At most one read arm and at most one write arm may be outstanding at a
// time (spec.md invariant I2); callers are responsible for upholding that,
// PolledFd implementations are not required to guard against double-arming.
type PolledFd interface {
	// RegisterForReadable arms a one-shot read-readiness callback. cb is
	// invoked exactly once, on the event loop, with a non-ok status if the
	// fd was shut down or errored before becoming readable.
	RegisterForReadable(cb func(ReadinessStatus))

	// RegisterForWritable is RegisterForReadable for the write direction.
	RegisterForWritable(cb func(ReadinessStatus))

	// IsStillReadable reports whether another read is likely to return
	// data immediately, used to drain a socket in a tight loop without
	// waiting for a fresh readiness callback.
	IsStillReadable() bool

	// Shutdown is idempotent. After it returns, any callback delivered for
	// an arm already outstanding must carry a non-ok status, and further
	// Register* calls are rejected.
	Shutdown(err error)

	// WrappedSocket returns the integer handle the stub knows this fd by.
	WrappedSocket() SocketHandle

	// Name returns a short debug string, e.g. for log lines.
	Name() string
}

// PolledFdFactory mints PolledFds bound to the host poller. NewPolledFd is
// called once per newly observed stub socket; the factory is expected to
// call the supplied registerCB so the host poll mechanism learns about the
// descriptor (spec.md §6.3).
type PolledFdFactory interface {
	NewPolledFd(socket SocketHandle, registerCB func(SocketHandle, PolledFd)) PolledFd
}
