// Package aresdriver implements the core of an asynchronous DNS resolver
// driver on top of a synchronous, socket-exposing stub resolver library.
//
// A Request is created for one of three query kinds (hostname, SRV, TXT),
// started exactly once, and may be cancelled at any point before its
// completion callback fires. The driver owns the bookkeeping needed to
// turn the stub's socket-driven state machine into fd-readiness-driven,
// cancellable, deadline-bounded async calls, including RFC 6724 address
// sorting for hostname lookups.
//
// The stub resolver library, the host event engine and poller, and
// address-literal parsing are all externalized behind small interfaces
// (Stub, EventEngine, PolledFd/PolledFdFactory, AddressLiteralParser) so
// this package has no knowledge of any particular resolver backend.
package aresdriver
