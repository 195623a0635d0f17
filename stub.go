package aresdriver

import (
	"net"

	"github.com/astracat-corp/aresdriver/internal/stuberrors"
)

// SocketHandle is the integer socket handle the stub hands back; it has no
// meaning to this package beyond identity and is passed straight through to
// PolledFdFactory and back into ProcessFD.
type SocketHandle int

// SocketInterest describes one socket the stub currently cares about and
// which directions of readiness it wants notified.
type SocketInterest struct {
	Socket   SocketHandle
	Readable bool
	Writable bool
}

// Family distinguishes the two hostname sub-queries a HostnameRequest may
// issue.
type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

func (f Family) String() string {
	if f == FamilyIPv6 {
		return "AAAA"
	}
	return "A"
}

// HostResult is delivered to the callback passed to Stub.LookupHost.
type HostResult struct {
	Addrs []net.IP
	Err   error
}

// SRVRecord is one entry of a parsed SRV reply, in stub-delivered order.
type SRVRecord struct {
	Host     string
	Port     uint16
	Priority uint16
	Weight   uint16
}

// SRVResult is delivered to the callback passed to Stub.LookupSRV.
type SRVResult struct {
	Records []SRVRecord
	Err     error
}

// TXTRecord is one character-string of a parsed TXT reply. RecordStart is
// true for the first character-string of each RR in the reply (the stub's
// "extended" TXT reply shape distinguishes RR boundaries from the
// individual character-strings within one RR).
type TXTRecord struct {
	Text        string
	RecordStart bool
}

// TXTResult is delivered to the callback passed to Stub.LookupTXT.
type TXTResult struct {
	Records []TXTRecord
	Err     error
}

// Stub is the documented C-API-surface contract this driver assumes of the
// underlying synchronous stub resolver library. It is intentionally small:
// everything it exposes is either a non-blocking socket-driven operation or
// a callback the stub may invoke inline (even before the call that
// triggered it returns) or later from ProcessFD.
//
// Implementations must tolerate ProcessFD being called with the same
// handle for both readFD and writeFD during the backup-poll tick (spec open
// question: "the stub is known to tolerate this").
type Stub interface {
	// Sockets returns every socket the stub currently wants read and/or
	// write readiness for. Unlike the C API this has no fixed upper bound;
	// callers loop over the full returned slice.
	Sockets() []SocketInterest

	// ProcessFD advances the stub's state machine for the given sockets.
	// Pass NoSocket for whichever direction did not fire.
	ProcessFD(readFD, writeFD SocketHandle)

	// Cancel forces every outstanding query to complete with a cancelled
	// error, delivered through the same callbacks LookupHost/SRV/TXT were
	// given.
	Cancel()

	// Destroy releases the channel. Idempotent.
	Destroy()

	// SetServer pins the channel to a single upstream server, setting both
	// its TCP and UDP ports, per spec.md §6.5.
	SetServer(host string, port uint16) error

	// LookupHost issues a single-family address lookup.
	LookupHost(name string, family Family, onDone func(HostResult))

	// LookupSRV issues a class-IN SRV query.
	LookupSRV(name string, onDone func(SRVResult))

	// LookupTXT issues a class-IN TXT query.
	LookupTXT(name string, onDone func(TXTResult))
}

// NoSocket is passed to ProcessFD for whichever direction did not fire.
const NoSocket SocketHandle = -1

// ErrStubNotFound is the sentinel a Stub implementation should wrap (via
// fmt.Errorf("%w", ...) or similar) when it can say definitively that a
// record does not exist, distinguishing that case from a generic failure.
var ErrStubNotFound = stuberrors.ErrNotFound

// StubFactory constructs a fresh Stub channel, analogous to ares_init with
// the "stay open" option. The package var newStub holds the factory the
// Create*Request functions use; each build-tag-gated backend file sets it,
// and tests pass their own factory to initRequest instead.
type StubFactory func() (Stub, error)
