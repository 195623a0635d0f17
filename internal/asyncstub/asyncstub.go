// Package asyncstub bridges a blocking-but-non-reentrant resolver backend
// (an Exchanger) into the fd-driven, non-blocking Stub contract the driver
// assumes. It runs each lookup on its own goroutine and wakes a self-pipe
// when a result is ready, so the driver's ordinary socket-tracking loop
// picks up the completion the same way it would a real stub socket going
// readable.
package asyncstub

import (
	"context"
	"net"
	"os"
	"sync"
	"time"
)

// Family mirrors the two address families a hostname lookup may ask for.
type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

// HostResult is the outcome of one Exchanger.LookupHost call.
type HostResult struct {
	Addrs []net.IP
	Err   error
}

// SRVRecord is one SRV answer.
type SRVRecord struct {
	Host     string
	Port     uint16
	Priority uint16
	Weight   uint16
}

// SRVResult is the outcome of one Exchanger.LookupSRV call.
type SRVResult struct {
	Records []SRVRecord
	Err     error
}

// TXTRecord is one character-string of a TXT reply.
type TXTRecord struct {
	Text        string
	RecordStart bool
}

// TXTResult is the outcome of one Exchanger.LookupTXT call.
type TXTResult struct {
	Records []TXTRecord
	Err     error
}

// SocketInterest is the one self-pipe socket this bridge ever reports.
type SocketInterest struct {
	Socket   int
	Readable bool
	Writable bool
}

// Exchanger is the synchronous resolver this bridge fronts. Implementations
// should respect ctx cancellation so Bridge.Cancel can unblock in-flight
// calls promptly.
type Exchanger interface {
	LookupHost(ctx context.Context, name string, family Family) HostResult
	LookupSRV(ctx context.Context, name string) SRVResult
	LookupTXT(ctx context.Context, name string) TXTResult
	SetServer(host string, port uint16) error
	Close()
}

type kind int

const (
	kindHost kind = iota
	kindSRV
	kindTXT
)

type pendingResult struct {
	kind kind
	host func(HostResult)
	srv  func(SRVResult)
	txt  func(TXTResult)

	hostRes HostResult
	srvRes  SRVResult
	txtRes  TXTResult
}

// Bridge adapts an Exchanger to a Stub-shaped, fd-driven API.
type Bridge struct {
	ex     Exchanger
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	readFD   *os.File
	writeFD  *os.File
	pending  []pendingResult
	inFlight int
	closed   bool
}

// New creates a Bridge fronting ex. The self-pipe is opened immediately so
// Sockets() has something to report from the very first call.
func New(ex Exchanger) (*Bridge, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{ex: ex, ctx: ctx, cancel: cancel, readFD: r, writeFD: w}, nil
}

// Sockets reports the self-pipe's read end. It is always present for the
// bridge's lifetime, mirroring a real stub keeping a socket open as long as
// its channel lives.
func (b *Bridge) Sockets() []SocketInterest {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.readFD == nil {
		return nil
	}
	return []SocketInterest{{Socket: int(b.readFD.Fd()), Readable: true}}
}

// ProcessFD drains the self-pipe (if either argument names it) and
// dispatches every result that had queued up, synchronously, in arrival
// order. Safe to call with no data pending: it just finds nothing to drain
// and dispatches nothing, which is what the backup-poll tick's
// ProcessFD(fd, fd) relies on.
func (b *Bridge) ProcessFD(readFD, writeFD int) {
	b.mu.Lock()
	if b.readFD != nil {
		fd := int(b.readFD.Fd())
		if readFD == fd || writeFD == fd {
			drainNonBlocking(b.readFD)
		}
	}
	ready := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, pr := range ready {
		dispatch(pr)
	}
}

// drainNonBlocking reads every byte currently buffered without blocking,
// using a deadline in the past as the standard non-blocking-read trick for
// an os.File wrapping a pipe.
func drainNonBlocking(f *os.File) {
	_ = f.SetReadDeadline(time.Now())
	buf := make([]byte, 64)
	for {
		_, err := f.Read(buf)
		if err != nil {
			return
		}
	}
}

func dispatch(pr pendingResult) {
	switch pr.kind {
	case kindHost:
		pr.host(pr.hostRes)
	case kindSRV:
		pr.srv(pr.srvRes)
	case kindTXT:
		pr.txt(pr.txtRes)
	}
}

func (b *Bridge) complete(pr pendingResult) {
	b.mu.Lock()
	b.inFlight--
	closed := b.closed
	if !closed {
		b.pending = append(b.pending, pr)
	}
	w := b.writeFD
	b.mu.Unlock()

	if closed {
		// Destroyed while this lookup was in flight: still run the
		// callback so the request's pending-query counters unwind, just
		// not through the pipe (there may be nothing left to drain it).
		dispatch(pr)
		return
	}
	if w != nil {
		_, _ = w.Write([]byte{0})
	}
}

// LookupHost runs ex.LookupHost on its own goroutine and delivers the
// result through onDone the next time ProcessFD drains the self-pipe.
func (b *Bridge) LookupHost(name string, family Family, onDone func(HostResult)) {
	b.mu.Lock()
	b.inFlight++
	b.mu.Unlock()
	go func() {
		res := b.ex.LookupHost(b.ctx, name, family)
		b.complete(pendingResult{kind: kindHost, host: onDone, hostRes: res})
	}()
}

// LookupSRV is LookupHost for SRV queries.
func (b *Bridge) LookupSRV(name string, onDone func(SRVResult)) {
	b.mu.Lock()
	b.inFlight++
	b.mu.Unlock()
	go func() {
		res := b.ex.LookupSRV(b.ctx, name)
		b.complete(pendingResult{kind: kindSRV, srv: onDone, srvRes: res})
	}()
}

// LookupTXT is LookupHost for TXT queries.
func (b *Bridge) LookupTXT(name string, onDone func(TXTResult)) {
	b.mu.Lock()
	b.inFlight++
	b.mu.Unlock()
	go func() {
		res := b.ex.LookupTXT(b.ctx, name)
		b.complete(pendingResult{kind: kindTXT, txt: onDone, txtRes: res})
	}()
}

// SetServer delegates to the Exchanger.
func (b *Bridge) SetServer(host string, port uint16) error {
	return b.ex.SetServer(host, port)
}

// Cancel unblocks every in-flight Exchanger call by cancelling the shared
// context; well-behaved Exchangers will then complete with ctx.Err().
func (b *Bridge) Cancel() {
	b.cancel()
}

// Destroy closes the self-pipe and the Exchanger. Idempotent.
func (b *Bridge) Destroy() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	r, w := b.readFD, b.writeFD
	b.readFD, b.writeFD = nil, nil
	b.mu.Unlock()

	b.cancel()
	if r != nil {
		_ = r.Close()
	}
	if w != nil {
		_ = w.Close()
	}
	b.ex.Close()
}
