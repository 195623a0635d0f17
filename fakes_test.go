package aresdriver

import (
	"sync"
	"sync/atomic"
	"time"
)

// fakeEngine is a deterministic EventEngine: Run dispatches on its own
// goroutine (so callers that hold a lock while calling Run don't deadlock,
// matching the real engine's contract), and RunAfter timers only fire when
// the test explicitly calls fire.
type fakeEngine struct {
	mu      sync.Mutex
	next    uint64
	pending map[TaskHandle]func()

	ranCount int32
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{pending: make(map[TaskHandle]func())}
}

func (e *fakeEngine) Run(fn func()) {
	atomic.AddInt32(&e.ranCount, 1)
	go fn()
}

func (e *fakeEngine) RunAfter(d time.Duration, fn func()) TaskHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	h := TaskHandle(e.next)
	e.pending[h] = fn
	return h
}

func (e *fakeEngine) Cancel(h TaskHandle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pending[h]; ok {
		delete(e.pending, h)
		return true
	}
	return false
}

// fire runs the timer named by h, if it is still pending, and reports
// whether it was found.
func (e *fakeEngine) fire(h TaskHandle) bool {
	e.mu.Lock()
	fn, ok := e.pending[h]
	if ok {
		delete(e.pending, h)
	}
	e.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}

func (e *fakeEngine) pendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// fakeStub is a hand-written Stub. Every Lookup* call is synchronous and
// inline by default (the driver must tolerate that), driven by a small set
// of result fields the test fills in before calling Start.
type fakeStub struct {
	mu sync.Mutex

	sockets      []SocketInterest
	destroyed    bool
	destroyCount int

	cancelCount    int32
	setServerHost  string
	setServerPort  uint16
	setServerErr   error
	processFDCalls []processFDCall

	hostResults map[Family]HostResult
	srvResult   SRVResult
	txtResult   TXTResult

	// When set, overrides the default synchronous dispatch, letting a test
	// capture onDone and call it later.
	onLookupHost func(name string, family Family, onDone func(HostResult))
	onLookupSRV  func(name string, onDone func(SRVResult))
	onLookupTXT  func(name string, onDone func(TXTResult))
}

type processFDCall struct{ read, write SocketHandle }

func newFakeStub() *fakeStub {
	return &fakeStub{hostResults: make(map[Family]HostResult)}
}

func (s *fakeStub) Sockets() []SocketInterest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sockets
}

func (s *fakeStub) ProcessFD(readFD, writeFD SocketHandle) {
	s.mu.Lock()
	s.processFDCalls = append(s.processFDCalls, processFDCall{readFD, writeFD})
	s.mu.Unlock()
}

func (s *fakeStub) Cancel() { atomic.AddInt32(&s.cancelCount, 1) }

func (s *fakeStub) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.destroyCount++
}

func (s *fakeStub) isDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

func (s *fakeStub) destroyCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyCount
}

func (s *fakeStub) SetServer(host string, port uint16) error {
	s.setServerHost, s.setServerPort = host, port
	return s.setServerErr
}

func (s *fakeStub) LookupHost(name string, family Family, onDone func(HostResult)) {
	if s.onLookupHost != nil {
		s.onLookupHost(name, family, onDone)
		return
	}
	onDone(s.hostResults[family])
}

func (s *fakeStub) LookupSRV(name string, onDone func(SRVResult)) {
	if s.onLookupSRV != nil {
		s.onLookupSRV(name, onDone)
		return
	}
	onDone(s.srvResult)
}

func (s *fakeStub) LookupTXT(name string, onDone func(TXTResult)) {
	if s.onLookupTXT != nil {
		s.onLookupTXT(name, onDone)
		return
	}
	onDone(s.txtResult)
}

// fakePolledFd is a hand-written PolledFd that a test can fire manually.
type fakePolledFd struct {
	mu            sync.Mutex
	socket        SocketHandle
	readCB        func(ReadinessStatus)
	writeCB       func(ReadinessStatus)
	shutDown      bool
	shutdownErr   error
	stillReadable bool
}

func (p *fakePolledFd) RegisterForReadable(cb func(ReadinessStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readCB = cb
}

func (p *fakePolledFd) RegisterForWritable(cb func(ReadinessStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeCB = cb
}

func (p *fakePolledFd) IsStillReadable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stillReadable
}

func (p *fakePolledFd) Shutdown(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutDown = true
	p.shutdownErr = err
}

func (p *fakePolledFd) WrappedSocket() SocketHandle { return p.socket }
func (p *fakePolledFd) Name() string                { return "fake" }

func (p *fakePolledFd) fireReadable(status ReadinessStatus) {
	p.mu.Lock()
	cb := p.readCB
	p.readCB = nil
	p.mu.Unlock()
	if cb != nil {
		cb(status)
	}
}

func (p *fakePolledFd) fireWritable(status ReadinessStatus) {
	p.mu.Lock()
	cb := p.writeCB
	p.writeCB = nil
	p.mu.Unlock()
	if cb != nil {
		cb(status)
	}
}

// fakeFdFactory mints fakePolledFds and remembers them by socket handle.
type fakeFdFactory struct {
	mu  sync.Mutex
	fds map[SocketHandle]*fakePolledFd
}

func newFakeFdFactory() *fakeFdFactory {
	return &fakeFdFactory{fds: make(map[SocketHandle]*fakePolledFd)}
}

func (f *fakeFdFactory) NewPolledFd(socket SocketHandle, registerCB func(SocketHandle, PolledFd)) PolledFd {
	pfd := &fakePolledFd{socket: socket}
	f.mu.Lock()
	f.fds[socket] = pfd
	f.mu.Unlock()
	if registerCB != nil {
		registerCB(socket, pfd)
	}
	return pfd
}

func (f *fakeFdFactory) get(socket SocketHandle) *fakePolledFd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fds[socket]
}
