package aresdriver

import (
	"math"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// backupPollInterval is the stub-recommended floor for the backup poll
// timer (spec.md §4.6).
const backupPollInterval = time.Second

type pendingTimer struct {
	handle TaskHandle
	armed  bool
}

// request is the shared base embedded by HostnameRequest, SRVRequest and
// TXTRequest. It owns the stub channel, the fd list, and the two timers,
// and runs the socket-tracking loop described in spec.md §4.3. Every
// exported-ish "Locked" method assumes the caller already holds mu.
type request struct {
	mu sync.Mutex

	name        string
	defaultPort string
	host        string
	port        uint16

	stub       Stub
	fds        fdNodeList
	engine     EventEngine
	fdFactory  PolledFdFactory
	registerCB func(SocketHandle, PolledFd)

	timeout time.Duration

	queryTimeoutHandle pendingTimer
	backupPollHandle   pendingTimer

	initialized      bool
	shuttingDown     bool
	cancelled        bool
	completed        bool // set just before the one and only completion callback is scheduled
	startRefReleased bool // guards releaseStartRefLocked against firing twice

	// deadlineHook lets the embedding request type fold a deadline directly
	// into its own completion path, since shutting down poller handles alone
	// only has something to cascade through once a socket actually exists.
	// Set by Start before any query is issued.
	deadlineHook func()

	refcount int32 // atomic; starts at 1, held by the "Start" caller
}

// splitHostPort is a permissive host:port splitter: unlike net.SplitHostPort
// it tolerates a missing port by reporting hasPort=false instead of erroring,
// since spec.md §4.2 treats "no port" as a distinct, sometimes-legal case.
func splitHostPort(name string) (host, port string, hasPort bool, err error) {
	host, port, err = net.SplitHostPort(name)
	if err == nil {
		return host, port, true, nil
	}
	if ae, ok := err.(*net.AddrError); ok && ae.Err == "missing port in address" {
		return name, "", false, nil
	}
	return "", "", false, err
}

// initRequest implements spec.md §4.2 Initialize. On any failure after the
// stub channel is created, it destroys the channel before returning.
func initRequest(r *request, stubFactory StubFactory, engine EventEngine, fdFactory PolledFdFactory, registerCB func(SocketHandle, PolledFd), name, defaultPort, dnsServer string, checkPort bool, timeout time.Duration) error {
	host, portStr, hasPort, err := splitHostPort(name)
	if err != nil || host == "" {
		return invalidArgument("unparseable host:port")
	}

	if checkPort && !hasPort {
		if defaultPort == "" {
			return invalidArgument("no port in name")
		}
		portStr = defaultPort
		hasPort = true
	}

	var port uint16
	if hasPort {
		p, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return invalidArgument("unparseable port")
		}
		port = uint16(p)
	}

	stub, err := stubFactory()
	if err != nil {
		return newError(Unknown, "failed to create stub channel", err)
	}

	if dnsServer != "" {
		srvHost, srvPortStr, err := net.SplitHostPort(dnsServer)
		if err != nil || net.ParseIP(srvHost) == nil {
			stub.Destroy()
			return invalidArgument("unparseable dns_server")
		}
		srvPort, err := strconv.ParseUint(srvPortStr, 10, 16)
		if err != nil {
			stub.Destroy()
			return invalidArgument("unparseable dns_server port")
		}
		if err := stub.SetServer(srvHost, uint16(srvPort)); err != nil {
			stub.Destroy()
			return newError(Unknown, "failed to set dns server", err)
		}
	}

	r.name = name
	r.defaultPort = defaultPort
	r.host = host
	r.port = port
	r.stub = stub
	r.engine = engine
	r.fdFactory = fdFactory
	r.registerCB = registerCB
	if r.registerCB == nil {
		r.registerCB = func(SocketHandle, PolledFd) {}
	}
	r.timeout = timeout
	r.initialized = true
	r.refcount = 1
	return nil
}

func (r *request) addRef() {
	atomic.AddInt32(&r.refcount, 1)
}

// release drops one reference. When the count reaches zero the stub channel
// is destroyed (spec.md I7). Safe to call while holding mu.
func (r *request) release() {
	if atomic.AddInt32(&r.refcount, -1) == 0 {
		r.stub.Destroy()
	}
}

// releaseStartRefLocked releases the single reference handed to whichever
// code path first drives the request to completion: normal resolution,
// Cancel, or the deadline timer. Exactly one of those paths, and exactly
// one query arrival among however many are outstanding at that point, must
// actually give up this ref — every other caller (a late stub callback
// arriving after Cancel, or after the deadline already completed the
// request) must be a no-op here, or the refcount goes negative and a
// legitimately-held fd/timer ref can drive it through zero early, calling
// stub.Destroy() while those refs still think the stub is alive. Callers
// must already hold mu.
func (r *request) releaseStartRefLocked() {
	if r.startRefReleased {
		return
	}
	r.startRefReleased = true
	r.release()
}

// workLocked is the socket-tracking loop, spec.md §4.3.
func (r *request) workLocked() {
	var newList fdNodeList
	if !r.shuttingDown {
		for _, si := range r.stub.Sockets() {
			node := r.fds.popExisting(si.Socket)
			if node == nil {
				node = &fdNode{socket: si.Socket}
				node.polledFd = r.fdFactory.NewPolledFd(si.Socket, r.registerCB)
			}
			newList.push(node)

			if si.Readable && !node.readableRegistered {
				node.readableRegistered = true
				r.addRef()
				n := node
				n.polledFd.RegisterForReadable(func(status ReadinessStatus) {
					r.onReadable(n, status)
				})
			}
			if si.Writable && !node.writableRegistered {
				node.writableRegistered = true
				r.addRef()
				n := node
				n.polledFd.RegisterForWritable(func(status ReadinessStatus) {
					r.onWritable(n, status)
				})
			}
		}
	}

	// Whatever is left in r.fds was not claimed above: the stub no longer
	// wants it. Shut it down; keep it around only if a readiness callback
	// is still outstanding for it, so that callback can still find it.
	for _, n := range r.fds.all() {
		n.shutdown(nil)
		if n.readableRegistered || n.writableRegistered {
			newList.push(n)
		}
	}
	r.fds = newList
}

func (r *request) onReadable(n *fdNode, status ReadinessStatus) {
	r.mu.Lock()
	n.readableRegistered = false
	if status.ok() && !r.shuttingDown {
		for {
			r.stub.ProcessFD(n.socket, NoSocket)
			if !n.polledFd.IsStillReadable() {
				break
			}
		}
	} else {
		r.stub.Cancel()
	}
	r.workLocked()
	r.mu.Unlock()
	r.release()
}

func (r *request) onWritable(n *fdNode, status ReadinessStatus) {
	r.mu.Lock()
	n.writableRegistered = false
	if status.ok() && !r.shuttingDown {
		r.stub.ProcessFD(NoSocket, n.socket)
	} else {
		r.stub.Cancel()
	}
	r.workLocked()
	r.mu.Unlock()
	r.release()
}

// shutdownPollerHandlesLocked shuts down every not-yet-shut-down fd node
// with the given status, the helper factored out in original_source's
// ShutdownPollerHandlesLocked and reused by both Cancel and the deadline
// timer.
func (r *request) shutdownPollerHandlesLocked(err error) {
	for _, n := range r.fds.all() {
		n.shutdown(err)
	}
}

func (r *request) startTimersLocked() {
	deadline := r.timeout
	if deadline <= 0 {
		deadline = time.Duration(math.MaxInt64)
	}
	r.addRef()
	r.queryTimeoutHandle.armed = true
	r.queryTimeoutHandle.handle = r.engine.RunAfter(deadline, r.onQueryTimeout)

	r.addRef()
	r.backupPollHandle.armed = true
	r.backupPollHandle.handle = r.engine.RunAfter(backupPollInterval, r.onBackupPollAlarm)
}

func (r *request) cancelTimersLocked() {
	if r.queryTimeoutHandle.armed {
		if r.engine.Cancel(r.queryTimeoutHandle.handle) {
			r.queryTimeoutHandle.armed = false
			r.release()
		}
	}
	if r.backupPollHandle.armed {
		if r.engine.Cancel(r.backupPollHandle.handle) {
			r.backupPollHandle.armed = false
			r.release()
		}
	}
}

func (r *request) onQueryTimeout() {
	r.mu.Lock()
	r.queryTimeoutHandle.armed = false
	if !r.shuttingDown {
		logf("%p: query timeout for %q", r, r.name)
		r.shuttingDown = true
		r.shutdownPollerHandlesLocked(deadlineExceeded())
		if r.deadlineHook != nil {
			r.deadlineHook()
		}
	}
	r.mu.Unlock()
	r.release()
}

func (r *request) onBackupPollAlarm() {
	r.mu.Lock()
	r.backupPollHandle.armed = false
	if !r.shuttingDown {
		for _, n := range r.fds.all() {
			if !n.alreadyShutdown {
				r.stub.ProcessFD(n.socket, n.socket)
			}
		}
		r.addRef()
		r.backupPollHandle.armed = true
		r.backupPollHandle.handle = r.engine.RunAfter(backupPollInterval, r.onBackupPollAlarm)
		r.workLocked()
	}
	r.mu.Unlock()
	r.release()
}

// cancel implements spec.md §4.8. It returns true iff this call was the
// first to transition shuttingDown.
func (r *request) cancel() bool {
	r.mu.Lock()
	if r.shuttingDown {
		r.mu.Unlock()
		return false
	}
	logf("%p: cancelling %q", r, r.name)
	r.shuttingDown = true
	r.cancelled = true
	r.cancelTimersLocked()
	r.shutdownPollerHandlesLocked(cancelledError())
	r.mu.Unlock()
	return true
}

// Cancel cancels the request. It returns true iff this was the first
// caller to do so; after a successful Cancel the completion callback will
// never fire.
func (r *request) Cancel() bool {
	return r.cancel()
}
