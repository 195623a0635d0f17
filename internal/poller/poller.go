// Package poller is the default aresdriver.PolledFdFactory: it arms
// one-shot readiness callbacks with golang.org/x/sys/unix.Poll rather than
// a persistent epoll/kqueue registration, since a request only ever tracks
// one or two sockets at a time and a fresh Poll call per arm keeps the
// bookkeeping trivial.
package poller

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/astracat-corp/aresdriver"
)

// errShutdown is delivered to a readiness callback whose fd was shut down
// with no specific error.
var errShutdown = errors.New("poller: fd shut down")

// Factory mints Fds bound to this process's poll mechanism. It holds no
// state of its own; every registration is independent.
type Factory struct{}

// NewFactory returns a ready-to-use Factory.
func NewFactory() *Factory { return &Factory{} }

// NewPolledFd implements aresdriver.PolledFdFactory.
func (f *Factory) NewPolledFd(socket aresdriver.SocketHandle, registerCB func(aresdriver.SocketHandle, aresdriver.PolledFd)) aresdriver.PolledFd {
	r, w, err := os.Pipe()
	pfd := &fd{socket: socket, fd: int(socket)}
	if err == nil {
		pfd.wakeR, pfd.wakeW = r, w
	}
	if registerCB != nil {
		registerCB(socket, pfd)
	}
	return pfd
}

type fd struct {
	socket aresdriver.SocketHandle
	fd     int

	mu           sync.Mutex
	shut         bool
	shutdownErr  error
	wakeR, wakeW *os.File
}

func (p *fd) WrappedSocket() aresdriver.SocketHandle { return p.socket }

func (p *fd) Name() string { return fmt.Sprintf("fd(%d)", p.fd) }

func (p *fd) RegisterForReadable(cb func(aresdriver.ReadinessStatus)) {
	p.arm(unix.POLLIN, cb)
}

func (p *fd) RegisterForWritable(cb func(aresdriver.ReadinessStatus)) {
	p.arm(unix.POLLOUT, cb)
}

func (p *fd) arm(events int16, cb func(aresdriver.ReadinessStatus)) {
	p.mu.Lock()
	if p.shut {
		err := p.shutdownErr
		if err == nil {
			err = errShutdown
		}
		p.mu.Unlock()
		cb(aresdriver.ReadinessStatus{Err: err})
		return
	}
	var wakeFd int32 = -1
	if p.wakeR != nil {
		wakeFd = int32(p.wakeR.Fd())
	}
	p.mu.Unlock()

	go func() {
		pollSet := []unix.PollFd{
			{Fd: int32(p.fd), Events: events},
			{Fd: wakeFd, Events: unix.POLLIN},
		}
		for {
			_, err := unix.Poll(pollSet, -1)
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				cb(aresdriver.ReadinessStatus{Err: err})
				return
			}
			if pollSet[1].Revents != 0 {
				p.mu.Lock()
				shutErr := p.shutdownErr
				p.mu.Unlock()
				if shutErr == nil {
					shutErr = errShutdown
				}
				cb(aresdriver.ReadinessStatus{Err: shutErr})
				return
			}
			if pollSet[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
				cb(aresdriver.ReadinessStatus{Err: fmt.Errorf("poller: fd %d: error/hangup", p.fd)})
				return
			}
			if pollSet[0].Revents == 0 {
				continue
			}
			cb(aresdriver.ReadinessStatus{})
			return
		}
	}()
}

// IsStillReadable does a zero-timeout poll to see if another read would
// return immediately.
func (p *fd) IsStillReadable() bool {
	pollSet := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(pollSet, 0)
	return err == nil && n > 0 && pollSet[0].Revents&unix.POLLIN != 0
}

// Shutdown is idempotent. It wakes any outstanding arm()s by closing the
// wake pipe's write end, which the poll set above always treats as a
// shutdown signal regardless of which fd's revents actually changed.
func (p *fd) Shutdown(err error) {
	p.mu.Lock()
	if p.shut {
		p.mu.Unlock()
		return
	}
	p.shut = true
	p.shutdownErr = err
	w := p.wakeW
	r := p.wakeR
	p.wakeW = nil
	p.wakeR = nil
	p.mu.Unlock()

	if w != nil {
		_ = w.Close()
	}
	if r != nil {
		_ = r.Close()
	}
}
