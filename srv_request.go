package aresdriver

import (
	"strings"
	"time"
)

// SRVCallback receives a SRVRequest's outcome exactly once.
type SRVCallback func(records []SRVRecord, err error)

// SRVRequest issues a single SRV query for _grpclb._tcp.<host> and
// completes single-shot, with no partial accumulation (spec.md §4.5).
type SRVRequest struct {
	request
	onResolve SRVCallback
}

// CreateSRVRequest builds and Initializes a SRVRequest.
func CreateSRVRequest(name, defaultPort, dnsServer string, checkPort bool, timeout time.Duration, registerCB func(SocketHandle, PolledFd), engine EventEngine, fdFactory PolledFdFactory) (*SRVRequest, error) {
	sr := &SRVRequest{}
	if err := initRequest(&sr.request, newStub, engine, fdFactory, registerCB, name, defaultPort, dnsServer, checkPort, timeout); err != nil {
		return nil, err
	}
	return sr, nil
}

// Start begins resolution. See spec.md §4.5.
func (sr *SRVRequest) Start(onResolve SRVCallback) {
	sr.mu.Lock()
	sr.onResolve = onResolve
	sr.deadlineHook = sr.onDeadlineLocked

	if strings.EqualFold(sr.host, "localhost") {
		sr.mu.Unlock()
		sr.engine.Run(func() {
			onResolve(nil, invalidArgument("skip querying SRV records for localhost"))
		})
		sr.release()
		return
	}

	serviceName := "_grpclb._tcp." + sr.host
	sr.stub.LookupSRV(serviceName, func(res SRVResult) {
		sr.onResolveLocked(res)
	})

	if !sr.shuttingDown {
		sr.workLocked()
		sr.startTimersLocked()
	}
	sr.mu.Unlock()
}

func (sr *SRVRequest) onResolveLocked(res SRVResult) {
	if sr.cancelled || sr.completed {
		// A late arrival after Cancel, or after the deadline already
		// completed the request directly. releaseStartRefLocked is a no-op
		// here unless Cancel is what got us here and nothing has released
		// the Start ref yet.
		sr.releaseStartRefLocked()
		return
	}
	sr.shuttingDown = true
	sr.completed = true
	sr.cancelTimersLocked()

	cb := sr.onResolve
	records := res.Records
	var err error
	if res.Err != nil {
		err = classifyStubError("SRV", sr.host, res.Err)
	}
	logf("%p: srv %q resolved, %d records err=%v", sr, sr.name, len(records), err)
	sr.engine.Run(func() { cb(records, err) })
	sr.releaseStartRefLocked()
}

// onDeadlineLocked runs once, from within onQueryTimeout, when the deadline
// fires before the stub's SRV callback has arrived.
func (sr *SRVRequest) onDeadlineLocked() {
	sr.completed = true
	sr.cancelTimersLocked()
	logf("%p: srv %q deadline exceeded", sr, sr.name)

	cb := sr.onResolve
	sr.engine.Run(func() { cb(nil, deadlineExceeded()) })
	sr.releaseStartRefLocked()
}
