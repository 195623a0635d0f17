package aresdriver

import (
	"errors"
	"net"
	"time"
)

// ResolvedAddress is one entry of a HostnameRequest's result: a resolved IP
// address carrying the port the caller asked to resolve, per spec.md §6.4.
type ResolvedAddress struct {
	IP   net.IP
	Port uint16
}

// HostnameCallback receives a HostnameRequest's outcome exactly once, never
// under the request lock, and never at all if Cancel succeeded first.
type HostnameCallback func(addrs []ResolvedAddress, err error)

// HostnameRequest issues A and, where available, AAAA lookups for a host
// and joins the two into one sorted address list (spec.md §4.4).
type HostnameRequest struct {
	request

	pendingQueries       int
	accumulatedAddresses []ResolvedAddress
	accumulatedError     error
	onResolve            HostnameCallback
	addrLiteralParser    AddressLiteralParser
}

// CreateHostnameRequest builds and Initializes a HostnameRequest. The
// caller must invoke Start exactly once on the result, and may call Cancel
// at any point before the completion callback fires.
func CreateHostnameRequest(name, defaultPort, dnsServer string, checkPort bool, timeout time.Duration, registerCB func(SocketHandle, PolledFd), engine EventEngine, fdFactory PolledFdFactory) (*HostnameRequest, error) {
	hr := &HostnameRequest{addrLiteralParser: DefaultAddressLiteralParser}
	if err := initRequest(&hr.request, newStub, engine, fdFactory, registerCB, name, defaultPort, dnsServer, checkPort, timeout); err != nil {
		return nil, err
	}
	return hr, nil
}

// Start begins resolution. See spec.md §4.4.
func (hr *HostnameRequest) Start(onResolve HostnameCallback) {
	hr.mu.Lock()
	hr.onResolve = onResolve
	hr.deadlineHook = hr.onDeadlineLocked

	if ip, ok := hr.addrLiteralParser.Parse(hr.host); ok {
		port := hr.port
		hr.mu.Unlock()
		hr.engine.Run(func() {
			onResolve([]ResolvedAddress{{IP: ip, Port: port}}, nil)
		})
		hr.release()
		return
	}

	// Pre-increment before issuance: the stub may invoke onDone inline, so
	// pendingQueries must already reflect both queries before either call.
	wantAAAA := IsIpv6LoopbackAvailable()
	hr.pendingQueries = 1
	if wantAAAA {
		hr.pendingQueries = 2
	}

	if wantAAAA {
		hr.stub.LookupHost(hr.host, FamilyIPv6, func(res HostResult) {
			hr.onHostByNameDoneLocked(FamilyIPv6, res)
		})
	}
	hr.stub.LookupHost(hr.host, FamilyIPv4, func(res HostResult) {
		hr.onHostByNameDoneLocked(FamilyIPv4, res)
	})

	if !hr.shuttingDown {
		hr.workLocked()
		hr.startTimersLocked()
	}
	hr.mu.Unlock()
}

// onHostByNameDoneLocked assumes the caller already holds hr.mu: the stub
// contract guarantees query-done callbacks only ever fire from within a
// call this request made while holding its own lock (spec.md §4.4).
func (hr *HostnameRequest) onHostByNameDoneLocked(family Family, res HostResult) {
	if res.Err != nil {
		hr.onResolveLocked(nil, wrapStubError(family.String(), hr.host, res.Err))
		return
	}
	addrs := make([]ResolvedAddress, len(res.Addrs))
	for i, ip := range res.Addrs {
		addrs[i] = ResolvedAddress{IP: ip, Port: hr.port}
	}
	hr.onResolveLocked(addrs, nil)
}

func (hr *HostnameRequest) onResolveLocked(addrs []ResolvedAddress, err error) {
	hr.pendingQueries--
	if hr.cancelled || hr.completed {
		// A late arrival after Cancel, or after the deadline already
		// completed the request directly. Exactly one Start ref exists;
		// releaseStartRefLocked hands it back the first time any path gets
		// here (Cancel itself never releases it), and is a no-op for every
		// arrival after that, including the other outstanding query here.
		hr.releaseStartRefLocked()
		return
	}
	if err == nil {
		hr.accumulatedAddresses = append(hr.accumulatedAddresses, addrs...)
	} else {
		hr.accumulatedError = errors.Join(hr.accumulatedError, err)
	}
	if hr.pendingQueries > 0 {
		return
	}

	hr.shuttingDown = true
	hr.completed = true
	hr.cancelTimersLocked()
	logf("%p: hostname %q resolved, %d addrs err=%v", hr, hr.name, len(hr.accumulatedAddresses), hr.accumulatedError)

	cb := hr.onResolve
	if len(hr.accumulatedAddresses) > 0 {
		// Partial success overrides the accumulated error.
		sorted := sortByRFC6724(hr.accumulatedAddresses)
		hr.engine.Run(func() { cb(sorted, nil) })
	} else {
		accErr := hr.accumulatedError
		hr.engine.Run(func() { cb(nil, accErr) })
	}
	hr.releaseStartRefLocked()
}

// onDeadlineLocked runs once, from within onQueryTimeout, when the deadline
// fires before every outstanding A/AAAA query has completed. Any addresses
// already accumulated still win over the deadline; otherwise the caller
// sees DeadlineExceeded instead of whatever partial error state existed.
func (hr *HostnameRequest) onDeadlineLocked() {
	hr.completed = true
	hr.cancelTimersLocked()
	logf("%p: hostname %q deadline exceeded, %d addrs accumulated", hr, hr.name, len(hr.accumulatedAddresses))

	cb := hr.onResolve
	if len(hr.accumulatedAddresses) > 0 {
		sorted := sortByRFC6724(hr.accumulatedAddresses)
		hr.engine.Run(func() { cb(sorted, nil) })
	} else {
		hr.engine.Run(func() { cb(nil, deadlineExceeded()) })
	}
	hr.releaseStartRefLocked()
}
