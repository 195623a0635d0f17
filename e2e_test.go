package aresdriver

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

// These mirror the end-to-end scenarios and boundary behaviors this driver
// is meant to satisfy: a hostname request joining two families, a
// both-families-failed error, a deadline firing before the stub ever
// responds, an ordered SRV result, a TXT continuation record, and a
// Cancel-before-completion. Scenario numbers in comments track the order
// they're described in.

// 1: dual-stack join, RFC 6724 ordering.
func TestE2EHostnameDualStackJoin(t *testing.T) {
	withIPv6LoopbackAvailable(t, true)
	stub := newFakeStub()
	stub.hostResults[FamilyIPv4] = HostResult{Addrs: []net.IP{
		net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"),
	}}
	stub.hostResults[FamilyIPv6] = HostResult{Addrs: []net.IP{
		net.ParseIP("2001:db8::1"),
	}}

	engine := newFakeEngine()
	hr := newTestHostnameRequest(t, stub, engine, newFakeFdFactory(), "example.test:8080")

	done := make(chan struct{})
	var got []ResolvedAddress
	hr.Start(func(addrs []ResolvedAddress, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		got = addrs
		close(done)
	})
	<-done

	if len(got) != 3 {
		t.Fatalf("got %d addresses, want 3: %v", len(got), got)
	}
	for _, a := range got {
		if a.Port != 8080 {
			t.Errorf("address %v carries port %d, want 8080", a.IP, a.Port)
		}
	}
}

// 2: both families fail, message carries both qtypes and the name.
func TestE2EHostnameBothFamiliesServfail(t *testing.T) {
	withIPv6LoopbackAvailable(t, true)
	stub := newFakeStub()
	stub.hostResults[FamilyIPv4] = HostResult{Err: errors.New("SERVFAIL")}
	stub.hostResults[FamilyIPv6] = HostResult{Err: errors.New("SERVFAIL")}

	engine := newFakeEngine()
	hr := newTestHostnameRequest(t, stub, engine, newFakeFdFactory(), "example.test:443")

	done := make(chan struct{})
	var gotErr error
	hr.Start(func(addrs []ResolvedAddress, err error) {
		gotErr = err
		close(done)
	})
	<-done

	if gotErr == nil {
		t.Fatal("expected a non-nil error")
	}
	msg := gotErr.Error()
	for _, want := range []string{"qtype=A", "qtype=AAAA", "name=example.test"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

// 3: deadline fires before the stub ever responds; late stub callbacks are
// swallowed.
func TestE2EHostnameDeadlineExceeded(t *testing.T) {
	withIPv6LoopbackAvailable(t, false)
	stub := newFakeStub()
	var captured func(HostResult)
	stub.onLookupHost = func(name string, family Family, onDone func(HostResult)) {
		captured = onDone // the stub never calls back on its own
	}

	engine := newFakeEngine()
	fdFactory := newFakeFdFactory()
	hr := &HostnameRequest{addrLiteralParser: DefaultAddressLiteralParser}
	if err := initRequest(&hr.request, func() (Stub, error) { return stub, nil }, engine, fdFactory, nil,
		"slow.test:1", "443", "", false, 50*time.Millisecond); err != nil {
		t.Fatalf("initRequest failed: %v", err)
	}

	done := make(chan struct{})
	hr.Start(func(addrs []ResolvedAddress, err error) {
		var aerr *Error
		if !errors.As(err, &aerr) || aerr.Kind != DeadlineExceeded {
			t.Errorf("err = %v, want DeadlineExceeded", err)
		}
		close(done)
	})

	if !engine.fire(hr.queryTimeoutHandle.handle) {
		t.Fatal("query timeout handle was not armed")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected on_resolve to have fired after the deadline")
	}

	// A late stub callback must produce no further user-visible callback; if
	// the completed guard didn't hold this would double-close done and panic.
	// onHostByNameDoneLocked assumes its caller already holds the lock, same
	// as it would if a real stub invoked it from inside ProcessFD.
	hr.mu.Lock()
	captured(HostResult{Addrs: []net.IP{net.ParseIP("9.9.9.9")}})
	hr.mu.Unlock()
}

// 4: SRV records are returned in stub order.
func TestE2ESRVOrderPreserved(t *testing.T) {
	stub := newFakeStub()
	stub.srvResult = SRVResult{Records: []SRVRecord{
		{Host: "h1", Port: 1001, Priority: 10, Weight: 5},
		{Host: "h2", Port: 1001, Priority: 20, Weight: 5},
	}}
	sr := newTestSRVRequest(t, stub, newFakeEngine(), newFakeFdFactory(), "svc.test:1")

	done := make(chan struct{})
	var got []SRVRecord
	sr.Start(func(records []SRVRecord, err error) {
		got = records
		close(done)
	})
	<-done

	if len(got) != 2 || got[0].Host != "h1" || got[1].Host != "h2" {
		t.Fatalf("got %v, want [h1, h2] in order", got)
	}
}

// 5: TXT continuation record is concatenated, prefix stripped.
func TestE2ETXTContinuationRecord(t *testing.T) {
	stub := newFakeStub()
	stub.txtResult = TXTResult{Records: []TXTRecord{
		{Text: "unrelated", RecordStart: true},
		{Text: "grpc_config={\"a\":", RecordStart: true},
		{Text: "1}", RecordStart: false},
	}}
	tr := newTestTXTRequest(t, stub, newFakeEngine(), newFakeFdFactory(), "cfg.test:1")

	done := make(chan struct{})
	var got string
	tr.Start(func(config string, err error) {
		got = config
		close(done)
	})
	<-done

	if got != `{"a":1}` {
		t.Fatalf("got %q, want {\"a\":1}", got)
	}
}

// 6: Cancel shortly after Start suppresses on_resolve and shuts fds down.
func TestE2ECancelShutsDownFds(t *testing.T) {
	withIPv6LoopbackAvailable(t, false)
	stub := newFakeStub()
	stub.sockets = []SocketInterest{{Socket: 42, Readable: true}}
	var captured func(HostResult)
	stub.onLookupHost = func(name string, family Family, onDone func(HostResult)) {
		captured = onDone
	}

	engine := newFakeEngine()
	fdFactory := newFakeFdFactory()
	hr := newTestHostnameRequest(t, stub, engine, fdFactory, "ok.test:80")

	called := false
	hr.Start(func(addrs []ResolvedAddress, err error) {
		called = true
	})

	if !hr.Cancel() {
		t.Fatal("Cancel should succeed")
	}

	pfd := fdFactory.get(42)
	if pfd == nil || !pfd.shutDown {
		t.Fatal("socket 42's PolledFd should have been shut down by Cancel")
	}
	// A real poller answers the shutdown by delivering the outstanding read
	// arm's callback with the shutdown status; the fake only records it, so
	// deliver it here to hand back the ref that arm holds.
	pfd.fireReadable(ReadinessStatus{Err: pfd.shutdownErr})

	hr.mu.Lock()
	captured(HostResult{Addrs: []net.IP{net.ParseIP("1.1.1.1")}})
	hr.mu.Unlock()
	if called {
		t.Error("on_resolve must never fire once Cancel has succeeded")
	}
	if !stub.isDestroyed() {
		t.Error("the stub should be destroyed once every reference drops")
	}
}

// B1/B2: IP-literal hosts, including bracketed IPv6, resolve synchronously
// with no stub dispatch at all.
func TestBoundaryIPLiteralsCompleteSynchronously(t *testing.T) {
	for _, name := range []string{"1.2.3.4:80", "[::1]:443"} {
		withIPv6LoopbackAvailable(t, false)
		stub := newFakeStub()
		engine := newFakeEngine()
		hr := newTestHostnameRequest(t, stub, engine, newFakeFdFactory(), name)

		done := make(chan struct{})
		hr.Start(func(addrs []ResolvedAddress, err error) {
			if err != nil {
				t.Errorf("%s: unexpected error: %v", name, err)
			}
			if len(addrs) != 1 {
				t.Errorf("%s: got %d addresses, want 1", name, len(addrs))
			}
			close(done)
		})
		<-done
		if len(stub.processFDCalls) != 0 {
			t.Errorf("%s: stub should never have been dispatched to", name)
		}
	}
}

// B3: a name with no default_port and check_port=true is InvalidArgument.
func TestBoundaryMissingPortIsInvalidArgument(t *testing.T) {
	var r request
	stub := newFakeStub()
	err := initRequest(&r, func() (Stub, error) { return stub, nil }, newFakeEngine(), newFakeFdFactory(), nil,
		"host", "", "", true, time.Second)
	var aerr *Error
	if !errors.As(err, &aerr) || aerr.Kind != InvalidArgument {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
}

// B4: timeout == 0 means no deadline ever fires (backup poll still arms).
func TestBoundaryZeroTimeoutNeverFires(t *testing.T) {
	withIPv6LoopbackAvailable(t, false)
	stub := newFakeStub()
	var captured func(HostResult)
	stub.onLookupHost = func(name string, family Family, onDone func(HostResult)) {
		captured = onDone
	}
	engine := newFakeEngine()
	hr := &HostnameRequest{addrLiteralParser: DefaultAddressLiteralParser}
	if err := initRequest(&hr.request, func() (Stub, error) { return stub, nil }, engine, newFakeFdFactory(), nil,
		"slow.test:1", "443", "", false, 0); err != nil {
		t.Fatalf("initRequest failed: %v", err)
	}

	done := make(chan struct{})
	hr.Start(func(addrs []ResolvedAddress, err error) { close(done) })

	// The query timeout handle exists but firing it should be the only way
	// it ever runs; nothing else in this test fires it, so it must not have
	// run on its own.
	select {
	case <-done:
		t.Fatal("on_resolve must not fire before the stub responds")
	case <-time.After(50 * time.Millisecond):
	}

	hr.mu.Lock()
	captured(HostResult{Addrs: []net.IP{net.ParseIP("1.1.1.1")}})
	hr.mu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("on_resolve should fire once the stub actually responds")
	}
}

// B5: SRV/TXT against "LocalHost" (any case) is rejected before dispatch.
func TestBoundaryLocalhostCaseInsensitive(t *testing.T) {
	stub := newFakeStub()
	sr := newTestSRVRequest(t, stub, newFakeEngine(), newFakeFdFactory(), "LocalHost:1")

	done := make(chan struct{})
	var gotErr error
	sr.Start(func(records []SRVRecord, err error) {
		gotErr = err
		close(done)
	})
	<-done

	var aerr *Error
	if !errors.As(gotErr, &aerr) || aerr.Kind != InvalidArgument {
		t.Fatalf("err = %v, want InvalidArgument", gotErr)
	}
	if len(stub.processFDCalls) != 0 {
		t.Error("SRV against localhost must never dispatch to the stub")
	}
}
